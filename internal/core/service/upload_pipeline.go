package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

const (
	// AvatarField is the only multipart field name accepted for avatar files.
	AvatarField = "avatar"
	// DefaultMaxAvatarBytes caps an avatar at 2 MiB.
	DefaultMaxAvatarBytes int64 = 2 << 20
	// DefaultAvatarFolder is the bucket folder avatars are stored under.
	DefaultAvatarFolder = "avatars"
)

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// UploadPipeline validates request files, buffers the accepted avatar and hands
// it to the object storage gateway.
type UploadPipeline struct {
	storage  ports.ObjectStorage
	folder   string
	maxBytes int64
	log      zerolog.Logger
}

func NewUploadPipeline(storage ports.ObjectStorage, folder string, maxBytes int64, log zerolog.Logger) *UploadPipeline {
	if folder == "" {
		folder = DefaultAvatarFolder
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAvatarBytes
	}
	return &UploadPipeline{storage: storage, folder: folder, maxBytes: maxBytes, log: log}
}

// MaxBytes is the largest accepted avatar.
func (p *UploadPipeline) MaxBytes() int64 { return p.maxBytes }

func (p *UploadPipeline) Folder() string { return p.folder }

// Accept enforces the upload rules and reads the single avatar into memory.
// Nothing is read from a file that fails the declared size or type checks.
func (p *UploadPipeline) Accept(files []ports.IncomingFile) (*domain.AvatarUpload, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, domain.NewValidationError("Too many files. Only one file allowed")
	}

	f := files[0]
	if f.Field != AvatarField {
		return nil, domain.NewValidationError(fmt.Sprintf("Unexpected field name. Use %q as the field name", AvatarField))
	}
	if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		return nil, domain.NewValidationError("Only image files are allowed")
	}
	if f.Size > p.maxBytes {
		return nil, p.tooLarge()
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, p.tooLarge()
	}

	return &domain.AvatarUpload{
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Data:        data,
	}, nil
}

// Store uploads an accepted avatar. Any failure is returned as a
// *domain.StorageError and the caller must not proceed as if it succeeded.
func (p *UploadPipeline) Store(ctx context.Context, upload *domain.AvatarUpload, ownerID string) (*domain.StoredAsset, error) {
	asset, err := p.storage.Put(ctx, ports.PutObjectInput{
		Data:        upload.Data,
		ContentType: upload.ContentType,
		Folder:      p.folder,
		OwnerID:     ownerID,
		Extension:   extensionFor(upload),
	})
	if err != nil {
		var se *domain.StorageError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &domain.StorageError{Op: "put", Err: err}
	}

	p.log.Info().
		Str("path", asset.Path).
		Int64("size", upload.Size()).
		Str("content_type", upload.ContentType).
		Msg("avatar uploaded")
	return asset, nil
}

// Discard deletes an asset that was stored for a write that did not complete.
func (p *UploadPipeline) Discard(ctx context.Context, asset *domain.StoredAsset) {
	if asset == nil || asset.Path == "" {
		return
	}
	if err := p.storage.Delete(ctx, asset.Path); err != nil {
		p.log.Warn().Err(err).Str("path", asset.Path).Msg("failed to discard orphaned avatar")
	}
}

func (p *UploadPipeline) tooLarge() error {
	return domain.NewValidationError("File too large. Maximum size allowed is " + humanSize(p.maxBytes))
}

// extensionFor prefers the client filename's extension and falls back to the
// declared MIME type.
func extensionFor(upload *domain.AvatarUpload) string {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if extPattern.MatchString(ext) {
		return ext
	}
	if m := mimetype.Lookup(upload.ContentType); m != nil && extPattern.MatchString(m.Extension()) {
		return m.Extension()
	}
	return ""
}

func humanSize(n int64) string {
	const mib = 1 << 20
	const kib = 1 << 10
	switch {
	case n%mib == 0:
		return fmt.Sprintf("%dMB", n/mib)
	case n%kib == 0:
		return fmt.Sprintf("%dKB", n/kib)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
