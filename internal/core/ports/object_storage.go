package ports

import (
	"context"
	"io"

	"github.com/99minutos/accounts-api/internal/core/domain"
)

// PutObjectInput describes a blob to upload. OwnerID and Extension are optional.
type PutObjectInput struct {
	Data        []byte
	ContentType string
	Folder      string
	OwnerID     string
	Extension   string
}

// ObjectStorage is the remote bucket holding avatar images. Every remote
// failure is returned as *domain.StorageError.
type ObjectStorage interface {
	Put(ctx context.Context, in PutObjectInput) (*domain.StoredAsset, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, folder string) ([]domain.StoredAsset, error)
	// PublicURLFor derives the public URL of path without a network call.
	PublicURLFor(path string) string
	// PathFromURL is the inverse of PublicURLFor. It reports false for any URL
	// outside the bucket's public prefix.
	PathFromURL(rawURL string) (string, bool)
	Ping(ctx context.Context) error
}

// IncomingFile is one file part of an inbound request. Open is only called for
// the file that passes validation.
type IncomingFile struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadPipeline gates raw request files before they reach ObjectStorage.
type UploadPipeline interface {
	// Accept validates the request's files and buffers the avatar. It returns
	// (nil, nil) when no file was supplied.
	Accept(files []IncomingFile) (*domain.AvatarUpload, error)
	// Store uploads an accepted avatar. ownerID may be empty.
	Store(ctx context.Context, upload *domain.AvatarUpload, ownerID string) (*domain.StoredAsset, error)
	// Discard removes a previously stored asset, best effort.
	Discard(ctx context.Context, asset *domain.StoredAsset)
	// Folder is the bucket folder uploads are written to.
	Folder() string
}
