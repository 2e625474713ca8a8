package middleware

import (
	"io"
	"mime/multipart"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

const avatarKey = "avatar_upload"

// AvatarUpload runs multipart requests through the upload pipeline and leaves
// the accepted avatar on the context. Non-multipart requests pass through.
// Rejected files stop the request before any storage call is made.
func AvatarUpload(pipeline ports.UploadPipeline) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ct := c.Request().Header.Get(echo.HeaderContentType)
			if !strings.HasPrefix(strings.ToLower(ct), echo.MIMEMultipartForm) {
				return next(c)
			}

			form, err := c.MultipartForm()
			if err != nil {
				return domain.NewValidationError("Invalid multipart form data")
			}

			upload, err := pipeline.Accept(incomingFiles(form))
			if err != nil {
				return err
			}
			if upload != nil {
				c.Set(avatarKey, upload)
			}
			return next(c)
		}
	}
}

// AvatarFrom returns the avatar accepted by AvatarUpload, or nil.
func AvatarFrom(c echo.Context) *domain.AvatarUpload {
	upload, _ := c.Get(avatarKey).(*domain.AvatarUpload)
	return upload
}

func incomingFiles(form *multipart.Form) []ports.IncomingFile {
	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var files []ports.IncomingFile
	for _, field := range fields {
		for _, fh := range form.File[field] {
			fh := fh
			files = append(files, ports.IncomingFile{
				Field:       field,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(echo.HeaderContentType),
				Size:        fh.Size,
				Open:        func() (io.ReadCloser, error) { return fh.Open() },
			})
		}
	}
	return files
}
