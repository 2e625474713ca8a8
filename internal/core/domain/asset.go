package domain

import "time"

// StoredAsset is a blob in the remote bucket. Only its URL is persisted on the
// owning user.
type StoredAsset struct {
	Path         string    `json:"path"`
	URL          string    `json:"url"`
	Name         string    `json:"name,omitempty"`
	ContentType  string    `json:"contentType,omitempty"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified,omitempty"`
}

// AvatarUpload is an accepted avatar file, fully buffered, waiting to be stored.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the number of buffered bytes.
func (a *AvatarUpload) Size() int64 {
	return int64(len(a.Data))
}
