// Package media issues upload targets for item photos and avatars.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrUnknownKind     = errors.New("unknown upload kind")
	ErrTooLarge        = errors.New("upload too large")
)

// MaxUploadBytes bounds direct uploads.
const MaxUploadBytes = 5 << 20

type Kind string

const (
	KindItem   Kind = "item"
	KindAvatar Kind = "avatar"
)

var contentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Upload describes where a client should PUT a file and where it will be
// served from afterwards.
type Upload struct {
	UploadURL   string `json:"uploadUrl"`
	Method      string `json:"method"`
	ContentType string `json:"contentType"`
	// Headers must accompany the upload request; they are part of the
	// signature.
	Headers   map[string]string `json:"headers"`
	PublicURL string            `json:"publicUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type Uploader interface {
	// SignUpload returns a short-lived URL the client uploads to directly.
	SignUpload(ctx context.Context, kind Kind, uid, contentType string) (*Upload, error)
	// Put stores data server-side and returns its public URL.
	Put(ctx context.Context, kind Kind, uid, contentType string, data []byte) (string, error)
}

// objectKey validates the request and names a fresh object, e.g.
// items/{uid}/{uuid}.jpg.
func objectKey(kind Kind, uid, contentType string) (string, error) {
	if kind != KindItem && kind != KindAvatar {
		return "", ErrUnknownKind
	}
	ext, ok := contentTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if uid == "" || strings.Contains(uid, "/") {
		return "", errors.New("invalid uid")
	}
	return fmt.Sprintf("%ss/%s/%s.%s", kind, uid, uuid.NewString(), ext), nil
}
