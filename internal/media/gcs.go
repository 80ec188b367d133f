package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// GCSUploader writes to a Cloud Storage bucket. Signed URLs use the service
// account key from GOOGLE_APPLICATION_CREDENTIALS when one is configured;
// otherwise the client library signs through the IAM credentials API.
type GCSUploader struct {
	client *storage.Client
	bucket string
	ttl    time.Duration
	signer *signer
	log    *slog.Logger
}

type signer struct {
	email      string
	privateKey []byte
}

func NewGCSUploader(ctx context.Context, bucket, credentialsFile string, ttl time.Duration, log *slog.Logger) (*GCSUploader, error) {
	var opts []option.ClientOption
	var sg *signer
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
		raw, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		sg, err = signerFromJSON(raw)
		if err != nil {
			return nil, err
		}
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &GCSUploader{client: client, bucket: bucket, ttl: ttl, signer: sg, log: log.With("component", "media")}, nil
}

func signerFromJSON(raw []byte) (*signer, error) {
	cfg, err := google.JWTConfigFromJSON(raw, storage.ScopeReadWrite)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &signer{email: cfg.Email, privateKey: cfg.PrivateKey}, nil
}

// SignUpload signs a PUT that stores the object with a fresh Firebase
// download token. The client must send Headers verbatim; PublicURL embeds
// the same token so the object is readable on a private bucket.
func (u *GCSUploader) SignUpload(ctx context.Context, kind Kind, uid, contentType string) (*Upload, error) {
	key, err := objectKey(kind, uid, contentType)
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()
	expires := time.Now().Add(u.ttl)
	signed, err := u.client.Bucket(u.bucket).SignedURL(key, uploadOptions(contentType, token, expires, u.signer))
	if err != nil {
		return nil, fmt.Errorf("sign url: %w", err)
	}
	return &Upload{
		UploadURL:   signed,
		Method:      http.MethodPut,
		ContentType: contentType,
		Headers:     uploadHeaders(contentType, token),
		PublicURL:   tokenURL(u.bucket, key, token),
		ExpiresAt:   expires.UTC(),
	}, nil
}

const downloadTokenHeader = "x-goog-meta-firebaseStorageDownloadTokens"

func uploadHeaders(contentType, token string) map[string]string {
	return map[string]string{
		"Content-Type":      contentType,
		downloadTokenHeader: token,
	}
}

func uploadOptions(contentType, token string, expires time.Time, sg *signer) *storage.SignedURLOptions {
	opts := &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Headers:     []string{downloadTokenHeader + ":" + token},
		Expires:     expires,
	}
	if sg != nil {
		opts.GoogleAccessID = sg.email
		opts.PrivateKey = sg.privateKey
	}
	return opts
}

// Put writes data with a Firebase download token so the object is readable
// through the Firebase Storage URL without making the bucket public.
func (u *GCSUploader) Put(ctx context.Context, kind Kind, uid, contentType string, data []byte) (string, error) {
	if len(data) > MaxUploadBytes {
		return "", ErrTooLarge
	}
	key, err := objectKey(kind, uid, contentType)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	u.log.Info("object stored", "object", key, "bytes", len(data))
	return tokenURL(u.bucket, key, token), nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}

func tokenURL(bucket, key, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(key), token)
}
