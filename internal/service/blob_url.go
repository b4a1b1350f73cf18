package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/arquivoshare/portal-api/pkg/storage"
)

// BlobURLProvider issues time-limited download URLs for stored blobs. The
// URL is only generated after the access decision has already passed.
type BlobURLProvider interface {
	DownloadURL(ctx context.Context, fileID, blobKey string) (string, time.Time, error)
}

// LocalBlobURLs serves blobs from local disk through HMAC-signed tokens
// resolved by the API itself.
type LocalBlobURLs struct {
	signer    *storage.SignedURLSigner
	store     *storage.LocalStorage
	apiPrefix string
}

// NewLocalBlobURLs constructs the local driver.
func NewLocalBlobURLs(signer *storage.SignedURLSigner, store *storage.LocalStorage, apiPrefix string) *LocalBlobURLs {
	prefix := strings.TrimRight(apiPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &LocalBlobURLs{signer: signer, store: store, apiPrefix: prefix}
}

// DownloadURL returns a relative URL embedding a signed token.
func (l *LocalBlobURLs) DownloadURL(_ context.Context, fileID, blobKey string) (string, time.Time, error) {
	token, expiresAt, err := l.signer.Generate(fileID, blobKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return fmt.Sprintf("%s/files/blob/%s", l.apiPrefix, token), expiresAt, nil
}

// OpenByToken validates the token and opens the referenced blob.
func (l *LocalBlobURLs) OpenByToken(token string) (*os.File, string, error) {
	_, blobKey, _, err := l.signer.Parse(token)
	if err != nil {
		return nil, "", err
	}
	f, err := l.store.Open(blobKey)
	if err != nil {
		return nil, "", err
	}
	return f, blobKey, nil
}

// S3BlobURLs presigns GET URLs against the configured bucket.
type S3BlobURLs struct {
	store *storage.S3Storage
	ttl   time.Duration
}

// NewS3BlobURLs constructs the S3 driver.
func NewS3BlobURLs(store *storage.S3Storage, ttl time.Duration) *S3BlobURLs {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3BlobURLs{store: store, ttl: ttl}
}

// DownloadURL returns a presigned object URL.
func (p *S3BlobURLs) DownloadURL(ctx context.Context, _, blobKey string) (string, time.Time, error) {
	url, err := p.store.PresignGet(ctx, blobKey, p.ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, time.Now().UTC().Add(p.ttl), nil
}
