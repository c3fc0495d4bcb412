package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore uploads user media and hands back a public download URL.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, objectPath string) error
}

type GCS struct {
	client *storage.Client
	bucket string
}

func NewGCS(client *storage.Client, bucket string) *GCS {
	return &GCS{client: client, bucket: bucket}
}

// Upload writes the object with a fresh firebase download token so the
// returned URL is readable without signed credentials.
func (g *GCS) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	token := uuid.NewString()
	w := g.client.Bucket(g.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	return PublicURL(g.bucket, objectPath, token), nil
}

func (g *GCS) Delete(ctx context.Context, objectPath string) error {
	err := g.client.Bucket(g.bucket).Object(objectPath).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}

func PublicURL(bucket, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectPath), token)
}

// Memory keeps objects in process. Used when no bucket is configured.
type Memory struct {
	mu      sync.Mutex
	Bucket  string
	objects map[string][]byte
}

func NewMemory(bucket string) *Memory {
	return &Memory{Bucket: bucket, objects: map[string][]byte{}}
}

func (m *Memory) Upload(_ context.Context, objectPath, _ string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[objectPath] = buf.Bytes()
	m.mu.Unlock()
	return PublicURL(m.Bucket, objectPath, uuid.NewString()), nil
}

func (m *Memory) Delete(_ context.Context, objectPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[objectPath]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, objectPath)
	return nil
}

func (m *Memory) Has(objectPath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[objectPath]
	return ok
}
