package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"adminconsole/pkg/storage"
	"adminconsole/services/console/internal/resource"
)

// Uploader turns a pending attachment into a durable reference.
type Uploader interface {
	Upload(ctx context.Context, a *resource.Attachment) (string, error)
}

// FileClient is the part of the API client used by API.
type FileClient interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
}

// API uploads through the remote API's upload endpoint.
type API struct {
	client FileClient
}

func NewAPI(client FileClient) *API {
	return &API{client: client}
}

func (u *API) Upload(ctx context.Context, a *resource.Attachment) (string, error) {
	if a == nil {
		return "", errors.New("no attachment")
	}
	a.SetUploading(true)
	defer a.SetUploading(false)
	return u.client.Upload(ctx, a.Name(), a.ContentType(), a.Reader())
}

// Object uploads straight to an object store and returns the object URL.
type Object struct {
	store  storage.ObjectStore
	prefix string
}

func NewObject(store storage.ObjectStore, prefix string) *Object {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "uploads"
	}
	return &Object{store: store, prefix: prefix}
}

func (u *Object) Upload(ctx context.Context, a *resource.Attachment) (string, error) {
	if a == nil {
		return "", errors.New("no attachment")
	}
	a.SetUploading(true)
	defer a.SetUploading(false)

	key := storage.ObjectKey(u.prefix, a.Name())
	if err := u.store.Put(ctx, key, a.Reader(), a.Size(), a.ContentType()); err != nil {
		return "", fmt.Errorf("store attachment: %w", err)
	}
	ref, err := u.store.URL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("attachment url: %w", err)
	}
	return ref, nil
}
