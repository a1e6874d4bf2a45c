package apiclient

import (
	"context"
	"net/http"
	"path"
	"strings"

	"adminconsole/pkg/domain"
	"adminconsole/pkg/listing"
)

// Records calls the endpoints of one catalog resource, e.g. "/users".
type Records struct {
	client *Client
	path   string
	key    string
}

// Records returns the record endpoints under resourcePath. Paginated list
// responses are read from "items" or the last path segment ("users").
func (c *Client) Records(resourcePath string) *Records {
	p := "/" + strings.Trim(strings.TrimSpace(resourcePath), "/")
	return &Records{client: c, path: p, key: path.Base(p)}
}

// Path returns the resource path.
func (r *Records) Path() string { return r.path }

func (r *Records) List(ctx context.Context, page, limit int, search string, filters map[string]string) (listing.Page[domain.Record], error) {
	var data []byte
	if err := r.client.doJSON(ctx, http.MethodGet, r.path, r.path+listQuery(page, limit, search, filters), nil, &data); err != nil {
		return listing.Page[domain.Record]{}, err
	}
	return listing.Normalize[domain.Record](data, limit, r.key)
}

func (r *Records) Create(ctx context.Context, rec domain.Record) (domain.Record, error) {
	var data []byte
	if err := r.client.doJSON(ctx, http.MethodPost, r.path, r.path, rec, &data); err != nil {
		return nil, err
	}
	return decodeEntity[domain.Record](data, "data")
}

func (r *Records) Update(ctx context.Context, id string, rec domain.Record) (domain.Record, error) {
	var data []byte
	if err := r.client.doJSON(ctx, http.MethodPut, r.path+"/:id", r.path+"/"+escape(id), rec, &data); err != nil {
		return nil, err
	}
	return decodeEntity[domain.Record](data, "data")
}

func (r *Records) Delete(ctx context.Context, id string) error {
	return r.client.doJSON(ctx, http.MethodDelete, r.path+"/:id", r.path+"/"+escape(id), nil, nil)
}
