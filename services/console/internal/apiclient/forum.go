package apiclient

import (
	"context"
	"net/http"

	"adminconsole/pkg/domain"
	"adminconsole/pkg/listing"
)

// ListPosts reads one page of forum posts. Filters are sent as query
// parameters (category, status).
func (c *Client) ListPosts(ctx context.Context, page, limit int, search string, filters map[string]string) (listing.Page[domain.Post], error) {
	var data []byte
	if err := c.doJSON(ctx, http.MethodGet, "/forum", "/forum"+listQuery(page, limit, search, filters), nil, &data); err != nil {
		return listing.Page[domain.Post]{}, err
	}
	return listing.Normalize[domain.Post](data, limit, "posts")
}

func (c *Client) GetPost(ctx context.Context, id string) (domain.Post, error) {
	var data []byte
	if err := c.doJSON(ctx, http.MethodGet, "/forum/:id", "/forum/"+escape(id), nil, &data); err != nil {
		return domain.Post{}, err
	}
	return decodeEntity[domain.Post](data, "data", "post")
}

func (c *Client) CreatePost(ctx context.Context, in domain.PostInput) (domain.Post, error) {
	var data []byte
	if err := c.doJSON(ctx, http.MethodPost, "/forum", "/forum", in, &data); err != nil {
		return domain.Post{}, err
	}
	return decodeEntity[domain.Post](data, "data", "post")
}

func (c *Client) UpdatePost(ctx context.Context, id string, in domain.PostInput) (domain.Post, error) {
	var data []byte
	if err := c.doJSON(ctx, http.MethodPut, "/forum/:id", "/forum/"+escape(id), in, &data); err != nil {
		return domain.Post{}, err
	}
	return decodeEntity[domain.Post](data, "data", "post")
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/forum/:id", "/forum/"+escape(id), nil, nil)
}

// LikePost sends one like. No idempotency key is attached, so repeated calls
// count repeatedly.
func (c *Client) LikePost(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/forum/:id/like", "/forum/"+escape(id)+"/like", nil, nil)
}

func (c *Client) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	var data []byte
	if err := c.doJSON(ctx, http.MethodGet, "/forum/:id/comments", "/forum/"+escape(postID)+"/comments", nil, &data); err != nil {
		return nil, err
	}
	page, err := listing.Normalize[domain.Comment](data, listing.DefaultPageSize, "comments")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (c *Client) AddComment(ctx context.Context, postID, content string) (domain.Comment, error) {
	var data []byte
	payload := map[string]string{"content": content}
	if err := c.doJSON(ctx, http.MethodPost, "/forum/:id/comments", "/forum/"+escape(postID)+"/comments", payload, &data); err != nil {
		return domain.Comment{}, err
	}
	return decodeEntity[domain.Comment](data, "data", "comment")
}

func (c *Client) LikeComment(ctx context.Context, postID, commentID string) error {
	path := "/forum/" + escape(postID) + "/comments/" + escape(commentID) + "/like"
	return c.doJSON(ctx, http.MethodPost, "/forum/:id/comments/:cid/like", path, nil, nil)
}

func (c *Client) DeleteComment(ctx context.Context, postID, commentID string) error {
	path := "/forum/" + escape(postID) + "/comments/" + escape(commentID)
	return c.doJSON(ctx, http.MethodDelete, "/forum/:id/comments/:cid", path, nil, nil)
}
