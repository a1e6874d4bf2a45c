package forum

import (
	"context"
	"fmt"
	"log/slog"

	"adminconsole/pkg/domain"
	"adminconsole/pkg/listing"
	"adminconsole/services/console/internal/notify"
	"adminconsole/services/console/internal/resource"
	"adminconsole/services/console/internal/session"
	"adminconsole/services/console/internal/upload"
)

// Filter keys understood by the forum list.
const (
	FilterCategory = "category"
	FilterStatus   = "status"
)

// API is the part of the remote API the forum uses.
type API interface {
	ListPosts(ctx context.Context, page, limit int, search string, filters map[string]string) (listing.Page[domain.Post], error)
	GetPost(ctx context.Context, id string) (domain.Post, error)
	CreatePost(ctx context.Context, in domain.PostInput) (domain.Post, error)
	UpdatePost(ctx context.Context, id string, in domain.PostInput) (domain.Post, error)
	DeletePost(ctx context.Context, id string) error
	LikePost(ctx context.Context, id string) error
	ListComments(ctx context.Context, postID string) ([]domain.Comment, error)
	AddComment(ctx context.Context, postID, content string) (domain.Comment, error)
	LikeComment(ctx context.Context, postID, commentID string) error
	DeleteComment(ctx context.Context, postID, commentID string) error
}

// CurrentUser exposes the signed-in profile. *session.Store satisfies it.
type CurrentUser interface {
	Snapshot() session.Snapshot
}

// Config wires the forum feature.
type Config struct {
	API      API
	Notifier notify.Notifier
	Uploader upload.Uploader
	Session  CurrentUser
	PageSize int
	Observer resource.FetchObserver
	Logger   *slog.Logger
	// ListOptions tune the list controller (debounce, stale handling).
	ListOptions []resource.Option
}

// Forum is the forum list view plus its editor.
type Forum struct {
	api      API
	notifier notify.Notifier
	uploader upload.Uploader
	session  CurrentUser
	logger   *slog.Logger

	list   *resource.Controller[domain.Post]
	editor *Editor
}

// New builds the forum feature. Nothing is fetched until Refresh.
func New(cfg Config) *Forum {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	f := &Forum{
		api:      cfg.API,
		notifier: cfg.Notifier,
		uploader: cfg.Uploader,
		session:  cfg.Session,
		logger:   logger.With("feature", "forum"),
	}
	f.list = resource.New(resource.Config[domain.Post]{
		Name:       "forum",
		Source:     resource.SourceFunc[domain.Post](f.listPosts),
		Notifier:   cfg.Notifier,
		PageSize:   cfg.PageSize,
		FetchError: "Gagal memuat daftar post",
		Observer:   cfg.Observer,
		Logger:     logger,
	}, cfg.ListOptions...)
	f.editor = &Editor{forum: f, form: DefaultForm()}
	return f
}

func (f *Forum) listPosts(ctx context.Context, p resource.ListParams) (listing.Page[domain.Post], error) {
	return f.api.ListPosts(ctx, p.Page, p.Limit, p.Search, p.Filters)
}

// List returns the underlying list controller.
func (f *Forum) List() *resource.Controller[domain.Post] { return f.list }

// Editor returns the create/edit modal.
func (f *Forum) Editor() *Editor { return f.editor }

// Snapshot returns the list state.
func (f *Forum) Snapshot() resource.State[domain.Post] { return f.list.Snapshot() }

func (f *Forum) Refresh(ctx context.Context) error { return f.list.Fetch(ctx) }

// Search sets the debounced search term.
func (f *Forum) Search(ctx context.Context, term string) { f.list.SetSearch(ctx, term) }

func (f *Forum) GoToPage(ctx context.Context, n int) error { return f.list.SetPage(ctx, n) }

// FilterCategory filters by category; "" clears the filter.
func (f *Forum) FilterCategory(ctx context.Context, category string) error {
	c, ok := domain.ParseCategory(category)
	if !ok {
		return fmt.Errorf("%w: unknown category %q", resource.ErrValidation, category)
	}
	return f.list.SetFilter(ctx, FilterCategory, string(c))
}

// FilterStatus filters by post status; "" clears the filter.
func (f *Forum) FilterStatus(ctx context.Context, status string) error {
	if status != "" && !domain.PostStatus(status).Valid() {
		return fmt.Errorf("%w: unknown status %q", resource.ErrValidation, status)
	}
	return f.list.SetFilter(ctx, FilterStatus, status)
}

// Like sends one like for a post and re-reads the list.
func (f *Forum) Like(ctx context.Context, id string) error {
	return f.list.Mutate(ctx, resource.Messages{
		Pending: "Menyukai post...",
		Success: "Post disukai",
		Failure: "Gagal menyukai post",
	}, func(ctx context.Context) error {
		return f.api.LikePost(ctx, id)
	})
}

// Delete removes a post after confirm agrees.
func (f *Forum) Delete(ctx context.Context, id string, confirm resource.Confirm) error {
	return f.list.Delete(ctx, confirm, resource.Messages{
		Pending: "Menghapus post...",
		Success: "Post berhasil dihapus",
		Failure: "Gagal menghapus post",
	}, func(ctx context.Context) error {
		return f.api.DeletePost(ctx, id)
	})
}

// Thread returns a detail view for one post.
func (f *Forum) Thread() *Thread {
	return &Thread{forum: f}
}

// Close stops background work.
func (f *Forum) Close() { f.list.Close() }
