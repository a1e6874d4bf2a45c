package forum

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"adminconsole/pkg/domain"
	"adminconsole/services/console/internal/resource"
)

// ErrNotCommentAuthor is returned when the signed-in user tries to like or
// delete someone else's comment. The API enforces this as well.
var ErrNotCommentAuthor = errors.New("only the comment author may do this")

const notAuthorMessage = "Anda hanya dapat mengubah komentar Anda sendiri"

// ErrNoThread is returned by thread mutations before a successful Load.
var ErrNoThread = errors.New("no post loaded")

// ThreadState is the detail view of one post and its comments.
type ThreadState struct {
	Post     *domain.Post     `json:"post"`
	Comments []domain.Comment `json:"comments"`
	Loading  bool             `json:"loading"`
	Error    string           `json:"error,omitempty"`
}

// Thread is the detail view of a post. Every comment mutation reloads it.
type Thread struct {
	forum *Forum

	mu     sync.Mutex
	postID string
	loads  uint64
	state  ThreadState
}

// State returns a copy of the thread state.
func (t *Thread) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state
	if s.Post != nil {
		p := *s.Post
		s.Post = &p
	}
	s.Comments = slices.Clone(s.Comments)
	if s.Comments == nil {
		s.Comments = []domain.Comment{}
	}
	return s
}

// PostID returns the id of the loaded post.
func (t *Thread) PostID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.postID
}

// Load reads the post and its comments concurrently. Only the most recently
// started load writes the state; an overtaken load returns its own error but
// leaves the state alone.
func (t *Thread) Load(ctx context.Context, id string) error {
	return t.load(ctx, strings.TrimSpace(id), true)
}

// load with switching false refreshes id only while it is still the
// displayed post.
func (t *Thread) load(ctx context.Context, id string, switching bool) error {
	t.mu.Lock()
	if !switching && id != t.postID {
		t.mu.Unlock()
		return nil
	}
	if id != t.postID {
		t.state = ThreadState{}
	}
	t.postID = id
	t.loads++
	gen := t.loads
	t.state.Loading = true
	t.mu.Unlock()

	var (
		post     domain.Post
		comments []domain.Comment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		post, err = t.forum.api.GetPost(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = t.forum.api.ListComments(gctx, id)
		return err
	})
	err := g.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.loads {
		t.forum.logger.Debug("overtaken thread load dropped", "post_id", id, "current", t.postID)
		return err
	}
	t.state.Loading = false
	if err != nil {
		t.state.Error = resource.MessageFor(err, "Gagal memuat post")
		t.state.Comments = nil
		t.forum.logger.Warn("thread load failed", "post_id", id, "err", err)
		return err
	}
	t.state = ThreadState{Post: &post, Comments: comments}
	return nil
}

func (t *Thread) mutate(ctx context.Context, msgs resource.Messages, call func(ctx context.Context, postID string) error) error {
	postID := t.PostID()
	if postID == "" {
		return ErrNoThread
	}
	if err := resource.Run(ctx, t.forum.notifier, msgs, func(ctx context.Context) error {
		return call(ctx, postID)
	}); err != nil {
		return err
	}
	_ = t.load(ctx, postID, false)
	return nil
}

// LikePost sends one like for the loaded post.
func (t *Thread) LikePost(ctx context.Context) error {
	return t.mutate(ctx, resource.Messages{
		Pending: "Menyukai post...",
		Success: "Post disukai",
		Failure: "Gagal menyukai post",
	}, func(ctx context.Context, postID string) error {
		return t.forum.api.LikePost(ctx, postID)
	})
}

// AddComment posts a comment on the loaded post.
func (t *Thread) AddComment(ctx context.Context, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		t.forum.notifier.Error("Komentar tidak boleh kosong")
		return resource.ErrValidation
	}
	return t.mutate(ctx, resource.Messages{
		Pending: "Mengirim komentar...",
		Success: "Komentar ditambahkan",
		Failure: "Gagal menambahkan komentar",
	}, func(ctx context.Context, postID string) error {
		_, err := t.forum.api.AddComment(ctx, postID, body)
		return err
	})
}

// LikeComment likes a comment written by the signed-in user.
func (t *Thread) LikeComment(ctx context.Context, commentID string) error {
	if err := t.requireAuthor(commentID); err != nil {
		t.forum.notifier.Error(notAuthorMessage)
		return err
	}
	return t.mutate(ctx, resource.Messages{
		Pending: "Menyukai komentar...",
		Success: "Komentar disukai",
		Failure: "Gagal menyukai komentar",
	}, func(ctx context.Context, postID string) error {
		return t.forum.api.LikeComment(ctx, postID, commentID)
	})
}

// DeleteComment deletes a comment written by the signed-in user after confirm
// agrees.
func (t *Thread) DeleteComment(ctx context.Context, commentID string, confirm resource.Confirm) error {
	if err := t.requireAuthor(commentID); err != nil {
		t.forum.notifier.Error(notAuthorMessage)
		return err
	}
	if confirm == nil || !confirm() {
		return resource.ErrNotConfirmed
	}
	return t.mutate(ctx, resource.Messages{
		Pending: "Menghapus komentar...",
		Success: "Komentar dihapus",
		Failure: "Gagal menghapus komentar",
	}, func(ctx context.Context, postID string) error {
		return t.forum.api.DeleteComment(ctx, postID, commentID)
	})
}

// IsOwnComment reports whether the signed-in user wrote the comment.
func (t *Thread) IsOwnComment(commentID string) bool {
	return t.requireAuthor(commentID) == nil
}

func (t *Thread) requireAuthor(commentID string) error {
	var me domain.ID
	if t.forum.session != nil {
		if p := t.forum.session.Snapshot().Profile; p != nil {
			me = p.ID
		}
	}
	t.mu.Lock()
	idx := slices.IndexFunc(t.state.Comments, func(c domain.Comment) bool {
		return string(c.ID) == commentID
	})
	var author *domain.Author
	if idx >= 0 {
		author = t.state.Comments[idx].Author
	}
	t.mu.Unlock()
	if me == "" || author == nil || author.ID != me {
		return fmt.Errorf("%w: comment %s", ErrNotCommentAuthor, commentID)
	}
	return nil
}
