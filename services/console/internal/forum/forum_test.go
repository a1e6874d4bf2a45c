package forum

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminconsole/pkg/domain"
	"adminconsole/pkg/listing"
	"adminconsole/pkg/store"
	"adminconsole/services/console/internal/notify"
	"adminconsole/services/console/internal/resource"
	"adminconsole/services/console/internal/session"
)

type fakeAPI struct {
	mu       sync.Mutex
	calls    []string
	posts    []domain.Post
	comments map[string][]domain.Comment
	fail     map[string]error
	inputs   []domain.PostInput
	liked    []string
	// held blocks GetPost for a post id until the channel is closed.
	held map[string]chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		posts: []domain.Post{
			{ID: "1", Title: "Halo", Content: "Isi", Status: domain.StatusActive, Image: "https://cdn.example/1.png"},
			{ID: "2", Title: "Rapat", Content: "Agenda", Status: domain.StatusInactive},
		},
		comments: map[string][]domain.Comment{
			"1": {
				{ID: "c1", Author: &domain.Author{ID: "u1", Name: "Admin"}, Content: "mine"},
				{ID: "c2", Author: &domain.Author{ID: "u2", Name: "Budi"}, Content: "theirs"},
				{ID: "c3", Content: "anon"},
			},
		},
		fail: map[string]error{},
		held: map[string]chan struct{}{},
	}
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail[call]
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) ListPosts(_ context.Context, page, limit int, _ string, _ map[string]string) (listing.Page[domain.Post], error) {
	if err := f.record("ListPosts"); err != nil {
		return listing.Page[domain.Post]{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return listing.Page[domain.Post]{
		Items:      append([]domain.Post(nil), f.posts...),
		TotalItems: len(f.posts),
		TotalPages: listing.TotalPages(len(f.posts), limit),
	}, nil
}

func (f *fakeAPI) GetPost(_ context.Context, id string) (domain.Post, error) {
	if err := f.record("GetPost"); err != nil {
		return domain.Post{}, err
	}
	f.mu.Lock()
	wait := f.held[id]
	f.mu.Unlock()
	if wait != nil {
		<-wait
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if string(p.ID) == id {
			return p, nil
		}
	}
	return domain.Post{}, errors.New("not found")
}

func (f *fakeAPI) CreatePost(_ context.Context, in domain.PostInput) (domain.Post, error) {
	if err := f.record("CreatePost"); err != nil {
		return domain.Post{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	p := domain.Post{ID: "3", Title: in.Title, Content: in.Content, Status: in.Status}
	f.posts = append(f.posts, p)
	return p, nil
}

func (f *fakeAPI) UpdatePost(_ context.Context, _ string, in domain.PostInput) (domain.Post, error) {
	if err := f.record("UpdatePost"); err != nil {
		return domain.Post{}, err
	}
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	return domain.Post{}, nil
}

func (f *fakeAPI) DeletePost(context.Context, string) error { return f.record("DeletePost") }
func (f *fakeAPI) LikePost(_ context.Context, id string) error {
	f.mu.Lock()
	f.liked = append(f.liked, id)
	f.mu.Unlock()
	return f.record("LikePost")
}

func (f *fakeAPI) ListComments(_ context.Context, postID string) ([]domain.Comment, error) {
	if err := f.record("ListComments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Comment(nil), f.comments[postID]...), nil
}

func (f *fakeAPI) AddComment(context.Context, string, string) (domain.Comment, error) {
	return domain.Comment{}, f.record("AddComment")
}

func (f *fakeAPI) LikeComment(context.Context, string, string) error {
	return f.record("LikeComment")
}

func (f *fakeAPI) DeleteComment(context.Context, string, string) error {
	return f.record("DeleteComment")
}

type fakeUploader struct {
	ref   string
	err   error
	calls int
}

func (u *fakeUploader) Upload(context.Context, *resource.Attachment) (string, error) {
	u.calls++
	return u.ref, u.err
}

type harness struct {
	api      *fakeAPI
	uploader *fakeUploader
	rec      *notify.Recorder
	forum    *Forum
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s := session.New(store.NewMemoryKV())
	require.NoError(t, s.Login(context.Background(), "tok", domain.User{ID: "u1", Name: "Admin"}))
	h := &harness{api: newFakeAPI(), uploader: &fakeUploader{ref: "https://cdn.example/new.png"}, rec: &notify.Recorder{}}
	h.forum = New(Config{
		API:      h.api,
		Notifier: notify.NewCenter(notify.WithSinks(h.rec)),
		Uploader: h.uploader,
		Session:  s,
	})
	t.Cleanup(h.forum.Close)
	return h
}

var pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestFiltersValidateInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.forum.FilterCategory(ctx, "Teknologi"))
	require.NoError(t, h.forum.FilterStatus(ctx, "inactive"))
	assert.Equal(t, map[string]string{"category": "Teknologi", "status": "inactive"}, h.forum.Snapshot().Query.Filters)

	assert.ErrorIs(t, h.forum.FilterCategory(ctx, "Politik"), resource.ErrValidation)
	assert.ErrorIs(t, h.forum.FilterStatus(ctx, "archived"), resource.ErrValidation)
	require.NoError(t, h.forum.FilterCategory(ctx, ""))
	assert.Equal(t, map[string]string{"status": "inactive"}, h.forum.Snapshot().Query.Filters)
}

func TestLikeRefetchesEveryTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.forum.Like(ctx, "1"))
	require.NoError(t, h.forum.Like(ctx, "1"))
	assert.Equal(t, []string{"LikePost", "ListPosts", "LikePost", "ListPosts"}, h.api.Calls())
}

func TestDeletePost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	err := h.forum.Delete(ctx, "1", func() bool { return false })
	assert.ErrorIs(t, err, resource.ErrNotConfirmed)
	assert.Empty(t, h.api.Calls())

	require.NoError(t, h.forum.Delete(ctx, "1", resource.Confirmed))
	assert.Equal(t, []string{"DeletePost", "ListPosts"}, h.api.Calls())
	assert.Equal(t, []string{"Post berhasil dihapus"}, h.rec.Messages(notify.KindSuccess))
}

func TestEditorOpenCreateResetsBuffer(t *testing.T) {
	h := newHarness(t)
	e := h.forum.Editor()
	assert.Equal(t, ModeClosed, e.State().Mode)

	e.OpenEdit(h.api.posts[0])
	require.NoError(t, e.SelectAttachment("a.png", "image/png", pngData))
	e.OpenCreate()

	s := e.State()
	assert.Equal(t, ModeCreate, s.Mode)
	assert.Equal(t, DefaultForm(), s.Form)
	assert.Empty(t, s.Preview)
	assert.Empty(t, s.AttachmentName)
}

func TestEditorOpenEditShowsExistingImage(t *testing.T) {
	h := newHarness(t)
	e := h.forum.Editor()
	e.OpenEdit(h.api.posts[0])

	s := e.State()
	assert.Equal(t, ModeEdit, s.Mode)
	assert.Equal(t, domain.ID("1"), s.EditingID)
	assert.Equal(t, "Halo", s.Form.Title)
	assert.Equal(t, "https://cdn.example/1.png", s.Preview)
	assert.Empty(t, h.api.Calls(), "opening the editor downloads nothing")

	require.NoError(t, e.SelectAttachment("new.png", "image/png", pngData))
	assert.Contains(t, e.State().Preview, "data:image/png;base64,")

	e.RemoveAttachment()
	s = e.State()
	assert.Empty(t, s.Preview)
	assert.Empty(t, s.Form.Image)
}

func TestSelectOversizedAttachmentRejected(t *testing.T) {
	h := newHarness(t)
	e := h.forum.Editor()
	e.OpenCreate()

	big := append(bytes.Clone(pngData), make([]byte, 6<<20)...)
	err := e.SelectAttachment("big.png", "image/png", big)
	assert.ErrorIs(t, err, resource.ErrAttachmentTooLarge)
	assert.Equal(t, []string{"Ukuran gambar maksimal 5MB"}, h.rec.Messages(notify.KindError))
	assert.Empty(t, e.State().AttachmentName)

	require.NoError(t, e.SelectAttachment("ok.png", "image/png", pngData))
	err = e.SelectAttachment("notes.txt", "text/plain", []byte("plain text"))
	assert.ErrorIs(t, err, resource.ErrAttachmentNotImage)
	assert.Equal(t, "ok.png", e.State().AttachmentName, "a rejected file leaves the slot unchanged")
	assert.Empty(t, h.api.Calls())
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t)
	e := h.forum.Editor()
	assert.ErrorIs(t, e.Submit(context.Background()), ErrEditorClosed)

	e.OpenCreate()
	e.SetForm(PostForm{Title: "  ", Content: "isi"})
	assert.ErrorIs(t, e.Submit(context.Background()), resource.ErrValidation)
	e.SetForm(PostForm{Title: "T", Content: "C", Category: "Politik"})
	assert.ErrorIs(t, e.Submit(context.Background()), resource.ErrValidation)

	assert.Equal(t, []string{"Judul dan konten wajib diisi", "Kategori tidak valid"}, h.rec.Messages(notify.KindError))
	assert.Empty(t, h.api.Calls())
	assert.True(t, e.IsOpen())
}

func TestSubmitCreateWithAttachment(t *testing.T) {
	h := newHarness(t)
	e := h.forum.Editor()
	e.OpenCreate()
	e.SetForm(PostForm{Title: "T", Content: "C", Category: "Teknologi", IsPinned: true})
	require.NoError(t, e.SelectAttachment("a.png", "image/png", pngData))

	require.NoError(t, e.Submit(context.Background()))
	assert.Equal(t, 1, h.uploader.calls)
	assert.Equal(t, []string{"CreatePost", "ListPosts"}, h.api.Calls())
	require.Len(t, h.api.inputs, 1)
	assert.Equal(t, domain.PostInput{
		Title: "T", Content: "C", Category: "Teknologi",
		Image: "https://cdn.example/new.png", Status: domain.StatusActive, IsPinned: true,
	}, h.api.inputs[0])
	assert.False(t, e.IsOpen())
	assert.Equal(t, DefaultForm(), e.State().Form)
}

func TestSubmitEditKeepsExistingImage(t *testing.T) {
	h := newHarness(t)
	e := h.forum.Editor()
	e.OpenEdit(h.api.posts[0])
	e.SetForm(PostForm{Title: "Halo lagi", Content: "Isi", Status: domain.StatusInactive})

	require.NoError(t, e.Submit(context.Background()))
	assert.Equal(t, 0, h.uploader.calls)
	assert.Equal(t, []string{"UpdatePost", "ListPosts"}, h.api.Calls())
	assert.Equal(t, "https://cdn.example/1.png", h.api.inputs[0].Image)
	assert.Equal(t, domain.StatusInactive, h.api.inputs[0].Status)
}

func TestSubmitMutationFailureKeepsModalOpen(t *testing.T) {
	h := newHarness(t)
	h.api.fail["CreatePost"] = errors.New("500")
	e := h.forum.Editor()
	e.OpenCreate()
	e.SetForm(PostForm{Title: "T", Content: "C"})

	require.Error(t, e.Submit(context.Background()))
	assert.True(t, e.IsOpen())
	assert.Equal(t, "T", e.State().Form.Title)
	assert.Equal(t, []string{"CreatePost"}, h.api.Calls(), "no re-fetch after a failed create")
	assert.Equal(t, []string{"Gagal membuat post"}, h.rec.Messages(notify.KindError))
}

func TestThreadLoadAndComments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	th := h.forum.Thread()
	assert.ErrorIs(t, th.LikePost(ctx), ErrNoThread)

	require.NoError(t, th.Load(ctx, "1"))
	s := th.State()
	require.NotNil(t, s.Post)
	assert.Equal(t, "Halo", s.Post.Title)
	assert.Len(t, s.Comments, 3)

	require.NoError(t, th.AddComment(ctx, "  bagus  "))
	assert.ErrorIs(t, th.AddComment(ctx, "   "), resource.ErrValidation)
	require.NoError(t, th.LikePost(ctx))

	calls := h.api.Calls()
	assert.Contains(t, calls, "AddComment")
	assert.Equal(t, 3, countCalls(calls, "GetPost"), "every thread mutation reloads")
}

func TestThreadCommentAuthorship(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	th := h.forum.Thread()
	require.NoError(t, th.Load(ctx, "1"))

	assert.True(t, th.IsOwnComment("c1"))
	assert.False(t, th.IsOwnComment("c2"))
	assert.False(t, th.IsOwnComment("c3"), "anonymous comments belong to nobody")

	assert.ErrorIs(t, th.LikeComment(ctx, "c2"), ErrNotCommentAuthor)
	assert.ErrorIs(t, th.DeleteComment(ctx, "c3", resource.Confirmed), ErrNotCommentAuthor)
	assert.Len(t, h.rec.Messages(notify.KindError), 2)
	assert.NotContains(t, h.api.Calls(), "LikeComment")

	assert.ErrorIs(t, th.DeleteComment(ctx, "c1", func() bool { return false }), resource.ErrNotConfirmed)
	require.NoError(t, th.LikeComment(ctx, "c1"))
	require.NoError(t, th.DeleteComment(ctx, "c1", resource.Confirmed))
	assert.Equal(t, 1, countCalls(h.api.Calls(), "DeleteComment"))
}

func TestThreadLoadFailure(t *testing.T) {
	h := newHarness(t)
	h.api.fail["ListComments"] = errors.New("timeout")
	th := h.forum.Thread()
	require.Error(t, th.Load(context.Background(), "1"))
	s := th.State()
	assert.Equal(t, "Gagal memuat post", s.Error)
	assert.Empty(t, s.Comments)
	assert.False(t, s.Loading)
}

func TestThreadOvertakenLoadIsDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	release := make(chan struct{})
	h.api.held["1"] = release
	th := h.forum.Thread()

	slow := make(chan error, 1)
	go func() { slow <- th.Load(ctx, "1") }()
	require.Eventually(t, func() bool { return countCalls(h.api.Calls(), "GetPost") == 1 }, time.Second, time.Millisecond)

	require.NoError(t, th.Load(ctx, "2"))
	close(release)
	require.NoError(t, <-slow)

	s := th.State()
	require.NotNil(t, s.Post)
	assert.Equal(t, "Rapat", s.Post.Title, "the slower load for post 1 must not replace post 2")
	assert.Empty(t, s.Comments)
	assert.False(t, s.Loading)
	assert.Equal(t, "2", th.PostID())

	require.NoError(t, th.LikePost(ctx))
	h.api.mu.Lock()
	liked := append([]string(nil), h.api.liked...)
	h.api.mu.Unlock()
	assert.Equal(t, []string{"2"}, liked)
	assert.Equal(t, "Rapat", th.State().Post.Title)
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}
