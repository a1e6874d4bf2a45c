package forum

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adminconsole/services/console/internal/apiclient"
	"adminconsole/services/console/internal/notify"
	"adminconsole/services/console/internal/upload"
)

// remote is a fake admin API recording each request line and body.
type remote struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string][]byte
}

func (r *remote) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		line := req.Method + " " + req.URL.Path
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.requests = append(r.requests, line)
		r.bodies[line] = body
		r.mu.Unlock()
		switch line {
		case "GET /forum":
			_, _ = w.Write([]byte(`{"data":[{"id":1,"title":"T","content":"C","status":"active"}],"total":1,"pages":1}`))
		case "GET /forum/1":
			_, _ = w.Write([]byte(`{"id":1,"title":"Lama","content":"Isi lama","status":"active","image":"https://cdn.example/old.png"}`))
		case "GET /forum/1/comments":
			_, _ = w.Write([]byte(`[]`))
		case "POST /forum":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":1}`))
		case "POST /upload":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"Penyimpanan tidak tersedia"}`))
		default:
			t.Errorf("unexpected request %s", line)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newScenario(t *testing.T) (*remote, *Forum, *notify.Recorder) {
	t.Helper()
	r := &remote{bodies: map[string][]byte{}}
	srv := httptest.NewServer(r.handler(t))
	t.Cleanup(srv.Close)
	client := apiclient.New(apiclient.Config{BaseURL: srv.URL})
	rec := &notify.Recorder{}
	f := New(Config{
		API:      client,
		Notifier: notify.NewCenter(notify.WithSinks(rec)),
		Uploader: upload.NewAPI(client),
	})
	t.Cleanup(f.Close)
	return r, f, rec
}

func TestScenarioCreatePostWithoutAttachment(t *testing.T) {
	r, f, _ := newScenario(t)
	e := f.Editor()
	e.OpenCreate()
	e.SetForm(PostForm{Title: "T", Content: "C", Category: "Teknologi"})

	require.NoError(t, e.Submit(context.Background()))

	assert.Equal(t, []string{"POST /forum", "GET /forum"}, r.requests)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(r.bodies["POST /forum"], &sent))
	assert.Equal(t, map[string]any{
		"title":    "T",
		"content":  "C",
		"category": "Teknologi",
		"image":    "",
		"status":   "active",
		"isPinned": false,
	}, sent)
	assert.False(t, e.IsOpen())
	assert.Len(t, f.Snapshot().Items, 1)
}

func TestScenarioEditUploadFailureAbortsSubmit(t *testing.T) {
	r, f, rec := newScenario(t)
	ctx := context.Background()
	th := f.Thread()
	_ = th.Load(ctx, "1")
	post := th.State().Post
	require.NotNil(t, post)

	e := f.Editor()
	e.OpenEdit(*post)
	e.SetForm(PostForm{Title: "Judul baru", Content: "Isi baru", Status: "active"})
	require.NoError(t, e.SelectAttachment("new.png", "image/png", pngData))

	require.Error(t, e.Submit(ctx))

	assert.NotContains(t, r.requests, "PUT /forum/1")
	assert.Contains(t, r.requests, "POST /upload")
	assert.Equal(t, []string{"Penyimpanan tidak tersedia"}, rec.Messages(notify.KindError))
	s := e.State()
	assert.True(t, e.IsOpen())
	assert.Equal(t, "Judul baru", s.Form.Title)
	assert.Equal(t, "Isi baru", s.Form.Content)
	assert.Equal(t, "new.png", s.AttachmentName, "attachment kept for a manual retry")
}
