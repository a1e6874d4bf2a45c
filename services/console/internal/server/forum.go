package server

import (
	"errors"
	"io"
	"net/http"

	"adminconsole/pkg/domain"
	"adminconsole/services/console/internal/forum"
	"adminconsole/services/console/internal/resource"

	"github.com/go-chi/chi/v5"
)

type searchRequest struct {
	Term string `json:"term"`
}

type pageRequest struct {
	Page int `json:"page"`
}

type forumFilterRequest struct {
	Category *string `json:"category"`
	Status   *string `json:"status"`
}

type editorOpenRequest struct {
	Mode   forum.Mode `json:"mode"`
	PostID string     `json:"postId"`
}

type commentRequest struct {
	Content string `json:"content"`
}

// list
func (s *Server) handleForumState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Forum.Snapshot())
}

// handleForumFetch reads the current page. A failed read is reported in the
// returned state, not as an error status.
func (s *Server) handleForumFetch(w http.ResponseWriter, r *http.Request) {
	_ = s.app.Forum.Refresh(r.Context())
	writeJSON(w, http.StatusOK, s.app.Forum.Snapshot())
}

func (s *Server) handleForumSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.app.Forum.Search(r.Context(), req.Term)
	writeJSON(w, http.StatusAccepted, s.app.Forum.Snapshot())
}

func (s *Server) handleForumFilters(w http.ResponseWriter, r *http.Request) {
	var req forumFilterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Category != nil {
		if err := s.app.Forum.FilterCategory(r.Context(), *req.Category); err != nil && errors.Is(err, resource.ErrValidation) {
			writeActionError(w, err)
			return
		}
	}
	if req.Status != nil {
		if err := s.app.Forum.FilterStatus(r.Context(), *req.Status); err != nil && errors.Is(err, resource.ErrValidation) {
			writeActionError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.app.Forum.Snapshot())
}

func (s *Server) handleForumPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	_ = s.app.Forum.GoToPage(r.Context(), req.Page)
	writeJSON(w, http.StatusOK, s.app.Forum.Snapshot())
}

func (s *Server) handlePostLike(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Forum.Like(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Forum.Snapshot())
}

func (s *Server) handlePostDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.app.Forum.Delete(r.Context(), id, confirmed(r)); err != nil {
		writeActionError(w, err)
		return
	}
	s.audit(r, "console.forum.delete", "success", "post_id", id)
	writeJSON(w, http.StatusOK, s.app.Forum.Snapshot())
}

// editor
func (s *Server) handleEditorState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Forum.Editor().State())
}

func (s *Server) handleEditorOpen(w http.ResponseWriter, r *http.Request) {
	var req editorOpenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	editor := s.app.Forum.Editor()
	switch req.Mode {
	case forum.ModeCreate:
		editor.OpenCreate()
	case forum.ModeEdit:
		post, err := s.findPost(r, req.PostID)
		if err != nil {
			writeActionError(w, err)
			return
		}
		editor.OpenEdit(post)
	default:
		writeError(w, http.StatusBadRequest, "mode must be create or edit")
		return
	}
	writeJSON(w, http.StatusOK, editor.State())
}

// findPost prefers the row already on the page and falls back to a read.
func (s *Server) findPost(r *http.Request, id string) (domain.Post, error) {
	for _, p := range s.app.Forum.Snapshot().Items {
		if string(p.ID) == id {
			return p, nil
		}
	}
	return s.app.API.GetPost(r.Context(), id)
}

func (s *Server) handleEditorForm(w http.ResponseWriter, r *http.Request) {
	var form forum.PostForm
	if err := decodeBody(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	editor := s.app.Forum.Editor()
	if !editor.IsOpen() {
		writeActionError(w, forum.ErrEditorClosed)
		return
	}
	editor.SetForm(form)
	writeJSON(w, http.StatusOK, editor.State())
}

// handleEditorAttachment takes the file from the multipart field "file". The
// body may exceed the attachment limit so an oversized image is rejected with
// the attachment error rather than a transport one.
func (s *Server) handleEditorAttachment(w http.ResponseWriter, r *http.Request) {
	editor := s.app.Forum.Editor()
	if !editor.IsOpen() {
		writeActionError(w, forum.ErrEditorClosed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 2*resource.MaxAttachmentBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if err := editor.SelectAttachment(header.Filename, header.Header.Get("Content-Type"), data); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, editor.State())
}

func (s *Server) handleEditorRemoveAttachment(w http.ResponseWriter, _ *http.Request) {
	editor := s.app.Forum.Editor()
	editor.RemoveAttachment()
	writeJSON(w, http.StatusOK, editor.State())
}

func (s *Server) handleEditorSubmit(w http.ResponseWriter, r *http.Request) {
	editor := s.app.Forum.Editor()
	if err := editor.Submit(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.Forum.Snapshot())
}

func (s *Server) handleEditorClose(w http.ResponseWriter, _ *http.Request) {
	s.app.Forum.Editor().Close()
	w.WriteHeader(http.StatusNoContent)
}

// thread
func (s *Server) handleThreadState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.thread.State())
}

func (s *Server) handleThreadLoad(w http.ResponseWriter, r *http.Request) {
	_ = s.thread.Load(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, s.thread.State())
}

func (s *Server) handleThreadLike(w http.ResponseWriter, r *http.Request) {
	if err := s.thread.LikePost(r.Context()); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.thread.State())
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.thread.AddComment(r.Context(), req.Content); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.thread.State())
}

func (s *Server) handleLikeComment(w http.ResponseWriter, r *http.Request) {
	if err := s.thread.LikeComment(r.Context(), chi.URLParam(r, "commentID")); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.thread.State())
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "commentID")
	if err := s.thread.DeleteComment(r.Context(), id, confirmed(r)); err != nil {
		if errors.Is(err, forum.ErrNotCommentAuthor) {
			s.audit(r, "console.comment.delete", "fail", "comment_id", id, "reason", "not_author")
		}
		writeActionError(w, err)
		return
	}
	s.audit(r, "console.comment.delete", "success", "comment_id", id)
	writeJSON(w, http.StatusOK, s.thread.State())
}
