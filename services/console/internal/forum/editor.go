package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"adminconsole/pkg/domain"
	"adminconsole/services/console/internal/resource"
)

// ErrEditorClosed is returned by Submit when no modal is open.
var ErrEditorClosed = errors.New("editor is not open")

// PostForm is the editor's form buffer.
type PostForm struct {
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Category domain.Category   `json:"category"`
	Image    string            `json:"image"`
	Status   domain.PostStatus `json:"status"`
	IsPinned bool              `json:"isPinned"`
}

// DefaultForm is the buffer a new post starts from.
func DefaultForm() PostForm {
	return PostForm{Status: domain.StatusActive}
}

func formFrom(p domain.Post) PostForm {
	status := p.Status
	if !status.Valid() {
		status = domain.StatusActive
	}
	return PostForm{
		Title:    p.Title,
		Content:  p.Content,
		Category: p.Category,
		Image:    p.Image,
		Status:   status,
		IsPinned: p.IsPinned,
	}
}

func (f PostForm) input() domain.PostInput {
	return domain.PostInput{
		Title:    strings.TrimSpace(f.Title),
		Content:  strings.TrimSpace(f.Content),
		Category: f.Category,
		Image:    f.Image,
		Status:   f.Status,
		IsPinned: f.IsPinned,
	}
}

func (f PostForm) validate() (string, bool) {
	if strings.TrimSpace(f.Title) == "" || strings.TrimSpace(f.Content) == "" {
		return "Judul dan konten wajib diisi", false
	}
	if _, ok := domain.ParseCategory(string(f.Category)); !ok {
		return "Kategori tidak valid", false
	}
	if !f.Status.Valid() {
		return "Status tidak valid", false
	}
	return "", true
}

// Mode is what the modal is doing.
type Mode string

const (
	ModeClosed Mode = "closed"
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// EditorState is a snapshot of the modal.
type EditorState struct {
	Mode      Mode      `json:"mode"`
	EditingID domain.ID `json:"editingId,omitempty"`
	Form      PostForm  `json:"form"`
	// Preview is the pending attachment as a data URL, or the existing image
	// reference when editing.
	Preview        string `json:"preview,omitempty"`
	AttachmentName string `json:"attachmentName,omitempty"`
	Uploading      bool   `json:"uploading"`
	Submitting     bool   `json:"submitting"`
}

// Editor is the create/edit modal with its form buffer and pending
// attachment.
type Editor struct {
	forum *Forum

	mu         sync.Mutex
	mode       Mode
	editingID  domain.ID
	form       PostForm
	attachment *resource.Attachment
	submitting bool
}

// State returns a snapshot of the modal.
func (e *Editor) State() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	mode := e.mode
	if mode == "" {
		mode = ModeClosed
	}
	s := EditorState{
		Mode:       mode,
		EditingID:  e.editingID,
		Form:       e.form,
		Preview:    e.form.Image,
		Submitting: e.submitting,
	}
	if e.attachment != nil {
		s.Preview = e.attachment.Preview()
		s.AttachmentName = e.attachment.Name()
		s.Uploading = e.attachment.Uploading()
	}
	return s
}

// IsOpen reports whether the modal is open.
func (e *Editor) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode == ModeCreate || e.mode == ModeEdit
}

// OpenCreate opens the modal with a default buffer.
func (e *Editor) OpenCreate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = ModeCreate
	e.editingID = ""
	e.form = DefaultForm()
	e.attachment = nil
}

// OpenEdit opens the modal seeded from post. Its existing image is shown as
// the preview; nothing is downloaded.
func (e *Editor) OpenEdit(post domain.Post) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = ModeEdit
	e.editingID = post.ID
	e.form = formFrom(post)
	e.attachment = nil
}

// SetForm replaces the form buffer. The image field is kept from the current
// buffer; it changes only through attachment selection and removal.
func (e *Editor) SetForm(form PostForm) {
	e.mu.Lock()
	defer e.mu.Unlock()
	form.Image = e.form.Image
	if form.Status == "" {
		form.Status = domain.StatusActive
	}
	e.form = form
}

// SelectAttachment validates and holds a file for upload on submit. A rejected
// file leaves the slot as it was and shows an error toast.
func (e *Editor) SelectAttachment(name, contentType string, data []byte) error {
	a, err := resource.NewAttachment(name, contentType, data)
	if err != nil {
		e.forum.notifier.Error(attachmentMessage(err))
		return fmt.Errorf("%w: %w", resource.ErrValidation, err)
	}
	e.mu.Lock()
	e.attachment = a
	e.mu.Unlock()
	return nil
}

func attachmentMessage(err error) string {
	switch {
	case errors.Is(err, resource.ErrAttachmentTooLarge):
		return "Ukuran gambar maksimal 5MB"
	case errors.Is(err, resource.ErrAttachmentNotImage):
		return "File harus berupa gambar"
	default:
		return "File tidak valid"
	}
}

// RemoveAttachment discards the pending attachment and the current image.
func (e *Editor) RemoveAttachment() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attachment = nil
	e.form.Image = ""
}

// Close resets the buffer and discards any pending attachment.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = ModeClosed
	e.editingID = ""
	e.form = DefaultForm()
	e.attachment = nil
}

// Submit validates the buffer, uploads the pending attachment if any, creates
// or updates the post, re-reads the list and closes the modal, in that order.
// Any failure leaves the modal open with the buffer intact.
func (e *Editor) Submit(ctx context.Context) error {
	e.mu.Lock()
	if e.mode != ModeCreate && e.mode != ModeEdit {
		e.mu.Unlock()
		return ErrEditorClosed
	}
	if e.submitting {
		e.mu.Unlock()
		return errors.New("submit already in progress")
	}
	mode, id, form, att := e.mode, e.editingID, e.form, e.attachment
	e.submitting = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.submitting = false
		e.mu.Unlock()
	}()

	n := e.forum.notifier
	if msg, ok := form.validate(); !ok {
		n.Error(msg)
		return resource.ErrValidation
	}

	if att != nil {
		var ref string
		err := resource.Run(ctx, n, resource.Messages{
			Pending: "Mengunggah gambar...",
			Failure: "Gagal mengunggah gambar",
		}, func(ctx context.Context) error {
			var err error
			ref, err = e.forum.uploader.Upload(ctx, att)
			return err
		})
		if err != nil {
			e.forum.logger.Warn("attachment upload failed", "name", att.Name(), "err", err)
			return fmt.Errorf("upload attachment: %w", err)
		}
		form.Image = ref
	}

	input := form.input()
	var err error
	if mode == ModeCreate {
		err = e.forum.list.Mutate(ctx, resource.Messages{
			Pending: "Membuat post...",
			Success: "Post berhasil dibuat",
			Failure: "Gagal membuat post",
		}, func(ctx context.Context) error {
			_, err := e.forum.api.CreatePost(ctx, input)
			return err
		})
	} else {
		err = e.forum.list.Mutate(ctx, resource.Messages{
			Pending: "Memperbarui post...",
			Success: "Post berhasil diperbarui",
			Failure: "Gagal memperbarui post",
		}, func(ctx context.Context) error {
			_, err := e.forum.api.UpdatePost(ctx, string(id), input)
			return err
		})
	}
	if err != nil {
		return err
	}
	e.Close()
	return nil
}
