package resource

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// MaxAttachmentBytes is the largest accepted attachment.
const MaxAttachmentBytes = 5 << 20

var (
	ErrAttachmentEmpty    = errors.New("attachment is empty")
	ErrAttachmentTooLarge = fmt.Errorf("attachment exceeds %d MiB", MaxAttachmentBytes>>20)
	ErrAttachmentNotImage = errors.New("attachment is not an image")
)

// Attachment is a selected file waiting for upload. It is validated when
// created, so a held Attachment is always an image within the size limit.
type Attachment struct {
	name        string
	contentType string
	data        []byte
	uploading   atomic.Bool
}

// NewAttachment validates the selection. The content type is taken from
// contentType when it names an image, otherwise sniffed from data.
func NewAttachment(name, contentType string, data []byte) (*Attachment, error) {
	if len(data) == 0 {
		return nil, ErrAttachmentEmpty
	}
	if len(data) > MaxAttachmentBytes {
		return nil, ErrAttachmentTooLarge
	}
	ct := imageType(contentType)
	if ct == "" {
		ct = imageType(http.DetectContentType(data))
	}
	if ct == "" {
		return nil, ErrAttachmentNotImage
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		name = "upload"
	}
	return &Attachment{
		name:        name,
		contentType: ct,
		data:        bytes.Clone(data),
	}, nil
}

func imageType(ct string) string {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(ct))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return ""
	}
	return mediaType
}

func (a *Attachment) Name() string        { return a.name }
func (a *Attachment) ContentType() string { return a.contentType }
func (a *Attachment) Size() int64         { return int64(len(a.data)) }

// Reader returns a fresh reader over the content.
func (a *Attachment) Reader() io.Reader { return bytes.NewReader(a.data) }

// Preview renders the content as a data URL.
func (a *Attachment) Preview() string {
	return "data:" + a.contentType + ";base64," + base64.StdEncoding.EncodeToString(a.data)
}

// Uploading reports whether an upload of this attachment is in flight.
func (a *Attachment) Uploading() bool { return a.uploading.Load() }

// SetUploading flips the in-flight flag.
func (a *Attachment) SetUploading(v bool) { a.uploading.Store(v) }
