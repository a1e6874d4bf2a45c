// Package listing turns the list payloads returned by the remote API into one
// canonical page shape. Shape detection happens here and nowhere else.
package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrItemDecode reports a recognized list shape whose items do not decode.
var ErrItemDecode = errors.New("list items do not decode")

// DefaultPageSize is the page size used by list views unless configured.
const DefaultPageSize = 10

// Page is the canonical result of a list read.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// TotalPages returns ceil(total/pageSize). It is 0 only when total is 0.
func TotalPages(total, pageSize int) int {
	if total <= 0 {
		return 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return (total + pageSize - 1) / pageSize
}

type shapeKind int

const (
	shapeUnknown shapeKind = iota
	shapeArray
	shapePaginated
	shapeEnveloped
)

// detected is the tagged variant produced by detect.
type detected struct {
	kind  shapeKind
	items json.RawMessage
	total *int
	pages *int
}

// Normalize decodes raw into a Page. Accepted shapes:
//
//	[...]                                             bare array
//	{"<itemKey>": [...], "pagination": {...}}         paginated object
//	{"data": [...], "total": n, "pages": m}           enveloped object
//
// itemKeys lists the extra keys (besides "items") under which a paginated
// object may carry its list, e.g. "posts". Anything unrecognized yields an
// empty page and no error. A recognized shape whose items fail to decode
// returns an error wrapping ErrItemDecode.
func Normalize[T any](raw []byte, pageSize int, itemKeys ...string) (Page[T], error) {
	d := detect(raw, itemKeys)
	if d.kind == shapeUnknown {
		return Page[T]{Items: []T{}}, nil
	}
	var items []T
	if err := json.Unmarshal(d.items, &items); err != nil {
		return Page[T]{Items: []T{}}, fmt.Errorf("%w: %v", ErrItemDecode, err)
	}
	if items == nil {
		items = []T{}
	}
	page := Page[T]{Items: items}
	switch {
	case d.total != nil:
		page.TotalItems = *d.total
		page.TotalPages = TotalPages(page.TotalItems, pageSize)
	case d.kind == shapeArray:
		page.TotalItems = len(items)
		page.TotalPages = TotalPages(page.TotalItems, pageSize)
	case d.pages != nil:
		page.TotalItems = len(items)
		page.TotalPages = *d.pages
	default:
		page.TotalItems = len(items)
		page.TotalPages = TotalPages(page.TotalItems, pageSize)
	}
	return page, nil
}

func detect(raw []byte, itemKeys []string) detected {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return detected{}
	}
	switch raw[0] {
	case '[':
		return detected{kind: shapeArray, items: raw}
	case '{':
	default:
		return detected{}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return detected{}
	}

	keys := append([]string{"items"}, itemKeys...)
	for _, key := range keys {
		list, ok := obj[key]
		if !ok || !isArray(list) {
			continue
		}
		d := detected{kind: shapePaginated, items: list}
		if meta, ok := obj["pagination"]; ok {
			var m map[string]json.RawMessage
			if err := json.Unmarshal(meta, &m); err == nil {
				d.total = firstInt(m, "total", "totalItems", "count")
				d.pages = firstInt(m, "totalPages", "pages")
			}
		}
		if d.total == nil {
			d.total = firstInt(obj, "total", "totalItems", "count")
		}
		return d
	}

	if list, ok := obj["data"]; ok && isArray(list) {
		return detected{
			kind:  shapeEnveloped,
			items: list,
			total: firstInt(obj, "total", "totalItems"),
			pages: firstInt(obj, "pages", "totalPages"),
		}
	}
	return detected{}
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func firstInt(obj map[string]json.RawMessage, keys ...string) *int {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		n := int(f)
		if n < 0 {
			n = 0
		}
		return &n
	}
	return nil
}

// ReferenceFrom extracts the durable reference from an upload response:
// {"url"}, {"file":{"url"}} or {"data":{"url"}}. Unrecognized input yields "".
func ReferenceFrom(raw []byte) string {
	var resp struct {
		URL  string `json:"url"`
		File *struct {
			URL string `json:"url"`
		} `json:"file"`
		Data *struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ""
	}
	switch {
	case resp.URL != "":
		return resp.URL
	case resp.File != nil && resp.File.URL != "":
		return resp.File.URL
	case resp.Data != nil && resp.Data.URL != "":
		return resp.Data.URL
	}
	return ""
}
