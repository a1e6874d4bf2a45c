package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type PostStatus string

const (
	StatusActive   PostStatus = "active"
	StatusInactive PostStatus = "inactive"
)

// Valid reports whether s is one of the known post statuses.
func (s PostStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

type Category string

// Categories is the fixed set a post category is drawn from.
var Categories = []Category{
	"Umum",
	"Teknologi",
	"Pendidikan",
	"Kesehatan",
	"Bisnis",
	"Hiburan",
	"Olahraga",
	"Lainnya",
}

// ParseCategory returns the known category matching s. Empty input is valid
// and means "no category".
func ParseCategory(s string) (Category, bool) {
	if s == "" {
		return "", true
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ID is an identifier assigned by the remote API. Some backends send numbers,
// others strings; both decode into the same value.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// User is the profile of the signed-in staff member.
type User struct {
	ID    ID       `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role,omitempty"`
}

// Author references the creator of a post or comment. A nil *Author means the
// item was posted anonymously.
type Author struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// DisplayName returns the author name, or "Anonim" for anonymous items.
func (a *Author) DisplayName() string {
	if a == nil || a.Name == "" {
		return "Anonim"
	}
	return a.Name
}

type Post struct {
	ID           ID         `json:"id"`
	Author       *Author    `json:"author,omitempty"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Category     Category   `json:"category,omitempty"`
	Image        string     `json:"image,omitempty"`
	Status       PostStatus `json:"status"`
	IsPinned     bool       `json:"isPinned"`
	Likes        int        `json:"likes"`
	Views        int        `json:"views"`
	CommentCount int        `json:"commentCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// PostInput is the body sent on create and update. Every field is always
// serialized; an empty image means "no image".
type PostInput struct {
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Category Category   `json:"category"`
	Image    string     `json:"image"`
	Status   PostStatus `json:"status"`
	IsPinned bool       `json:"isPinned"`
}

type Comment struct {
	ID        ID        `json:"id"`
	Author    *Author   `json:"author,omitempty"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Record is an untyped item of a catalog resource (users, products, events...).
type Record map[string]any

// RecordID returns the record identifier from "id" or "_id".
func (r Record) RecordID() string {
	for _, key := range []string{"id", "_id"} {
		switch v := r[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
