package model

import (
	"encoding/json"
	"time"
)

// Permission is the access level a caller holds on a document.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

// Valid reports whether p is one of the known levels.
func (p Permission) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionAdmin:
		return true
	}
	return false
}

// CanWrite reports whether p allows content mutation.
func (p Permission) CanWrite() bool {
	return p == PermissionWrite || p == PermissionAdmin
}

type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	OwnerID     string    `json:"owner_id"`
	IsPublic    bool      `json:"is_public"`
	WordCount   int       `json:"word_count"`
	ReadingTime int       `json:"reading_time"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Version is an immutable snapshot of a document's content. Version numbers
// are strictly increasing per document with no gaps.
type Version struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	VersionNumber int       `json:"version_number"`
	Content       string    `json:"content"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// ShareGrant admits a non-owner to a document via an unguessable token.
// A grant is usable iff ExpiresAt is nil or in the future; revocation
// deletes the row.
type ShareGrant struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	Token      string     `json:"share_token"`
	Permission Permission `json:"permission_level"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

type CreateDocRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsPublic bool   `json:"is_public"`
}

type SaveDocRequest struct {
	DocID   string          `json:"document_id"`
	Content json.RawMessage `json:"content"`
}

type ShareRequest struct {
	DocID      string     `json:"document_id"`
	Permission Permission `json:"permission_level"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type ShareResponse struct {
	Token    string `json:"share_token"`
	ShareURL string `json:"share_url"`
}

// ChangeAck is returned to the submitting caller only; other room members
// learn about the change through the broadcast instead.
type ChangeAck struct {
	DocID         string    `json:"document_id"`
	VersionNumber int       `json:"version_number"`
	WordCount     int       `json:"word_count"`
	ReadingTime   int       `json:"reading_time"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type DocumentMetadata struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	IsPublic    bool      `json:"is_public"`
	WordCount   int       `json:"word_count"`
	ReadingTime int       `json:"reading_time"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SharedDocument is the public view resolved from a share token.
type SharedDocument struct {
	DocID      string     `json:"document_id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Permission Permission `json:"permission_level"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
