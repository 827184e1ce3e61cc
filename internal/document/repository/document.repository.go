package repository

import (
	"database/sql"
	"time"

	"inkwell/internal/document/model"
	"inkwell/pkg/logger"

	"github.com/google/uuid"
)

// DocumentRepository owns all persisted document state. Nothing else in the
// process touches the database for documents, versions, or share grants.
type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(doc model.Document) error {
	_, err := r.DB.Exec(`INSERT INTO documents (id, title, content, owner_id, is_public, word_count, reading_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		doc.ID, doc.Title, doc.Content, doc.OwnerID, doc.IsPublic, doc.WordCount, doc.ReadingTime)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document %s: %v", doc.ID, err)
	}
	return err
}

// GetForUser fetches a single document visible to userID: owned or public.
// Returns sql.ErrNoRows for both a missing and a forbidden document so the
// two cases are indistinguishable to the caller.
func (r *DocumentRepository) GetForUser(docID, userID string) (model.Document, error) {
	var doc model.Document
	err := r.DB.QueryRow(`SELECT id, title, content, owner_id, is_public, word_count, reading_time, created_at, updated_at
		FROM documents WHERE id = $1 AND (owner_id = $2 OR is_public = TRUE)`, docID, userID).
		Scan(&doc.ID, &doc.Title, &doc.Content, &doc.OwnerID, &doc.IsPublic, &doc.WordCount, &doc.ReadingTime, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to get document %s: %v", docID, err)
	}
	return doc, err
}

func (r *DocumentRepository) GetOwnerID(docID string) (string, error) {
	var ownerID string
	err := r.DB.QueryRow("SELECT owner_id FROM documents WHERE id = $1", docID).Scan(&ownerID)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to get owner ID for doc %s: %v", docID, err)
	}
	return ownerID, err
}

func (r *DocumentRepository) ListByOwner(userID string) ([]model.DocumentMetadata, error) {
	rows, err := r.DB.Query(`SELECT id, title, is_public, word_count, reading_time, updated_at
		FROM documents WHERE owner_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	var docs []model.DocumentMetadata
	for rows.Next() {
		var d model.DocumentMetadata
		if err := rows.Scan(&d.ID, &d.Title, &d.IsPublic, &d.WordCount, &d.ReadingTime, &d.UpdatedAt); err != nil {
			continue
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes the document; versions and share grants go with it via
// ON DELETE CASCADE.
func (r *DocumentRepository) Delete(docID string) error {
	_, err := r.DB.Exec("DELETE FROM documents WHERE id = $1", docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", docID, err)
	}
	return err
}

// AppendVersion is the single mutation path for document content. It runs
// in one transaction that locks the document row, so concurrent submissions
// for the same document are totally ordered and version numbers never
// collide, while submissions for different documents proceed in parallel.
func (r *DocumentRepository) AppendVersion(docID, content, authorID string, wordCount, readingTime int) (model.ChangeAck, error) {
	var ack model.ChangeAck

	tx, err := r.DB.Begin()
	if err != nil {
		logger.Sugar.Errorf("Failed to begin version tx for doc %s: %v", docID, err)
		return ack, err
	}
	defer tx.Rollback()

	var lockedID string
	if err := tx.QueryRow("SELECT id FROM documents WHERE id = $1 FOR UPDATE", docID).Scan(&lockedID); err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to lock doc %s: %v", docID, err)
		}
		return ack, err
	}

	var next int
	if err := tx.QueryRow("SELECT COALESCE(MAX(version_number), 0) + 1 FROM document_versions WHERE document_id = $1", docID).Scan(&next); err != nil {
		logger.Sugar.Errorf("Failed to allocate version number for doc %s: %v", docID, err)
		return ack, err
	}

	if _, err := tx.Exec(`INSERT INTO document_versions (id, document_id, version_number, content, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		uuid.NewString(), docID, next, content, authorID); err != nil {
		logger.Sugar.Errorf("Failed to insert version %d for doc %s: %v", next, docID, err)
		return ack, err
	}

	var updatedAt time.Time
	if err := tx.QueryRow(`UPDATE documents SET content = $1, word_count = $2, reading_time = $3, updated_at = NOW()
		WHERE id = $4 RETURNING updated_at`,
		content, wordCount, readingTime, docID).Scan(&updatedAt); err != nil {
		logger.Sugar.Errorf("Failed to update content for doc %s: %v", docID, err)
		return ack, err
	}

	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit version tx for doc %s: %v", docID, err)
		return ack, err
	}

	ack = model.ChangeAck{
		DocID:         docID,
		VersionNumber: next,
		WordCount:     wordCount,
		ReadingTime:   readingTime,
		UpdatedAt:     updatedAt,
	}
	return ack, nil
}

func (r *DocumentRepository) ListVersions(docID string) ([]model.Version, error) {
	rows, err := r.DB.Query(`SELECT id, document_id, version_number, content, created_by, created_at
		FROM document_versions WHERE document_id = $1 ORDER BY version_number DESC`, docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list versions for doc %s: %v", docID, err)
		return nil, err
	}
	defer rows.Close()

	var versions []model.Version
	for rows.Next() {
		var v model.Version
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.Content, &v.CreatedBy, &v.CreatedAt); err != nil {
			continue
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *DocumentRepository) CreateShare(grant model.ShareGrant) error {
	_, err := r.DB.Exec(`INSERT INTO document_shares (id, document_id, share_token, permission_level, expires_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		grant.ID, grant.DocumentID, grant.Token, grant.Permission, grant.ExpiresAt, grant.CreatedBy)
	if err != nil {
		logger.Sugar.Errorf("Failed to create share for doc %s: %v", grant.DocumentID, err)
	}
	return err
}

// GetShareByToken resolves a usable grant. Expired grants are filtered in
// the query, so an expired token is indistinguishable from a missing one.
func (r *DocumentRepository) GetShareByToken(token string) (model.ShareGrant, error) {
	var g model.ShareGrant
	err := r.DB.QueryRow(`SELECT id, document_id, share_token, permission_level, expires_at, created_by, created_at
		FROM document_shares WHERE share_token = $1 AND (expires_at IS NULL OR expires_at > NOW())`, token).
		Scan(&g.ID, &g.DocumentID, &g.Token, &g.Permission, &g.ExpiresAt, &g.CreatedBy, &g.CreatedAt)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to get share grant: %v", err)
	}
	return g, err
}

// ListShares returns every grant on the document, including expired ones;
// expired grants are visible to the owner but never admit (see
// GetShareByToken).
func (r *DocumentRepository) ListShares(docID string) ([]model.ShareGrant, error) {
	rows, err := r.DB.Query(`SELECT id, document_id, share_token, permission_level, expires_at, created_by, created_at
		FROM document_shares WHERE document_id = $1 ORDER BY created_at DESC`, docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list shares for doc %s: %v", docID, err)
		return nil, err
	}
	defer rows.Close()

	var grants []model.ShareGrant
	for rows.Next() {
		var g model.ShareGrant
		if err := rows.Scan(&g.ID, &g.DocumentID, &g.Token, &g.Permission, &g.ExpiresAt, &g.CreatedBy, &g.CreatedAt); err != nil {
			continue
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// DeleteShare revokes a grant. Returns the number of rows removed so the
// caller can distinguish a revoked grant from one that never existed.
func (r *DocumentRepository) DeleteShare(token string) (int64, error) {
	result, err := r.DB.Exec("DELETE FROM document_shares WHERE share_token = $1", token)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete share grant: %v", err)
		return 0, err
	}
	return result.RowsAffected()
}

// GetSharedDocument resolves a valid share token straight to the document
// snapshot, for the public shared-link endpoint.
func (r *DocumentRepository) GetSharedDocument(token string) (model.SharedDocument, error) {
	var d model.SharedDocument
	err := r.DB.QueryRow(`SELECT d.id, d.title, d.content, ds.permission_level, d.updated_at
		FROM document_shares ds JOIN documents d ON ds.document_id = d.id
		WHERE ds.share_token = $1 AND (ds.expires_at IS NULL OR ds.expires_at > NOW())`, token).
		Scan(&d.DocID, &d.Title, &d.Content, &d.Permission, &d.UpdatedAt)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to resolve shared document: %v", err)
	}
	return d, err
}
