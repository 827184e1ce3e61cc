package service

import (
	"database/sql"
	"os"
	"strings"

	"inkwell/internal/access"
	"inkwell/internal/auth"
	"inkwell/internal/document/model"
	"inkwell/internal/document/repository"
	"inkwell/pkg/logger"
	"inkwell/socket"

	"github.com/google/uuid"
)

// Broadcaster fans an event out to a document room, skipping the
// originating connection.
type Broadcaster interface {
	Publish(docID string, event []byte, excludeConnID string)
	RemoveDocument(docID string)
}

// DocumentService is the change intake and document/share lifecycle. Every
// content mutation flows through SubmitChange, regardless of whether it
// arrived over the socket or the REST API.
type DocumentService struct {
	Repo     *repository.DocumentRepository
	Resolver *access.Resolver
	Hub      Broadcaster
}

func NewDocumentService(repo *repository.DocumentRepository, resolver *access.Resolver, hub Broadcaster) *DocumentService {
	return &DocumentService{Repo: repo, Resolver: resolver, Hub: hub}
}

func (s *DocumentService) CreateDocument(ident auth.Identity, req model.CreateDocRequest) (model.Document, error) {
	title := req.Title
	if title == "" {
		title = "Untitled Document"
	}
	words := WordCount(req.Content)
	doc := model.Document{
		ID:          uuid.NewString(),
		Title:       title,
		Content:     req.Content,
		OwnerID:     ident.ID,
		IsPublic:    req.IsPublic,
		WordCount:   words,
		ReadingTime: ReadingTime(words),
	}
	if err := s.Repo.Create(doc); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

// GetDocument fetches a document the caller owns or that is public. A
// document that exists but is neither returns ErrNotFound, the same as a
// missing one, so existence is not leaked.
func (s *DocumentService) GetDocument(ident auth.Identity, docID string) (model.Document, error) {
	doc, err := s.Repo.GetForUser(docID, ident.ID)
	if err == sql.ErrNoRows {
		return model.Document{}, access.ErrNotFound
	}
	return doc, err
}

func (s *DocumentService) ListDocuments(ident auth.Identity) ([]model.DocumentMetadata, error) {
	return s.Repo.ListByOwner(ident.ID)
}

// DeleteDocument removes the document and, via cascade, its versions and
// share grants. Only the owner may delete; the live room is torn down so
// no session keeps editing a ghost.
func (s *DocumentService) DeleteDocument(ident auth.Identity, docID string) error {
	perm, err := s.Resolver.Resolve(ident, docID, "")
	if err != nil {
		return err
	}
	if perm != model.PermissionAdmin {
		return access.ErrForbidden
	}
	if err := s.Repo.Delete(docID); err != nil {
		return err
	}
	s.Hub.RemoveDocument(docID)
	return nil
}

// SubmitChange is the single mutation path for document content. Order
// matters: permission is re-resolved first (a stale session never bypasses
// it), the version append and content update commit next, and only then is
// the change broadcast. A failed write is never broadcast; the ack goes to
// the caller alone.
func (s *DocumentService) SubmitChange(docID string, ident auth.Identity, content, shareToken, originConnID string) (model.ChangeAck, error) {
	perm, err := s.Resolver.Resolve(ident, docID, shareToken)
	if err != nil {
		return model.ChangeAck{}, err
	}
	if !perm.CanWrite() {
		return model.ChangeAck{}, access.ErrForbidden
	}

	words := WordCount(content)
	ack, err := s.Repo.AppendVersion(docID, content, ident.ID, words, ReadingTime(words))
	if err == sql.ErrNoRows {
		return model.ChangeAck{}, access.ErrNotFound
	}
	if err != nil {
		return model.ChangeAck{}, err
	}

	event, err := socket.Envelope(socket.DocumentUpdatedType, docID, socket.DocumentUpdatedEvent{
		Content:   content,
		Author:    ident,
		Timestamp: ack.UpdatedAt,
	})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling document update for doc %s: %v", docID, err)
		return ack, nil
	}
	s.Hub.Publish(docID, event, originConnID)
	return ack, nil
}

func (s *DocumentService) ListVersions(ident auth.Identity, docID string) ([]model.Version, error) {
	if _, err := s.Resolver.Resolve(ident, docID, ""); err != nil {
		return nil, err
	}
	return s.Repo.ListVersions(docID)
}

// ShareDocument issues a new grant on the document. Owner only. The token
// is an unguessable opaque string used both for admission and for the
// public share URL.
func (s *DocumentService) ShareDocument(ident auth.Identity, req model.ShareRequest) (model.ShareResponse, error) {
	perm, err := s.Resolver.Resolve(ident, req.DocID, "")
	if err != nil {
		return model.ShareResponse{}, err
	}
	if perm != model.PermissionAdmin {
		return model.ShareResponse{}, access.ErrForbidden
	}

	level := req.Permission
	if level == "" {
		level = model.PermissionRead
	}
	if !level.Valid() {
		return model.ShareResponse{}, access.ErrForbidden
	}

	grant := model.ShareGrant{
		ID:         uuid.NewString(),
		DocumentID: req.DocID,
		Token:      uuid.NewString(),
		Permission: level,
		ExpiresAt:  req.ExpiresAt,
		CreatedBy:  ident.ID,
	}
	if err := s.Repo.CreateShare(grant); err != nil {
		return model.ShareResponse{}, err
	}
	return model.ShareResponse{Token: grant.Token, ShareURL: shareBaseURL() + "/shared/" + grant.Token}, nil
}

func (s *DocumentService) ListShares(ident auth.Identity, docID string) ([]model.ShareGrant, error) {
	perm, err := s.Resolver.Resolve(ident, docID, "")
	if err != nil {
		return nil, err
	}
	if perm != model.PermissionAdmin {
		return nil, access.ErrForbidden
	}
	return s.Repo.ListShares(docID)
}

// RevokeShare deletes the grant. Revocation is terminal: the very next
// admission attempt with the token fails.
func (s *DocumentService) RevokeShare(ident auth.Identity, docID, token string) error {
	perm, err := s.Resolver.Resolve(ident, docID, "")
	if err != nil {
		return err
	}
	if perm != model.PermissionAdmin {
		return access.ErrForbidden
	}
	rows, err := s.Repo.DeleteShare(token)
	if err != nil {
		return err
	}
	if rows == 0 {
		return access.ErrNotFound
	}
	return nil
}

// GetSharedDocument resolves a share token to a read-only snapshot for the
// public shared-link page. No credential required.
func (s *DocumentService) GetSharedDocument(token string) (model.SharedDocument, error) {
	doc, err := s.Repo.GetSharedDocument(token)
	if err == sql.ErrNoRows {
		return model.SharedDocument{}, access.ErrNotFound
	}
	return doc, err
}

func shareBaseURL() string {
	base := strings.TrimSpace(os.Getenv("SHARE_BASE_URL"))
	if base == "" {
		base = "http://localhost:8080"
	}
	return strings.TrimSuffix(base, "/")
}
