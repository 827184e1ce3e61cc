// Package access decides whether an authenticated identity may enter a
// document, and at what permission level. It sits between the credential
// verifier and the session registry: every join and every mutation goes
// through Resolve, so a revoked grant stops admitting immediately.
package access

import (
	"database/sql"
	"errors"

	"inkwell/internal/auth"
	"inkwell/internal/document/model"
	"inkwell/pkg/logger"
)

var (
	// ErrNotFound: the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrForbidden: the document exists but the caller is not entitled.
	// Missing, expired, and revoked share grants all land here.
	ErrForbidden = errors.New("access denied")
)

// Store is the slice of the document store the resolver needs.
type Store interface {
	GetOwnerID(docID string) (string, error)
	GetShareByToken(token string) (model.ShareGrant, error)
}

type Resolver struct {
	Store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{Store: store}
}

// Resolve returns the permission ident holds on docID. The owner always
// gets admin. A non-owner is admitted only through a usable share grant
// bound to this document; shareToken may be empty.
func (r *Resolver) Resolve(ident auth.Identity, docID, shareToken string) (model.Permission, error) {
	ownerID, err := r.Store.GetOwnerID(docID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	if ownerID == ident.ID {
		return model.PermissionAdmin, nil
	}

	if shareToken == "" {
		return "", ErrForbidden
	}

	grant, err := r.Store.GetShareByToken(shareToken)
	if err == sql.ErrNoRows {
		return "", ErrForbidden
	}
	if err != nil {
		return "", err
	}
	if grant.DocumentID != docID {
		logger.Sugar.Warnf("Share token presented for wrong document: grant doc %s, requested %s", grant.DocumentID, docID)
		return "", ErrForbidden
	}
	if !grant.Permission.Valid() {
		return "", ErrForbidden
	}
	return grant.Permission, nil
}
