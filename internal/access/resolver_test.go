package access

import (
	"database/sql"
	"os"
	"testing"

	"inkwell/internal/auth"
	"inkwell/internal/document/model"
	"inkwell/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// fakeStore serves canned owners and grants. A missing entry behaves like
// the real store: sql.ErrNoRows.
type fakeStore struct {
	owners map[string]string
	grants map[string]model.ShareGrant
}

func (f *fakeStore) GetOwnerID(docID string) (string, error) {
	owner, ok := f.owners[docID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return owner, nil
}

func (f *fakeStore) GetShareByToken(token string) (model.ShareGrant, error) {
	// Expired grants are filtered by the store query, so the fake simply
	// has no entry for them.
	g, ok := f.grants[token]
	if !ok {
		return model.ShareGrant{}, sql.ErrNoRows
	}
	return g, nil
}

func newResolver() *Resolver {
	return NewResolver(&fakeStore{
		owners: map[string]string{"doc-1": "owner-1"},
		grants: map[string]model.ShareGrant{
			"read-token":  {DocumentID: "doc-1", Token: "read-token", Permission: model.PermissionRead},
			"write-token": {DocumentID: "doc-1", Token: "write-token", Permission: model.PermissionWrite},
			"other-doc":   {DocumentID: "doc-2", Token: "other-doc", Permission: model.PermissionAdmin},
		},
	})
}

func TestResolveOwnerIsAdmin(t *testing.T) {
	r := newResolver()
	perm, err := r.Resolve(auth.Identity{ID: "owner-1"}, "doc-1", "")
	require.NoError(t, err)
	assert.Equal(t, model.PermissionAdmin, perm)
}

func TestResolveMissingDocument(t *testing.T) {
	r := newResolver()
	_, err := r.Resolve(auth.Identity{ID: "owner-1"}, "no-such-doc", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveGrantPermission(t *testing.T) {
	r := newResolver()

	perm, err := r.Resolve(auth.Identity{ID: "visitor"}, "doc-1", "read-token")
	require.NoError(t, err)
	assert.Equal(t, model.PermissionRead, perm)

	perm, err = r.Resolve(auth.Identity{ID: "visitor"}, "doc-1", "write-token")
	require.NoError(t, err)
	assert.Equal(t, model.PermissionWrite, perm)
}

func TestResolveNonOwnerWithoutToken(t *testing.T) {
	r := newResolver()
	_, err := r.Resolve(auth.Identity{ID: "visitor"}, "doc-1", "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestResolveExpiredGrantLooksMissing(t *testing.T) {
	// An expired grant never comes back from the store, so the error class
	// is identical to a grant that never existed.
	r := newResolver()
	_, err := r.Resolve(auth.Identity{ID: "visitor"}, "doc-1", "expired-token")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestResolveGrantForOtherDocument(t *testing.T) {
	r := newResolver()
	_, err := r.Resolve(auth.Identity{ID: "visitor"}, "doc-1", "other-doc")
	assert.ErrorIs(t, err, ErrForbidden)
}
