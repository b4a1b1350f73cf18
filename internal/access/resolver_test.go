package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arquivoshare/portal-api/internal/models"
	appErrors "github.com/arquivoshare/portal-api/pkg/errors"
)

func strPtr(s string) *string { return &s }

func userGrant(userID string) models.Permission {
	return models.Permission{ID: "g-" + userID, FileID: "f1", UserID: strPtr(userID)}
}

func groupGrant(groupID string) models.Permission {
	return models.Permission{ID: "g-" + groupID, FileID: "f1", GroupID: strPtr(groupID)}
}

func categoryGrant(categoryID string) models.Permission {
	return models.Permission{ID: "g-" + categoryID, FileID: "f1", CategoryID: strPtr(categoryID)}
}

func TestCanAccessUnrestrictedFile(t *testing.T) {
	principals := []Principal{
		{UserID: "u1", Role: models.RoleUser},
		{UserID: "u2", Role: models.RoleOperator, GroupIDs: []string{"g1"}},
		{UserID: "", Role: models.RoleUser},
	}
	for _, p := range principals {
		ok, err := CanAccess(nil, p)
		require.NoError(t, err)
		assert.True(t, ok, "file without grants must be visible to %q", p.UserID)
	}
}

func TestCanAccessGroupGrant(t *testing.T) {
	grants := []models.Permission{groupGrant("finance")}

	member := Principal{UserID: "u1", GroupIDs: []string{"finance", "ops"}, CategoryIDs: []string{"hr"}}
	ok, err := CanAccess(grants, member)
	require.NoError(t, err)
	assert.True(t, ok)

	// Same category id in a different namespace must not satisfy a group grant.
	outsider := Principal{UserID: "u1", CategoryIDs: []string{"finance"}}
	ok, err = CanAccess(grants, outsider)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccessCategoryGrant(t *testing.T) {
	grants := []models.Permission{categoryGrant("finance")}

	p := Principal{UserID: "p", CategoryIDs: []string{"finance"}}
	ok, err := CanAccess(grants, p)
	require.NoError(t, err)
	assert.True(t, ok)

	q := Principal{UserID: "q", CategoryIDs: []string{"hr"}}
	ok, err = CanAccess(grants, q)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccessAnyMatchingGrantSuffices(t *testing.T) {
	grants := []models.Permission{
		userGrant("someone-else"),
		groupGrant("g9"),
		categoryGrant("finance"),
	}
	p := Principal{UserID: "u1", CategoryIDs: []string{"finance"}}
	ok, err := CanAccess(grants, p)
	require.NoError(t, err)
	assert.True(t, ok)

	none := Principal{UserID: "u2", GroupIDs: []string{"g1"}, CategoryIDs: []string{"hr"}}
	ok, err = CanAccess(grants, none)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccessDirectUserGrant(t *testing.T) {
	grants := []models.Permission{userGrant("u1")}
	ok, err := CanAccess(grants, Principal{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CanAccess(grants, Principal{UserID: "u2"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccessRejectsMalformedGrants(t *testing.T) {
	tests := []struct {
		name  string
		grant models.Permission
	}{
		{"no scope set", models.Permission{ID: "bad", FileID: "f1"}},
		{"two scopes set", models.Permission{ID: "bad", FileID: "f1", UserID: strPtr("u1"), GroupID: strPtr("g1")}},
		{"all scopes set", models.Permission{ID: "bad", FileID: "f1", UserID: strPtr("u1"), GroupID: strPtr("g1"), CategoryID: strPtr("c1")}},
		{"empty-string scope", models.Permission{ID: "bad", FileID: "f1", UserID: strPtr("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CanAccess([]models.Permission{tt.grant}, Principal{UserID: "u1"})
			require.Error(t, err)
			var typed *appErrors.Error
			require.True(t, errors.As(err, &typed))
			assert.Equal(t, appErrors.ErrMalformedGrant.Code, typed.Code)
		})
	}
}

func TestCanAccessMalformedRowSurfacesEvenAfterMatch(t *testing.T) {
	grants := []models.Permission{
		userGrant("u1"),
		{ID: "bad", FileID: "f1"},
	}
	_, err := CanAccess(grants, Principal{UserID: "u1"})
	require.Error(t, err, "a healthy grant must not mask a malformed row")
}
