package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstore/services/library/internal/errs"
)

func strPtr(s string) *string { return &s }

func TestCreateMember(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	member, err := repo.CreateMember(ctx, MemberInput{Name: "Ada", Email: " Ada@Example.com ", Phone: "555-0100"})
	require.NoError(t, err)
	assert.NotEmpty(t, member.ID)
	assert.Equal(t, "ada@example.com", member.Email)

	got, err := repo.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "555-0100", got.Phone)
}

func TestCreateMemberDuplicateEmail(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateMember(ctx, MemberInput{Name: "A", Email: "a@x.com"})
	require.NoError(t, err)

	_, err = repo.CreateMember(ctx, MemberInput{Name: "B", Email: "A@X.COM"})
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestCreateMemberValidation(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	for name, in := range map[string]MemberInput{
		"missing name":  {Email: "a@x.com"},
		"missing email": {Name: "A"},
		"bad email":     {Name: "A", Email: "not-an-email"},
		"display name":  {Name: "A", Email: "Ada <a@x.com>"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := repo.CreateMember(ctx, in)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestListMembersInCreationOrder(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	for _, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		_, err := repo.CreateMember(ctx, MemberInput{Name: email, Email: email})
		require.NoError(t, err)
	}

	members, err := repo.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "c@x.com", members[0].Email)
	assert.Equal(t, "b@x.com", members[2].Email)
}

func TestUpdateMember(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	ada, err := repo.CreateMember(ctx, MemberInput{Name: "Ada", Email: "ada@x.com"})
	require.NoError(t, err)
	_, err = repo.CreateMember(ctx, MemberInput{Name: "Bob", Email: "bob@x.com"})
	require.NoError(t, err)

	updated, err := repo.UpdateMember(ctx, ada.ID, MemberPatch{Phone: strPtr("555-0199")})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.Name)
	assert.Equal(t, "555-0199", updated.Phone)

	// Keeping one's own email is not a conflict
	_, err = repo.UpdateMember(ctx, ada.ID, MemberPatch{Email: strPtr("ADA@x.com")})
	assert.NoError(t, err)

	_, err = repo.UpdateMember(ctx, ada.ID, MemberPatch{Email: strPtr("bob@x.com")})
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = repo.UpdateMember(ctx, ada.ID, MemberPatch{Name: strPtr(" ")})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = repo.UpdateMember(ctx, "missing", MemberPatch{Name: strPtr("X")})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
