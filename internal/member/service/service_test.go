package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvass/internal/member/invite"
	"canvass/internal/member/models"
	"canvass/internal/member/store"
	"canvass/internal/referral"
	id "canvass/pkg/domain"
	dErrors "canvass/pkg/domain-errors"
	"canvass/pkg/platform/sentinel"
	"canvass/pkg/requestcontext"
)

type fixedCodes struct {
	code string
	err  error
}

func (f fixedCodes) Generate(context.Context) (string, int, error) {
	if f.err != nil {
		return "", invite.DefaultMaxAttempts, f.err
	}
	return f.code, 1, nil
}

type failingStaging struct{}

func (failingStaging) Consume(context.Context, string) (string, error) {
	return "", errors.New("staging store down")
}

func newTestService(t *testing.T, opts ...Option) (*Service, *store.InMemoryStore, *referral.InMemoryStaging) {
	t.Helper()
	members := store.NewInMemory()
	staging := referral.NewInMemoryStaging()
	svc := New(members, invite.NewGenerator(members), staging, opts...)
	return svc, members, staging
}

func sessionCtx(sessionID string) context.Context {
	return requestcontext.WithSessionID(context.Background(), sessionID)
}

func TestResolveOrCreate_FirstLogin(t *testing.T) {
	svc, members, _ := newTestService(t)

	member, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID:  "auth0|alice",
		Email:       "alice@example.com",
		DisplayName: "Alice",
	})
	require.NoError(t, err)

	assert.False(t, member.ID.IsZero())
	assert.Equal(t, "auth0|alice", member.ExternalID)
	assert.Len(t, member.InviteCode, invite.CodeLength)
	assert.Nil(t, member.InvitedBy)
	assert.True(t, member.IsRoot())
	assert.False(t, member.CreatedAt.IsZero())

	stored, err := members.FindByExternalID(context.Background(), "auth0|alice")
	require.NoError(t, err)
	assert.Equal(t, member.ID, stored.ID)
}

func TestResolveOrCreate_ReLoginIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)

	first, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|alice", Email: "alice@example.com", DisplayName: "Alice",
	})
	require.NoError(t, err)

	second, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|alice", Email: "alice@example.com", DisplayName: "Alice",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.InviteCode, second.InviteCode)
}

func TestResolveOrCreate_ReLoginRefreshesProfile(t *testing.T) {
	svc, members, _ := newTestService(t)

	first, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|alice", Email: "alice@example.com", DisplayName: "Alice",
	})
	require.NoError(t, err)

	second, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|alice", Email: "alice@new.example.com", DisplayName: "Alice Q",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice@new.example.com", second.Email)
	assert.Equal(t, "Alice Q", second.DisplayName)

	stored, err := members.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Q", stored.DisplayName)
}

func TestResolveOrCreate_DerivesDisplayNameFromEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	member, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|bob", Email: "bob.smith@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob Smith", member.DisplayName)
}

func TestResolveOrCreate_RequiresExternalID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ResolveOrCreate(context.Background(), Identity{Email: "x@example.com"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestResolveOrCreate_AttributesStagedReferral(t *testing.T) {
	svc, _, staging := newTestService(t)

	referrer, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|alice", Email: "alice@example.com", DisplayName: "Alice",
	})
	require.NoError(t, err)

	ctx := sessionCtx("sid-1")
	require.NoError(t, staging.Stage(ctx, "sid-1", referrer.InviteCode))

	recruit, err := svc.ResolveOrCreate(ctx, Identity{
		ExternalID: "auth0|bob", Email: "bob@example.com", DisplayName: "Bob",
	})
	require.NoError(t, err)
	require.NotNil(t, recruit.InvitedBy)
	assert.Equal(t, referrer.ID, *recruit.InvitedBy)

	// The stage is consumed with the creation.
	code, err := staging.Consume(ctx, "sid-1")
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestResolveOrCreate_UnknownStagedCodeIsDroppedSilently(t *testing.T) {
	svc, _, staging := newTestService(t)

	ctx := sessionCtx("sid-1")
	require.NoError(t, staging.Stage(ctx, "sid-1", "NOSUCHCD"))

	member, err := svc.ResolveOrCreate(ctx, Identity{
		ExternalID: "auth0|bob", Email: "bob@example.com", DisplayName: "Bob",
	})
	require.NoError(t, err)
	assert.Nil(t, member.InvitedBy)
}

func TestResolveOrCreate_ReLoginDoesNotReattribute(t *testing.T) {
	svc, _, staging := newTestService(t)

	referrer, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|alice", Email: "alice@example.com", DisplayName: "Alice",
	})
	require.NoError(t, err)

	_, err = svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|bob", Email: "bob@example.com", DisplayName: "Bob",
	})
	require.NoError(t, err)

	// Bob returns through a referral link; he is already a member, so the
	// staged code must not rewrite his attribution.
	ctx := sessionCtx("sid-2")
	require.NoError(t, staging.Stage(ctx, "sid-2", referrer.InviteCode))

	bob, err := svc.ResolveOrCreate(ctx, Identity{
		ExternalID: "auth0|bob", Email: "bob@example.com", DisplayName: "Bob",
	})
	require.NoError(t, err)
	assert.Nil(t, bob.InvitedBy)
}

func TestResolveOrCreate_StagingOutageDegradesToRoot(t *testing.T) {
	members := store.NewInMemory()
	svc := New(members, invite.NewGenerator(members), failingStaging{})

	member, err := svc.ResolveOrCreate(sessionCtx("sid-1"), Identity{
		ExternalID: "auth0|bob", Email: "bob@example.com", DisplayName: "Bob",
	})
	require.NoError(t, err)
	assert.Nil(t, member.InvitedBy)
}

func TestResolveOrCreate_CodeExhaustionAborts(t *testing.T) {
	members := store.NewInMemory()
	svc := New(members, fixedCodes{err: invite.ErrCodeExhausted}, referral.NewInMemoryStaging())

	_, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|bob", Email: "bob@example.com", DisplayName: "Bob",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.ErrorIs(t, err, invite.ErrCodeExhausted)

	_, err = members.FindByExternalID(context.Background(), "auth0|bob")
	assert.Error(t, err)
}

// racingStore makes the first FindByExternalID miss, simulating a rival
// callback inserting the row between lookup and insert.
type racingStore struct {
	store.MemberStore
	missed bool
}

func (s *racingStore) FindByExternalID(ctx context.Context, externalID string) (models.Member, error) {
	if !s.missed {
		s.missed = true
		return models.Member{}, sentinel.ErrNotFound
	}
	return s.MemberStore.FindByExternalID(ctx, externalID)
}

func TestResolveOrCreate_CreateRaceReturnsWinner(t *testing.T) {
	members := store.NewInMemory()
	racing := &racingStore{MemberStore: members}
	svc := New(racing, fixedCodes{code: "AAAABBBB"}, referral.NewInMemoryStaging())

	winner := models.Member{
		ID:         id.NewMemberID(),
		ExternalID: "auth0|alice",
		Email:      "alice@example.com",
		InviteCode: "CCCCDDDD",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, members.Create(context.Background(), winner))

	got, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|alice", Email: "alice@example.com", DisplayName: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, got.ID)
}

func TestGet(t *testing.T) {
	svc, _, _ := newTestService(t)

	member, err := svc.ResolveOrCreate(context.Background(), Identity{
		ExternalID: "auth0|alice", Email: "alice@example.com", DisplayName: "Alice",
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), member.ID)
	require.NoError(t, err)
	assert.Equal(t, member.ID, got.ID)

	_, err = svc.Get(context.Background(), id.NewMemberID())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
