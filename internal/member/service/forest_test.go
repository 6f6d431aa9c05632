package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvass/internal/member/invite"
	"canvass/internal/member/models"
	"canvass/internal/member/store"
	"canvass/internal/referral"
	id "canvass/pkg/domain"
)

type forestFixture struct {
	t       *testing.T
	svc     *Service
	members *store.InMemoryStore
	clock   time.Time
}

func newForestFixture(t *testing.T) *forestFixture {
	members := store.NewInMemory()
	return &forestFixture{
		t:       t,
		svc:     New(members, invite.NewGenerator(members), referral.NewInMemoryStaging()),
		members: members,
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// add inserts a member one minute after the previous one so creation order
// matches insertion order.
func (f *forestFixture) add(name string, invitedBy *id.MemberID) models.Member {
	f.t.Helper()
	f.clock = f.clock.Add(time.Minute)
	if invitedBy != nil {
		// Copy so the stored member does not alias a caller variable that
		// may be reassigned after this call.
		inviter := *invitedBy
		invitedBy = &inviter
	}
	member := models.Member{
		ID:          id.NewMemberID(),
		ExternalID:  "auth0|" + name,
		Email:       name + "@example.com",
		DisplayName: name,
		InviteCode:  name + "-code",
		InvitedBy:   invitedBy,
		CreatedAt:   f.clock,
	}
	require.NoError(f.t, f.members.Create(context.Background(), member))
	return member
}

func names(nodes []models.NetworkNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.DisplayName
	}
	return out
}

func levels(nodes []models.NetworkNode) []int {
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = n.Level
	}
	return out
}

func TestBuildForest_Empty(t *testing.T) {
	f := newForestFixture(t)

	nodes, err := f.svc.BuildForest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.NotNil(t, nodes)
}

func TestBuildForest_SingleRoot(t *testing.T) {
	f := newForestFixture(t)
	f.add("alice", nil)

	nodes, err := f.svc.BuildForest(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, 0, nodes[0].Level)
	assert.Equal(t, 0, nodes[0].RecruitCount)
}

func TestBuildForest_PreOrderWithLevels(t *testing.T) {
	f := newForestFixture(t)

	// alice recruits bob and carol; bob recruits dave. A second root, erin,
	// joins last and recruits nobody.
	alice := f.add("alice", nil)
	bob := f.add("bob", &alice.ID)
	carol := f.add("carol", &alice.ID)
	f.add("dave", &bob.ID)
	f.add("erin", nil)
	_ = carol

	nodes, err := f.svc.BuildForest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob", "dave", "carol", "erin"}, names(nodes))
	assert.Equal(t, []int{0, 1, 2, 1, 0}, levels(nodes))
}

func TestBuildForest_RecruitCountIsDirectOnly(t *testing.T) {
	f := newForestFixture(t)

	alice := f.add("alice", nil)
	bob := f.add("bob", &alice.ID)
	f.add("carol", &alice.ID)
	f.add("dave", &bob.ID)

	nodes, err := f.svc.BuildForest(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	counts := map[string]int{}
	for _, n := range nodes {
		counts[n.DisplayName] = n.RecruitCount
	}
	assert.Equal(t, 2, counts["alice"])
	assert.Equal(t, 1, counts["bob"])
	assert.Equal(t, 0, counts["carol"])
	assert.Equal(t, 0, counts["dave"])
}

func TestBuildForest_SiblingsOrderedByCreation(t *testing.T) {
	f := newForestFixture(t)

	alice := f.add("alice", nil)
	f.add("zoe", &alice.ID)
	f.add("ann", &alice.ID)

	nodes, err := f.svc.BuildForest(context.Background())
	require.NoError(t, err)

	// zoe joined before ann; name order is irrelevant.
	assert.Equal(t, []string{"alice", "zoe", "ann"}, names(nodes))
}

func TestBuildForest_RootsOrderedByCreation(t *testing.T) {
	f := newForestFixture(t)

	f.add("newer-root-first-alpha", nil)
	f.add("alpha", nil)

	nodes, err := f.svc.BuildForest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"newer-root-first-alpha", "alpha"}, names(nodes))
}

func TestBuildForest_DeepChain(t *testing.T) {
	f := newForestFixture(t)

	parent := f.add("root", nil)
	for i := 0; i < 5; i++ {
		parent = f.add(string(rune('a'+i)), &parent.ID)
	}

	nodes, err := f.svc.BuildForest(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 6)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, levels(nodes))
}

func TestBuildForest_CycleIsAnError(t *testing.T) {
	f := newForestFixture(t)

	// Corrupt data: two members referring each other, unreachable from any
	// root. The report must fail loudly instead of silently omitting them.
	aID := id.NewMemberID()
	bID := id.NewMemberID()
	f.clock = f.clock.Add(time.Minute)
	require.NoError(t, f.members.Create(context.Background(), models.Member{
		ID: aID, ExternalID: "auth0|a", InviteCode: "acode", InvitedBy: &bID, CreatedAt: f.clock,
	}))
	f.clock = f.clock.Add(time.Minute)
	require.NoError(t, f.members.Create(context.Background(), models.Member{
		ID: bID, ExternalID: "auth0|b", InviteCode: "bcode", InvitedBy: &aID, CreatedAt: f.clock,
	}))

	_, err := f.svc.BuildForest(context.Background())
	assert.Error(t, err)
}
