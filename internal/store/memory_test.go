package store

import (
	"context"
	"testing"

	"github.com/draftroom/auction-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AuctionLookups(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateAuction(ctx, models.Auction{
		ID: "a1", JoinCode: "ABCDEF", RecoveryCode: "RRRR", Status: models.StatusDraft}))

	a, err := m.LoadAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", a.JoinCode)

	_, err = m.LoadAuction(ctx, "ghost")
	assert.ErrorIs(t, err, ErrAuctionNotFound)

	a, err = m.FindAuctionByJoinCode(ctx, "ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, "a1", a.ID)

	for _, code := range []string{"ABCDEF", "RRRR"} {
		used, err := m.CodeInUse(ctx, code)
		require.NoError(t, err)
		assert.True(t, used, "code %s should be in use", code)
	}
	used, err := m.CodeInUse(ctx, "FRESH1")
	require.NoError(t, err)
	assert.False(t, used)
}

func TestMemory_ArchivedAuctionsReleaseCodes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateAuction(ctx, models.Auction{
		ID: "a1", JoinCode: "ABCDEF", Status: models.StatusArchived}))

	used, err := m.CodeInUse(ctx, "ABCDEF")
	require.NoError(t, err)
	assert.False(t, used, "archived auctions do not hold their codes")

	_, err = m.FindAuctionByJoinCode(ctx, "ABCDEF")
	assert.ErrorIs(t, err, ErrAuctionNotFound)
}

func TestMemory_UserCredentialAndNameRules(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateUser(ctx, models.User{
		ID: "u1", AuctionID: "a1", DisplayName: "Sam", Credential: "cred-1"}))

	u, err := m.FindUserByCredential(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = m.FindUserByCredential(ctx, "nope")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Case-insensitive uniqueness inside one auction.
	err = m.CreateUser(ctx, models.User{ID: "u2", AuctionID: "a1", DisplayName: "sam", Credential: "cred-2"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Same name in a different auction is fine.
	require.NoError(t, m.CreateUser(ctx, models.User{
		ID: "u3", AuctionID: "a2", DisplayName: "Sam", Credential: "cred-3"}))
}

func TestMemory_SaveAuctionStateAppliesDelta(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateAuction(ctx, models.Auction{ID: "a1", Status: models.StatusInProgress}))
	require.NoError(t, m.CreateTeam(ctx, models.Team{ID: "t1", AuctionID: "a1", RemainingBudget: 100}))
	require.NoError(t, m.CreateSchool(ctx, models.AuctionSchool{ID: "s1", AuctionID: "a1", IsAvailable: true}))
	require.NoError(t, m.CreateSlot(ctx, models.RosterSlot{ID: "sl1", TeamID: "t1", Position: "qb"}))

	a := models.Auction{ID: "a1", Status: models.StatusComplete}
	team := models.Team{ID: "t1", AuctionID: "a1", RemainingBudget: 90}
	school := models.AuctionSchool{ID: "s1", AuctionID: "a1", IsAvailable: false, WinnerTeamID: "t1", FinalPrice: 10}
	slot := models.RosterSlot{ID: "sl1", TeamID: "t1", Position: "qb", SchoolID: "s1"}
	require.NoError(t, m.SaveAuctionState(ctx, Delta{
		Auction: &a,
		Teams:   []*models.Team{&team},
		Schools: []*models.AuctionSchool{&school},
		Slots:   []*models.RosterSlot{&slot},
	}))

	got, err := m.LoadAuction(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, got.Status)

	teams, err := m.LoadTeamsForAuction(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, 90, teams[0].RemainingBudget)

	slots, err := m.LoadSlotsForAuction(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "s1", slots[0].SchoolID)
}
