package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() (Bet, []Recipient) {
	b := Bet{
		ID:        "bet-1",
		Stake:     decimal.NewFromInt(10),
		Status:    BetInProgress,
		CreatorID: "alice",
	}
	rs := []Recipient{
		{ID: "r-bob", BetID: b.ID, UserID: "bob", Status: RecipientInProgress},
		{ID: "r-carol", BetID: b.ID, UserID: "carol", Status: RecipientPending},
	}
	return b, rs
}

func TestApplyChangeClaimSetsClaimMetadata(t *testing.T) {
	b, rs := fixture()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	out, err := ApplyChange(b, rs, Change{
		Op: "claim", BetID: b.ID, ActorID: "alice", Role: RoleCreator,
		AllowedBet: []BetStatus{BetInProgress},
		Recipients: []RecipientChange{{
			RecipientID: "r-bob",
			FromStatus:  RecipientInProgress, FromPending: OutcomeNone,
			Status: RecipientInProgress, Pending: OutcomeLost,
		}},
	}, now)
	require.NoError(t, err)

	require.Len(t, out.Changed, 1)
	got := out.Changed[0]
	assert.Equal(t, OutcomeLost, got.PendingOutcome)
	assert.Equal(t, "alice", got.OutcomeClaimedBy)
	require.NotNil(t, got.OutcomeClaimedAt)
	assert.Equal(t, now, *got.OutcomeClaimedAt)
	assert.False(t, out.BetChanged)
	// o slice original não é alterado
	assert.Equal(t, OutcomeNone, rs[0].PendingOutcome)
}

func TestApplyChangeSettlementCompletesBet(t *testing.T) {
	b, rs := fixture()
	rs[0].PendingOutcome = OutcomeLost
	rs[0].OutcomeClaimedBy = "alice"

	out, err := ApplyChange(b, rs, Change{
		Op: "confirm", BetID: b.ID, ActorID: "bob", Role: RoleRecipient,
		Recipients: []RecipientChange{{
			RecipientID: "r-bob",
			FromStatus:  RecipientInProgress, FromPending: OutcomeLost,
			Status: RecipientLost, Pending: OutcomeNone,
		}},
	}, time.Now())
	require.NoError(t, err)

	assert.True(t, out.BetChanged)
	assert.Equal(t, BetCompleted, out.Bet.Status)
	assert.Equal(t, BetInProgress, out.OldStatus)
	assert.Equal(t, RecipientLost, out.Recipients[0].Status)
	assert.Empty(t, out.Recipients[0].OutcomeClaimedBy)
	assert.Nil(t, out.Recipients[0].OutcomeClaimedAt)

	// carol nunca respondeu: o convite é cancelado na mesma transição
	assert.Equal(t, RecipientCancelled, out.Recipients[1].Status)
	require.Len(t, out.Changed, 2)
	assert.Equal(t, "r-carol", out.Changed[1].ID)
}

func TestApplyChangeSettlesRemainingRecordsOnCompletedBet(t *testing.T) {
	b, rs := fixture()
	b.Status = BetCompleted
	rs[0].Status = RecipientWon
	rs[1] = Recipient{ID: "r-carol", BetID: b.ID, UserID: "carol", Status: RecipientInProgress,
		PendingOutcome: OutcomeLost, OutcomeClaimedBy: "alice"}

	out, err := ApplyChange(b, rs, Change{
		Op: "confirm", BetID: b.ID, ActorID: "carol", Role: RoleRecipient,
		AllowedBet: []BetStatus{BetInProgress, BetCompleted},
		Recipients: []RecipientChange{{
			RecipientID: "r-carol",
			FromStatus:  RecipientInProgress, FromPending: OutcomeLost,
			Status: RecipientLost,
		}},
	}, time.Now())
	require.NoError(t, err)
	assert.False(t, out.BetChanged)
	assert.Equal(t, RecipientLost, out.Recipients[1].Status)
	assert.Equal(t, OutcomeNone, out.Recipients[1].PendingOutcome)
}

func TestApplyChangeRejectsStalePrecondition(t *testing.T) {
	b, rs := fixture()

	_, err := ApplyChange(b, rs, Change{
		Op: "accept", BetID: b.ID, ActorID: "bob", Role: RoleRecipient,
		Recipients: []RecipientChange{{
			RecipientID: "r-bob",
			FromStatus:  RecipientPending, Status: RecipientInProgress,
		}},
	}, time.Now())
	assert.True(t, errors.Is(err, ErrConflict), "got %v", err)
}

func TestApplyChangeAuthorization(t *testing.T) {
	b, rs := fixture()

	tests := []struct {
		name  string
		actor string
		role  Role
	}{
		{"stranger as participant", "mallory", RoleParticipant},
		{"recipient acting as creator", "bob", RoleCreator},
		{"creator acting on recipient record", "alice", RoleRecipient},
		{"other recipient acting on record", "carol", RoleRecipient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyChange(b, rs, Change{
				Op: "test", BetID: b.ID, ActorID: tt.actor, Role: tt.role,
				Recipients: []RecipientChange{{
					RecipientID: "r-bob",
					FromStatus:  RecipientInProgress, Status: RecipientCancelled,
				}},
			}, time.Now())
			assert.True(t, errors.Is(err, ErrNotPermitted), "got %v", err)
		})
	}
}

func TestApplyChangeTerminalRecipientIsFinal(t *testing.T) {
	b, rs := fixture()
	rs[0].Status = RecipientWon

	_, err := ApplyChange(b, rs, Change{
		Op: "cancel", BetID: b.ID, ActorID: "alice", Role: RoleCreator,
		Recipients: []RecipientChange{{
			RecipientID: "r-bob",
			FromStatus:  RecipientWon, Status: RecipientCancelled,
		}},
	}, time.Now())
	assert.True(t, errors.Is(err, ErrConflict), "got %v", err)
}

func TestApplyChangeAllowedBetUsesEffectiveStatus(t *testing.T) {
	b, rs := fixture()
	// status gravado defasado: pending, mas há recipient won
	b.Status = BetPending
	rs[0].Status = RecipientWon

	_, err := ApplyChange(b, rs, Change{
		Op: "accept", BetID: b.ID, ActorID: "carol", Role: RoleRecipient,
		AllowedBet: []BetStatus{BetPending, BetInProgress},
		Recipients: []RecipientChange{{
			RecipientID: "r-carol",
			FromStatus:  RecipientPending, Status: RecipientInProgress,
		}},
	}, time.Now())
	assert.True(t, errors.Is(err, ErrConflict), "got %v", err)
}
