package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
)

var (
	betCols       = []string{"id", "description", "stake", "due_date", "visibility", "status", "creator_id", "created_at", "updated_at"}
	recipientCols = []string{"id", "bet_id", "recipient_id", "status", "pending_outcome", "outcome_claimed_by", "outcome_claimed_at", "created_at"}
)

func newMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	p := NewPostgres(db)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p, mock
}

func betRow(status string) *sqlmock.Rows {
	ts := time.Date(2024, 4, 30, 10, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(betCols).
		AddRow("b1", "coin flip", "10.00", ts.Add(48*time.Hour), "private", status, "alice", ts, nil)
}

func TestPostgresCreateBet(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bets").
		WithArgs(sqlmock.AnyArg(), "coin flip", sqlmock.AnyArg(), sqlmock.AnyArg(), "private", "pending", "alice", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bet_recipients").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "bob", "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, rs, err := p.CreateBet(context.Background(), newBet("alice"), []string{"bob"})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	require.Len(t, rs, 1)
	assert.Equal(t, b.ID, rs[0].BetID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateBetRollsBackOnDuplicateRecipient(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bets").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bet_recipients").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bet_recipients").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	_, _, err := p.CreateBet(context.Background(), newBet("alice"), []string{"bob", "bob"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetBet(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM bets WHERE id = \\$1").WithArgs("b1").WillReturnRows(betRow("pending"))
	b, err := p.GetBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "10", b.Stake.String())
	assert.Equal(t, domain.VisibilityPrivate, b.Visibility)
	assert.Nil(t, b.UpdatedAt)

	mock.ExpectQuery("SELECT (.+) FROM bets WHERE id = \\$1").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err = p.GetBet(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyClaimConfirm(t *testing.T) {
	p, mock := newMock(t)
	claimedAt := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bets WHERE id = \\$1 FOR UPDATE").WithArgs("b1").
		WillReturnRows(betRow("in_progress"))
	mock.ExpectQuery("SELECT (.+) FROM bet_recipients WHERE bet_id = \\$1").WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(recipientCols).
			AddRow("r1", "b1", "bob", "in_progress", "won", "bob", claimedAt, claimedAt).
			AddRow("r2", "b1", "carol", "pending", nil, nil, nil, claimedAt))
	mock.ExpectExec("UPDATE bet_recipients SET status").
		WithArgs("r1", "won", nil, nil, nil, "in_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// convite sem resposta cancelado na mesma transação
	mock.ExpectExec("UPDATE bet_recipients SET status").
		WithArgs("r2", "cancelled", nil, nil, nil, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bets SET status").
		WithArgs("b1", "completed", sqlmock.AnyArg(), "in_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bet_transitions").
		WithArgs("b1", "alice", "confirm", "in_progress", "completed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	b, rs, err := p.Apply(context.Background(), domain.Change{
		Op: "confirm", BetID: "b1", ActorID: "alice", Role: domain.RoleCreator,
		AllowedBet: []domain.BetStatus{domain.BetInProgress},
		Recipients: []domain.RecipientChange{{
			RecipientID: "r1",
			FromStatus:  domain.RecipientInProgress,
			FromPending: domain.OutcomeWon,
			Status:      domain.RecipientWon,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BetCompleted, b.Status)
	assert.Equal(t, domain.RecipientWon, rs[0].Status)
	assert.Equal(t, domain.OutcomeNone, rs[0].PendingOutcome)
	assert.Equal(t, domain.RecipientCancelled, rs[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyStalePreconditionRollsBack(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bets WHERE id = \\$1 FOR UPDATE").WithArgs("b1").
		WillReturnRows(betRow("in_progress"))
	mock.ExpectQuery("SELECT (.+) FROM bet_recipients WHERE bet_id = \\$1").WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(recipientCols).
			AddRow("r1", "b1", "bob", "lost", nil, nil, nil, time.Now()))
	mock.ExpectRollback()

	_, _, err := p.Apply(context.Background(), domain.Change{
		Op: "claim", BetID: "b1", ActorID: "bob", Role: domain.RoleRecipient,
		Recipients: []domain.RecipientChange{{
			RecipientID: "r1",
			FromStatus:  domain.RecipientInProgress,
			Status:      domain.RecipientInProgress,
			Pending:     domain.OutcomeWon,
		}},
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyLostRaceOnRecipientUpdate(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bets WHERE id = \\$1 FOR UPDATE").WithArgs("b1").
		WillReturnRows(betRow("pending"))
	mock.ExpectQuery("SELECT (.+) FROM bet_recipients WHERE bet_id = \\$1").WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(recipientCols).
			AddRow("r1", "b1", "bob", "pending", nil, nil, nil, time.Now()))
	mock.ExpectExec("UPDATE bet_recipients SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := p.Apply(context.Background(), domain.Change{
		Op: "reject", BetID: "b1", ActorID: "bob", Role: domain.RoleRecipient,
		Recipients: []domain.RecipientChange{{
			RecipientID: "r1",
			FromStatus:  domain.RecipientPending,
			Status:      domain.RecipientRejected,
		}},
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteBet(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bets WHERE id = \\$1 FOR UPDATE").WithArgs("b1").
		WillReturnRows(betRow("pending"))
	mock.ExpectQuery("SELECT (.+) FROM bet_recipients WHERE bet_id = \\$1").WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(recipientCols).
			AddRow("r1", "b1", "bob", "pending", nil, nil, nil, time.Now()))
	mock.ExpectExec("DELETE FROM bets WHERE id = \\$1").WithArgs("b1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, p.DeleteBet(context.Background(), "b1", "alice"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteBetRequiresStoredPending(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bets WHERE id = \\$1 FOR UPDATE").WithArgs("b1").
		WillReturnRows(betRow("pending"))
	mock.ExpectQuery("SELECT (.+) FROM bet_recipients WHERE bet_id = \\$1").WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(recipientCols).
			AddRow("r1", "b1", "bob", "pending", nil, nil, nil, time.Now()).
			AddRow("r2", "b1", "carol", "pending", nil, nil, nil, time.Now()))
	mock.ExpectExec("DELETE FROM bets WHERE id = \\$1 AND status = 'pending'").WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, p.DeleteBet(context.Background(), "b1", "alice"), domain.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLookupOfMalformedIDIsNotFound(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM bets WHERE id = \\$1").WithArgs("abc").
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"})
	_, err := p.GetBet(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bets WHERE id = \\$1 FOR UPDATE").WithArgs("abc").
		WillReturnError(&pq.Error{Code: "22P02"})
	mock.ExpectRollback()
	assert.ErrorIs(t, p.DeleteBet(context.Background(), "abc", "alice"), domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteBetNotCreator(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bets WHERE id = \\$1 FOR UPDATE").WithArgs("b1").
		WillReturnRows(betRow("pending"))
	mock.ExpectRollback()

	assert.ErrorIs(t, p.DeleteBet(context.Background(), "b1", "bob"), domain.ErrNotPermitted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateBetStatusWritesAudit(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bets SET status").
		WithArgs("b1", "completed", sqlmock.AnyArg(), "in_progress").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bet_transitions").
		WithArgs("b1", "system", "reconcile", "in_progress", "completed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, p.UpdateBetStatus(context.Background(), "b1", domain.BetInProgress, domain.BetCompleted))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListBetsByStatus(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM bets WHERE status = ANY\\(\\$1\\)").
		WithArgs(sqlmock.AnyArg(), 50).
		WillReturnRows(betRow("in_progress"))

	bets, err := p.ListBetsByStatus(context.Background(), []domain.BetStatus{domain.BetPending, domain.BetInProgress}, 50)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, domain.BetInProgress, bets[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWrapErrCategories(t *testing.T) {
	assert.ErrorIs(t, wrapErr("x", sql.ErrNoRows), domain.ErrNotFound)
	assert.ErrorIs(t, wrapErr("x", &pq.Error{Code: "23505"}), domain.ErrConflict)
	assert.ErrorIs(t, wrapErr("x", &pq.Error{Code: "23514"}), domain.ErrValidation)
	assert.ErrorIs(t, wrapErr("x", sql.ErrConnDone), domain.ErrUnavailable)

	var verr *domain.ValidationError
	require.ErrorAs(t, wrapErr("insert bet", &pq.Error{Code: "22003"}), &verr)
	assert.Equal(t, "Stake", verr.Field)
	assert.NotErrorIs(t, wrapErr("insert bet", &pq.Error{Code: "22003"}), domain.ErrUnavailable)
	assert.NoError(t, wrapErr("x", nil))
}

func TestPostgresSetPaymentHandle(t *testing.T) {
	p, mock := newMock(t)
	mock.ExpectExec("INSERT INTO profiles .* ON CONFLICT \\(user_id\\) DO UPDATE").
		WithArgs("bob", "@bob-venmo").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.SetPaymentHandle(context.Background(), "bob", "@bob-venmo"))
	require.NoError(t, mock.ExpectationsWereMet())
}
