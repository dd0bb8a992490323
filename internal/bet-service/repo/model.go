package repo

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
)

//go:embed schema.sql
var schema string

// EnsureSchema cria as tabelas caso não existam (usado em ambiente local)
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const betColumns = `id, description, stake, due_date, visibility, status, creator_id, created_at, updated_at`

const recipientColumns = `id, bet_id, recipient_id, status, pending_outcome, outcome_claimed_by, outcome_claimed_at, created_at`

// rowScanner cobre *sql.Row e *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(s rowScanner) (domain.Bet, error) {
	var (
		b         domain.Bet
		updatedAt sql.NullTime
	)
	err := s.Scan(&b.ID, &b.Description, &b.Stake, &b.DueDate, &b.Visibility, &b.Status,
		&b.CreatorID, &b.CreatedAt, &updatedAt)
	if err != nil {
		return domain.Bet{}, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		b.UpdatedAt = &t
	}
	return b, nil
}

func scanRecipient(s rowScanner) (domain.Recipient, error) {
	var (
		r         domain.Recipient
		pending   sql.NullString
		claimedBy sql.NullString
		claimedAt sql.NullTime
	)
	err := s.Scan(&r.ID, &r.BetID, &r.UserID, &r.Status, &pending, &claimedBy, &claimedAt, &r.CreatedAt)
	if err != nil {
		return domain.Recipient{}, err
	}
	r.PendingOutcome = domain.Outcome(pending.String)
	r.OutcomeClaimedBy = claimedBy.String
	if claimedAt.Valid {
		t := claimedAt.Time
		r.OutcomeClaimedAt = &t
	}
	return r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// wrapLookup é o wrapErr das buscas por id: um id que não é uuid não existe
func wrapLookup(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return wrapErr(op, err)
}

// wrapErr traduz erros do driver para as categorias do domínio
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w: %s", op, domain.ErrConflict, pqErr.Message)
		case "23514", "22P02": // check_violation, invalid_text_representation
			return fmt.Errorf("%s: %w", op, &domain.ValidationError{Message: pqErr.Message})
		case "22003": // numeric_value_out_of_range
			return fmt.Errorf("%s: %w", op, &domain.ValidationError{Field: "Stake", Message: pqErr.Message})
		}
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrUnavailable, err)
}
