package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
)

// Postgres implementa o store de apostas em banco Postgres.
// Toda transição roda em uma transação com lock pessimista na linha da aposta.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db, now: time.Now} }

// CreateBet insere a aposta e os recipients na mesma transação (tudo ou nada)
func (p *Postgres) CreateBet(ctx context.Context, b domain.Bet, recipientIDs []string) (domain.Bet, []domain.Recipient, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Bet{}, nil, wrapErr("begin", err)
	}
	defer tx.Rollback()

	now := p.now().UTC()
	b.ID = uuid.NewString()
	b.CreatedAt = now
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO bets (id, description, stake, due_date, visibility, status, creator_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.Description, b.Stake, b.DueDate, b.Visibility, b.Status, b.CreatorID, b.CreatedAt,
	); err != nil {
		return domain.Bet{}, nil, wrapErr("insert bet", err)
	}

	rs := make([]domain.Recipient, 0, len(recipientIDs))
	for _, uid := range recipientIDs {
		r := domain.Recipient{
			ID:        uuid.NewString(),
			BetID:     b.ID,
			UserID:    uid,
			Status:    domain.RecipientPending,
			CreatedAt: now,
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO bet_recipients (id, bet_id, recipient_id, status, created_at)
			VALUES ($1,$2,$3,$4,$5)`,
			r.ID, r.BetID, r.UserID, r.Status, r.CreatedAt,
		); err != nil {
			return domain.Bet{}, nil, wrapErr("insert recipient", err)
		}
		rs = append(rs, r)
	}

	if err = tx.Commit(); err != nil {
		return domain.Bet{}, nil, wrapErr("commit", err)
	}
	return b, rs, nil
}

// GetBet retorna a aposta pelo id
func (p *Postgres) GetBet(ctx context.Context, betID string) (domain.Bet, error) {
	b, err := scanBet(p.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, betID))
	if err != nil {
		return domain.Bet{}, wrapLookup("get bet "+betID, err)
	}
	return b, nil
}

// ListRecipients retorna os recipients da aposta em ordem de criação
func (p *Postgres) ListRecipients(ctx context.Context, betID string) ([]domain.Recipient, error) {
	return listRecipients(ctx, p.db, betID)
}

// ListBetsForUser retorna as apostas criadas ou recebidas pelo usuário
func (p *Postgres) ListBetsForUser(ctx context.Context, userID string) ([]domain.Bet, error) {
	const q = `SELECT ` + betColumns + ` FROM bets
		WHERE creator_id = $1 OR id IN (SELECT bet_id FROM bet_recipients WHERE recipient_id = $1)
		ORDER BY created_at DESC`
	return p.queryBets(ctx, q, userID)
}

// ListBetsByStatus retorna as apostas mais antigas com status gravado em statuses
func (p *Postgres) ListBetsByStatus(ctx context.Context, statuses []domain.BetStatus, limit int) ([]domain.Bet, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}
	const q = `SELECT ` + betColumns + ` FROM bets
		WHERE status = ANY($1)
		ORDER BY created_at
		LIMIT $2`
	return p.queryBets(ctx, q, pq.Array(ss), limit)
}

func (p *Postgres) queryBets(ctx context.Context, q string, args ...any) ([]domain.Bet, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapErr("list bets", err)
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, wrapErr("scan bet", err)
		}
		out = append(out, b)
	}
	return out, wrapErr("list bets", rows.Err())
}

// Apply executa a transição: lock da aposta, releitura dos recipients, validação das
// pré-condições e escrita condicional de cada registro e do status reconciliado.
func (p *Postgres) Apply(ctx context.Context, c domain.Change) (domain.Bet, []domain.Recipient, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Bet{}, nil, wrapErr("begin", err)
	}
	defer tx.Rollback()

	b, err := lockBet(ctx, tx, c.BetID)
	if err != nil {
		return domain.Bet{}, nil, err
	}
	rs, err := listRecipients(ctx, tx, c.BetID)
	if err != nil {
		return domain.Bet{}, nil, err
	}

	out, err := domain.ApplyChange(b, rs, c, p.now().UTC())
	if err != nil {
		return domain.Bet{}, nil, err
	}

	for _, r := range out.Changed {
		prev := findByID(rs, r.ID)
		res, err := tx.ExecContext(ctx, `
			UPDATE bet_recipients
			SET status = $2, pending_outcome = $3, outcome_claimed_by = $4, outcome_claimed_at = $5
			WHERE id = $1 AND status = $6`,
			r.ID, r.Status, nullString(string(r.PendingOutcome)), nullString(r.OutcomeClaimedBy),
			nullTime(r.OutcomeClaimedAt), prev.Status,
		)
		if err != nil {
			return domain.Bet{}, nil, wrapErr("update recipient", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return domain.Bet{}, nil, domain.Conflictf("recipient %s changed concurrently", r.ID)
		}
	}

	if out.BetChanged {
		if err := setBetStatus(ctx, tx, out.Bet.ID, out.OldStatus, out.Bet.Status, *out.Bet.UpdatedAt, c.ActorID, c.Op); err != nil {
			return domain.Bet{}, nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Bet{}, nil, wrapErr("commit", err)
	}
	return out.Bet, out.Recipients, nil
}

// UpdateBetStatus troca o status gravado somente se ele ainda for from (usado pelo reconciler)
func (p *Postgres) UpdateBetStatus(ctx context.Context, betID string, from, to domain.BetStatus) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("begin", err)
	}
	defer tx.Rollback()

	if err := setBetStatus(ctx, tx, betID, from, to, p.now().UTC(), "system", "reconcile"); err != nil {
		return err
	}
	return wrapErr("commit", tx.Commit())
}

// DeleteBet remove a aposta pending do creator; os recipients caem por ON DELETE CASCADE
func (p *Postgres) DeleteBet(ctx context.Context, betID, creatorID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("begin", err)
	}
	defer tx.Rollback()

	b, err := lockBet(ctx, tx, betID)
	if err != nil {
		return err
	}
	if b.CreatorID != creatorID {
		return domain.NotPermittedf("only the creator may delete bet %s", betID)
	}
	rs, err := listRecipients(ctx, tx, betID)
	if err != nil {
		return err
	}
	if st := domain.EffectiveStatus(b.Status, rs); st != domain.BetPending {
		return domain.Conflictf("bet %s is %s", betID, st)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM bets WHERE id = $1 AND status = 'pending'`, betID)
	if err != nil {
		return wrapErr("delete bet", err)
	}
	// DELETE condicional: nenhuma linha removida é conflito
	if n, _ := res.RowsAffected(); n != 1 {
		return domain.Conflictf("bet %s is not stored as pending", betID)
	}
	return wrapErr("commit", tx.Commit())
}

// PaymentHandle retorna o handle do app de pagamento do usuário
func (p *Postgres) PaymentHandle(ctx context.Context, userID string) (string, error) {
	var h sql.NullString
	err := p.db.QueryRowContext(ctx, `SELECT payment_handle FROM profiles WHERE user_id = $1`, userID).Scan(&h)
	if err != nil {
		return "", wrapErr("payment handle", err)
	}
	return h.String, nil
}

// SetPaymentHandle grava o handle do usuário (upsert no perfil)
func (p *Postgres) SetPaymentHandle(ctx context.Context, userID, handle string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, payment_handle) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET payment_handle = EXCLUDED.payment_handle`,
		userID, handle)
	return wrapErr("set payment handle", err)
}

// querier cobre *sql.DB e *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listRecipients(ctx context.Context, q querier, betID string) ([]domain.Recipient, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+recipientColumns+` FROM bet_recipients WHERE bet_id = $1 ORDER BY created_at, id`, betID)
	if err != nil {
		return nil, wrapLookup("list recipients", err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, wrapErr("scan recipient", err)
		}
		out = append(out, r)
	}
	return out, wrapErr("list recipients", rows.Err())
}

func lockBet(ctx context.Context, tx *sql.Tx, betID string) (domain.Bet, error) {
	b, err := scanBet(tx.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1 FOR UPDATE`, betID))
	if err != nil {
		return domain.Bet{}, wrapLookup("lock bet "+betID, err)
	}
	return b, nil
}

// setBetStatus grava o novo status com guarda no anterior e registra a trilha de auditoria
func setBetStatus(ctx context.Context, tx *sql.Tx, betID string, from, to domain.BetStatus, at time.Time, actor, op string) error {
	res, err := tx.ExecContext(ctx, `UPDATE bets SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		betID, to, at, from)
	if err != nil {
		return wrapErr("update bet", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return domain.Conflictf("bet %s is no longer %s", betID, from)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bet_transitions (bet_id, actor_id, op, old_status, new_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		betID, actor, op, from, to, at,
	); err != nil {
		return wrapErr("insert transition", err)
	}
	return nil
}

func findByID(rs []domain.Recipient, id string) domain.Recipient {
	for _, r := range rs {
		if r.ID == id {
			return r
		}
	}
	return domain.Recipient{}
}
