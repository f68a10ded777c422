package postgres

import (
	// Go Internal Packages
	"context"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"

	// External Packages
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	clientColumns = `id, document, name, email, phone, balance::text, held::text,
		email_verification, created_at, updated_at`
	transactionColumns = `id, client_id, type, amount::text, status, COALESCE(session_id, ''),
		COALESCE(token, ''), COALESCE(failure_reason, ''), COALESCE(source, ''),
		COALESCE(reference, ''), created_at, expires_at, completed_at`
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// db returns the transaction bound to ctx, or the pool outside a unit of work.
func (r *LedgerRepository) db(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.pool
}

func (r *LedgerRepository) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.pool.BeginTx(ctx, opts)
	if err != nil {
		return errors.StoreErr("begin", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return errors.StoreErr("commit", tx.Commit(ctx))
}

func (r *LedgerRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (r *LedgerRepository) RunInSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

// classify maps constraint violations onto ledger errors.
func classify(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return errors.ErrDuplicateKey
		case pgErr.Code == "23514" && pgErr.ConstraintName == "clients_funds_check":
			return errors.ErrInsufficientFunds
		case pgErr.Code == "23514":
			return errors.E(errors.Invalid, op, err)
		}
	}
	return errors.StoreErr(op, err)
}

func scanClient(row pgx.Row) (*models.Client, error) {
	var (
		c             models.Client
		balance, held string
	)
	err := row.Scan(&c.ID, &c.Document, &c.Name, &c.Email, &c.Phone, &balance, &held,
		&c.EmailVerification, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Balance = decimal.RequireFromString(balance)
	c.Held = decimal.RequireFromString(held)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var (
		t                      models.Transaction
		txType, status, amount string
		expiresAt, completedAt *time.Time
	)
	err := row.Scan(&t.ID, &t.ClientID, &txType, &amount, &status, &t.SessionID, &t.Token,
		&t.FailureReason, &t.Source, &t.Reference, &t.CreatedAt, &expiresAt, &completedAt)
	if err != nil {
		return nil, err
	}
	t.Type = models.TransactionType(txType)
	t.Status = models.TransactionStatus(status)
	t.Amount = decimal.RequireFromString(amount)
	t.CreatedAt = t.CreatedAt.UTC()
	if expiresAt != nil {
		t.ExpiresAt = expiresAt.UTC()
	}
	if completedAt != nil {
		t.CompletedAt = completedAt.UTC()
	}
	return &t, nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r *LedgerRepository) CreateClient(ctx context.Context, c *models.Client) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO clients (id, document, name, email, phone, balance, held, email_verification, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10)`,
		c.ID, c.Document, c.Name, c.Email, c.Phone, numeric(c.Balance), numeric(c.Held),
		c.EmailVerification, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return classify("insert client", err)
	}
	return nil
}

func (r *LedgerRepository) FindClientByDocumentAndPhone(ctx context.Context, document, phone string) (*models.Client, error) {
	row := r.db(ctx).QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE document = $1 AND phone = $2`, document, phone)
	c, err := scanClient(row)
	if err != nil {
		return nil, classify("find client", err)
	}
	return c, nil
}

func (r *LedgerRepository) FindClientByID(ctx context.Context, id string) (*models.Client, error) {
	row := r.db(ctx).QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if err != nil {
		return nil, classify("find client", err)
	}
	return c, nil
}

// guardedUpdate runs a conditional UPDATE ... RETURNING on one client. No row
// back means either the client is missing or the guard failed.
func (r *LedgerRepository) guardedUpdate(ctx context.Context, id, set, guard string, amount decimal.Decimal, failed error) (*models.Client, error) {
	sql := `UPDATE clients SET ` + set + `, updated_at = now() WHERE id = $1`
	if guard != "" {
		sql += ` AND ` + guard
	}
	sql += ` RETURNING ` + clientColumns

	c, err := scanClient(r.db(ctx).QueryRow(ctx, sql, id, numeric(amount)))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, ferr := r.FindClientByID(ctx, id); ferr != nil {
			return nil, ferr
		}
		return nil, failed
	}
	if err != nil {
		return nil, classify("update client", err)
	}
	return c, nil
}

func (r *LedgerRepository) AdjustBalance(ctx context.Context, clientID string, delta decimal.Decimal) (*models.Client, error) {
	return r.guardedUpdate(ctx, clientID,
		`balance = balance + $2::numeric`,
		`balance + $2::numeric >= held`,
		delta, errors.ErrInsufficientFunds)
}

func (r *LedgerRepository) HoldFunds(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error) {
	return r.guardedUpdate(ctx, clientID,
		`held = held + $2::numeric`,
		`balance - held >= $2::numeric`,
		amount, errors.ErrInsufficientFunds)
}

func (r *LedgerRepository) ReleaseHold(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error) {
	return r.guardedUpdate(ctx, clientID,
		`held = held - $2::numeric`,
		`held >= $2::numeric`,
		amount, errors.E(errors.Internal, "release exceeds held funds", nil))
}

func (r *LedgerRepository) SettleHold(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error) {
	return r.guardedUpdate(ctx, clientID,
		`held = held - $2::numeric, balance = balance - $2::numeric`,
		`held >= $2::numeric AND balance >= $2::numeric`,
		amount, errors.ErrInsufficientFunds)
}

func (r *LedgerRepository) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO transactions (id, client_id, type, amount, status, session_id, token,
			failure_reason, source, reference, created_at, expires_at, completed_at)
		VALUES ($1, $2, $3, $4::numeric, $5, NULLIF($6, ''), NULLIF($7, ''),
			NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)`,
		t.ID, t.ClientID, string(t.Type), numeric(t.Amount), string(t.Status), t.SessionID, t.Token,
		t.FailureReason, t.Source, t.Reference, t.CreatedAt, nullTime(t.ExpiresAt), nullTime(t.CompletedAt),
	)
	if err != nil {
		return classify("insert transaction", err)
	}
	return nil
}

func (r *LedgerRepository) FindTransactionBySessionAndToken(ctx context.Context, sessionID, token string, status models.TransactionStatus) (*models.Transaction, error) {
	row := r.db(ctx).QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE session_id = $1 AND token = $2 AND status = $3`, sessionID, token, string(status))
	t, err := scanTransaction(row)
	if err != nil {
		return nil, classify("find transaction", err)
	}
	return t, nil
}

func (r *LedgerRepository) FindTransactionBySession(ctx context.Context, sessionID string, status models.TransactionStatus) (*models.Transaction, error) {
	row := r.db(ctx).QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE session_id = $1 AND status = $2`, sessionID, string(status))
	t, err := scanTransaction(row)
	if err != nil {
		return nil, classify("find transaction", err)
	}
	return t, nil
}

func (r *LedgerRepository) TransitionTransaction(ctx context.Context, id string, from, to models.TransactionStatus, reason string, at time.Time) (*models.Transaction, error) {
	row := r.db(ctx).QueryRow(ctx, `
		UPDATE transactions SET status = $3, failure_reason = NULLIF($4, ''), completed_at = $5
		WHERE id = $1 AND status = $2
		RETURNING `+transactionColumns,
		id, string(from), string(to), reason, at)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, classify("transition transaction", err)
	}
	return t, nil
}

func (r *LedgerRepository) list(ctx context.Context, sql string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, classify("list transactions", err)
	}
	defer rows.Close()

	txs := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, classify("scan transaction", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list transactions", err)
	}
	return txs, nil
}

func (r *LedgerRepository) ListExpiredPayments(ctx context.Context, before time.Time, limit int) ([]*models.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE type = 'PAYMENT' AND status = 'PENDING' AND expires_at <= $1
		ORDER BY expires_at LIMIT $2`, before, limit)
}

func (r *LedgerRepository) CountTransactions(ctx context.Context, clientID string) (int64, error) {
	var n int64
	err := r.db(ctx).QueryRow(ctx, `SELECT count(*) FROM transactions WHERE client_id = $1`, clientID).Scan(&n)
	if err != nil {
		return 0, classify("count transactions", err)
	}
	return n, nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, clientID string, offset, limit int64) ([]*models.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE client_id = $1
		ORDER BY created_at DESC, seq DESC
		OFFSET $2 LIMIT $3`, clientID, offset, limit)
}
