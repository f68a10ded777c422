package memory

import (
	// Go Internal Packages
	"context"
	"crypto/subtle"
	"sort"
	"sync"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"

	// External Packages
	"github.com/shopspring/decimal"
)

type txKey struct{}

type state struct {
	clients    map[string]models.Client
	identities map[string]string
	unique     map[string]string
	txs        map[string]models.Transaction
	sessions   map[string]string
	references map[string]string
	seq        map[string]int64
}

func (s *state) clone() *state {
	c := &state{
		clients:    make(map[string]models.Client, len(s.clients)),
		identities: make(map[string]string, len(s.identities)),
		unique:     make(map[string]string, len(s.unique)),
		txs:        make(map[string]models.Transaction, len(s.txs)),
		sessions:   make(map[string]string, len(s.sessions)),
		references: make(map[string]string, len(s.references)),
		seq:        make(map[string]int64, len(s.seq)),
	}
	for k, v := range s.clients {
		c.clients[k] = v
	}
	for k, v := range s.identities {
		c.identities[k] = v
	}
	for k, v := range s.unique {
		c.unique[k] = v
	}
	for k, v := range s.txs {
		c.txs[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.references {
		c.references[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

// LedgerStore keeps the ledger in process memory. Units of work are serialized
// by a single lock and rolled back by restoring the state taken when they began.
// It backs the memory driver and the service tests.
type LedgerStore struct {
	mu    sync.Mutex
	data  *state
	count int64
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{data: &state{
		clients:    make(map[string]models.Client),
		identities: make(map[string]string),
		unique:     make(map[string]string),
		txs:        make(map[string]models.Transaction),
		sessions:   make(map[string]string),
		references: make(map[string]string),
		seq:        make(map[string]int64),
	}}
}

func identity(document, phone string) string {
	return document + "\x00" + phone
}

func (r *LedgerStore) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*LedgerStore)
	return owner == r
}

// do runs fn under the store lock unless ctx already belongs to a unit of work.
func (r *LedgerStore) do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.StoreErr("memory", err)
	}
	if r.inTx(ctx) {
		return fn()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn()
}

func (r *LedgerStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return errors.StoreErr("memory", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	saved, savedCount := r.data.clone(), r.count
	if err := fn(context.WithValue(ctx, txKey{}, r)); err != nil {
		r.data, r.count = saved, savedCount
		return err
	}
	return nil
}

// RunInSnapshot holds the lock for the whole callback, so every read inside it
// observes the same state.
func (r *LedgerStore) RunInSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.RunInTx(ctx, fn)
}

// CreateClient enforces the same uniqueness as the database stores: the id,
// document, email and phone of a client are each unique.
func (r *LedgerStore) CreateClient(ctx context.Context, client *models.Client) error {
	return r.do(ctx, func() error {
		if _, ok := r.data.clients[client.ID]; ok {
			return errors.ErrDuplicateKey
		}
		keys := []string{
			"document:" + client.Document,
			"email:" + client.Email,
			"phone:" + client.Phone,
		}
		for _, k := range keys {
			if _, ok := r.data.unique[k]; ok {
				return errors.ErrDuplicateKey
			}
		}
		for _, k := range keys {
			r.data.unique[k] = client.ID
		}
		r.data.clients[client.ID] = *client
		r.data.identities[identity(client.Document, client.Phone)] = client.ID
		return nil
	})
}

func (r *LedgerStore) FindClientByDocumentAndPhone(ctx context.Context, document, phone string) (*models.Client, error) {
	var out *models.Client
	err := r.do(ctx, func() error {
		id, ok := r.data.identities[identity(document, phone)]
		if !ok {
			return errors.ErrNotFound
		}
		c := r.data.clients[id]
		out = &c
		return nil
	})
	return out, err
}

func (r *LedgerStore) FindClientByID(ctx context.Context, id string) (*models.Client, error) {
	var out *models.Client
	err := r.do(ctx, func() error {
		c, ok := r.data.clients[id]
		if !ok {
			return errors.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

// updateClient applies fn to a copy of the client and stores it if fn succeeds.
func (r *LedgerStore) updateClient(ctx context.Context, id string, fn func(c *models.Client) error) (*models.Client, error) {
	var out *models.Client
	err := r.do(ctx, func() error {
		c, ok := r.data.clients[id]
		if !ok {
			return errors.ErrNotFound
		}
		if err := fn(&c); err != nil {
			return err
		}
		c.UpdatedAt = time.Now().UTC()
		r.data.clients[id] = c
		out = &c
		return nil
	})
	return out, err
}

func (r *LedgerStore) AdjustBalance(ctx context.Context, clientID string, delta decimal.Decimal) (*models.Client, error) {
	return r.updateClient(ctx, clientID, func(c *models.Client) error {
		next := c.Balance.Add(delta)
		if next.LessThan(c.Held) {
			return errors.ErrInsufficientFunds
		}
		c.Balance = next
		return nil
	})
}

func (r *LedgerStore) HoldFunds(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error) {
	return r.updateClient(ctx, clientID, func(c *models.Client) error {
		if c.Available().LessThan(amount) {
			return errors.ErrInsufficientFunds
		}
		c.Held = c.Held.Add(amount)
		return nil
	})
}

func (r *LedgerStore) ReleaseHold(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error) {
	return r.updateClient(ctx, clientID, func(c *models.Client) error {
		if c.Held.LessThan(amount) {
			return errors.E(errors.Internal, "release exceeds held funds", nil)
		}
		c.Held = c.Held.Sub(amount)
		return nil
	})
}

func (r *LedgerStore) SettleHold(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error) {
	return r.updateClient(ctx, clientID, func(c *models.Client) error {
		if c.Held.LessThan(amount) || c.Balance.LessThan(amount) {
			return errors.ErrInsufficientFunds
		}
		c.Held = c.Held.Sub(amount)
		c.Balance = c.Balance.Sub(amount)
		return nil
	})
}

func (r *LedgerStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	return r.do(ctx, func() error {
		if _, ok := r.data.txs[tx.ID]; ok {
			return errors.ErrDuplicateKey
		}
		if tx.SessionID != "" {
			if _, ok := r.data.sessions[tx.SessionID]; ok {
				return errors.ErrDuplicateKey
			}
		}
		if tx.Reference != "" {
			if _, ok := r.data.references[tx.Reference]; ok {
				return errors.ErrDuplicateKey
			}
			r.data.references[tx.Reference] = tx.ID
		}
		if tx.SessionID != "" {
			r.data.sessions[tx.SessionID] = tx.ID
		}
		r.count++
		r.data.txs[tx.ID] = *tx
		r.data.seq[tx.ID] = r.count
		return nil
	})
}

func (r *LedgerStore) FindTransactionBySessionAndToken(ctx context.Context, sessionID, token string, status models.TransactionStatus) (*models.Transaction, error) {
	var out *models.Transaction
	err := r.do(ctx, func() error {
		t, ok := r.sessionTx(sessionID)
		if !ok || t.Status != status {
			return errors.ErrNotFound
		}
		if subtle.ConstantTimeCompare([]byte(t.Token), []byte(token)) != 1 {
			return errors.ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *LedgerStore) FindTransactionBySession(ctx context.Context, sessionID string, status models.TransactionStatus) (*models.Transaction, error) {
	var out *models.Transaction
	err := r.do(ctx, func() error {
		t, ok := r.sessionTx(sessionID)
		if !ok || t.Status != status {
			return errors.ErrNotFound
		}
		out = &t
		return nil
	})
	return out, err
}

func (r *LedgerStore) sessionTx(sessionID string) (models.Transaction, bool) {
	id, ok := r.data.sessions[sessionID]
	if !ok {
		return models.Transaction{}, false
	}
	t, ok := r.data.txs[id]
	return t, ok
}

// TransitionTransaction moves a transaction from one status to another. It
// returns ErrNotFound when the transaction is not currently in from.
func (r *LedgerStore) TransitionTransaction(ctx context.Context, id string, from, to models.TransactionStatus, reason string, at time.Time) (*models.Transaction, error) {
	var out *models.Transaction
	err := r.do(ctx, func() error {
		t, ok := r.data.txs[id]
		if !ok || t.Status != from {
			return errors.ErrNotFound
		}
		t.Status = to
		t.FailureReason = reason
		t.CompletedAt = at
		r.data.txs[id] = t
		out = &t
		return nil
	})
	return out, err
}

func (r *LedgerStore) ListExpiredPayments(ctx context.Context, before time.Time, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	err := r.do(ctx, func() error {
		for _, t := range r.data.txs {
			if t.Type != models.TypePayment || t.Status != models.StatusPending || !t.Expired(before) {
				continue
			}
			t := t
			out = append(out, &t)
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r *LedgerStore) CountTransactions(ctx context.Context, clientID string) (int64, error) {
	var n int64
	err := r.do(ctx, func() error {
		for _, t := range r.data.txs {
			if t.ClientID == clientID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ListTransactions returns a client's transactions newest first. Records
// created at the same instant keep their reverse insertion order.
func (r *LedgerStore) ListTransactions(ctx context.Context, clientID string, offset, limit int64) ([]*models.Transaction, error) {
	var out []*models.Transaction
	err := r.do(ctx, func() error {
		var all []*models.Transaction
		for _, t := range r.data.txs {
			if t.ClientID != clientID {
				continue
			}
			t := t
			all = append(all, &t)
		}
		sort.Slice(all, func(i, j int) bool {
			if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].CreatedAt.After(all[j].CreatedAt)
			}
			return r.data.seq[all[i].ID] > r.data.seq[all[j].ID]
		})
		if offset >= int64(len(all)) {
			out = []*models.Transaction{}
			return nil
		}
		end := int64(len(all))
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		out = all[offset:end]
		return nil
	})
	return out, err
}
