package wallet

import (
	// Go Internal Packages
	"context"
	"time"

	// Local Packages
	clock "wallet-ledger/clock"
	errors "wallet-ledger/errors"
	metrics "wallet-ledger/metrics"
	models "wallet-ledger/models"

	// External Packages
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store is the durable ledger. Every call made with the context handed to a
// RunInTx callback joins that unit of work; an error returned by the callback
// rolls all of its writes back.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	RunInSnapshot(ctx context.Context, fn func(ctx context.Context) error) error

	CreateClient(ctx context.Context, client *models.Client) error
	FindClientByDocumentAndPhone(ctx context.Context, document, phone string) (*models.Client, error)
	FindClientByID(ctx context.Context, id string) (*models.Client, error)
	AdjustBalance(ctx context.Context, clientID string, delta decimal.Decimal) (*models.Client, error)
	HoldFunds(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error)
	ReleaseHold(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error)
	SettleHold(ctx context.Context, clientID string, amount decimal.Decimal) (*models.Client, error)

	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	FindTransactionBySessionAndToken(ctx context.Context, sessionID, token string, status models.TransactionStatus) (*models.Transaction, error)
	FindTransactionBySession(ctx context.Context, sessionID string, status models.TransactionStatus) (*models.Transaction, error)
	TransitionTransaction(ctx context.Context, id string, from, to models.TransactionStatus, reason string, at time.Time) (*models.Transaction, error)
	ListExpiredPayments(ctx context.Context, before time.Time, limit int) ([]*models.Transaction, error)
	CountTransactions(ctx context.Context, clientID string) (int64, error)
	ListTransactions(ctx context.Context, clientID string, offset, limit int64) ([]*models.Transaction, error)
}

// Notifier delivers a message out of band.
type Notifier interface {
	Notify(ctx context.Context, msg models.Message) error
}

// Publisher emits committed ledger events. Implementations must not block.
type Publisher interface {
	Publish(ctx context.Context, event models.LedgerEvent)
}

// AttemptLimiter counts confirmation attempts per session. Record returns the
// count including the attempt just recorded.
type AttemptLimiter interface {
	Record(ctx context.Context, sessionID string) (int64, error)
	Reset(ctx context.Context, sessionID string) error
}

type Config struct {
	SessionTTL         time.Duration
	MaxConfirmAttempts int64
	NotifyTimeout      time.Duration
}

var DefaultConfig = Config{
	SessionTTL:         15 * time.Minute,
	MaxConfirmAttempts: 5,
	NotifyTimeout:      5 * time.Second,
}

type Service struct {
	Logger    *zap.Logger
	Store     Store
	Notifier  Notifier
	Publisher Publisher
	Limiter   AttemptLimiter
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Config    Config
	Tokens    func() (string, error)
}

// NewService wires a service with no-op collaborators; callers replace the ones
// they have.
func NewService(logger *zap.Logger, store Store, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultConfig.SessionTTL
	}
	if cfg.MaxConfirmAttempts <= 0 {
		cfg.MaxConfirmAttempts = DefaultConfig.MaxConfirmAttempts
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultConfig.NotifyTimeout
	}
	return &Service{
		Logger:    logger,
		Store:     store,
		Notifier:  disabledNotifier{},
		Publisher: discardPublisher{},
		Clock:     clock.RealClock{},
		Config:    cfg,
		Tokens:    GenerateToken,
	}
}

func (s *Service) now() time.Time {
	return s.Clock.Now().UTC()
}

func (s *Service) observe(operation string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = errors.CodeOf(err)
		if result == "" {
			result = errors.KindOf(err).String()
		}
	}
	s.Metrics.ObserveOperation(operation, result, started)
}

func (s *Service) publish(ctx context.Context, event models.LedgerEvent) {
	event.OccurredAt = s.now()
	s.Publisher.Publish(ctx, event)
}

// findClient resolves a client by identity and maps a miss to ErrClientNotFound.
func (s *Service) findClient(ctx context.Context, document, phone string) (*models.Client, error) {
	c, err := s.Store.FindClientByDocumentAndPhone(ctx, document, phone)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.ErrClientNotFound
	}
	return c, err
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type disabledNotifier struct{}

func (disabledNotifier) Notify(context.Context, models.Message) error {
	return errors.ErrNotificationsDisabled
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, models.LedgerEvent) {}
