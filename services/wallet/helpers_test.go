package wallet

import (
	// Go Internal Packages
	"context"
	"sync"
	"testing"
	"time"

	// Local Packages
	metrics "wallet-ledger/metrics"
	models "wallet-ledger/models"
	memory "wallet-ledger/repositories/memory"

	// External Packages
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testClock returns now and then moves forward by step, so records created in a
// row get distinct timestamps.
type testClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), step: time.Millisecond}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	messages []models.Message
}

func (n *fakeNotifier) Notify(_ context.Context, msg models.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return n.err
}

func (n *fakeNotifier) sent() []models.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Message(nil), n.messages...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.LedgerEvent
}

func (p *fakePublisher) Publish(_ context.Context, e models.LedgerEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *fakePublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc       *Service
	store     *memory.LedgerStore
	clock     *testClock
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		store:     memory.NewLedgerStore(),
		clock:     newTestClock(),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	h.svc = NewService(zaptest.NewLogger(t), h.store, cfg)
	h.svc.Clock = h.clock
	h.svc.Notifier = h.notifier
	h.svc.Publisher = h.publisher
	h.svc.Limiter = memory.NewAttemptCounter(h.svc.Config.SessionTTL)
	h.svc.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	return h
}

func boolPtr(b bool) *bool { return &b }

// client registers a client without email delivery and funds it.
func (h *harness) client(t *testing.T, document, balance string) *models.Client {
	t.Helper()
	c, err := h.svc.RegisterClient(context.Background(), RegisterRequest{
		Document:          document,
		Name:              "Client " + document,
		Email:             document + "@example.com",
		Phone:             "555-" + document,
		EmailVerification: boolPtr(false),
	})
	require.NoError(t, err)
	if balance != "" {
		_, err = h.svc.Recharge(context.Background(), RechargeRequest{
			Document: c.Document,
			Phone:    c.Phone,
			Amount:   balance,
		})
		require.NoError(t, err)
	}
	return c
}

func (h *harness) reload(t *testing.T, c *models.Client) *models.Client {
	t.Helper()
	fresh, err := h.store.FindClientByID(context.Background(), c.ID)
	require.NoError(t, err)
	return fresh
}

func (h *harness) pay(t *testing.T, c *models.Client, amount string) *PaymentSession {
	t.Helper()
	ps, err := h.svc.InitiatePayment(context.Background(), PaymentRequest{
		Document: c.Document,
		Phone:    c.Phone,
		Amount:   amount,
	})
	require.NoError(t, err)
	return ps
}
