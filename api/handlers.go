package api

import (
	// Go Internal Packages
	"context"
	"net/http"
	"strconv"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"
	wallet "wallet-ledger/services/wallet"

	// External Packages
	"github.com/gin-gonic/gin"
)

type WalletService interface {
	RegisterClient(ctx context.Context, req wallet.RegisterRequest) (*models.Client, error)
	Recharge(ctx context.Context, req wallet.RechargeRequest) (*wallet.RechargeResult, error)
	InitiatePayment(ctx context.Context, req wallet.PaymentRequest) (*wallet.PaymentSession, error)
	ConfirmPayment(ctx context.Context, req wallet.ConfirmRequest) (*wallet.Confirmation, error)
	Balance(ctx context.Context, q wallet.BalanceQuery) (*wallet.Statement, error)
}

// HealthCheck reports whether the ledger store is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	Wallet WalletService
	Health HealthCheck
}

func NewHandler(w WalletService, health HealthCheck) *Handler {
	return &Handler{Wallet: w, Health: health}
}

type registerRequest struct {
	Document          string `json:"document"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	EmailVerification *bool  `json:"emailVerification"`
}

type amountRequest struct {
	Document string `json:"document"`
	Phone    string `json:"phone"`
	Amount   Amount `json:"amount"`
}

type confirmRequest struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// RegisterClient handles POST /clients
func (h *Handler) RegisterClient(c *gin.Context) {
	var body registerRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errors.InvalidBodyErr(err))
		return
	}

	client, err := h.Wallet.RegisterClient(c.Request.Context(), wallet.RegisterRequest{
		Document:          body.Document,
		Name:              body.Name,
		Email:             body.Email,
		Phone:             body.Phone,
		EmailVerification: body.EmailVerification,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusCreated, toClientResponse(client))
}

// Recharge handles POST /recharge
func (h *Handler) Recharge(c *gin.Context) {
	var body amountRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errors.InvalidBodyErr(err))
		return
	}

	res, err := h.Wallet.Recharge(c.Request.Context(), wallet.RechargeRequest{
		Document: body.Document,
		Phone:    body.Phone,
		Amount:   string(body.Amount),
		Source:   models.SourceAPI,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, LedgerResponse{
		Transaction:    toTransactionResponse(res.Transaction),
		CurrentBalance: money(res.Client.Balance),
	})
}

// InitiatePayment handles POST /pay
func (h *Handler) InitiatePayment(c *gin.Context) {
	var body amountRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errors.InvalidBodyErr(err))
		return
	}

	ps, err := h.Wallet.InitiatePayment(c.Request.Context(), wallet.PaymentRequest{
		Document: body.Document,
		Phone:    body.Phone,
		Amount:   string(body.Amount),
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, PaymentResponse{
		SessionID:        ps.SessionID,
		Token:            ps.Token,
		Notified:         ps.Notified,
		TransactionID:    ps.TransactionID,
		Amount:           money(ps.Amount),
		ExpiresAt:        ps.ExpiresAt,
		CurrentBalance:   money(ps.Balance),
		AvailableBalance: money(ps.AvailableBalance),
	})
}

// ConfirmPayment handles POST /confirm-payment
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var body confirmRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errors.InvalidBodyErr(err))
		return
	}

	conf, err := h.Wallet.ConfirmPayment(c.Request.Context(), wallet.ConfirmRequest{
		SessionID: body.SessionID,
		Token:     body.Token,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, LedgerResponse{
		Transaction:    toTransactionResponse(conf.Transaction),
		CurrentBalance: money(conf.Client.Balance),
	})
}

// Balance handles GET /balance?document=&phone=&page=&limit=
func (h *Handler) Balance(c *gin.Context) {
	page, err := positiveQuery(c, "page", 1)
	if err != nil {
		fail(c, err)
		return
	}
	limit, err := positiveQuery(c, "limit", wallet.DefaultPageLimit)
	if err != nil {
		fail(c, err)
		return
	}

	st, err := h.Wallet.Balance(c.Request.Context(), wallet.BalanceQuery{
		Document: c.Query("document"),
		Phone:    c.Query("phone"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		fail(c, err)
		return
	}

	txs := make([]TransactionResponse, 0, len(st.Transactions))
	for _, t := range st.Transactions {
		txs = append(txs, toTransactionResponse(t))
	}
	ok(c, http.StatusOK, BalanceResponse{
		Balance:          money(st.Client.Balance),
		HeldBalance:      money(st.Client.Held),
		AvailableBalance: money(st.Client.Available()),
		Transactions:     txs,
		Pagination:       st.Pagination,
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	if h.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Health(ctx); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// positiveQuery reads an optional positive integer query parameter.
func positiveQuery(c *gin.Context, name string, def int) (int, error) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		ve := errors.ValidationErrs()
		ve.Add(name, "must be a positive integer")
		return 0, errors.InvalidParamsErr(errors.Wrap(errors.ErrInvalidPagination, ve.Err()))
	}
	return n, nil
}
