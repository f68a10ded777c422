package api

import (
	// Go Internal Packages
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	// Local Packages
	errors "wallet-ledger/errors"
	models "wallet-ledger/models"

	// External Packages
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Amount accepts a JSON number or a JSON string and keeps its text so that the
// service can validate it.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(data)
	return nil
}

type successBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorBody struct {
	Success bool                `json:"success"`
	Code    string              `json:"code"`
	Error   string              `json:"error"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

type ClientResponse struct {
	ID                string    `json:"id"`
	Document          string    `json:"document"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Balance           string    `json:"balance"`
	EmailVerification bool      `json:"emailVerification"`
	CreatedAt         time.Time `json:"createdAt"`
}

type TransactionResponse struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Amount        string     `json:"amount"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failureReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

type LedgerResponse struct {
	Transaction    TransactionResponse `json:"transaction"`
	CurrentBalance string              `json:"currentBalance"`
}

type PaymentResponse struct {
	SessionID        string    `json:"sessionId"`
	Token            string    `json:"token,omitempty"`
	Notified         bool      `json:"notified"`
	TransactionID    string    `json:"transactionId"`
	Amount           string    `json:"amount"`
	ExpiresAt        time.Time `json:"expiresAt"`
	CurrentBalance   string    `json:"currentBalance"`
	AvailableBalance string    `json:"availableBalance"`
}

type BalanceResponse struct {
	Balance          string                `json:"balance"`
	HeldBalance      string                `json:"heldBalance"`
	AvailableBalance string                `json:"availableBalance"`
	Transactions     []TransactionResponse `json:"transactions"`
	Pagination       models.Pagination     `json:"pagination"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func toClientResponse(c *models.Client) ClientResponse {
	return ClientResponse{
		ID:                c.ID,
		Document:          c.Document,
		Name:              c.Name,
		Email:             c.Email,
		Phone:             c.Phone,
		Balance:           money(c.Balance),
		EmailVerification: c.EmailVerification,
		CreatedAt:         c.CreatedAt,
	}
}

// toTransactionResponse never exposes the session token.
func toTransactionResponse(t *models.Transaction) TransactionResponse {
	res := TransactionResponse{
		ID:            t.ID,
		Type:          string(t.Type),
		Amount:        money(t.Amount),
		Status:        string(t.Status),
		FailureReason: t.FailureReason,
		CreatedAt:     t.CreatedAt,
	}
	if !t.CompletedAt.IsZero() {
		completed := t.CompletedAt
		res.CompletedAt = &completed
	}
	return res
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, successBody{Success: true, Data: data})
}

// statusOf maps an error to its HTTP status. A bad session or token is the
// caller's mistake and is reported as 400 like any other rejected input.
func statusOf(err error) int {
	if errors.Is(err, errors.ErrInvalidSessionOrToken) {
		return http.StatusBadRequest
	}
	switch errors.KindOf(err) {
	case errors.Invalid:
		return http.StatusBadRequest
	case errors.NotFound:
		return http.StatusNotFound
	case errors.Conflict:
		return http.StatusConflict
	case errors.InsufficientFunds:
		return http.StatusUnprocessableEntity
	case errors.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusOf(err)

	body := errorBody{Success: false, Code: errors.CodeOf(err)}
	if body.Code == "" {
		body.Code = errors.KindOf(err).String()
	}

	switch status {
	case http.StatusInternalServerError:
		body.Code, body.Error = "Internal", "internal server error"
	case http.StatusServiceUnavailable:
		body.Error = "service temporarily unavailable"
	default:
		body.Error = err.Error()
		var ve *errors.ValidationErrors
		if errors.As(err, &ve) {
			body.Fields = ve.Fields()
		}
	}
	c.AbortWithStatusJSON(status, body)
}
