package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lightning-timesheet/config"
	"lightning-timesheet/internal/core/domain"
	"lightning-timesheet/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	headerAPIKey = "X-Api-Key"
	// maxErrorBody caps how much of a provider error body is read for detail text.
	maxErrorBody = 64 << 10
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// createInvoiceRequest is the body for POST /api/v1/payments with out=false.
type createInvoiceRequest struct {
	Out    bool   `json:"out"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
	Unit   string `json:"unit"`
	Expiry int64  `json:"expiry,omitempty"` // seconds
}

// payInvoiceRequest is the body for POST /api/v1/payments with out=true.
type payInvoiceRequest struct {
	Out    bool   `json:"out"`
	Bolt11 string `json:"bolt11"`
}

type walletResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

type invoiceResponse struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
	// Newer provider versions return the invoice as bolt11 instead.
	Bolt11 string `json:"bolt11"`
}

type paymentResponse struct {
	PaymentHash string `json:"payment_hash"`
}

type paymentStatusResponse struct {
	Paid bool `json:"paid"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// LNbitsClient implements ports.WalletProvider against an LNbits-compatible API.
// Invoices are created with the payee's read key and paid with the payer's
// admin key; reads use the restricted keys only.
type LNbitsClient struct {
	baseURL       string
	httpClient    HTTPClient
	timeout       time.Duration
	payer         config.AccountConfig
	payee         config.AccountConfig
	balanceInMsat bool
	invoiceExpiry time.Duration
	log           zerolog.Logger
}

// NewLNbitsClient creates a new provider client.
func NewLNbitsClient(cfg config.ProviderConfig, httpClient HTTPClient, log zerolog.Logger) *LNbitsClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &LNbitsClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    httpClient,
		timeout:       cfg.Timeout,
		payer:         cfg.Payer,
		payee:         cfg.Payee,
		balanceInMsat: cfg.BalanceInMsat,
		invoiceExpiry: cfg.InvoiceExpiry,
		log:           log,
	}
}

// GetBalance fetches the wallet details of the account with the given role.
func (c *LNbitsClient) GetBalance(ctx context.Context, role domain.AccountRole) (*domain.WalletAccount, error) {
	account, err := c.account(role)
	if err != nil {
		return nil, err
	}

	var resp walletResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/wallet", account.ReadKey, nil, &resp); err != nil {
		return nil, err
	}

	balance := resp.Balance
	if c.balanceInMsat {
		balance /= 1000
	}
	id := resp.ID
	if id == "" {
		id = account.WalletID
	}
	return &domain.WalletAccount{
		ID:      id,
		Name:    resp.Name,
		Balance: balance,
		Role:    role,
	}, nil
}

// CreateReceivable creates an incoming invoice on the payee wallet.
func (c *LNbitsClient) CreateReceivable(ctx context.Context, amount int64, memo string) (*domain.Receivable, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	body := createInvoiceRequest{
		Out:    false,
		Amount: amount,
		Memo:   memo,
		Unit:   "sat",
		Expiry: int64(c.invoiceExpiry / time.Second),
	}
	var resp invoiceResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments", c.payee.ReadKey, body, &resp); err != nil {
		return nil, err
	}

	payRequest := resp.PaymentRequest
	if payRequest == "" {
		payRequest = resp.Bolt11
	}
	if payRequest == "" {
		return nil, apperror.ErrProviderError(http.StatusOK, "invoice response missing payment_request")
	}
	return &domain.Receivable{InvoiceID: resp.PaymentHash, PayRequest: payRequest}, nil
}

// PayReceivable pays a BOLT11 invoice from the payer wallet.
func (c *LNbitsClient) PayReceivable(ctx context.Context, payRequest string) (*domain.Payment, error) {
	if payRequest == "" {
		return nil, apperror.Validation("missing pay request")
	}

	var resp paymentResponse
	body := payInvoiceRequest{Out: true, Bolt11: payRequest}
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments", c.payer.AdminKey, body, &resp); err != nil {
		return nil, err
	}
	if resp.PaymentHash == "" {
		return nil, apperror.ErrProviderError(http.StatusOK, "payment response missing payment_hash")
	}
	return &domain.Payment{ReferenceID: resp.PaymentHash}, nil
}

// GetTransferStatus reports whether the payment identified by referenceID is paid.
func (c *LNbitsClient) GetTransferStatus(ctx context.Context, referenceID string) (*domain.TransferStatus, error) {
	if referenceID == "" {
		return nil, apperror.Validation("missing reference id")
	}

	var resp paymentStatusResponse
	path := "/api/v1/payments/" + url.PathEscape(referenceID)
	if err := c.do(ctx, http.MethodGet, path, c.payee.ReadKey, nil, &resp); err != nil {
		return nil, err
	}
	return &domain.TransferStatus{ReferenceID: referenceID, Settled: resp.Paid}, nil
}

// Ping checks provider connectivity by reading the payer wallet.
func (c *LNbitsClient) Ping(ctx context.Context) error {
	_, err := c.GetBalance(ctx, domain.AccountRolePayer)
	return err
}

// Name returns the dependency name.
func (c *LNbitsClient) Name() string {
	return "wallet_provider"
}

func (c *LNbitsClient) account(role domain.AccountRole) (config.AccountConfig, error) {
	switch role {
	case domain.AccountRolePayer:
		return c.payer, nil
	case domain.AccountRolePayee:
		return c.payee, nil
	}
	return config.AccountConfig{}, apperror.Validation(fmt.Sprintf("unknown account role %q", role))
}

// do issues one bounded request. Transport failures and timeouts map to
// ProviderUnavailable, non-2xx responses to ProviderError with the provider's detail.
func (c *LNbitsClient) do(ctx context.Context, method, path, apiKey string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("marshal provider request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("build provider request: %w", err))
	}
	req.Header.Set(headerAPIKey, apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).
			Str("method", method).
			Str("path", path).
			Dur("latency", time.Since(start)).
			Msg("wallet provider unreachable")
		return apperror.ErrProviderUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := readDetail(resp.Body)
		c.log.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("detail", detail).
			Msg("wallet provider rejected request")
		return apperror.ErrProviderError(resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperror.ErrProviderUnavailable(err)
		}
		return apperror.ErrProviderError(resp.StatusCode, "malformed response body")
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("wallet provider request")
	return nil
}

// readDetail extracts the provider's {"detail": ...} text, falling back to the raw body.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return strings.TrimSpace(string(raw))
}
