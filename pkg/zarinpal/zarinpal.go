// Package zarinpal talks to the ZarinPal v4 gateway used to settle clinic fees
// online. Only the two calls the fee flow needs are implemented: opening a
// payment and verifying it when the patient returns.
package zarinpal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/clinic_backend/config"
)

var (
	ErrPaymentFailed      = errors.New("zarinpal: payment failed or cancelled by user")
	ErrValidation         = errors.New("zarinpal: validation error")
	ErrAmountMismatch     = errors.New("zarinpal: amount does not match original request")
	ErrInvalidAuthority   = errors.New("zarinpal: invalid authority")
	ErrAuthorityNotFound  = errors.New("zarinpal: authority not found")
	ErrUnexpectedResponse = errors.New("zarinpal: unexpected response from gateway")
	ErrFractionalAmount   = errors.New("zarinpal: amount must be a whole number")
)

// Currency the clinic bills in. Fee amounts are whole tomans.
const Currency = "IRT"

const (
	codeOK       = 100
	codeVerified = 101

	productionHost = "https://payment.zarinpal.com"
	sandboxHost    = "https://sandbox.zarinpal.com"
)

// codeErrors maps gateway failure codes onto sentinel errors.
var codeErrors = map[int]error{
	-9:  ErrValidation,
	-50: ErrAmountMismatch,
	-51: ErrPaymentFailed,
	-54: ErrInvalidAuthority,
	-55: ErrAuthorityNotFound,
}

type Client struct {
	merchantID string
	apiBase    string
	payBase    string
	http       *http.Client
}

// New builds a client for the production or sandbox gateway.
func New(cfg config.ZarinPalConfig) *Client {
	host := productionHost
	if cfg.Sandbox {
		host = sandboxHost
	}
	return NewWithEndpoints(cfg.MerchantID, host+"/pg/v4", host+"/pg/StartPay/")
}

// NewWithEndpoints points the client at another gateway base (tests, mocks).
func NewWithEndpoints(merchantID, apiBase, payBase string) *Client {
	return &Client{
		merchantID: merchantID,
		apiBase:    apiBase,
		payBase:    payBase,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Amount converts a fee amount to the integer the gateway expects.
func Amount(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Truncate(0)) {
		return 0, ErrFractionalAmount
	}
	if !d.IsPositive() {
		return 0, ErrValidation
	}
	return d.IntPart(), nil
}

type paymentRequest struct {
	MerchantID  string `json:"merchant_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url"`
}

type paymentResult struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Authority string `json:"authority"`
}

type verifyRequest struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type verifyResult struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	RefID   int64  `json:"ref_id"`
	CardPan string `json:"card_pan"`
}

// envelope is the gateway's response wrapper. On failure data is an empty
// array and errors carries the code, so both shapes are decoded leniently.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type gatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RequestPayment opens a payment for amount and returns the authority with
// the page the patient is redirected to.
func (c *Client) RequestPayment(ctx context.Context, amount int64, desc, callbackURL string) (authority, payURL string, err error) {
	res, err := call[paymentResult](ctx, c, "/payment/request.json", paymentRequest{
		MerchantID:  c.merchantID,
		Amount:      amount,
		Currency:    Currency,
		Description: desc,
		CallbackURL: callbackURL,
	})
	if err != nil {
		return "", "", fmt.Errorf("zarinpal request: %w", err)
	}
	if res.Code != codeOK {
		return "", "", codeError(res.Code, res.Message)
	}
	if res.Authority == "" {
		return "", "", ErrUnexpectedResponse
	}
	return res.Authority, c.payBase + res.Authority, nil
}

// VerifyPayment confirms a payment after the patient returns from the
// gateway. alreadyVerified is set on code 101, which callers treat as success.
func (c *Client) VerifyPayment(ctx context.Context, authority string, amount int64) (refID int64, cardPan string, alreadyVerified bool, err error) {
	res, err := call[verifyResult](ctx, c, "/payment/verify.json", verifyRequest{
		MerchantID: c.merchantID,
		Amount:     amount,
		Authority:  authority,
	})
	if err != nil {
		return 0, "", false, fmt.Errorf("zarinpal verify: %w", err)
	}
	switch res.Code {
	case codeOK, codeVerified:
		return res.RefID, res.CardPan, res.Code == codeVerified, nil
	}
	return 0, "", false, codeError(res.Code, res.Message)
}

func codeError(code int, msg string) error {
	if err, ok := codeErrors[code]; ok {
		return err
	}
	return fmt.Errorf("%w (code=%d, msg=%s)", ErrUnexpectedResponse, code, msg)
}

// call posts body as JSON and decodes the data member into T. A populated
// errors member wins over data so failure codes surface either way.
func call[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var zero T
	b, err := json.Marshal(body)
	if err != nil {
		return zero, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(b))
	if err != nil {
		return zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("do request: %w", err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return zero, fmt.Errorf("decode response: %w", err)
	}

	var ge gatewayError
	if len(env.Errors) > 0 && json.Unmarshal(env.Errors, &ge) == nil && ge.Code != 0 {
		return zero, codeError(ge.Code, ge.Message)
	}

	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return out, nil
}
