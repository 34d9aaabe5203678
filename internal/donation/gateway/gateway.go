package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/warrantydesk/warrantydesk/internal/config"
)

const (
	requestTimeout     = 15 * time.Second
	signatureTolerance = 5 * time.Minute

	// SignatureHeader carries the webhook signature, Stripe wire format:
	// "t=<unix>,v1=<hex hmac-sha256 of '<unix>.<body>'>".
	SignatureHeader = "Gateway-Signature"
)

var (
	ErrMissingSignature = errors.New("missing_signature")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrStaleSignature   = errors.New("stale_signature")
)

// Intent is the slice of the gateway's payment-intent object we care about.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Event is a webhook callback envelope.
type Event struct {
	Type   string
	Intent Intent
}

// Event types the platform reacts to. Anything else is acknowledged and
// ignored.
const (
	EventProcessing = "payment_intent.processing"
	EventSucceeded  = "payment_intent.succeeded"
	EventFailed     = "payment_intent.payment_failed"
	EventCanceled   = "payment_intent.canceled"
)

// Client talks to the payment gateway over its form-encoded REST API and
// verifies its webhook signatures.
type Client struct {
	http          *http.Client
	baseURL       string
	secretKey     string
	webhookSecret string
}

func New(cfg config.Config) *Client {
	return &Client{
		http:          &http.Client{Timeout: requestTimeout},
		baseURL:       strings.TrimRight(cfg.Gateway.BaseURL, "/"),
		secretKey:     cfg.Gateway.SecretKey,
		webhookSecret: cfg.Gateway.WebhookSecret,
	}
}

// CreateIntent opens a payment intent for the amount in the currency's
// smallest unit.
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency, receiptEmail string) (Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	if receiptEmail != "" {
		form.Set("receipt_email", receiptEmail)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return Intent{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Intent{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Intent{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Intent{}, fmt.Errorf("gateway: create intent: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var intent Intent
	if err := json.Unmarshal(body, &intent); err != nil {
		return Intent{}, fmt.Errorf("gateway: decode intent: %w", err)
	}
	return intent, nil
}

// VerifySignature checks the HMAC over "<timestamp>.<payload>" and rejects
// signatures older than the tolerance window.
func (c *Client) VerifySignature(payload []byte, header string, now time.Time) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	var ts int64
	var provided string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			ts = parsed
		case "v1":
			provided = value
		}
	}
	if ts == 0 || provided == "" {
		return ErrInvalidSignature
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrStaleSignature
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces a signature header for the payload. The webhook tests and
// local tooling use it; the gateway produces the real ones.
func (c *Client) Sign(payload []byte, now time.Time) string {
	ts := now.Unix()
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// ParseEvent decodes a webhook envelope down to the intent it wraps.
func ParseEvent(payload []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
		Data struct {
			Object Intent `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Event{}, fmt.Errorf("gateway: decode event: %w", err)
	}
	if envelope.Type == "" || envelope.Data.Object.ID == "" {
		return Event{}, errors.New("gateway: malformed event")
	}
	return Event{Type: envelope.Type, Intent: envelope.Data.Object}, nil
}
