package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultBaseURL  = "https://sandbox.safaricom.co.ke"
	DefaultTimeout  = 30 * time.Second
	TransactionType = "CustomerPayBillOnline"

	timestampLayout = "20060102150405"
	tokenPath       = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath     = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath    = "/mpesa/stkpushquery/v1/query"
)

// Nairobi has no DST; a fixed zone avoids depending on tzdata in the image.
var eat = time.FixedZone("EAT", 3*60*60)

// DarajaConfig holds the Safaricom Daraja credentials for one paybill.
type DarajaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

// DarajaClient talks to the Daraja STK push API directly.
type DarajaClient struct {
	cfg    DarajaConfig
	client *http.Client
	now    func() time.Time
}

func NewDarajaClient(cfg DarajaConfig) *DarajaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &DarajaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// Timestamp formats t the way Daraja expects (YYYYMMDDHHMMSS, Nairobi time).
func Timestamp(t time.Time) string {
	return t.In(eat).Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// GetAccessToken performs the client-credentials exchange and returns a fresh
// bearer token. Tokens are not cached.
func (c *DarajaClient) GetAccessToken(ctx context.Context) (string, error) {
	cc := clientcredentials.Config{
		ClientID:     c.cfg.ConsumerKey,
		ClientSecret: c.cfg.ConsumerSecret,
		TokenURL:     c.cfg.BaseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	tok, err := cc.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGatewayAuth, err)
	}
	return tok.AccessToken, nil
}

type stkPushBody struct {
	BusinessShortCode string  `json:"BusinessShortCode"`
	Password          string  `json:"Password"`
	Timestamp         string  `json:"Timestamp"`
	TransactionType   string  `json:"TransactionType"`
	Amount            float64 `json:"Amount"`
	PartyA            string  `json:"PartyA"`
	PartyB            string  `json:"PartyB"`
	PhoneNumber       string  `json:"PhoneNumber"`
	CallBackURL       string  `json:"CallBackURL"`
	AccountReference  string  `json:"AccountReference"`
	TransactionDesc   string  `json:"TransactionDesc"`
}

// InitiatePush sends an STK push prompt to req.PhoneNumber. The whole call,
// token exchange included, is bounded by the configured timeout, and running
// out of it in either step fails with ErrGatewayPush.
func (c *DarajaClient) InitiatePush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	token, err := c.GetAccessToken(ctx)
	if err != nil {
		if timedOut(ctx, err) {
			return nil, fmt.Errorf("%w: timed out fetching access token: %v", ErrGatewayPush, err)
		}
		return nil, err
	}
	ts := Timestamp(c.now())
	body := stkPushBody{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   TransactionType,
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}
	log.Info().Str("component", "mpesa").Str("phone", req.PhoneNumber).Float64("amount", req.Amount).
		Str("account_ref", req.AccountReference).Msg("stk push")

	var out STKPushResponse
	if err := c.post(ctx, stkPushPath, token, body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayPush, err)
	}
	if out.MerchantRequestID == "" || out.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: response missing request ids", ErrGatewayPush)
	}
	log.Info().Str("component", "mpesa").Str("merchant_request_id", out.MerchantRequestID).
		Str("checkout_request_id", out.CheckoutRequestID).Str("response_code", out.ResponseCode).Msg("stk push accepted")
	return &out, nil
}

// timedOut reports whether err came from the call deadline or the HTTP
// client timeout rather than a gateway rejection.
func timedOut(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

type stkQueryBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// QueryPush asks the gateway for the current state of an STK push.
func (c *DarajaClient) QueryPush(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	ts := Timestamp(c.now())
	body := stkQueryBody{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}
	var out STKQueryResponse
	if err := c.post(ctx, stkQueryPath, token, body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayQuery, err)
	}
	return &out, nil
}

func (c *DarajaClient) post(ctx context.Context, path, token string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	log.Debug().Str("component", "mpesa").Str("path", path).Int("status", resp.StatusCode).Bytes("body", respBody).Msg("gateway response")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
