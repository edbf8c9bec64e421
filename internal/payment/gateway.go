// Package payment contains the gateway adapter and the webhook
// reconciler for the hosted-checkout payment flow.  The adapter
// creates payment sessions at the external gateway and owns order
// code generation; the reconciler consumes the gateway's webhooks and
// applies them to the ledger exactly once.
package payment

import (
    "bytes"
    "context"
    "crypto/hmac"
    "crypto/rand"
    "crypto/sha256"
    "encoding/binary"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "sort"
    "strings"
    "time"

    "github.com/khahhy/AdvWeb-BusTicketBooking-sub000/internal/model"
)

// GatewayName identifies the provider in payments.gateway.
const GatewayName = "payos"

// SuccessCode is the gateway's transaction code for a completed payment.
const SuccessCode = "00"

// Sentinel errors for webhook processing.
var (
    ErrBadSignature = errors.New("webhook signature verification failed")
    ErrUnknownOrder = errors.New("unknown order code")
)

// Config holds the gateway credentials and endpoints.
type Config struct {
    BaseURL     string        // gateway API base, e.g. https://api-merchant.payos.vn
    ClientID    string        // x-client-id header
    APIKey      string        // x-api-key header
    ChecksumKey string        // HMAC key for request and webhook signatures
    ReturnURL   string        // where the gateway redirects after payment
    CancelURL   string        // where the gateway redirects after cancel
    Timeout     time.Duration // per-request timeout; a timed-out call is a failure, never success
}

// Gateway creates and cancels hosted payment sessions.
type Gateway struct {
    cfg  Config
    http *http.Client
}

// NewGateway returns a Gateway with a bounded-timeout HTTP client.
// A zero Timeout defaults to 10 seconds.
func NewGateway(cfg Config) *Gateway {
    if cfg.Timeout <= 0 {
        cfg.Timeout = 10 * time.Second
    }
    return &Gateway{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Buyer is the contact snapshot forwarded to the hosted checkout page.
type Buyer struct {
    Name  string
    Email string
    Phone string
}

// Session is the result of CreateSession.
type Session struct {
    OrderCode   int64  `json:"order_code"`
    CheckoutURL string `json:"checkout_url"`
    QRCode      string `json:"qr_code"`
}

// NewOrderCode draws a random order code in [1, 2^53) and redraws
// while the code collides with any currently pending payment.  The
// existence check keeps orderCode -> bookingID a function for the
// life of the pending payment; the random draw replaces derivation
// from timestamps, which can collide for bookings created close
// together.
func NewOrderCode(ctx context.Context, exists func(context.Context, int64) (bool, error)) (int64, error) {
    for attempt := 0; attempt < 8; attempt++ {
        var buf [8]byte
        if _, err := rand.Read(buf[:]); err != nil {
            return 0, fmt.Errorf("draw order code: %w", err)
        }
        code := int64(binary.BigEndian.Uint64(buf[:]) % uint64(model.MaxOrderCode))
        if code == 0 {
            continue
        }
        taken, err := exists(ctx, code)
        if err != nil {
            return 0, err
        }
        if !taken {
            return code, nil
        }
    }
    return 0, errors.New("could not find a free order code")
}

// createRequest is the gateway's session creation body.
type createRequest struct {
    OrderCode   int64  `json:"orderCode"`
    Amount      int64  `json:"amount"`
    Description string `json:"description"`
    BuyerName   string `json:"buyerName,omitempty"`
    BuyerEmail  string `json:"buyerEmail,omitempty"`
    BuyerPhone  string `json:"buyerPhone,omitempty"`
    ReturnURL   string `json:"returnUrl"`
    CancelURL   string `json:"cancelUrl"`
    Signature   string `json:"signature"`
}

// gatewayEnvelope is the common response wrapper.
type gatewayEnvelope struct {
    Code string          `json:"code"`
    Desc string          `json:"desc"`
    Data json.RawMessage `json:"data"`
}

// CreateSession registers a hosted checkout session for the given
// order code and amount.  Any transport error, timeout or non-success
// gateway code is returned as an error; the caller must roll the
// local payment row to failed so nothing stays pending without a live
// session behind it.
func (g *Gateway) CreateSession(ctx context.Context, orderCode int64, amountCents uint32, description string, buyer Buyer) (*Session, error) {
    req := createRequest{
        OrderCode:   orderCode,
        Amount:      int64(amountCents),
        Description: description,
        BuyerName:   buyer.Name,
        BuyerEmail:  buyer.Email,
        BuyerPhone:  buyer.Phone,
        ReturnURL:   g.cfg.ReturnURL,
        CancelURL:   g.cfg.CancelURL,
    }
    // The request signature covers the five fields the gateway
    // documents, concatenated in alphabetical key order.
    req.Signature = g.sign(fmt.Sprintf("amount=%d&cancelUrl=%s&description=%s&orderCode=%d&returnUrl=%s",
        req.Amount, req.CancelURL, req.Description, req.OrderCode, req.ReturnURL))

    var env gatewayEnvelope
    if err := g.post(ctx, "/v2/payment-requests", req, &env); err != nil {
        return nil, err
    }
    if env.Code != SuccessCode {
        return nil, fmt.Errorf("gateway rejected session: code=%s desc=%s", env.Code, env.Desc)
    }
    var data struct {
        CheckoutURL string `json:"checkoutUrl"`
        QRCode      string `json:"qrCode"`
    }
    if err := json.Unmarshal(env.Data, &data); err != nil {
        return nil, fmt.Errorf("decode session data: %w", err)
    }
    return &Session{OrderCode: orderCode, CheckoutURL: data.CheckoutURL, QRCode: data.QRCode}, nil
}

// CancelSession invalidates a still-pending session at the gateway.
// Callers mark the local payment failed regardless of the outcome
// here, so an error only means the gateway side may linger until it
// expires on its own.
func (g *Gateway) CancelSession(ctx context.Context, orderCode int64, reason string) error {
    body := map[string]string{"cancellationReason": reason}
    var env gatewayEnvelope
    if err := g.post(ctx, fmt.Sprintf("/v2/payment-requests/%d/cancel", orderCode), body, &env); err != nil {
        return err
    }
    if env.Code != SuccessCode {
        return fmt.Errorf("gateway cancel failed: code=%s desc=%s", env.Code, env.Desc)
    }
    return nil
}

// post issues one JSON request against the gateway with auth headers.
func (g *Gateway) post(ctx context.Context, path string, body, out interface{}) error {
    payload, err := json.Marshal(body)
    if err != nil {
        return err
    }
    httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(g.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
    if err != nil {
        return err
    }
    httpReq.Header.Set("Content-Type", "application/json")
    httpReq.Header.Set("x-client-id", g.cfg.ClientID)
    httpReq.Header.Set("x-api-key", g.cfg.APIKey)
    resp, err := g.http.Do(httpReq)
    if err != nil {
        return fmt.Errorf("gateway request: %w", err)
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
    }
    return json.NewDecoder(resp.Body).Decode(out)
}

// WebhookData is the transaction detail inside a webhook payload.
type WebhookData struct {
    OrderCode     int64  `json:"orderCode"`
    Amount        int64  `json:"amount"`
    Description   string `json:"description"`
    Code          string `json:"code"`
    Desc          string `json:"desc"`
    Reference     string `json:"reference"`
    PaymentLinkID string `json:"paymentLinkId"`
}

// WebhookPayload is the inbound gateway callback.
type WebhookPayload struct {
    Code      string          `json:"code"`
    Desc      string          `json:"desc"`
    Data      json.RawMessage `json:"data"`
    Signature string          `json:"signature"`
}

// VerifyWebhook authenticates a raw webhook body and returns the
// decoded transaction data.  The signature is an HMAC-SHA256 over the
// data object's fields serialized as key=value pairs in alphabetical
// key order.  An unverifiable payload is rejected with ErrBadSignature
// and must cause no state change.
func (g *Gateway) VerifyWebhook(raw []byte) (*WebhookData, error) {
    var payload WebhookPayload
    if err := json.Unmarshal(raw, &payload); err != nil {
        return nil, fmt.Errorf("decode webhook: %w", err)
    }
    if len(payload.Data) == 0 || payload.Signature == "" {
        return nil, ErrBadSignature
    }
    canon, err := canonicalize(payload.Data)
    if err != nil {
        return nil, fmt.Errorf("canonicalize webhook data: %w", err)
    }
    want := g.sign(canon)
    if !hmac.Equal([]byte(want), []byte(payload.Signature)) {
        return nil, ErrBadSignature
    }
    var data WebhookData
    if err := json.Unmarshal(payload.Data, &data); err != nil {
        return nil, fmt.Errorf("decode webhook data: %w", err)
    }
    return &data, nil
}

// SignWebhookData computes the signature for a data object.  Exported
// for tests and for the webhook registration handshake.
func (g *Gateway) SignWebhookData(data []byte) (string, error) {
    canon, err := canonicalize(data)
    if err != nil {
        return "", err
    }
    return g.sign(canon), nil
}

// canonicalize renders a JSON object as sorted key=value pairs joined
// by '&'.  Numbers keep their literal form (json.Number) so 12300 does
// not turn into 1.23e4, and null becomes an empty value.
func canonicalize(raw json.RawMessage) (string, error) {
    dec := json.NewDecoder(bytes.NewReader(raw))
    dec.UseNumber()
    var obj map[string]interface{}
    if err := dec.Decode(&obj); err != nil {
        return "", err
    }
    keys := make([]string, 0, len(obj))
    for k := range obj {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    parts := make([]string, 0, len(keys))
    for _, k := range keys {
        parts = append(parts, k+"="+scalarString(obj[k]))
    }
    return strings.Join(parts, "&"), nil
}

// scalarString formats one JSON value for the canonical form.
func scalarString(v interface{}) string {
    switch t := v.(type) {
    case nil:
        return ""
    case string:
        return t
    case json.Number:
        return t.String()
    case bool:
        if t {
            return "true"
        }
        return "false"
    default:
        // Nested objects/arrays are not part of the documented
        // contract; fall back to compact JSON so the comparison at
        // least stays deterministic.
        b, _ := json.Marshal(t)
        return string(b)
    }
}

// sign computes the hex HMAC-SHA256 of the message with the checksum key.
func (g *Gateway) sign(message string) string {
    mac := hmac.New(sha256.New, []byte(g.cfg.ChecksumKey))
    mac.Write([]byte(message))
    return hex.EncodeToString(mac.Sum(nil))
}
