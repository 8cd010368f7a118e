package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
	"github.com/dmitrijs2005/ucenter-gateway/internal/logging"
	"github.com/dmitrijs2005/ucenter-gateway/internal/metrics"
	"github.com/dmitrijs2005/ucenter-gateway/internal/timex"
)

const (
	nonceBytes     = 16
	maxBodyExcerpt = 200
	tracerName     = "ucenter-gateway/remote"
)

// Doer sends HTTP requests. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config identifies the remote application.
type Config struct {
	BaseURL string
	AppID   string
	Secret  string
	Timeout time.Duration
}

type Option func(*Gateway)

func WithHTTPClient(c Doer) Option { return func(g *Gateway) { g.client = c } }

func WithLogger(l logging.Logger) Option { return func(g *Gateway) { g.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(g *Gateway) { g.metrics = m } }

func WithClock(c timex.Clock) Option { return func(g *Gateway) { g.clock = c } }

// WithNonceSource replaces the random nonce generator.
func WithNonceSource(f func() (string, error)) Option { return func(g *Gateway) { g.nonce = f } }

// Gateway is the remote gateway.Gateway. It is safe for concurrent use.
type Gateway struct {
	baseURL string
	appID   string
	signer  Signer
	session *TokenSession

	client  Doer
	log     logging.Logger
	metrics *metrics.Metrics
	clock   timex.Clock
	nonce   func() (string, error)
}

var (
	_ gateway.Gateway    = (*Gateway)(nil)
	_ gateway.RawGateway = (*Gateway)(nil)
)

func New(cfg Config, opts ...Option) (*Gateway, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: base url is empty", common.ErrInvalidArgument)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("%w: base url: %v", common.ErrInvalidArgument, err)
	}

	g := &Gateway{
		baseURL: base,
		appID:   cfg.AppID,
		signer:  NewSigner(cfg.Secret),
		session: &TokenSession{},
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     logging.Nop(),
		nonce:   func() (string, error) { return common.MakeRandHexString(nonceBytes) },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Session exposes the token session, mainly for inspection.
func (g *Gateway) Session() *TokenSession { return g.session }

// Close drops the cached bearer token.
func (g *Gateway) Close() error {
	g.session.Clear()
	return nil
}

// Token returns a bearer token, fetching a new one when the cached token is
// missing, within RefreshMargin of expiry, or when force is set. The previous
// token, if any, is sent along so the authority can renew it.
func (g *Gateway) Token(ctx context.Context, force bool) (string, error) {
	now := g.clock.Now()
	if !force {
		if tok, ok := g.session.Valid(now); ok {
			return tok, nil
		}
	}

	params := url.Values{}
	if prev := g.session.Current(); prev != "" {
		params.Set("token", prev)
	}

	res, err := g.execute(ctx, gateway.OpToken, params, false)
	if err != nil {
		g.metrics.IncTokenRefresh("error")
		return "", err
	}

	tok := res.String("token")
	if tok == "" {
		g.metrics.IncTokenRefresh("empty")
		return "", &gateway.CallError{Op: gateway.OpToken, Response: res, Err: gateway.ErrTokenUnavailable}
	}

	expiresIn, ok := res.Int("expires_in")
	expiresAt := expiryFrom(expiresIn, ok, now)
	g.session.Store(tok, expiresAt)
	g.metrics.IncTokenRefresh("ok")
	g.log.Info(ctx, "bearer token refreshed", "expires_at", expiresAt.UTC().Format(time.RFC3339), "forced", force)

	return tok, nil
}

// Execute signs and sends op with params and decodes the response.
func (g *Gateway) Execute(ctx context.Context, op gateway.Operation, params url.Values) (gateway.Result, error) {
	return g.execute(ctx, op, params, op != gateway.OpToken)
}

// ExecuteRaw is Execute without decoding, for user/synlogin and user/synlogout.
func (g *Gateway) ExecuteRaw(ctx context.Context, op gateway.Operation, params url.Values) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ucenter.raw "+string(op), trace.WithAttributes(
		attribute.String("ucenter.op", string(op)),
	))
	defer span.End()

	started := time.Now()
	body, status, err := g.send(ctx, op, params, op != gateway.OpToken)
	if err == nil && status >= http.StatusBadRequest {
		decoded, _ := gateway.Decode(body)
		err = &gateway.CallError{
			Op: op, StatusCode: status, Response: decoded,
			Body: common.Truncate(string(body), maxBodyExcerpt), Err: gateway.ErrHTTPStatus,
		}
	}
	g.finish(ctx, span, op, started, err)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (g *Gateway) execute(ctx context.Context, op gateway.Operation, params url.Values, withToken bool) (gateway.Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ucenter "+string(op), trace.WithAttributes(
		attribute.String("ucenter.op", string(op)),
		attribute.Bool("ucenter.bearer", withToken),
	))
	defer span.End()

	started := time.Now()
	res, err := g.roundTrip(ctx, op, params, withToken)
	g.finish(ctx, span, op, started, err)
	return res, err
}

func (g *Gateway) roundTrip(ctx context.Context, op gateway.Operation, params url.Values, withToken bool) (gateway.Result, error) {
	body, status, err := g.send(ctx, op, params, withToken)
	if err != nil {
		return nil, err
	}

	if status >= http.StatusBadRequest {
		decoded, _ := gateway.Decode(body)
		return nil, &gateway.CallError{
			Op:         op,
			StatusCode: status,
			Response:   decoded,
			Body:       common.Truncate(string(body), maxBodyExcerpt),
			Err:        gateway.ErrHTTPStatus,
		}
	}

	res, err := gateway.Decode(body)
	if err != nil {
		var callErr *gateway.CallError
		if errors.As(err, &callErr) {
			callErr.Op = op
			callErr.StatusCode = status
		}
		return nil, err
	}
	return res, nil
}

// send performs one signed POST and returns the raw body and status code.
func (g *Gateway) send(ctx context.Context, op gateway.Operation, params url.Values, withToken bool) ([]byte, int, error) {
	nonce, err := g.nonce()
	if err != nil {
		return nil, 0, &gateway.CallError{Op: op, Err: fmt.Errorf("%w: nonce: %w", gateway.ErrTransport, err)}
	}
	ts := g.clock.Now().Unix()

	var token string
	if withToken {
		token, err = g.Token(ctx, false)
		if err != nil {
			return nil, 0, err
		}
	}

	endpoint := g.baseURL + "/api/?/" + string(op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encodeForm(params)))
	if err != nil {
		return nil, 0, &gateway.CallError{Op: op, Err: fmt.Errorf("%w: %w", gateway.ErrTransport, err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("appid", g.appID)
	req.Header.Set("nonce", nonce)
	req.Header.Set("t", strconv.FormatInt(ts, 10))
	req.Header.Set("sign", g.signer.Sign(nonce, ts))
	if withToken {
		req.Header.Set("token", token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, &gateway.CallError{Op: op, Err: fmt.Errorf("%w: %w", gateway.ErrTransport, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &gateway.CallError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: read body: %w", gateway.ErrTransport, err)}
	}
	return body, resp.StatusCode, nil
}

func (g *Gateway) finish(ctx context.Context, span trace.Span, op gateway.Operation, started time.Time, err error) {
	elapsed := time.Since(started)
	outcome := outcomeOf(err)
	g.metrics.ObserveRemoteCall(string(op), outcome, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		g.log.Debug(ctx, "remote call failed", "op", string(op), "outcome", outcome, "elapsed", elapsed, "error", err)
		return
	}
	span.SetStatus(codes.Ok, "")
	g.log.Debug(ctx, "remote call", "op", string(op), "elapsed", elapsed)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gateway.ErrTransport):
		return "transport_error"
	case errors.Is(err, gateway.ErrHTTPStatus):
		return "http_error"
	case errors.Is(err, gateway.ErrProtocolFormat):
		return "format_error"
	case errors.Is(err, gateway.ErrTokenUnavailable):
		return "token_error"
	default:
		return "error"
	}
}

// encodeForm encodes params with %20 for spaces, matching RFC 3986 encoders
// on the authority side.
func encodeForm(params url.Values) string {
	return strings.ReplaceAll(params.Encode(), "+", "%20")
}
