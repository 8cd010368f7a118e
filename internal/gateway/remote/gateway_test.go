package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	op      string
	headers http.Header
	form    url.Values
	rawBody string
}

// fakeUCenter is a scripted UCenter API. Responses are keyed by operation.
type fakeUCenter struct {
	mu       sync.Mutex
	requests []recordedRequest
	tokens   []string
	status   map[string]int
	bodies   map[string]string
}

func newFakeUCenter() *fakeUCenter {
	return &fakeUCenter{
		status: map[string]int{},
		bodies: map[string]string{"token": `{"token":"tok-1","expires_in":7200}`},
	}
}

func (f *fakeUCenter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(b))
	op := strings.TrimPrefix(r.URL.RawQuery, "/")

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{op: op, headers: r.Header.Clone(), form: form, rawBody: string(b)})
	body := f.bodies[op]
	if op == "token" && len(f.tokens) > 0 {
		body = f.tokens[0]
		f.tokens = f.tokens[1:]
	}
	status := f.status[op]
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = io.WriteString(w, body)
}

func (f *fakeUCenter) calls(op string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedRequest
	for _, r := range f.requests {
		if r.op == op {
			out = append(out, r)
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGateway(t *testing.T, fake *fakeUCenter) (*Gateway, *testClock) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	clock := &testClock{now: time.Unix(1700000000, 0)}
	g, err := New(Config{BaseURL: srv.URL + "/", AppID: "app-7", Secret: "secret", Timeout: time.Second},
		WithHTTPClient(srv.Client()),
		WithClock(clock.Now),
		WithNonceSource(func() (string, error) { return "00112233445566778899aabbccddeeff", nil }),
	)
	require.NoError(t, err)
	return g, clock
}

func TestExecute_SignedEnvelope(t *testing.T) {
	fake := newFakeUCenter()
	fake.bodies["user/login"] = `{"status":5,"username":"alice","email":"a@example.com"}`
	g, _ := newTestGateway(t, fake)

	params := url.Values{"username": {"alice smith"}, "password": {"p@ss"}}
	res, err := g.Execute(context.Background(), gateway.OpUserLogin, params)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.IntOr("status", 0))

	logins := fake.calls("user/login")
	require.Len(t, logins, 1)
	req := logins[0]

	assert.Equal(t, "app-7", req.headers.Get("appid"))
	assert.Equal(t, "00112233445566778899aabbccddeeff", req.headers.Get("nonce"))
	assert.Equal(t, "1700000000", req.headers.Get("t"))
	assert.Equal(t, NewSigner("secret").Sign("00112233445566778899aabbccddeeff", 1700000000), req.headers.Get("sign"))
	assert.Equal(t, "tok-1", req.headers.Get("token"))
	assert.Equal(t, "application/x-www-form-urlencoded", req.headers.Get("Content-Type"))
	assert.Equal(t, "alice smith", req.form.Get("username"))
	assert.Contains(t, req.rawBody, "alice%20smith")

	tokens := fake.calls("token")
	require.Len(t, tokens, 1)
	assert.Empty(t, tokens[0].headers.Get("token"), "token endpoint is called without a bearer token")
	assert.Equal(t, "app-7", tokens[0].headers.Get("appid"))
}

func TestExecute_ReusesCachedToken(t *testing.T) {
	fake := newFakeUCenter()
	fake.bodies["user/get_user"] = `{"data":{"uid":1}}`
	g, _ := newTestGateway(t, fake)

	for i := 0; i < 3; i++ {
		_, err := g.Execute(context.Background(), gateway.OpUserGet, url.Values{"username": {"1"}})
		require.NoError(t, err)
	}
	assert.Len(t, fake.calls("token"), 1)
}

func TestExecute_ResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want gateway.Result
	}{
		{name: "empty body", body: "", want: gateway.Result{"ret": "0"}},
		{name: "bare integer", body: "42", want: gateway.Result{"ret": "42"}},
		{name: "negative integer", body: "-1\n", want: gateway.Result{"ret": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeUCenter()
			fake.bodies["user/getcredit"] = tt.body
			g, _ := newTestGateway(t, fake)

			res, err := g.Execute(context.Background(), "user/getcredit", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want.String("ret"), res.String("ret"))
			assert.Len(t, res, 1)
		})
	}
}

func TestExecute_HTTPErrorCarriesBody(t *testing.T) {
	fake := newFakeUCenter()
	fake.status["user/edit"] = http.StatusForbidden
	fake.bodies["user/edit"] = `{"message":"sign mismatch"}`
	g, _ := newTestGateway(t, fake)

	_, err := g.Execute(context.Background(), gateway.OpUserEdit, nil)
	require.ErrorIs(t, err, gateway.ErrHTTPStatus)

	var callErr *gateway.CallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, http.StatusForbidden, callErr.StatusCode)
	assert.Equal(t, gateway.OpUserEdit, callErr.Op)
	assert.Equal(t, "sign mismatch", callErr.Response.String("message"))
}

func TestExecute_HTTPErrorWithUndecodableBody(t *testing.T) {
	fake := newFakeUCenter()
	fake.status["user/edit"] = http.StatusBadGateway
	fake.bodies["user/edit"] = "<html>bad gateway</html>"
	g, _ := newTestGateway(t, fake)

	_, err := g.Execute(context.Background(), gateway.OpUserEdit, nil)
	require.ErrorIs(t, err, gateway.ErrHTTPStatus)

	var callErr *gateway.CallError
	require.True(t, errors.As(err, &callErr))
	assert.Nil(t, callErr.Response)
	assert.Equal(t, "<html>bad gateway</html>", callErr.Body)
}

func TestExecute_ProtocolFormatError(t *testing.T) {
	fake := newFakeUCenter()
	fake.bodies["user/login"] = "Fatal error: " + strings.Repeat("z", 400)
	g, _ := newTestGateway(t, fake)

	_, err := g.Execute(context.Background(), gateway.OpUserLogin, nil)
	require.ErrorIs(t, err, gateway.ErrProtocolFormat)

	var callErr *gateway.CallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, gateway.OpUserLogin, callErr.Op)
	assert.Len(t, callErr.Body, 200)
	assert.True(t, strings.HasPrefix(callErr.Body, "Fatal error: "))
}

type failingDoer struct{ err error }

func (d failingDoer) Do(*http.Request) (*http.Response, error) { return nil, d.err }

func TestExecute_TransportError(t *testing.T) {
	g, err := New(Config{BaseURL: "http://uc.invalid", AppID: "1", Secret: "s"},
		WithHTTPClient(failingDoer{err: errors.New("connection refused")}))
	require.NoError(t, err)

	_, err = g.Execute(context.Background(), gateway.OpUserLogin, nil)
	require.ErrorIs(t, err, gateway.ErrTransport)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestToken_RefreshInsideMargin(t *testing.T) {
	fake := newFakeUCenter()
	fake.tokens = []string{
		`{"token":"tok-1","expires_in":120}`,
		`{"token":"tok-2","expires_in":7200}`,
	}
	g, clock := newTestGateway(t, fake)
	ctx := context.Background()

	tok, err := g.Token(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	clock.Advance(30 * time.Second)
	tok, err = g.Token(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok, "still outside the margin")

	clock.Advance(31 * time.Second)
	tok, err = g.Token(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)

	calls := fake.calls("token")
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].form.Get("token"))
	assert.Equal(t, "tok-1", calls[1].form.Get("token"), "previous token is sent for renewal")
	assert.Equal(t, clock.Now().Add(7200*time.Second), g.Session().ExpiresAt())
}

func TestToken_Force(t *testing.T) {
	fake := newFakeUCenter()
	fake.tokens = []string{`{"token":"a"}`, `{"token":"b"}`}
	g, clock := newTestGateway(t, fake)

	_, err := g.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(DefaultTokenTTL), g.Session().ExpiresAt(), "default ttl")

	tok, err := g.Token(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "b", tok)
}

func TestToken_EmptyTokenIsHardFailure(t *testing.T) {
	fake := newFakeUCenter()
	fake.bodies["token"] = `{"ret":-1,"message":"bad appid"}`
	fake.bodies["user/login"] = `{"status":1}`
	g, _ := newTestGateway(t, fake)

	_, err := g.Execute(context.Background(), gateway.OpUserLogin, nil)
	require.ErrorIs(t, err, gateway.ErrTokenUnavailable)

	var callErr *gateway.CallError
	require.True(t, errors.As(err, &callErr))
	assert.Equal(t, int64(-1), callErr.Response.IntOr("ret", 0))
	assert.Empty(t, fake.calls("user/login"), "the signed call is not sent without a token")
}

func TestExecuteRaw(t *testing.T) {
	fake := newFakeUCenter()
	fake.bodies["user/synlogin"] = `<script src="http://app/api/uc.php?code=x"></script>`
	g, _ := newTestGateway(t, fake)

	html, err := g.ExecuteRaw(context.Background(), gateway.OpSynLogin, url.Values{"uid": {"5"}})
	require.NoError(t, err)
	assert.Equal(t, `<script src="http://app/api/uc.php?code=x"></script>`, html)

	calls := fake.calls("user/synlogin")
	require.Len(t, calls, 1)
	assert.Equal(t, "tok-1", calls[0].headers.Get("token"))
}

func TestExecuteRaw_HTTPError(t *testing.T) {
	fake := newFakeUCenter()
	fake.status["user/synlogout"] = http.StatusInternalServerError
	g, _ := newTestGateway(t, fake)

	_, err := g.ExecuteRaw(context.Background(), gateway.OpSynLogout, nil)
	require.ErrorIs(t, err, gateway.ErrHTTPStatus)
}

func TestClose_DropsToken(t *testing.T) {
	fake := newFakeUCenter()
	g, _ := newTestGateway(t, fake)

	_, err := g.Token(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, g.Close())
	assert.Empty(t, g.Session().Current())

	_, err = g.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, fake.calls("token"), 2)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "  "})
	require.Error(t, err)
}

func TestConcurrentCallsShareSession(t *testing.T) {
	fake := newFakeUCenter()
	fake.bodies["user/get_user"] = `{"data":{"uid":1}}`
	g, _ := newTestGateway(t, fake)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Execute(context.Background(), gateway.OpUserGet, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, fake.calls("user/get_user"), 10)
	assert.GreaterOrEqual(t, len(fake.calls("token")), 1)
}
