package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/diceroll/internal/auth"
	"github.com/roach88/diceroll/internal/dice"
	"github.com/roach88/diceroll/internal/escrow"
	"github.com/roach88/diceroll/internal/logging"
	"github.com/roach88/diceroll/internal/store"
	"github.com/roach88/diceroll/internal/wager"
)

var testNow = time.Date(2030, 3, 4, 5, 6, 7, 0, time.UTC)

type testServer struct {
	app   *fiber.App
	store *store.Store
	dice  *dice.Fixed
	clock *quartz.Mock
}

func newTestServer(t *testing.T, rps float64, burst int) *testServer {
	t.Helper()

	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := quartz.NewMock(t)
	clock.Set(testNow)

	reg := prometheus.NewRegistry()
	fixed := dice.NewFixed()
	ctl := escrow.New(s, s, dice.Shared(fixed),
		escrow.WithClock(clock),
		escrow.WithIDs(escrow.NewCountingGenerator("op")),
		escrow.WithMetrics(escrow.NewMetrics(reg)),
		escrow.WithCredentialParams(auth.FastParams),
	)

	app := New(Config{
		Controller:  ctl,
		Journal:     s,
		Gatherer:    reg,
		Logger:      logging.Discard(),
		RateLimit:   rps,
		RateBurst:   burst,
		ProxyHeader: fiber.HeaderXForwardedFor,
		Clock:       clock,
	})
	return &testServer{app: app, store: s, dice: fixed, clock: clock}
}

// call sends a request as identity (credential "<identity>-secret") and
// decodes the JSON response.
func (ts *testServer) call(t *testing.T, method, path, identity string, body any) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != "" {
		req.Header.Set(HeaderIdentity, identity)
		req.Header.Set(HeaderCredential, identity+"-secret")
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// callFrom sends a GET from client address ip as identity with credential
// and returns the status.
func (ts *testServer) callFrom(t *testing.T, ip, path, identity, credential string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(fiber.HeaderXForwardedFor, ip)
	req.Header.Set(HeaderIdentity, identity)
	req.Header.Set(HeaderCredential, credential)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func (ts *testServer) openFunded(t *testing.T, id string, amount uint64) {
	t.Helper()
	status, _ := ts.call(t, http.MethodPost, "/v1/accounts", "", openAccountRequest{ID: id, Credential: id + "-secret"})
	require.Equal(t, http.StatusCreated, status)
	status, body := ts.call(t, http.MethodPost, "/v1/accounts/"+id+"/deposit", id, amountRequest{Amount: amount})
	require.Equal(t, http.StatusOK, status, body)
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestAPI_Lifecycle(t *testing.T) {
	ts := newTestServer(t, 0, 0)
	ts.openFunded(t, "alice", 100)
	ts.openFunded(t, "bob", 100)

	status, body := ts.call(t, http.MethodPost, "/v1/sessions", "alice", setupRequest{
		Vendor: "alice", Player: "bob", Stake: 10, Sides: 5, VendorSeed: 42,
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.EqualValues(t, 10, body["escrow"])

	status, body = ts.call(t, http.MethodGet, "/v1/sessions/alice/bob", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	sess := body["session"].(map[string]any)
	assert.Equal(t, "open", sess["phase"])
	assert.EqualValues(t, 42, sess["vendor_seed"])

	ts.dice.Push(1, 4)
	status, body = ts.call(t, http.MethodPost, "/v1/sessions/alice/bob/play", "bob", nil)
	require.Equal(t, http.StatusOK, status, body)
	roll := body["roll"].(map[string]any)
	assert.Equal(t, "player", roll["outcome"])
	assert.EqualValues(t, 20, body["payout"])

	_, body = ts.call(t, http.MethodGet, "/v1/accounts/alice", "alice", nil)
	assert.EqualValues(t, 90, body["balance"])
	_, body = ts.call(t, http.MethodGet, "/v1/accounts/bob", "bob", nil)
	assert.EqualValues(t, 110, body["balance"])

	status, body = ts.call(t, http.MethodGet, "/v1/sessions/alice/bob/postings", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["postings"], 6, "setup 2 + play 4")

	status, body = ts.call(t, http.MethodGet, "/v1/accounts/bob/sessions", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["sessions"], 1)

	status, body = ts.call(t, http.MethodDelete, "/v1/sessions/alice/bob", "alice", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 0, body["refund"])

	status, body = ts.call(t, http.MethodGet, "/v1/sessions/alice/bob", "alice", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(wager.ErrCodeNotFound), errorCode(body))
}

func TestAPI_ErrorMapping(t *testing.T) {
	ts := newTestServer(t, 0, 0)
	ts.openFunded(t, "alice", 100)
	ts.openFunded(t, "bob", 5)

	tests := []struct {
		name     string
		method   string
		path     string
		identity string
		body     any
		status   int
		code     string
	}{
		{"sides zero", http.MethodPost, "/v1/sessions", "alice", setupRequest{Vendor: "alice", Player: "bob", Stake: 10, Sides: 0}, 400, "INVALID_ARGUMENT"},
		{"sides 255", http.MethodPost, "/v1/sessions", "alice", setupRequest{Vendor: "alice", Player: "bob", Stake: 10, Sides: 255}, 400, "INVALID_ARGUMENT"},
		{"zero stake", http.MethodPost, "/v1/sessions", "alice", setupRequest{Vendor: "alice", Player: "bob", Stake: 0, Sides: 5}, 400, "INVALID_ARGUMENT"},
		{"vendor short", http.MethodPost, "/v1/sessions", "bob", setupRequest{Vendor: "bob", Player: "alice", Stake: 10, Sides: 5}, 402, "INSUFFICIENT_FUNDS"},
		{"wrong caller", http.MethodPost, "/v1/sessions", "bob", setupRequest{Vendor: "alice", Player: "bob", Stake: 10, Sides: 5}, 401, "UNAUTHORIZED"},
		{"no caller", http.MethodPost, "/v1/sessions", "", setupRequest{Vendor: "alice", Player: "bob", Stake: 10, Sides: 5}, 401, "UNAUTHORIZED"},
		{"setup", http.MethodPost, "/v1/sessions", "alice", setupRequest{Vendor: "alice", Player: "bob", Stake: 10, Sides: 5}, 201, ""},
		{"duplicate", http.MethodPost, "/v1/sessions", "alice", setupRequest{Vendor: "alice", Player: "bob", Stake: 10, Sides: 5}, 409, "DUPLICATE_SESSION"},
		{"player short", http.MethodPost, "/v1/sessions/alice/bob/play", "bob", nil, 402, "INSUFFICIENT_FUNDS"},
		{"vendor cannot play", http.MethodPost, "/v1/sessions/alice/bob/play", "alice", nil, 401, "UNAUTHORIZED"},
		{"unknown pair", http.MethodPost, "/v1/sessions/alice/carol/play", "carol", nil, 401, "UNAUTHORIZED"},
		{"missing session", http.MethodGet, "/v1/sessions/bob/alice", "bob", nil, 404, "NOT_FOUND"},
		{"anonymous balance", http.MethodGet, "/v1/accounts/alice", "", nil, 401, "UNAUTHORIZED"},
		{"other's balance", http.MethodGet, "/v1/accounts/alice", "bob", nil, 401, "UNAUTHORIZED"},
		{"other's sessions", http.MethodGet, "/v1/accounts/alice/sessions", "bob", nil, 401, "UNAUTHORIZED"},
		{"anonymous session", http.MethodGet, "/v1/sessions/alice/bob", "", nil, 401, "UNAUTHORIZED"},
		{"outsider postings", http.MethodGet, "/v1/sessions/alice/carol/postings", "bob", nil, 401, "UNAUTHORIZED"},
		{"participant postings", http.MethodGet, "/v1/sessions/alice/bob/postings", "bob", nil, 200, ""},
		{"same identity", http.MethodGet, "/v1/sessions/bob/bob", "", nil, 400, "INVALID_ARGUMENT"},
		{"bad body", http.MethodPost, "/v1/accounts", "", "not an object", 400, "INVALID_ARGUMENT"},
		{"overdraw", http.MethodPost, "/v1/accounts/bob/withdraw", "bob", amountRequest{Amount: 6}, 402, "INSUFFICIENT_FUNDS"},
		{"no route", http.MethodGet, "/v2/nothing", "", nil, 404, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.call(t, tt.method, tt.path, tt.identity, tt.body)
			assert.Equal(t, tt.status, status, body)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(body))
			}
		})
	}
}

func TestAPI_PlayTwiceConflicts(t *testing.T) {
	ts := newTestServer(t, 0, 0)
	ts.openFunded(t, "alice", 100)
	ts.openFunded(t, "bob", 100)

	status, _ := ts.call(t, http.MethodPost, "/v1/sessions", "alice", setupRequest{Vendor: "alice", Player: "bob", Stake: 10, Sides: 5})
	require.Equal(t, http.StatusCreated, status)

	ts.dice.Push(3, 3)
	status, body := ts.call(t, http.MethodPost, "/v1/sessions/alice/bob/play", "bob", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "draw", body["roll"].(map[string]any)["outcome"])

	status, body = ts.call(t, http.MethodPost, "/v1/sessions/alice/bob/play", "bob", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_RESOLVED", errorCode(body))

	_, body = ts.call(t, http.MethodGet, "/v1/sessions/alice/bob", "bob", nil)
	assert.EqualValues(t, 20, body["escrow"], "a draw leaves the pot escrowed")
}

func TestAPI_WrongCredential(t *testing.T) {
	ts := newTestServer(t, 0, 0)
	ts.openFunded(t, "alice", 100)

	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/alice/deposit", bytes.NewReader([]byte(`{"amount":5}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdentity, "alice")
	req.Header.Set(HeaderCredential, "guess")
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, http.StatusUnauthorized, ts.callFrom(t, "198.51.100.7", "/v1/accounts/alice", "alice", "guess"),
		"a wrong credential cannot read either")

	_, body := ts.call(t, http.MethodGet, "/v1/accounts/alice", "alice", nil)
	assert.EqualValues(t, 100, body["balance"])
}

func TestAPI_RateLimit(t *testing.T) {
	ts := newTestServer(t, 1, 2)
	ts.openFunded(t, "alice", 100)

	const (
		aliceIP    = "198.51.100.7"
		attackerIP = "203.0.113.9"
	)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, ts.callFrom(t, attackerIP, "/v1/accounts/alice", "alice", "guess"))
	}
	assert.Equal(t, http.StatusTooManyRequests, ts.callFrom(t, attackerIP, "/v1/accounts/alice", "alice", "guess"))

	// Claiming alice's identity drained the attacker's bucket, not hers.
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, ts.callFrom(t, aliceIP, "/v1/accounts/alice", "alice", "alice-secret"))
	}

	// Rotating the claimed identity does not buy fresh buckets.
	for i, id := range []string{"a0", "b1", "c2"} {
		status := ts.callFrom(t, attackerIP, "/v1/accounts/"+id, id, "x")
		assert.Equal(t, http.StatusTooManyRequests, status, "request %d as %s", i, id)
	}

	ts.clock.Set(testNow.Add(time.Second))
	assert.Equal(t, http.StatusUnauthorized, ts.callFrom(t, attackerIP, "/v1/accounts/alice", "alice", "guess"))
	assert.Equal(t, http.StatusTooManyRequests, ts.callFrom(t, attackerIP, "/v1/accounts/alice", "alice", "guess"))

	// Health and metrics sit outside the limiter.
	for i := 0; i < 5; i++ {
		status, _ := ts.call(t, http.MethodGet, "/health", "alice", nil)
		assert.Equal(t, http.StatusOK, status)
	}
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, 0, 0)
	ts.openFunded(t, "alice", 100)

	status, body := ts.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `diceroll_operations_total{op="deposit",result="ok"} 1`)

	require.NoError(t, ts.store.Close())
	status, body = ts.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", body["status"])
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{wager.ErrDuplicateSession, 409, "DUPLICATE_SESSION"},
		{wager.ErrAlreadyResolved, 409, "ALREADY_RESOLVED"},
		{wager.ErrInsufficientFunds, 402, "INSUFFICIENT_FUNDS"},
		{wager.ErrNotFound, 404, "NOT_FOUND"},
		{wager.ErrInvalidArgument, 400, "INVALID_ARGUMENT"},
		{wager.ErrUnauthorized, 401, "UNAUTHORIZED"},
		{wager.ErrSettlementFailure, 500, "SETTLEMENT_FAILURE"},
		{context.Canceled, 500, "INTERNAL"},
		{fiber.ErrMethodNotAllowed, 405, "METHOD_NOT_ALLOWED"},
	}
	for _, tt := range tests {
		status, code := statusOf(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestLimiter_EvictsIdle(t *testing.T) {
	clock := quartz.NewMock(t)
	clock.Set(testNow)
	l := newLimiter(100, 100, clock)

	l.allow("stale")
	clock.Set(testNow.Add(time.Hour))
	for i := 0; i < 511; i++ {
		l.allow("fresh")
	}
	assert.Equal(t, 1, l.size())

	var nilLimiter *limiter
	assert.True(t, nilLimiter.allow("anyone"))
	assert.Nil(t, newLimiter(0, 1, clock))
}
