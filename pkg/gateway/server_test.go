package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/mate/internal/config"
	"github.com/harun/mate/pkg/agent"
	"github.com/harun/mate/pkg/commandqueue"
	"github.com/harun/mate/pkg/dispatcher"
	"github.com/harun/mate/pkg/session"
	"github.com/harun/mate/pkg/toolexec"
)

const testSecret = "test-secret"

type fixedProvider struct {
	content string
}

func (p *fixedProvider) Call(ctx context.Context, params agent.InvokeParams) (*agent.InvokeResult, error) {
	if params.OnDelta != nil {
		params.OnDelta(p.content)
	}
	return &agent.InvokeResult{
		Content: p.content,
		Model:   "test-model",
		Usage:   &agent.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

func (p *fixedProvider) Provider() string { return "anthropic" }

type fixedFactory struct{ provider agent.LLMProvider }

func (f *fixedFactory) NewProvider(profile agent.AuthProfile) (agent.LLMProvider, error) {
	return f.provider, nil
}

func newTestServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.AI.Profiles = []config.AIProfile{{ID: "test", Provider: "anthropic", APIKey: "key"}}

	store, err := session.NewJSONLStore(t.TempDir())
	require.NoError(t, err)
	sessions := session.NewManager(store, cfg.Session.MaxTurns)
	t.Cleanup(func() { _ = sessions.Close() })

	queue := commandqueue.New()
	t.Cleanup(func() { _ = queue.Close() })

	registry := toolexec.NewRegistry()
	registry.Freeze()

	invoker, err := agent.NewInvoker(agent.InvokerConfig{
		Logger:          zerolog.Nop(),
		AuthProfiles:    []agent.AuthProfile{{ID: "test", Provider: "anthropic", APIKey: "key"}},
		ProviderFactory: &fixedFactory{provider: &fixedProvider{content: "Here is your answer."}},
		RetryMax:        1,
		RetryBaseMs:     1,
	})
	require.NoError(t, err)

	d, err := dispatcher.New(dispatcher.Config{
		Config:   cfg,
		Sessions: sessions,
		Invoker:  invoker,
		Executor: toolexec.NewExecutor(registry),
		Queue:    queue,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	srv, err := NewServer(Config{
		Host:         "127.0.0.1",
		Port:         8080,
		SharedSecret: testSecret,
		Dispatcher:   d,
		Sessions:     sessions,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return srv, sessions
}

func postJSON(t *testing.T, url, secret string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(authHeader, secret)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestServerRejectsMissingSecret(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/query", "", QueryRequest{SessionKey: "s", Query: "hi"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/query", "wrong", QueryRequest{SessionKey: "s", Query: "hi"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServerQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/query", testSecret, QueryRequest{
		SessionKey: "http-query",
		Query:      "hello there",
		Role:       "general",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out QueryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.OK)
	require.NotNil(t, out.Result)
	assert.Equal(t, "Here is your answer.", out.Result.Response)
	assert.Equal(t, "general", out.Result.Role)
}

func TestServerQueryInvalidBody(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/query", strings.NewReader("{broken"))
	require.NoError(t, err)
	req.Header.Set(authHeader, testSecret)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerResetAndSessions(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/query", testSecret, QueryRequest{
		SessionKey: "to-reset", Query: "hello", Role: "general",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/sessions", nil)
	require.NoError(t, err)
	req.Header.Set(authHeader, testSecret)
	listResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var listing struct {
		Sessions []string `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&listing))
	listResp.Body.Close()
	assert.Contains(t, listing.Sessions, "to-reset")

	resp = postJSON(t, ts.URL+"/api/reset", testSecret, SessionRequest{SessionKey: "to-reset"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/reset", testSecret, SessionRequest{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerAbortWithoutActiveDispatch(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/abort", testSecret, SessionRequest{SessionKey: "idle"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerHealthAndMetricsUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	require.NoError(t, conn.WriteJSON(WSMessage{Type: "query", SessionKey: "s", Query: "hi"}))

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "authentication required")
}

func TestWebSocketBadSecretCloses(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	require.NoError(t, conn.WriteJSON(WSMessage{Type: "auth", Secret: "wrong"}))

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)

	// Server closes the connection after a failed auth.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	err := conn.ReadJSON(&msg)
	assert.Error(t, err)
}

func TestWebSocketQueryStreamsEvents(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	require.NoError(t, conn.WriteJSON(WSMessage{Type: "auth", Secret: testSecret}))

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "auth_ok", msg.Type)

	require.NoError(t, conn.WriteJSON(WSMessage{
		Type:       "query",
		SessionKey: "ws-query",
		Query:      "hello over websocket",
		Role:       "general",
	}))

	var sawToken, sawFinal bool
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		require.NoError(t, conn.ReadJSON(&msg))

		if msg.Type == "event" && msg.Event != nil {
			switch msg.Event.Type {
			case dispatcher.EventToken:
				sawToken = true
			case dispatcher.EventFinalMessage:
				sawFinal = true
			}
			continue
		}
		if msg.Type == "result" {
			require.NotNil(t, msg.Result)
			assert.Equal(t, "Here is your answer.", msg.Result.Response)
			break
		}
	}
	assert.True(t, sawToken, "expected streamed token events")
	assert.True(t, sawFinal, "expected a final message event")
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)

	_, err = NewServer(Config{Port: 8080})
	assert.ErrorContains(t, err, "shared secret")
}
