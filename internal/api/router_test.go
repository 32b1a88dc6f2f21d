package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/marzgo/internal/api"
	"github.com/creamcroissant/marzgo/internal/auth/token"
	"github.com/creamcroissant/marzgo/internal/cache"
	"github.com/creamcroissant/marzgo/internal/config"
	"github.com/creamcroissant/marzgo/internal/repository"
	"github.com/creamcroissant/marzgo/internal/service"
	"github.com/creamcroissant/marzgo/internal/subscription"
	"github.com/creamcroissant/marzgo/internal/support/format"
	"github.com/creamcroissant/marzgo/internal/template"
)

type testServer struct {
	handler http.Handler
	tokens  *token.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Inbounds: []config.InboundConfig{
			{Tag: "trojan-tcp", Protocol: "trojan", Port: 443, Network: "tcp", TLS: "tls", SNI: []string{"sni.example.com"}},
		},
		Hosts: []config.HostConfig{
			{Tag: "trojan-tcp", Remark: "Node", Address: "t.example.com"},
		},
		Users: []config.UserConfig{
			{
				Username: "alice",
				Status:   "active",
				Proxies: config.ProxiesConfig{
					Trojan: &config.TrojanConfig{Password: "pw"},
				},
				Inbounds: map[string][]string{"trojan": {"trojan-tcp"}},
			},
		},
	}

	store, err := repository.NewMemoryStore(cfg)
	require.NoError(t, err)

	cacheStore := cache.NewStore(cache.Options{
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Minute,
	})

	assembler := subscription.NewAssembler(subscription.Options{
		Inbounds:  store,
		Hosts:     store,
		Scaffolds: template.NewScaffoldStore("", "", cacheStore),
		Render: func(tmpl string, vars *subscription.FormatVariables) string {
			return template.Render(tmpl, vars.Get)
		},
		ServerIP:   "203.0.113.7",
		FormatSize: format.ReadableSize,
	})

	tokens, err := token.NewManager(token.Options{SigningKey: []byte("test-secret"), Issuer: "marzgo"})
	require.NoError(t, err)

	svc := service.NewSubscriptionService(service.SubscriptionOptions{
		Users:        store,
		Assembler:    assembler,
		ProfileTitle: "My Sub",
	})

	router := api.NewRouter(api.RouterConfig{
		Tokens:       tokens,
		Subscription: svc,
		Metrics:      config.MetricsConfig{Enabled: false},
	})

	return &testServer{handler: router, tokens: tokens}
}

func (s *testServer) get(t *testing.T, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestSubscriptionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	signed, err := srv.tokens.Issue("alice")
	require.NoError(t, err)

	rec := srv.get(t, "/sub/"+signed, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, strings.HasPrefix(rec.Body.String(), "trojan://"))
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "My Sub", rec.Header().Get("Profile-Title"))
	assert.Equal(t, "12", rec.Header().Get("Profile-Update-Interval"))
	assert.Contains(t, rec.Header().Get("Subscription-Userinfo"), "upload=0;")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="alice"`)
	assert.NotEmpty(t, rec.Header().Get("ETag"))
}

func TestSubscriptionNotModified(t *testing.T) {
	srv := newTestServer(t)

	signed, err := srv.tokens.Issue("alice")
	require.NoError(t, err)

	first := srv.get(t, "/sub/"+signed, nil)
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	second := srv.get(t, "/sub/"+signed, func(req *http.Request) {
		req.Header.Set("If-None-Match", etag)
	})
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())
}

func TestSubscriptionFormatQuery(t *testing.T) {
	srv := newTestServer(t)

	signed, err := srv.tokens.Issue("alice")
	require.NoError(t, err)

	rec := srv.get(t, "/sub/"+signed+"?format=sing-box", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"outbounds"`)
}

func TestSubscriptionUnsupportedFormat(t *testing.T) {
	srv := newTestServer(t)

	signed, err := srv.tokens.Issue("alice")
	require.NoError(t, err)

	rec := srv.get(t, "/sub/"+signed+"?format=surge", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscriptionInvalidToken(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.get(t, "/sub/not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubscriptionUnknownUser(t *testing.T) {
	srv := newTestServer(t)

	signed, err := srv.tokens.Issue("ghost")
	require.NoError(t, err)

	rec := srv.get(t, "/sub/"+signed, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscriptionBase64(t *testing.T) {
	srv := newTestServer(t)

	signed, err := srv.tokens.Issue("alice")
	require.NoError(t, err)

	rec := srv.get(t, "/sub/"+signed+"?base64=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.False(t, strings.HasPrefix(rec.Body.String(), "trojan://"), "payload must be wrapped")
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.get(t, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
