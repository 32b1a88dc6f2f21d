package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/marzgo/internal/cache"
	"github.com/creamcroissant/marzgo/internal/config"
	"github.com/creamcroissant/marzgo/internal/repository"
	"github.com/creamcroissant/marzgo/internal/subscription"
	"github.com/creamcroissant/marzgo/internal/support/format"
	"github.com/creamcroissant/marzgo/internal/template"
)

func newTestService(t *testing.T) *SubscriptionService {
	t.Helper()

	cfg := &config.Config{
		Inbounds: []config.InboundConfig{
			{Tag: "vmess-ws", Protocol: "vmess", Port: 443, Network: "ws", TLS: "tls", SNI: []string{"sni.example.com"}},
		},
		Hosts: []config.HostConfig{
			{Tag: "vmess-ws", Remark: "Node {USERNAME}", Address: "v.example.com"},
		},
		Users: []config.UserConfig{
			{
				Username:    "alice",
				Status:      "active",
				DataLimit:   1024,
				UsedTraffic: 100,
				Proxies: config.ProxiesConfig{
					VMess: &config.VMessConfig{ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
				},
				Inbounds: map[string][]string{"vmess": {"vmess-ws"}},
			},
		},
	}

	store, err := repository.NewMemoryStore(cfg)
	require.NoError(t, err)

	cacheStore := cache.NewStore(cache.Options{
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Minute,
	})
	scaffolds := template.NewScaffoldStore("", "", cacheStore)

	assembler := subscription.NewAssembler(subscription.Options{
		Inbounds:  store,
		Hosts:     store,
		Scaffolds: scaffolds,
		Render: func(tmpl string, vars *subscription.FormatVariables) string {
			return template.Render(tmpl, vars.Get)
		},
		ServerIP:   "203.0.113.7",
		FormatSize: format.ReadableSize,
	})

	return NewSubscriptionService(SubscriptionOptions{
		Users:               store,
		Assembler:           assembler,
		ProfileTitle:        "My Sub",
		UpdateIntervalHours: 6,
	})
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		userAgent string
		want      subscription.Format
	}{
		{"ClashMetaForAndroid/2.8.9.Meta", subscription.FormatClashMeta},
		{"mihomo/1.18.0", subscription.FormatClashMeta},
		{"Clash-verge/1.5.0", subscription.FormatClashMeta},
		{"ClashForWindows/0.20.39", subscription.FormatClash},
		{"clash/1.11.0", subscription.FormatClash},
		{"sing-box 1.8.0", subscription.FormatSingBox},
		{"SFA/1.8.0", subscription.FormatSingBox},
		{"SFI/1.8.0", subscription.FormatSingBox},
		{"v2rayN/6.23", subscription.FormatLinks},
		{"", subscription.FormatLinks},
	}
	for _, tc := range cases {
		t.Run(tc.userAgent, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectFormat(tc.userAgent))
		})
	}
}

func TestGenerateResult(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Generate(context.Background(), GenerateRequest{
		Username: "alice",
		Format:   subscription.FormatLinks,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Payload, "vmess://"))
	assert.Equal(t, "text/plain; charset=utf-8", result.ContentType)
	assert.Equal(t, "My Sub", result.ProfileTitle)
	assert.Equal(t, 6, result.UpdateIntervalHours)
	assert.Equal(t, "alice", result.Filename)
	assert.Equal(t, "upload=0; download=100; total=1024; expire=0", result.UserInfo)

	// Strong validator over the payload bytes, quoted per RFC 9110.
	assert.Regexp(t, `^"[0-9a-f]{40}"$`, result.ETag)
}

func TestGenerateDetectsFormatFromUserAgent(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Generate(context.Background(), GenerateRequest{
		Username:  "alice",
		UserAgent: "sing-box 1.8.0",
	})
	require.NoError(t, err)
	assert.Equal(t, subscription.FormatSingBox, result.Format)
	assert.Equal(t, "application/json", result.ContentType)
}

func TestGenerateUnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Generate(context.Background(), GenerateRequest{Username: "bob"})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestGenerateUnsupportedFormat(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Generate(context.Background(), GenerateRequest{
		Username: "alice",
		Format:   subscription.Format("surge"),
	})

	var unsupported *subscription.UnsupportedFormatError
	assert.ErrorAs(t, err, &unsupported)
}
