package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/marzgo/internal/config"
	"github.com/creamcroissant/marzgo/internal/subscription"
)

func validConfig() *config.Config {
	return &config.Config{
		Inbounds: []config.InboundConfig{
			{Tag: "vmess-ws", Protocol: "vmess", Port: 443, Network: "ws", TLS: "tls"},
			{Tag: "ss-tcp", Protocol: "shadowsocks", Port: 8388},
		},
		Hosts: []config.HostConfig{
			{Tag: "vmess-ws", Remark: "Node", Address: "v.example.com"},
		},
		Users: []config.UserConfig{
			{
				Username: "alice",
				Status:   "active",
				Proxies: config.ProxiesConfig{
					VMess:       &config.VMessConfig{ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
					Shadowsocks: &config.ShadowsocksConfig{Password: "pw"},
				},
				Inbounds: map[string][]string{
					"vmess":       {"vmess-ws"},
					"shadowsocks": {"ss-tcp"},
				},
			},
		},
	}
}

func TestMemoryStoreLookups(t *testing.T) {
	store, err := NewMemoryStore(validConfig())
	require.NoError(t, err)

	user, err := store.User("alice")
	require.NoError(t, err)
	assert.Equal(t, "active", user.Status)
	assert.Contains(t, user.Account, subscription.ProtocolVMess)
	assert.Contains(t, user.Account, subscription.ProtocolShadowsocks)

	_, err = store.User("bob")
	assert.ErrorIs(t, err, ErrUserNotFound)

	inbound, ok := store.InboundByTag("vmess-ws")
	require.True(t, ok)
	assert.Equal(t, subscription.ProtocolVMess, inbound.Protocol)
	assert.Equal(t, "ws", inbound.Network)

	_, ok = store.InboundByTag("ghost")
	assert.False(t, ok)

	hosts := store.HostsForTag("vmess-ws")
	require.Len(t, hosts, 1)
	assert.Equal(t, "Node", hosts[0].Remark)
	assert.Empty(t, store.HostsForTag("ss-tcp"))
}

func TestMemoryStoreDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Inbounds[1].Network = ""
	cfg.Inbounds[1].TLS = ""
	cfg.Users[0].Status = ""

	store, err := NewMemoryStore(cfg)
	require.NoError(t, err)

	inbound, ok := store.InboundByTag("ss-tcp")
	require.True(t, ok)
	assert.Equal(t, "tcp", inbound.Network)
	assert.Equal(t, subscription.TLSNone, inbound.TLS)

	user, err := store.User("alice")
	require.NoError(t, err)
	assert.Equal(t, "active", user.Status)

	ss, ok := user.Account[subscription.ProtocolShadowsocks].(subscription.ShadowsocksAccount)
	require.True(t, ok)
	assert.Equal(t, "chacha20-ietf-poly1305", ss.Method)
}

func TestMemoryStoreGeneratesMissingUUID(t *testing.T) {
	cfg := validConfig()
	cfg.Users[0].Proxies.VMess.ID = ""

	store, err := NewMemoryStore(cfg)
	require.NoError(t, err)

	user, err := store.User("alice")
	require.NoError(t, err)
	vmess, ok := user.Account[subscription.ProtocolVMess].(subscription.VMessAccount)
	require.True(t, ok)

	_, err = uuid.Parse(vmess.ID)
	assert.NoError(t, err, "generated credential must be a valid uuid")
}

func TestMemoryStoreValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"duplicate inbound tag", func(c *config.Config) {
			c.Inbounds = append(c.Inbounds, config.InboundConfig{Tag: "vmess-ws", Protocol: "vmess"})
		}},
		{"unknown inbound protocol", func(c *config.Config) {
			c.Inbounds[0].Protocol = "wireguard"
		}},
		{"missing inbound tag", func(c *config.Config) {
			c.Inbounds[0].Tag = ""
		}},
		{"host references unknown tag", func(c *config.Config) {
			c.Hosts[0].Tag = "ghost"
		}},
		{"duplicate username", func(c *config.Config) {
			c.Users = append(c.Users, c.Users[0])
		}},
		{"invalid vmess uuid", func(c *config.Config) {
			c.Users[0].Proxies.VMess.ID = "not-a-uuid"
		}},
		{"trojan without password", func(c *config.Config) {
			c.Users[0].Proxies.Trojan = &config.TrojanConfig{}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			_, err := NewMemoryStore(cfg)
			assert.Error(t, err)
		})
	}
}
