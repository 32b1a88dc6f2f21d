package subscription

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInbounds map[string]*InboundDefinition

func (s stubInbounds) InboundByTag(tag string) (*InboundDefinition, bool) {
	def, ok := s[tag]
	return def, ok
}

type stubHosts map[string][]HostOverride

func (s stubHosts) HostsForTag(tag string) []HostOverride {
	return s[tag]
}

func passthroughRender(tmpl string, _ *FormatVariables) string { return tmpl }

func collectEndpoints(t *testing.T, sel *HostSelector, account ProxyAccount, requested map[Protocol][]string) []*ResolvedEndpoint {
	t.Helper()
	var eps []*ResolvedEndpoint
	err := sel.Run(account, requested, func(ep *ResolvedEndpoint) error {
		eps = append(eps, ep)
		return nil
	})
	require.NoError(t, err)
	return eps
}

func strPtr(s string) *string { return &s }

func TestSelectorSaltSharedWithinCall(t *testing.T) {
	inbounds := stubInbounds{
		"ws-in": {
			Tag: "ws-in", Protocol: ProtocolVMess, Port: 443,
			Network: "ws", TLS: TLSEnabled,
			SNIs: []string{"*.example.com"},
		},
	}
	hosts := stubHosts{
		"ws-in": {
			{Remark: "Node A", Address: "a.example.com"},
			{Remark: "Node B", Address: "b.example.com"},
		},
	}

	vars := NewFormatVariables()
	sel := newHostSelector(inbounds, hosts, passthroughRender, vars, rand.New(rand.NewSource(1)))

	account := ProxyAccount{ProtocolVMess: VMessAccount{ID: "id"}}
	eps := collectEndpoints(t, sel, account, map[Protocol][]string{ProtocolVMess: {"ws-in"}})
	require.Len(t, eps, 2)

	saltedSNI := regexp.MustCompile(`^[0-9a-f]{16}\.example\.com$`)
	assert.Regexp(t, saltedSNI, eps[0].SNI)
	assert.Equal(t, eps[0].SNI, eps[1].SNI, "both hosts must share the call's salt")
}

func TestSelectorSaltDiffersAcrossCalls(t *testing.T) {
	a := newHostSelector(nil, nil, passthroughRender, NewFormatVariables(), rand.New(rand.NewSource(1)))
	b := newHostSelector(nil, nil, passthroughRender, NewFormatVariables(), rand.New(rand.NewSource(2)))
	assert.NotEqual(t, a.Salt(), b.Salt())
}

func TestSelectorSkipsMissingCredentialAndTag(t *testing.T) {
	inbounds := stubInbounds{
		"trojan-in": {Tag: "trojan-in", Protocol: ProtocolTrojan, Port: 443, Network: "tcp", TLS: TLSEnabled},
	}
	hosts := stubHosts{
		"trojan-in": {{Remark: "T", Address: "t.example.com"}},
	}

	sel := newHostSelector(inbounds, hosts, passthroughRender, NewFormatVariables(), rand.New(rand.NewSource(1)))

	// vmess requested but not provisioned; ghost tag never configured.
	account := ProxyAccount{ProtocolTrojan: TrojanAccount{Password: "pw"}}
	eps := collectEndpoints(t, sel, account, map[Protocol][]string{
		ProtocolVMess:  {"trojan-in"},
		ProtocolTrojan: {"ghost", "trojan-in"},
	})

	require.Len(t, eps, 1)
	assert.Equal(t, ProtocolTrojan, eps[0].Protocol)
}

func TestSelectorTLSMerge(t *testing.T) {
	inbound := &InboundDefinition{
		Tag: "in", Protocol: ProtocolVLESS, Port: 443, Network: "tcp", TLS: TLSEnabled,
	}
	inbounds := stubInbounds{"in": inbound}
	account := ProxyAccount{ProtocolVLESS: VLESSAccount{ID: "id"}}
	requested := map[Protocol][]string{ProtocolVLESS: {"in"}}

	cases := []struct {
		name string
		host HostOverride
		want string
	}{
		{"unset falls back to inbound", HostOverride{Remark: "r", Address: "a"}, TLSEnabled},
		{"explicit none survives", HostOverride{Remark: "r", Address: "a", TLS: strPtr(TLSNone)}, TLSNone},
		{"explicit reality wins", HostOverride{Remark: "r", Address: "a", TLS: strPtr(TLSReality)}, TLSReality},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hosts := stubHosts{"in": {tc.host}}
			sel := newHostSelector(inbounds, hosts, passthroughRender, NewFormatVariables(), rand.New(rand.NewSource(1)))
			eps := collectEndpoints(t, sel, account, requested)
			require.Len(t, eps, 1)
			assert.Equal(t, tc.want, eps[0].TLS)
		})
	}
}

func TestSelectorOverridePortAndFields(t *testing.T) {
	inbounds := stubInbounds{
		"in": {
			Tag: "in", Protocol: ProtocolVMess, Port: 443, Network: "ws", TLS: TLSEnabled,
			SNIs: []string{"sni.example.com"}, Hosts: []string{"host.example.com"},
			ALPN: "h2", Fingerprint: "chrome", Path: "/ws",
		},
	}
	hosts := stubHosts{
		"in": {{
			Remark: "r", Address: "a", Port: 8443,
			SNIs: []string{"override.example.com"},
			ALPN: "http/1.1", Fingerprint: "firefox",
		}},
	}

	sel := newHostSelector(inbounds, hosts, passthroughRender, NewFormatVariables(), rand.New(rand.NewSource(1)))
	eps := collectEndpoints(t, sel, ProxyAccount{ProtocolVMess: VMessAccount{ID: "id"}},
		map[Protocol][]string{ProtocolVMess: {"in"}})
	require.Len(t, eps, 1)

	ep := eps[0]
	assert.Equal(t, 8443, ep.Port)
	assert.Equal(t, "override.example.com", ep.SNI)
	assert.Equal(t, "host.example.com", ep.Host, "host list falls back to inbound")
	assert.Equal(t, "http/1.1", ep.ALPN)
	assert.Equal(t, "firefox", ep.Fingerprint)
	assert.Equal(t, "/ws", ep.Path)
}

func TestSelectorBlanksShadowsocksCamouflage(t *testing.T) {
	inbounds := stubInbounds{
		"ss-in": {
			Tag: "ss-in", Protocol: ProtocolShadowsocks, Port: 8388, Network: "tcp",
			TLS: TLSEnabled, SNIs: []string{"sni"}, Hosts: []string{"host"},
			Path: "/p", HeaderType: "http", ALPN: "h2", Fingerprint: "chrome",
			PublicKey: "pbk", ShortID: "sid", AllowInsecure: true,
		},
	}
	hosts := stubHosts{"ss-in": {{Remark: "r", Address: "a"}}}

	sel := newHostSelector(inbounds, hosts, passthroughRender, NewFormatVariables(), rand.New(rand.NewSource(1)))
	eps := collectEndpoints(t, sel,
		ProxyAccount{ProtocolShadowsocks: ShadowsocksAccount{Password: "pw", Method: "aes-128-gcm"}},
		map[Protocol][]string{ProtocolShadowsocks: {"ss-in"}})
	require.Len(t, eps, 1)

	ep := eps[0]
	assert.Empty(t, ep.TLS)
	assert.Empty(t, ep.SNI)
	assert.Empty(t, ep.Host)
	assert.Empty(t, ep.Path)
	assert.Empty(t, ep.HeaderType)
	assert.Empty(t, ep.ALPN)
	assert.Empty(t, ep.Fingerprint)
	assert.Empty(t, ep.PublicKey)
	assert.Empty(t, ep.ShortID)
	assert.False(t, ep.AllowInsecure)
}

func TestSelectorRendersRemarkAndAddress(t *testing.T) {
	inbounds := stubInbounds{
		"in": {Tag: "in", Protocol: ProtocolVMess, Port: 443, Network: "tcp", TLS: TLSNone},
	}
	hosts := stubHosts{
		"in": {{Remark: "{USERNAME} node", Address: "{SERVER_IP}"}},
	}

	vars := NewFormatVariables()
	vars.Set("USERNAME", "alice")
	vars.Set("SERVER_IP", "203.0.113.7")
	render := func(tmpl string, v *FormatVariables) string {
		out := tmpl
		for _, key := range v.Keys() {
			val, _ := v.Get(key)
			out = strings.ReplaceAll(out, "{"+key+"}", val)
		}
		return out
	}

	sel := newHostSelector(inbounds, hosts, render, vars, rand.New(rand.NewSource(1)))
	eps := collectEndpoints(t, sel, ProxyAccount{ProtocolVMess: VMessAccount{ID: "id"}},
		map[Protocol][]string{ProtocolVMess: {"in"}})
	require.Len(t, eps, 1)

	assert.Equal(t, "alice node", eps[0].Remark)
	assert.Equal(t, "203.0.113.7", eps[0].Address)
}
