package subscription

import (
	"encoding/json"
	"fmt"
	"strings"
)

// singbox aggregator outbound types.
const (
	singboxURLTest  = "urltest"
	singboxSelector = "selector"
)

var singboxProxyTypes = map[string]struct{}{
	"vmess":       {},
	"vless":       {},
	"trojan":      {},
	"shadowsocks": {},
}

// SingBoxEncoder accumulates proxy outbounds next to a parsed scaffold
// holding placeholder selector/urltest aggregators. Finalization is
// one-way: Building → Finalized → Rendered.
type SingBoxEncoder struct {
	scaffold  map[string]any
	outbounds []map[string]any
	finalized bool
	rendered  string
}

// NewSingBoxEncoder wraps a scaffold copy obtained from the scaffold
// provider. The encoder takes ownership of the map.
func NewSingBoxEncoder(scaffold map[string]any) *SingBoxEncoder {
	if scaffold == nil {
		scaffold = map[string]any{}
	}
	return &SingBoxEncoder{scaffold: scaffold}
}

// Add builds one outbound for the endpoint. Adding after Render is an
// error: the aggregator member lists are already frozen.
func (s *SingBoxEncoder) Add(ep *ResolvedEndpoint) error {
	if s.finalized {
		return ErrEncoderFinalized
	}

	outbound := map[string]any{
		"type":        string(ep.Protocol),
		"tag":         ep.Remark,
		"server":      ep.Address,
		"server_port": ep.Port,
	}

	switch cred := ep.Credential.(type) {
	case VMessAccount:
		outbound["uuid"] = cred.ID
	case VLESSAccount:
		outbound["uuid"] = cred.ID
		if cred.Flow != "" && (ep.Network == "tcp" || ep.Network == "kcp") {
			outbound["flow"] = cred.Flow
		}
	case TrojanAccount:
		outbound["password"] = cred.Password
		if cred.Flow != "" && (ep.Network == "tcp" || ep.Network == "kcp") {
			outbound["flow"] = cred.Flow
		}
	case ShadowsocksAccount:
		outbound["password"] = cred.Password
		outbound["method"] = cred.Method
		// Shadowsocks outbounds carry neither transport nor TLS.
		s.outbounds = append(s.outbounds, outbound)
		return nil
	default:
		return nil
	}

	if transport := singboxTransport(ep); transport != nil {
		outbound["transport"] = transport
	}
	if tls := singboxTLS(ep); tls != nil {
		outbound["tls"] = tls
	}

	s.outbounds = append(s.outbounds, outbound)
	return nil
}

// Render finalizes exactly once: urltest aggregators receive every proxy
// tag, then selector aggregators receive the proxy tags plus the urltest
// tags, then the document is serialized. Repeated calls return the cached
// text unchanged.
func (s *SingBoxEncoder) Render() (string, error) {
	if s.finalized {
		return s.rendered, nil
	}

	config := deepCopyMap(s.scaffold)
	all := toMapSlice(config["outbounds"])
	for _, outbound := range s.outbounds {
		all = append(all, outbound)
	}

	var proxyTags []string
	for _, outbound := range all {
		if outboundType(outbound) == "" {
			continue
		}
		if _, ok := singboxProxyTypes[outboundType(outbound)]; ok {
			proxyTags = append(proxyTags, outboundTag(outbound))
		}
	}
	selectorTags := append([]string(nil), proxyTags...)
	for _, outbound := range all {
		if outboundType(outbound) == singboxURLTest {
			selectorTags = append(selectorTags, outboundTag(outbound))
		}
	}

	for _, outbound := range all {
		switch outboundType(outbound) {
		case singboxURLTest:
			outbound["outbounds"] = append([]string(nil), proxyTags...)
		case singboxSelector:
			outbound["outbounds"] = append([]string(nil), selectorTags...)
		}
	}
	config["outbounds"] = all

	payload, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		return "", fmt.Errorf("render sing-box config: %w", err)
	}
	s.finalized = true
	s.rendered = string(payload)
	return s.rendered, nil
}

// singboxTransport maps the endpoint's network onto a v2ray transport
// block. h2 is emitted as an "http" transport with ALPN forced to h2.
func singboxTransport(ep *ResolvedEndpoint) map[string]any {
	network := ep.Network
	switch network {
	case "http", "ws", "quic", "grpc", "h2":
	default:
		return nil
	}
	if network == "h2" {
		network = "http"
	}

	transport := map[string]any{"type": network}
	switch network {
	case "http":
		if ep.Host != "" {
			transport["host"] = []string{ep.Host}
		}
		if ep.Path != "" {
			transport["path"] = ep.Path
		}
		transport["idle_timeout"] = "15s"
		transport["ping_timeout"] = "15s"
	case "ws":
		if ep.Path != "" {
			transport["path"] = ep.Path
		}
		if ep.Host != "" {
			transport["headers"] = map[string]any{"Host": ep.Host}
		}
	case "grpc":
		if ep.Path != "" {
			transport["service_name"] = ep.Path
		}
		transport["idle_timeout"] = "15s"
		transport["ping_timeout"] = "15s"
	}
	return transport
}

// singboxTLS maps the endpoint's TLS mode onto a TLS block with optional
// reality and utls sub-objects and ALPN normalized to a list.
func singboxTLS(ep *ResolvedEndpoint) map[string]any {
	if ep.TLS != TLSEnabled && ep.TLS != TLSReality {
		return nil
	}
	tls := map[string]any{"enabled": true}
	if ep.SNI != "" {
		tls["server_name"] = ep.SNI
	}
	if ep.TLS == TLSEnabled && ep.AllowInsecure {
		tls["insecure"] = true
	}
	if ep.TLS == TLSReality {
		reality := map[string]any{"enabled": true}
		if ep.PublicKey != "" {
			reality["public_key"] = ep.PublicKey
		}
		if ep.ShortID != "" {
			reality["short_id"] = ep.ShortID
		}
		tls["reality"] = reality
	}
	if ep.Fingerprint != "" {
		tls["utls"] = map[string]any{
			"enabled":     true,
			"fingerprint": ep.Fingerprint,
		}
	}
	alpn := ep.ALPN
	if ep.Network == "h2" {
		alpn = "h2"
	}
	if alpn != "" {
		tls["alpn"] = strings.Split(alpn, ",")
	}
	return tls
}

func outboundType(outbound map[string]any) string {
	t, _ := outbound["type"].(string)
	return t
}

func outboundTag(outbound map[string]any) string {
	tag, _ := outbound["tag"].(string)
	return tag
}
