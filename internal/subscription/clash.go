package subscription

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClashEncoder accumulates proxy nodes and merges them into a static
// scaffold document on render. State is exclusively owned by one
// generation call.
type ClashEncoder struct {
	scaffold map[string]any
	proxies  []map[string]any
	remarks  []string
}

// NewClashEncoder wraps a scaffold copy obtained from the scaffold
// provider. The encoder takes ownership of the map.
func NewClashEncoder(scaffold map[string]any) *ClashEncoder {
	if scaffold == nil {
		scaffold = map[string]any{}
	}
	return &ClashEncoder{scaffold: scaffold}
}

// Add builds one proxy node for the endpoint. vless is not part of the
// base Clash schema and is silently dropped; the Meta variant supports it.
func (c *ClashEncoder) Add(ep *ResolvedEndpoint) error {
	node, remark := c.makeNode(ep, ep.TLS == TLSEnabled)
	switch cred := ep.Credential.(type) {
	case VMessAccount:
		node["uuid"] = cred.ID
		node["alterId"] = 0
		node["cipher"] = "auto"
	case TrojanAccount:
		node["password"] = cred.Password
	case ShadowsocksAccount:
		node["password"] = cred.Password
		node["cipher"] = cred.Method
	default:
		return nil
	}
	c.push(node, remark)
	return nil
}

// Render merges the accumulated nodes and remark registry into a fresh
// copy of the scaffold and marshals it. The encoder state is not mutated,
// so repeated calls yield byte-identical output.
func (c *ClashEncoder) Render() (string, error) {
	merged := deepCopyMap(c.scaffold)

	proxies := toMapSlice(merged["proxies"])
	for _, node := range c.proxies {
		proxies = append(proxies, node)
	}
	merged["proxies"] = proxies

	groups := toMapSlice(merged["proxy-groups"])
	for _, group := range groups {
		group["proxies"] = appendUnique(toStringSlice(group["proxies"]), c.remarks)
	}
	merged["proxy-groups"] = groups

	// Some clients fail without a rules key, even an empty one.
	if _, ok := merged["rules"]; !ok {
		merged["rules"] = []string{}
	}

	payload, err := yaml.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("render clash config: %w", err)
	}
	return string(payload), nil
}

// makeNode builds the protocol-independent part of a node and reserves a
// unique remark for it. The remark is registered only when the node is
// actually pushed.
func (c *ClashEncoder) makeNode(ep *ResolvedEndpoint, tls bool) (map[string]any, string) {
	remark := c.uniqueRemark(ep.Remark)
	node := map[string]any{
		"name":    remark,
		"type":    clashType(ep.Protocol),
		"server":  ep.Address,
		"port":    ep.Port,
		"network": ep.Network,
		"udp":     true,
	}

	if ep.Protocol == ProtocolShadowsocks {
		return node, remark
	}

	if tls {
		node["tls"] = true
		if ep.Protocol == ProtocolTrojan {
			node["sni"] = ep.SNI
		} else {
			node["servername"] = ep.SNI
		}
		if ep.ALPN != "" {
			node["alpn"] = strings.Split(ep.ALPN, ",")
		}
	}

	opts := map[string]any{}
	switch ep.Network {
	case "ws":
		if ep.Path != "" {
			opts["path"] = ep.Path
		}
		if ep.Host != "" {
			opts["headers"] = map[string]any{"Host": ep.Host}
		}
	case "grpc":
		if ep.Path != "" {
			opts["grpc-service-name"] = ep.Path
		}
	case "h2":
		if ep.Path != "" {
			opts["path"] = ep.Path
		}
		if ep.Host != "" {
			opts["host"] = []string{ep.Host}
		}
	case "http", "tcp":
		if ep.Path != "" {
			opts["method"] = "GET"
			opts["path"] = []string{ep.Path}
		}
		if ep.Host != "" {
			opts["method"] = "GET"
			opts["headers"] = map[string]any{"Host": ep.Host}
		}
	}
	node[ep.Network+"-opts"] = opts

	return node, remark
}

func (c *ClashEncoder) push(node map[string]any, remark string) {
	c.proxies = append(c.proxies, node)
	c.remarks = append(c.remarks, remark)
}

// uniqueRemark suffixes duplicate display names with " (2)", " (3)", …
// until a free name is found.
func (c *ClashEncoder) uniqueRemark(remark string) string {
	if !containsString(c.remarks, remark) {
		return remark
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", remark, n)
		if !containsString(c.remarks, candidate) {
			return candidate
		}
	}
}

// Remarks returns the registered display names in insertion order.
func (c *ClashEncoder) Remarks() []string {
	return append([]string(nil), c.remarks...)
}

// ClashMetaEncoder composes around the base Clash builder rather than
// extending it: the Meta schema enables TLS for reality hosts and adds
// vless, flow, client-fingerprint and reality-opts on top.
type ClashMetaEncoder struct {
	base *ClashEncoder
}

// NewClashMetaEncoder wraps a scaffold copy, like NewClashEncoder.
func NewClashMetaEncoder(scaffold map[string]any) *ClashMetaEncoder {
	return &ClashMetaEncoder{base: NewClashEncoder(scaffold)}
}

// Add builds one Meta node for the endpoint.
func (m *ClashMetaEncoder) Add(ep *ResolvedEndpoint) error {
	node, remark := m.base.makeNode(ep, ep.TLS == TLSEnabled || ep.TLS == TLSReality)
	if ep.Fingerprint != "" {
		node["client-fingerprint"] = ep.Fingerprint
	}
	if ep.PublicKey != "" {
		node["reality-opts"] = map[string]any{
			"public-key": ep.PublicKey,
			"short-id":   ep.ShortID,
		}
	}

	switch cred := ep.Credential.(type) {
	case VMessAccount:
		node["uuid"] = cred.ID
		node["alterId"] = 0
		node["cipher"] = "auto"
	case VLESSAccount:
		node["uuid"] = cred.ID
		if ep.Network == "tcp" || ep.Network == "kcp" {
			node["flow"] = cred.Flow
		}
	case TrojanAccount:
		node["password"] = cred.Password
		if ep.Network == "tcp" || ep.Network == "kcp" {
			node["flow"] = cred.Flow
		}
	case ShadowsocksAccount:
		node["password"] = cred.Password
		node["cipher"] = cred.Method
	default:
		return nil
	}
	m.base.push(node, remark)
	return nil
}

// Render delegates to the base builder.
func (m *ClashMetaEncoder) Render() (string, error) {
	return m.base.Render()
}

func clashType(p Protocol) string {
	if p == ProtocolShadowsocks {
		return "ss"
	}
	return string(p)
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

func toMapSlice(value any) []map[string]any {
	var result []map[string]any
	switch v := value.(type) {
	case []map[string]any:
		result = append(result, v...)
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				result = append(result, m)
			}
		}
	}
	return result
}

func toStringSlice(value any) []string {
	var result []string
	switch v := value.(type) {
	case []string:
		result = append(result, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
	}
	return result
}

func appendUnique(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		seen[item] = struct{}{}
	}
	for _, item := range extra {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		existing = append(existing, item)
	}
	return existing
}

// deepCopyMap clones scaffold documents so render never mutates the
// encoder's own copy.
func deepCopyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = deepCopyMap(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
