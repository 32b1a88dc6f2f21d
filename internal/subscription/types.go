// Package subscription converts a user's proxy account and the configured
// server listeners into client-importable subscription payloads.
package subscription

// Protocol identifies a proxy protocol supported by the generator.
type Protocol string

const (
	ProtocolVMess       Protocol = "vmess"
	ProtocolVLESS       Protocol = "vless"
	ProtocolTrojan      Protocol = "trojan"
	ProtocolShadowsocks Protocol = "shadowsocks"
)

// TLS modes carried by inbounds and host overrides.
const (
	TLSNone    = "none"
	TLSEnabled = "tls"
	TLSReality = "reality"
)

// Credential is the per-protocol credential union. Each implementation
// carries only the fields its protocol defines.
type Credential interface {
	CredentialProtocol() Protocol
}

// VMessAccount holds vmess credentials.
type VMessAccount struct {
	ID string
}

func (VMessAccount) CredentialProtocol() Protocol { return ProtocolVMess }

// VLESSAccount holds vless credentials.
type VLESSAccount struct {
	ID   string
	Flow string
}

func (VLESSAccount) CredentialProtocol() Protocol { return ProtocolVLESS }

// TrojanAccount holds trojan credentials.
type TrojanAccount struct {
	Password string
	Flow     string
}

func (TrojanAccount) CredentialProtocol() Protocol { return ProtocolTrojan }

// ShadowsocksAccount holds shadowsocks credentials.
type ShadowsocksAccount struct {
	Password string
	Method   string
}

func (ShadowsocksAccount) CredentialProtocol() Protocol { return ProtocolShadowsocks }

// ProxyAccount is one user's credential bag, keyed by protocol. It is
// treated as immutable for the duration of a generation call.
type ProxyAccount map[Protocol]Credential

// InboundDefinition describes one server-side listener. Instances are
// reference data owned by the registry and never mutated by the generator.
type InboundDefinition struct {
	Tag           string
	Protocol      Protocol
	Port          int
	Network       string // tcp, ws, grpc, h2, http, kcp, quic
	TLS           string // none, tls, reality
	SNIs          []string
	Hosts         []string
	Path          string
	HeaderType    string
	ALPN          string
	Fingerprint   string
	PublicKey     string // reality
	ShortID       string
	SpiderX       string
	AllowInsecure bool
}

// HostOverride is a per-tag alternate presentation of a shared inbound.
// Any zero field falls back to the owning inbound's value; TLS is a
// tri-state pointer so an unset override is distinguishable from an
// explicit "none".
type HostOverride struct {
	Remark      string
	Address     string
	Port        int
	SNIs        []string
	Hosts       []string
	TLS         *string
	ALPN        string
	Fingerprint string
}

// ResolvedEndpoint is the ephemeral merge of one inbound, one host override
// and the user's credential, built fresh per host entry and consumed once
// by an encoder.
type ResolvedEndpoint struct {
	Protocol      Protocol
	Remark        string
	Address       string
	Port          int
	Network       string
	TLS           string
	SNI           string
	Host          string
	Path          string
	HeaderType    string
	ALPN          string
	Fingerprint   string
	PublicKey     string
	ShortID       string
	SpiderX       string
	AllowInsecure bool
	Credential    Credential
}

// InboundRegistry resolves a listener definition by tag.
type InboundRegistry interface {
	InboundByTag(tag string) (*InboundDefinition, bool)
}

// HostRegistry lists the host overrides configured for a tag.
type HostRegistry interface {
	HostsForTag(tag string) []HostOverride
}

// ScaffoldProvider hands out the static scaffold documents that rendered
// configurations are merged into. Each call returns a fresh copy owned by
// the caller.
type ScaffoldProvider interface {
	Clash() (map[string]any, error)
	SingBox() (map[string]any, error)
}

// Encoder is the shared capability implemented by every output format:
// accumulate resolved endpoints, then render the final document.
type Encoder interface {
	Add(ep *ResolvedEndpoint) error
	Render() (string, error)
}

// FormatVariables is an ordered key/value mapping used for placeholder
// substitution in remark and address templates.
type FormatVariables struct {
	keys   []string
	values map[string]string
}

// NewFormatVariables returns an empty variable mapping.
func NewFormatVariables() *FormatVariables {
	return &FormatVariables{values: make(map[string]string)}
}

// Set stores a value, keeping first-insertion order for Keys.
func (v *FormatVariables) Set(key, value string) {
	if _, ok := v.values[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.values[key] = value
}

// Get looks up a value by key.
func (v *FormatVariables) Get(key string) (string, bool) {
	val, ok := v.values[key]
	return val, ok
}

// Keys returns the keys in insertion order.
func (v *FormatVariables) Keys() []string {
	return append([]string(nil), v.keys...)
}
