package subscription

import (
	"encoding/hex"
	"math/rand"
	"sort"
	"strings"
)

// RenderTemplate substitutes format variables into a remark or address
// template. Unresolved placeholders are kept as literal text.
type RenderTemplate func(tmpl string, vars *FormatVariables) string

// HostSelector walks the requested (protocol, tag) pairs and produces one
// ResolvedEndpoint per configured host override. It owns exactly one random
// salt, generated at construction and reused for every wildcard
// substitution performed during the call.
type HostSelector struct {
	inbounds InboundRegistry
	hosts    HostRegistry
	render   RenderTemplate
	vars     *FormatVariables
	rng      *rand.Rand
	salt     string
}

func newHostSelector(inbounds InboundRegistry, hosts HostRegistry, render RenderTemplate, vars *FormatVariables, rng *rand.Rand) *HostSelector {
	return &HostSelector{
		inbounds: inbounds,
		hosts:    hosts,
		render:   render,
		vars:     vars,
		rng:      rng,
		salt:     newSalt(rng),
	}
}

// Salt exposes the per-call wildcard salt.
func (s *HostSelector) Salt() string { return s.salt }

// Run iterates protocols in sorted order (so a fixed seed yields a fixed
// output), resolves each host entry and hands it to emit. Missing tags and
// missing credentials are silent omissions, not failures.
func (s *HostSelector) Run(account ProxyAccount, requested map[Protocol][]string, emit func(*ResolvedEndpoint) error) error {
	protocols := make([]Protocol, 0, len(requested))
	for protocol := range requested {
		protocols = append(protocols, protocol)
	}
	sort.Slice(protocols, func(i, j int) bool { return protocols[i] < protocols[j] })

	for _, protocol := range protocols {
		credential, ok := account[protocol]
		if !ok || credential == nil {
			continue
		}
		s.vars.Set("PROTOCOL", string(protocol))

		for _, tag := range requested[protocol] {
			inbound, ok := s.inbounds.InboundByTag(tag)
			if !ok {
				continue
			}
			s.vars.Set("TRANSPORT", inbound.Network)

			for _, host := range s.hosts.HostsForTag(tag) {
				ep := s.resolve(inbound, &host, credential)
				if err := emit(ep); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// resolve merges one host override onto its inbound: override value if
// present, else inbound value. TLS falls back only when the override's TLS
// field is unset, so an explicit "none" survives the merge.
func (s *HostSelector) resolve(inbound *InboundDefinition, host *HostOverride, credential Credential) *ResolvedEndpoint {
	ep := &ResolvedEndpoint{
		Protocol:      inbound.Protocol,
		Remark:        s.render(host.Remark, s.vars),
		Address:       s.render(host.Address, s.vars),
		Port:          inbound.Port,
		Network:       inbound.Network,
		TLS:           inbound.TLS,
		SNI:           s.pickSalted(host.SNIs, inbound.SNIs),
		Host:          s.pickSalted(host.Hosts, inbound.Hosts),
		Path:          inbound.Path,
		HeaderType:    inbound.HeaderType,
		ALPN:          firstNonEmpty(host.ALPN, inbound.ALPN),
		Fingerprint:   firstNonEmpty(host.Fingerprint, inbound.Fingerprint),
		PublicKey:     inbound.PublicKey,
		ShortID:       inbound.ShortID,
		SpiderX:       inbound.SpiderX,
		AllowInsecure: inbound.AllowInsecure,
		Credential:    credential,
	}
	if host.Port > 0 {
		ep.Port = host.Port
	}
	if host.TLS != nil {
		ep.TLS = *host.TLS
	}

	// Shadowsocks defines neither TLS nor HTTP-layer camouflage; blank
	// those fields so no encoder ever sees them.
	if inbound.Protocol == ProtocolShadowsocks {
		ep.TLS = ""
		ep.SNI = ""
		ep.Host = ""
		ep.Path = ""
		ep.HeaderType = ""
		ep.ALPN = ""
		ep.Fingerprint = ""
		ep.PublicKey = ""
		ep.ShortID = ""
		ep.SpiderX = ""
		ep.AllowInsecure = false
	}
	return ep
}

// pickSalted chooses one entry at random from the override list, falling
// back to the inbound list, and substitutes the wildcard with the call salt.
func (s *HostSelector) pickSalted(overrides, defaults []string) string {
	list := overrides
	if len(list) == 0 {
		list = defaults
	}
	if len(list) == 0 {
		return ""
	}
	choice := list[s.rng.Intn(len(list))]
	return strings.ReplaceAll(choice, "*", s.salt)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// newSalt draws a hex token from the call's random source; 64 bits is
// effectively collision-free across generation calls.
func newSalt(rng *rand.Rand) string {
	buf := make([]byte, 8)
	rng.Read(buf)
	return hex.EncodeToString(buf)
}
