package subscription

import (
	crand "crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"math/rand"
	"strings"
	"time"
)

// Format selects the wire format of one generation call.
type Format string

const (
	FormatLinks     Format = "v2ray"
	FormatClash     Format = "clash"
	FormatClashMeta Format = "clash-meta"
	FormatSingBox   Format = "sing-box"
)

// ContentType returns the MIME type a delivery layer should attach to a
// payload of this format.
func (f Format) ContentType() string {
	switch f {
	case FormatClash, FormatClashMeta:
		return "text/yaml; charset=utf-8"
	case FormatSingBox:
		return "application/json"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Assembler orchestrates one subscription generation: it resolves format
// variables, drives the host selector and feeds exactly one encoder.
// Collaborators are fixed at construction; every Generate call owns its own
// salt, random source and encoder, so concurrent calls never share state.
type Assembler struct {
	inbounds  InboundRegistry
	hosts     HostRegistry
	scaffolds ScaffoldProvider
	render    RenderTemplate
	resolver  *VariableResolver
	newRand   func() *rand.Rand
}

// Options wires the assembler's collaborators.
type Options struct {
	Inbounds  InboundRegistry
	Hosts     HostRegistry
	Scaffolds ScaffoldProvider

	// Render substitutes format variables into remark/address templates.
	Render RenderTemplate

	// ServerIP is the public IP resolved once at startup.
	ServerIP string

	// FormatSize renders byte counts human-readable.
	FormatSize func(int64) string

	// Now overrides the clock, nil means time.Now.
	Now func() time.Time

	// NewRand supplies the per-call random source; nil means a
	// crypto-seeded math/rand source. Tests inject a fixed seed here.
	NewRand func() *rand.Rand
}

// NewAssembler validates nothing beyond defaults: registries may be empty,
// which simply yields empty payloads.
func NewAssembler(opts Options) *Assembler {
	newRand := opts.NewRand
	if newRand == nil {
		newRand = func() *rand.Rand { return rand.New(rand.NewSource(cryptoSeed())) }
	}
	render := opts.Render
	if render == nil {
		render = func(tmpl string, _ *FormatVariables) string { return tmpl }
	}
	formatSize := opts.FormatSize
	if formatSize == nil {
		formatSize = func(n int64) string { return "" }
	}
	return &Assembler{
		inbounds:  opts.Inbounds,
		hosts:     opts.Hosts,
		scaffolds: opts.Scaffolds,
		render:    render,
		resolver:  NewVariableResolver(opts.ServerIP, formatSize, opts.Now),
		newRand:   newRand,
	}
}

// GenerateInput is the self-contained request for one generation call.
type GenerateInput struct {
	Account  ProxyAccount
	Inbounds map[Protocol][]string
	Status   StatusSnapshot
	Format   Format
	AsBase64 bool
}

// Generate produces the subscription payload for the requested format.
func (a *Assembler) Generate(in GenerateInput) (string, error) {
	vars := a.resolver.Resolve(in.Status)
	selector := newHostSelector(a.inbounds, a.hosts, a.render, vars, a.newRand())

	var payload string
	switch in.Format {
	case FormatLinks:
		var links []string
		err := selector.Run(in.Account, in.Inbounds, func(ep *ResolvedEndpoint) error {
			link, err := BuildShareLink(ep)
			if err != nil {
				return err
			}
			links = append(links, link)
			return nil
		})
		if err != nil {
			return "", err
		}
		payload = strings.Join(links, "\n")

	case FormatClash, FormatClashMeta:
		scaffold, err := a.scaffolds.Clash()
		if err != nil {
			return "", err
		}
		var encoder Encoder
		if in.Format == FormatClashMeta {
			encoder = NewClashMetaEncoder(scaffold)
		} else {
			encoder = NewClashEncoder(scaffold)
		}
		if payload, err = a.runEncoder(selector, encoder, in); err != nil {
			return "", err
		}

	case FormatSingBox:
		scaffold, err := a.scaffolds.SingBox()
		if err != nil {
			return "", err
		}
		if payload, err = a.runEncoder(selector, NewSingBoxEncoder(scaffold), in); err != nil {
			return "", err
		}

	default:
		return "", &UnsupportedFormatError{Format: string(in.Format)}
	}

	if in.AsBase64 {
		payload = base64.StdEncoding.EncodeToString([]byte(payload))
	}
	return payload, nil
}

func (a *Assembler) runEncoder(selector *HostSelector, encoder Encoder, in GenerateInput) (string, error) {
	if err := selector.Run(in.Account, in.Inbounds, encoder.Add); err != nil {
		return "", err
	}
	return encoder.Render()
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}
