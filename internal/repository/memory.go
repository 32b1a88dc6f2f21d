package repository

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/creamcroissant/marzgo/internal/config"
	"github.com/creamcroissant/marzgo/internal/subscription"
)

// MemoryStore is an in-memory registry seeded from configuration. It
// serves as the user store and as the inbound and host registries for
// the subscription assembler.
type MemoryStore struct {
	users    map[string]*User
	inbounds map[string]*subscription.InboundDefinition
	hosts    map[string][]subscription.HostOverride
}

// NewMemoryStore builds the registry from configuration. VMess and
// VLESS credentials must carry valid UUIDs; an empty ID is generated.
func NewMemoryStore(cfg *config.Config) (*MemoryStore, error) {
	s := &MemoryStore{
		users:    make(map[string]*User, len(cfg.Users)),
		inbounds: make(map[string]*subscription.InboundDefinition, len(cfg.Inbounds)),
		hosts:    make(map[string][]subscription.HostOverride),
	}

	for i := range cfg.Inbounds {
		in := cfg.Inbounds[i]
		if in.Tag == "" {
			return nil, fmt.Errorf("inbound %d: tag is required", i)
		}
		if _, dup := s.inbounds[in.Tag]; dup {
			return nil, fmt.Errorf("inbound %q: duplicate tag", in.Tag)
		}
		def, err := buildInbound(in)
		if err != nil {
			return nil, fmt.Errorf("inbound %q: %w", in.Tag, err)
		}
		s.inbounds[in.Tag] = def
	}

	for i := range cfg.Hosts {
		h := cfg.Hosts[i]
		if _, ok := s.inbounds[h.Tag]; !ok {
			return nil, fmt.Errorf("host %q: unknown inbound tag %q", h.Remark, h.Tag)
		}
		s.hosts[h.Tag] = append(s.hosts[h.Tag], subscription.HostOverride{
			Remark:      h.Remark,
			Address:     h.Address,
			Port:        h.Port,
			SNIs:        h.SNI,
			Hosts:       h.Host,
			TLS:         h.TLS,
			ALPN:        h.ALPN,
			Fingerprint: h.Fingerprint,
		})
	}

	for i := range cfg.Users {
		u := cfg.Users[i]
		if u.Username == "" {
			return nil, fmt.Errorf("user %d: username is required", i)
		}
		if _, dup := s.users[u.Username]; dup {
			return nil, fmt.Errorf("user %q: duplicate username", u.Username)
		}
		user, err := buildUser(u)
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Username, err)
		}
		s.users[u.Username] = user
	}

	return s, nil
}

// User implements UserStore.
func (s *MemoryStore) User(username string) (*User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// InboundByTag implements subscription.InboundRegistry.
func (s *MemoryStore) InboundByTag(tag string) (*subscription.InboundDefinition, bool) {
	def, ok := s.inbounds[tag]
	return def, ok
}

// HostsForTag implements subscription.HostRegistry.
func (s *MemoryStore) HostsForTag(tag string) []subscription.HostOverride {
	return s.hosts[tag]
}

func buildInbound(in config.InboundConfig) (*subscription.InboundDefinition, error) {
	protocol := subscription.Protocol(in.Protocol)
	switch protocol {
	case subscription.ProtocolVMess, subscription.ProtocolVLESS,
		subscription.ProtocolTrojan, subscription.ProtocolShadowsocks:
	default:
		return nil, fmt.Errorf("unknown protocol %q", in.Protocol)
	}

	tls := in.TLS
	if tls == "" {
		tls = subscription.TLSNone
	}
	network := in.Network
	if network == "" {
		network = "tcp"
	}

	return &subscription.InboundDefinition{
		Tag:           in.Tag,
		Protocol:      protocol,
		Port:          in.Port,
		Network:       network,
		TLS:           tls,
		SNIs:          in.SNI,
		Hosts:         in.Host,
		Path:          in.Path,
		HeaderType:    in.HeaderType,
		ALPN:          in.ALPN,
		Fingerprint:   in.Fingerprint,
		PublicKey:     in.PublicKey,
		ShortID:       in.ShortID,
		SpiderX:       in.SpiderX,
		AllowInsecure: in.AllowInsecure,
	}, nil
}

func buildUser(u config.UserConfig) (*User, error) {
	account := subscription.ProxyAccount{}

	if p := u.Proxies.VMess; p != nil {
		id, err := accountUUID(p.ID)
		if err != nil {
			return nil, fmt.Errorf("vmess: %w", err)
		}
		account[subscription.ProtocolVMess] = subscription.VMessAccount{ID: id}
	}
	if p := u.Proxies.VLESS; p != nil {
		id, err := accountUUID(p.ID)
		if err != nil {
			return nil, fmt.Errorf("vless: %w", err)
		}
		account[subscription.ProtocolVLESS] = subscription.VLESSAccount{ID: id, Flow: p.Flow}
	}
	if p := u.Proxies.Trojan; p != nil {
		if p.Password == "" {
			return nil, fmt.Errorf("trojan: password is required")
		}
		account[subscription.ProtocolTrojan] = subscription.TrojanAccount{Password: p.Password, Flow: p.Flow}
	}
	if p := u.Proxies.Shadowsocks; p != nil {
		if p.Password == "" {
			return nil, fmt.Errorf("shadowsocks: password is required")
		}
		method := p.Method
		if method == "" {
			method = "chacha20-ietf-poly1305"
		}
		account[subscription.ProtocolShadowsocks] = subscription.ShadowsocksAccount{
			Password: p.Password,
			Method:   method,
		}
	}

	inbounds := make(map[subscription.Protocol][]string, len(u.Inbounds))
	for proto, tags := range u.Inbounds {
		inbounds[subscription.Protocol(proto)] = tags
	}

	status := u.Status
	if status == "" {
		status = "active"
	}

	return &User{
		Username:    u.Username,
		Status:      status,
		Expire:      u.Expire,
		DataLimit:   u.DataLimit,
		UsedTraffic: u.UsedTraffic,
		Inbounds:    inbounds,
		Account:     account,
	}, nil
}

// accountUUID validates a configured credential ID, generating a fresh
// one when left empty.
func accountUUID(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return uuid.NewString(), nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("invalid uuid %q: %w", id, err)
	}
	return parsed.String(), nil
}
