package subscription

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// BuildShareLink renders one endpoint as a client-importable URI. Builders
// are pure: the same endpoint always produces the same link.
func BuildShareLink(ep *ResolvedEndpoint) (string, error) {
	switch cred := ep.Credential.(type) {
	case VMessAccount:
		return vmessLink(ep, cred), nil
	case VLESSAccount:
		return proxyQueryLink("vless", ep, url.User(cred.ID), cred.Flow), nil
	case TrojanAccount:
		return proxyQueryLink("trojan", ep, url.User(cred.Password), cred.Flow), nil
	case ShadowsocksAccount:
		return shadowsocksLink(ep, cred), nil
	default:
		return "", &UnsupportedFormatError{Format: string(ep.Protocol)}
	}
}

// vmessLink encodes the whole payload as key-sorted JSON wrapped in base64,
// the format V2RayN-style clients expect.
func vmessLink(ep *ResolvedEndpoint, cred VMessAccount) string {
	payload := map[string]any{
		"add":  ep.Address,
		"aid":  "0",
		"host": ep.Host,
		"id":   cred.ID,
		"net":  ep.Network,
		"path": ep.Path,
		"port": ep.Port,
		"ps":   ep.Remark,
		"scy":  "auto",
		"tls":  ep.TLS,
		"type": ep.HeaderType,
		"v":    "2",
	}
	switch ep.TLS {
	case TLSEnabled:
		payload["sni"] = ep.SNI
		payload["fp"] = ep.Fingerprint
		payload["alpn"] = ep.ALPN
	case TLSReality:
		payload["sni"] = ep.SNI
		payload["fp"] = ep.Fingerprint
		payload["pbk"] = ep.PublicKey
		payload["sid"] = ep.ShortID
		payload["spx"] = ep.SpiderX
	}
	data, _ := json.Marshal(payload)
	return "vmess://" + base64.StdEncoding.EncodeToString(data)
}

// proxyQueryLink builds the shared vless/trojan form:
// scheme://identity@address:port?query#remark.
func proxyQueryLink(scheme string, ep *ResolvedEndpoint, identity *url.Userinfo, flow string) string {
	q := url.Values{}
	q.Set("security", ep.TLS)
	q.Set("type", ep.Network)
	q.Set("host", ep.Host)
	q.Set("headerType", ep.HeaderType)
	if flow != "" && (ep.Network == "tcp" || ep.Network == "kcp") {
		q.Set("flow", flow)
	}
	if ep.Network == "grpc" {
		q.Set("serviceName", ep.Path)
	} else {
		q.Set("path", ep.Path)
	}
	switch ep.TLS {
	case TLSEnabled:
		q.Set("sni", ep.SNI)
		q.Set("fp", ep.Fingerprint)
		q.Set("alpn", ep.ALPN)
	case TLSReality:
		q.Set("sni", ep.SNI)
		q.Set("fp", ep.Fingerprint)
		q.Set("pbk", ep.PublicKey)
		q.Set("sid", ep.ShortID)
		q.Set("spx", ep.SpiderX)
	}

	u := url.URL{
		Scheme:   scheme,
		User:     identity,
		Host:     net.JoinHostPort(ep.Address, strconv.Itoa(ep.Port)),
		RawQuery: q.Encode(),
		Fragment: ep.Remark,
	}
	return u.String()
}

// shadowsocksLink carries no transport or TLS fields; only the cipher and
// password travel in the base64 userinfo.
func shadowsocksLink(ep *ResolvedEndpoint, cred ShadowsocksAccount) string {
	userinfo := base64.StdEncoding.EncodeToString([]byte(cred.Method + ":" + cred.Password))
	return fmt.Sprintf("ss://%s@%s#%s",
		userinfo,
		net.JoinHostPort(ep.Address, strconv.Itoa(ep.Port)),
		url.PathEscape(ep.Remark))
}
