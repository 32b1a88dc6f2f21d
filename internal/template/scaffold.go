package template

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/creamcroissant/marzgo/internal/cache"
)

// ScaffoldStore loads the static Clash YAML and sing-box JSON scaffolds,
// parses each one once into structured data and hands out deep copies.
// Parsing once removes the render → parse → re-serialize text round trip;
// copying keeps encoder state isolated between generation calls.
type ScaffoldStore struct {
	clashPath   string
	singboxPath string
	cache       cache.Store
}

// NewScaffoldStore builds a store over the configured template paths.
// Empty paths fall back to built-in defaults.
func NewScaffoldStore(clashPath, singboxPath string, store cache.Store) *ScaffoldStore {
	return &ScaffoldStore{
		clashPath:   clashPath,
		singboxPath: singboxPath,
		cache:       store.Namespace("scaffold"),
	}
}

// Clash returns a fresh copy of the Clash scaffold document.
func (s *ScaffoldStore) Clash() (map[string]any, error) {
	return s.load("clash", s.clashPath, parseClashScaffold, defaultClashScaffold)
}

// SingBox returns a fresh copy of the sing-box scaffold document.
func (s *ScaffoldStore) SingBox() (map[string]any, error) {
	return s.load("sing-box", s.singboxPath, parseSingBoxScaffold, defaultSingBoxScaffold)
}

func (s *ScaffoldStore) load(key, path string, parse func([]byte) (map[string]any, error), fallback func() map[string]any) (map[string]any, error) {
	ctx := context.Background()
	if cached, ok := s.cache.Get(ctx, key); ok {
		if doc, ok := cached.(map[string]any); ok {
			return copyDocument(doc), nil
		}
	}

	var doc map[string]any
	if path == "" {
		doc = fallback()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s scaffold: %w", key, err)
		}
		doc, err = parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s scaffold: %w", key, err)
		}
	}

	s.cache.Set(ctx, key, doc, cache.NoExpiration)
	return copyDocument(doc), nil
}

func parseClashScaffold(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func parseSingBoxScaffold(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// defaultClashScaffold mirrors the minimal document clients accept when no
// operator template is configured.
func defaultClashScaffold() map[string]any {
	return map[string]any{
		"mixed-port": 7890,
		"allow-lan":  false,
		"mode":       "rule",
		"log-level":  "info",
		"proxies":    []map[string]any{},
		"proxy-groups": []map[string]any{
			{
				"name":    "PROXY",
				"type":    "select",
				"proxies": []string{},
			},
		},
		"rules": []string{"MATCH,PROXY"},
	}
}

func defaultSingBoxScaffold() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":     "info",
			"timestamp": true,
		},
		"outbounds": []map[string]any{
			{
				"type":      "selector",
				"tag":       "proxy",
				"outbounds": []string{},
			},
			{
				"type":      "urltest",
				"tag":       "auto",
				"outbounds": []string{},
				"url":       "http://www.gstatic.com/generate_204",
				"interval":  "10m",
			},
			{
				"type": "direct",
				"tag":  "direct",
			},
		},
	}
}

func copyDocument(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = copyDocument(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
