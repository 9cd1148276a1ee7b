// Package proxy supplies outbound egress descriptors from a configured pool.
// It only hands out candidates; proxy health and retry policy belong to the
// callers that launch browser contexts.
package proxy

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/mxkodo/pubcast/internal/config"
)

// Descriptor is one normalized egress: a proxy server URL plus optional
// credentials and a country tag. Provider-specific credential-embedding
// conventions are resolved before a Descriptor is ever built.
type Descriptor struct {
	Server   string
	Username string
	Password string
	Country  string
}

// Selector hands out descriptors round-robin. The cursor is the only shared
// mutable state in the whole dispatch path, so it is mutex-guarded.
type Selector struct {
	mu      sync.Mutex
	pool    []Descriptor
	cursor  int
	randInt func(n int) int
}

// NewSelector builds a selector over an explicit pool. A nil or empty pool
// is valid: every method then returns nil and callers proceed without a
// proxy.
func NewSelector(pool []Descriptor) *Selector {
	return &Selector{pool: pool, randInt: rand.Intn}
}

// NewSelectorFromConfig normalizes a provider configuration into a pool.
// Unknown services yield an error rather than a silent empty pool.
func NewSelectorFromConfig(cfg config.ProxyConfig) (*Selector, error) {
	pool, err := normalize(cfg)
	if err != nil {
		return nil, err
	}
	return NewSelector(pool), nil
}

// Size returns the pool size.
func (s *Selector) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool)
}

// Next advances the round-robin cursor and returns the descriptor it passed.
// Over K calls on a pool of size K every descriptor is returned exactly once.
func (s *Selector) Next() *Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pool) == 0 {
		return nil
	}
	d := s.pool[s.cursor]
	s.cursor = (s.cursor + 1) % len(s.pool)
	return &d
}

// Random returns a uniformly chosen descriptor without moving the cursor.
func (s *Selector) Random() *Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pool) == 0 {
		return nil
	}
	d := s.pool[s.randInt(len(s.pool))]
	return &d
}

// Current returns the descriptor the cursor points at without advancing.
func (s *Selector) Current() *Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pool) == 0 {
		return nil
	}
	d := s.pool[s.cursor]
	return &d
}

// normalize expands one provider convention into concrete descriptors.
func normalize(cfg config.ProxyConfig) ([]Descriptor, error) {
	switch strings.ToLower(cfg.Service) {
	case "":
		return nil, nil

	case "brightdata":
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("brightdata proxy requires username and password")
		}
		host := defaultStr(cfg.Host, "brd.superproxy.io")
		port := defaultInt(cfg.Port, 22225)
		country := strings.ToLower(defaultStr(cfg.Country, "jp"))
		// BrightData encodes zone and country into the username and offers
		// several zones per account.
		zones := []string{"residential", "datacenter", "mobile"}
		pool := make([]Descriptor, 0, len(zones))
		for _, zone := range zones {
			pool = append(pool, Descriptor{
				Server:   fmt.Sprintf("http://%s:%d", host, port),
				Username: fmt.Sprintf("%s-zone-%s-country-%s", cfg.Username, zone, country),
				Password: cfg.Password,
				Country:  strings.ToUpper(country),
			})
		}
		return pool, nil

	case "oxylabs":
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("oxylabs proxy requires username and password")
		}
		return []Descriptor{{
			Server:   fmt.Sprintf("http://%s:%d", defaultStr(cfg.Host, "pr.oxylabs.io"), defaultInt(cfg.Port, 7777)),
			Username: fmt.Sprintf("customer-%s-cc-jp", cfg.Username),
			Password: cfg.Password,
			Country:  "JP",
		}}, nil

	case "smartproxy":
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("smartproxy proxy requires username and password")
		}
		return []Descriptor{{
			Server:   fmt.Sprintf("http://%s:%d", defaultStr(cfg.Host, "gate.smartproxy.com"), defaultInt(cfg.Port, 7000)),
			Username: cfg.Username,
			Password: cfg.Password,
			Country:  "JP",
		}}, nil

	case "manual":
		if cfg.Host == "" {
			return nil, fmt.Errorf("manual proxy requires a host")
		}
		return []Descriptor{{
			Server:   fmt.Sprintf("http://%s:%d", cfg.Host, defaultInt(cfg.Port, 8080)),
			Username: cfg.Username,
			Password: cfg.Password,
			Country:  cfg.Country,
		}}, nil

	case "list":
		pool := make([]Descriptor, 0, len(cfg.Servers))
		for _, server := range cfg.Servers {
			server = strings.TrimSpace(server)
			if server == "" {
				continue
			}
			pool = append(pool, Descriptor{Server: server, Country: cfg.Country})
		}
		return pool, nil

	default:
		return nil, fmt.Errorf("unknown proxy service %q", cfg.Service)
	}
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
