// Package proxy parses upstream proxy urls for the browser drivers.
package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
)

var ErrNoProxies = errors.New("no proxies configured")

// Proxy is an upstream proxy. Chromium takes the server and the
// credentials separately.
type Proxy struct {
	Scheme   string
	Host     string
	Port     string
	Username string
	Password string
}

// Parse reads scheme://[user:pass@]host:port. The scheme defaults to http.
func Parse(raw string) (Proxy, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Proxy{}, fmt.Errorf("invalid proxy url: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https", "socks5":
	default:
		return Proxy{}, fmt.Errorf("unsupported proxy scheme %q", parsed.Scheme)
	}

	host, port, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		return Proxy{}, fmt.Errorf("invalid proxy host:port: %w", err)
	}

	ans := Proxy{
		Scheme: parsed.Scheme,
		Host:   host,
		Port:   port,
	}

	if parsed.User != nil {
		ans.Username = parsed.User.Username()
		ans.Password, _ = parsed.User.Password()
	}

	return ans, nil
}

// Server is the proxy address without credentials.
func (p Proxy) Server() string {
	return p.Scheme + "://" + net.JoinHostPort(p.Host, p.Port)
}

func (p Proxy) HasAuth() bool {
	return p.Username != ""
}

// String hides the password.
func (p Proxy) String() string {
	if !p.HasAuth() {
		return p.Server()
	}

	return p.Scheme + "://" + p.Username + ":***@" + net.JoinHostPort(p.Host, p.Port)
}

// Pool hands out proxies round robin.
type Pool struct {
	mu      sync.Mutex
	proxies []Proxy
	next    int
}

func NewPool(raw []string) (*Pool, error) {
	proxies := make([]Proxy, 0, len(raw))

	for i, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}

		p, err := Parse(r)
		if err != nil {
			return nil, fmt.Errorf("proxy %d: %w", i+1, err)
		}

		proxies = append(proxies, p)
	}

	return &Pool{proxies: proxies}, nil
}

func (p *Pool) Len() int {
	return len(p.proxies)
}

// Next returns the next proxy, or ErrNoProxies for an empty pool.
func (p *Pool) Next() (Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return Proxy{}, ErrNoProxies
	}

	ans := p.proxies[p.next%len(p.proxies)]
	p.next++

	return ans, nil
}
