package auth

import (
	"errors"
	"net/url"
	"strings"
)

var ErrOriginDenied = errors.New("origin not allowed")

// OriginPolicy is an allow-list of browser origins. Entries are exact
// origins ("https://play.example.com"), bare hosts ("play.example.com"),
// wildcard suffixes ("*.example.com") or "*" for everything.
type OriginPolicy struct {
	allowAll bool
	exact    map[string]bool
	suffixes []string
}

func NewOriginPolicy(entries []string) *OriginPolicy {
	p := &OriginPolicy{exact: make(map[string]bool)}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		switch {
		case e == "":
		case e == "*":
			p.allowAll = true
		case strings.HasPrefix(e, "*."):
			p.suffixes = append(p.suffixes, e[1:])
		default:
			p.exact[strings.TrimSuffix(e, "/")] = true
		}
	}
	return p
}

// Check returns ErrOriginDenied unless origin is allowed. A request with no
// Origin header only passes an allow-all policy.
func (p *OriginPolicy) Check(origin string) error {
	if p.allowAll {
		return nil
	}
	if origin == "" {
		return ErrOriginDenied
	}
	origin = strings.ToLower(origin)
	if p.exact[origin] {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ErrOriginDenied
	}
	host := u.Hostname()
	if p.exact[host] || p.exact[u.Host] {
		return nil
	}
	for _, s := range p.suffixes {
		if strings.HasSuffix(host, s) {
			return nil
		}
	}
	return ErrOriginDenied
}
