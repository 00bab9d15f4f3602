// Package ipfilter restricts the API and metrics listeners to configured
// client networks.
package ipfilter

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Filter checks client addresses against an allow-list of prefixes
type Filter struct {
	prefixes       []netip.Prefix
	trustForwarded bool
	logger         *slog.Logger
}

// Option configures a Filter
type Option func(*Filter)

// TrustForwarded makes the filter use X-Forwarded-For / X-Real-IP.
// Enable only behind a reverse proxy that overwrites these headers.
func TrustForwarded() Option {
	return func(f *Filter) { f.trustForwarded = true }
}

// New creates a filter from a list of IPs and CIDRs. Invalid entries are
// logged and skipped. An empty list allows everyone.
func New(allowedIPs []string, logger *slog.Logger, opts ...Option) *Filter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	f := &Filter{logger: logger}

	for _, entry := range allowedIPs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		prefix, err := parseEntry(entry)
		if err != nil {
			logger.Warn("invalid entry in allowed_ips", "entry", entry, "error", err)
			continue
		}
		f.prefixes = append(f.prefixes, prefix)
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

func parseEntry(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}

	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Enabled returns true if IP filtering is active
func (f *Filter) Enabled() bool {
	return len(f.prefixes) > 0
}

// Count returns the number of allowed networks
func (f *Filter) Count() int {
	return len(f.prefixes)
}

// IsAllowed reports whether addr may connect
func (f *Filter) IsAllowed(addr netip.Addr) bool {
	if len(f.prefixes) == 0 {
		return true
	}
	addr = addr.Unmap()
	for _, p := range f.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// IsAllowedString parses and checks an IP string
func (f *Filter) IsAllowedString(s string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return f.IsAllowed(addr)
}

// ClientIP returns the address the request is attributed to
func (f *Filter) ClientIP(r *http.Request) (netip.Addr, bool) {
	if f.trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return addr, true
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
				return addr, true
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

// HTTPMiddleware answers 403 to clients outside the allow-list
func (f *Filter) HTTPMiddleware(next http.Handler) http.Handler {
	if !f.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, ok := f.ClientIP(r)
		if !ok {
			f.logger.Warn("could not parse client IP", "remote_addr", r.RemoteAddr)
			forbidden(w)
			return
		}

		if !f.IsAllowed(addr) {
			f.logger.Warn("access denied by IP filter", "ip", addr.String(), "path", r.URL.Path)
			forbidden(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	io.WriteString(w, `{"error":"forbidden"}`)
}
