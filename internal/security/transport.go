// Package security guards outbound alert deliveries.
//
// SafeTransport refuses to dial loopback, link-local, private and metadata
// addresses so a configured webhook URL cannot be pointed back at the
// infrastructure the detector runs on. Sign and Verify implement the HMAC
// header receivers use to authenticate webhook bodies.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"time"
)

const (
	dnsTimeout = 500 * time.Millisecond

	// DefaultMaxRedirects bounds redirect chains followed by NewSafeHTTPClient.
	DefaultMaxRedirects = 3
)

var (
	ErrSSRFBlocked          = errors.New("ssrf: request to blocked IP range")
	ErrSSRFDNSTimeout       = errors.New("ssrf: DNS resolution timeout")
	ErrSSRFDNSFailed        = errors.New("ssrf: DNS resolution failed")
	ErrSSRFTooManyRedirects = errors.New("ssrf: too many redirects")
)

// blockedPrefixes covers loopback, RFC 1918, CGNAT, link-local (including the
// cloud metadata endpoint), multicast and their IPv6 counterparts.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("ff00::/8"),
}

// IsBlocked reports whether addr falls in a range outbound deliveries may not
// reach. IPv4-mapped IPv6 addresses are checked as IPv4.
func IsBlocked(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolver abstracts DNS resolution for tests.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// SafeTransport is an http.RoundTripper whose dialer resolves the target
// host itself and connects only when every resolved address is allowed.
type SafeTransport struct {
	Base     *http.Transport
	Resolver Resolver
	dialer   net.Dialer
}

// NewSafeTransport wraps base, or a clone of http.DefaultTransport when base
// is nil. base.DialContext is replaced.
func NewSafeTransport(base *http.Transport) *SafeTransport {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	// Proxies would dial on our behalf and bypass the address check.
	base.Proxy = nil
	st := &SafeTransport{Base: base, Resolver: net.DefaultResolver}
	base.DialContext = st.dialContext
	return st
}

func (st *SafeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return st.Base.RoundTrip(req)
}

func (st *SafeTransport) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("ssrf: invalid address %q: %w", addr, err)
	}

	ip, err := checkHost(ctx, st.Resolver, host)
	if err != nil {
		return nil, err
	}
	return st.dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
}

// checkHost resolves host (unless it is already a literal) and returns the
// first address once all of them have passed IsBlocked. Checking every
// address keeps a rebinding record that mixes public and private answers out.
func checkHost(ctx context.Context, r Resolver, host string) (netip.Addr, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		if IsBlocked(ip) {
			return netip.Addr{}, fmt.Errorf("%w: %s", ErrSSRFBlocked, ip)
		}
		return ip, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	ips, err := r.LookupNetIP(dnsCtx, "ip", host)
	if err != nil {
		if dnsCtx.Err() != nil {
			return netip.Addr{}, fmt.Errorf("%w: host %q", ErrSSRFDNSTimeout, host)
		}
		return netip.Addr{}, fmt.Errorf("%w: host %q: %v", ErrSSRFDNSFailed, host, err)
	}
	if len(ips) == 0 {
		return netip.Addr{}, fmt.Errorf("%w: host %q resolved to no addresses", ErrSSRFDNSFailed, host)
	}
	for _, ip := range ips {
		if IsBlocked(ip) {
			return netip.Addr{}, fmt.Errorf("%w: %s (resolved from %s)", ErrSSRFBlocked, ip, host)
		}
	}
	return ips[0], nil
}

// CheckRedirect validates each redirect target and stops after maxRedirects
// hops. A nil resolver uses net.DefaultResolver.
func CheckRedirect(maxRedirects int, r Resolver) func(*http.Request, []*http.Request) error {
	if r == nil {
		r = net.DefaultResolver
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrSSRFTooManyRedirects, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect URL has no host", ErrSSRFBlocked)
		}
		_, err := checkHost(req.Context(), r, host)
		return err
	}
}

// NewSafeHTTPClient returns a client that can only reach public addresses.
func NewSafeHTTPClient(timeout time.Duration) *http.Client {
	st := NewSafeTransport(nil)
	return &http.Client{
		Transport:     st,
		Timeout:       timeout,
		CheckRedirect: CheckRedirect(DefaultMaxRedirects, st.Resolver),
	}
}
