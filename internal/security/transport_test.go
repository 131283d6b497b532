package security

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResolver map[string][]string

func (m mockResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	raw, ok := m[host]
	if !ok {
		return nil, fmt.Errorf("no such host: %s", host)
	}
	out := make([]netip.Addr, 0, len(raw))
	for _, s := range raw {
		out = append(out, netip.MustParseAddr(s))
	}
	return out, nil
}

type slowResolver struct{}

func (slowResolver) LookupNetIP(ctx context.Context, _, _ string) ([]netip.Addr, error) {
	select {
	case <-time.After(5 * time.Second):
		return []netip.Addr{netip.MustParseAddr("93.184.216.34")}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestIsBlocked(t *testing.T) {
	tests := []struct {
		addr    string
		blocked bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.10", true},
		{"169.254.169.254", true},
		{"100.64.0.1", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fd00::1", true},
		{"fe80::1", true},
		{"::ffff:127.0.0.1", true},
		{"93.184.216.34", false},
		{"172.32.0.1", false},
		{"8.8.8.8", false},
		{"2606:4700::1111", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.blocked, IsBlocked(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestCheckHost(t *testing.T) {
	r := mockResolver{
		"internal.example":  {"10.0.0.5"},
		"public.example":    {"93.184.216.34"},
		"rebinding.example": {"93.184.216.34", "127.0.0.1"},
		"empty.example":     {},
	}

	ip, err := checkHost(context.Background(), r, "public.example")
	require.NoError(t, err)
	assert.Equal(t, "93.184.216.34", ip.String())

	_, err = checkHost(context.Background(), r, "internal.example")
	assert.ErrorIs(t, err, ErrSSRFBlocked)

	_, err = checkHost(context.Background(), r, "rebinding.example")
	assert.ErrorIs(t, err, ErrSSRFBlocked)

	_, err = checkHost(context.Background(), r, "169.254.169.254")
	assert.ErrorIs(t, err, ErrSSRFBlocked)

	_, err = checkHost(context.Background(), r, "missing.example")
	assert.ErrorIs(t, err, ErrSSRFDNSFailed)

	_, err = checkHost(context.Background(), r, "empty.example")
	assert.ErrorIs(t, err, ErrSSRFDNSFailed)
}

func TestCheckHost_DNSTimeout(t *testing.T) {
	start := time.Now()
	_, err := checkHost(context.Background(), slowResolver{}, "slow.example")

	assert.ErrorIs(t, err, ErrSSRFDNSTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSafeTransport_BlocksLoopbackServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewSafeTransport(nil), Timeout: 2 * time.Second}
	_, err := client.Get(srv.URL)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSSRFBlocked), "got %v", err)
}

func TestSafeTransport_ResolvedPrivateHostIsBlocked(t *testing.T) {
	st := NewSafeTransport(nil)
	st.Resolver = mockResolver{"hooks.internal": {"192.168.0.7"}}
	client := &http.Client{Transport: st, Timeout: 2 * time.Second}

	_, err := client.Get("http://hooks.internal/alerts")

	assert.ErrorIs(t, err, ErrSSRFBlocked)
}

func TestCheckRedirect(t *testing.T) {
	r := mockResolver{
		"public.example":   {"93.184.216.34"},
		"metadata.example": {"169.254.169.254"},
	}
	check := CheckRedirect(2, r)

	req := func(raw string) *http.Request {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return (&http.Request{URL: u}).WithContext(context.Background())
	}

	assert.NoError(t, check(req("https://public.example/next"), nil))
	assert.ErrorIs(t, check(req("http://metadata.example/latest"), nil), ErrSSRFBlocked)
	assert.ErrorIs(t, check(req("http://127.0.0.1:8080/"), nil), ErrSSRFBlocked)
	assert.ErrorIs(t, check(req("/relative"), nil), ErrSSRFBlocked)

	via := []*http.Request{req("https://public.example/1"), req("https://public.example/2")}
	assert.ErrorIs(t, check(req("https://public.example/3"), via), ErrSSRFTooManyRedirects)
	assert.NoError(t, check(req("https://public.example/2"), via[:1]))
}

func TestNewSafeHTTPClient(t *testing.T) {
	c := NewSafeHTTPClient(3 * time.Second)

	assert.Equal(t, 3*time.Second, c.Timeout)
	require.IsType(t, &SafeTransport{}, c.Transport)
	assert.NotNil(t, c.CheckRedirect)
	assert.Nil(t, c.Transport.(*SafeTransport).Base.Proxy)
}
