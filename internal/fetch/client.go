package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultTimeout bounds one HTTP exchange when the caller sets none.
const DefaultTimeout = 10 * time.Second

// maxRedirects caps redirect chains.
const maxRedirects = 10

// ClientOptions configures NewHTTPClient.
type ClientOptions struct {
	// Timeout is the overall client timeout. Zero uses DefaultTimeout.
	// Per-request deadlines from the context still apply.
	Timeout time.Duration

	// ProxyAddress routes connections through a SOCKS5 proxy at host:port.
	// Empty means direct connections.
	ProxyAddress string
}

// NewHTTPClient builds the client used by HTTPFetcher and the robots checker.
func NewHTTPClient(opts ClientOptions) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	transport.MaxIdleConnsPerHost = 8
	transport.ResponseHeaderTimeout = timeout

	if opts.ProxyAddress != "" {
		dialer, err := socks5Dialer(opts.ProxyAddress)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = dialer.DialContext
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}, nil
}

// socks5Dialer returns a context-aware SOCKS5 dialer for address.
func socks5Dialer(address string) (proxy.ContextDialer, error) {
	if !isValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}
	d, err := proxy.SOCKS5("tcp", address, nil, &net.Dialer{Timeout: DefaultTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return contextDialer{d}, nil
	}
	return cd, nil
}

// contextDialer adapts a proxy.Dialer without context support.
type contextDialer struct {
	proxy.Dialer
}

// DialContext dials ignoring ctx cancellation after the connection starts.
func (c contextDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Dial(network, addr)
}

// isValidProxyAddress checks for host:port with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}
