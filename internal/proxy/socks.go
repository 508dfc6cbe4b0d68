// Package proxy routes cloud traffic through an optional SOCKS5 proxy.
package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// NewDialer returns a SOCKS5 dialer for socksAddr, or a direct dialer when
// socksAddr is empty.
func NewDialer(socksAddr string) (proxy.ContextDialer, error) {
	if socksAddr == "" {
		return &net.Dialer{Timeout: 10 * time.Second}, nil
	}

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", socksAddr, err)
	}
	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer for %s does not support contexts", socksAddr)
	}
	return cd, nil
}

// NewClient builds an HTTP client whose connections go through NewDialer.
func NewClient(socksAddr string, timeout time.Duration) (*http.Client, error) {
	dialer, err := NewDialer(socksAddr)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, network, addr)
	}
	if socksAddr != "" {
		transport.Proxy = nil
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
