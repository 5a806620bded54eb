package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"

	proxycfg "github.com/jonesrussell/sitewatch/internal/config/proxy"
)

// NewHTTPTransport builds the *http.Transport a component should use to
// reach a monitored site: routed through the Tor/SOCKS proxy when proxyCfg
// enables it, or a bare transport otherwise. The Fetcher and the
// RobotsChecker share this so robots.txt lookups take the same network
// path as the page fetches they gate, rather than leaking the site's real
// address when Tor mode is on.
func NewHTTPTransport(proxyCfg *proxycfg.Config) (*http.Transport, *torController, error) {
	transport := &http.Transport{}
	if !proxyCfg.Enabled() {
		return transport, nil, nil
	}

	dial, err := newProxyTransport(proxyCfg)
	if err != nil {
		return nil, nil, err
	}
	transport.DialContext = dial

	var torCtl *torController
	if proxyCfg.RotateEvery > 0 {
		torCtl = newTorController(proxyCfg)
	}
	return transport, torCtl, nil
}

// newProxyTransport builds an http.Transport-compatible DialContext that
// routes connections through a local SOCKS5 endpoint, for the Tor proxy
// mode described in spec.md §4.1.
func newProxyTransport(cfg *proxycfg.Config) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	dialer, err := proxy.SOCKS5("tcp", cfg.SOCKSAddr, nil, &net.Dialer{Timeout: cfg.DialTimeout})
	if err != nil {
		return nil, fmt.Errorf("proxy: build socks5 dialer: %w", err)
	}

	direct := &net.Dialer{Timeout: cfg.DialTimeout}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.Dial(network, addr)
		if err != nil && cfg.AllowDirectFallback {
			return direct.DialContext(ctx, network, addr)
		}
		return conn, err
	}, nil
}

// torController requests a new circuit from a Tor control port, used for
// identity rotation every N successful fetches.
type torController struct {
	addr     string
	password string
	timeout  time.Duration
}

func newTorController(cfg *proxycfg.Config) *torController {
	return &torController{
		addr:     cfg.ControlAddr,
		password: cfg.ControlPassword,
		timeout:  cfg.DialTimeout,
	}
}

// Rotate sends AUTHENTICATE and SIGNAL NEWNYM to the control port.
func (t *torController) Rotate(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("tor control: dial: %w", err)
	}
	defer conn.Close()

	if t.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(t.timeout))
	}

	if _, err := fmt.Fprintf(conn, "AUTHENTICATE \"%s\"\r\n", t.password); err != nil {
		return fmt.Errorf("tor control: authenticate: %w", err)
	}
	if _, err := conn.Read(make([]byte, 512)); err != nil {
		return fmt.Errorf("tor control: read auth reply: %w", err)
	}

	if _, err := fmt.Fprint(conn, "SIGNAL NEWNYM\r\n"); err != nil {
		return fmt.Errorf("tor control: signal newnym: %w", err)
	}
	if _, err := conn.Read(make([]byte, 512)); err != nil {
		return fmt.Errorf("tor control: read signal reply: %w", err)
	}

	return nil
}
