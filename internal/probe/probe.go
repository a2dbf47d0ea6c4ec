// Package probe implements coarse host and port reachability checks.
//
// Checks dial TCP directly with a short deadline. A refused connection proves
// the host answered; a silent one is interpreted according to the Mode.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nucleus/provision-core/internal/endpoint"
)

// Mode controls how silent (timed out) probes are interpreted.
type Mode string

const (
	// Lenient reports a silent target as reachable and leaves the verdict
	// to the handshake that follows.
	Lenient Mode = "lenient"
	// Strict reports a silent target as unreachable.
	Strict Mode = "strict"
)

// ParseMode maps a configuration string to a Mode, defaulting to Lenient.
func ParseMode(raw string) Mode {
	if strings.EqualFold(strings.TrimSpace(raw), string(Strict)) {
		return Strict
	}
	return Lenient
}

const (
	MinTimeout     = 2 * time.Second
	MaxTimeout     = 5 * time.Second
	DefaultTimeout = 3 * time.Second
)

// ContextDialer opens network connections.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Resolver resolves host names.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Prober runs reachability checks. It holds no per-call state and is safe for
// concurrent use.
type Prober struct {
	mode        Mode
	hostTimeout time.Duration
	portTimeout time.Duration
	probePorts  []int
	dialer      ContextDialer
	resolver    Resolver
	logger      *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithMode sets strict or lenient interpretation.
func WithMode(m Mode) Option { return func(p *Prober) { p.mode = m } }

// WithTimeouts sets the host and port probe timeouts; values are clamped to
// [MinTimeout, MaxTimeout].
func WithTimeouts(host, port time.Duration) Option {
	return func(p *Prober) {
		p.hostTimeout = host
		p.portTimeout = port
	}
}

// WithProbePorts sets the ports PingHost dials to detect a live host.
func WithProbePorts(ports ...int) Option {
	return func(p *Prober) { p.probePorts = append([]int(nil), ports...) }
}

// WithDialer replaces the TCP dialer.
func WithDialer(d ContextDialer) Option { return func(p *Prober) { p.dialer = d } }

// WithResolver replaces the DNS resolver.
func WithResolver(r Resolver) Option { return func(p *Prober) { p.resolver = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(p *Prober) { p.logger = l } }

// New creates a Prober with lenient mode, 3s timeouts and probe ports 443, 80.
func New(opts ...Option) *Prober {
	p := &Prober{
		mode:        Lenient,
		hostTimeout: DefaultTimeout,
		portTimeout: DefaultTimeout,
		probePorts:  []int{443, 80},
		dialer:      &net.Dialer{},
		resolver:    net.DefaultResolver,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.hostTimeout = clampTimeout(p.hostTimeout)
	p.portTimeout = clampTimeout(p.portTimeout)
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Mode returns the configured interpretation mode.
func (p *Prober) Mode() Mode { return p.mode }

// PingHost checks that host resolves and answers on at least one probe port.
// Loopback hosts succeed immediately.
func (p *Prober) PingHost(ctx context.Context, host string) endpoint.ProbeResult {
	host = normalizeHost(host)
	if host == "" {
		return endpoint.Failed(endpoint.CodeConfigInvalid, "Host is required", -1)
	}
	if IsLoopback(host) {
		return endpoint.Succeeded(fmt.Sprintf("Host %s is reachable (loopback)", host), 0)
	}

	ctx, cancel := context.WithTimeout(ctx, p.hostTimeout)
	defer cancel()
	start := time.Now()

	addrs, err := p.resolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		if err == nil {
			err = errors.New("no addresses")
		}
		return endpoint.Failed(endpoint.CodeHostUnresolved,
			fmt.Sprintf("Host %s could not be resolved: %v", host, err), time.Since(start))
	}
	if len(p.probePorts) == 0 {
		return endpoint.Succeeded(fmt.Sprintf("Host %s resolved to %s", host, addrs[0]), time.Since(start))
	}

	perDial := p.hostTimeout / time.Duration(len(p.probePorts))
	var lastErr error
	for _, port := range p.probePorts {
		dialCtx, dialCancel := context.WithTimeout(ctx, perDial)
		err := p.dial(dialCtx, host, port)
		dialCancel()
		if err == nil || isRefused(err) {
			return endpoint.Succeeded(fmt.Sprintf("Host %s is reachable", host), time.Since(start))
		}
		p.logger.Debug("host probe port silent", "host", host, "port", port, "error", err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if p.mode == Lenient {
		return endpoint.Succeeded(
			fmt.Sprintf("Host %s resolved but did not answer on probe ports; continuing", host), time.Since(start))
	}
	return endpoint.Failed(endpoint.CodeHostUnreachable,
		fmt.Sprintf("Host %s is unreachable: %v", host, lastErr), time.Since(start))
}

// CheckPort dials host:port once. An accepted connection is open, a refused
// one is closed, and a timeout is interpreted according to the Mode.
func (p *Prober) CheckPort(ctx context.Context, host string, port int) endpoint.ProbeResult {
	host = normalizeHost(host)
	if host == "" {
		return endpoint.Failed(endpoint.CodeConfigInvalid, "Host is required", -1)
	}
	if port < 1 || port > 65535 {
		return endpoint.Failed(endpoint.CodeConfigInvalid, fmt.Sprintf("Port %d is out of range", port), -1)
	}

	ctx, cancel := context.WithTimeout(ctx, p.portTimeout)
	defer cancel()
	start := time.Now()

	err := p.dial(ctx, host, port)
	elapsed := time.Since(start)
	switch {
	case err == nil:
		return endpoint.Succeeded(fmt.Sprintf("Port %d on %s is open", port, host), elapsed)
	case isRefused(err):
		return endpoint.Failed(endpoint.CodePortClosed,
			fmt.Sprintf("Port %d on %s refused the connection", port, host), elapsed)
	case isTimeout(err):
		if p.mode == Lenient {
			return endpoint.Succeeded(
				fmt.Sprintf("Port %d on %s did not answer within %s; treating as reachable", port, host, p.portTimeout), elapsed)
		}
		return endpoint.Failed(endpoint.CodeTimeout,
			fmt.Sprintf("Port %d on %s did not answer within %s", port, host, p.portTimeout), elapsed)
	}
	return endpoint.Failed(endpoint.CodeOf(err), fmt.Sprintf("Port %d on %s: %v", port, host, err), elapsed)
}

func (p *Prober) dial(ctx context.Context, host string, port int) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return conn.Close()
}

// IsLoopback reports whether host names the local machine.
func IsLoopback(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(normalizeHost(host)), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

func clampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	if d < MinTimeout {
		return MinTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

func isRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
