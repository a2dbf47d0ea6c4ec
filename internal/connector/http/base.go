package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nucleus/provision-core/internal/endpoint"
)

// Base is embedded by connectors that speak HTTP. It supplies ID, Kind and
// Close and a status-based handshake.
type Base struct {
	Client       *Client
	EndpointID   string
	EndpointKind endpoint.Kind
}

func NewBase(id string, kind endpoint.Kind, cfg *ClientConfig) *Base {
	return &Base{Client: NewClient(cfg), EndpointID: id, EndpointKind: kind}
}

func (b *Base) ID() string          { return b.EndpointID }
func (b *Base) Kind() endpoint.Kind { return b.EndpointKind }
func (b *Base) Close() error        { return nil }

// AliveStatuses is the set of HTTP statuses that prove the expected service
// is answering, even when the request itself is refused.
type AliveStatuses struct {
	Any2xx bool
	Codes  []int
}

func (a AliveStatuses) Contains(status int) bool {
	if a.Any2xx && status >= 200 && status < 300 {
		return true
	}
	for _, c := range a.Codes {
		if c == status {
			return true
		}
	}
	return false
}

func (a AliveStatuses) String() string {
	var parts []string
	if a.Any2xx {
		parts = append(parts, "2xx")
	}
	for _, c := range a.Codes {
		parts = append(parts, strconv.Itoa(c))
	}
	return strings.Join(parts, ", ")
}

// StatusHandshake sends req and classifies the outcome: transport failure,
// a status in alive, 401/403, or any other status. The raw status and a
// body excerpt stay in the message.
func (b *Base) StatusHandshake(ctx context.Context, req *Request, alive AliveStatuses) endpoint.ProbeResult {
	target := req.Method + " " + b.Client.resolve(&Request{Path: req.Path})

	start := time.Now()
	resp, err := b.Client.Do(ctx, req)
	elapsed := time.Since(start)

	switch {
	case resp == nil:
		return endpoint.Failed(endpoint.CodeOf(err), fmt.Sprintf("%s failed: %v", target, err), elapsed)
	case alive.Contains(resp.StatusCode):
		return endpoint.Succeeded(fmt.Sprintf("Connection successful: %s answered HTTP %d", target, resp.StatusCode), elapsed)
	}

	code := endpoint.CodeHandshakeRejected
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		code = endpoint.CodeAuthInvalid
	}
	msg := fmt.Sprintf("%s answered HTTP %d (expected %s)", target, resp.StatusCode, alive)
	if detail := strings.TrimSpace(truncate(string(resp.Body), 200)); detail != "" {
		msg += ": " + detail
	}
	return endpoint.Failed(code, msg, elapsed)
}

// SchemeFor returns "https" when tls is set, otherwise "http".
func SchemeFor(tls bool) string {
	if tls {
		return "https"
	}
	return "http"
}
