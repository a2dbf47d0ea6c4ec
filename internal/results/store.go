// Package results keeps the latest ProbeResult per field for a short display
// window. A newer result always replaces an older one, and an expiry only
// ever removes the result it was set for.
package results

import (
	"context"
	"time"

	"github.com/nucleus/provision-core/internal/endpoint"
)

// DefaultTTL is the display window for a stored result.
const DefaultTTL = 10 * time.Second

// Store holds field results keyed by backend kind and field name.
type Store interface {
	Put(ctx context.Context, kind endpoint.Kind, field string, res endpoint.ProbeResult) error
	// Get returns nil when no unexpired result exists.
	Get(ctx context.Context, kind endpoint.Kind, field string) (*endpoint.ProbeResult, error)
	Clear(ctx context.Context, kind endpoint.Kind, field string) error
}

// Key is the composite storage key for a field.
func Key(kind endpoint.Kind, field string) string {
	return string(kind) + "." + field
}
