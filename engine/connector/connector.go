// Package connector declares the collaborator interface the kernel
// consumes to obtain live configuration data. Provider SDK calls live
// behind implementations of Service; the kernel only sees the typed
// resource collection they return.
package connector

import (
	"context"
	"time"

	"github.com/conmonhq/conmon/engine/core"
	"github.com/conmonhq/conmon/engine/resource"
)

// InfoData carries provider-side metadata returned alongside a fetch:
// rate limits, the authenticated principal, timestamps. Callers merge
// it into connections.metadata.info.
type InfoData struct {
	Principal   string       `json:"principal,omitempty"`
	RateLimit   int          `json:"rate_limit,omitempty"`
	RateRemain  int          `json:"rate_remaining,omitempty"`
	FetchedAt   time.Time    `json:"fetched_at"`
	ProviderRaw core.JSONMap `json:"provider_raw,omitempty"`
}

// AsJSONMap flattens the info for storage in connection metadata.
func (i *InfoData) AsJSONMap() core.JSONMap {
	out := core.JSONMap{
		"principal":      i.Principal,
		"rate_limit":     i.RateLimit,
		"rate_remaining": i.RateRemain,
		"fetched_at":     i.FetchedAt.UTC().Format(time.RFC3339),
	}
	for k, v := range i.ProviderRaw {
		out[k] = v
	}
	return out
}

// Service fetches live configuration data from one provider.
type Service interface {
	Fetch(ctx context.Context, credentials map[string]string) (*InfoData, *resource.Collection, error)
}
