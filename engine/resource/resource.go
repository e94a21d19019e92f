package resource

import (
	"time"

	"github.com/conmonhq/conmon/engine/core"
)

// Resource is a typed projection of one external entity (a repository,
// a bucket, an instance). TypeName carries the fully-qualified compiled
// type name; checks bind to it by string comparison, never reflection.
type Resource struct {
	ID              string       `json:"id"`
	SourceConnector string       `json:"source_connector"`
	TypeName        string       `json:"type_name"`
	Data            core.JSONMap `json:"data"`
}

// Value returns the evaluation view of the resource: provider fields
// plus the base fields every compiled type carries.
func (r *Resource) Value() map[string]any {
	out := make(map[string]any, len(r.Data)+2)
	for k, v := range r.Data {
		out[k] = v
	}
	out["id"] = r.ID
	out["source_connector"] = r.SourceConnector
	return out
}

// Collection is the batch of resources returned by one connector fetch.
type Collection struct {
	SourceConnector string      `json:"source_connector"`
	Resources       []*Resource `json:"resources"`
	TotalCount      int         `json:"total_count"`
	FetchedAt       time.Time   `json:"fetched_at"`
}

func NewCollection(sourceConnector string, resources []*Resource) *Collection {
	return &Collection{
		SourceConnector: sourceConnector,
		Resources:       resources,
		TotalCount:      len(resources),
		FetchedAt:       time.Now().UTC(),
	}
}

// OfType filters the collection down to resources of one compiled type.
func (c *Collection) OfType(typeName string) []*Resource {
	var out []*Resource
	for _, r := range c.Resources {
		if r.TypeName == typeName {
			out = append(out, r)
		}
	}
	return out
}
