// Package metadata maps token ids to their metadata documents.
package metadata

import (
	"strings"

	"github.com/aisthisi-art/aisthisi/pkg/types"
)

// DefaultBaseURI is the metadata location of the Aisthisi collection.
const DefaultBaseURI = "https://aisthisi.art/metadata/"

// Resolver builds URIs of the form {base}{id}.json.
type Resolver struct {
	base string
}

// NewResolver returns a resolver rooted at base. An empty base selects
// DefaultBaseURI; a missing trailing slash is added.
func NewResolver(base string) *Resolver {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultBaseURI
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Resolver{base: base}
}

// BaseURI returns the normalized base.
func (r *Resolver) BaseURI() string { return r.base }

// URI returns the metadata URI of id.
func (r *Resolver) URI(id types.TokenID) string {
	return r.base + id.String() + ".json"
}
