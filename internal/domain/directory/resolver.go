package directory

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Resolver maps an opaque actor reference found inside a document to a local
// user identity. References arrive in whatever shape the producing client
// used: a numeric ID, a numeric string, a document-store UUID, or an email
// address.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the local user ID for a reference, or nil when the
// reference is absent or cannot be resolved. Resolution misses are never an
// error: synced records must not fail because an audit actor could not be
// determined.
//
// Numeric and numeric-string references are taken as direct identifiers
// without a directory lookup. Anything else is matched against the uid and
// email fields.
func (r *Resolver) Resolve(ctx context.Context, ref interface{}) *int64 {
	switch v := ref.(type) {
	case nil:
		return nil
	case int:
		id := int64(v)
		return &id
	case int64:
		id := v
		return &id
	case float64:
		if v != math.Trunc(v) {
			return nil
		}
		id := int64(v)
		return &id
	case json.Number:
		if id, err := v.Int64(); err == nil {
			return &id
		}
		return nil
	case string:
		return r.resolveString(ctx, strings.TrimSpace(v))
	default:
		return nil
	}
}

func (r *Resolver) resolveString(ctx context.Context, ref string) *int64 {
	if ref == "" {
		return nil
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return &id
	}

	user, err := r.repo.FindByReference(ctx, ref)
	if err != nil {
		return nil
	}
	return &user.ID
}
