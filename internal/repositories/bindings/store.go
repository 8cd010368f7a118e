// Package bindings stores links from third-party identifiers to account ids.
//
// Among live rows a (type, identifier) pair has at most one owner. Add evicts
// the previous owner instead of failing, and Remove is a soft delete so the
// history of a binding stays auditable.
package bindings

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/credentials"
)

// Store is the identity binding store.
type Store interface {
	// Add binds identifier to uid, evicting any other live owner and
	// reviving a previously removed row for (uid, t).
	Add(ctx context.Context, uid int64, t credentials.Type, identifier string) error
	// Remove soft-deletes the binding for (uid, t). Removing an absent
	// binding is not an error.
	Remove(ctx context.Context, uid int64, t credentials.Type) error
	// GetByUID returns every known type, mapped to "" when unbound.
	GetByUID(ctx context.Context, uid int64) (map[credentials.Type]string, error)
	// FindUID returns the live owner, or common.ErrorNotFound.
	FindUID(ctx context.Context, t credentials.Type, identifier string) (int64, error)
}

func validate(uid int64, t credentials.Type) error {
	if uid <= 0 {
		return fmt.Errorf("%w: uid must be positive", common.ErrInvalidArgument)
	}
	if !t.Valid() {
		return fmt.Errorf("%w: %v", common.ErrInvalidArgument, credentials.ErrUnknownType(t))
	}
	return nil
}

func validateIdentifier(t credentials.Type, identifier string) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %v", common.ErrInvalidArgument, credentials.ErrUnknownType(t))
	}
	if identifier == "" {
		return fmt.Errorf("%w: identifier is empty", common.ErrInvalidArgument)
	}
	return nil
}

func emptyMapping() map[credentials.Type]string {
	m := make(map[credentials.Type]string, len(credentials.Types))
	for _, t := range credentials.Types {
		m[t] = ""
	}
	return m
}
