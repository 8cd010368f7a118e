package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/credentials"
)

// Bind links identifier to uid, evicting any other live owner.
func (r *Resolver) Bind(ctx context.Context, uid int64, t credentials.Type, identifier string) error {
	if err := r.checkBinding(t); err != nil {
		return err
	}
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("%w: identifier is empty", common.ErrInvalidArgument)
	}
	return r.store.Add(ctx, uid, t, identifier)
}

func (r *Resolver) Unbind(ctx context.Context, uid int64, t credentials.Type) error {
	if err := r.checkBinding(t); err != nil {
		return err
	}
	return r.store.Remove(ctx, uid, t)
}

// Bindings lists every identifier type for uid, with "" where unbound.
func (r *Resolver) Bindings(ctx context.Context, uid int64) (map[credentials.Type]string, error) {
	if r.store == nil {
		return nil, ErrNoBindingStore
	}
	return r.store.GetByUID(ctx, uid)
}

// HasBindingStore reports whether binding operations are available.
func (r *Resolver) HasBindingStore() bool { return r.store != nil }

func (r *Resolver) checkBinding(t credentials.Type) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedIdentifier, string(t))
	}
	if r.store == nil {
		return ErrNoBindingStore
	}
	return nil
}
