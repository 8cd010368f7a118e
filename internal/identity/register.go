package identity

import (
	"context"

	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
	"github.com/dmitrijs2005/ucenter-gateway/internal/ucapi"
)

// Register creates an account with primary credentials. On success the new
// account and the system account are linked as friends in both directions;
// failures of that link are logged and never returned.
func (r *Resolver) Register(ctx context.Context, in ucapi.RegisterInput) (int64, gateway.Result, error) {
	code, res, err := r.users.Register(ctx, in)
	if err != nil {
		return 0, nil, err
	}
	if code > 0 {
		r.linkSystemAccount(ctx, code)
	}
	return code, res, nil
}

func (r *Resolver) linkSystemAccount(ctx context.Context, uid int64) {
	if r.systemUID <= 0 || r.systemUID == uid {
		return
	}
	for _, pair := range [][2]int64{{uid, r.systemUID}, {r.systemUID, uid}} {
		ok, err := r.friends.Add(ctx, pair[0], pair[1], "")
		if err != nil || !ok {
			r.log.Warn(ctx, "system friend link failed", "uid", pair[0], "friend_id", pair[1], "error", err)
		}
	}
}
