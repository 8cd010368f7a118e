package ucapi

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
)

type FriendAPI struct {
	gw gateway.Gateway
}

func NewFriendAPI(gw gateway.Gateway) *FriendAPI {
	return &FriendAPI{gw: gw}
}

// Add makes friendID a friend of uid. It reports whether the authority
// answered ret=1.
func (f *FriendAPI) Add(ctx context.Context, uid, friendID int64, comment string) (bool, error) {
	res, err := f.gw.Execute(ctx, gateway.OpFriendAdd, url.Values{
		"uid":      {strconv.FormatInt(uid, 10)},
		"friendid": {strconv.FormatInt(friendID, 10)},
		"comment":  {comment},
	})
	if err != nil {
		return false, err
	}
	return res.IntOr("ret", 0) == 1, nil
}

func (f *FriendAPI) Delete(ctx context.Context, uid, friendID int64) (bool, error) {
	res, err := f.gw.Execute(ctx, gateway.OpFriendDelete, url.Values{
		"uid":      {strconv.FormatInt(uid, 10)},
		"friendid": {strconv.FormatInt(friendID, 10)},
	})
	if err != nil {
		return false, err
	}
	return res.IntOr("ret", 0) == 1, nil
}

// Call invokes any other friend/<action> operation.
func (f *FriendAPI) Call(ctx context.Context, action string, params url.Values) (gateway.Result, error) {
	return f.gw.Execute(ctx, gateway.Operation("friend/"+action), params)
}
