// Package gateway defines the single-operation interface every identity
// backend implements, together with the result and error types shared by
// the remote and local variants.
package gateway

import (
	"context"
	"net/url"
)

// Operation names a UCenter API call, such as "user/login".
type Operation string

const (
	OpToken        Operation = "token"
	OpUserRegister Operation = "user/register"
	OpUserLogin    Operation = "user/login"
	OpUserGet      Operation = "user/get_user"
	OpUserEdit     Operation = "user/edit"
	OpUserDelete   Operation = "user/delete"
	OpSynLogin     Operation = "user/synlogin"
	OpSynLogout    Operation = "user/synlogout"
	OpCheckEmail   Operation = "user/check_email"
	OpCheckName    Operation = "user/check_username"
	OpFriendAdd    Operation = "friend/add"
	OpFriendDelete Operation = "friend/delete"
)

// Gateway executes one named identity operation.
type Gateway interface {
	Execute(ctx context.Context, op Operation, params url.Values) (Result, error)
}

// RawGateway is implemented by backends that can return an undecoded body,
// needed for operations that answer with HTML.
type RawGateway interface {
	ExecuteRaw(ctx context.Context, op Operation, params url.Values) (string, error)
}
