// Package ucapi provides typed user and friend operations on top of a
// gateway.Gateway. Every method issues exactly one Execute call.
package ucapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
	"github.com/dmitrijs2005/ucenter-gateway/internal/models"
)

type UserAPI struct {
	gw gateway.Gateway
}

func NewUserAPI(gw gateway.Gateway) *UserAPI {
	return &UserAPI{gw: gw}
}

type RegisterInput struct {
	Username   string
	Password   string
	Email      string
	QuestionID int
	Answer     string
	RegIP      string
}

// Register creates an account. A positive code is the new uid; non-positive
// codes are the authority's rejection reasons. The decoded response is
// returned alongside for diagnostics.
func (u *UserAPI) Register(ctx context.Context, in RegisterInput) (int64, gateway.Result, error) {
	res, err := u.gw.Execute(ctx, gateway.OpUserRegister, url.Values{
		"username":   {in.Username},
		"password":   {in.Password},
		"email":      {in.Email},
		"questionid": {strconv.Itoa(in.QuestionID)},
		"answer":     {in.Answer},
		"regip":      {in.RegIP},
	})
	if err != nil {
		return 0, nil, err
	}
	return res.IntOr("ret", 0), res, nil
}

type LoginInput struct {
	Username string
	Password string
	// ByUID is the isuid flag: 1 looks the user up by uid, 2 by email.
	ByUID      int
	CheckQues  bool
	QuestionID int
	Answer     string
}

// LoginResult is a normalized login response. Status is the uid on success
// and a negative code otherwise.
type LoginResult struct {
	Status   int64
	UID      int64
	Username string
	Email    string
	Response gateway.Result
}

func (u *UserAPI) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	checkques := "0"
	if in.CheckQues {
		checkques = "1"
	}
	res, err := u.gw.Execute(ctx, gateway.OpUserLogin, url.Values{
		"username":   {in.Username},
		"password":   {in.Password},
		"isuid":      {strconv.Itoa(in.ByUID)},
		"checkques":  {checkques},
		"questionid": {strconv.Itoa(in.QuestionID)},
		"answer":     {in.Answer},
	})
	if err != nil {
		return nil, err
	}
	return NormalizeLogin(res), nil
}

// NormalizeLogin accepts both {"data": {...}} and flat login responses. A
// uid reported without a status is taken as the status.
func NormalizeLogin(res gateway.Result) *LoginResult {
	data := res
	if inner, ok := res.Map("data"); ok {
		data = inner
	}
	status, ok := data.Int("status")
	if !ok {
		status = data.IntOr("uid", 0)
	}
	lr := &LoginResult{
		Status:   status,
		Username: data.String("username"),
		Email:    data.String("email"),
		Response: data,
	}
	if status > 0 {
		lr.UID = status
	}
	return lr
}

// GetUser fetches an account by username, or by uid when byUID is set. An
// absent account yields a result whose uid is 0.
func (u *UserAPI) GetUser(ctx context.Context, username string, byUID bool) (gateway.Result, error) {
	res, err := u.gw.Execute(ctx, gateway.OpUserGet, url.Values{
		"username": {username},
		"isuid":    {flag(byUID)},
	})
	if err != nil {
		return nil, err
	}
	if data, ok := res.Map("data"); ok {
		return data, nil
	}
	return res, nil
}

func (u *UserAPI) GetUserByUID(ctx context.Context, uid int64) (gateway.Result, error) {
	return u.GetUser(ctx, strconv.FormatInt(uid, 10), true)
}

type EditInput struct {
	Username          string
	ByUID             bool
	OldPassword       string
	NewPassword       string
	Email             string
	IgnoreOldPassword bool
	QuestionID        int
	Answer            string
	// Profile holds extended fields to write. Unknown names are dropped.
	Profile map[string]string
}

// Edit returns 1 when the account changed, 0 when nothing changed and a
// negative code on rejection.
func (u *UserAPI) Edit(ctx context.Context, in EditInput) (int64, error) {
	params := url.Values{
		"username":    {in.Username},
		"isuid":       {flag(in.ByUID)},
		"oldpw":       {in.OldPassword},
		"newpw":       {in.NewPassword},
		"email":       {in.Email},
		"ignoreoldpw": {flag(in.IgnoreOldPassword)},
		"questionid":  {strconv.Itoa(in.QuestionID)},
		"answer":      {in.Answer},
	}
	for _, field := range models.ProfileFields {
		if v, ok := in.Profile[field]; ok {
			params.Set(field, v)
		}
	}
	res, err := u.gw.Execute(ctx, gateway.OpUserEdit, params)
	if err != nil {
		return 0, err
	}
	return res.IntOr("ret", 0), nil
}

// UpdateProfile writes extended fields only, skipping the old password check.
func (u *UserAPI) UpdateProfile(ctx context.Context, username string, fields map[string]string, byUID bool) (int64, error) {
	return u.Edit(ctx, EditInput{
		Username:          username,
		ByUID:             byUID,
		IgnoreOldPassword: true,
		Profile:           fields,
	})
}

func (u *UserAPI) SetPhone(ctx context.Context, username, phone string, byUID bool) (int64, error) {
	return u.UpdateProfile(ctx, username, map[string]string{"phone": phone}, byUID)
}

// SetAvatar records an avatar URL. Uploading is up to the caller.
func (u *UserAPI) SetAvatar(ctx context.Context, username, avatarURL string, byUID bool) (int64, error) {
	return u.UpdateProfile(ctx, username, map[string]string{"avatar": avatarURL}, byUID)
}

func (u *UserAPI) SetNickname(ctx context.Context, username, nickname string, byUID bool) (int64, error) {
	return u.UpdateProfile(ctx, username, map[string]string{"nickname": nickname}, byUID)
}

func (u *UserAPI) SetWechatOpenID(ctx context.Context, username, openID string, byUID bool) (int64, error) {
	return u.UpdateProfile(ctx, username, map[string]string{"wechat_openid": openID}, byUID)
}

func (u *UserAPI) SetWechatUnionID(ctx context.Context, username, unionID string, byUID bool) (int64, error) {
	return u.UpdateProfile(ctx, username, map[string]string{"wechat_unionid": unionID}, byUID)
}

// Delete removes one or more accounts on the authority.
func (u *UserAPI) Delete(ctx context.Context, uids ...int64) (int64, error) {
	params := url.Values{}
	if len(uids) == 1 {
		params.Set("uid", strconv.FormatInt(uids[0], 10))
	} else {
		for i, uid := range uids {
			params.Set(fmt.Sprintf("uid[%d]", i), strconv.FormatInt(uid, 10))
		}
	}
	res, err := u.gw.Execute(ctx, gateway.OpUserDelete, params)
	if err != nil {
		return 0, err
	}
	return res.IntOr("ret", 0), nil
}

// SynLogin returns the HTML snippet that logs uid into sibling applications.
func (u *UserAPI) SynLogin(ctx context.Context, uid int64) (string, error) {
	return u.raw(ctx, gateway.OpSynLogin, url.Values{"uid": {strconv.FormatInt(uid, 10)}})
}

func (u *UserAPI) SynLogout(ctx context.Context) (string, error) {
	return u.raw(ctx, gateway.OpSynLogout, url.Values{})
}

// CheckEmail returns 1 when email is acceptable, or -4/-5/-6.
func (u *UserAPI) CheckEmail(ctx context.Context, email string) (int64, error) {
	res, err := u.gw.Execute(ctx, gateway.OpCheckEmail, url.Values{"email": {email}})
	if err != nil {
		return 0, err
	}
	return res.IntOr("ret", 0), nil
}

// CheckUsername returns 1 when username is acceptable, or -1/-2/-3.
func (u *UserAPI) CheckUsername(ctx context.Context, username string) (int64, error) {
	res, err := u.gw.Execute(ctx, gateway.OpCheckName, url.Values{"username": {username}})
	if err != nil {
		return 0, err
	}
	return res.IntOr("ret", 0), nil
}

func (u *UserAPI) raw(ctx context.Context, op gateway.Operation, params url.Values) (string, error) {
	rg, ok := u.gw.(gateway.RawGateway)
	if !ok {
		return "", &gateway.CallError{Op: op, Err: gateway.ErrUnsupportedOperation}
	}
	return rg.ExecuteRaw(ctx, op, params)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
