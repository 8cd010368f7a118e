// Package local implements gateway.Gateway directly on the accounts
// repository. It supports user/register, user/login, user/get_user and
// user/edit with the same result shapes and codes as the remote API, and
// never signs anything.
package local

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/credentials"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
	"github.com/dmitrijs2005/ucenter-gateway/internal/logging"
	"github.com/dmitrijs2005/ucenter-gateway/internal/models"
	"github.com/dmitrijs2005/ucenter-gateway/internal/repositories/accounts"
)

// Register results.
const (
	RegisterInvalidUsername = -1
	RegisterUsernameTaken   = -3
	RegisterInvalidEmail    = -4
	RegisterEmailTaken      = -6
)

// Login results.
const (
	LoginNotFound      = -1
	LoginWrongPassword = -2
)

// Edit results.
const (
	EditNotFound      = -1
	EditWrongPassword = -2
	EditNoChange      = 0
	EditUpdated       = 1
	EditEmailTaken    = -6
)

type Option func(*Gateway)

func WithLogger(l logging.Logger) Option { return func(g *Gateway) { g.log = l } }

// WithBcryptCost sets the hashing cost for new passwords.
func WithBcryptCost(cost int) Option { return func(g *Gateway) { g.cost = cost } }

type Gateway struct {
	repo accounts.Repository
	log  logging.Logger
	cost int
}

var _ gateway.Gateway = (*Gateway)(nil)

func New(repo accounts.Repository, opts ...Option) *Gateway {
	g := &Gateway{repo: repo, log: logging.Nop(), cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Execute(ctx context.Context, op gateway.Operation, params url.Values) (gateway.Result, error) {
	if params == nil {
		params = url.Values{}
	}

	var (
		res gateway.Result
		err error
	)
	switch op {
	case gateway.OpUserRegister:
		res, err = g.register(ctx, params)
	case gateway.OpUserLogin:
		res, err = g.login(ctx, params)
	case gateway.OpUserGet:
		res, err = g.getUser(ctx, params)
	case gateway.OpUserEdit:
		res, err = g.edit(ctx, params)
	default:
		return nil, &gateway.CallError{Op: op, Err: gateway.ErrUnsupportedOperation}
	}
	if err != nil {
		g.log.Error(ctx, "local operation failed", "op", string(op), "error", err)
		return nil, &gateway.CallError{Op: op, Err: err}
	}
	return res, nil
}

func (g *Gateway) register(ctx context.Context, p url.Values) (gateway.Result, error) {
	username := strings.TrimSpace(p.Get("username"))
	email := strings.TrimSpace(p.Get("email"))

	if username == "" || len(username) > credentials.MaxUsernameLength {
		return ret(RegisterInvalidUsername), nil
	}
	if !validEmail(email) {
		return ret(RegisterInvalidEmail), nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Get("password")), g.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account, err := g.repo.Create(ctx, &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		RegIP:        p.Get("regip"),
	})
	switch {
	case errors.Is(err, accounts.ErrUsernameTaken):
		return ret(RegisterUsernameTaken), nil
	case errors.Is(err, accounts.ErrEmailTaken):
		return ret(RegisterEmailTaken), nil
	case err != nil:
		return nil, err
	}

	g.log.Info(ctx, "local account registered", "uid", account.UID)
	return ret(account.UID), nil
}

// login authenticates by username (default), uid (isuid=1) or email
// (isuid=2). Identifier-style usernames such as "phone_<id>" are first looked
// up by the matching profile column and also accept the generated password.
func (g *Gateway) login(ctx context.Context, p url.Values) (gateway.Result, error) {
	username := p.Get("username")
	password := p.Get("password")
	known := false

	if t, identifier, ok := credentials.ParseUsername(username); ok {
		account, err := orNil(g.repo.GetByProfileField(ctx, t.ProfileField(), identifier))
		if err != nil {
			return nil, err
		}
		if account != nil {
			known = true
			if checkPassword(account.PasswordHash, password) || password == credentials.GeneratedPassword(t, identifier) {
				return loginSuccess(account), nil
			}
		}
	}

	var account *models.Account
	var err error
	switch strings.TrimSpace(p.Get("isuid")) {
	case "1":
		account, err = g.find(ctx, username, true)
	case "2":
		account, err = orNil(g.repo.GetByEmail(ctx, username))
	default:
		account, err = g.find(ctx, username, false)
	}
	if err != nil {
		return nil, err
	}
	if account != nil {
		known = true
		if checkPassword(account.PasswordHash, password) {
			return loginSuccess(account), nil
		}
	}

	status := int64(LoginNotFound)
	if known {
		status = LoginWrongPassword
	}
	return gateway.Result{"status": status, "username": "", "email": ""}, nil
}

func (g *Gateway) getUser(ctx context.Context, p url.Values) (gateway.Result, error) {
	account, err := g.find(ctx, p.Get("username"), truthy(p.Get("isuid")))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return gateway.Result{"data": map[string]any{"uid": int64(0), "username": "", "email": ""}}, nil
	}
	return gateway.Result{"data": userData(account)}, nil
}

func (g *Gateway) edit(ctx context.Context, p url.Values) (gateway.Result, error) {
	account, err := g.find(ctx, p.Get("username"), truthy(p.Get("isuid")))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return ret(EditNotFound), nil
	}

	if !truthy(p.Get("ignoreoldpw")) && !checkPassword(account.PasswordHash, p.Get("oldpw")) {
		return ret(EditWrongPassword), nil
	}

	var changes models.AccountChanges
	if newpw := p.Get("newpw"); newpw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(newpw), g.cost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		h := string(hash)
		changes.PasswordHash = &h
	}
	if email := p.Get("email"); email != "" {
		changes.Email = &email
	}
	for _, field := range models.ProfileFields {
		if !p.Has(field) {
			continue
		}
		if changes.Fields == nil {
			changes.Fields = map[string]any{}
		}
		value := p.Get(field)
		if field == "is_member" {
			changes.Fields[field] = memberFlag(value)
			continue
		}
		changes.Fields[field] = value
	}

	if changes.Empty() {
		return ret(EditNoChange), nil
	}

	err = g.repo.Update(ctx, account.UID, changes)
	if errors.Is(err, accounts.ErrEmailTaken) {
		return ret(EditEmailTaken), nil
	}
	if err != nil {
		return nil, err
	}
	return ret(EditUpdated), nil
}

func (g *Gateway) find(ctx context.Context, username string, byUID bool) (*models.Account, error) {
	if !byUID {
		return orNil(g.repo.GetByUsername(ctx, username))
	}
	uid, err := strconv.ParseInt(strings.TrimSpace(username), 10, 64)
	if err != nil || uid <= 0 {
		return nil, nil
	}
	return orNil(g.repo.GetByUID(ctx, uid))
}

// orNil maps common.ErrorNotFound to a nil account.
func orNil(account *models.Account, err error) (*models.Account, error) {
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return account, err
}

func loginSuccess(a *models.Account) gateway.Result {
	return gateway.Result{
		"status":   a.UID,
		"uid":      a.UID,
		"username": a.Username,
		"email":    a.Email,
	}
}

func userData(a *models.Account) map[string]any {
	data := map[string]any{
		"uid":      a.UID,
		"username": a.Username,
		"email":    a.Email,
		"regip":    a.RegIP,
		"regdate":  a.RegDate.Unix(),
	}
	for _, field := range models.ProfileFields {
		v, _ := a.Profile.Get(field)
		data[field] = v
	}
	data["is_member"] = int64(a.Profile.IsMember)
	return data
}

func ret(n int64) gateway.Result {
	return gateway.Result{"ret": n}
}

func checkPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func validEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}

func truthy(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != "0" && !strings.EqualFold(s, "false")
}

func memberFlag(s string) int {
	if truthy(s) {
		return 1
	}
	return 0
}
