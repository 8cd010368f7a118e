// Package identity resolves callers to accounts. It handles primary
// username/password login and identifier login (phone, WeChat, Weibo, QQ)
// with binding-first lookup and deterministic auto-provisioning.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/credentials"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
	"github.com/dmitrijs2005/ucenter-gateway/internal/logging"
	"github.com/dmitrijs2005/ucenter-gateway/internal/metrics"
	"github.com/dmitrijs2005/ucenter-gateway/internal/repositories/bindings"
	"github.com/dmitrijs2005/ucenter-gateway/internal/ucapi"
)

// TokenIssuer mints a session token for an authenticated account.
type TokenIssuer interface {
	IssueFor(uid int64, username string) (string, error)
}

type Resolver struct {
	users     *ucapi.UserAPI
	friends   *ucapi.FriendAPI
	store     bindings.Store
	issuer    TokenIssuer
	domain    string
	systemUID int64
	log       logging.Logger
	metrics   *metrics.Metrics
}

type Option func(*Resolver)

// WithBindingStore enables binding-first identifier login.
func WithBindingStore(s bindings.Store) Option { return func(r *Resolver) { r.store = s } }

// WithIssuer attaches a session token to every successful outcome.
func WithIssuer(i TokenIssuer) Option { return func(r *Resolver) { r.issuer = i } }

func WithEmailDomain(domain string) Option { return func(r *Resolver) { r.domain = domain } }

// WithSystemUID sets the account every new registration is linked to. Zero
// disables the link.
func WithSystemUID(uid int64) Option { return func(r *Resolver) { r.systemUID = uid } }

func WithLogger(l logging.Logger) Option { return func(r *Resolver) { r.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(r *Resolver) { r.metrics = m } }

func New(gw gateway.Gateway, opts ...Option) *Resolver {
	r := &Resolver{
		users:   ucapi.NewUserAPI(gw),
		friends: ucapi.NewFriendAPI(gw),
		domain:  credentials.DefaultEmailDomain,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Users exposes the typed user API the resolver drives.
func (r *Resolver) Users() *ucapi.UserAPI { return r.users }

type LoginOptions struct {
	// ByUID is passed as isuid: 1 treats username as a uid, 2 as an email.
	ByUID      int
	QuestionID int
	Answer     string
}

// Login authenticates with a username (or uid/email) and password. It makes
// a single user/login call and returns the outcome the status encodes.
func (r *Resolver) Login(ctx context.Context, username, password string, opts LoginOptions) (*Outcome, error) {
	lr, err := r.users.Login(ctx, ucapi.LoginInput{
		Username:   username,
		Password:   password,
		ByUID:      opts.ByUID,
		CheckQues:  opts.QuestionID > 0,
		QuestionID: opts.QuestionID,
		Answer:     opts.Answer,
	})
	if err != nil {
		return nil, err
	}

	out := outcomeOf(lr)
	if out.Success() {
		if err := r.attachToken(out); err != nil {
			return nil, err
		}
	}
	r.metrics.IncLoginOutcome("password", string(out.Kind))
	return out, nil
}

// LoginWithIdentifier resolves a third-party identifier to an account. A
// live binding short-circuits to that account without any login call.
// Otherwise the derived credentials are tried, and an unknown identifier is
// registered, bound and logged in.
func (r *Resolver) LoginWithIdentifier(ctx context.Context, t credentials.Type, identifier string) (*Outcome, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIdentifier, string(t))
	}
	if strings.TrimSpace(identifier) == "" {
		return nil, fmt.Errorf("%w: identifier is empty", common.ErrInvalidArgument)
	}
	log := r.log.With("type", string(t))

	out, err := r.fromBinding(ctx, t, identifier)
	if err != nil {
		return nil, err
	}
	if out != nil {
		log.Debug(ctx, "identifier resolved by binding", "uid", out.UID)
		return r.finishIdentifier(t, out)
	}

	bundle := credentials.Derive(t, identifier, r.domain)
	lr, err := r.users.Login(ctx, ucapi.LoginInput{Username: bundle.Username, Password: bundle.Password})
	if err != nil {
		return nil, err
	}
	out = outcomeOf(lr)

	switch out.Kind {
	case KindSuccess:
		if err := r.bind(ctx, out.UID, t, identifier); err != nil {
			return nil, err
		}
		return r.finishIdentifier(t, out)
	case KindNotFound:
		return r.provision(ctx, t, identifier, bundle)
	case KindWrongPassword:
		out.Kind = KindConflict
	}
	log.Info(ctx, "identifier login refused", "status", out.Status)
	r.metrics.IncLoginOutcome(string(t), string(out.Kind))
	return out, nil
}

// fromBinding returns the bound account, or nil when there is no store, no
// live binding, or the bound uid no longer exists.
func (r *Resolver) fromBinding(ctx context.Context, t credentials.Type, identifier string) (*Outcome, error) {
	if r.store == nil {
		return nil, nil
	}
	uid, err := r.store.FindUID(ctx, t, identifier)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find binding: %w", err)
	}

	user, err := r.users.GetUserByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	found := user.IntOr("uid", 0)
	if found <= 0 {
		r.log.Warn(ctx, "binding points at missing account", "type", string(t), "uid", uid)
		return nil, nil
	}
	return &Outcome{
		Kind:     KindSuccess,
		Status:   found,
		UID:      found,
		Username: user.String("username"),
		Email:    user.String("email"),
		Response: user,
	}, nil
}

// provision registers the derived account, fills in its email and profile
// field, binds it and logs in again. A rejected registration is terminal.
func (r *Resolver) provision(ctx context.Context, t credentials.Type, identifier string, bundle credentials.Bundle) (*Outcome, error) {
	code, res, err := r.users.Register(ctx, ucapi.RegisterInput{
		Username: bundle.Username,
		Password: bundle.Password,
		Email:    bundle.Email,
	})
	if err != nil {
		r.metrics.IncAutoRegistration(string(t), "error")
		return nil, err
	}
	if code <= 0 {
		r.metrics.IncAutoRegistration(string(t), "rejected")
		r.log.Warn(ctx, "auto-registration rejected", "type", string(t), "code", code)
		return nil, &RegistrationError{Code: code, Response: res}
	}
	r.metrics.IncAutoRegistration(string(t), "created")
	r.log.Info(ctx, "account auto-registered", "type", string(t), "uid", code)

	uid := strconv.FormatInt(code, 10)
	user, err := r.users.GetUser(ctx, uid, true)
	if err != nil {
		return nil, err
	}
	if user.String("email") == "" {
		ret, err := r.users.Edit(ctx, ucapi.EditInput{
			Username: uid, ByUID: true, Email: bundle.Email, IgnoreOldPassword: true,
		})
		if err != nil {
			return nil, err
		}
		if ret < 0 {
			r.log.Warn(ctx, "email backfill refused", "uid", code, "code", ret)
		}
	}

	ret, err := r.users.UpdateProfile(ctx, uid, map[string]string{t.ProfileField(): identifier}, true)
	if err != nil {
		return nil, err
	}
	if ret < 0 {
		r.log.Warn(ctx, "profile field update refused", "uid", code, "field", t.ProfileField(), "code", ret)
	}

	if err := r.bind(ctx, code, t, identifier); err != nil {
		return nil, err
	}

	lr, err := r.users.Login(ctx, ucapi.LoginInput{Username: bundle.Username, Password: bundle.Password})
	if err != nil {
		return nil, err
	}
	return r.finishIdentifier(t, outcomeOf(lr))
}

func (r *Resolver) finishIdentifier(t credentials.Type, out *Outcome) (*Outcome, error) {
	if out.Success() {
		if err := r.attachToken(out); err != nil {
			return nil, err
		}
	}
	r.metrics.IncLoginOutcome(string(t), string(out.Kind))
	return out, nil
}

func (r *Resolver) bind(ctx context.Context, uid int64, t credentials.Type, identifier string) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.Add(ctx, uid, t, identifier); err != nil {
		return fmt.Errorf("write binding: %w", err)
	}
	return nil
}

func (r *Resolver) attachToken(out *Outcome) error {
	if r.issuer == nil {
		return nil
	}
	tok, err := r.issuer.IssueFor(out.UID, out.Username)
	if err != nil {
		return err
	}
	out.AccessToken = tok
	return nil
}
