// Package cli implements an interactive shell for exercising the resolver,
// the session issuer and the remote bearer token against a live backend.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/credentials"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway/remote"
	"github.com/dmitrijs2005/ucenter-gateway/internal/identity"
	"github.com/dmitrijs2005/ucenter-gateway/internal/session"
	"github.com/dmitrijs2005/ucenter-gateway/internal/ucapi"
)

var errUsage = errors.New("usage")

type App struct {
	resolver *identity.Resolver
	issuer   *session.Issuer
	remote   *remote.Gateway

	reader *bufio.Reader
	out    io.Writer

	// lastToken is the session token from the most recent successful login.
	lastToken string
}

// NewApp builds the shell. remote may be nil in local mode.
func NewApp(resolver *identity.Resolver, issuer *session.Issuer, rg *remote.Gateway, in io.Reader, out io.Writer) *App {
	return &App{
		resolver: resolver,
		issuer:   issuer,
		remote:   rg,
		reader:   bufio.NewReader(in),
		out:      out,
	}
}

func (a *App) status() string {
	if a.lastToken == "" {
		return ""
	}
	return "(session)"
}

func (a *App) Help(context.Context) error {
	fmt.Fprintln(a.out, "Available commands: token [force], login, identifier, register, verify [token], bindings <uid>, help, exit")
	return nil
}

// Token prints the current bearer token expiry, refreshing when asked.
func (a *App) Token(ctx context.Context, args []string) error {
	if a.remote == nil {
		fmt.Fprintln(a.out, "bearer tokens are only used in remote mode")
		return nil
	}
	force := len(args) > 0 && args[0] == "force"
	tok, err := a.remote.Token(ctx, force)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return err
	}
	fmt.Fprintf(a.out, "token %s expires %s\n", mask(tok), a.remote.Session().ExpiresAt().Format(time.RFC3339))
	return nil
}

func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username (or uid)", a.out)
	if err != nil {
		return a.fail(err)
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return a.fail(err)
	}
	defer common.WipeByteArray(password)

	opts := identity.LoginOptions{}
	if _, err := strconv.ParseInt(username, 10, 64); err == nil {
		opts.ByUID = 1
	}
	out, err := a.resolver.Login(ctx, username, string(password), opts)
	if err != nil {
		return a.fail(err)
	}
	return a.printOutcome(out)
}

func (a *App) Identifier(ctx context.Context) error {
	typ, err := GetSimpleText(a.reader, fmt.Sprintf("Identifier type %v", credentials.Types), a.out)
	if err != nil {
		return a.fail(err)
	}
	t, err := credentials.ParseType(typ)
	if err != nil {
		return a.fail(err)
	}
	identifier, err := GetSimpleText(a.reader, "Enter identifier", a.out)
	if err != nil {
		return a.fail(err)
	}

	out, err := a.resolver.LoginWithIdentifier(ctx, t, identifier)
	if err != nil {
		var regErr *identity.RegistrationError
		if errors.As(err, &regErr) {
			fmt.Fprintf(a.out, "registration rejected: code %d\n", regErr.Code)
		}
		return a.fail(err)
	}
	return a.printOutcome(out)
}

func (a *App) Register(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return a.fail(err)
	}
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return a.fail(err)
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return a.fail(err)
	}
	defer common.WipeByteArray(password)

	code, _, err := a.resolver.Register(ctx, ucapi.RegisterInput{
		Username: username,
		Password: string(password),
		Email:    email,
	})
	if err != nil {
		return a.fail(err)
	}
	if code <= 0 {
		fmt.Fprintf(a.out, "registration rejected: code %d\n", code)
		return nil
	}
	fmt.Fprintf(a.out, "registered uid %d\n", code)
	return nil
}

// Verify checks the given session token, or the last one issued here.
func (a *App) Verify(_ context.Context, args []string) error {
	tok := a.lastToken
	if len(args) > 0 {
		tok = args[0]
	}
	claims, err := a.issuer.Verify(tok)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "valid: uid %s username %q expires %s\n",
		claims.Subject, claims.Username, claims.ExpiresAt.Time.Format(time.RFC3339))
	return nil
}

func (a *App) Bindings(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: bindings <uid>")
		return errUsage
	}
	uid, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return a.fail(err)
	}
	m, err := a.resolver.Bindings(ctx, uid)
	if err != nil {
		return a.fail(err)
	}
	types := make([]string, 0, len(m))
	for t := range m {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		v := m[credentials.Type(t)]
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(a.out, "%-16s %s\n", t, v)
	}
	return nil
}

func (a *App) printOutcome(out *identity.Outcome) error {
	if out.AccessToken != "" {
		a.lastToken = out.AccessToken
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintln(a.out, string(b))
	return nil
}

func (a *App) fail(err error) error {
	fmt.Fprintf(a.out, "error: %v\n", err)
	return err
}

func mask(tok string) string {
	if len(tok) <= 8 {
		return "****"
	}
	return tok[:4] + "..." + tok[len(tok)-4:]
}
