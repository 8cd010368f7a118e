package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/ucenter-gateway/internal/common"
	"github.com/dmitrijs2005/ucenter-gateway/internal/credentials"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway/gatewaytest"
	"github.com/dmitrijs2005/ucenter-gateway/internal/gateway/local"
	"github.com/dmitrijs2005/ucenter-gateway/internal/repositories/accounts"
	"github.com/dmitrijs2005/ucenter-gateway/internal/repositories/bindings"
	"github.com/dmitrijs2005/ucenter-gateway/internal/session"
	"github.com/dmitrijs2005/ucenter-gateway/internal/ucapi"
)

const phone = "13800138000"

// localBackend wires a recorder in front of a real local gateway so tests
// can count operations while exercising actual account storage.
func localBackend(t *testing.T) (*gatewaytest.Recorder, *accounts.MemoryRepository) {
	t.Helper()
	repo := accounts.NewMemoryRepository()
	rec := gatewaytest.New()
	rec.Next = local.New(repo, local.WithBcryptCost(bcrypt.MinCost))
	return rec, repo
}

func testIssuer(t *testing.T) *session.Issuer {
	t.Helper()
	i, err := session.NewIssuer(session.Config{Secret: []byte("s3cret"), TTL: time.Hour})
	require.NoError(t, err)
	return i
}

func TestLogin_WrongPasswordIsOutcome(t *testing.T) {
	rec := gatewaytest.New().Reply(gateway.OpUserLogin, gateway.Result{"status": json.Number("-2")})
	r := New(rec, WithIssuer(testIssuer(t)))

	out, err := r.Login(context.Background(), "alice", "bad", LoginOptions{})
	require.NoError(t, err)
	assert.Equal(t, KindWrongPassword, out.Kind)
	assert.Equal(t, int64(-2), out.Status)
	assert.Empty(t, out.AccessToken)
	assert.Equal(t, 1, rec.Count(gateway.OpUserLogin))
}

func TestLogin_StatusKinds(t *testing.T) {
	tests := []struct {
		status json.Number
		want   Kind
	}{
		{"7", KindSuccess},
		{"-1", KindNotFound},
		{"-2", KindWrongPassword},
		{"-3", KindWrongAnswer},
		{"-9", KindRejected},
		{"0", KindRejected},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			rec := gatewaytest.New().Reply(gateway.OpUserLogin, gateway.Result{"status": tt.status})
			out, err := New(rec).Login(context.Background(), "u", "p", LoginOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Kind)
		})
	}
}

func TestLogin_SuccessAttachesToken(t *testing.T) {
	rec := gatewaytest.New().Reply(gateway.OpUserLogin, gateway.Result{
		"data": map[string]any{"uid": json.Number("11"), "username": "alice", "email": "a@x.io"},
	})
	issuer := testIssuer(t)
	out, err := New(rec, WithIssuer(issuer)).Login(context.Background(), "alice", "pw", LoginOptions{QuestionID: 1, Answer: "a"})
	require.NoError(t, err)
	require.True(t, out.Success())
	assert.Equal(t, int64(11), out.UID)

	claims, err := issuer.Verify(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "11", claims.Subject)
	assert.Equal(t, "alice", claims.Username)

	call, _ := rec.Last(gateway.OpUserLogin)
	assert.Equal(t, "1", call.Params.Get("checkques"))
}

func TestLogin_TransportErrorPropagates(t *testing.T) {
	rec := gatewaytest.New().Fail(gateway.OpUserLogin, &gateway.CallError{Op: gateway.OpUserLogin, Err: gateway.ErrTransport})
	_, err := New(rec).Login(context.Background(), "u", "p", LoginOptions{})
	assert.ErrorIs(t, err, gateway.ErrTransport)
}

func TestLoginWithIdentifier_UnsupportedType(t *testing.T) {
	r := New(gatewaytest.New())
	_, err := r.LoginWithIdentifier(context.Background(), credentials.Type("email"), "x")
	assert.ErrorIs(t, err, ErrUnsupportedIdentifier)

	_, err = r.LoginWithIdentifier(context.Background(), credentials.TypePhone, "  ")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestLoginWithIdentifier_AutoRegistersOnceThenReuses(t *testing.T) {
	rec, repo := localBackend(t)
	r := New(rec, WithIssuer(testIssuer(t)))
	ctx := context.Background()

	first, err := r.LoginWithIdentifier(ctx, credentials.TypePhone, phone)
	require.NoError(t, err)
	require.True(t, first.Success())
	assert.NotEmpty(t, first.AccessToken)
	assert.Equal(t, 1, repo.Len())
	assert.Equal(t, 1, rec.Count(gateway.OpUserRegister))

	bundle := credentials.Derive(credentials.TypePhone, phone, "")
	assert.Equal(t, bundle.Username, first.Username)
	assert.Equal(t, bundle.Email, first.Email)

	account, err := repo.GetByProfileField(ctx, "phone", phone)
	require.NoError(t, err)
	assert.Equal(t, first.UID, account.UID)

	second, err := r.LoginWithIdentifier(ctx, credentials.TypePhone, phone)
	require.NoError(t, err)
	require.True(t, second.Success())
	assert.Equal(t, first.UID, second.UID)
	assert.Equal(t, 1, repo.Len())
	assert.Equal(t, 1, rec.Count(gateway.OpUserRegister))
}

func TestLoginWithIdentifier_IdentifierUsedVerbatim(t *testing.T) {
	rec, _ := localBackend(t)
	r := New(rec)
	ctx := context.Background()

	padded := " " + phone
	_, err := r.LoginWithIdentifier(ctx, credentials.TypePhone, padded)
	require.NoError(t, err)

	call, ok := rec.Last(gateway.OpUserLogin)
	require.True(t, ok)
	assert.Equal(t, credentials.GeneratedPassword(credentials.TypePhone, padded), call.Params.Get("password"))
	assert.NotEqual(t, credentials.GeneratedPassword(credentials.TypePhone, phone), call.Params.Get("password"))
}

func TestLoginWithIdentifier_ProvisionWritesBinding(t *testing.T) {
	rec, repo := localBackend(t)
	store := bindings.NewMemoryStore()
	r := New(rec, WithBindingStore(store))
	ctx := context.Background()

	first, err := r.LoginWithIdentifier(ctx, credentials.TypeWechatUnionID, "union-1")
	require.NoError(t, err)
	require.True(t, first.Success())

	uid, err := store.FindUID(ctx, credentials.TypeWechatUnionID, "union-1")
	require.NoError(t, err)
	assert.Equal(t, first.UID, uid)

	account, err := repo.GetByUID(ctx, first.UID)
	require.NoError(t, err)
	assert.Equal(t, "union-1", account.Profile.WechatUnionID)

	logins := rec.Count(gateway.OpUserLogin)
	gets := rec.Count(gateway.OpUserGet)

	second, err := r.LoginWithIdentifier(ctx, credentials.TypeWechatUnionID, "union-1")
	require.NoError(t, err)
	assert.Equal(t, first.UID, second.UID)
	assert.Equal(t, logins, rec.Count(gateway.OpUserLogin))
	assert.Equal(t, gets+1, rec.Count(gateway.OpUserGet))
}

func TestLoginWithIdentifier_BindingFirstSkipsLogin(t *testing.T) {
	rec := gatewaytest.New().Reply(gateway.OpUserGet, gateway.Result{
		"data": map[string]any{"uid": json.Number("5"), "username": "bound", "email": "b@x.io"},
	})
	store := bindings.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, 5, credentials.TypeQQUnionID, "qq-1"))

	issuer := testIssuer(t)
	out, err := New(rec, WithBindingStore(store), WithIssuer(issuer)).LoginWithIdentifier(ctx, credentials.TypeQQUnionID, "qq-1")
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, int64(5), out.UID)
	assert.Equal(t, "bound", out.Username)
	assert.NotEmpty(t, out.AccessToken)

	assert.Equal(t, 0, rec.Count(gateway.OpUserLogin))
	assert.Equal(t, 1, rec.Count(gateway.OpUserGet))
	assert.Len(t, rec.Calls(), 1)

	call, _ := rec.Last(gateway.OpUserGet)
	assert.Equal(t, "5", call.Params.Get("username"))
	assert.Equal(t, "1", call.Params.Get("isuid"))
}

func TestLoginWithIdentifier_StaleBindingFallsThrough(t *testing.T) {
	bundle := credentials.Derive(credentials.TypePhone, phone, "")
	rec := gatewaytest.New().
		Reply(gateway.OpUserGet, gateway.Result{"data": map[string]any{"uid": json.Number("0")}}).
		Reply(gateway.OpUserLogin, gateway.Result{"status": json.Number("8"), "username": bundle.Username})
	store := bindings.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, 3, credentials.TypePhone, phone))

	out, err := New(rec, WithBindingStore(store)).LoginWithIdentifier(ctx, credentials.TypePhone, phone)
	require.NoError(t, err)
	assert.Equal(t, int64(8), out.UID)

	uid, err := store.FindUID(ctx, credentials.TypePhone, phone)
	require.NoError(t, err)
	assert.Equal(t, int64(8), uid)
}

func TestLoginWithIdentifier_UsesDerivedCredentials(t *testing.T) {
	rec := gatewaytest.New().Reply(gateway.OpUserLogin, gateway.Result{"status": json.Number("4")})
	_, err := New(rec, WithEmailDomain("example.org")).LoginWithIdentifier(context.Background(), credentials.TypePhone, phone)
	require.NoError(t, err)

	bundle := credentials.Derive(credentials.TypePhone, phone, "example.org")
	call, _ := rec.Last(gateway.OpUserLogin)
	assert.Equal(t, bundle.Username, call.Params.Get("username"))
	assert.Equal(t, bundle.Password, call.Params.Get("password"))
}

func TestLoginWithIdentifier_RegistrationRejected(t *testing.T) {
	rec := gatewaytest.New().
		Reply(gateway.OpUserLogin, gateway.Result{"status": json.Number("-1")}).
		Reply(gateway.OpUserRegister, gateway.Result{"ret": json.Number("-3")})

	_, err := New(rec).LoginWithIdentifier(context.Background(), credentials.TypeWeiboOpenID, "wb-1")
	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, int64(-3), regErr.Code)
	assert.Contains(t, err.Error(), "-3")
	assert.Equal(t, 1, rec.Count(gateway.OpUserLogin))
	assert.Equal(t, 0, rec.Count(gateway.OpUserEdit))
}

func TestLoginWithIdentifier_DerivedPasswordMismatchIsConflict(t *testing.T) {
	rec := gatewaytest.New().Reply(gateway.OpUserLogin, gateway.Result{"status": json.Number("-2"), "message": "bad"})

	out, err := New(rec).LoginWithIdentifier(context.Background(), credentials.TypePhone, phone)
	require.NoError(t, err)
	assert.Equal(t, KindConflict, out.Kind)
	assert.Equal(t, int64(-2), out.Status)
	assert.Equal(t, "bad", out.Response.String("message"))
	assert.Equal(t, 0, rec.Count(gateway.OpUserRegister))
}

func TestLoginWithIdentifier_BackfillsMissingEmail(t *testing.T) {
	logins := 0
	rec := gatewaytest.New().
		On(gateway.OpUserLogin, func(url.Values) (gateway.Result, error) {
			logins++
			if logins == 1 {
				return gateway.Result{"status": json.Number("-1")}, nil
			}
			return gateway.Result{"status": json.Number("21")}, nil
		}).
		Reply(gateway.OpUserRegister, gateway.Result{"ret": json.Number("21")}).
		Reply(gateway.OpUserGet, gateway.Result{"data": map[string]any{"uid": json.Number("21"), "email": ""}}).
		Reply(gateway.OpUserEdit, gateway.Result{"ret": json.Number("1")})

	out, err := New(rec).LoginWithIdentifier(context.Background(), credentials.TypePhone, phone)
	require.NoError(t, err)
	assert.Equal(t, int64(21), out.UID)

	edits := 0
	bundle := credentials.Derive(credentials.TypePhone, phone, "")
	for _, c := range rec.Calls() {
		if c.Op != gateway.OpUserEdit {
			continue
		}
		edits++
		if edits == 1 {
			assert.Equal(t, bundle.Email, c.Params.Get("email"))
		} else {
			assert.Equal(t, phone, c.Params.Get("phone"))
		}
	}
	assert.Equal(t, 2, edits)
}

type failingStore struct{ bindings.Store }

func (failingStore) FindUID(context.Context, credentials.Type, string) (int64, error) {
	return 0, common.ErrorNotFound
}

func (failingStore) Add(context.Context, int64, credentials.Type, string) error {
	return common.ErrBindingConflict
}

func TestLoginWithIdentifier_BindingWriteErrorPropagates(t *testing.T) {
	rec := gatewaytest.New().Reply(gateway.OpUserLogin, gateway.Result{"status": json.Number("4")})
	_, err := New(rec, WithBindingStore(failingStore{})).LoginWithIdentifier(context.Background(), credentials.TypePhone, phone)
	assert.ErrorIs(t, err, common.ErrBindingConflict)
}

func TestRegister_LinksSystemAccount(t *testing.T) {
	rec := gatewaytest.New().
		Reply(gateway.OpUserRegister, gateway.Result{"ret": json.Number("30")}).
		Reply(gateway.OpFriendAdd, gateway.Result{"ret": json.Number("1")})

	code, _, err := New(rec, WithSystemUID(1)).Register(context.Background(), ucapiInput("carol"))
	require.NoError(t, err)
	assert.Equal(t, int64(30), code)

	var pairs [][2]string
	for _, c := range rec.Calls() {
		if c.Op == gateway.OpFriendAdd {
			pairs = append(pairs, [2]string{c.Params.Get("uid"), c.Params.Get("friendid")})
		}
	}
	assert.Equal(t, [][2]string{{"30", "1"}, {"1", "30"}}, pairs)
}

func TestRegister_SwallowsFriendFailures(t *testing.T) {
	rec := gatewaytest.New().
		Reply(gateway.OpUserRegister, gateway.Result{"ret": json.Number("31")}).
		Fail(gateway.OpFriendAdd, errors.New("boom"))

	code, _, err := New(rec, WithSystemUID(1)).Register(context.Background(), ucapiInput("dan"))
	require.NoError(t, err)
	assert.Equal(t, int64(31), code)
	assert.Equal(t, 2, rec.Count(gateway.OpFriendAdd))
}

func TestRegister_RejectedSkipsLink(t *testing.T) {
	rec := gatewaytest.New().Reply(gateway.OpUserRegister, gateway.Result{"ret": json.Number("-3")})

	code, _, err := New(rec, WithSystemUID(1)).Register(context.Background(), ucapiInput("dan"))
	require.NoError(t, err)
	assert.Equal(t, int64(-3), code)
	assert.Equal(t, 0, rec.Count(gateway.OpFriendAdd))
}

func TestRegister_LocalBackend(t *testing.T) {
	rec, repo := localBackend(t)
	code, _, err := New(rec, WithSystemUID(1)).Register(context.Background(), ucapiInput("erin"))
	require.NoError(t, err)
	assert.Positive(t, code)
	assert.Equal(t, 1, repo.Len())
}

func TestBindingHelpers(t *testing.T) {
	ctx := context.Background()

	r := New(gatewaytest.New())
	assert.ErrorIs(t, r.Bind(ctx, 1, credentials.TypePhone, phone), ErrNoBindingStore)
	_, err := r.Bindings(ctx, 1)
	assert.ErrorIs(t, err, ErrNoBindingStore)
	assert.False(t, r.HasBindingStore())

	r = New(gatewaytest.New(), WithBindingStore(bindings.NewMemoryStore()))
	assert.ErrorIs(t, r.Bind(ctx, 1, "email", "x"), ErrUnsupportedIdentifier)
	assert.ErrorIs(t, r.Bind(ctx, 1, credentials.TypePhone, " "), common.ErrInvalidArgument)
	require.NoError(t, r.Bind(ctx, 2, credentials.TypeQQUnionID, " q-1"))
	uid, err := r.store.FindUID(ctx, credentials.TypeQQUnionID, " q-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), uid)
	require.NoError(t, r.Bind(ctx, 1, credentials.TypePhone, phone))

	m, err := r.Bindings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, phone, m[credentials.TypePhone])
	assert.Equal(t, "", m[credentials.TypeQQUnionID])

	require.NoError(t, r.Unbind(ctx, 1, credentials.TypePhone))
	m, err = r.Bindings(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "", m[credentials.TypePhone])
}

func ucapiInput(name string) ucapi.RegisterInput {
	return ucapi.RegisterInput{Username: name, Password: "pw", Email: name + "@example.com"}
}
