package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/accountd/internal/api/jsonrpcx"
	"github.com/danghamo/accountd/internal/api/middleware"
	"github.com/danghamo/accountd/internal/app/session"
	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/internal/domain/preference"
	"github.com/danghamo/accountd/pkg/autorouter"
	"github.com/danghamo/accountd/pkg/logger"
)

type recordingNotifier struct {
	mutex   sync.Mutex
	methods []string
}

func (n *recordingNotifier) BroadcastToAll(_ context.Context, method string, _ interface{}) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.methods = append(n.methods, method)
	return nil
}

type fixture struct {
	session  *session.Session
	jwt      *account.JWTService
	store    *preference.MemoryStore
	notifier *recordingNotifier
	router   *autorouter.AutoRouter
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()

	sess := session.New(session.Config{FilesRoot: "/data", FallbackName: "guest"}, nil, log)
	require.NoError(t, sess.Start(context.Background()))
	t.Cleanup(sess.Close)

	f := &fixture{
		session:  sess,
		jwt:      account.NewJWTService("test-secret", "accountd-test", time.Hour, "/data"),
		store:    preference.NewMemoryStore(nil),
		notifier: &recordingNotifier{},
	}

	provider := sess.Provider()
	accountHandler := NewAccountHandler(log, provider)
	authHandler := NewAuthHandler(log, provider, f.jwt, sess.Fallback())
	preferenceHandler := NewPreferenceHandler(log, provider, f.store, f.notifier)
	requireAuth := autorouter.Middleware(middleware.NewAuthMiddleware(f.jwt, log).RequireAuth)

	mux := http.NewServeMux()
	f.router = autorouter.NewAutoRouter(mux, autorouter.RegistrationOptions{Prefix: "/api/v1/", Logger: log})
	require.NoError(t, f.router.WithMethodPrefix("account.").RegisterHandlers(accountHandler))
	require.NoError(t, f.router.RegisterSingleMethodWithAuth(accountHandler, "HandleRemove", "account.Remove", requireAuth))
	require.NoError(t, f.router.WithMethodPrefix("auth.").RegisterHandlers(authHandler))
	require.NoError(t, f.router.RegisterSingleMethodWithAuth(authHandler, "HandleSignOut", "auth.SignOut", requireAuth))
	require.NoError(t, f.router.WithMethodPrefix("preference.").RegisterHandlers(preferenceHandler))
	serverHandler := NewServerHandler("test-server", "", 8080, "test", f.router.Routes)
	require.NoError(t, f.router.WithMethodPrefix("server.").RegisterHandlers(serverHandler))

	f.handler = middleware.ErrorAdapter(log)(mux)
	return f
}

type rpcResponse[T any] struct {
	Result T                      `json:"result"`
	Error  *jsonrpcx.JSONRPCError `json:"error"`
	ID     any                    `json:"id"`
}

func call[T any](t *testing.T, f *fixture, method string, params any, token string) rpcResponse[T] {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/"+method, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response rpcResponse[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response
}

func (f *fixture) signIn(t *testing.T, key, name string) string {
	t.Helper()
	token, err := f.jwt.GenerateToken(key, name)
	require.NoError(t, err)

	response := call[AccountResponse](t, f, "auth.SignIn", SignInRequest{Token: token}, "")
	require.Nil(t, response.Error)
	return token
}

func TestAccount_CurrentStartsAtFallback(t *testing.T) {
	f := newFixture(t)

	response := call[AccountResponse](t, f, "account.Current", nil, "")

	require.Nil(t, response.Error)
	assert.Equal(t, "stub", response.Result.AccountKey)
	assert.Equal(t, "guest", response.Result.Name)
	assert.False(t, response.Result.SignedIn)
	assert.Equal(t, "/data", response.Result.FilesDirectory)
}

func TestAccount_GetUnknownKey(t *testing.T) {
	f := newFixture(t)

	response := call[AccountResponse](t, f, "account.Get", GetAccountRequest{AccountKey: "nobody"}, "")

	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpcx.AccountNotFound, response.Error.Code)
}

func TestAccount_GetRequiresParams(t *testing.T) {
	f := newFixture(t)

	response := call[AccountResponse](t, f, "account.Get", nil, "")

	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpcx.InvalidParams, response.Error.Code)
}

func TestAccount_RejectsGet(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/account.Current", nil))

	var response rpcResponse[AccountResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpcx.MethodNotFound, response.Error.Code)
}

func TestAuth_SignInMakesAccountCurrent(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "u1", "Ada")

	current := call[AccountResponse](t, f, "account.Current", nil, "")
	require.Nil(t, current.Error)
	assert.Equal(t, "u1", current.Result.AccountKey)
	assert.True(t, current.Result.SignedIn)
	assert.NotEqual(t, "/data", current.Result.FilesDirectory)

	signedIn := call[SignedInResponse](t, f, "account.IsSignedIn", nil, "")
	assert.True(t, signedIn.Result.SignedIn)

	byKey := call[AccountResponse](t, f, "account.Get", GetAccountRequest{AccountKey: "u1"}, "")
	require.Nil(t, byKey.Error)
	assert.Equal(t, "Ada", byKey.Result.Name)
}

func TestAuth_SignInRejectsBadToken(t *testing.T) {
	f := newFixture(t)

	response := call[AccountResponse](t, f, "auth.SignIn", SignInRequest{Token: "not-a-token"}, "")

	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpcx.Unauthorized, response.Error.Code)

	current, _ := f.session.Provider().CurrentAccount()
	assert.Equal(t, "stub", current.Key())
}

func TestAuth_SignInRejectsFallbackKey(t *testing.T) {
	f := newFixture(t)
	token, err := f.jwt.GenerateToken("stub", "mallory")
	require.NoError(t, err)

	response := call[AccountResponse](t, f, "auth.SignIn", SignInRequest{Token: token}, "")

	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpcx.InvalidParams, response.Error.Code)
	assert.False(t, f.session.Provider().IsSignedIn())

	fallback, err := f.session.Provider().AccountByKey("stub")
	require.NoError(t, err)
	assert.True(t, fallback.IsNonSignedIn())
}

func TestAuth_SignOut(t *testing.T) {
	f := newFixture(t)

	unauthenticated := call[AccountResponse](t, f, "auth.SignOut", nil, "")
	require.NotNil(t, unauthenticated.Error)
	assert.Equal(t, jsonrpcx.Unauthorized, unauthenticated.Error.Code)

	token := f.signIn(t, "u1", "Ada")
	f.signIn(t, "u2", "Grace")

	notCurrent := call[AccountResponse](t, f, "auth.SignOut", nil, token)
	require.NotNil(t, notCurrent.Error)
	assert.Equal(t, jsonrpcx.Unauthorized, notCurrent.Error.Code)

	u2Token, err := f.jwt.GenerateToken("u2", "Grace")
	require.NoError(t, err)
	signedOut := call[AccountResponse](t, f, "auth.SignOut", nil, u2Token)
	require.Nil(t, signedOut.Error)
	assert.Equal(t, "stub", signedOut.Result.AccountKey)
	assert.False(t, f.session.Provider().IsSignedIn())
}

func TestAccount_FromArgs(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "u1", "Ada")

	found := call[AccountResponse](t, f, "account.FromArgs", FromArgsRequest{
		Arguments: map[string]string{"accountKey": "u1"},
		Key:       "accountKey",
	}, "")
	require.Nil(t, found.Error)
	assert.Equal(t, "u1", found.Result.AccountKey)

	missing := call[AccountResponse](t, f, "account.FromArgs", FromArgsRequest{
		Arguments: map[string]string{},
		Key:       "accountKey",
	}, "")
	require.NotNil(t, missing.Error)
	assert.Equal(t, jsonrpcx.InvalidParams, missing.Error.Code)
}

func TestAccount_List(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "u1", "Ada")

	response := call[[]AccountResponse](t, f, "account.List", nil, "")

	require.Nil(t, response.Error)
	keys := make([]string, 0, len(response.Result))
	for _, a := range response.Result {
		keys = append(keys, a.AccountKey)
	}
	assert.ElementsMatch(t, []string{"stub", "u1"}, keys)
}

func TestAccount_RemoveCurrentSwitchesToFallback(t *testing.T) {
	f := newFixture(t)
	token := f.signIn(t, "u1", "Ada")

	unauthenticated := call[RemoveAccountsResponse](t, f, "account.Remove", RemoveAccountsRequest{AccountKeys: []string{"u1"}}, "")
	require.NotNil(t, unauthenticated.Error)
	assert.Equal(t, jsonrpcx.Unauthorized, unauthenticated.Error.Code)

	response := call[RemoveAccountsResponse](t, f, "account.Remove", RemoveAccountsRequest{AccountKeys: []string{"u1", "stub"}}, token)
	require.Nil(t, response.Error)
	assert.Equal(t, []string{"u1"}, response.Result.Removed)
	assert.Equal(t, "stub", response.Result.Current.AccountKey)

	gone := call[AccountResponse](t, f, "account.Get", GetAccountRequest{AccountKey: "u1"}, "")
	require.NotNil(t, gone.Error)
	assert.Equal(t, jsonrpcx.AccountNotFound, gone.Error.Code)
}

func TestPreference_RegisterAndAdjust(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "u1", "Ada")
	require.NoError(t, f.store.SetBool(context.Background(), "account_u1_sync_wifi_only", true))

	registered := call[map[string]bool](t, f, "preference.Register", RegisterPreferenceRequest{Key: "sync_wifi_only"}, "")
	require.Nil(t, registered.Error)
	assert.Equal(t, map[string]bool{"sync_wifi_only": false}, registered.Result)
	assert.Equal(t, []string{"preference.keys.changed"}, f.notifier.methods)

	response := call[AdjustResponse](t, f, "preference.Adjust", AdjustRequest{
		Controls: []ControlParams{
			{Key: "sync_wifi_only", Kind: preference.KindSwitch},
			{Key: "nickname", Kind: preference.KindText, Value: "ada"},
		},
	}, "")

	require.Nil(t, response.Error)
	assert.Equal(t, "u1", response.Result.AccountKey)
	require.Len(t, response.Result.Renamed, 1)
	assert.Equal(t, "account_u1_sync_wifi_only", response.Result.Renamed[0].Key)
	assert.True(t, response.Result.Renamed[0].Checked)
	assert.JSONEq(t,
		`{"sync_wifi_only":null,"account_u1_sync_wifi_only":{"kind":"Switch","checked":true}}`,
		string(response.Result.Patch))
}

func TestPreference_AdjustUsesSubmittedValues(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "u1", "Ada")
	call[map[string]bool](t, f, "preference.Register", RegisterPreferenceRequest{Key: "dark_mode", Default: true}, "")

	response := call[AdjustResponse](t, f, "preference.Adjust", AdjustRequest{
		Controls: []ControlParams{{Key: "dark_mode", Checked: true}},
		Values:   map[string]bool{"account_u1_dark_mode": false},
	}, "")

	require.Nil(t, response.Error)
	require.Len(t, response.Result.Renamed, 1)
	assert.False(t, response.Result.Renamed[0].Checked)
}

func TestPreference_AdjustRejectsNonTwoState(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "u1", "Ada")
	call[map[string]bool](t, f, "preference.Register", RegisterPreferenceRequest{Key: "nickname"}, "")

	response := call[AdjustResponse](t, f, "preference.Adjust", AdjustRequest{
		Controls: []ControlParams{{Key: "nickname", Kind: preference.KindText}},
	}, "")

	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpcx.UnsupportedOperation, response.Error.Code)
	assert.Contains(t, response.Error.Message, "Text")
}

func TestPreference_AdjustRejectsUnknownKind(t *testing.T) {
	f := newFixture(t)

	response := call[AdjustResponse](t, f, "preference.Adjust", AdjustRequest{
		Controls: []ControlParams{{Key: "volume", Kind: "Slider"}},
	}, "")

	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpcx.InvalidParams, response.Error.Code)
}

func TestPreference_SetWritesStore(t *testing.T) {
	f := newFixture(t)

	response := call[SetPreferenceRequest](t, f, "preference.Set", SetPreferenceRequest{Key: "dark_mode", Checked: true}, "")
	require.Nil(t, response.Error)

	value, err := f.store.GetBool(context.Background(), "dark_mode", false)
	require.NoError(t, err)
	assert.True(t, value)
}

func TestServer_InfoAndRoutes(t *testing.T) {
	f := newFixture(t)

	info := call[ServerInfoResponse](t, f, "server.Info", nil, "")
	require.Nil(t, info.Error)
	assert.Equal(t, "test-server", info.Result.ServerID)
	assert.Equal(t, "http://localhost:8080", info.Result.URL)

	routes := call[[]autorouter.HandlerInfo](t, f, "server.Routes", nil, "")
	require.Nil(t, routes.Error)

	auth := map[string]bool{}
	for _, route := range routes.Result {
		auth[route.URLPath] = route.HasAuth
	}
	assert.True(t, auth["/api/v1/account.Remove"])
	assert.True(t, auth["/api/v1/auth.SignOut"])
	assert.False(t, auth["/api/v1/account.Current"])
	_, handleRouted := auth["/api/v1/account.HandleRemove"]
	assert.False(t, handleRouted)
}
