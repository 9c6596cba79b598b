package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieltslisten/learner/internal/auth"
	"github.com/ieltslisten/learner/internal/client"
	"github.com/ieltslisten/learner/internal/query"
	"github.com/ieltslisten/learner/internal/session"
	"github.com/ieltslisten/learner/internal/storage"
)

type backend struct {
	calls         atomic.Int32
	enrollCalls   atomic.Int32
	logoutFail    bool
	logoutExpired bool
}

func (b *backend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "correct-horse" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access":"acc","refresh":"ref"}`))
	})
	mux.HandleFunc("/auth/register/", func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"user":{"id":9,"email":"new@example.vn","profile":{"display_name":"Minh"}},"access":"acc","refresh":"ref"}`))
	})
	mux.HandleFunc("/auth/me/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":7,"email":"lan@example.vn","role":"student","is_active":true,"profile":{"display_name":"Lan"}}`))
	})
	mux.HandleFunc("/auth/profile/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		_, _ = w.Write([]byte(`{"display_name":"Lan N.","bio":"IELTS 7.5 goal"}`))
	})
	mux.HandleFunc("/auth/logout/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ref", body["refresh_token"])
		if b.logoutExpired {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if b.logoutFail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Token is blacklisted"}`))
			return
		}
		_, _ = w.Write([]byte(`{"detail":"Successfully logged out."}`))
	})
	mux.HandleFunc("/auth/refresh/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired","code":"token_not_valid"}`))
	})
	mux.HandleFunc("/auth/enrollments/", func(w http.ResponseWriter, r *http.Request) {
		b.enrollCalls.Add(1)
		_, _ = w.Write([]byte(`[{"id":1,"book":3,"is_active":true},{"id":2,"book":4,"is_active":true,"is_expired":true}]`))
	})
	return mux
}

func setup(t *testing.T, b *backend) (*auth.API, *session.Store) {
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)
	sess := session.New(storage.NewMemStore())
	c := client.New(client.Config{BaseURL: srv.URL}, sess)
	return auth.New(c, sess, query.New(query.NewMemory(), 0)), sess
}

func TestLoginFetchesUser(t *testing.T) {
	api, sess := setup(t, &backend{})
	u, err := api.Login(context.Background(), auth.LoginForm{Email: "lan@example.vn", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "Lan", u.DisplayName())
	assert.Equal(t, "acc", sess.AccessToken())
	assert.Equal(t, "ref", sess.RefreshToken())
	assert.EqualValues(t, 7, sess.User().ID)
}

func TestLoginRejectedLeavesSessionEmpty(t *testing.T) {
	api, sess := setup(t, &backend{})
	_, err := api.Login(context.Background(), auth.LoginForm{Email: "lan@example.vn", Password: "wrong-horse"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, client.StatusOf(err))
	assert.False(t, sess.IsAuthenticated())
}

func TestInvalidFormNeverReachesBackend(t *testing.T) {
	b := &backend{}
	api, _ := setup(t, b)
	_, err := api.Login(context.Background(), auth.LoginForm{Email: "lan", Password: "x"})
	var ve *auth.ValidationError
	require.ErrorAs(t, err, &ve)
	_, err = api.Register(context.Background(), auth.RegisterForm{Email: "a@b.vn", DisplayName: "Mi", Password: "12345678", PasswordConfirm: "nope"})
	require.ErrorAs(t, err, &ve)
	assert.EqualValues(t, 0, b.calls.Load())
}

func TestRegisterUsesReturnedUser(t *testing.T) {
	api, sess := setup(t, &backend{})
	u, err := api.Register(context.Background(), auth.RegisterForm{
		Email: "new@example.vn", DisplayName: "Minh", Password: "12345678", PasswordConfirm: "12345678",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 9, u.ID)
	assert.Equal(t, "Minh", sess.User().DisplayName())
}

func TestLogoutClearsEvenWhenBackendFails(t *testing.T) {
	ctx := context.Background()
	api, sess := setup(t, &backend{logoutFail: true})
	require.NoError(t, sess.SetAuth(ctx, &session.User{ID: 7}, "acc", "ref"))
	hooks := 0
	sess.OnClear(func() { hooks++ })

	require.NoError(t, api.Logout(ctx))
	assert.False(t, sess.IsAuthenticated())
	assert.Equal(t, 1, hooks)
}

func TestLogoutOfExpiredSessionClearsOnce(t *testing.T) {
	ctx := context.Background()
	api, sess := setup(t, &backend{logoutExpired: true})
	require.NoError(t, sess.SetAuth(ctx, &session.User{ID: 7}, "acc", "ref"))
	hooks := 0
	sess.OnClear(func() { hooks++ })

	require.NoError(t, api.Logout(ctx))
	assert.False(t, sess.IsAuthenticated())
	assert.Equal(t, 1, hooks)
}

func TestLoginReplacesPreviousIdentity(t *testing.T) {
	ctx := context.Background()
	b := &backend{}
	srv := httptest.NewServer(b.handler(t))
	defer srv.Close()
	sess := session.New(storage.NewMemStore())
	cache := query.New(query.NewMemory(), 0)
	api := auth.New(client.New(client.Config{BaseURL: srv.URL}, sess), sess, cache)
	hooks := 0
	sess.OnClear(func() {
		hooks++
		require.NoError(t, cache.Clear(ctx))
	})

	require.NoError(t, sess.SetAuth(ctx, &session.User{ID: 3, Email: "hoa@example.vn"}, "acc", "ref"))
	_, err := api.Enrollments(ctx)
	require.NoError(t, err)
	_, err = api.Enrollments(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, b.enrollCalls.Load())

	u, err := api.Login(ctx, auth.LoginForm{Email: "lan@example.vn", Password: "correct-horse"})
	require.NoError(t, err)
	assert.EqualValues(t, 7, u.ID)
	assert.Equal(t, 1, hooks)

	_, err = api.Enrollments(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, b.enrollCalls.Load(), "enrollments refetched for the new user")
}

func TestFirstLoginRunsNoClearHooks(t *testing.T) {
	api, sess := setup(t, &backend{})
	hooks := 0
	sess.OnClear(func() { hooks++ })
	_, err := api.Login(context.Background(), auth.LoginForm{Email: "lan@example.vn", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, 0, hooks)
}

func TestUpdateProfileMirrorsSession(t *testing.T) {
	ctx := context.Background()
	api, sess := setup(t, &backend{})
	require.NoError(t, sess.SetAuth(ctx, &session.User{ID: 7, Email: "lan@example.vn"}, "acc", "ref"))

	name := "Lan N."
	p, err := api.UpdateProfile(ctx, auth.ProfileForm{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "IELTS 7.5 goal", p.Bio)
	assert.Equal(t, "Lan N.", sess.User().DisplayName())
}

func TestOwns(t *testing.T) {
	ctx := context.Background()
	api, sess := setup(t, &backend{})
	require.NoError(t, sess.SetAuth(ctx, nil, "acc", "ref"))
	ok, err := api.Owns(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = api.Owns(ctx, 4)
	require.NoError(t, err)
	assert.False(t, ok, "expired enrollment")
}
