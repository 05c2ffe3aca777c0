package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/model"
	"github.com/sakif/piecemeal/internal/repository/sqlite"
	"github.com/sakif/piecemeal/internal/service"
)

// testEnv is the full service stack over an in-memory store with no recipe
// provider.
type testEnv struct {
	db           *sqlite.DB
	users        *service.UserService
	social       *service.SocialService
	saved        *service.SavedItemService
	intolerances *service.IntoleranceService
	engine       *service.Engine
	cache        *catalog.Cache
	auth         *service.AuthService
	logger       *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-key", time.Hour)
	require.NoError(t, err)

	users := service.NewUserService(db, auth.NewPasswordServiceWithCost(bcrypt.MinCost), service.NewRand(1), logger)
	saved := service.NewSavedItemService(db, service.NewRand(2), logger)
	cache := catalog.NewCache(db, nil, logger)
	opts := service.DefaultEngineOptions()
	opts.Rand = service.NewRand(3)

	return &testEnv{
		db:           db,
		users:        users,
		social:       service.NewSocialService(db, logger),
		saved:        saved,
		intolerances: service.NewIntoleranceService(db),
		engine:       service.NewEngine(saved, cache, opts, logger),
		cache:        cache,
		auth:         service.NewAuthService(users, tokens, logger),
		logger:       logger,
	}
}

// register creates a password account and returns its id.
func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	u, err := e.users.Register(context.Background(), model.NewUser{
		Username:       username,
		Email:          username + "@example.com",
		Password:       "correct-horse",
		Authentication: model.AuthDefault,
	})
	require.NoError(t, err)
	return u.ID
}

// request builds a request. A non-nil body is sent as JSON; a non-empty
// userID is placed in the context the way RequireAuth would.
func request(method, target string, body any, userID string) *http.Request {
	var r io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			r = bytes.NewBufferString(s)
		} else {
			b, _ := json.Marshal(body)
			r = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	return req
}

type envelope map[string]any

func (e envelope) code() int {
	n, _ := e["error_code"].(float64)
	return int(n)
}

func (e envelope) ok() bool {
	b, _ := e["success"].(bool)
	return b
}

func (e envelope) number(key string) int {
	n, _ := e[key].(float64)
	return int(n)
}

func (e envelope) list(key string) []any {
	l, _ := e[key].([]any)
	return l
}

func serve(t *testing.T, h http.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, req)

	var body envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body), "response is not JSON")
	return rr, body
}
