package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/housesplit/internal/auth"
	"github.com/mmynk/housesplit/internal/events"
	"github.com/mmynk/housesplit/internal/metrics"
	"github.com/mmynk/housesplit/internal/middleware"
	"github.com/mmynk/housesplit/internal/rpc"
	"github.com/mmynk/housesplit/internal/storage/sqlite"
)

// recordingPublisher keeps every published settlement in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.SettlementRecorded
	err    error
}

func (p *recordingPublisher) PublishSettlement(_ context.Context, event *events.SettlementRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*events.SettlementRecorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.SettlementRecorded(nil), p.events...)
}

type testEnv struct {
	store      *sqlite.SQLiteStore
	metrics    *metrics.Metrics
	publisher  *recordingPublisher
	expenses   *ExpenseService
	auth       *rpc.AuthServiceClient
	households *rpc.HouseholdServiceClient
	expense    *rpc.ExpenseServiceClient
}

// setupTestServer wires every service behind the real interceptors over a
// temporary SQLite database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtManager := auth.NewJWTManager("test-secret-0123456789", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)

	env := &testEnv{
		store:     store,
		metrics:   metrics.New(),
		publisher: &recordingPublisher{},
	}
	env.expenses = NewExpenseService(store, env.metrics, env.publisher, logger)

	public := connect.WithInterceptors(middleware.OptionalAuth(jwtManager), middleware.LoggingInterceptor(logger))
	private := connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor(logger))

	mux := http.NewServeMux()
	mux.Handle(rpc.NewAuthServiceHandler(NewAuthService(authenticator, jwtManager, store, logger), public))
	mux.Handle(rpc.NewHouseholdServiceHandler(NewHouseholdService(store, logger), private))
	mux.Handle(rpc.NewExpenseServiceHandler(env.expenses, private))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	env.auth = rpc.NewAuthServiceClient(http.DefaultClient, server.URL)
	env.households = rpc.NewHouseholdServiceClient(http.DefaultClient, server.URL)
	env.expense = rpc.NewExpenseServiceClient(http.DefaultClient, server.URL)
	return env
}

type testUser struct {
	ID    string
	Token string
}

func (e *testEnv) register(t *testing.T, name string) testUser {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&rpc.RegisterRequest{
		Email:       strings.ToLower(name) + "@example.com",
		DisplayName: name,
		Password:    "password123",
	}))
	require.NoError(t, err)
	return testUser{ID: resp.Msg.User.ID, Token: resp.Msg.Token}
}

// household creates a household owned by owner and joins every other user to it.
func (e *testEnv) household(t *testing.T, owner testUser, others ...testUser) *rpc.Household {
	t.Helper()
	ctx := context.Background()

	created, err := e.households.CreateHousehold(ctx, authed(owner, &rpc.CreateHouseholdRequest{Name: "Flat"}))
	require.NoError(t, err)

	h := created.Msg.Household
	for _, u := range others {
		joined, err := e.households.JoinHousehold(ctx, authed(u, &rpc.JoinHouseholdRequest{JoinCode: h.JoinCode}))
		require.NoError(t, err)
		h = joined.Msg.Household
	}
	return h
}

// authed wraps msg in a request carrying u's bearer token.
func authed[T any](u testUser, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+u.Token)
	return req
}
