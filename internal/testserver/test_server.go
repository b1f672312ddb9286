// Package testserver runs the full fastwatch stack behind an httptest server.
package testserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpggio/fastwatch/internal/clock"
	"github.com/rpggio/fastwatch/internal/config"
	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/rpggio/fastwatch/internal/domain/protocol"
	"github.com/rpggio/fastwatch/internal/domain/stats"
	"github.com/rpggio/fastwatch/internal/mcp"
	"github.com/rpggio/fastwatch/internal/sqlite"
	"github.com/rpggio/fastwatch/internal/transport"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server  *httptest.Server
	DB      *sqlite.DB
	Clock   *clock.Manual
	Fasts   *sqlite.FastRepository
	Service *fast.Service
	Keys    *sqlite.APIKeyRepository
}

// New starts an authenticated HTTP server over an in-memory database. The
// clock starts at now.
func New(t *testing.T, now time.Time) *TestServer {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	clk := clock.NewManual(now)
	protocols := protocol.NewRegistry()
	fastRepo := sqlite.NewFastRepository(db, clk)
	keys := sqlite.NewAPIKeyRepository(db)

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	fastSvc := fast.NewService(fastRepo, protocols, clk, activitySvc, nil)
	tracker := fast.NewTracker(fastSvc, nil)
	statsSvc := stats.NewService(fastRepo, sqlite.NewLeaderboardRepository(db), protocols, clk, time.UTC, nil)

	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Fasts:     fastSvc,
			Tracker:   tracker,
			Stats:     statsSvc,
			Activity:  activitySvc,
			Protocols: protocols,
		},
		Resolver:      keys,
		AuthEnabled:   true,
		TransportMode: config.TransportHTTP,
		Clock:         clk,
	})
	server := httptest.NewServer(transport.NewHandler(mcpServer, nil))

	ts := &TestServer{
		Server:  server,
		DB:      db,
		Clock:   clk,
		Fasts:   fastRepo,
		Service: fastSvc,
		Keys:    keys,
	}

	t.Cleanup(func() {
		server.Close()
		_ = tracker.Close()
		fastRepo.Close()
		_ = db.Close()
	})

	return ts
}

// AddAPIKey registers token for userID.
func (ts *TestServer) AddAPIKey(t *testing.T, token, userID string) {
	t.Helper()
	require.NoError(t, ts.Keys.Create(context.Background(), userID, token, "test"))
}

// Connect opens an MCP client session that sends token as a bearer token.
// An empty token sends no Authorization header.
func (ts *TestServer) Connect(t *testing.T, token string) *sdkmcp.ClientSession {
	t.Helper()
	httpClient := &http.Client{Transport: bearerTransport{token: token, base: http.DefaultTransport}}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: httpClient,
		MaxRetries: -1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if b.token == "" {
		return b.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(req)
}
