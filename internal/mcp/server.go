package mcp

import (
	"context"
	"log/slog"

	"github.com/rpggio/fastwatch/internal/clock"
	"github.com/rpggio/fastwatch/internal/config"
	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/rpggio/fastwatch/internal/domain/protocol"
	"github.com/rpggio/fastwatch/internal/domain/stats"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// FastService defines fast lifecycle operations needed by MCP.
type FastService interface {
	Start(ctx context.Context, userID string, req fast.StartRequest) (*fast.Session, error)
	End(ctx context.Context, userID string, req fast.EndRequest) (*fast.Session, error)
	Delete(ctx context.Context, userID, id string) error
	ClearAll(ctx context.Context, userID string) error
}

// StateTracker provides the reconciled state of a user, observing on demand.
type StateTracker interface {
	Ensure(ctx context.Context, userID string) (fast.State, error)
}

// StatsService defines statistics operations needed by MCP.
type StatsService interface {
	Summary(ctx context.Context, userID string) (*stats.Summary, error)
	Leaderboard(ctx context.Context, limit int) ([]stats.LeaderboardEntry, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, userID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// ProtocolCatalog resolves and lists the available fasting protocols.
type ProtocolCatalog interface {
	Lookup(id string) (protocol.Protocol, bool)
	List() []protocol.Protocol
}

// Services contains all domain services needed by MCP.
type Services struct {
	Fasts     FastService
	Tracker   StateTracker
	Stats     StatsService
	Activity  ActivityService
	Protocols ProtocolCatalog
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      UserResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	DefaultUser   string
	Clock         clock.Clock
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "fastwatch",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server, cfg.Services.Protocols)

	defaultUser := cfg.DefaultUser
	if defaultUser == "" {
		defaultUser = "local"
	}
	// Stdio is a local, single-user transport and never authenticates.
	identify := noAuthMiddleware(defaultUser)
	if cfg.TransportMode != config.TransportStdio && cfg.AuthEnabled {
		identify = authMiddleware(cfg.Resolver)
	}
	// Listed outermost first, so traffic logs carry the resolved user.
	server.AddReceivingMiddleware(identify, trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	registerTools(server, newHandler(cfg.Services, clk))

	return server
}
