package mcp

import (
	"context"
	"fmt"

	"github.com/rpggio/fastwatch/internal/clock"
	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/fast"
	"github.com/rpggio/fastwatch/internal/domain/protocol"
	"github.com/rpggio/fastwatch/internal/domain/stats"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// handler adapts domain services to MCP tool handlers.
type handler struct {
	svc   Services
	clock clock.Clock
}

func newHandler(svc Services, clk clock.Clock) *handler {
	return &handler{svc: svc, clock: clk}
}

func registerTools(server *sdkmcp.Server, h *handler) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "start_fast",
		Description: "Start a new fast now. Fails with ACTIVE_FAST_EXISTS if one is already running.",
	}, h.startFast)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "end_fast",
		Description: "End an active fast now, optionally recording mood and energy level.",
	}, h.endFast)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "delete_fast",
		Description: "Delete a fast regardless of its status.",
	}, h.deleteFast)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "clear_fasts",
		Description: "Delete every fast of the current user in one atomic batch.",
	}, h.clearFasts)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_fasts",
		Description: "Get the reconciled fasting state: the active fast, if any, and history newest first.",
	}, h.getFasts)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_stats",
		Description: "Summarize fasting history: totals, averages, goals met and day streaks.",
	}, h.getStats)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_leaderboard",
		Description: "Rank users by total minutes of completed fasts.",
	}, h.getLeaderboard)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_protocols",
		Description: "List fasting protocols and their fasting windows.",
	}, h.listProtocols)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_recent_activity",
		Description: "List recent lifecycle events, including automatic corrections.",
	}, h.getRecentActivity)
}

func (h *handler) startFast(ctx context.Context, _ *sdkmcp.CallToolRequest, in StartFastParams) (*sdkmcp.CallToolResult, FastResponse, error) {
	userID := getUserID(ctx)
	// The active-fast check reads the tracked state.
	if _, err := h.svc.Tracker.Ensure(ctx, userID); err != nil {
		return nil, FastResponse{}, toolError(err)
	}

	req := fast.StartRequest{}
	if in.Protocol != "" {
		req.Protocol = &in.Protocol
	}
	if in.Notes != "" {
		req.Notes = &in.Notes
	}
	sess, err := h.svc.Fasts.Start(ctx, userID, req)
	if err != nil {
		return nil, FastResponse{}, toolError(err)
	}
	return nil, FastResponse{Fast: *sess}, nil
}

func (h *handler) endFast(ctx context.Context, _ *sdkmcp.CallToolRequest, in EndFastParams) (*sdkmcp.CallToolResult, FastResponse, error) {
	if in.ID == "" {
		return nil, FastResponse{}, toolError(fmt.Errorf("%w: id is required", errInvalidParams))
	}
	userID := getUserID(ctx)
	if _, err := h.svc.Tracker.Ensure(ctx, userID); err != nil {
		return nil, FastResponse{}, toolError(err)
	}

	sess, err := h.svc.Fasts.End(ctx, userID, fast.EndRequest{
		ID:          in.ID,
		Mood:        in.Mood,
		EnergyLevel: in.EnergyLevel,
	})
	if err != nil {
		return nil, FastResponse{}, toolError(err)
	}
	return nil, FastResponse{Fast: *sess}, nil
}

func (h *handler) deleteFast(ctx context.Context, _ *sdkmcp.CallToolRequest, in DeleteFastParams) (*sdkmcp.CallToolResult, DeleteFastResponse, error) {
	if in.ID == "" {
		return nil, DeleteFastResponse{}, toolError(fmt.Errorf("%w: id is required", errInvalidParams))
	}
	if err := h.svc.Fasts.Delete(ctx, getUserID(ctx), in.ID); err != nil {
		return nil, DeleteFastResponse{}, toolError(err)
	}
	return nil, DeleteFastResponse{Deleted: in.ID}, nil
}

func (h *handler) clearFasts(ctx context.Context, _ *sdkmcp.CallToolRequest, in ClearFastsParams) (*sdkmcp.CallToolResult, ClearFastsResponse, error) {
	if !in.Confirm {
		return nil, ClearFastsResponse{}, toolError(fmt.Errorf("%w: confirm must be true", errInvalidParams))
	}
	if err := h.svc.Fasts.ClearAll(ctx, getUserID(ctx)); err != nil {
		return nil, ClearFastsResponse{}, toolError(err)
	}
	return nil, ClearFastsResponse{Cleared: true}, nil
}

func (h *handler) getFasts(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetFastsParams) (*sdkmcp.CallToolResult, StateResponse, error) {
	if in.Limit < 0 {
		return nil, StateResponse{}, toolError(fmt.Errorf("%w: limit must not be negative", errInvalidParams))
	}
	st, err := h.svc.Tracker.Ensure(ctx, getUserID(ctx))
	if err != nil {
		return nil, StateResponse{}, toolError(err)
	}

	resp := StateResponse{
		UserID:   st.UserID,
		Active:   st.Active,
		Sessions: st.Sessions,
		Total:    len(st.Sessions),
	}
	if resp.Sessions == nil {
		resp.Sessions = []fast.Session{}
	}
	if in.Limit > 0 && len(resp.Sessions) > in.Limit {
		resp.Sessions = resp.Sessions[:in.Limit]
	}
	if st.Active != nil {
		if elapsed := h.clock.Now().Sub(st.Active.StartTime); elapsed > 0 {
			resp.ElapsedMinutes = int(elapsed.Minutes())
		}
		if target, ok := fast.Target(*st.Active, h.svc.Protocols); ok {
			resp.TargetMinutes = int(target.Minutes())
		}
	}
	return nil, resp, nil
}

func (h *handler) getStats(ctx context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, StatsResponse, error) {
	sum, err := h.svc.Stats.Summary(ctx, getUserID(ctx))
	if err != nil {
		return nil, StatsResponse{}, toolError(err)
	}
	if sum.ByProtocol == nil {
		sum.ByProtocol = map[string]int{}
	}
	return nil, StatsResponse{Summary: *sum}, nil
}

func (h *handler) getLeaderboard(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetLeaderboardParams) (*sdkmcp.CallToolResult, LeaderboardResponse, error) {
	entries, err := h.svc.Stats.Leaderboard(ctx, in.Limit)
	if err != nil {
		return nil, LeaderboardResponse{}, toolError(err)
	}
	if entries == nil {
		entries = []stats.LeaderboardEntry{}
	}
	return nil, LeaderboardResponse{Entries: entries}, nil
}

func (h *handler) listProtocols(_ context.Context, _ *sdkmcp.CallToolRequest, _ struct{}) (*sdkmcp.CallToolResult, ProtocolsResponse, error) {
	list := h.svc.Protocols.List()
	if list == nil {
		list = []protocol.Protocol{}
	}
	return nil, ProtocolsResponse{Protocols: list}, nil
}

func (h *handler) getRecentActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetRecentActivityParams) (*sdkmcp.CallToolResult, ActivityResponse, error) {
	opts := activity.ListActivityOptions{
		Limit:  in.Limit,
		Offset: in.Offset,
	}
	if in.FastID != "" {
		opts.FastID = &in.FastID
	}
	if in.Type != "" {
		activityType := activity.ActivityType(in.Type)
		opts.ActivityType = &activityType
	}

	entries, err := h.svc.Activity.GetRecentActivity(ctx, getUserID(ctx), opts)
	if err != nil {
		return nil, ActivityResponse{}, toolError(err)
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	return nil, ActivityResponse{Entries: entries}, nil
}
