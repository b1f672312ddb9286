package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `fastwatch tracks intermittent fasting for the authenticated user.

Core concepts:
- Fast: one fasting interval. Status is active or completed; a completed fast never becomes active again.
- Protocol: a named schedule (16:8, omad, ...) with a fasting target. "custom" or no protocol means open-ended.
- At most one fast is active at a time. If several are found, the newest survives and older ones are completed at the current time.
- A fast that runs more than two hours past its protocol target is completed automatically at its target end time.

Workflow:
1) Call get_fasts to see the active fast and history.
2) start_fast begins a fast now; it fails with ACTIVE_FAST_EXISTS while one is running.
3) end_fast completes a fast now; mood and energy_level are optional.
4) delete_fast and clear_fasts remove history. clear_fasts requires confirm=true.
5) get_stats, get_leaderboard and get_recent_activity report on history.

Docs:
- fastwatch://docs/lifecycle (states, automatic corrections, error codes)
- fastwatch://docs/protocols (current protocol catalog)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     func() string
}

func staticDoc(content string) func() string {
	return func() string { return content }
}

const lifecycleDoc = `# Fast lifecycle

## States

- **active**: started, no end time, duration 0.
- **completed**: end time set, duration in whole minutes (rounded down).

Deletion is separate from status and can target either state.

## Automatic corrections

Every change to a user's fasts is reconciled:

1. Fasts starting before 2000-01-01 are ignored.
2. If more than one fast is active, the one with the latest start survives. Each older one is completed with end = now and duration = minutes since its start. Activity type: ` + "`fast_superseded`" + `.
3. If the surviving fast has a protocol target and has run longer than target + 120 minutes, it is completed with end = start + target and duration = target. Activity type: ` + "`fast_auto_completed`" + `.

Corrections are written back in the background. A failed write is retried on the next change.

## Error codes

| Code | Meaning |
|---|---|
| ACTIVE_FAST_EXISTS | start_fast while a fast is active |
| FAST_NOT_FOUND | the id is not in the current set |
| ALREADY_COMPLETED | end_fast on a completed fast |
| UNKNOWN_PROTOCOL | protocol id is not in the catalog |
| STORE_UNAVAILABLE | storage failed; retry later |
| INVALID_INPUT | missing or malformed arguments |
`

func docResources(protocols ProtocolCatalog) []docResource {
	return []docResource{
		{
			URI:         "fastwatch://docs/lifecycle",
			Name:        "docs_lifecycle",
			Title:       "Fast lifecycle",
			Description: "States, automatic corrections and tool error codes.",
			Content:     staticDoc(lifecycleDoc),
		},
		{
			URI:         "fastwatch://docs/protocols",
			Name:        "docs_protocols",
			Title:       "Protocol catalog",
			Description: "Fasting protocols currently available to start_fast.",
			Content:     func() string { return renderProtocols(protocols) },
		},
	}
}

func renderProtocols(protocols ProtocolCatalog) string {
	var b strings.Builder
	b.WriteString("# Protocols\n\n| id | name | fasting hours | eating hours |\n|---|---|---|---|\n")
	if protocols == nil {
		return b.String()
	}
	for _, p := range protocols.List() {
		fasting := "-"
		if target, ok := p.Target(); ok {
			fasting = fmt.Sprintf("%d", int(target.Hours()))
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %d |\n", p.ID, p.Name, fasting, p.EatingHours)
	}
	return b.String()
}

func registerDocResources(server *sdkmcp.Server, protocols ProtocolCatalog) {
	for _, doc := range docResources(protocols) {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content(),
				}},
			}, nil
		})
	}
}
