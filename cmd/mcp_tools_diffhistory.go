package cmd

import (
	"context"
	"fmt"

	"github.com/josephgoksu/TaskWing/internal/difhist"
	"github.com/josephgoksu/TaskWing/types"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterDiffHistoryTools wires the diff history engine into the MCP
// server: status/accept/reject/revert over the agent's pending edits, for
// tool-driven reviewers that don't shell out to the CLI.
func RegisterDiffHistoryTools(server *mcp.Server) error {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "diff-status",
		Description: "List file changes the assistant has made but the user has not yet accepted or rejected",
	}, diffStatusMCPHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diff-accept",
		Description: "Accept pending agent edits, optionally scoped to specific paths",
	}, diffAcceptMCPHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diff-reject",
		Description: "Reject pending agent edits and restore the prior on-disk content, optionally scoped to specific paths",
	}, diffRejectMCPHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diff-revert",
		Description: "Rewind the working tree to the state before a given user message",
	}, diffRevertMCPHandler())

	return nil
}

func withDiffHistoryService[T any](fn func(*difhist.DiffHistoryService) (*mcp.CallToolResultFor[T], error)) (*mcp.CallToolResultFor[T], error) {
	svc, _, err := diffHistoryServiceForCLI()
	if err != nil {
		return nil, types.NewMCPError("DIFF_HISTORY_INIT", err.Error(), nil)
	}
	return fn(svc)
}

func diffStatusMCPHandler() mcp.ToolHandlerFor[struct{}, types.DiffStatusResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[struct{}]) (*mcp.CallToolResultFor[types.DiffStatusResponse], error) {
		return withDiffHistoryService(func(svc *difhist.DiffHistoryService) (*mcp.CallToolResultFor[types.DiffStatusResponse], error) {
			diffs := svc.GetDiff()
			resp := types.DiffStatusResponse{Files: make([]types.DiffFileEntry, 0, len(diffs)), Count: len(diffs)}
			for _, d := range diffs {
				resp.Files = append(resp.Files, types.DiffFileEntry{Path: d.Path, Before: d.Before, After: d.After})
			}
			return &mcp.CallToolResultFor[types.DiffStatusResponse]{
				StructuredContent: resp,
				Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%d file(s) pending", resp.Count)}},
			}, nil
		})
	}
}

func diffAcceptMCPHandler() mcp.ToolHandlerFor[types.DiffAcceptParams, types.DiffApplyResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.DiffAcceptParams]) (*mcp.CallToolResultFor[types.DiffApplyResponse], error) {
		args := params.Arguments
		return withDiffHistoryService(func(svc *difhist.DiffHistoryService) (*mcp.CallToolResultFor[types.DiffApplyResponse], error) {
			if len(args.Paths) == 0 {
				svc.AcceptPendingChanges()
				resp := types.DiffApplyResponse{}
				return &mcp.CallToolResultFor[types.DiffApplyResponse]{
					StructuredContent: resp,
					Content:           []mcp.Content{&mcp.TextContent{Text: "Accepted all pending changes"}},
				}, nil
			}
			if err := svc.PartialAccept(args.Paths); err != nil {
				return nil, types.NewMCPError("DIFF_ACCEPT", err.Error(), nil)
			}
			resp := types.DiffApplyResponse{Paths: args.Paths}
			return &mcp.CallToolResultFor[types.DiffApplyResponse]{
				StructuredContent: resp,
				Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Accepted %d path(s)", len(args.Paths))}},
			}, nil
		})
	}
}

func diffRejectMCPHandler() mcp.ToolHandlerFor[types.DiffRejectParams, types.DiffApplyResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.DiffRejectParams]) (*mcp.CallToolResultFor[types.DiffApplyResponse], error) {
		args := params.Arguments
		return withDiffHistoryService(func(svc *difhist.DiffHistoryService) (*mcp.CallToolResultFor[types.DiffApplyResponse], error) {
			var plan difhist.FilePlan
			var err error
			if len(args.Paths) == 0 {
				plan, err = svc.RejectPendingChanges(ctx)
			} else {
				plan, err = svc.PartialReject(ctx, args.Paths)
			}
			if err != nil {
				return nil, types.NewMCPError("DIFF_REJECT", err.Error(), nil)
			}
			resp := diffApplyResponseFromPlan(plan)
			return &mcp.CallToolResultFor[types.DiffApplyResponse]{
				StructuredContent: resp,
				Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Rejected: %d write(s), %d delete(s)", resp.Written, resp.Deleted)}},
			}, nil
		})
	}
}

func diffRevertMCPHandler() mcp.ToolHandlerFor[types.DiffRevertParams, types.DiffApplyResponse] {
	return func(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[types.DiffRevertParams]) (*mcp.CallToolResultFor[types.DiffApplyResponse], error) {
		id := params.Arguments.UserMessageID
		return withDiffHistoryService(func(svc *difhist.DiffHistoryService) (*mcp.CallToolResultFor[types.DiffApplyResponse], error) {
			plan, ok := svc.RevertToMessage(ctx, id)
			if !ok {
				return nil, types.NewMCPError("DIFF_REVERT_NOT_FOUND", fmt.Sprintf("no history entry for message %q", id), map[string]interface{}{"userMessageId": id})
			}
			resp := diffApplyResponseFromPlan(plan)
			return &mcp.CallToolResultFor[types.DiffApplyResponse]{
				StructuredContent: resp,
				Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Reverted: %d write(s), %d delete(s)", resp.Written, resp.Deleted)}},
			}, nil
		})
	}
}

func diffApplyResponseFromPlan(plan difhist.FilePlan) types.DiffApplyResponse {
	paths := make([]string, 0, len(plan.Writes)+len(plan.Deletes))
	for p := range plan.Writes {
		paths = append(paths, p)
	}
	paths = append(paths, plan.Deletes...)
	return types.DiffApplyResponse{Written: len(plan.Writes), Deleted: len(plan.Deletes), Paths: paths}
}
