package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/recall/pkg/memory"
)

var (
	memoryGetToolName    = "memory_get"
	memoryGetDescription = "Fetch the persistent memory record for a user. Returns the full record: profile, working memory, long-term knowledge, and the event timeline."

	memoryPatchToolName    = "memory_patch"
	memoryPatchDescription = "Merge a partial update into a user's persistent memory record. Nested objects deep-merge, lists append with deduplication, and events are merged through the bounded event timeline. Set events_overwrite to replace the timeline instead."
)

// MemoryGetInput represents the input arguments for the MCP memory_get tool.
type MemoryGetInput struct {
	UserID string `json:"user_id" jsonschema:"the id of the user whose memory record to fetch"`
}

// MemoryPatchInput represents the input arguments for the MCP memory_patch
// tool.
type MemoryPatchInput struct {
	UserID string         `json:"user_id" jsonschema:"the id of the user whose memory record to update"`
	Memory map[string]any `json:"memory" jsonschema:"the partial record to merge; may include profile, working_memory, long_term_knowledge, events, and events_overwrite"`
}

// MemoryOutput represents the structured output of both memory tools.
type MemoryOutput struct {
	Record *memory.Record `json:"record"`
}

// handleMemoryGet processes a memory fetch via MCP.
func (s *Server) handleMemoryGet(_ context.Context, _ *mcp.CallToolRequest, input MemoryGetInput) (*mcp.CallToolResult, MemoryOutput, error) {
	if input.UserID == "" {
		return toolError("user_id is required"), MemoryOutput{}, nil
	}

	record, err := s.config.Service.Get(input.UserID)
	if err != nil {
		return toolError(fmt.Sprintf("Memory fetch failed: %v", err)), MemoryOutput{}, nil
	}

	return toolResult(MemoryOutput{Record: record})
}

// handleMemoryPatch processes a memory update via MCP.
func (s *Server) handleMemoryPatch(ctx context.Context, _ *mcp.CallToolRequest, input MemoryPatchInput) (*mcp.CallToolResult, MemoryOutput, error) {
	if input.UserID == "" {
		return toolError("user_id is required"), MemoryOutput{}, nil
	}

	if input.Memory == nil {
		return toolError("memory is required"), MemoryOutput{}, nil
	}

	record, err := s.config.Service.Patch(ctx, input.UserID, input.Memory)
	if err != nil {
		return toolError(fmt.Sprintf("Memory patch failed: %v", err)), MemoryOutput{}, nil
	}

	return toolResult(MemoryOutput{Record: record})
}

func toolError(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
	}
}

func toolResult(output MemoryOutput) (*mcp.CallToolResult, MemoryOutput, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize record: %v", err)), MemoryOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
