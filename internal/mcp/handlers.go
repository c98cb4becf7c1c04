package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// NetworkRequest represents the arguments for sync and warm.
type NetworkRequest struct {
	Network string `json:"network,omitempty"`
}

// PhotosRequest represents the arguments for photos.
type PhotosRequest struct {
	Network string `json:"network,omitempty"`
	All     bool   `json:"all,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// LastViewedRequest represents the arguments for last_viewed.
type LastViewedRequest struct {
	Index *int   `json:"index,omitempty"`
	ID    string `json:"id,omitempty"`
}

// HistoryRequest represents the arguments for history.
type HistoryRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ExportRequest represents the arguments for export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// Handler implementations

// HandleSync handles the sync tool call.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NetworkRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Sync(ctx, h.env, ops.SyncInput{Network: input.Network, Trigger: "mcp"})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleWarm handles the warm tool call.
func (h *Handlers) HandleWarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NetworkRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Warm(ctx, h.env, ops.WarmInput{Network: input.Network})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePhotos handles the photos tool call.
func (h *Handlers) HandlePhotos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PhotosRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Photos(h.env, ops.PhotosInput{
		All:     input.All,
		Network: input.Network,
		Tag:     input.Tag,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStatus handles the status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Status(ctx, h.env)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLastViewed handles the last_viewed tool call.
func (h *Handlers) HandleLastViewed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LastViewedRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.LastViewed(ctx, h.env, ops.LastViewedInput{Index: input.Index, ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.History(ctx, h.env, ops.HistoryInput{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Export(ctx, h.env, ops.ExportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if fErr, ok := errors.As(err); ok {
		message := fErr.Message
		// Keep wrapper context (e.g. "items[2]: ...") when the coded error is wrapped.
		if err != error(fErr) {
			message = err.Error()
		}
		errorObj := map[string]any{
			"code":    fErr.Code,
			"message": message,
			"status":  fErr.Status,
		}
		if fErr.Code != errors.ErrInternal && fErr.Details != nil {
			errorObj["details"] = fErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
