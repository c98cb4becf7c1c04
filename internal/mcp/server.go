package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/funnier/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"photoset_sync": {
		def:     syncToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSync },
	},
	"photoset_warm": {
		def:     warmToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWarm },
	},
	"photoset_photos": {
		def:     photosToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePhotos },
	},
	"photoset_status": {
		def:     statusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus },
	},
	"photoset_last_viewed": {
		def:     lastViewedToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLastViewed },
	},
	"photoset_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"photoset_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with the photoset tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(env *ops.Env, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"funnier",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(env)

	for _, name := range ValidateDisabledTools(env.Config.DisabledTools) {
		env.Logger.Warn("unknown tool in disabled_tools", zap.String("tool", name))
	}

	disabled := make(map[string]bool)
	for _, name := range env.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(env *ops.Env, version string) error {
	s := NewServer(env, version)
	return server.ServeStdio(s)
}
