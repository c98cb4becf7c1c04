package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var networkValues = []string{"offline", "metered", "unmetered"}

func withNetwork() mcp.ToolOption {
	return mcp.WithString("network",
		mcp.Description("Connectivity class to act under. Defaults to the detected network."),
		mcp.Enum(networkValues...),
	)
}

var syncToolDef = mcp.NewTool("photoset_sync",
	mcp.WithDescription("Refresh the photoset from the remote API, merge new photos and download missing images within the network's budget. Does nothing when the remote photoset is unchanged."),
	withNetwork(),
)

var warmToolDef = mcp.NewTool("photoset_warm",
	mcp.WithDescription("Download missing images for the cached photoset without refreshing metadata. Offline does nothing; metered stops at the byte budget."),
	withNetwork(),
)

var photosToolDef = mcp.NewTool("photoset_photos",
	mcp.WithDescription("List cached photos in photoset order. By default only photos displayable under the network are returned."),
	withNetwork(),
	mcp.WithBoolean("all", mcp.Description("Return every photo, including ones whose image is not cached")),
	mcp.WithString("tag", mcp.Description("Only photos with this tag")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Page offset")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var statusToolDef = mcp.NewTool("photoset_status",
	mcp.WithDescription("Summarize the cached photoset: counts, staleness, network, blob cache size and the last sync run."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var lastViewedToolDef = mcp.NewTool("photoset_last_viewed",
	mcp.WithDescription("Get the last viewed photo position, or set it by index or photo id."),
	mcp.WithNumber("index", mcp.Description("Position to store")),
	mcp.WithString("id", mcp.Description("Photo id whose position to store; also marks it viewed")),
)

var historyToolDef = mcp.NewTool("photoset_history",
	mcp.WithDescription("List recorded sync attempts, newest first."),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Page offset")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("photoset_export",
	mcp.WithDescription("Write the cached photo list to a JSONL file in the exports directory."),
	mcp.WithString("path", mcp.Description("Target .jsonl file directly inside the exports directory")),
)
