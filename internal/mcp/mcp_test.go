package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/funnier/internal/config"
	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/flickr/flickrtest"
	"github.com/hpungsan/funnier/internal/ops"
)

var updated = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testSetup opens an Env against a fake photoset holding ids.
func testSetup(t *testing.T, network string, ids ...string) (*ops.Env, *flickrtest.Server) {
	t.Helper()

	srv := flickrtest.NewServer(t)
	photos := make([]flickrtest.Photo, 0, len(ids))
	for _, id := range ids {
		photos = append(photos, flickrtest.Photo{ID: id, Title: "Cartoon " + id, Tags: []string{"daily"}})
	}
	srv.SetPhotos(updated, photos...)

	cfg := config.DefaultConfig()
	cfg.PhotosetID = "72157"
	cfg.APIBaseURL = srv.APIURL()
	cfg.APITimeout = config.Duration(5 * time.Second)
	cfg.Network = network

	env, err := ops.Open(context.Background(), t.TempDir(), cfg, ops.OpenOptions{})
	if err != nil {
		t.Fatalf("failed to open env: %v", err)
	}
	t.Cleanup(func() { env.Close() })

	return env, srv
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleSync(t *testing.T) {
	env, _ := testSetup(t, "unmetered", "a", "b", "c")
	h := NewHandlers(env)

	t.Run("first sync", func(t *testing.T) {
		result, err := h.HandleSync(context.Background(), makeRequest(nil))
		if err != nil {
			t.Fatalf("HandleSync error: %v", err)
		}
		output := parseOutput(t, result)

		if output["total"] != float64(3) {
			t.Errorf("total = %v, want 3", output["total"])
		}
		if output["new"] != float64(3) {
			t.Errorf("new = %v, want 3", output["new"])
		}
		if output["downloaded"] != float64(3) {
			t.Errorf("downloaded = %v, want 3", output["downloaded"])
		}
		if output["network"] != "unmetered" {
			t.Errorf("network = %v, want unmetered", output["network"])
		}
	})

	t.Run("second sync is up to date", func(t *testing.T) {
		result, err := h.HandleSync(context.Background(), makeRequest(nil))
		if err != nil {
			t.Fatalf("HandleSync error: %v", err)
		}
		output := parseOutput(t, result)
		if output["up_to_date"] != true {
			t.Errorf("up_to_date = %v, want true", output["up_to_date"])
		}
		if output["new"] != float64(0) {
			t.Errorf("new = %v, want 0", output["new"])
		}
	})

	t.Run("invalid network", func(t *testing.T) {
		result, err := h.HandleSync(context.Background(), makeRequest(map[string]any{"network": "dialup"}))
		if err != nil {
			t.Fatalf("HandleSync error: %v", err)
		}
		assertErrorCode(t, result, "INVALID_REQUEST")
	})

	t.Run("records mcp trigger", func(t *testing.T) {
		result, err := h.HandleHistory(context.Background(), makeRequest(map[string]any{"limit": 1}))
		if err != nil {
			t.Fatalf("HandleHistory error: %v", err)
		}
		output := parseOutput(t, result)
		items := output["items"].([]any)
		if len(items) != 1 {
			t.Fatalf("items len = %d, want 1", len(items))
		}
		run := items[0].(map[string]any)
		if run["trigger"] != "mcp" {
			t.Errorf("trigger = %v, want mcp", run["trigger"])
		}
	})
}

func TestHandleSync_RemoteFailureWithEmptyCache(t *testing.T) {
	env, srv := testSetup(t, "unmetered", "a")
	srv.SetFailing(true)
	h := NewHandlers(env)

	result, err := h.HandleSync(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleSync error: %v", err)
	}
	assertErrorCode(t, result, "TRANSPORT")
}

func TestHandleSync_RemoteFailureServesCache(t *testing.T) {
	env, srv := testSetup(t, "unmetered", "a", "b")
	h := NewHandlers(env)

	if _, err := h.HandleSync(context.Background(), makeRequest(nil)); err != nil {
		t.Fatalf("HandleSync error: %v", err)
	}
	srv.SetFailing(true)

	result, err := h.HandleSync(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleSync error: %v", err)
	}
	output := parseOutput(t, result)
	if output["stale"] != true {
		t.Errorf("stale = %v, want true", output["stale"])
	}
	if output["total"] != float64(2) {
		t.Errorf("total = %v, want 2", output["total"])
	}
}

func TestHandleWarm(t *testing.T) {
	env, srv := testSetup(t, "offline", "a", "b")
	h := NewHandlers(env)

	// Offline sync never reaches the fake, so seed metadata with an explicit network.
	if _, err := h.HandleSync(context.Background(), makeRequest(map[string]any{"network": "metered"})); err != nil {
		t.Fatalf("HandleSync error: %v", err)
	}
	_, _, imagesBefore := srv.Calls()

	t.Run("offline downloads nothing", func(t *testing.T) {
		result, err := h.HandleWarm(context.Background(), makeRequest(nil))
		if err != nil {
			t.Fatalf("HandleWarm error: %v", err)
		}
		output := parseOutput(t, result)
		if output["downloaded"] != float64(0) {
			t.Errorf("downloaded = %v, want 0", output["downloaded"])
		}
		if output["total"] != float64(2) {
			t.Errorf("total = %v, want 2", output["total"])
		}
		if _, _, images := srv.Calls(); images != imagesBefore {
			t.Errorf("image calls = %d, want %d", images, imagesBefore)
		}
	})

	t.Run("unmetered is idempotent", func(t *testing.T) {
		result, err := h.HandleWarm(context.Background(), makeRequest(map[string]any{"network": "unmetered"}))
		if err != nil {
			t.Fatalf("HandleWarm error: %v", err)
		}
		output := parseOutput(t, result)
		if output["downloaded"] != float64(0) {
			t.Errorf("downloaded = %v, want 0 (all cached by sync)", output["downloaded"])
		}
		if output["visible"] != float64(2) {
			t.Errorf("visible = %v, want 2", output["visible"])
		}
	})
}

func TestHandlePhotos(t *testing.T) {
	env, srv := testSetup(t, "unmetered", "a", "b", "c")
	h := NewHandlers(env)

	if _, err := h.HandleSync(context.Background(), makeRequest(nil)); err != nil {
		t.Fatalf("HandleSync error: %v", err)
	}

	t.Run("lists in order", func(t *testing.T) {
		result, err := h.HandlePhotos(context.Background(), makeRequest(nil))
		if err != nil {
			t.Fatalf("HandlePhotos error: %v", err)
		}
		output := parseOutput(t, result)
		if output["title"] != "Cartoons" {
			t.Errorf("title = %v, want Cartoons", output["title"])
		}
		items := output["items"].([]any)
		if len(items) != 3 {
			t.Fatalf("items len = %d, want 3", len(items))
		}
		for i, want := range []string{"a", "b", "c"} {
			item := items[i].(map[string]any)
			if item["id"] != want {
				t.Errorf("items[%d].id = %v, want %s", i, item["id"], want)
			}
			if item["url"] != srv.ImageURL(want) {
				t.Errorf("items[%d].url = %v, want %s", i, item["url"], srv.ImageURL(want))
			}
		}
	})

	t.Run("pagination", func(t *testing.T) {
		result, err := h.HandlePhotos(context.Background(), makeRequest(map[string]any{"limit": 2, "offset": 1}))
		if err != nil {
			t.Fatalf("HandlePhotos error: %v", err)
		}
		output := parseOutput(t, result)
		items := output["items"].([]any)
		if len(items) != 2 {
			t.Fatalf("items len = %d, want 2", len(items))
		}
		if items[0].(map[string]any)["index"] != float64(1) {
			t.Errorf("items[0].index = %v, want 1", items[0].(map[string]any)["index"])
		}
		page := output["pagination"].(map[string]any)
		if page["total"] != float64(3) {
			t.Errorf("pagination.total = %v, want 3", page["total"])
		}
		if page["has_more"] != false {
			t.Errorf("pagination.has_more = %v, want false", page["has_more"])
		}
	})

	t.Run("unknown tag", func(t *testing.T) {
		result, err := h.HandlePhotos(context.Background(), makeRequest(map[string]any{"tag": "sunday"}))
		if err != nil {
			t.Fatalf("HandlePhotos error: %v", err)
		}
		output := parseOutput(t, result)
		if items := output["items"].([]any); len(items) != 0 {
			t.Errorf("items len = %d, want 0", len(items))
		}
	})

	t.Run("bad argument type", func(t *testing.T) {
		result, err := h.HandlePhotos(context.Background(), makeRequest(map[string]any{"limit": "many"}))
		if err != nil {
			t.Fatalf("HandlePhotos error: %v", err)
		}
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleStatus(t *testing.T) {
	env, _ := testSetup(t, "metered", "a")
	h := NewHandlers(env)

	result, err := h.HandleStatus(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleStatus error: %v", err)
	}
	output := parseOutput(t, result)

	if output["photoset_id"] != "72157" {
		t.Errorf("photoset_id = %v, want 72157", output["photoset_id"])
	}
	if output["stale"] != true {
		t.Errorf("stale = %v, want true before any sync", output["stale"])
	}
	if output["network"] != "metered" {
		t.Errorf("network = %v, want metered", output["network"])
	}
	if _, ok := output["last_run"]; ok {
		t.Errorf("last_run present before any sync")
	}
}

func TestHandleLastViewed(t *testing.T) {
	env, _ := testSetup(t, "unmetered", "a", "b", "c")
	h := NewHandlers(env)

	if _, err := h.HandleSync(context.Background(), makeRequest(nil)); err != nil {
		t.Fatalf("HandleSync error: %v", err)
	}

	t.Run("default is zero", func(t *testing.T) {
		result, err := h.HandleLastViewed(context.Background(), makeRequest(nil))
		if err != nil {
			t.Fatalf("HandleLastViewed error: %v", err)
		}
		output := parseOutput(t, result)
		if output["index"] != float64(0) {
			t.Errorf("index = %v, want 0", output["index"])
		}
	})

	t.Run("set by index", func(t *testing.T) {
		result, err := h.HandleLastViewed(context.Background(), makeRequest(map[string]any{"index": 2}))
		if err != nil {
			t.Fatalf("HandleLastViewed error: %v", err)
		}
		output := parseOutput(t, result)
		if output["index"] != float64(2) {
			t.Errorf("index = %v, want 2", output["index"])
		}
	})

	t.Run("set by id", func(t *testing.T) {
		result, err := h.HandleLastViewed(context.Background(), makeRequest(map[string]any{"id": "b"}))
		if err != nil {
			t.Fatalf("HandleLastViewed error: %v", err)
		}
		output := parseOutput(t, result)
		if output["index"] != float64(1) {
			t.Errorf("index = %v, want 1", output["index"])
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		result, err := h.HandleLastViewed(context.Background(), makeRequest(map[string]any{"id": "zzz"}))
		if err != nil {
			t.Fatalf("HandleLastViewed error: %v", err)
		}
		assertErrorCode(t, result, "NOT_FOUND")
	})

	t.Run("index and id", func(t *testing.T) {
		result, err := h.HandleLastViewed(context.Background(), makeRequest(map[string]any{"id": "a", "index": 0}))
		if err != nil {
			t.Fatalf("HandleLastViewed error: %v", err)
		}
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleExport(t *testing.T) {
	env, _ := testSetup(t, "unmetered", "a", "b")
	h := NewHandlers(env)

	if _, err := h.HandleSync(context.Background(), makeRequest(nil)); err != nil {
		t.Fatalf("HandleSync error: %v", err)
	}

	result, err := h.HandleExport(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleExport error: %v", err)
	}
	output := parseOutput(t, result)
	if output["count"] != float64(2) {
		t.Errorf("count = %v, want 2", output["count"])
	}
	if path, _ := output["path"].(string); !strings.HasSuffix(path, ".jsonl") {
		t.Errorf("path = %v, want .jsonl file", output["path"])
	}

	t.Run("path outside exports", func(t *testing.T) {
		result, err := h.HandleExport(context.Background(), makeRequest(map[string]any{"path": "/etc/cartoons.jsonl"}))
		if err != nil {
			t.Fatalf("HandleExport error: %v", err)
		}
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestServerRegistration(t *testing.T) {
	env, _ := testSetup(t, "offline")

	s := NewServer(env, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"photoset_sync",
		"photoset_warm",
		"photoset_photos",
		"photoset_status",
		"photoset_last_viewed",
		"photoset_history",
		"photoset_export",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	env, _ := testSetup(t, "offline")

	env.Config.DisabledTools = []string{"photoset_sync", "photoset_export", "photoset_sync", "not_a_tool"}
	s := NewServer(env, "test")
	tools := s.ListTools()

	if len(tools) != 5 {
		t.Errorf("registered tool count = %d, want 5", len(tools))
	}
	for _, name := range []string{"photoset_sync", "photoset_export"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	if _, ok := tools["photoset_photos"]; !ok {
		t.Error("photoset_photos should be registered")
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	env, _ := testSetup(t, "offline")

	env.Config.DisabledTools = AllToolNames()
	s := NewServer(env, "test")

	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{
			name:    "all valid",
			input:   []string{"photoset_sync", "photoset_warm"},
			wantLen: 0,
		},
		{
			name:    "one unknown",
			input:   []string{"photoset_sync", "fake_tool"},
			wantLen: 1,
		},
		{
			name:    "all unknown",
			input:   []string{"store", "fetch", "purge"},
			wantLen: 3,
		},
		{
			name:    "empty list",
			input:   []string{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	if len(names) != 7 {
		t.Errorf("AllToolNames() returned %d names, want 7", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("AllToolNames() not sorted: %v", names)
		}
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("photo 2: %w", errors.NewNotFound("b"))

	r := errorResult(wrappedErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	msg := errObj["message"].(string)
	if !strings.Contains(msg, "photo 2") {
		t.Errorf("message should contain wrapper context 'photo 2', got: %s", msg)
	}
}

func TestErrorResult_PlainErrorIsInternal(t *testing.T) {
	r := errorResult(fmt.Errorf("disk on fire"))

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if strings.Contains(errObj["message"].(string), "disk") {
		t.Errorf("message leaks internal error: %v", errObj["message"])
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("abc"))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload")
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error %s, got success: %s", expectedCode, extractErrorMessage(result))
		return
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("got error code %v, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}

func TestDecode(t *testing.T) {
	t.Run("no arguments", func(t *testing.T) {
		got, err := decode[PhotosRequest](makeRequest(nil))
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if got.Limit != 0 || got.All {
			t.Errorf("decode = %+v, want zero value", got)
		}
	})

	t.Run("typed fields", func(t *testing.T) {
		got, err := decode[PhotosRequest](makeRequest(map[string]any{"all": true, "tag": "daily", "limit": 5}))
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if !got.All || got.Tag != "daily" || got.Limit != 5 {
			t.Errorf("decode = %+v", got)
		}
	})

	t.Run("type mismatch names field", func(t *testing.T) {
		_, err := decode[PhotosRequest](makeRequest(map[string]any{"limit": "many"}))
		if !errors.Is(err, errors.ErrInvalidRequest) {
			t.Fatalf("error = %v, want INVALID_REQUEST", err)
		}
		if !strings.Contains(err.Error(), "limit") {
			t.Errorf("error = %v, want it to name limit", err)
		}
	})
}
