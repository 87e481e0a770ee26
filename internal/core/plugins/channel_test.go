package plugins

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/mcp"
	"github.com/haasonsaas/nexus/pkg/models"
)

// writeCatPlugin writes a tiny shell script that copies its stdin to
// outPath, one line at a time, so tests can assert on what the runner
// wrote without needing a real channel-plugin binary.
func writeCatPlugin(t *testing.T, dir, outPath string) string {
	t.Helper()
	script := "#!/bin/sh\ncat > " + outPath + "\n"
	path := filepath.Join(dir, "plugin.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake plugin: %v", err)
	}
	return path
}

func TestChannelRunnerSendWritesJSONRPCRequest(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.jsonl")
	binPath := writeCatPlugin(t, dir, outPath)

	info := ChannelPluginInfo{
		Manifest:   ChannelManifest{Name: "irc", Version: "1.0.0", Binary: "plugin.sh"},
		Dir:        dir,
		BinaryPath: binPath,
	}
	runner := NewChannelRunner(info, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !runner.IsRunning() {
		t.Fatal("expected runner to report running after Start")
	}

	if err := runner.Send(ctx, models.OutboundMessage{ChatID: "room-1", Content: "hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := runner.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if runner.IsRunning() {
		t.Fatal("expected runner to report stopped after Stop")
	}

	// Give the killed subprocess a moment to flush its write.
	var data []byte
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		b, err := os.ReadFile(outPath)
		if err == nil && len(b) > 0 {
			data = b
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(data) == 0 {
		t.Fatal("expected the plugin to have received a line on stdin")
	}

	var req mcp.JSONRPCRequest
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &req); err != nil {
		t.Fatalf("unmarshal request line: %v", err)
	}
	if req.JSONRPC != "2.0" || req.Method != "send" {
		t.Fatalf("unexpected request: %+v", req)
	}

	var params struct {
		ChatID  string `json:"chat_id"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if params.ChatID != "room-1" || params.Content != "hello" {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestChannelRunnerStopIsSafeWithoutStart(t *testing.T) {
	runner := NewChannelRunner(ChannelPluginInfo{Manifest: ChannelManifest{Name: "irc"}}, nil)
	if err := runner.Stop(context.Background()); err != nil {
		t.Fatalf("expected Stop without Start to be a no-op, got %v", err)
	}
}

func TestChannelRunnerSendBeforeStartErrors(t *testing.T) {
	runner := NewChannelRunner(ChannelPluginInfo{Manifest: ChannelManifest{Name: "irc"}}, nil)
	err := runner.Send(context.Background(), models.OutboundMessage{ChatID: "x", Content: "y"})
	if err == nil {
		t.Fatal("expected error sending before Start")
	}
}

func TestChannelRunnerNameAndIsAllowed(t *testing.T) {
	runner := NewChannelRunner(ChannelPluginInfo{Manifest: ChannelManifest{Name: "irc"}}, nil)
	if runner.Name() != "irc" {
		t.Fatalf("unexpected name: %s", runner.Name())
	}
	if !runner.IsAllowed("anyone") {
		t.Fatal("expected IsAllowed to default true, deferring access control to the plugin itself")
	}
}
