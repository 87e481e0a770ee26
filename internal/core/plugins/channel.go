package plugins

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/haasonsaas/nexus/internal/mcp"
	"github.com/haasonsaas/nexus/pkg/models"
)

// ChannelRunner implements internal/core/channels.Adapter for a
// channel plugin (spec §4.3's final paragraph): a long-running child
// process started at Start, spoken to over stdin with JSON-RPC 2.0
// requests on every Send, and killed on Stop.
//
// Grounded on internal/mcp/transport_stdio.go's StdioTransport
// (stdin/stdout pipes, line-delimited JSON-RPC, a monotonic request-ID
// counter) — this repository's own JSON-RPC wire types are reused
// directly rather than redefined, since channel plugins and MCP
// servers speak the same protocol over the same transport shape.
type ChannelRunner struct {
	info   ChannelPluginInfo
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	running atomic.Bool
	nextID  atomic.Int64
}

// NewChannelRunner builds a runner for a channel plugin already
// validated by DiscoverChannelPlugins.
func NewChannelRunner(info ChannelPluginInfo, logger *slog.Logger) *ChannelRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelRunner{info: info, logger: logger.With("plugin", info.Manifest.Name)}
}

func (r *ChannelRunner) Name() string { return r.info.Manifest.Name }

func (r *ChannelRunner) IsRunning() bool { return r.running.Load() }

// IsAllowed defers to the plugin process itself; the plugin protocol
// has no allowlist RPC method, so every user is permitted at this
// layer and access control is the plugin's own responsibility.
func (r *ChannelRunner) IsAllowed(string) bool { return true }

// Start launches the plugin binary as a child process and keeps its
// stdin open for subsequent Send calls.
func (r *ChannelRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd := exec.CommandContext(ctx, r.info.BinaryPath)
	cmd.Dir = r.info.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("channel plugin %s: stdin pipe: %w", r.info.Manifest.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("channel plugin %s: stdout pipe: %w", r.info.Manifest.Name, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("channel plugin %s: start: %w", r.info.Manifest.Name, err)
	}

	r.cmd = cmd
	r.stdin = stdin
	r.running.Store(true)

	go r.drainResponses(stdout)

	return nil
}

// drainResponses logs every JSON-RPC response line the plugin writes
// to stdout; the runner is fire-and-forget from the agent's
// perspective (spec §4.3 describes Send as a one-way notification into
// the plugin's stdin), so responses are observed only for logging.
func (r *ChannelRunner) drainResponses(stdout io.ReadCloser) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var resp mcp.JSONRPCResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			r.logger.Warn("channel plugin: unparseable response line", "error", err)
			continue
		}
		if resp.Error != nil {
			r.logger.Warn("channel plugin: send reported an error", "code", resp.Error.Code, "message", resp.Error.Message)
		}
	}
}

// Stop kills the child process. Safe to call on a runner that was
// never started.
func (r *ChannelRunner) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Load() {
		return nil
	}
	r.running.Store(false)
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	return r.cmd.Process.Kill()
}

// Send writes msg to the plugin's stdin as a JSON-RPC 2.0 "send"
// request.
func (r *ChannelRunner) Send(_ context.Context, msg models.OutboundMessage) error {
	r.mu.Lock()
	stdin := r.stdin
	r.mu.Unlock()

	if stdin == nil {
		return fmt.Errorf("channel plugin %s: not running", r.info.Manifest.Name)
	}

	params, err := json.Marshal(struct {
		ChatID  string `json:"chat_id"`
		Content string `json:"content"`
	}{ChatID: msg.ChatID, Content: msg.Content})
	if err != nil {
		return err
	}

	req := mcp.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      r.nextID.Add(1),
		Method:  "send",
		Params:  params,
	}
	line, err := json.Marshal(req)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.stdin.Write(line)
	return err
}
