package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/agentmesh/mcpbus/internal/collab"
	"github.com/agentmesh/mcpbus/internal/common/config"
	"github.com/agentmesh/mcpbus/internal/common/mcperr"
	"github.com/agentmesh/mcpbus/internal/containerexec"
)

// allowedRoots are the filesystem roots file-read/file-write may touch
// (spec §4.5 "File-system safety").
var allowedRoots = []string{"/tmp", "/home", "/var/tmp"}

// RegisterBuiltins installs the six core tools of spec §4.5: web-search
// (public), file-read (restricted), file-write (restricted), screenshot
// (restricted), system-info (public), execute-code (supervised).
func RegisterBuiltins(r *Registry, cfg config.ToolsConfig, automation collab.AutomationBackend, runner CodeRunner) {
	if len(cfg.AllowedRootsList()) > 0 {
		allowedRoots = cfg.AllowedRootsList()
	}

	r.RegisterTool("web-search", webSearchTool, PermissionPublic,
		"Search the web for information (requires an external search provider; returns a not-configured result when none is wired).",
		map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
			"required":   []interface{}{"query"},
		})

	r.RegisterTool("file-read", fileReadTool, PermissionRestricted,
		"Read a file from an allowed filesystem root.",
		map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"path": map[string]interface{}{"type": "string"}},
			"required":   []interface{}{"path"},
		})

	r.RegisterTool("file-write", fileWriteTool, PermissionRestricted,
		"Write a file under an allowed filesystem root, creating parent directories as needed.",
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path":    map[string]interface{}{"type": "string"},
				"content": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"path", "content"},
		})

	r.RegisterTool("screenshot", screenshotTool(automation), PermissionRestricted,
		"Capture a screenshot via the configured automation backend; returns a disabled result when none is wired.",
		nil)

	r.RegisterTool("system-info", systemInfoTool, PermissionPublic,
		"Report process/host counters: goroutine count, memory stats, uptime.",
		nil)

	r.RegisterTool("execute-code", executeCodeTool(cfg, runner), PermissionSupervised,
		"Execute a snippet of code in the given language with a bounded timeout.",
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"language": map[string]interface{}{"type": "string"},
				"code":     map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"language", "code"},
		})
}

func webSearchTool(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	query, _ := params["query"].(string)
	return map[string]interface{}{
		"query":   query,
		"results": []interface{}{},
		"note":    "no web-search provider configured; wire a collab.LLMProvider-adjacent search backend to enable this tool",
	}, nil
}

func resolveAllowedPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	for _, root := range allowedRoots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", &ExecutionError{
		Message: fmt.Sprintf("access denied: %s is outside the allowed roots %v", path, allowedRoots),
		Code:    mcperr.AuthorizationFailed,
	}
}

func fileReadTool(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	path, _ := params["path"].(string)
	abs, err := resolveAllowedPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}
	return map[string]interface{}{"path": abs, "content": string(data)}, nil
}

func fileWriteTool(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	path, _ := params["path"].(string)
	content, _ := params["content"].(string)
	abs, err := resolveAllowedPath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", abs, err)
	}
	return map[string]interface{}{"path": abs, "bytes_written": len(content)}, nil
}

func screenshotTool(automation collab.AutomationBackend) Func {
	return func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		if automation == nil {
			return map[string]interface{}{"disabled": true, "reason": "no automation backend configured"}, nil
		}
		img, err := automation.Screenshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("screenshot: %w", err)
		}
		return map[string]interface{}{"image_bytes": len(img)}, nil
	}
}

func systemInfoTool(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return map[string]interface{}{
		"goroutines":    runtime.NumGoroutine(),
		"alloc_bytes":   mem.Alloc,
		"sys_bytes":     mem.Sys,
		"num_gc":        mem.NumGC,
		"go_os":         runtime.GOOS,
		"go_arch":       runtime.GOARCH,
		"num_cpu":       runtime.NumCPU(),
		"process_start": processStart.Format(time.RFC3339),
		"uptime_sec":    time.Since(processStart).Seconds(),
	}, nil
}

var processStart = time.Now()

// CodeRunner executes a code snippet and returns its captured output. The
// agent-manager binary wires a DockerRunner into execute-code when Docker is
// configured and a SubprocessRunner otherwise (spec §4.5 "Code execution").
type CodeRunner interface {
	Run(ctx context.Context, language, code string, timeout time.Duration) (stdout string, exitCode int, err error)
}

// DockerRunner backs execute-code with a disposable container per run,
// grounded on internal/containerexec (adapted from the teacher's Docker
// lifecycle client).
type DockerRunner struct {
	Client *containerexec.Client
	Image  string
}

func (d *DockerRunner) Run(ctx context.Context, language, code string, timeout time.Duration) (string, int, error) {
	launcher, args, err := languageLauncher(language, code)
	if err != nil {
		return "", 0, err
	}
	cfg := containerexec.RunConfig{
		Image: d.Image,
		Cmd:   append([]string{launcher}, args...),
	}
	result, err := d.Client.WaitWithDeadline(ctx, timeout, cfg)
	if err != nil {
		if result != nil && result.TimedOut {
			return "", -1, errTimeout
		}
		return "", -1, err
	}
	return string(result.Stdout), int(result.ExitCode), nil
}

// SubprocessRunner backs execute-code with a local os/exec subprocess in a
// temporary working directory when no Docker client is configured,
// grounded on original_source/packages/cartrita-v2/py/cartrita_core/tools.py's
// subprocess-based code execution tool (no container sandboxing available
// in that fallback path, matching the original).
type SubprocessRunner struct{}

func (SubprocessRunner) Run(ctx context.Context, language, code string, timeout time.Duration) (string, int, error) {
	launcher, args, err := languageLauncher(language, code)
	if err != nil {
		return "", 0, err
	}

	workDir, err := os.MkdirTemp("", "mcpbus-exec-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, launcher, args...)
	cmd.Dir = workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err = cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return out.String(), -1, errTimeout
	}
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		return out.String(), -1, err
	}
	return out.String(), exitCode, nil
}

var errTimeout = fmt.Errorf("timeout")

func languageLauncher(language, code string) (string, []string, error) {
	switch strings.ToLower(language) {
	case "python", "python3":
		return "python3", []string{"-c", code}, nil
	case "javascript", "node", "js":
		return "node", []string{"-e", code}, nil
	case "bash", "shell", "sh":
		return "bash", []string{"-c", code}, nil
	default:
		return "", nil, fmt.Errorf("unsupported language: %s", language)
	}
}

func executeCodeTool(cfg config.ToolsConfig, runner CodeRunner) Func {
	return func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		language, _ := params["language"].(string)
		code, _ := params["code"].(string)
		if language == "" || code == "" {
			return nil, &ExecutionError{Message: "execute-code requires both language and code", Code: mcperr.InvalidParameters}
		}

		timeout := cfg.CodeExecTimeout()
		if timeout <= 0 {
			timeout = 30 * time.Second
		}

		stdout, exitCode, err := runner.Run(ctx, language, code, timeout)
		if err == errTimeout {
			return nil, &ExecutionError{Message: "execute-code timed out", Code: mcperr.TaskTimeout}
		}
		if err != nil {
			return nil, mcperr.Wrap(err, mcperr.AgentError, "execute-code failed")
		}
		return map[string]interface{}{
			"stdout":    stdout,
			"exit_code": exitCode,
		}, nil
	}
}
