// Package containerexec wraps the Docker SDK to run disposable,
// resource-bounded containers for the tool registry's execute-code tool
// (spec.md §4.5). Adapted from the teacher's internal/agent/docker client,
// trimmed to the create/start/wait/logs/remove subset a one-shot code
// execution needs and stripped of the teacher's interactive-attach/ACP
// plumbing, which has no equivalent in this bus.
package containerexec

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/agentmesh/mcpbus/internal/common/config"
	"github.com/agentmesh/mcpbus/internal/common/logger"
)

// RunConfig describes a single disposable container run.
type RunConfig struct {
	Image      string
	Cmd        []string
	Env        []string
	WorkingDir string
	Mounts     []MountConfig
	Memory     int64 // bytes, 0 = unbounded
	CPUQuota   int64 // microseconds per 100ms period, 0 = unbounded
	Labels     map[string]string
}

// MountConfig is a host bind mount.
type MountConfig struct {
	Source   string
	Target   string
	ReadOnly bool
}

// RunResult is what the caller gets back after a run completes or times out.
type RunResult struct {
	ExitCode int64
	Stdout   []byte
	Stderr   []byte
	TimedOut bool
}

// Client wraps the Docker client for one-shot container runs.
type Client struct {
	cli    *client.Client
	logger *logger.Logger
	config config.DockerConfig
}

// NewClient creates a new Docker client; callers should Ping before relying
// on it, since NewClientWithOpts does not dial the daemon.
func NewClient(cfg config.DockerConfig, log *logger.Logger) (*Client, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Client{cli: cli, logger: log, config: cfg}, nil
}

// Close closes the underlying Docker client.
func (c *Client) Close() error {
	return c.cli.Close()
}

// Ping checks the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping failed: %w", err)
	}
	return nil
}

// EnsureImage pulls imageName if it is not already present locally.
func (c *Client) EnsureImage(ctx context.Context, imageName string) error {
	filterArgs := filters.NewArgs(filters.Arg("reference", imageName))
	images, err := c.cli.ImageList(ctx, image.ListOptions{Filters: filterArgs})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) > 0 {
		return nil
	}

	c.logger.Info("pulling code-execution image", zap.String("image", imageName))
	reader, err := c.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("error reading image pull output: %w", err)
	}
	return nil
}

// Run creates, starts, waits on, and removes a single disposable container,
// honoring ctx cancellation/deadline as the run's timeout (spec §4.5: the
// execute-code tool has a configurable timeout, default 30s).
func (c *Client) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	mounts := make([]mount.Mount, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: m.Source, Target: m.Target, ReadOnly: m.ReadOnly})
	}

	containerCfg := &container.Config{
		Image:      cfg.Image,
		Cmd:        cfg.Cmd,
		Env:        cfg.Env,
		WorkingDir: cfg.WorkingDir,
		Labels:     cfg.Labels,
	}
	hostCfg := &container.HostConfig{
		Mounts:     mounts,
		AutoRemove: false,
		Resources:  container.Resources{Memory: cfg.Memory, CPUQuota: cfg.CPUQuota},
	}

	resp, err := c.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	containerID := resp.ID
	defer func() {
		_ = c.cli.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	}()

	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	result := &RunResult{}
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("error waiting for container: %w", err)
		}
	case status := <-statusCh:
		result.ExitCode = status.StatusCode
	case <-ctx.Done():
		_ = c.cli.ContainerKill(context.Background(), containerID, "SIGKILL")
		result.TimedOut = true
		return result, ctx.Err()
	}

	logs, err := c.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err == nil {
		defer logs.Close()
		out, _ := io.ReadAll(logs)
		result.Stdout = out
	}

	return result, nil
}

// WaitWithDeadline is a helper mirroring time.After-based call sites that
// want a bounded Run without threading a context through every caller.
func (c *Client) WaitWithDeadline(parent context.Context, timeout time.Duration, cfg RunConfig) (*RunResult, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return c.Run(ctx, cfg)
}
