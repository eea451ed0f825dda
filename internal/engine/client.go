package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// Config for the SDK client
type Config struct {
	Host    string // empty means DOCKER_HOST or the default socket
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
	}
}

// Client wraps the Docker API client
type Client struct {
	cli     *client.Client
	timeout time.Duration
}

// NewClient connects to the daemon and pings it
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker sdk: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker ping: %w", err)
	}

	return &Client{cli: cli, timeout: cfg.Timeout}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	if c.cli != nil {
		return c.cli.Close()
	}
	return nil
}

func (c *Client) ListContainers(ctx context.Context, prefix string) ([]string, error) {
	opts := container.ListOptions{All: true}
	if prefix != "" {
		opts.Filters = filters.NewArgs(filters.Arg("name", prefix))
	}

	containers, err := c.cli.ContainerList(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}

	names := make([]string, 0, len(containers))
	for _, cont := range containers {
		if len(cont.Names) == 0 {
			continue
		}
		names = append(names, strings.TrimPrefix(cont.Names[0], "/"))
	}
	return names, nil
}

func (c *Client) RestartContainer(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*c.timeout)
	defer cancel()

	timeout := 10
	if err := c.cli.ContainerRestart(ctx, name, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("restart %s: %w", name, err)
	}
	return nil
}

// SignalContainer sends signal ("HUP", "SIGHUP", ...) to the container's main process
func (c *Client) SignalContainer(ctx context.Context, name, signal string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.cli.ContainerKill(ctx, name, signal); err != nil {
		return fmt.Errorf("signal %s %s: %w", signal, name, err)
	}
	return nil
}

func (c *Client) FollowLogs(ctx context.Context, name string, opts LogOptions) (io.ReadCloser, error) {
	inspect, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("inspect for logs: %w", err)
	}

	stream, err := c.cli.ContainerLogs(ctx, name, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       opts.tail(),
		Since:      opts.since(),
	})
	if err != nil {
		return nil, fmt.Errorf("container logs: %w", err)
	}

	// TTY containers send a raw stream
	if inspect.Config != nil && inspect.Config.Tty {
		return stream, nil
	}

	// Otherwise stdout/stderr are multiplexed with 8-byte headers
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, stream)
		stream.Close()
		pw.CloseWithError(err)
	}()

	return &demuxed{PipeReader: pr, stream: stream}, nil
}

// demuxed closes the upstream body too, so a blocked StdCopy returns
type demuxed struct {
	*io.PipeReader
	stream io.Closer
	once   sync.Once
}

func (d *demuxed) Close() error {
	d.once.Do(func() { d.stream.Close() })
	return d.PipeReader.Close()
}
