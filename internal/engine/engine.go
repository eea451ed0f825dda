// Package engine talks to the container engine: listing the project's
// containers, restarting and signalling them, and following their logs.
package engine

import (
	"context"
	"io"
	"strconv"
	"time"
)

// LogOptions selects which part of a container's log to follow
type LogOptions struct {
	Since time.Time // zero means from the beginning
	Tail  int       // 0 means all lines
}

func (o LogOptions) tail() string {
	if o.Tail <= 0 {
		return "all"
	}
	return strconv.Itoa(o.Tail)
}

func (o LogOptions) since() string {
	if o.Since.IsZero() {
		return ""
	}
	return strconv.FormatInt(o.Since.Unix(), 10)
}

// Engine is implemented by the SDK client and the CLI backend; tests fake it.
type Engine interface {
	// ListContainers returns the names of all containers, running or not,
	// whose name contains prefix.
	ListContainers(ctx context.Context, prefix string) ([]string, error)
	RestartContainer(ctx context.Context, name string) error
	SignalContainer(ctx context.Context, name, signal string) error
	// FollowLogs streams stdout and stderr merged. Closing the reader, or
	// cancelling ctx, ends the stream.
	FollowLogs(ctx context.Context, name string, opts LogOptions) (io.ReadCloser, error)
	Close() error
}

var (
	_ Engine = (*Client)(nil)
	_ Engine = (*CLI)(nil)
)
