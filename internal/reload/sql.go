package reload

import (
	"context"

	"github.com/rusenback/subzero-devtools/internal/proc"
)

// SQLClient runs psql with args against database
type SQLClient interface {
	Exec(ctx context.Context, database string, args ...string) (proc.Result, error)
}

// Signaler sends a signal to a container by name
type Signaler interface {
	SignalContainer(ctx context.Context, name, signal string) error
}

// Psql runs psql inside the database container with docker exec.
type Psql struct {
	Runner    proc.Executor
	Container string // full name of the db container
	User      string
}

var _ SQLClient = (*Psql)(nil)

func (p *Psql) Exec(ctx context.Context, database string, args ...string) (proc.Result, error) {
	argv := append([]string{"exec", p.Container, "psql", "-U", p.User, database}, args...)
	return p.Runner.Run(ctx, proc.Cmd{Name: "docker", Args: argv})
}
