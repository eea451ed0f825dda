package reload

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rusenback/subzero-devtools/internal/model"
)

// MaintenanceDB is where the drop and create statements run
const MaintenanceDB = "postgres"

// Resetter rebuilds the project database from its bootstrap SQL and tells
// the API layer to reload.
type Resetter struct {
	SQL        SQLClient
	Signaler   Signaler
	Containers *model.ContainerSet
	DBName     string
	DBDir      string   // bootstrap tree inside the db container
	HupTargets []string // container keys signalled after a successful rebuild
	Lock       *Lock
	Journal    Recorder
	Logger     *slog.Logger
}

// Reset runs the whole rebuild under the database lock and records it as a
// manual reset.
func (r *Resetter) Reset(ctx context.Context, log LogFunc) Result {
	res := newResult(model.RunManualReset, "")
	if err := r.Lock.Acquire(ctx); err != nil {
		res.finish(-1, err)
		return res
	}
	defer r.Lock.Release()

	code, err := r.reset(ctx, log)
	res.finish(code, err)
	r.record(res)
	return res
}

// reset expects the caller to hold Lock. It returns the exit code of the
// step that ended the sequence.
func (r *Resetter) reset(ctx context.Context, log LogFunc) (int, error) {
	logger := r.logger()
	dbName := r.DBName
	logf(log, "Resetting database %s", dbName)

	// Best effort, DROP reports any session that survives
	terminate := fmt.Sprintf("SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s';", dbName)
	if res, err := r.SQL.Exec(ctx, MaintenanceDB, "-c", terminate); err != nil {
		logf(log, "terminate connections: %v", err)
	} else {
		forward(log, res.Stderr)
	}

	steps := []string{
		fmt.Sprintf("DROP DATABASE if exists %s;", dbName),
		fmt.Sprintf("CREATE DATABASE %s;", dbName),
	}
	for _, stmt := range steps {
		res, err := r.SQL.Exec(ctx, MaintenanceDB, "-c", stmt)
		if err != nil {
			logger.Error("reset step", "stmt", stmt, "err", err)
			logf(log, "Reset aborted: %v", err)
			return -1, err
		}
		forward(log, res.Stderr)
		if !res.OK() {
			logger.Warn("reset step failed", "stmt", stmt, "code", res.ExitCode)
			logf(log, "Reset aborted: %q exited with code %d", stmt, res.ExitCode)
			return res.ExitCode, nil
		}
	}

	initFile := strings.TrimSuffix(r.DBDir, "/") + "/init.sql"
	res, err := r.SQL.Exec(ctx, dbName, "-f", initFile)
	if err != nil {
		logger.Error("bootstrap", "file", initFile, "err", err)
		logf(log, "Bootstrap failed: %v", err)
		return -1, err
	}
	forward(log, res.Stderr)
	if !res.OK() {
		logf(log, "Bootstrap %s exited with code %d", initFile, res.ExitCode)
		return res.ExitCode, nil
	}

	hup(ctx, r.Signaler, r.Containers, r.HupTargets, log, logger)
	logf(log, "Database %s rebuilt", dbName)
	return 0, nil
}

func (r *Resetter) record(res Result) {
	if r.Journal != nil {
		r.Journal.Record(res.RunRecord)
	}
}

func (r *Resetter) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// hup signals every target key present in the set; missing ones are skipped
func hup(ctx context.Context, sig Signaler, set *model.ContainerSet, keys []string, log LogFunc, logger *slog.Logger) {
	for _, key := range keys {
		c, ok := set.Get(key)
		if !ok {
			logf(log, "No %s container, skipping reload signal", key)
			continue
		}
		if err := sig.SignalContainer(ctx, c.Name, "HUP"); err != nil {
			logger.Warn("HUP failed", "container", c.Name, "err", err)
			logf(log, "HUP %s failed: %v", c.Name, err)
			continue
		}
		logger.Debug("HUP sent", "container", c.Name)
	}
}

func logf(log LogFunc, format string, args ...any) {
	if log != nil {
		log(fmt.Sprintf(format, args...))
	}
}
