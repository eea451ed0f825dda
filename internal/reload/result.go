package reload

import (
	"bufio"
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rusenback/subzero-devtools/internal/model"
)

// Result of one reload or reset
type Result struct {
	model.RunRecord
	Err error
}

func newResult(kind model.RunKind, path string) Result {
	return Result{RunRecord: model.RunRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Path:      path,
		StartedAt: time.Now(),
	}}
}

func (r *Result) finish(code int, err error) {
	r.ExitCode = code
	r.Err = err
	r.Duration = time.Since(r.StartedAt)
}

// OK is true when the run exited 0 without an error
func (r Result) OK() bool {
	return r.ExitCode == 0 && r.Err == nil
}

func (r Result) String() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("%s failed: %v", r.Kind, r.Err)
	case r.ExitCode != 0:
		return fmt.Sprintf("%s failed with exit code %d", r.Kind, r.ExitCode)
	case r.FellBack:
		return fmt.Sprintf("reset done in %s", r.Duration.Round(time.Millisecond))
	default:
		return fmt.Sprintf("%s done in %s", r.Kind, r.Duration.Round(time.Millisecond))
	}
}

// LogFunc receives human readable status and diagnostic lines
type LogFunc func(line string)

// Listener observes the orchestrator. Methods are called from the
// orchestrator's goroutines and must not block for long.
type Listener interface {
	WatcherReady(patterns []string)
	ReloadStart(relPath string)
	ReloadEnd(res Result)
	Log(line string)
}

// Recorder keeps finished runs
type Recorder interface {
	Record(rec model.RunRecord)
}

// forward sends each line of a tool's stderr to log unchanged
func forward(log LogFunc, out []byte) {
	if log == nil || len(out) == 0 {
		return
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		log(sc.Text())
	}
}
