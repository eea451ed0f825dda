package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// containerized lists the tools shipped in the tool image
var containerized = map[string]bool{
	"psql":       true,
	"sqitch":     true,
	"pg_dump":    true,
	"pg_dumpall": true,
	"java":       true,
}

// ToolImage rewrites host tool invocations into `docker run` of the tool image.
// The zero value leaves commands untouched.
type ToolImage struct {
	Enabled  bool
	Image    string
	AppDir   string // host project directory
	MountDir string // where AppDir is mounted in the container
	UID, GID int
}

// NewToolImage fills in the current user ids
func NewToolImage(enabled bool, image, appDir, mountDir string) ToolImage {
	return ToolImage{
		Enabled:  enabled,
		Image:    image,
		AppDir:   filepath.Clean(appDir),
		MountDir: mountDir,
		UID:      os.Getuid(),
		GID:      os.Getgid(),
	}
}

// Rewrite returns c unchanged unless its program is one of the tools the image
// provides. Host paths under AppDir in the arguments and working dir are mapped
// to MountDir; Env is forwarded with -e.
func (t ToolImage) Rewrite(c Cmd) Cmd {
	if !t.Enabled || !containerized[c.Name] {
		return c
	}

	workDir := t.MountDir
	if c.Dir != "" {
		workDir = t.mapPath(c.Dir)
	}

	args := []string{
		"run", "--rm",
		"--network", "host",
		"-u", fmt.Sprintf("%d:%d", t.UID, t.GID),
		"-v", fmt.Sprintf("%s:%s", t.AppDir, t.MountDir),
		"-w", workDir,
	}
	for _, kv := range c.Env {
		args = append(args, "-e", kv)
	}
	args = append(args, t.Image, c.Name)
	for _, a := range c.Args {
		args = append(args, t.mapPath(a))
	}

	return Cmd{
		Name:        "docker",
		Args:        args,
		ExitOnError: c.ExitOnError,
		Echo:        c.Echo,
	}
}

func (t ToolImage) mapPath(p string) string {
	if t.AppDir == "" {
		return p
	}
	if p == t.AppDir {
		return t.MountDir
	}
	if rest, ok := strings.CutPrefix(p, t.AppDir+"/"); ok {
		return strings.TrimSuffix(t.MountDir, "/") + "/" + rest
	}
	return p
}
