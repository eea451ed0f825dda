// Package scaffold downloads a starter kit into a new project directory.
package scaffold

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rusenback/subzero-devtools/internal/proc"
)

// Kit is a downloadable starter project
type Kit struct {
	Name string
	Desc string
	URL  string
}

// Kits by name
var Kits = map[string]Kit{
	"rest": {
		Name: "rest",
		Desc: "postgrest-starter-kit (REST)",
		URL:  "https://github.com/subzerocloud/postgrest-starter-kit/archive/master.tar.gz",
	},
	"graphql": {
		Name: "graphql",
		Desc: "subzero-starter-kit (REST & GraphQL)",
		URL:  "https://github.com/subzerocloud/subzero-starter-kit/archive/master.tar.gz",
	},
}

// KitNames lists the kit names sorted
func KitNames() []string {
	names := make([]string, 0, len(Kits))
	for n := range Kits {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Options for Download
type Options struct {
	Dir      string // relative to CWD
	Kit      string
	WithDB   bool
	CWD      string
	Image    string
	MountDir string
	UID, GID int
}

// Download fetches the kit inside the tool image, so only docker is needed on
// the host. Without WithDB the db component is stripped from the project.
func Download(ctx context.Context, r proc.Executor, opts Options) error {
	kit, ok := Kits[opts.Kit]
	if !ok {
		return fmt.Errorf("unknown starter kit %q (want one of %s)", opts.Kit, strings.Join(KitNames(), ", "))
	}
	if opts.Dir == "" {
		return fmt.Errorf("project directory must not be empty")
	}
	if filepath.IsAbs(opts.Dir) || strings.HasPrefix(filepath.Clean(opts.Dir), "..") {
		return fmt.Errorf("project directory %q must be inside the current directory", opts.Dir)
	}
	if opts.CWD == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		opts.CWD = cwd
	}

	dir := filepath.ToSlash(filepath.Clean(opts.Dir))
	script := fmt.Sprintf("mkdir -p %s && wget -qO- %s | tar xz -C %s --strip-components=1", dir, kit.URL, dir)
	if err := runInImage(ctx, r, opts, script); err != nil {
		return err
	}
	if opts.WithDB {
		return nil
	}

	strip := strings.Join([]string{
		"cd " + strings.TrimSuffix(opts.MountDir, "/") + "/" + dir,
		"rm -rf db",
		"rm -rf tests/db/rls.sql tests/db/structure.sql",
		"rm -rf tests/rest/auth.js tests/rest/common.js tests/rest/read.js",
		`sed -i "/### DB START/,/### DB END/d" docker-compose.yml`,
		`sed -i "/3000/,/db/{/3000/!d}" docker-compose.yml`,
		`sed -i "/db/d" docker-compose.yml`,
	}, " && ")
	return runInImage(ctx, r, opts, strip)
}

func runInImage(ctx context.Context, r proc.Executor, opts Options, script string) error {
	args := []string{"run", "--rm"}
	if opts.UID > 0 {
		args = append(args, "-u", fmt.Sprintf("%d:%d", opts.UID, opts.GID))
	}
	args = append(args,
		"-v", opts.CWD+"/:"+opts.MountDir,
		"-w", opts.MountDir,
		opts.Image,
		"sh", "-c", script,
	)

	res, err := r.Run(ctx, proc.Cmd{Name: "docker", Args: args, Echo: true})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("download failed: %s", strings.TrimSpace(string(res.Stderr)))
	}
	return nil
}
