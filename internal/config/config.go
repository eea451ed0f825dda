package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"
)

// ErrMissingProject is returned when COMPOSE_PROJECT_NAME is not set.
var ErrMissingProject = errors.New("COMPOSE_PROJECT_NAME must be set in the .env file")

// Defaults for the keys a project usually leaves out of .env
const (
	DefaultLogLength    = 1000
	DefaultDBDir        = "/docker-entrypoint-initdb.d/"
	DefaultSourceDir    = "db/src"
	DefaultIgnore       = "**/tests/**"
	DefaultDockerImage  = "subzerocloud/subzero-cli-tools"
	DefaultDockerAppDir = "/src"
	DefaultApgdiffJar   = "/usr/local/bin/apgdiff.jar"
	DefaultEngine       = "sdk"
	DefaultHistoryFile  = ".devtools/history.db"
	DefaultLogFile      = ".devtools/devtools.log"
)

// DefaultWatchPatterns are relative to the app dir
var DefaultWatchPatterns = []string{
	"db/src/**/*.sql",
	"openresty/lualib/**/*.lua",
	"openresty/nginx/conf/**/*.conf",
}

// Config is everything the dashboard and the auxiliary commands read from the project.
type Config struct {
	EnvFile string
	AppDir  string

	ComposeProjectName string
	SuperUser          string
	SuperUserPassword  string
	DBUser             string
	DBPass             string
	DBHost             string
	DBPort             string
	DBName             string
	DBAnonRole         string

	LogLength     int
	LogLevel      string
	LogFile       string
	WatchPatterns []string
	IgnorePattern string
	SourceDir     string // host dir holding the SQL tree, relative to AppDir
	DBDir         string // where SourceDir is mounted inside the db container

	Engine     string // "sdk" or "cli"
	DockerHost string

	UseDockerImage bool
	DockerImage    string
	DockerAppDir   string

	SqitchCmd      string
	PsqlCmd        string
	PgDumpCmd      string
	PgDumpallCmd   string
	JavaCmd        string
	ApgdiffJarPath string
	MigrationsDir  string
	DevDBURI       string
	ProdDBURI      string
	IgnoreRoles    []string

	HistoryPath string

	// From devtools.yaml
	Titles     map[string]string
	HupTargets []string // containers HUPed after SQL reloads
	HupOther   []string // containers HUPed after non-SQL changes
}

// Load reads envFile (".env" when empty). Variables already present in the
// process environment win over the file, like dotenv does.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	info, err := os.Stat(envFile)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf(".env file %q does not exist", envFile)
	}

	fileEnv, err := dotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", envFile, err)
	}

	abs, err := filepath.Abs(envFile)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", envFile, err)
	}

	cfg := fromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	})
	cfg.EnvFile = abs
	cfg.AppDir = filepath.Dir(abs)
	cfg.finish()

	if err := cfg.applyOverrides(filepath.Join(cfg.AppDir, OverridesFile)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration the dashboard cannot start without.
func (c *Config) Validate() error {
	if c.ComposeProjectName == "" {
		return ErrMissingProject
	}
	if c.Engine != "sdk" && c.Engine != "cli" {
		return fmt.Errorf("unknown engine %q (want sdk or cli)", c.Engine)
	}
	return nil
}

// WatchGlobs returns the watch patterns as absolute globs
func (c *Config) WatchGlobs() []string {
	globs := make([]string, 0, len(c.WatchPatterns))
	for _, p := range c.WatchPatterns {
		globs = append(globs, filepath.ToSlash(filepath.Join(c.AppDir, p)))
	}
	return globs
}

type lookupFunc func(key string) (string, bool)

func fromLookup(lookup lookupFunc) *Config {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		ComposeProjectName: get("COMPOSE_PROJECT_NAME", ""),
		SuperUser:          get("SUPER_USER", ""),
		SuperUserPassword:  get("SUPER_USER_PASSWORD", ""),
		DBUser:             get("DB_USER", ""),
		DBPass:             get("DB_PASS", ""),
		DBHost:             get("DB_HOST", ""),
		DBPort:             get("DB_PORT", ""),
		DBName:             get("DB_NAME", ""),
		DBAnonRole:         get("DB_ANON_ROLE", ""),

		LogLength:     DefaultLogLength,
		LogLevel:      get("DEVTOOLS_LOG_LEVEL", "info"),
		LogFile:       get("DEVTOOLS_LOG_FILE", DefaultLogFile),
		IgnorePattern: get("WATCH_IGNORE", DefaultIgnore),
		SourceDir:     get("DB_SRC_DIR", DefaultSourceDir),
		DBDir:         get("DB_DIR", DefaultDBDir),

		Engine:     strings.ToLower(get("DEVTOOLS_ENGINE", DefaultEngine)),
		DockerHost: get("DOCKER_HOST", ""),

		UseDockerImage: true,
		DockerImage:    get("DOCKER_IMAGE", DefaultDockerImage),
		DockerAppDir:   DefaultDockerAppDir,

		SqitchCmd:      get("SQITCH_CMD", "sqitch"),
		PsqlCmd:        get("PSQL_CMD", "psql"),
		PgDumpCmd:      get("PG_DUMP_CMD", "pg_dump"),
		PgDumpallCmd:   get("PG_DUMPALL_CMD", "pg_dumpall"),
		JavaCmd:        get("JAVA_CMD", "java"),
		ApgdiffJarPath: get("APGDIFF_JAR_PATH", DefaultApgdiffJar),
		DevDBURI:       get("DEV_DB_URI", ""),
		ProdDBURI:      get("PROD_DB_URI", ""),
		HistoryPath:    get("DEVTOOLS_HISTORY", DefaultHistoryFile),

		HupTargets: []string{"postgrest", "openresty"},
		HupOther:   []string{"openresty"},
	}

	if v, ok := lookup("LOG_LENGTH"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.LogLength = n
		}
	}
	if v, ok := lookup("USE_DOCKER_IMAGE"); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.UseDockerImage = b
		}
	}
	if v, ok := lookup("WATCH_PATTERNS"); ok && strings.TrimSpace(v) != "" {
		cfg.WatchPatterns = splitList(v)
	} else {
		cfg.WatchPatterns = append([]string(nil), DefaultWatchPatterns...)
	}

	localhost := get("LOCALHOST", "localhost")
	if cfg.DevDBURI == "" {
		cfg.DevDBURI = fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
			cfg.SuperUser, cfg.SuperUserPassword, localhost, cfg.DBPort, cfg.DBName)
	}
	if cfg.ProdDBURI == "" {
		cfg.ProdDBURI = fmt.Sprintf("postgres://%s:%s@%s:5433/%s",
			cfg.SuperUser, cfg.SuperUserPassword, localhost, cfg.DBName)
	}

	roles := get("IGNORE_ROLES", strings.Join([]string{cfg.SuperUser, cfg.DBUser, cfg.DBAnonRole, "postgres"}, ","))
	cfg.IgnoreRoles = splitList(roles)

	return cfg
}

// finish resolves the paths that depend on AppDir
func (c *Config) finish() {
	c.MigrationsDir = filepath.Join(c.AppDir, "db", "migrations")
	if !filepath.IsAbs(c.HistoryPath) {
		c.HistoryPath = filepath.Join(c.AppDir, c.HistoryPath)
	}
	if !filepath.IsAbs(c.LogFile) {
		c.LogFile = filepath.Join(c.AppDir, c.LogFile)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
