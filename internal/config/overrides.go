package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// OverridesFile is the optional per-project file next to .env
const OverridesFile = "devtools.yaml"

// Overrides holds the settings that do not fit comfortably in .env.
//
//	watch:
//	  patterns: ["db/src/**/*.sql"]
//	  ignore: "**/tests/**"
//	titles:
//	  pgamqpbridge: AMQP bridge
//	reload:
//	  hup_after_sql: [postgrest, openresty]
//	  hup_after_other: [openresty]
type Overrides struct {
	Watch struct {
		Patterns []string `yaml:"patterns"`
		Ignore   string   `yaml:"ignore"`
	} `yaml:"watch"`
	Titles map[string]string `yaml:"titles"`
	Reload struct {
		HupAfterSQL   []string `yaml:"hup_after_sql"`
		HupAfterOther []string `yaml:"hup_after_other"`
	} `yaml:"reload"`
	LogLength int `yaml:"log_length"`
}

// applyOverrides merges path into c. A missing file is not an error.
func (c *Config) applyOverrides(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if len(o.Watch.Patterns) > 0 {
		c.WatchPatterns = o.Watch.Patterns
	}
	if o.Watch.Ignore != "" {
		c.IgnorePattern = o.Watch.Ignore
	}
	if len(o.Titles) > 0 {
		c.Titles = o.Titles
	}
	if o.Reload.HupAfterSQL != nil {
		c.HupTargets = o.Reload.HupAfterSQL
	}
	if o.Reload.HupAfterOther != nil {
		c.HupOther = o.Reload.HupAfterOther
	}
	if o.LogLength > 0 {
		c.LogLength = o.LogLength
	}
	return nil
}
