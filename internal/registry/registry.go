// Package registry discovers the project's containers and derives their
// short keys and display titles.
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rusenback/subzero-devtools/internal/model"
)

// ErrNoContainers is returned when the engine reports nothing for the project
var ErrNoContainers = errors.New("no containers found for project")

// DefaultTitles maps known service keys to their pane titles
var DefaultTitles = map[string]string{
	"openresty":    "OpenResty",
	"postgrest":    "PostgREST",
	"db":           "PostgreSQL",
	"rabbitmq":     "RabbitMQ",
	"pgamqpbridge": "pg-amqp-bridge",
}

// Lister is the part of the engine discovery needs
type Lister interface {
	ListContainers(ctx context.Context, prefix string) ([]string, error)
}

var instanceSuffix = regexp.MustCompile(`[_-](\d+)$`)

// Discover lists the containers whose name starts with project, in engine
// order. titles overrides DefaultTitles per key.
func Discover(ctx context.Context, l Lister, project string, titles map[string]string) (*model.ContainerSet, error) {
	names, err := l.ListContainers(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	set := model.NewContainerSet()
	for _, name := range names {
		key, ok := DeriveKey(project, name)
		if !ok {
			// the engine's name filter is a substring match
			continue
		}
		if set.Has(key) {
			if m := instanceSuffix.FindStringSubmatch(name); m != nil {
				key += m[1]
			}
			for base, n := key, 2; set.Has(key); n++ {
				key = fmt.Sprintf("%s%d", base, n)
			}
		}
		set.Add(model.Container{Key: key, Name: name, Title: Title(key, titles)})
	}

	if set.Len() == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoContainers, project)
	}
	return set, nil
}

// DeriveKey turns a container name into its short key:
// "myapp_db_1" and "myapp-db-1" both give "db". Only the trailing instance
// number is removed, so digits in the project name or service are kept.
func DeriveKey(project, name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, project)
	if !ok {
		return "", false
	}
	rest = instanceSuffix.ReplaceAllString("_"+strings.TrimLeft(rest, "_-"), "")
	key := strings.NewReplacer("_", "", "-", "").Replace(rest)
	if key == "" {
		return "", false
	}
	return key, true
}

// Title looks the key up in overrides, then DefaultTitles, and falls back to
// the capitalised key.
func Title(key string, overrides map[string]string) string {
	if t, ok := overrides[key]; ok && t != "" {
		return t
	}
	if t, ok := DefaultTitles[key]; ok {
		return t
	}
	return cases.Title(language.English).String(key)
}
