package model

import "time"

// WatchEvent is a settled change of a watched source file.
type WatchEvent struct {
	Path      string // absolute path
	RelPath   string // "./"-prefixed path relative to the app dir
	ChangedAt time.Time
}
