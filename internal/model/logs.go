// internal/model/logs.go
package model

import "time"

// LogLine is a single formatted line destined for a container pane
type LogLine struct {
	Key  string // container key the line belongs to
	Text string
	At   time.Time
}
