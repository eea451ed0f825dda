package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
)

// pane is the scrollback of one container. Only the newest limit lines are kept.
type pane struct {
	key   string
	title string
	limit int
	lines []string
	vp    viewport.Model
}

func newPane(key, title string, limit, width, height int) *pane {
	if limit <= 0 {
		limit = 1
	}
	vp := viewport.New(width, height)
	vp.SetContent("")
	return &pane{key: key, title: title, limit: limit, vp: vp}
}

// Append adds a line and follows the tail unless the user scrolled up
func (p *pane) Append(text string) {
	follow := p.vp.AtBottom()

	p.lines = append(p.lines, text)
	if over := len(p.lines) - p.limit; over > 0 {
		p.lines = p.lines[over:]
	}

	p.vp.SetContent(strings.Join(p.lines, "\n"))
	if follow {
		p.vp.GotoBottom()
	}
}

func (p *pane) Clear() {
	p.lines = nil
	p.vp.SetContent("")
	p.vp.GotoTop()
}

func (p *pane) Resize(width, height int) {
	follow := p.vp.AtBottom()
	p.vp.Width = width
	p.vp.Height = height
	if follow {
		p.vp.GotoBottom()
	}
}

func (p *pane) Len() int {
	return len(p.lines)
}

func (p *pane) View() string {
	return p.vp.View()
}
