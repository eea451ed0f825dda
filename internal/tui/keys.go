package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Prev       key.Binding
	Next       key.Binding
	Jump       key.Binding
	Restart    key.Binding
	RestartAll key.Binding
	Watch      key.Binding
	Reset      key.Binding
	Clear      key.Binding
	Scroll     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Prev: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "previous"),
		),
		Next: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "next"),
		),
		Jump: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "jump to pane"),
		),
		Restart: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "restart container"),
		),
		RestartAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "restart all"),
		),
		Watch: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "toggle watcher"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset db"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear pane"),
		),
		// handled by the viewport, listed for help only
		Scroll: key.NewBinding(
			key.WithKeys("pgup", "pgdown"),
			key.WithHelp("pgup/pgdn", "scroll"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Restart, k.Watch, k.Reset, k.Clear, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.Jump, k.Scroll},
		{k.Restart, k.RestartAll, k.Clear},
		{k.Watch, k.Reset},
		{k.Help, k.Quit},
	}
}
