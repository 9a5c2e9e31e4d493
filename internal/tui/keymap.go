package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit      key.Binding
	NextTab   key.Binding
	PrevTab   key.Binding
	JumpTab   key.Binding
	Record    key.Binding
	Abort     key.Binding
	PlayPause key.Binding
	SeekBack  key.Binding
	SeekFwd   key.Binding
	Faster    key.Binding
	Slower    key.Binding
	Up        key.Binding
	Down      key.Binding
	Select    key.Binding
	Append    key.Binding
	Edit      key.Binding
	Delete    key.Binding
	MoveDown  key.Binding
	MoveUp    key.Binding
	Status    key.Binding
	Type      key.Binding
	Cancel    key.Binding
}

var keys = keyMap{
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	NextTab:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next panel")),
	PrevTab:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev panel")),
	JumpTab:   key.NewBinding(key.WithKeys("1", "2", "3", "4"), key.WithHelp("1-4", "jump")),
	Record:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "record/stop")),
	Abort:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "discard recording")),
	PlayPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
	SeekBack:  key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "-5s")),
	SeekFwd:   key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "+5s")),
	Faster:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
	Slower:    key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "slower")),
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
	Select:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "jump/edit")),
	Append:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add bullet")),
	Edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
	Delete:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	MoveDown:  key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
	MoveUp:    key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
	Status:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
	Type:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "visit type")),
	Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "done")),
}

// panelKeys is the help shown for the active panel.
type panelKeys struct {
	tab     tabID
	editing bool
}

func (p panelKeys) ShortHelp() []key.Binding {
	if p.editing {
		return []key.Binding{keys.Select, keys.Cancel}
	}
	common := []key.Binding{keys.Record, keys.PlayPause, keys.SeekBack, keys.SeekFwd, keys.Faster, keys.Slower}
	switch p.tab {
	case tabTranscript:
		return append(common, keys.Select, keys.NextTab, keys.Quit)
	case tabOutline:
		return append(common, keys.Append, keys.Edit, keys.Delete, keys.MoveDown, keys.MoveUp, keys.NextTab, keys.Quit)
	case tabNotes:
		return append(common, keys.Edit, keys.Status, keys.Type, keys.NextTab, keys.Quit)
	default:
		return append(common, keys.NextTab, keys.Quit)
	}
}

func (p panelKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{p.ShortHelp()}
}
