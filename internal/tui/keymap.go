package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the bindings of both views.
type keyMap struct {
	quit       key.Binding
	toggleHelp key.Binding
	up         key.Binding
	down       key.Binding
	open       key.Binding
	back       key.Binding
	newItem    key.Binding
	deleteItem key.Binding
	complete   key.Binding
	edit       key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	copyName   key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		open:       key.NewBinding(key.WithKeys("enter", "l", "right"), key.WithHelp("enter", "open board")),
		back:       key.NewBinding(key.WithKeys("esc", "h", "left", "backspace"), key.WithHelp("esc", "boards")),
		newItem:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		deleteItem: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		complete:   key.NewBinding(key.WithKeys("space", " ", "x"), key.WithHelp("space/x", "complete")),
		edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename")),
		moveUp:     key.NewBinding(key.WithKeys("K", "shift+k"), key.WithHelp("K", "move task up")),
		moveDown:   key.NewBinding(key.WithKeys("J", "shift+j"), key.WithHelp("J", "move task down")),
		copyName:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy name")),
	}
}

// boardsKeys is the help surface of the boards view.
type boardsKeys struct{ keyMap }

// ShortHelp returns the boards view bindings shown in the footer.
func (k boardsKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.open, k.newItem, k.deleteItem, k.toggleHelp, k.quit}
}

// FullHelp returns every boards view binding.
func (k boardsKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.open},
		{k.newItem, k.deleteItem, k.toggleHelp, k.quit},
	}
}

// tasksKeys is the help surface of the tasks view.
type tasksKeys struct{ keyMap }

// ShortHelp returns the tasks view bindings shown in the footer.
func (k tasksKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.newItem, k.complete, k.edit, k.deleteItem, k.back, k.toggleHelp}
}

// FullHelp returns every tasks view binding.
func (k tasksKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.moveUp, k.moveDown},
		{k.newItem, k.complete, k.edit, k.deleteItem, k.copyName},
		{k.back, k.toggleHelp, k.quit},
	}
}
