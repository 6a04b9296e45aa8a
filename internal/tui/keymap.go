package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board bindings.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	moveLeft   key.Binding
	moveRight  key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	pickUp     key.Binding
	drop       key.Binding
	cancel     key.Binding
	addCard    key.Binding
	editCard   key.Binding
	deleteCard key.Binding
	cardInfo   key.Binding
	copyID     key.Binding
}

// newKeyMap constructs the default bindings.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:  key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "card up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "card down")),
		pickUp:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "pick up card")),
		drop:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop card")),
		cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		addCard:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new card")),
		editCard:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit card")),
		deleteCard: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete card")),
		cardInfo:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "card info")),
		copyID:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy card id")),
	}
}

// ShortHelp returns the footer bindings.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.pickUp, k.drop, k.addCard, k.editCard, k.deleteCard, k.cardInfo, k.toggleHelp, k.quit}
}

// FullHelp returns the help overlay bindings grouped by concern.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.pickUp, k.drop, k.cancel},
		{k.addCard, k.editCard, k.deleteCard, k.cardInfo, k.copyID},
		{k.reload, k.toggleHelp, k.quit},
	}
}
