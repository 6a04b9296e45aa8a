// Package tui renders a board and drives card moves through a keyboard drag session.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/hylla/minikan/internal/adapters/apiclient"
	"github.com/hylla/minikan/internal/domain"
	"github.com/hylla/minikan/internal/dragdrop"
	"github.com/hylla/minikan/internal/reorder"
)

// inputMode represents a modal state layered over the board.
type inputMode int

// modeNone and related constants define the modal states.
const (
	modeNone inputMode = iota
	modeAddCard
	modeEditCard
	modeConfirmDelete
	modeCardInfo
)

// card-form field indexes.
const (
	formFieldTitle = iota
	formFieldDescription
)

const defaultRequestTimeout = 10 * time.Second

// Model is the bubbletea board screen. It reads the visible board from the session's store
// and never edits card order itself: every reorder goes through the session.
type Model struct {
	session *dragdrop.Session
	store   *dragdrop.BoardStore
	feed    *StatusFeed

	help help.Model
	keys keyMap

	ready  bool
	width  int
	height int

	loaded  bool
	err     error
	status  string
	board   domain.Board
	columns []domain.Column

	selectedColumn int
	selectedCard   int
	// dropSlot is the card index the dragged card would land in front of within the
	// focused column; len(cards) means end of column.
	dropSlot int

	mode         inputMode
	formInputs   []textinput.Model
	formFocus    int
	targetCardID string

	showDescriptions bool
	timeout          time.Duration
	copyText         func(string) error
	markdown         *markdownRenderer
}

// boardLoadedMsg reports a finished reload.
type boardLoadedMsg struct {
	err error
}

// boardChangedMsg signals that the store swapped its snapshot.
type boardChangedMsg struct{}

// moveSavedMsg carries the persistence result for a dropped card.
type moveSavedMsg struct {
	move *dragdrop.PendingMove
	err  error
}

// cardSavedMsg carries a create or edit result.
type cardSavedMsg struct {
	card    domain.Card
	created bool
	err     error
}

// cardDeletedMsg carries a delete result.
type cardDeletedMsg struct {
	cardID string
	err    error
}

// NewModel constructs a board screen over session.
func NewModel(session *dragdrop.Session, opts ...Option) Model {
	if session == nil {
		session = dragdrop.NewSession(dragdrop.SessionConfig{})
	}
	h := help.New()
	h.ShowAll = false
	m := Model{
		session:          session,
		store:            session.Store(),
		feed:             NewStatusFeed(),
		help:             h,
		keys:             newKeyMap(),
		status:           "loading...",
		showDescriptions: true,
		timeout:          defaultRequestTimeout,
		copyText:         defaultClipboard,
		markdown:         newMarkdownRenderer(""),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Subscribe forwards store changes to send, typically (*tea.Program).Send. The store calls
// observers synchronously from inside session operations, so delivery happens on a new goroutine.
func (m Model) Subscribe(send func(tea.Msg)) {
	if send == nil {
		return
	}
	m.store.OnChange(func(domain.Board) {
		go send(boardChangedMsg{})
	})
}

// Init loads the board.
func (m Model) Init() tea.Cmd {
	return m.reloadCmd()
}

// Update applies one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case boardLoadedMsg:
		if msg.err != nil {
			if m.loaded {
				m.status = "reload failed: " + apiclient.Message(msg.err)
				return m, nil
			}
			m.err = msg.err
			m.status = apiclient.Message(msg.err)
			return m, nil
		}
		m.err = nil
		m.loaded = true
		m.syncBoard()
		m.status = "ready"
		return m, nil

	case boardChangedMsg:
		if m.loaded {
			m.syncBoard()
		}
		return m, nil

	case moveSavedMsg:
		m.session.Complete(msg.move, msg.err)
		m.syncBoard()
		if msg.move != nil {
			m.focusCard(msg.move.CardID)
		}
		if msg.err != nil {
			m.reportFailure("move", msg.err)
			return m, nil
		}
		m.feed.drain()
		m.status = "card moved"
		return m, nil

	case cardSavedMsg:
		m.syncBoard()
		action := "update"
		if msg.created {
			action = "create"
		}
		if msg.err != nil {
			m.reportFailure(action, msg.err)
			return m, nil
		}
		m.feed.drain()
		m.focusCard(msg.card.ID)
		m.status = "card " + action + "d"
		return m, nil

	case cardDeletedMsg:
		m.syncBoard()
		if msg.err != nil {
			m.reportFailure("delete", msg.err)
			m.focusCard(msg.cardID)
			return m, nil
		}
		m.feed.drain()
		m.status = "card deleted"
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		if m.isDragging() {
			return m.handleDragKey(msg)
		}
		return m.handleBoardKey(msg)

	default:
		return m, nil
	}
}

// reloadCmd fetches the board through the store.
func (m Model) reloadCmd() tea.Cmd {
	store, timeout := m.store, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return boardLoadedMsg{err: store.Reload(ctx)}
	}
}

// persistCmd confirms a dropped move with the backend off the update loop.
func (m Model) persistCmd(move *dragdrop.PendingMove) tea.Cmd {
	session, timeout := m.session, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return moveSavedMsg{move: move, err: session.Persist(ctx, move)}
	}
}

// handleBoardKey handles keys while no drag or modal is active.
func (m Model) handleBoardKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}
	if m.help.ShowAll {
		if key.Matches(msg, m.keys.toggleHelp) || key.Matches(msg, m.keys.cancel) {
			m.help.ShowAll = false
			m.status = "ready"
		}
		return m, nil
	}
	if key.Matches(msg, m.keys.reload) {
		m.status = "reloading..."
		return m, m.reloadCmd()
	}
	if !m.loaded {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = true
		m.status = "help"
		return m, nil
	case key.Matches(msg, m.keys.moveLeft):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.clampSelection()
		}
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		if m.selectedColumn < len(m.columns)-1 {
			m.selectedColumn++
			m.clampSelection()
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.selectedCard > 0 {
			m.selectedCard--
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if col, ok := m.focusedColumn(); ok && m.selectedCard < len(col.Cards)-1 {
			m.selectedCard++
		}
		return m, nil
	case key.Matches(msg, m.keys.pickUp):
		return m.startDrag()
	case key.Matches(msg, m.keys.addCard):
		if m.blockedByCommit() {
			return m, nil
		}
		if _, ok := m.focusedColumn(); !ok {
			m.status = "board has no columns"
			return m, nil
		}
		return m, m.startCardForm(nil)
	case key.Matches(msg, m.keys.editCard):
		card, ok := m.focusedCard()
		if !ok {
			m.status = "no card selected"
			return m, nil
		}
		if m.blockedByCommit() {
			return m, nil
		}
		return m, m.startCardForm(&card)
	case key.Matches(msg, m.keys.deleteCard):
		card, ok := m.focusedCard()
		if !ok {
			m.status = "no card selected"
			return m, nil
		}
		if m.blockedByCommit() {
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.targetCardID = card.ID
		m.status = "confirm delete"
		return m, nil
	case key.Matches(msg, m.keys.cardInfo):
		card, ok := m.focusedCard()
		if !ok {
			m.status = "no card selected"
			return m, nil
		}
		m.mode = modeCardInfo
		m.targetCardID = card.ID
		m.status = "card info"
		return m, nil
	case key.Matches(msg, m.keys.copyID):
		return m.copyFocusedID()
	default:
		return m, nil
	}
}

// handleDragKey moves the drop slot, drops, or cancels.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.session.DragEnd()
		return m, tea.Quit
	case key.Matches(msg, m.keys.moveLeft):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.clampSelection()
			m.hover()
		}
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		if m.selectedColumn < len(m.columns)-1 {
			m.selectedColumn++
			m.clampSelection()
			m.hover()
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.dropSlot > 0 {
			m.dropSlot--
			m.hover()
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if col, ok := m.focusedColumn(); ok && m.dropSlot < len(col.Cards) {
			m.dropSlot++
			m.hover()
		}
		return m, nil
	case key.Matches(msg, m.keys.drop):
		return m.dropCard()
	case key.Matches(msg, m.keys.cancel):
		cardID := m.session.DraggingCardID()
		m.session.DragEnd()
		m.focusCard(cardID)
		m.status = "drag cancelled"
		return m, nil
	default:
		m.status = "finish the drag first: enter drops, esc cancels"
		return m, nil
	}
}

// handleInputModeKey routes keys to the active modal.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeAddCard, modeEditCard:
		switch msg.String() {
		case "esc":
			m.closeModal()
			m.status = "cancelled"
			return m, nil
		case "tab", "down":
			return m, m.focusFormField((m.formFocus + 1) % len(m.formInputs))
		case "shift+tab", "up":
			return m, m.focusFormField((m.formFocus + len(m.formInputs) - 1) % len(m.formInputs))
		case "enter":
			return m.submitCardForm()
		}
		var cmd tea.Cmd
		m.formInputs[m.formFocus], cmd = m.formInputs[m.formFocus].Update(msg)
		return m, cmd

	case modeConfirmDelete:
		switch msg.String() {
		case "y", "enter":
			return m.confirmDelete()
		case "n", "esc":
			m.closeModal()
			m.status = "delete cancelled"
		}
		return m, nil

	case modeCardInfo:
		switch {
		case key.Matches(msg, m.keys.copyID):
			return m.copyFocusedID()
		case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.cardInfo), msg.String() == "q":
			m.closeModal()
			m.status = "ready"
		}
		return m, nil
	}
	return m, nil
}

// startDrag picks up the focused card.
func (m Model) startDrag() (tea.Model, tea.Cmd) {
	card, ok := m.focusedCard()
	if !ok {
		m.status = "no card to pick up"
		return m, nil
	}
	col, _ := m.focusedColumn()
	if err := m.session.DragStart(card.ID, col.ID); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.dropSlot = m.selectedCard
	m.hover()
	m.status = fmt.Sprintf("dragging %q", truncate(card.Title, 32))
	return m, nil
}

// hover reports the current drop slot to the session.
func (m *Model) hover() {
	col, ok := m.focusedColumn()
	if !ok {
		return
	}
	if err := m.session.DragOver(col.ID, m.beforeCardID()); err != nil {
		m.status = err.Error()
	}
}

// dropCard applies the move locally and starts persisting it.
func (m Model) dropCard() (tea.Model, tea.Cmd) {
	col, ok := m.focusedColumn()
	if !ok {
		m.session.DragEnd()
		m.status = "drop cancelled"
		return m, nil
	}
	move, err := m.session.Drop(col.ID, m.beforeCardID())
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.syncBoard()
	if move == nil {
		m.status = "drop cancelled"
		return m, nil
	}
	m.focusCard(move.CardID)
	m.status = "saving move..."
	return m, m.persistCmd(move)
}

// beforeCardID maps the drop slot to the card the drop lands in front of. A slot on the
// dragged card itself means "stay here", so it resolves to the card after it.
func (m Model) beforeCardID() string {
	col, ok := m.focusedColumn()
	if !ok {
		return ""
	}
	dragged := m.session.DraggingCardID()
	for idx := m.dropSlot; idx < len(col.Cards); idx++ {
		if col.Cards[idx].ID != dragged {
			return col.Cards[idx].ID
		}
	}
	return ""
}

// newModalInput constructs a modal text input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// startCardForm opens the create form, or the edit form when card is set.
func (m *Model) startCardForm(card *domain.Card) tea.Cmd {
	m.mode = modeAddCard
	m.targetCardID = ""
	title, description := "", ""
	if card != nil {
		m.mode = modeEditCard
		m.targetCardID = card.ID
		title, description = card.Title, card.Description
	}
	m.formInputs = []textinput.Model{
		newModalInput("title: ", "at least 3 characters", title, 200),
		newModalInput("description: ", "markdown, optional", description, 4000),
	}
	m.status = "card form"
	return m.focusFormField(formFieldTitle)
}

// focusFormField focuses one form input and blurs the rest.
func (m *Model) focusFormField(idx int) tea.Cmd {
	if len(m.formInputs) == 0 {
		return nil
	}
	m.formFocus = clamp(idx, 0, len(m.formInputs)-1)
	for i := range m.formInputs {
		m.formInputs[i].Blur()
	}
	return m.formInputs[m.formFocus].Focus()
}

// submitCardForm validates the form and starts the create or update call.
func (m Model) submitCardForm() (tea.Model, tea.Cmd) {
	title, err := domain.NormalizeCardTitle(m.formInputs[formFieldTitle].Value())
	if err != nil {
		m.status = err.Error()
		return m, m.focusFormField(formFieldTitle)
	}
	description := strings.TrimSpace(m.formInputs[formFieldDescription].Value())
	store, timeout := m.store, m.timeout

	if m.mode == modeAddCard {
		col, ok := m.focusedColumn()
		if !ok {
			m.closeModal()
			m.status = "board has no columns"
			return m, nil
		}
		columnID := col.ID
		m.closeModal()
		m.status = "creating card..."
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			card, err := store.CreateCard(ctx, columnID, title, description)
			return cardSavedMsg{card: card, created: true, err: err}
		}
	}

	cardID := m.targetCardID
	m.closeModal()
	m.status = "saving card..."
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		card, err := store.UpdateCard(ctx, cardID, title, description)
		if card.ID == "" {
			card.ID = cardID
		}
		return cardSavedMsg{card: card, err: err}
	}
}

// confirmDelete starts the optimistic delete of the target card.
func (m Model) confirmDelete() (tea.Model, tea.Cmd) {
	cardID := m.targetCardID
	store, timeout := m.store, m.timeout
	m.closeModal()
	m.status = "deleting card..."
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return cardDeletedMsg{cardID: cardID, err: store.DeleteCard(ctx, cardID)}
	}
}

// copyFocusedID writes the focused card id to the clipboard.
func (m Model) copyFocusedID() (tea.Model, tea.Cmd) {
	card, ok := m.focusedCard()
	if !ok {
		m.status = "no card selected"
		return m, nil
	}
	if err := m.copyText(card.ID); err != nil {
		m.status = "copy failed: " + err.Error()
		return m, nil
	}
	m.status = "copied card id " + card.ID
	return m, nil
}

// closeModal returns to the board.
func (m *Model) closeModal() {
	m.mode = modeNone
	m.formInputs = nil
	m.formFocus = 0
	m.targetCardID = ""
}

// blockedByCommit reports, and explains, that a move is still being saved.
func (m *Model) blockedByCommit() bool {
	if m.session.State() != dragdrop.StateCommitting {
		return false
	}
	m.status = dragdrop.ErrDragInFlight.Error()
	return true
}

// reportFailure prefers the message the notifier queued for err.
func (m *Model) reportFailure(action string, err error) {
	text := apiclient.Message(err)
	if queued := m.feed.drain(); len(queued) > 0 {
		text = queued[len(queued)-1]
	}
	m.status = action + " failed: " + text
}

// isDragging reports whether a card is picked up and not yet dropped.
func (m Model) isDragging() bool {
	switch m.session.State() {
	case dragdrop.StateDragging, dragdrop.StateHoverTarget:
		return true
	default:
		return false
	}
}

// syncBoard re-reads the store snapshot in display order.
func (m *Model) syncBoard() {
	m.board = m.store.Snapshot()
	columns := m.board.SortedColumns()
	for idx := range columns {
		columns[idx].Cards = reorder.SortedCards(columns[idx])
	}
	m.columns = columns
	m.clampSelection()
}

// clampSelection keeps the cursor and drop slot inside the board.
func (m *Model) clampSelection() {
	m.selectedColumn = clamp(m.selectedColumn, 0, len(m.columns)-1)
	cards := 0
	if col, ok := m.focusedColumn(); ok {
		cards = len(col.Cards)
	}
	m.selectedCard = clamp(m.selectedCard, 0, cards-1)
	m.dropSlot = clamp(m.dropSlot, 0, cards)
}

// focusCard moves the cursor onto cardID when it is on the board.
func (m *Model) focusCard(cardID string) {
	if cardID == "" {
		return
	}
	for colIdx, col := range m.columns {
		for cardIdx, card := range col.Cards {
			if card.ID == cardID {
				m.selectedColumn = colIdx
				m.selectedCard = cardIdx
				return
			}
		}
	}
}

func (m Model) focusedColumn() (domain.Column, bool) {
	if m.selectedColumn < 0 || m.selectedColumn >= len(m.columns) {
		return domain.Column{}, false
	}
	return m.columns[m.selectedColumn], true
}

func (m Model) focusedCard() (domain.Card, bool) {
	col, ok := m.focusedColumn()
	if !ok || m.selectedCard < 0 || m.selectedCard >= len(col.Cards) {
		return domain.Card{}, false
	}
	return col.Cards[m.selectedCard], true
}

// cardByID looks a card up in the rendered columns.
func (m Model) cardByID(cardID string) (domain.Card, domain.Column, bool) {
	for _, col := range m.columns {
		for _, card := range col.Cards {
			if card.ID == cardID {
				return card, col, true
			}
		}
	}
	return domain.Card{}, domain.Column{}, false
}

// modeLabel names the current interaction for the header.
func (m Model) modeLabel() string {
	switch {
	case m.help.ShowAll:
		return "help"
	case m.mode == modeAddCard:
		return "new card"
	case m.mode == modeEditCard:
		return "edit card"
	case m.mode == modeConfirmDelete:
		return "confirm delete"
	case m.mode == modeCardInfo:
		return "card info"
	}
	switch m.session.State() {
	case dragdrop.StateDragging, dragdrop.StateHoverTarget:
		return "dragging"
	case dragdrop.StateCommitting:
		return "saving"
	default:
		return "board"
	}
}
