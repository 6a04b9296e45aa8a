package tui

import (
	"fmt"
	"image/color"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/minikan/internal/adapters/apiclient"
)

// dropMarker is drawn at the highlighted drop slot.
const dropMarker = "▸ drop here"

// View renders the board, the active modal, and the help footer.
func (m Model) View() tea.View {
	v := tea.NewView(m.renderContent())
	v.AltScreen = true
	return v
}

// renderContent returns the screen text for the current state.
func (m Model) renderContent() string {
	switch {
	case m.err != nil && !m.loaded:
		return "error: " + apiclient.Message(m.err) + "\n\npress r to retry • q quit\n"
	case !m.ready || !m.loaded:
		return "loading..."
	default:
		return m.renderScreen()
	}
}

// renderScreen lays out header, columns, status and footer.
func (m Model) renderScreen() string {
	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("minikan") + "  " + m.board.Name + statusStyle.Render("  ["+m.modeLabel()+"]")
	sections := []string{header, "", m.renderColumns(accent, muted, dim)}
	sections = append(sections, m.renderInfoLine(muted))
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	full := content + "\n" + helpLine

	overlay := m.renderModeOverlay(accent, muted, m.width-8)
	if m.help.ShowAll {
		overlay = m.renderHelpOverlay(accent, muted, dim, m.width-8)
	}
	if overlay != "" {
		height := lipgloss.Height(full)
		if m.height > 0 {
			height = m.height
		}
		full = overlayOnContent(full, overlay, max(1, m.width), max(1, height))
	}
	return full
}

// renderColumns draws every column with the cursor, the dragged card, and the drop slot.
func (m Model) renderColumns(accent, muted, dim color.Color) string {
	if len(m.columns) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Render("This board has no columns yet. Add one with: minikan columns create")
	}

	colWidth := m.columnWidth()
	innerHeight := max(1, m.columnHeight()-2)
	baseStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		MarginRight(1).
		Width(colWidth)
	focusStyle := baseStyle.BorderForeground(accent)
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	draggedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	slotStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)
	subStyle := lipgloss.NewStyle().Foreground(muted)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	dragging := m.isDragging()
	draggedID := m.session.DraggingCardID()
	textWidth := max(1, colWidth-6)

	views := make([]string, 0, len(m.columns))
	for colIdx, col := range m.columns {
		lines := []string{colTitle.Render(fmt.Sprintf("%s (%d)", col.Name, len(col.Cards)))}
		slotHere := dragging && colIdx == m.selectedColumn
		for cardIdx, card := range col.Cards {
			if slotHere && m.dropSlot == cardIdx {
				lines = append(lines, slotStyle.Render(dropMarker))
			}
			title := truncate(card.Title, textWidth)
			switch {
			case card.ID == draggedID:
				title = draggedStyle.Render("» " + title)
			case !dragging && colIdx == m.selectedColumn && cardIdx == m.selectedCard:
				title = selectedStyle.Render("│ " + title)
			default:
				title = "  " + title
			}
			lines = append(lines, title)
			if m.showDescriptions {
				if desc := firstLine(card.Description); desc != "" {
					lines = append(lines, "  "+subStyle.Render(truncate(desc, textWidth)))
				}
			}
		}
		if slotHere && m.dropSlot >= len(col.Cards) {
			lines = append(lines, slotStyle.Render(dropMarker))
		}
		if len(col.Cards) == 0 && !slotHere {
			lines = append(lines, emptyStyle.Render("(empty)"))
		}

		content := fitLines(strings.Join(lines, "\n"), innerHeight)
		if colIdx == m.selectedColumn {
			views = append(views, focusStyle.Render(content))
		} else {
			views = append(views, baseStyle.Render(content))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// renderInfoLine summarizes the board and the focused card.
func (m Model) renderInfoLine(muted color.Color) string {
	selected := "none"
	if card, ok := m.focusedCard(); ok {
		selected = truncate(card.Title, 36)
	}
	return lipgloss.NewStyle().Foreground(muted).Render(
		fmt.Sprintf("board: %s • cards: %d • selected: %s", m.board.Name, m.board.CardCount(), selected),
	)
}

// renderModeOverlay renders the active modal box.
func (m Model) renderModeOverlay(accent, muted color.Color, maxWidth int) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	width := clamp(maxWidth, 36, 76)
	if maxWidth > 0 {
		box = box.Width(width)
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)

	switch m.mode {
	case modeAddCard, modeEditCard:
		heading := "New Card"
		if m.mode == modeEditCard {
			heading = "Edit Card"
		}
		lines := []string{titleStyle.Render(heading)}
		if col, ok := m.focusedColumn(); ok && m.mode == modeAddCard {
			lines = append(lines, hintStyle.Render("column: "+col.Name))
		}
		for _, in := range m.formInputs {
			lines = append(lines, in.View())
		}
		lines = append(lines, hintStyle.Render("tab switch field • enter save • esc cancel"))
		return box.Render(strings.Join(lines, "\n"))

	case modeConfirmDelete:
		card, _, ok := m.cardByID(m.targetCardID)
		if !ok {
			return ""
		}
		lines := []string{
			titleStyle.Render("Delete Card?"),
			card.Title,
			hintStyle.Render("y confirm • n cancel"),
		}
		return box.Render(strings.Join(lines, "\n"))

	case modeCardInfo:
		card, col, ok := m.cardByID(m.targetCardID)
		if !ok {
			return ""
		}
		lines := []string{
			titleStyle.Render("Card Info"),
			card.Title,
			hintStyle.Render(fmt.Sprintf("id: %s • column: %s • position: %d", card.ID, col.Name, card.Position)),
			"",
		}
		if body := m.markdown.render(card.Description, width-4); body != "" {
			lines = append(lines, body)
		} else {
			lines = append(lines, hintStyle.Render("(no description)"))
		}
		lines = append(lines, "", hintStyle.Render("y copy id • esc close"))
		return box.Render(strings.Join(lines, "\n"))
	}
	return ""
}

// renderHelpOverlay renders the full key reference.
func (m Model) renderHelpOverlay(accent, muted, dim color.Color, maxWidth int) string {
	width := clamp(maxWidth, 48, 90)
	hb := m.help
	hb.ShowAll = true
	hb.SetWidth(width - 4)

	workflow := []string{
		"space picks up the focused card; h/j/k/l move the drop slot",
		"enter drops the card at the marker; esc puts it back",
		"moves show at once and roll back if the server rejects them",
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(accent).Render("minikan help"),
		"",
		hb.View(m.keys),
		"",
		lipgloss.NewStyle().Foreground(muted).Render(strings.Join(workflow, "\n")),
		lipgloss.NewStyle().Foreground(muted).Render("press ? or esc to close"),
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1)
	if maxWidth > 0 {
		style = style.Width(width)
	}
	return style.Render(strings.Join(lines, "\n"))
}

// columnWidth splits the terminal width between columns.
func (m Model) columnWidth() int {
	if len(m.columns) == 0 || m.width <= 0 {
		return 28
	}
	// border (2) + padding (2) + margin (1)
	const overhead = 5
	return clamp((m.width-len(m.columns)*overhead)/len(m.columns), 20, 42)
}

// columnHeight leaves room for the header, info, status, and footer lines.
func (m Model) columnHeight() int {
	return max(8, m.height-7)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	return s
}

// clamp bounds v to [minV, maxV]; an empty range yields minV.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	return min(max(v, minV), maxV)
}

// fitLines pads or cuts content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay over base on a layered canvas.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		return overlay + "\n\n" + base
	}
	canvas := lipgloss.NewCanvas(width, height)
	canvas.Compose(lipgloss.NewLayer(fitLines(base, height)).X(0).Y(0).Z(0))
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	canvas.Compose(lipgloss.NewLayer(centered).X(0).Y(0).Z(10))
	return canvas.Render()
}

// truncate shortens s to limit runes with a trailing ellipsis.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit == 1 {
		return string(rs[:1])
	}
	return string(rs[:limit-1]) + "…"
}
