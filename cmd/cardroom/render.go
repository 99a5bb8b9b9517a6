package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	winStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4"))

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	redCardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	blackCardStyle = lipgloss.NewStyle().Bold(true)

	cellStyle = lipgloss.NewStyle().PaddingRight(2)
)

func renderCards(cards []string) string {
	if len(cards) == 0 {
		return "-"
	}
	out := make([]string, len(cards))
	for i, c := range cards {
		style := blackCardStyle
		if strings.HasSuffix(c, "h") || strings.HasSuffix(c, "d") {
			style = redCardStyle
		}
		out[i] = style.Render(c)
	}
	return strings.Join(out, " ")
}

func renderNet(v int) string {
	switch {
	case v > 0:
		return winStyle.Render(fmt.Sprintf("+%d", v))
	case v < 0:
		return lossStyle.Render(fmt.Sprintf("%d", v))
	}
	return "0"
}

// renderColumns lays rows out in left-aligned columns.
func renderColumns(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	lines := make([]string, len(rows))
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cellStyle.Width(widths[i] + 2).Render(cell)
		}
		lines[r] = strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " ")
	}
	return strings.Join(lines, "\n")
}

func renderList(records []store.HandRecord) string {
	rows := [][]string{{
		labelStyle.Render("HAND"), labelStyle.Render("TABLE"), labelStyle.Render("PLAYED"),
		labelStyle.Render("PLAYERS"), labelStyle.Render("POT"),
	}}
	for _, rec := range records {
		pot := 0
		for _, w := range rec.Hand.Winnings {
			pot += w
		}
		rows = append(rows, []string{
			rec.HandID,
			rec.Table,
			rec.CreatedAt.Local().Format(time.DateTime),
			strings.Join(rec.Hand.Players, ", "),
			fmt.Sprintf("%d", pot),
		})
	}
	return renderColumns(rows)
}

func renderHand(h *phh.HandHistory) string {
	var b strings.Builder

	title := fmt.Sprintf("Hand %s", h.HandID)
	if h.Table != "" {
		title += " at " + h.Table
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	if !h.Timestamp.IsZero() {
		b.WriteString(h.Timestamp.Format(time.DateTime) + " " + h.TimeZone + "\n")
	}
	fmt.Fprintf(&b, "%s %s  %s %v  %s %v\n\n",
		labelStyle.Render("Game"), h.Variant,
		labelStyle.Render("Blinds"), h.BlindsOrStraddles,
		labelStyle.Render("Antes"), h.Antes)

	shown := h.Shown()
	net := h.Net()
	rows := [][]string{{
		labelStyle.Render("SEAT"), labelStyle.Render("PLAYER"), labelStyle.Render("START"),
		labelStyle.Render("FINISH"), labelStyle.Render("NET"), labelStyle.Render("SHOWN"),
	}}
	for i := range h.StartingStacks {
		row := []string{"", fmt.Sprintf("p%d", i+1), fmt.Sprintf("%d", h.StartingStacks[i]), "", "", renderCards(shown[i])}
		if i < len(h.Seats) {
			row[0] = fmt.Sprintf("%d", h.Seats[i])
		}
		if i < len(h.Players) {
			row[1] = h.Players[i]
		}
		if i < len(h.FinishingStacks) {
			row[3] = fmt.Sprintf("%d", h.FinishingStacks[i])
		}
		if net != nil {
			row[4] = renderNet(net[i])
		}
		rows = append(rows, row)
	}
	b.WriteString(renderColumns(rows))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Board"), renderCards(h.Board()))

	b.WriteString(labelStyle.Render("Actions"))
	b.WriteString("\n")
	for _, line := range h.Actions {
		b.WriteString("  " + describeAction(h, line) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// playerName resolves a PHH actor such as "p2" to the player's name.
func playerName(h *phh.HandHistory, actor string) string {
	if a, err := phh.ParseAction(actor + " x"); err == nil && a.Player >= 0 && a.Player < len(h.Players) {
		return h.Players[a.Player]
	}
	return actor
}

// describeAction turns a PHH action line into prose.
func describeAction(h *phh.HandHistory, line string) string {
	a, err := phh.ParseAction(line)
	if err != nil {
		return line
	}
	who := "Dealer"
	if a.Player >= 0 {
		who = playerName(h, fmt.Sprintf("p%d", a.Player+1))
	}
	arg := strings.Join(a.Args, " ")

	switch a.Verb {
	case "dh":
		if len(a.Args) >= 2 {
			return fmt.Sprintf("Dealer deals %s to %s", renderCards(phh.SplitCards(a.Args[1])), playerName(h, a.Args[0]))
		}
	case "db":
		return "Dealer deals " + renderCards(phh.SplitCards(arg))
	case "f":
		return who + " folds"
	case "cc":
		return who + " checks or calls"
	case "cbr":
		return who + " bets or raises to " + arg
	case "pb":
		return who + " posts the bring-in"
	case "sd":
		if arg == "" {
			return who + " stands pat"
		}
		return who + " discards " + renderCards(phh.SplitCards(arg))
	case "sm":
		if arg == "-" || arg == "" {
			return who + " mucks"
		}
		return who + " shows " + renderCards(phh.SplitCards(arg))
	}
	return line
}
