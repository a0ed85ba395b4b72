package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/colonyops/inbox/internal/core/notify"
	"github.com/colonyops/inbox/internal/core/styles"
)

func renderNotifications(w io.Writer, items []notify.Notification, now time.Time) error {
	rows := make([][]string, 0, len(items))
	for _, n := range items {
		marker := styles.IconRead
		if !n.Read {
			marker = styles.IconUnread
		}
		rows = append(rows, []string{
			marker,
			n.ID,
			styles.TypeIcon(n.Type) + " " + string(n.Type),
			string(n.Priority),
			n.Title,
			age(now, n.CreatedAt),
		})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("", "ID", "TYPE", "PRIORITY", "TITLE", "AGE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().PaddingRight(1)
			if row == table.HeaderRow {
				return base.Inherit(styles.HeaderStyle)
			}
			if row < 0 || row >= len(items) {
				return base
			}
			n := items[row]
			switch col {
			case 2:
				return base.Inherit(styles.TypeStyle(n.Type))
			case 3:
				return base.Inherit(styles.PriorityStyle(n.Priority))
			case 4:
				if !n.Read {
					return base.Inherit(styles.UnreadStyle)
				}
			case 5:
				return base.Inherit(styles.MutedStyle)
			}
			return base
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func renderLine(n notify.Notification) string {
	return fmt.Sprintf("%s %s %s %s",
		styles.TypeStyle(n.Type).Render(styles.TypeIcon(n.Type)),
		styles.PriorityStyle(n.Priority).Render(strings.ToUpper(string(n.Priority))),
		styles.UnreadStyle.Render(n.Title),
		styles.MutedStyle.Render(n.Message),
	)
}

func renderStats(w io.Writer, s notify.Stats, window time.Duration) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d total, %d unread, %d read\n", styles.HeaderStyle.Render("Inbox"), s.Total, s.Unread, s.Read)
	fmt.Fprintf(&b, "%s %d in the last %s\n", styles.HeaderStyle.Render("Recent"), s.RecentCount, window)

	b.WriteString(styles.HeaderStyle.Render("By type") + "\n")
	for _, t := range notify.Types {
		fmt.Fprintf(&b, "  %-10s %d\n", styles.TypeStyle(t).Render(string(t)), s.ByType[t])
	}

	b.WriteString(styles.HeaderStyle.Render("By priority") + "\n")
	for _, p := range notify.Priorities {
		fmt.Fprintf(&b, "  %-10s %d\n", styles.PriorityStyle(p).Render(string(p)), s.ByPriority[p])
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// age renders a compact relative time such as 5m or 3d.
func age(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
