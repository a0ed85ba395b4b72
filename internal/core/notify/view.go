package notify

import (
	"slices"
	"strings"
	"time"
)

// DefaultRecentWindow is the window used for Stats.RecentCount when none is given.
const DefaultRecentWindow = 24 * time.Hour

// Stats are aggregate counts over one snapshot.
type Stats struct {
	Total       int              `json:"total"`
	Unread      int              `json:"unread"`
	Read        int              `json:"read"`
	ByType      map[Type]int     `json:"byType"`
	ByPriority  map[Priority]int `json:"byPriority"`
	RecentCount int              `json:"recentCount"`
}

// Sort orders notifications newest first. Equal timestamps fall back to ID so
// the order is stable across calls.
func Sort(items []Notification) {
	slices.SortStableFunc(items, func(a, b Notification) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Filter returns the items matching every set predicate, newest first. The
// input slice is not modified.
func Filter(items []Notification, f Filters) []Notification {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]Notification, 0, len(items))
	for _, n := range items {
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		if f.Priority != "" && n.Priority != f.Priority {
			continue
		}
		switch f.Status {
		case StatusRead:
			if !n.Read {
				continue
			}
		case StatusUnread:
			if n.Read {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(n.Title), search) &&
			!strings.Contains(strings.ToLower(n.Message), search) {
			continue
		}
		out = append(out, n)
	}

	Sort(out)
	return out
}

// CountUnread is the only way the unread figure is produced.
func CountUnread(items []Notification) int {
	unread := 0
	for _, n := range items {
		if !n.Read {
			unread++
		}
	}
	return unread
}

// ComputeStats derives all aggregates in a single pass. Nothing is cached so
// the result always matches the snapshot it was given.
func ComputeStats(items []Notification, now time.Time, window time.Duration) Stats {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	cutoff := now.Add(-window)

	stats := Stats{
		Total:      len(items),
		ByType:     make(map[Type]int, len(Types)),
		ByPriority: make(map[Priority]int, len(Priorities)),
	}
	for _, n := range items {
		if n.Read {
			stats.Read++
		} else {
			stats.Unread++
		}
		stats.ByType[n.Type]++
		stats.ByPriority[n.Priority]++
		if !n.CreatedAt.Before(cutoff) {
			stats.RecentCount++
		}
	}
	return stats
}
