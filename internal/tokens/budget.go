package tokens

import "github.com/piotrzwolinski/synapseos-sub000/internal/domain"

// TrimHistory drops entries from the front of history until the rest fits in
// budget tokens. The newest entry is always kept, even if it alone exceeds the
// budget. A budget of zero or less disables trimming. The input is not modified.
func (c *Counter) TrimHistory(history []domain.HistoryEntry, budget int) []domain.HistoryEntry {
	if budget <= 0 || len(history) == 0 {
		return history
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := c.CountEntry(history[i])
		if total+n > budget && i < len(history)-1 {
			break
		}
		total += n
		start = i
	}
	return history[start:]
}
