package poll

import (
	"math"
	"sort"

	"github.com/google/uuid"
)

// PollResult is the derived per-option tally of a poll. It is recomputed on
// every read and never stored.
type PollResult struct {
	PollID     uuid.UUID `json:"poll_id"`
	PollTitle  string    `json:"poll_title"`
	OptionID   uuid.UUID `json:"option_id"`
	OptionText string    `json:"option_text"`
	VoteCount  int64     `json:"vote_count"`
	Percentage int       `json:"percentage"`
}

// Aggregate joins per-option vote counts with the poll options. The output
// keeps the order of options, which is the order used by the voting view.
// Options without votes get a zero count.
func Aggregate(p *Poll, options []PollOption, counts map[uuid.UUID]int64) []PollResult {
	results := make([]PollResult, 0, len(options))
	for _, o := range options {
		results = append(results, PollResult{
			PollID:     p.ID,
			PollTitle:  p.Title,
			OptionID:   o.ID,
			OptionText: o.Text,
			VoteCount:  counts[o.ID],
		})
	}

	total := TotalVotes(results)
	for i := range results {
		results[i].Percentage = Percentage(results[i].VoteCount, total)
	}

	return results
}

// TotalVotes sums the vote counts of all results
func TotalVotes(results []PollResult) int64 {
	var total int64
	for _, r := range results {
		total += r.VoteCount
	}
	return total
}

// Percentage returns round(count / total * 100), halves rounding up.
// A zero total yields 0.
func Percentage(count, total int64) int {
	if total <= 0 || count <= 0 {
		return 0
	}
	return int(math.Floor(float64(count)*100/float64(total) + 0.5))
}

// SortByVotes returns a copy ordered by descending vote count.
// Equal counts keep their option order.
func SortByVotes(results []PollResult) []PollResult {
	sorted := make([]PollResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].VoteCount > sorted[j].VoteCount
	})
	return sorted
}
