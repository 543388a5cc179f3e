// Package compose renders ranked passages into a bounded context block.
package compose

import (
	"fmt"
	"strings"
)

// charsPerToken is the assumed average characters per token for budgeting.
const charsPerToken = 4

// Passage is one ranked candidate handed to the composer.
type Passage struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Stats summarizes what the composer produced.
type Stats struct {
	Included    int  `json:"included"`
	Dropped     int  `json:"dropped"`
	TokensUsed  int  `json:"tokensUsed"`
	TokenBudget int  `json:"tokenBudget"`
	Truncated   bool `json:"truncated"`
}

// Composer renders passages under a token budget.
type Composer struct{}

// New creates a Composer.
func New() *Composer {
	return &Composer{}
}

// Compose renders the passages in the order given, stopping when the token
// budget is exhausted. The final passage that crosses the budget is cut at
// the remaining character allowance rather than dropped whole.
func (c *Composer) Compose(passages []Passage, tokenBudget int) (string, Stats) {
	stats := Stats{TokenBudget: tokenBudget}
	if len(passages) == 0 {
		return "", stats
	}

	charBudget := tokenBudget * charsPerToken
	if tokenBudget <= 0 {
		charBudget = -1 // unbounded
	}

	var b strings.Builder
	used := 0
	for i, p := range passages {
		header := fmt.Sprintf("--- %s (%.1f)\n", p.Source, p.Score)
		body := strings.TrimRight(p.Content, "\n") + "\n"
		need := len(header) + len(body)

		if charBudget >= 0 && used+need > charBudget {
			remaining := charBudget - used - len(header)
			// A sliver too small to carry content is not worth a header.
			if remaining < charsPerToken*8 {
				stats.Dropped = len(passages) - i
				stats.Truncated = true
				break
			}
			b.WriteString(header)
			b.WriteString(body[:remaining])
			b.WriteString("\n")
			used = charBudget
			stats.Included++
			stats.Dropped = len(passages) - i - 1
			stats.Truncated = true
			break
		}

		b.WriteString(header)
		b.WriteString(body)
		used += need
		stats.Included++
	}

	stats.TokensUsed = used / charsPerToken
	return b.String(), stats
}
