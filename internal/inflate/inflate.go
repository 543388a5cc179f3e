// Package inflate expands narrow fragment matches into larger contiguous
// text windows pulled from the original source, under an optional total
// character budget.
package inflate

import (
	"sort"
	"strings"

	"mnemo/internal/config"
	"mnemo/internal/logging"
)

// Match is one fragment match with byte-range coordinates into its source.
type Match struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
	// Virtual marks synthetic, non-file-backed sources that must pass
	// through unmodified.
	Virtual bool `json:"virtual,omitempty"`
}

// Window is a padded, possibly merged span covering one or more matches from
// the same source. Windows are ephemeral: they live for one inflation call.
type Window struct {
	Source   string  `json:"source"`
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Matches  []Match `json:"matches"`
	Content  string  `json:"content"`
	Inflated bool    `json:"inflated"`
	Score    float64 `json:"score"`
}

// Reader resolves a byte range of a source to text. Implementations must
// report read failures distinctly from absent files.
type Reader interface {
	ReadRange(source string, start, end int) (string, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(source string, start, end int) (string, error)

// ReadRange implements Reader.
func (f ReaderFunc) ReadRange(source string, start, end int) (string, error) {
	return f(source, start, end)
}

// Inflator expands matches into context windows.
type Inflator struct {
	reader Reader
	cfg    config.InflateConfig
	logger *logging.Logger
}

// New creates an Inflator.
func New(reader Reader, cfg config.InflateConfig, logger *logging.Logger) *Inflator {
	return &Inflator{reader: reader, cfg: cfg, logger: logger.Component("inflate")}
}

// Inflate expands the matches into padded, merged windows within the given
// character budget. A non-positive budget applies the configured defaults.
// Read failures are local: a window that cannot be resolved falls back to
// its original un-inflated matches, and the rest of the batch is unaffected.
func (inf *Inflator) Inflate(matches []Match, budget int) []Window {
	if len(matches) == 0 {
		return nil
	}

	params, keep := inf.plan(budget, len(matches))
	if keep < len(matches) {
		inf.logger.Debug("budget truncated match list", map[string]interface{}{
			"matches": len(matches),
			"kept":    keep,
			"budget":  budget,
		})
		matches = matches[:keep]
	}
	if len(matches) == 0 {
		return nil
	}

	var windows []Window
	for _, source := range sourcesInOrder(matches) {
		group := matchesFor(matches, source)
		if group[0].Virtual {
			windows = append(windows, passthrough(group)...)
			continue
		}
		for _, w := range inf.windowize(group, params) {
			windows = append(windows, inf.resolve(w))
		}
	}
	return windows
}

// windowize sorts a single source's matches by start offset and greedily
// merges padded spans that fall within the merge threshold, as long as the
// merged span stays inside the max window size.
func (inf *Inflator) windowize(group []Match, params Params) []Window {
	sorted := make([]Match, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	var windows []Window
	var cur *Window
	for _, m := range sorted {
		start, end := pad(m, params)

		if cur != nil &&
			start <= cur.End+params.MergeThreshold &&
			maxInt(end, cur.End)-cur.Start <= params.MaxWindow {
			if end > cur.End {
				cur.End = end
			}
			cur.Matches = append(cur.Matches, m)
			if m.Score > cur.Score {
				cur.Score = m.Score
			}
			continue
		}

		if cur != nil {
			windows = append(windows, *cur)
		}
		cur = &Window{
			Source:  m.Source,
			Start:   start,
			End:     end,
			Matches: []Match{m},
			Score:   m.Score,
		}
	}
	if cur != nil {
		windows = append(windows, *cur)
	}
	return windows
}

// pad widens a match by the padding on both sides, capping the padded span so
// its length never exceeds the max window while always covering the match.
func pad(m Match, params Params) (int, int) {
	start := m.Start - params.Padding
	if start < 0 {
		start = 0
	}
	end := m.End + params.Padding
	if end-start > params.MaxWindow {
		end = start + params.MaxWindow
	}
	if end < m.End {
		end = m.End
	}
	return start, end
}

// resolve reads the window's span from its source. Empty reads and read
// errors both fall back to the original matches.
func (inf *Inflator) resolve(w Window) Window {
	text, err := inf.reader.ReadRange(w.Source, w.Start, w.End)
	if err != nil || text == "" {
		if err != nil {
			inf.logger.Debug("window read failed, keeping original matches", map[string]interface{}{
				"source": w.Source,
				"error":  err.Error(),
			})
		}
		w.Content = originalContent(w.Matches)
		w.Inflated = false
		return w
	}
	w.Content = "…" + text + "…"
	w.Inflated = true
	return w
}

func passthrough(group []Match) []Window {
	windows := make([]Window, 0, len(group))
	for _, m := range group {
		windows = append(windows, Window{
			Source:  m.Source,
			Start:   m.Start,
			End:     m.End,
			Matches: []Match{m},
			Content: m.Content,
			Score:   m.Score,
		})
	}
	return windows
}

func originalContent(matches []Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func sourcesInOrder(matches []Match) []string {
	seen := map[string]bool{}
	var order []string
	for _, m := range matches {
		if !seen[m.Source] {
			seen[m.Source] = true
			order = append(order, m.Source)
		}
	}
	return order
}

func matchesFor(matches []Match, source string) []Match {
	var group []Match
	for _, m := range matches {
		if m.Source == source {
			group = append(group, m)
		}
	}
	return group
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
