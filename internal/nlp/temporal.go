package nlp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	relativeSpanRe = regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+(\d+)?\s*(day|week|month|year)s?\b`)
	bareRecentRe   = regexp.MustCompile(`(?i)\b(yesterday|today|recently)\b`)
	explicitYearRe = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
)

// ExtractTemporal pulls temporal hints out of a query and grounds them as
// year tokens. "last 3 months" resolves to every calendar year the trailing
// window touches, so a window crossing a year boundary yields both years.
// The second return value is the query with the temporal phrases removed.
func ExtractTemporal(query string, now time.Time) ([]string, string) {
	var years []string
	seen := map[string]bool{}
	add := func(y int) {
		tok := strconv.Itoa(y)
		if !seen[tok] {
			seen[tok] = true
			years = append(years, tok)
		}
	}

	remainder := query

	for _, m := range relativeSpanRe.FindAllStringSubmatch(query, -1) {
		n := 1
		if m[1] != "" {
			if parsed, err := strconv.Atoi(m[1]); err == nil && parsed > 0 {
				n = parsed
			}
		}
		start := windowStart(now, n, strings.ToLower(m[2]))
		for y := start.Year(); y <= now.Year(); y++ {
			add(y)
		}
	}
	remainder = relativeSpanRe.ReplaceAllString(remainder, " ")

	if bareRecentRe.MatchString(remainder) {
		add(now.Year())
		remainder = bareRecentRe.ReplaceAllString(remainder, " ")
	}

	// Explicit years stay in the remainder; they double as search terms.
	for _, m := range explicitYearRe.FindAllString(remainder, -1) {
		add(atoiOr(m, now.Year()))
	}

	return years, strings.Join(strings.Fields(remainder), " ")
}

func windowStart(now time.Time, n int, unit string) time.Time {
	switch unit {
	case "day":
		return now.AddDate(0, 0, -n)
	case "week":
		return now.AddDate(0, 0, -7*n)
	case "month":
		return now.AddDate(0, -n, 0)
	case "year":
		return now.AddDate(-n, 0, 0)
	default:
		return now
	}
}

func atoiOr(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

// YearRange formats an inclusive year span for diagnostics.
func YearRange(years []string) string {
	if len(years) == 0 {
		return ""
	}
	return fmt.Sprintf("%s..%s", years[0], years[len(years)-1])
}
