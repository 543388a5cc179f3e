package inflate

// Budget floors and caps. A window never shrinks below minWindowCap and
// padding stays inside [minPaddingCap, maxPaddingCap] no matter what budget
// the caller hands in.
const (
	minPaddingCap = 50
	maxPaddingCap = 500
	minWindowCap  = 150
)

// Params are the derived inflation parameters for one batch.
type Params struct {
	Padding        int
	MaxWindow      int
	MergeThreshold int
}

// plan maps a character budget onto inflation parameters and the number of
// matches that can be served. A zero or negative budget means "no budget":
// configured defaults apply and nothing is truncated. A budget too small to
// give every match its minimum viable window truncates the match list and
// forces floor-sized windows.
func (inf *Inflator) plan(budget, matches int) (Params, int) {
	params := Params{
		Padding:        inf.cfg.Padding,
		MaxWindow:      inf.cfg.MaxWindow,
		MergeThreshold: inf.cfg.MergeThreshold,
	}
	if budget <= 0 || matches == 0 {
		return params, matches
	}

	minTotal := matches * minWindowCap
	if budget < minTotal {
		keep := budget / minWindowCap
		params.Padding = minPaddingCap
		params.MaxWindow = minWindowCap
		return params, keep
	}

	share := budget / matches
	maxWindow := share
	if maxWindow < minWindowCap {
		maxWindow = minWindowCap
	}
	padding := (maxWindow - 50) / 2
	if padding < minPaddingCap {
		padding = minPaddingCap
	}
	if padding > maxPaddingCap {
		padding = maxPaddingCap
	}

	params.Padding = padding
	params.MaxWindow = maxWindow
	return params, matches
}
