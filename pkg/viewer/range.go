package viewer

// Range is a half-open [Start, End) highlight range in rune offsets into a
// tab's content.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Clamp bounds r to a text of n runes. An inverted range collapses to empty.
func (r Range) Clamp(n int) Range {
	start := clamp(r.Start, 0, n)
	end := clamp(r.End, 0, n)
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

// Empty reports whether the range covers no text
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Len returns the number of runes covered
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start
}

// Split cuts content into the text before, inside and after the range.
// Offsets outside the content are clamped, never rejected.
func (r Range) Split(content string) (before, highlighted, after string) {
	runes := []rune(content)
	c := r.Clamp(len(runes))
	return string(runes[:c.Start]), string(runes[c.Start:c.End]), string(runes[c.End:])
}

// Text returns only the highlighted text
func (r Range) Text(content string) string {
	_, highlighted, _ := r.Split(content)
	return highlighted
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func copyRange(r *Range) *Range {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
