package citation

import "strings"

// RenderPart is either literal text or a citation with its resolution.
// Resolved is nil for markers the registry could not match; those render as
// an unresolved badge.
type RenderPart struct {
	Text     string
	Marker   *Marker
	Resolved *ResolvedCitation
}

// IsCitation reports whether the part came from a marker
func (p RenderPart) IsCitation() bool {
	return p.Marker != nil
}

// Resolve maps parsed segments to render parts in their original order.
// It has no side effects; a nil registry resolves nothing.
func Resolve(segments []Segment, registry *Registry) []RenderPart {
	parts := make([]RenderPart, 0, len(segments))
	for _, seg := range segments {
		if seg.Marker == nil {
			parts = append(parts, RenderPart{Text: seg.Text})
			continue
		}

		m := *seg.Marker
		part := RenderPart{Text: seg.Text, Marker: &m}
		if c, ok := registry.LookupMarker(m); ok {
			part.Resolved = &c
		}
		parts = append(parts, part)
	}
	return parts
}

// ResolveText parses and resolves text in one step
func ResolveText(text string, registry *Registry) []RenderPart {
	return Resolve(Parse(text), registry)
}

// Stats counts resolved and unresolved citations in parts
func Stats(parts []RenderPart) (resolved, unresolved int) {
	for _, p := range parts {
		if !p.IsCitation() {
			continue
		}
		if p.Resolved != nil {
			resolved++
		} else {
			unresolved++
		}
	}
	return resolved, unresolved
}

// PlainText renders parts back to text, replacing markers with a short label.
// Used for terminals without inline badges.
func PlainText(parts []RenderPart) string {
	var sb strings.Builder
	for _, p := range parts {
		if !p.IsCitation() {
			sb.WriteString(p.Text)
			continue
		}
		sb.WriteString(Label(p))
	}
	return sb.String()
}

// Label is the short badge text for a citation part
func Label(p RenderPart) string {
	if p.Marker == nil {
		return p.Text
	}
	prefix := "📖"
	if p.Marker.Kind == SourceWeb {
		prefix = "🌐"
	}
	label := prefix + " " + p.Marker.Title
	if p.Marker.Author != "" {
		label += " / " + p.Marker.Author
	}
	if p.Resolved == nil {
		label += " (?)"
	}
	return "[" + label + "]"
}
