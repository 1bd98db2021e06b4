package model

// ImageReference is an image element discovered on a scanned page.
//
// References are created by the page scanner and are immutable afterwards.
// OrdinalIndex is the position among the references emitted by one scan,
// in document order, starting at 0. Elements whose source could not be
// resolved never receive an ordinal.
type ImageReference struct {
	// RawAttribute is the src attribute exactly as it appeared in the markup.
	RawAttribute string

	// ResolvedLocator is the absolute URL the image is fetched from.
	ResolvedLocator string

	// OrdinalIndex is the 0-based first-seen position within the scan.
	OrdinalIndex int
}

// Selection is the ordered set of references a user confirmed for download.
type Selection []ImageReference

// NewSelection builds a Selection from refs, keeping their order and
// dropping repeated ordinals (the first occurrence wins).
//
// Example:
//
//	sel := NewSelection(refs[2], refs[0], refs[2])
//	// len(sel) == 2, sel[0] is refs[2]
func NewSelection(refs ...ImageReference) Selection {
	seen := make(map[int]struct{}, len(refs))
	sel := make(Selection, 0, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.OrdinalIndex]; ok {
			continue
		}
		seen[ref.OrdinalIndex] = struct{}{}
		sel = append(sel, ref)
	}
	return sel
}

// Locators returns the resolved locators in selection order.
func (s Selection) Locators() []string {
	out := make([]string, len(s))
	for i, ref := range s {
		out[i] = ref.ResolvedLocator
	}
	return out
}
