package assetform

import "math"

// Section is one block of the asset form.
type Section string

const (
	SectionCategory Section = "category"
	SectionBasic    Section = "basic"
	SectionPurchase Section = "purchase"
	SectionLocation Section = "location"
	SectionSpecs    Section = "specs"
	SectionFiles    Section = "files"
	SectionNotes    Section = "notes"
)

// Sections in display order.
var Sections = []Section{
	SectionCategory, SectionBasic, SectionPurchase, SectionLocation,
	SectionSpecs, SectionFiles, SectionNotes,
}

// Visibility reports one section's position relative to the viewport top.
// Top is negative once the section start has scrolled past.
type Visibility struct {
	Section Section
	Visible bool
	Top     float64
}

// Navigator tracks which section is active. It has no effect on form data.
type Navigator struct {
	active    Section
	listeners []func(Section)
}

func NewNavigator() *Navigator {
	return &Navigator{active: SectionCategory}
}

func (n *Navigator) Active() Section { return n.active }

// OnChange registers fn to be called whenever the active section changes.
func (n *Navigator) OnChange(fn func(Section)) {
	n.listeners = append(n.listeners, fn)
}

// Activate handles an explicit click. Unknown sections are ignored.
func (n *Navigator) Activate(s Section) {
	for _, known := range Sections {
		if known == s {
			n.set(s)
			return
		}
	}
}

// Observe picks, among the visible sections, the one closest to the top.
// With nothing visible the active section is kept.
func (n *Navigator) Observe(vs ...Visibility) {
	best, bestDist := Section(""), math.Inf(1)
	for _, v := range vs {
		if !v.Visible {
			continue
		}
		if d := math.Abs(v.Top); d < bestDist {
			best, bestDist = v.Section, d
		}
	}
	if best != "" {
		n.Activate(best)
	}
}

func (n *Navigator) set(s Section) {
	if s == n.active {
		return
	}
	n.active = s
	for _, fn := range n.listeners {
		fn(s)
	}
}
