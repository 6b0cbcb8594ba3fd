package main

// Section describes one navigable region of the page: its DOM anchor,
// the sidebar label, and the intersection ratio at which it claims the
// highlight.
type Section struct {
	ID        string
	Label     string
	Threshold float64
}

// DefaultSections returns the page's sections in display order. The
// hero takes half the viewport before it counts as visible; the denser
// sections count at a third.
func DefaultSections() []Section {
	return []Section{
		{ID: "home", Label: "Home", Threshold: 0.5},
		{ID: "skills", Label: "Skills", Threshold: 0.3},
		{ID: "projects", Label: "Projects", Threshold: 0.3},
		{ID: "contact", Label: "Contact", Threshold: 0.3},
	}
}

// SectionByID looks a section up by its identifier.
func SectionByID(sections []Section, id string) (Section, bool) {
	for _, s := range sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// ReportFunc is the write side of the coordinator, handed to trackers
// and the navigate handler.
type ReportFunc func(sectionID string)

// Coordinator holds the identifier of the section that currently owns
// the sidebar highlight. Reports overwrite unconditionally, last write
// wins, and identifiers are not validated here.
//
// A coordinator belongs to a single page session and is driven from
// that session's event loop, so it is not safe for concurrent use.
type Coordinator struct {
	current   string
	listeners map[int]func(string)
	nextID    int
}

// NewCoordinator returns a coordinator whose value starts at initial,
// normally the first section of the page.
func NewCoordinator(initial string) *Coordinator {
	return &Coordinator{
		current:   initial,
		listeners: make(map[int]func(string)),
	}
}

// Read returns the active section identifier.
func (c *Coordinator) Read() string {
	return c.current
}

// Report stores id as the active section. Listeners run only when the
// value actually changes.
func (c *Coordinator) Report(id string) {
	if id == c.current {
		return
	}
	c.current = id
	for _, fn := range c.listeners {
		fn(id)
	}
}

// Subscribe registers fn to run on every change and returns the
// matching unsubscribe func. The current value is not replayed; the
// caller reads it if it needs a starting point.
func (c *Coordinator) Subscribe(fn func(sectionID string)) func() {
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		delete(c.listeners, id)
	}
}

// Tracker watches one section's intersection ratio and reports the
// section when the ratio crosses its threshold from below. It never
// reports on the way down; falling below the threshold re-arms it so
// the next upward crossing reports again.
type Tracker struct {
	section   string
	threshold float64
	report    ReportFunc
	above     bool
	closed    bool
}

// NewTracker builds a tracker for section that reports through report.
func NewTracker(section Section, report ReportFunc) *Tracker {
	return &Tracker{
		section:   section.ID,
		threshold: section.Threshold,
		report:    report,
	}
}

// Observe feeds one intersection sample to the tracker.
func (t *Tracker) Observe(ratio float64) {
	if t.closed {
		return
	}
	above := ratio >= t.threshold
	if above && !t.above {
		t.report(t.section)
	}
	t.above = above
}

// Close releases the tracker; samples after Close are ignored. A
// section that re-mounts gets a fresh tracker instead of reusing this
// one.
func (t *Tracker) Close() {
	t.closed = true
}

// NewTrackers builds one tracker per section, keyed by section ID, all
// reporting through the same func.
func NewTrackers(sections []Section, report ReportFunc) map[string]*Tracker {
	trackers := make(map[string]*Tracker, len(sections))
	for _, s := range sections {
		trackers[s.ID] = NewTracker(s, report)
	}
	return trackers
}
