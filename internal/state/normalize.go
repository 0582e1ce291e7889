package state

import "time"

// timestampLayouts are the accepted absolute-timestamp forms, tried in
// order. Zoneless values are treated as UTC, matching the upstream sources.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalizer derives display-timezone time strings from the absolute
// timestamps carried in a state.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
}

// NewNormalizer resolves the display timezone by name, falling back to UTC
// when it cannot be loaded.
func NewNormalizer(timezone string) *Normalizer {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc, now: time.Now}
}

// Enrich writes now.end_local and next.start_local onto s where the
// corresponding absolute timestamp is present and parseable, and returns s.
// Missing or malformed timestamps simply leave the derived field unset;
// Enrich never fails.
func (n *Normalizer) Enrich(s *State) *State {
	if s == nil {
		return nil
	}
	if s.Now != nil {
		if local := n.formatLocal(s.Now.End); local != "" {
			s.Now.EndLocal = local
		}
	}
	if s.Next != nil {
		if local := n.formatLocal(s.Next.Start); local != "" {
			s.Next.StartLocal = local
		}
	}
	return s
}

// formatLocal renders an absolute timestamp in the display timezone:
// "15:04" when it falls on the current local date, "Mon 15:04" otherwise.
// Returns "" when the value is empty or unparseable.
func (n *Normalizer) formatLocal(value string) string {
	if value == "" {
		return ""
	}
	t, ok := parseTimestamp(value)
	if !ok {
		return ""
	}
	local := t.In(n.loc)
	today := n.now().In(n.loc)
	if sameDate(local, today) {
		return local.Format("15:04")
	}
	return local.Format("Mon 15:04")
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		// Zoneless layouts parse into UTC already via time.Parse.
		return t, true
	}
	return time.Time{}, false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
