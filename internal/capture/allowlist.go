package capture

// Allowlist restricts which databases may be offered as capture targets.
// An empty allow-list is unrestricted. Membership is enforced when listing
// database options, not re-checked at creation time: anything submitted
// through the form was offered by us.
type Allowlist struct {
	ordered []string
	ids     map[string]struct{}
}

// NewAllowlist builds an Allowlist from configured database ids.
func NewAllowlist(ids []string) Allowlist {
	a := Allowlist{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if _, dup := a.ids[id]; dup {
			continue
		}
		a.ids[id] = struct{}{}
		a.ordered = append(a.ordered, id)
	}
	return a
}

// Allows reports whether the database may be offered.
func (a Allowlist) Allows(id string) bool {
	if len(a.ids) == 0 {
		return true
	}
	_, ok := a.ids[id]
	return ok
}

// Unrestricted reports whether the allow-list is empty.
func (a Allowlist) Unrestricted() bool {
	return len(a.ids) == 0
}

// IDs returns the configured ids in configuration order.
func (a Allowlist) IDs() []string {
	out := make([]string, len(a.ordered))
	copy(out, a.ordered)
	return out
}
