package rbac

// Grants is what one user holds within one project (or globally when the
// project is NoProject): the role names and the capabilities they expand to.
type Grants struct {
	Roles        []string
	Capabilities []Capability
}

// Requirement is the single declarative access rule attached to a route.
// Roles is an any-of set; Capability, when set, must be covered by one of the
// held capabilities. Both must hold when both are given.
type Requirement struct {
	Roles      []string
	Capability *Capability
}

// Empty reports whether the requirement asks for nothing.
func (r Requirement) Empty() bool {
	return len(r.Roles) == 0 && r.Capability == nil
}

// HasRole reports whether name is among the held roles.
func (g *Grants) HasRole(name string) bool {
	for _, r := range g.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether any of names is held.
func (g *Grants) HasAnyRole(names []string) bool {
	for _, n := range names {
		if g.HasRole(n) {
			return true
		}
	}
	return false
}

// Can reports whether a held capability covers want.
func (g *Grants) Can(want Capability) bool {
	for _, c := range g.Capabilities {
		if c.Covers(want) {
			return true
		}
	}
	return false
}

// CanAll reports whether every capability in want is covered. A nil g holds
// nothing.
func (g *Grants) CanAll(want []Capability) bool {
	for _, w := range want {
		if g == nil || !g.Can(w) {
			return false
		}
	}
	return true
}

// Satisfies evaluates a requirement.
func (g *Grants) Satisfies(req Requirement) bool {
	if len(req.Roles) > 0 && !g.HasAnyRole(req.Roles) {
		return false
	}
	if req.Capability != nil && !g.Can(*req.Capability) {
		return false
	}
	return true
}
