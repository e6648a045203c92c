package condition

// Set holds the conditions currently applied to one combatant, in the order
// they were applied, indexed by condition ID and by name.
// It is not safe for concurrent use; the caller must serialise access.
type Set struct {
	order []*Condition
	byID  map[string]*Condition
	names map[Name]int
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{
		byID:  make(map[string]*Condition),
		names: make(map[Name]int),
	}
}

// Add appends c to the set. Uniqueness rules are enforced by the caller.
//
// Precondition: c must not be nil and c.ID must not already be present.
// Postcondition: Get(c.ID) returns c; Has(c.Name) is true.
func (s *Set) Add(c *Condition) {
	s.order = append(s.order, c)
	s.byID[c.ID] = c
	s.names[c.Name]++
}

// Get returns the condition with the given id.
func (s *Set) Get(id string) (*Condition, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Remove deletes the condition with the given id.
//
// Postcondition: Get(id) reports false. Returns the removed condition, or
// (nil, false) when id was not present.
func (s *Set) Remove(id string) (*Condition, bool) {
	c, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	delete(s.byID, id)
	if s.names[c.Name]--; s.names[c.Name] <= 0 {
		delete(s.names, c.Name)
	}
	for i, o := range s.order {
		if o.ID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return c, true
}

// Has reports whether a condition named n is present.
func (s *Set) Has(n Name) bool { return s.names[n] > 0 }

// First returns the earliest-applied condition named n.
func (s *Set) First(n Name) (*Condition, bool) {
	if !s.Has(n) {
		return nil, false
	}
	for _, c := range s.order {
		if c.Name == n {
			return c, true
		}
	}
	return nil, false
}

// RemoveName deletes every condition named n and returns them in applied order.
func (s *Set) RemoveName(n Name) []*Condition {
	if !s.Has(n) {
		return nil
	}
	var removed []*Condition
	for _, c := range s.All() {
		if c.Name == n {
			s.Remove(c.ID)
			removed = append(removed, c)
		}
	}
	return removed
}

// Len returns the number of applied conditions.
func (s *Set) Len() int { return len(s.order) }

// All returns the conditions in applied order. The slice is a new allocation
// but the pointed-to conditions are shared.
func (s *Set) All() []*Condition {
	out := make([]*Condition, len(s.order))
	copy(out, s.order)
	return out
}

// Tick advances every condition that should tick at timing during actor's turn.
// Conditions whose duration reaches zero are removed.
//
// Postcondition: For every returned condition, Get(c.ID) reports false.
func (s *Set) Tick(timing Timing, actor Ref) []*Condition {
	var expired []*Condition
	for _, c := range s.All() {
		if c.ShouldTick(timing, actor) && c.Tick() {
			s.Remove(c.ID)
			expired = append(expired, c)
		}
	}
	return expired
}
