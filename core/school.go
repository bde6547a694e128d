package core

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/signalsfoundry/tileworld-simulator/model"
)

// MaxSchools is the number of live schools a world may hold.
const MaxSchools = 10

// School groups wanderers that share damage. A wanderer belongs to at most
// one school at a time.
type School struct {
	id         int
	world      *World
	members    []*Entity
	terminated bool
}

// ID is the creation index of the school within its world.
func (s *School) ID() int { return s.id }

func (s *School) World() *World { return s.world }

func (s *School) IsTerminated() bool { return s.terminated }

// Len is the member count.
func (s *School) Len() int { return len(s.members) }

// Members returns a copy of the members ordered by tag.
func (s *School) Members() []*Entity {
	out := slices.Clone(s.members)
	slices.SortFunc(out, func(a, b *Entity) int { return cmp.Compare(a.tag, b.tag) })
	return out
}

// Contains reports membership.
func (s *School) Contains(e *Entity) bool {
	return e != nil && e.school == s
}

// Add puts a wanderer into the school, taking it out of any previous one.
// No hit points are transferred; use SwitchTo for that.
func (s *School) Add(e *Entity) error {
	if s.terminated {
		return ErrSchoolTerminated
	}
	if e == nil || e.terminated {
		return ErrTerminated
	}
	if e.Species() != model.SpeciesWanderer {
		return fmt.Errorf("%w: %s cannot join a school", ErrWrongSpecies, e.Species())
	}
	if e.school == s {
		return nil
	}
	if e.school != nil {
		e.school.drop(e)
	}
	s.members = append(s.members, e)
	e.school = s
	return nil
}

// Remove takes a wanderer out of the school.
func (s *School) Remove(e *Entity) error {
	if !s.Contains(e) {
		return ErrNotInSchool
	}
	s.drop(e)
	return nil
}

// drop unlinks e without any checks.
func (s *School) drop(e *Entity) {
	s.members = slices.DeleteFunc(s.members, func(m *Entity) bool { return m == e })
	if e.school == s {
		e.school = nil
	}
}

// SwitchTo moves e from s into dst. Every wanderer left behind gains one hit
// point per member and e loses one for each; every member of dst loses one
// hit point and e gains one for each.
func (s *School) SwitchTo(dst *School, e *Entity) error {
	if dst == nil || dst == s {
		return nil
	}
	if !s.Contains(e) {
		return ErrNotInSchool
	}
	if dst.terminated {
		return ErrSchoolTerminated
	}
	if dst.world != s.world {
		return ErrForeignSchool
	}
	if e.terminated {
		return ErrTerminated
	}
	s.drop(e)
	for _, m := range s.Members() {
		e.adjustHitPoints(-1, CauseSchool)
		m.adjustHitPoints(1, CauseSchool)
	}
	for _, m := range dst.Members() {
		m.adjustHitPoints(-1, CauseSchool)
		e.adjustHitPoints(1, CauseSchool)
	}
	dst.members = append(dst.members, e)
	e.school = dst
	if w := s.world; w != nil {
		w.logSchoolSwitch(e, s, dst)
	}
	return nil
}

// Terminate disbands the school and frees its slot in the world.
func (s *School) Terminate() {
	if s.terminated {
		return
	}
	for _, m := range slices.Clone(s.members) {
		s.drop(m)
	}
	s.terminated = true
	if s.world != nil {
		s.world.dropSchool(s)
	}
}
