package core

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats/scalar"
)

// UnknownModification is the placeholder name some search engines emit for
// mass-only modifications.
const UnknownModification = "unknown_modification"

// Registry defaults.
const (
	DefaultPrecision  = 6
	DefaultMaxRenames = 16
)

// Modification is a distinct modification seen during a run.
type Modification struct {
	Name      string
	Mass      float64
	Residues  []string // sorted, distinct
	Accession string
}

type modEntry struct {
	mod      Modification
	residues map[string]struct{}
}

// Registry accumulates distinct modifications for a whole run. A name always
// maps to a single mass; a colliding mass is registered under the name with
// '*' appended.
type Registry struct {
	entries    map[string]*modEntry
	order      []string
	precision  int
	tolerance  float64
	maxRenames int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPrecision sets the number of decimals masses are rounded to.
func WithPrecision(decimals int) RegistryOption {
	return func(r *Registry) {
		if decimals >= 0 {
			r.precision = decimals
		}
	}
}

// WithMaxRenames caps the number of '*' suffixes tried on collisions.
func WithMaxRenames(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxRenames = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:    make(map[string]*modEntry),
		precision:  DefaultPrecision,
		maxRenames: DefaultMaxRenames,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tolerance = 0.5 * math.Pow10(-r.precision)
	return r
}

// Register records a modification and returns the name it is stored under.
func (r *Registry) Register(name string, mass float64, residues []string, accession string) (string, error) {
	mass = RoundFloat(mass, r.precision)
	if name == UnknownModification {
		name = MassLabel(mass)
	}

	candidate := name
	for i := 0; i <= r.maxRenames; i++ {
		e, ok := r.entries[candidate]
		if !ok {
			e = &modEntry{
				mod:      Modification{Name: candidate, Mass: mass, Accession: accession},
				residues: make(map[string]struct{}),
			}
			r.entries[candidate] = e
			r.order = append(r.order, candidate)
			e.addResidues(residues)
			return candidate, nil
		}
		if scalar.EqualWithinAbs(e.mod.Mass, mass, r.tolerance) {
			e.addResidues(residues)
			if e.mod.Accession == "" {
				e.mod.Accession = accession
			}
			return candidate, nil
		}
		candidate += "*"
	}
	return "", fmt.Errorf("%w: %q at mass %v after %d renames", ErrModificationCollision, name, mass, r.maxRenames)
}

// Lookup returns a registered modification by its stored name.
func (r *Registry) Lookup(name string) (Modification, bool) {
	e, ok := r.entries[name]
	if !ok {
		return Modification{}, false
	}
	return e.snapshot(), true
}

// Len returns the number of distinct modifications.
func (r *Registry) Len() int {
	return len(r.order)
}

// Modifications returns all entries in registration order.
func (r *Registry) Modifications() []Modification {
	out := make([]Modification, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].snapshot())
	}
	return out
}

func (e *modEntry) addResidues(residues []string) {
	for _, res := range residues {
		if res == "" {
			continue
		}
		e.residues[res] = struct{}{}
	}
}

func (e *modEntry) snapshot() Modification {
	m := e.mod
	m.Residues = make([]string, 0, len(e.residues))
	for res := range e.residues {
		m.Residues = append(m.Residues, res)
	}
	sort.Strings(m.Residues)
	return m
}

// MassLabel formats a mass as a signed label such as "(+15.99)".
func MassLabel(mass float64) string {
	rounded := RoundFloat(mass, 2)
	if rounded == 0 {
		rounded = 0 // drop the sign of -0
	}
	s := strconv.FormatFloat(rounded, 'f', 2, 64)
	if rounded >= 0 {
		s = "+" + s
	}
	return "(" + s + ")"
}
