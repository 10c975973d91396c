// Package models defines the core domain entities for fisdef.
// These models represent nuclide identities, decay records returned by a
// decay-data provider, and the per-interval sources built from an inventory.
//
// Terminology:
//   - Nuclide: element + mass number + isomeric state (ground or excited level).
//   - Record: a single emission line of a decaying parent, as published by the provider.
//   - Source: one inventory nuclide within one time interval, with its resolved records.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrUnresolvableNuclide is returned when a name cannot be mapped to a nuclide.
var ErrUnresolvableNuclide = errors.New("unresolvable nuclide")

// Nuclide identifies a nuclide in a specific nuclear state.
// State 0 is the ground state, State k >= 1 is the k-th excited (metastable) level.
type Nuclide struct {
	Element    string `json:"element"`     // Capitalised element symbol, e.g. "Co"
	MassNumber int    `json:"mass_number"` // Nucleon count A
	State      int    `json:"state"`       // 0 = ground, k = k-th excited level
}

// ParseNuclide converts an inventory name such as "Co60", "Nb93m" or "Ta180m1"
// into a Nuclide.
//
// Excited states are written either as a single letter (m, n, o, ... for
// levels 1, 2, 3, ...) or as "m" followed by the level index.
func ParseNuclide(name string) (Nuclide, error) {
	s := strings.TrimSpace(name)
	if s == "" {
		return Nuclide{}, fmt.Errorf("%w: empty name", ErrUnresolvableNuclide)
	}

	i := 0
	for i < len(s) && i < 2 && unicode.IsLetter(rune(s[i])) {
		i++
	}
	element := normaliseSymbol(s[:i])
	if _, ok := atomicNumbers[element]; !ok {
		return Nuclide{}, fmt.Errorf("%w: unknown element in %q", ErrUnresolvableNuclide, name)
	}

	j := i
	for j < len(s) && unicode.IsDigit(rune(s[j])) {
		j++
	}
	if j == i {
		return Nuclide{}, fmt.Errorf("%w: missing mass number in %q", ErrUnresolvableNuclide, name)
	}
	mass, err := strconv.Atoi(s[i:j])
	if err != nil || mass < 1 {
		return Nuclide{}, fmt.Errorf("%w: invalid mass number in %q", ErrUnresolvableNuclide, name)
	}

	state, err := parseState(strings.ToLower(s[j:]))
	if err != nil {
		return Nuclide{}, fmt.Errorf("%w: %v in %q", ErrUnresolvableNuclide, err, name)
	}

	return Nuclide{Element: element, MassNumber: mass, State: state}, nil
}

func parseState(suffix string) (int, error) {
	switch {
	case suffix == "":
		return 0, nil
	case len(suffix) == 1 && suffix[0] >= 'm' && suffix[0] <= 'z':
		return int(suffix[0]-'m') + 1, nil
	case suffix[0] == 'm':
		k, err := strconv.Atoi(suffix[1:])
		if err != nil || k < 1 {
			return 0, fmt.Errorf("invalid isomer suffix %q", suffix)
		}
		return k, nil
	default:
		return 0, fmt.Errorf("invalid isomer suffix %q", suffix)
	}
}

func normaliseSymbol(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// Name returns the state-less name, e.g. "Co60".
func (n Nuclide) Name() string {
	return fmt.Sprintf("%s%d", n.Element, n.MassNumber)
}

// NameWithState returns the name including the excited level, e.g. "Nb93m1".
func (n Nuclide) NameWithState() string {
	if n.State == 0 {
		return n.Name()
	}
	return fmt.Sprintf("%s%dm%d", n.Element, n.MassNumber, n.State)
}

// Ground returns the same nuclide in its ground state. Providers are queried
// with ground-state identities since they flatten all levels together.
func (n Nuclide) Ground() Nuclide {
	n.State = 0
	return n
}

// String implements fmt.Stringer.
func (n Nuclide) String() string {
	return n.NameWithState()
}

var atomicNumbers = func() map[string]int {
	symbols := []string{
		"H", "He", "Li", "Be", "B", "C", "N", "O", "F", "Ne",
		"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar", "K", "Ca",
		"Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
		"Ga", "Ge", "As", "Se", "Br", "Kr", "Rb", "Sr", "Y", "Zr",
		"Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd", "In", "Sn",
		"Sb", "Te", "I", "Xe", "Cs", "Ba", "La", "Ce", "Pr", "Nd",
		"Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er", "Tm", "Yb",
		"Lu", "Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au", "Hg",
		"Tl", "Pb", "Bi", "Po", "At", "Rn", "Fr", "Ra", "Ac", "Th",
		"Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf", "Es", "Fm",
		"Md", "No", "Lr", "Rf", "Db", "Sg", "Bh", "Hs", "Mt", "Ds",
		"Rg", "Cn", "Nh", "Fl", "Mc", "Lv", "Ts", "Og",
	}
	m := make(map[string]int, len(symbols))
	for i, s := range symbols {
		m[s] = i + 1
	}
	return m
}()
