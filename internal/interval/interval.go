// Package interval turns a user index specification into the validated list
// of inventory interval indices to process.
//
// Accepted specifications:
//
//	single number : 1
//	list          : "1 5 12"
//	range         : 1-3 (inclusive)
//	all / blank   : every interval
package interval

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrMalformedSpec is returned when the index syntax cannot be parsed.
	ErrMalformedSpec = errors.New("malformed index specification")
	// ErrOutOfRange is returned when no requested index falls within the inventory.
	ErrOutOfRange = errors.New("index out of range")
)

// Kind distinguishes the forms of a Spec.
type Kind int

const (
	All Kind = iota
	Single
	List
	Range
)

// Spec is a parsed index specification.
type Spec struct {
	Kind    Kind
	Indices []int // Single: one value, List: as given, Range: start and end
}

// Parse reads the user syntax. A blank string means every interval.
func Parse(s string) (Spec, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.EqualFold(trimmed, "all") {
		return Spec{Kind: All}, nil
	}

	if start, end, found := strings.Cut(trimmed, "-"); found {
		a, errA := parseIndex(start)
		b, errB := parseIndex(end)
		if errA != nil || errB != nil || a > b {
			return Spec{}, fmt.Errorf("%w: invalid range %q", ErrMalformedSpec, s)
		}
		return Spec{Kind: Range, Indices: []int{a, b}}, nil
	}

	fields := strings.Fields(trimmed)
	values := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := parseIndex(f)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: expected integers ('0 1 2'), range (0-2), or 'all', got %q", ErrMalformedSpec, s)
		}
		values = append(values, v)
	}
	if len(values) == 1 {
		return Spec{Kind: Single, Indices: values}, nil
	}
	return Spec{Kind: List, Indices: values}, nil
}

func parseIndex(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative index %d", v)
	}
	return v, nil
}

// String renders the spec back in user syntax.
func (s Spec) String() string {
	switch s.Kind {
	case Single:
		return strconv.Itoa(s.Indices[0])
	case List:
		parts := make([]string, len(s.Indices))
		for i, v := range s.Indices {
			parts[i] = strconv.Itoa(v)
		}
		return strings.Join(parts, " ")
	case Range:
		return fmt.Sprintf("%d-%d", s.Indices[0], s.Indices[1])
	default:
		return "all"
	}
}

// Select expands the spec against n intervals into a sorted, deduplicated
// list of indices below n.
func Select(spec Spec, n int) ([]int, error) {
	var indices []int
	switch spec.Kind {
	case Single, List:
		indices = append(indices, spec.Indices...)
	case Range:
		for i := spec.Indices[0]; i <= spec.Indices[1] && i < n; i++ {
			indices = append(indices, i)
		}
	default:
		for i := 0; i < n; i++ {
			indices = append(indices, i)
		}
	}

	sort.Ints(indices)

	valid := make([]int, 0, len(indices))
	for _, v := range indices {
		if v >= n {
			break
		}
		if len(valid) > 0 && valid[len(valid)-1] == v {
			continue
		}
		valid = append(valid, v)
	}

	if len(valid) == 0 {
		if n == 0 {
			return nil, fmt.Errorf("%w: %q not valid, inventory has no intervals", ErrOutOfRange, spec)
		}
		return nil, fmt.Errorf("%w: %q not valid for expected 0-%d range", ErrOutOfRange, spec, n-1)
	}
	return valid, nil
}
