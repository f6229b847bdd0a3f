package expr

import (
	"fmt"
	"sort"
	"strings"
)

// Filter is a conjunction of comparator conditions applied to raw option
// items before projection.
type Filter struct {
	conditions []*Condition
}

// ParseFilter parses `field op value` terms joined by &&.
func ParseFilter(input string) (*Filter, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return &Filter{}, nil
	}
	parts := strings.Split(s, "&&")
	conds := make([]*Condition, 0, len(parts))
	for _, p := range parts {
		cond, err := ParseCondition(p)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		conds = append(conds, cond)
	}
	return &Filter{conditions: conds}, nil
}

// Matches reports whether an item satisfies every condition.
func (f *Filter) Matches(item map[string]any) bool {
	for _, c := range f.conditions {
		if !c.Evaluate(item) {
			return false
		}
	}
	return true
}

// Apply returns the items that match; the input slice is not mutated.
func (f *Filter) Apply(items []map[string]any) []map[string]any {
	if len(f.conditions) == 0 {
		return items
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if f.Matches(it) {
			out = append(out, it)
		}
	}
	return out
}

// SortSpec is a parsed `field asc|desc` sort expression.
type SortSpec struct {
	Field      string
	Descending bool
}

// ParseSort parses "field" or "field asc" or "field desc".
func ParseSort(input string) (*SortSpec, error) {
	parts := strings.Fields(strings.TrimSpace(input))
	switch len(parts) {
	case 0:
		return nil, fmt.Errorf("empty sort expression")
	case 1:
		return &SortSpec{Field: parts[0]}, nil
	case 2:
		switch strings.ToLower(parts[1]) {
		case "asc":
			return &SortSpec{Field: parts[0]}, nil
		case "desc":
			return &SortSpec{Field: parts[0], Descending: true}, nil
		}
		return nil, fmt.Errorf("sort %q: direction must be asc or desc", input)
	default:
		return nil, fmt.Errorf("sort %q: expected `field [asc|desc]`", input)
	}
}

// Apply sorts a copy of the items. Numbers order numerically (via decimal),
// everything else lexicographically; items missing the field sort last.
func (s *SortSpec) Apply(items []map[string]any) []map[string]any {
	out := append([]map[string]any(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		less := itemLess(out[i], out[j], s.Field)
		if s.Descending {
			return itemLess(out[j], out[i], s.Field)
		}
		return less
	})
	return out
}

func itemLess(a, b map[string]any, field string) bool {
	av, aok := a[field]
	bv, bok := b[field]
	if !aok || av == nil {
		return false
	}
	if !bok || bv == nil {
		return true
	}
	ad, aNum := coerceDecimal(av)
	bd, bNum := coerceDecimal(bv)
	if aNum && bNum {
		return ad.Cmp(bd) < 0
	}
	return fmt.Sprint(av) < fmt.Sprint(bv)
}
