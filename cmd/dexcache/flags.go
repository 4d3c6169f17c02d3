package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/IvanBrykalov/dexcache/query"
)

// boundsFlag collects repeated -bound name=min:max values.
type boundsFlag []query.AttributeBound

func (b *boundsFlag) String() string {
	if b == nil {
		return ""
	}
	parts := make([]string, 0, len(*b))
	for _, x := range *b {
		parts = append(parts, fmt.Sprintf("%s=%d:%d", x.Name, x.Min, x.Max))
	}
	return strings.Join(parts, ",")
}

func (b *boundsFlag) Set(s string) error {
	name, rng, ok := strings.Cut(s, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	if !ok || name == "" {
		return fmt.Errorf("bound %q: want name=min:max", s)
	}
	lo, hi, ok := strings.Cut(rng, ":")
	if !ok {
		return fmt.Errorf("bound %q: want name=min:max", s)
	}
	minV, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return fmt.Errorf("bound %q: min: %w", s, err)
	}
	maxV, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return fmt.Errorf("bound %q: max: %w", s, err)
	}
	if minV < 0 || maxV > query.MaxAttributeValue || minV > maxV {
		return fmt.Errorf("bound %q: want 0 <= min <= max <= %d", s, query.MaxAttributeValue)
	}
	*b = append(*b, query.AttributeBound{Name: name, Min: minV, Max: maxV})
	return nil
}

// idsFlag parses a comma-separated list of positive record ids.
type idsFlag []int

func (f *idsFlag) String() string {
	if f == nil {
		return ""
	}
	parts := make([]string, 0, len(*f))
	for _, id := range *f {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}

func (f *idsFlag) Set(s string) error {
	var ids []int
	for _, p := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid record id %q", p)
		}
		ids = append(ids, id)
	}
	*f = ids
	return nil
}
