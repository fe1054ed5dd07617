// Package catalog holds the read-only card database: every set with its
// printings, in a documented iteration order.
package catalog

import (
	"sort"
	"strings"

	"github.com/menta2k/cardmask/pkg/types"
)

// Order selects which printings the resolver meets first
type Order int

const (
	// OldestFirst iterates sets by ascending release date
	OldestFirst Order = iota
	// NewestFirst iterates sets by descending release date
	NewestFirst
)

// ParseOrder maps a config value to an Order; unknown values mean OldestFirst
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), "newest") {
		return NewestFirst
	}
	return OldestFirst
}

func (o Order) String() string {
	if o == NewestFirst {
		return "newest"
	}
	return "oldest"
}

// Catalog is an immutable, ordered collection of sets. It is safe for
// concurrent readers once built.
type Catalog struct {
	sets   []*types.SetRecord
	byCode map[string]*types.SetRecord
	order  Order
	cards  int
}

// New builds a catalog iterating oldest set first
func New(sets []*types.SetRecord) *Catalog {
	return NewWithOrder(sets, OldestFirst)
}

// NewWithOrder builds a catalog with an explicit iteration order. Sets are
// sorted by release date, ties broken by set code.
func NewWithOrder(sets []*types.SetRecord, order Order) *Catalog {
	sorted := make([]*types.SetRecord, 0, len(sets))
	byCode := make(map[string]*types.SetRecord, len(sets))
	cards := 0
	for _, s := range sets {
		if s == nil {
			continue
		}
		sorted = append(sorted, s)
		byCode[strings.ToLower(s.Code)] = s
		cards += len(s.Cards())
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.ReleaseDate.Equal(b.ReleaseDate) {
			return a.ReleaseDate.Before(b.ReleaseDate)
		}
		return strings.ToLower(a.Code) < strings.ToLower(b.Code)
	})
	if order == NewestFirst {
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}

	return &Catalog{sets: sorted, byCode: byCode, order: order, cards: cards}
}

// WithOrder returns a catalog sharing the same sets in a different order
func (c *Catalog) WithOrder(order Order) *Catalog {
	if order == c.order {
		return c
	}
	return NewWithOrder(c.sets, order)
}

// Order returns the iteration order
func (c *Catalog) Order() Order {
	return c.order
}

// Sets returns all sets in iteration order
func (c *Catalog) Sets() []*types.SetRecord {
	out := make([]*types.SetRecord, len(c.sets))
	copy(out, c.sets)
	return out
}

// Set looks up a set by code, ignoring case
func (c *Catalog) Set(code string) *types.SetRecord {
	return c.byCode[strings.ToLower(strings.TrimSpace(code))]
}

// Len returns the number of sets
func (c *Catalog) Len() int {
	return len(c.sets)
}

// CardCount returns the number of distinct (set, name) printings
func (c *Catalog) CardCount() int {
	return c.cards
}
