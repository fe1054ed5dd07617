// Package resolver maps a requested card name to one canonical printing.
package resolver

import (
	"errors"
	"strings"

	"github.com/menta2k/cardmask/pkg/catalog"
	"github.com/menta2k/cardmask/pkg/types"
)

// ErrNotFound is returned when no printing passes resolution
var ErrNotFound = errors.New("card not found")

// DefaultBannedSets are sets never used as image sources: promos, online-only
// runs, oversized and non-tournament printings.
var DefaultBannedSets = []string{
	"mps_akh", "lea", "leb", "pjgp", "pgpx", "ppre", "plpa", "pmgd", "pfnm", "parl",
	"pmei", "pmpr", "prm", "pcmp", "dd3_gvl", "v14", "s99", "cma", "tsb", "ced",
	"c16", "ema", "jvc", "dd3_jvc", "exp", "v12",
}

// SetSource yields sets in the order they should be searched
type SetSource interface {
	Sets() []*types.SetRecord
}

// Exclusions is the immutable per-run exclusion configuration
type Exclusions struct {
	sets  map[string]struct{}
	cards map[string]map[string]struct{}
	bless map[string]string
}

// NewExclusions builds exclusions from banned set codes, banned (set, name)
// pairs and blessings. A blessing pins a card name to one set and bypasses
// both banned lists for that pair.
func NewExclusions(bannedSets []string, bannedCards map[string][]string, blessings map[string]string) Exclusions {
	ex := Exclusions{
		sets:  make(map[string]struct{}, len(bannedSets)),
		cards: make(map[string]map[string]struct{}, len(bannedCards)),
		bless: make(map[string]string, len(blessings)),
	}
	for _, code := range bannedSets {
		ex.sets[normalizeCode(code)] = struct{}{}
	}
	for code, names := range bannedCards {
		m := make(map[string]struct{}, len(names))
		for _, n := range names {
			m[catalog.NormalizeName(n)] = struct{}{}
		}
		ex.cards[normalizeCode(code)] = m
	}
	for name, code := range blessings {
		ex.bless[catalog.NormalizeName(name)] = normalizeCode(code)
	}
	return ex
}

// SetBanned reports whether a set code is excluded
func (e Exclusions) SetBanned(code string) bool {
	_, ok := e.sets[normalizeCode(code)]
	return ok
}

// CardBanned reports whether the (set, name) pair is excluded
func (e Exclusions) CardBanned(code, name string) bool {
	names, ok := e.cards[normalizeCode(code)]
	if !ok {
		return false
	}
	_, ok = names[catalog.NormalizeName(name)]
	return ok
}

// Blessing returns the set a name is pinned to, if any
func (e Exclusions) Blessing(name string) (string, bool) {
	code, ok := e.bless[catalog.NormalizeName(name)]
	return code, ok
}

// Resolver selects canonical printings
type Resolver struct {
	sets       SetSource
	exclusions Exclusions
}

// New creates a resolver over a set source with the given exclusions
func New(sets SetSource, exclusions Exclusions) *Resolver {
	return &Resolver{sets: sets, exclusions: exclusions}
}

// Resolve returns the canonical printing for name.
//
// Sets are searched in catalog order. The first non-excluded printing that
// carries an identifier becomes the fallback; a timeshifted fallback is
// replaced by the first regular printing found later. The search stops at the
// first regular, identified, black-bordered printing.
func (r *Resolver) Resolve(name string) (*types.CardRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}
	normalized := catalog.NormalizeName(name)

	if card := r.blessed(name, normalized); card != nil {
		return card, nil
	}

	var best *types.CardRecord
	for _, set := range r.sets.Sets() {
		if r.exclusions.SetBanned(set.Code) {
			continue
		}

		candidate := set.CardByExactName(name)
		if candidate == nil {
			candidate = set.CardByNormalizedName(normalized)
		}
		if candidate == nil {
			continue
		}
		if r.exclusions.CardBanned(set.Code, candidate.Name) {
			continue
		}
		if !candidate.HasID() {
			continue
		}

		if best == nil || (best.Timeshifted && !candidate.Timeshifted) {
			best = candidate
		}

		if candidate.Timeshifted {
			continue
		}

		if candidate.Border() == types.BorderBlack {
			best = candidate
			break
		}
	}

	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (r *Resolver) blessed(name, normalized string) *types.CardRecord {
	code, ok := r.exclusions.Blessing(name)
	if !ok {
		return nil
	}
	for _, set := range r.sets.Sets() {
		if normalizeCode(set.Code) != code {
			continue
		}
		card := set.CardByExactName(name)
		if card == nil {
			card = set.CardByNormalizedName(normalized)
		}
		if card != nil && card.HasID() {
			return card
		}
		return nil
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
