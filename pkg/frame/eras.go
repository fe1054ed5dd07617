package frame

import (
	"time"

	"github.com/menta2k/cardmask/pkg/types"
)

// Eras holds the release dates at which the printed frame changed
type Eras struct {
	// Planeswalker is the first set with the current planeswalker frame (BFZ)
	Planeswalker time.Time
	// Modern is the first set with the M15 frame
	Modern time.Time
	// Eighth is the first set with the 8th Edition frame
	Eighth time.Time
	// Fourth is the first set printed with a legal-line band (4ED)
	Fourth time.Time
}

// DefaultEras returns the historical frame boundaries
func DefaultEras() Eras {
	return Eras{
		Planeswalker: date(2015, time.October, 2),
		Modern:       date(2014, time.July, 18),
		Eighth:       date(2003, time.July, 28),
		Fourth:       date(1995, time.April, 1),
	}
}

// SetLookup finds a set by code
type SetLookup interface {
	Set(code string) *types.SetRecord
}

// ErasFrom reads the boundaries from the catalog's own release dates,
// keeping the defaults for sets the catalog does not carry.
func ErasFrom(db SetLookup) Eras {
	eras := DefaultEras()
	if db == nil {
		return eras
	}
	pick := func(code string, fallback time.Time) time.Time {
		if s := db.Set(code); s != nil && !s.ReleaseDate.IsZero() {
			return s.ReleaseDate
		}
		return fallback
	}
	eras.Planeswalker = pick("bfz", eras.Planeswalker)
	eras.Modern = pick("m15", eras.Modern)
	eras.Eighth = pick("8ed", eras.Eighth)
	eras.Fourth = pick("4ed", eras.Fourth)
	return eras
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
