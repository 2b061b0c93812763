package store

import (
	"slices"
	"sync"
	"time"

	"basinhop/internal/bh"
)

// Minimum is one local minimum visited by the chain.
type Minimum struct {
	Energy float64   `json:"energy"`
	Coords []float64 `json:"coords"`
	Found  time.Time `json:"found"`
}

// MinimaStore keeps the lowest-energy distinct minima seen by a run, sorted
// ascending by energy. Two minima closer than EnergyTol are treated as the
// same basin and only the first is kept.
type MinimaStore struct {
	mu        sync.Mutex
	max       int
	energyTol float64
	minima    []Minimum
}

// NewMinimaStore keeps at most max minima (0 = unbounded), deduplicating
// energies within energyTol.
func NewMinimaStore(max int, energyTol float64) *MinimaStore {
	return &MinimaStore{max: max, energyTol: energyTol}
}

// Insert records a minimum, keeping the collection sorted, deduplicated, and
// capped.
func (s *MinimaStore) Insert(energy float64, coords []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, _ := slices.BinarySearchFunc(s.minima, energy, func(m Minimum, e float64) int {
		switch {
		case m.Energy < e:
			return -1
		case m.Energy > e:
			return 1
		}
		return 0
	})

	// Known basin: an existing entry within tolerance on either side.
	if idx < len(s.minima) && s.minima[idx].Energy-energy < s.energyTol {
		return
	}
	if idx > 0 && energy-s.minima[idx-1].Energy < s.energyTol {
		return
	}

	m := Minimum{
		Energy: energy,
		Coords: slices.Clone(coords),
		Found:  time.Now(),
	}
	s.minima = slices.Insert(s.minima, idx, m)
	if s.max > 0 && len(s.minima) > s.max {
		s.minima = s.minima[:s.max]
	}
}

// Lowest returns the lowest minimum recorded so far.
func (s *MinimaStore) Lowest() (Minimum, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.minima) == 0 {
		return Minimum{}, false
	}
	return s.minima[0], true
}

// Minima returns a copy of the stored minima, lowest first.
func (s *MinimaStore) Minima() []Minimum {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Minimum, len(s.minima))
	copy(out, s.minima)
	return out
}

// Len returns the number of stored minima.
func (s *MinimaStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.minima)
}

// Storage adapts the store to the driver's storage-sink contract.
func (s *MinimaStore) Storage() bh.Storage {
	return s.Insert
}
