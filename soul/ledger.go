package soul

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/pthm-cable/multiverse/traits"
)

// Soul is the persisted cross-cycle summary of a lineage.
type Soul struct {
	Lineage     uuid.UUID               `json:"lineage"`
	Lifespan    float64                 `json:"lifespan"` // Gyr accumulated over all cycles
	Stability   [traits.NumAxes]float64 `json:"stability"`
	Conditions  Condition               `json:"conditions"`
	Genome      traits.Genome           `json:"genome"` // most recent dominant genome
	Generations uint64                  `json:"generations"`
	Cycles      uint32                  `json:"cycles"`
	LastCycle   uint32                  `json:"last_cycle"`
}

// Ledger stores souls keyed by lineage. It is the only state that survives a
// rebirth. Entries are only ever added or merged.
type Ledger struct {
	mu    sync.RWMutex
	souls map[uuid.UUID]*Soul
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{souls: make(map[uuid.UUID]*Soul)}
}

// Merge folds a cycle's contribution into the lineage's soul and returns the
// merged value. Stability is averaged weighted by generations.
func (l *Ledger) Merge(c Contribution, cycle uint32) Soul {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.souls[c.Lineage]
	if s == nil {
		s = &Soul{Lineage: c.Lineage}
		l.souls[c.Lineage] = s
	}

	weight := max(c.Births, 1)
	total := s.Generations + weight
	for a := range s.Stability {
		s.Stability[a] = (s.Stability[a]*float64(s.Generations) + c.Stability[a]*float64(weight)) / float64(total)
	}
	s.Generations = total
	s.Lifespan += c.Lifespan
	s.Conditions = s.Conditions.Add(c.Conditions)
	s.Genome = c.Genome
	if s.Cycles == 0 || s.LastCycle != cycle {
		s.Cycles++
	}
	s.LastCycle = cycle
	return *s
}

// Lookup returns the soul for a lineage.
func (l *Ledger) Lookup(lineage uuid.UUID) (Soul, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.souls[lineage]
	if !ok {
		return Soul{}, false
	}
	return *s, true
}

// Len returns the number of souls.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.souls)
}

// Entries returns copies of all souls ordered by lineage.
func (l *Ledger) Entries() []Soul {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Soul, 0, len(l.souls))
	for _, s := range l.souls {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Soul) int {
		return bytes.Compare(a.Lineage[:], b.Lineage[:])
	})
	return out
}

// Put inserts or replaces souls as-is. Used when restoring persisted state.
func (l *Ledger) Put(souls ...Soul) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range souls {
		s := souls[i]
		l.souls[s.Lineage] = &s
	}
}

// Replace drops every soul and inserts souls.
func (l *Ledger) Replace(souls ...Soul) {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.souls)
	for i := range souls {
		s := souls[i]
		l.souls[s.Lineage] = &s
	}
}

// MarshalJSON serializes the ledger as an ordered list of souls.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Entries())
}

// SaveFile writes the ledger to a JSON file.
func (l *Ledger) SaveFile(path string) error {
	data, err := json.MarshalIndent(l.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling soul ledger: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing soul ledger: %w", err)
	}
	return nil
}

// LoadLedgerFromFile reads a ledger written by SaveFile.
func LoadLedgerFromFile(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading soul ledger: %w", err)
	}
	var souls []Soul
	if err := json.Unmarshal(data, &souls); err != nil {
		return nil, fmt.Errorf("parsing soul ledger JSON: %w", err)
	}
	l := NewLedger()
	l.Put(souls...)
	return l, nil
}
