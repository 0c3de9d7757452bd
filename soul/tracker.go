package soul

import (
	"bytes"
	"slices"

	"github.com/google/uuid"

	"github.com/pthm-cable/multiverse/traits"
)

// Record holds one lineage's history within the current cycle.
type Record struct {
	Lineage    uuid.UUID              `json:"lineage"`
	Genome     traits.Genome          `json:"genome"`
	Conditions Condition              `json:"conditions"`
	Births     uint64                 `json:"births"`
	Deaths     uint64                 `json:"deaths"`
	Lifespan   float64                `json:"lifespan"` // Gyr, summed over deaths
	Mutations  [traits.NumAxes]uint64 `json:"mutations"`
}

// Stability returns 1 minus the fraction of births that mutated each axis.
func (r *Record) Stability() [traits.NumAxes]float64 {
	var out [traits.NumAxes]float64
	births := float64(max(r.Births, 1))
	for a := range out {
		out[a] = clamp01(1 - float64(r.Mutations[a])/births)
	}
	return out
}

// Contribution is what a lineage adds to its soul at the end of a cycle.
type Contribution struct {
	Lineage    uuid.UUID
	Genome     traits.Genome
	Lifespan   float64
	Stability  [traits.NumAxes]float64
	Conditions Condition
	Births     uint64
}

// Tracker manages per-lineage records for one cycle. It is owned by the
// simulation thread and is not safe for concurrent use.
type Tracker struct {
	records map[uuid.UUID]*Record
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{records: make(map[uuid.UUID]*Record)}
}

// Register creates the record for a lineage or refreshes its dominant genome
// and conditions. Counters are kept.
func (t *Tracker) Register(lineage uuid.UUID, genome traits.Genome, conditions Condition) *Record {
	r := t.records[lineage]
	if r == nil {
		r = &Record{Lineage: lineage}
		t.records[lineage] = r
	}
	r.Genome = genome
	r.Conditions = r.Conditions.Add(conditions)
	return r
}

// Get returns the record for a lineage, or nil if not found.
func (t *Tracker) Get(lineage uuid.UUID) *Record {
	return t.records[lineage]
}

// RecordBirth counts a birth and the axes that mutated in it.
func (t *Tracker) RecordBirth(lineage uuid.UUID, mutated []traits.Axis) {
	r := t.records[lineage]
	if r == nil {
		return
	}
	r.Births++
	for _, a := range mutated {
		if int(a) < traits.NumAxes {
			r.Mutations[a]++
		}
	}
}

// RecordDeath adds a finished lifespan.
func (t *Tracker) RecordDeath(lineage uuid.UUID, lifespan float64) {
	r := t.records[lineage]
	if r == nil {
		return
	}
	r.Deaths++
	if lifespan > 0 {
		r.Lifespan += lifespan
	}
}

// Count returns the number of tracked lineages.
func (t *Tracker) Count() int {
	return len(t.records)
}

// Records returns copies of all records ordered by lineage.
func (t *Tracker) Records() []Record {
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b Record) int {
		return bytes.Compare(a.Lineage[:], b.Lineage[:])
	})
	return out
}

// Restore replaces the tracked records.
func (t *Tracker) Restore(records []Record) {
	t.records = make(map[uuid.UUID]*Record, len(records))
	for i := range records {
		r := records[i]
		t.records[r.Lineage] = &r
	}
}

// Contributions returns the soul contribution of every lineage with a
// nonzero recorded lifespan, ordered by lineage.
func (t *Tracker) Contributions() []Contribution {
	var out []Contribution
	for _, r := range t.Records() {
		if r.Lifespan <= 0 {
			continue
		}
		out = append(out, Contribution{
			Lineage:    r.Lineage,
			Genome:     r.Genome,
			Lifespan:   r.Lifespan,
			Stability:  r.Stability(),
			Conditions: r.Conditions,
			Births:     r.Births,
		})
	}
	return out
}

// Reset drops all records.
func (t *Tracker) Reset() {
	clear(t.records)
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
