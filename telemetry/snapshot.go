package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/multiverse/biosphere"
	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/config"
	"github.com/pthm-cable/multiverse/cosmology"
	"github.com/pthm-cable/multiverse/regions"
	"github.com/pthm-cable/multiverse/soul"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

var (
	// ErrSnapshotVersion is returned for snapshots written by an
	// incompatible format version.
	ErrSnapshotVersion = errors.New("incompatible snapshot version")
	// ErrCorruptSnapshot is returned for snapshots that cannot be decoded or
	// fail validation.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// Snapshot holds the complete simulation state. Slices are never tagged
// omitempty so that nil and empty survive a round trip unchanged.
type Snapshot struct {
	Version int            `json:"version"`
	Config  *config.Config `json:"config"`

	Tick      uint64  `json:"tick"`
	TimeScale float64 `json:"time_scale"`
	Unsolved  float64 `json:"unsolved"` // Gyr advanced since the last gravity solve

	Clock     cosmology.Clock       `json:"clock"`
	Particles []components.Particle `json:"particles"`

	CycleSeed uint64           `json:"cycle_seed"`
	StatsAge  float64          `json:"stats_age"`
	Regions   []regions.Region `json:"regions"`
	Observer  regions.Observer `json:"observer"`

	Ledger    []soul.Soul          `json:"ledger"`
	Lineages  []soul.Record        `json:"lineages"`
	Homes     []biosphere.Home     `json:"homes"`
	Creatures []biosphere.Creature `json:"creatures"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// Validate checks the structural invariants a decoded snapshot must hold
// before it may replace live state.
func (s *Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrSnapshotVersion, s.Version, SnapshotVersion)
	}
	if s.Config == nil {
		return fmt.Errorf("%w: missing config", ErrCorruptSnapshot)
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if int(s.Clock.Phase) >= cosmology.NumPhases || s.Clock.Cycle == 0 || s.Clock.Age < 0 {
		return fmt.Errorf("%w: clock phase %v cycle %d age %g", ErrCorruptSnapshot, s.Clock.Phase, s.Clock.Cycle, s.Clock.Age)
	}
	if len(s.Regions) != regions.NumRegions {
		return fmt.Errorf("%w: %d regions, want %d", ErrCorruptSnapshot, len(s.Regions), regions.NumRegions)
	}
	for i := range s.Regions {
		r := &s.Regions[i]
		if r.Coord.Index() != i || !r.Coord.Valid() || int(r.LOD) >= regions.NumLODs {
			return fmt.Errorf("%w: region %d at %v with %v", ErrCorruptSnapshot, i, r.Coord, r.LOD)
		}
	}
	if s.TimeScale <= 0 {
		return fmt.Errorf("%w: time scale %g", ErrCorruptSnapshot, s.TimeScale)
	}
	return nil
}

// EncodeSnapshot serializes a snapshot to an opaque blob.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses and validates a blob written by EncodeSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	// Build filename
	name := fmt.Sprintf("snapshot_c%d_%d", snapshot.Clock.Cycle, snapshot.Tick)
	if snapshot.Bookmark != nil {
		// Sanitize bookmark type for filename
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name += "_" + sanitized
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := EncodeSnapshot(snapshot)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}
