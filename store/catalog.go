package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/procgen"
)

// Discovery is one inhabited planet recorded in the catalogue.
type Discovery struct {
	Universe    uint64
	Cycle       uint32
	Ref         components.PlanetRef
	Lineage     uuid.UUID
	Age         float64 // universe age at discovery, Gyr
	PlanetType  string
	Temperature float64
	Complexity  float64
	Stage       string
	Species     int64
	Technology  bool
	Genome      string
	Description string
}

// NewDiscovery builds a catalogue entry from an inhabited planet. ok is
// false when the planet carries no biosphere.
func NewDiscovery(universe uint64, cycle uint32, age float64, ref components.PlanetRef, p procgen.Planet) (d Discovery, ok bool) {
	if p.Biosphere == nil {
		return Discovery{}, false
	}
	b := p.Biosphere
	return Discovery{
		Universe:    universe,
		Cycle:       cycle,
		Ref:         ref,
		Lineage:     b.Lineage,
		Age:         age,
		PlanetType:  p.Type.String(),
		Temperature: p.Temperature,
		Complexity:  p.Complexity,
		Stage:       b.Stage.String(),
		Species:     b.Species,
		Technology:  b.Technology,
		Genome:      b.Genome.Short(),
		Description: b.Genome.Describe(),
	}, true
}

// Catalog is a SQLite catalogue of life discoveries.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens or creates the catalogue at path. Use ":memory:" for a
// throwaway catalogue.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// A single connection keeps in-memory databases shared.
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return c, nil
}

func (c *Catalog) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS discoveries (
		universe INTEGER NOT NULL,
		cycle INTEGER NOT NULL,
		region INTEGER NOT NULL,
		star INTEGER NOT NULL,
		planet INTEGER NOT NULL,
		lineage TEXT NOT NULL,
		age_gyr REAL NOT NULL,
		planet_type TEXT NOT NULL,
		temperature REAL NOT NULL,
		complexity REAL NOT NULL,
		stage TEXT NOT NULL,
		species INTEGER NOT NULL,
		technology INTEGER NOT NULL DEFAULT 0,
		genome TEXT NOT NULL,
		description TEXT NOT NULL,
		PRIMARY KEY (universe, cycle, region, star, planet)
	);

	CREATE INDEX IF NOT EXISTS idx_discoveries_complexity ON discoveries(complexity);
	CREATE INDEX IF NOT EXISTS idx_discoveries_lineage ON discoveries(lineage);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Insert records discoveries in one transaction. A planet already catalogued
// for the same universe and cycle is replaced.
func (c *Catalog) Insert(ctx context.Context, ds ...Discovery) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO discoveries (
		universe, cycle, region, star, planet, lineage, age_gyr, planet_type,
		temperature, complexity, stage, species, technology, genome, description
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range ds {
		_, err := stmt.ExecContext(ctx,
			// SQLite integers are signed; the seed is stored bit-for-bit.
			int64(d.Universe), d.Cycle, d.Ref.Region, d.Ref.Star, d.Ref.Planet,
			d.Lineage.String(), d.Age, d.PlanetType,
			d.Temperature, d.Complexity, d.Stage, d.Species, d.Technology,
			d.Genome, d.Description,
		)
		if err != nil {
			return fmt.Errorf("insert discovery %v: %w", d.Ref, err)
		}
	}
	return tx.Commit()
}

// Top returns the n most complex discoveries, ties broken by key.
func (c *Catalog) Top(ctx context.Context, n int) ([]Discovery, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT universe, cycle, region, star, planet, lineage, age_gyr, planet_type,
		temperature, complexity, stage, species, technology, genome, description
	FROM discoveries
	ORDER BY complexity DESC, universe, cycle, region, star, planet
	LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query top discoveries: %w", err)
	}
	defer rows.Close()

	var out []Discovery
	for rows.Next() {
		var (
			d        Discovery
			universe int64
			lineage  string
		)
		err := rows.Scan(&universe, &d.Cycle, &d.Ref.Region, &d.Ref.Star, &d.Ref.Planet,
			&lineage, &d.Age, &d.PlanetType, &d.Temperature, &d.Complexity,
			&d.Stage, &d.Species, &d.Technology, &d.Genome, &d.Description)
		if err != nil {
			return nil, fmt.Errorf("scan discovery: %w", err)
		}
		d.Universe = uint64(universe)
		if d.Lineage, err = uuid.Parse(lineage); err != nil {
			return nil, fmt.Errorf("parse lineage %q: %w", lineage, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Count returns the number of catalogued discoveries.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM discoveries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count discoveries: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
