// Package store persists simulation state outside the process: snapshots
// and the soul ledger in Badger, life discoveries in a SQLite catalogue.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/pthm-cable/multiverse/soul"
	"github.com/pthm-cable/multiverse/telemetry"
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")

const (
	snapshotPrefix = "snapshot/"
	soulPrefix     = "soul/"
)

// BadgerConfig configures the Badger store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in memory. Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives Badger's internal logs. If nil, they are discarded.
	Logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Badger stores snapshots and the soul ledger.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens or creates a store.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Badger{db: db}, nil
}

// OpenBadgerInMemory opens an in-memory store.
func OpenBadgerInMemory() (*Badger, error) {
	return OpenBadger(BadgerConfig{InMemory: true})
}

// Close closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// SaveSnapshot stores a snapshot under name, replacing any previous one.
func (b *Badger) SaveSnapshot(name string, snap *telemetry.Snapshot) error {
	data, err := telemetry.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotPrefix+name), data)
	})
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}
	return nil
}

// LoadSnapshot returns the snapshot stored under name. Decoding failures
// wrap telemetry.ErrSnapshotVersion or telemetry.ErrCorruptSnapshot.
func (b *Badger) LoadSnapshot(name string) (*telemetry.Snapshot, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotPrefix + name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("snapshot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	return telemetry.DecodeSnapshot(data)
}

// Snapshots lists stored snapshot names in key order.
func (b *Badger) Snapshots() ([]string, error) {
	var names []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(snapshotPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), snapshotPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return names, nil
}

// SaveLedger writes every soul in the ledger. Souls already stored but
// absent from the ledger are kept, matching the ledger's merge-only
// semantics.
func (b *Badger) SaveLedger(ledger *soul.Ledger) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, s := range ledger.Entries() {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal soul %s: %w", s.Lineage, err)
		}
		if err := wb.Set(soulKey(s.Lineage), data); err != nil {
			return fmt.Errorf("save soul %s: %w", s.Lineage, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// LoadLedger reads every stored soul into a new ledger.
func (b *Badger) LoadLedger() (*soul.Ledger, error) {
	var souls []soul.Soul
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(soulPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var s soul.Soul
				if err := json.Unmarshal(val, &s); err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				souls = append(souls, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	ledger := soul.NewLedger()
	ledger.Put(souls...)
	return ledger, nil
}

// LookupSoul returns one stored soul.
func (b *Badger) LookupSoul(lineage uuid.UUID) (soul.Soul, error) {
	var s soul.Soul
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(soulKey(lineage))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return soul.Soul{}, fmt.Errorf("soul %s: %w", lineage, ErrNotFound)
	}
	if err != nil {
		return soul.Soul{}, fmt.Errorf("lookup soul %s: %w", lineage, err)
	}
	return s, nil
}

func soulKey(lineage uuid.UUID) []byte {
	return []byte(soulPrefix + lineage.String())
}
