// Package store implements the versioned entity store backed by SQLite.
// Version chains are held in memory and serve all queries; every mutation is
// written through to the database inside a transaction before the in-memory
// state is updated, so the file on disk is always a consistent snapshot.
package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-health/careledger/internal/logger"
	"github.com/mesh-health/careledger/pkg/revision"
	"github.com/mesh-health/careledger/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stamped onto every stored entity version.
const schemaVersion = "2.1.0"

// defaultStoreName names the database file when the config leaves it blank.
const defaultStoreName = "careledger"

// versionRecord is one stored entity version: the payload, its position in
// the store-wide insertion order, and the sync stamp of the process that
// produced it.
type versionRecord struct {
	seq    uint64
	stamp  revision.Stamp
	entity types.Entity
}

// chain is the ordered version history of one logical entity. Versions appear
// in insertion order; the update path enforces non-decreasing effective
// dates, so insertion order is also effective-date order.
type chain struct {
	kind     types.EntityKind
	id       string
	firstSeq uint64
	versions []*versionRecord
}

// Store is the SQLite-backed implementation of types.Store. A single mutex
// serializes all operations; reads take it shared.
type Store struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	log      *logger.Logger
	process  uuid.UUID
	vector   revision.KnowledgeVector
	seq      uint64
	chains   map[types.EntityKind]map[string]*chain
	byUUID   map[uuid.UUID]*versionRecord
}

var _ types.Store = (*Store)(nil)

// New returns an unattached store.
func New() *Store {
	return &Store{log: logger.Nop()}
}

// Attach opens or creates the backing database under config.DataDir and
// rebuilds the in-memory chain index from it.
func (s *Store) Attach(config types.Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return types.ErrAlreadyAttached
	}

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("attach: create data dir: %w", err)
	}

	name := config.StoreName
	if name == "" {
		name = defaultStoreName
	}
	path := filepath.Join(config.DataDir, name+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("attach: open %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("attach: apply schema: %w", err)
	}

	s.db = db
	s.config = config
	if err := s.load(); err != nil {
		db.Close()
		s.db = nil
		return fmt.Errorf("attach: %w", err)
	}

	s.attached = true
	if config.LogLevel != "" {
		s.log = logger.New(logger.Config{Level: config.LogLevel}).
			WithStore(name, s.process.String())
	} else {
		s.log = logger.Nop()
	}
	s.log.Info().
		Str("path", path).
		Int("versions", len(s.byUUID)).
		Msg("store attached")
	return nil
}

// load restores the process identity, the knowledge vector, and every entity
// version from the database.
func (s *Store) load() error {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM store_info WHERE key = 'process_id'`).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id := uuid.New()
		if s.config.ProcessID != "" {
			parsed, perr := uuid.Parse(s.config.ProcessID)
			if perr != nil {
				return types.ErrProcessIDInvalid
			}
			id = parsed
		}
		if _, err := s.db.Exec(
			`INSERT INTO store_info (key, value) VALUES ('process_id', ?)`, id.String()); err != nil {
			return fmt.Errorf("persist process id: %w", err)
		}
		s.process = id
	case err != nil:
		return fmt.Errorf("read process id: %w", err)
	default:
		id, perr := uuid.Parse(raw)
		if perr != nil {
			return fmt.Errorf("read process id: %w", perr)
		}
		s.process = id
	}

	s.vector = revision.NewKnowledgeVector()
	var vecRaw string
	err = s.db.QueryRow(`SELECT value FROM store_info WHERE key = 'knowledge_vector'`).Scan(&vecRaw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read knowledge vector: %w", err)
	default:
		if err := json.Unmarshal([]byte(vecRaw), &s.vector); err != nil {
			return fmt.Errorf("decode knowledge vector: %w", err)
		}
	}

	s.chains = make(map[types.EntityKind]map[string]*chain, len(types.EntityKinds))
	for _, kind := range types.EntityKinds {
		s.chains[kind] = make(map[string]*chain)
	}
	s.byUUID = make(map[uuid.UUID]*versionRecord)
	s.seq = 0

	rows, err := s.db.Query(`SELECT seq, clock_process, clock, payload FROM entities ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("read entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			seq     uint64
			procRaw string
			clock   uint64
			payload []byte
		)
		if err := rows.Scan(&seq, &procRaw, &clock, &payload); err != nil {
			return fmt.Errorf("scan entity row: %w", err)
		}
		proc, perr := uuid.Parse(procRaw)
		if perr != nil {
			return fmt.Errorf("entity row %d: %w", seq, perr)
		}
		var e types.Entity
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("entity row %d: %w", seq, err)
		}
		if e.Kind() == "" {
			return fmt.Errorf("entity row %d: %w", seq, types.ErrInvalidData)
		}
		rec := &versionRecord{
			seq:    seq,
			stamp:  revision.Stamp{Process: proc, Clock: clock},
			entity: e,
		}
		s.insertRecord(rec)
		if seq > s.seq {
			s.seq = seq
		}
	}
	return rows.Err()
}

// insertRecord files a version into the chain index and the UUID lookup.
func (s *Store) insertRecord(rec *versionRecord) {
	kind := rec.entity.Kind()
	id := rec.entity.Versioned().LogicalID()
	c := s.chains[kind][id]
	if c == nil {
		c = &chain{kind: kind, id: id, firstSeq: rec.seq}
		s.chains[kind][id] = c
	}
	c.versions = append(c.versions, rec)
	s.byUUID[rec.entity.Versioned().VersionUUID()] = rec
}

// Detach closes the database and drops the in-memory index. Idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.attached = false
	s.chains = nil
	s.byUUID = nil
	s.vector = revision.KnowledgeVector{}
	s.seq = 0
	s.log.Info().Msg("store detached")
	if err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	return nil
}

// ProcessID returns the store's synchronization identity. Valid only while
// attached.
func (s *Store) ProcessID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.process
}

// KnowledgeVector returns a copy of the store's current vector.
func (s *Store) KnowledgeVector() revision.KnowledgeVector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vector.Clone()
}

// Holds reports whether this store carries version history for the given
// logical id.
func (s *Store) Holds(kind types.EntityKind, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return false
	}
	c, ok := s.chains[kind][id]
	return ok && len(c.versions) > 0
}

// currentAt returns the version governing instant t: the latest version
// effective at or before t, with ties resolved to the later insertion. It
// returns nil when no version is effective yet or when the governing version
// is deleted at t.
func currentAt(c *chain, t time.Time) *versionRecord {
	var best *versionRecord
	for _, rec := range c.versions {
		eff := rec.entity.Versioned().EffectiveAt()
		if eff.After(t) {
			continue
		}
		if best == nil || !eff.Before(best.entity.Versioned().EffectiveAt()) {
			best = rec
		}
	}
	if best == nil {
		return nil
	}
	if dd := best.entity.Versioned().DeletedAt(); dd != nil && !t.Before(*dd) {
		return nil
	}
	return best
}

// latestLive returns the tip of the chain, or nil when the chain is empty or
// its tip is tombstoned.
func latestLive(c *chain) *versionRecord {
	if c == nil {
		return nil
	}
	var best *versionRecord
	for _, rec := range c.versions {
		if best == nil || !rec.entity.Versioned().EffectiveAt().Before(best.entity.Versioned().EffectiveAt()) {
			best = rec
		}
	}
	if best == nil || best.entity.Versioned().DeletedAt() != nil {
		return nil
	}
	return best
}

// orderedChains returns the chains of one kind, restricted to ids when given,
// in first-insertion order. The fixed order keeps query results deterministic
// before sort descriptors apply.
func (s *Store) orderedChains(kind types.EntityKind, ids []string) []*chain {
	byID := s.chains[kind]
	var out []*chain
	if len(ids) > 0 {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if c, ok := byID[id]; ok {
				out = append(out, c)
			}
		}
	} else {
		for _, c := range byID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].firstSeq < out[b].firstSeq })
	return out
}
