package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-health/careledger/pkg/revision"
	"github.com/mesh-health/careledger/pkg/types"
)

// chainKey addresses one logical entity across kinds.
type chainKey struct {
	kind types.EntityKind
	id   string
}

// staging is a copy-on-write view of the chain index. Mutations run against
// staged chain clones and are committed to the store only after the database
// transaction succeeds, which makes every batch all-or-nothing.
type staging struct {
	store    *Store
	chains   map[chainKey]*chain
	inserts  []*versionRecord
	rewrites []*versionRecord
	nextSeq  uint64
}

func newStaging(s *Store) *staging {
	return &staging{
		store:   s,
		chains:  make(map[chainKey]*chain),
		nextSeq: s.seq,
	}
}

func (st *staging) takeSeq() uint64 {
	st.nextSeq++
	return st.nextSeq
}

// chain returns the staged clone of a chain, cloning it on first access, or
// nil when the logical id is unknown.
func (st *staging) chain(kind types.EntityKind, id string) *chain {
	key := chainKey{kind: kind, id: id}
	if c, ok := st.chains[key]; ok {
		return c
	}
	orig, ok := st.store.chains[kind][id]
	if !ok {
		return nil
	}
	clone := &chain{
		kind:     orig.kind,
		id:       orig.id,
		firstSeq: orig.firstSeq,
		versions: make([]*versionRecord, len(orig.versions)),
	}
	for i, rec := range orig.versions {
		clone.versions[i] = &versionRecord{seq: rec.seq, stamp: rec.stamp, entity: rec.entity.Clone()}
	}
	st.chains[key] = clone
	return clone
}

// append files a new version into the staged view, creating the chain if
// needed.
func (st *staging) append(kind types.EntityKind, id string, rec *versionRecord) {
	c := st.chain(kind, id)
	if c == nil {
		c = &chain{kind: kind, id: id, firstSeq: rec.seq}
		st.chains[chainKey{kind: kind, id: id}] = c
	}
	c.versions = append(c.versions, rec)
}

// findUUID resolves a version UUID against the staged view first, then the
// committed store.
func (st *staging) findUUID(u uuid.UUID) *versionRecord {
	for _, c := range st.chains {
		for _, rec := range c.versions {
			if rec.entity.Versioned().VersionUUID() == u {
				return rec
			}
		}
	}
	return st.store.byUUID[u]
}

// outcomeChains returns every outcome chain visible to the staged view.
func (st *staging) outcomeChains() []*chain {
	var out []*chain
	staged := make(map[string]bool)
	for key, c := range st.chains {
		if key.kind == types.KindOutcome {
			out = append(out, c)
			staged[key.id] = true
		}
	}
	for id, c := range st.store.chains[types.KindOutcome] {
		if !staged[id] {
			out = append(out, c)
		}
	}
	return out
}

// commitMemory swaps every staged chain into the store index.
func (st *staging) commitMemory() {
	for key, c := range st.chains {
		st.store.chains[key.kind][key.id] = c
		for _, rec := range c.versions {
			st.store.byUUID[rec.entity.Versioned().VersionUUID()] = rec
		}
	}
}

// Add inserts new logical entities. The batch is all-or-nothing.
func (s *Store) Add(entities []types.Entity) ([]types.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	st := newStaging(s)
	vec := s.vector.Clone()
	now := time.Now()
	recs := make([]*versionRecord, 0, len(entities))
	for _, e := range entities {
		rec, err := st.add(e, now, &vec, s.process)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := s.commit(st, vec); err != nil {
		return nil, err
	}

	out := make([]types.Entity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.entity.Clone())
	}
	s.log.Debug().Int("count", len(out)).Msg("entities added")
	return out, nil
}

func (st *staging) add(e types.Entity, now time.Time, vec *revision.KnowledgeVector, process uuid.UUID) (*versionRecord, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	kind := e.Kind()
	id := e.Versioned().LogicalID()
	if c := st.chain(kind, id); latestLive(c) != nil {
		return nil, fmt.Errorf("add %s %q: %w", kind, id, types.ErrDuplicateIdentifier)
	}
	if e.Outcome != nil {
		if err := st.checkOutcomeTarget(e.Outcome); err != nil {
			return nil, err
		}
	}

	stored := e.Clone()
	meta := stored.Meta()
	if meta.UUID == uuid.Nil {
		meta.UUID = uuid.New()
	}
	if meta.EffectiveDate.IsZero() {
		meta.EffectiveDate = now
	}
	meta.PreviousVersionUUIDs = nil
	meta.NextVersionUUIDs = nil
	created, updated := now, now
	meta.CreatedDate = &created
	meta.UpdatedDate = &updated
	meta.SchemaVersion = schemaVersion

	vec.Increment(process)
	rec := &versionRecord{
		seq:    st.takeSeq(),
		stamp:  revision.Stamp{Process: process, Clock: vec.Clock(process)},
		entity: stored,
	}
	st.append(kind, id, rec)
	st.inserts = append(st.inserts, rec)
	return rec, nil
}

// checkOutcomeTarget verifies that the task version an outcome points at
// exists and that the occurrence index lies within that version's schedule.
func (st *staging) checkOutcomeTarget(o *types.Outcome) error {
	rec := st.findUUID(o.TaskUUID)
	if rec == nil || rec.entity.Task == nil {
		return fmt.Errorf("outcome references task version %s: %w", o.TaskUUID, types.ErrNotFound)
	}
	if _, ok := rec.entity.Task.Schedule.OccurrenceAt(o.TaskOccurrenceIndex); !ok {
		return fmt.Errorf("outcome occurrence %d lies beyond the task schedule: %w",
			o.TaskOccurrenceIndex, types.ErrConstraintViolation)
	}
	return nil
}

// Update appends a new version to each entity's chain. The batch is
// all-or-nothing.
func (s *Store) Update(entities []types.Entity) ([]types.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	st := newStaging(s)
	vec := s.vector.Clone()
	now := time.Now()
	recs := make([]*versionRecord, 0, len(entities))
	for _, e := range entities {
		rec, err := st.update(e, now, &vec, s.process)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := s.commit(st, vec); err != nil {
		return nil, err
	}

	out := make([]types.Entity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.entity.Clone())
	}
	s.log.Debug().Int("count", len(out)).Msg("entities updated")
	return out, nil
}

func (st *staging) update(e types.Entity, now time.Time, vec *revision.KnowledgeVector, process uuid.UUID) (*versionRecord, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	kind := e.Kind()
	id := e.Versioned().LogicalID()
	cur := latestLive(st.chain(kind, id))
	if cur == nil {
		return nil, fmt.Errorf("update %s %q: %w", kind, id, types.ErrNotFound)
	}
	curMeta := cur.entity.Meta()

	newEff := e.Versioned().EffectiveAt()
	if newEff.IsZero() {
		newEff = now
	}
	if newEff.Before(curMeta.EffectiveDate) {
		return nil, fmt.Errorf("update %s %q: %w", kind, id, types.ErrInvalidEffectiveDate)
	}
	if e.Task != nil {
		if err := st.checkDataLoss(cur, newEff); err != nil {
			return nil, err
		}
	}

	stored := e.Clone()
	meta := stored.Meta()
	meta.UUID = uuid.New()
	meta.EffectiveDate = newEff
	meta.DeletedDate = nil
	meta.PreviousVersionUUIDs = []uuid.UUID{curMeta.UUID}
	meta.NextVersionUUIDs = nil
	created, updated := now, now
	meta.CreatedDate = &created
	meta.UpdatedDate = &updated
	meta.SchemaVersion = schemaVersion

	curMeta.NextVersionUUIDs = append(curMeta.NextVersionUUIDs, meta.UUID)
	linked := now
	curMeta.UpdatedDate = &linked
	st.rewrites = append(st.rewrites, cur)

	vec.Increment(process)
	rec := &versionRecord{
		seq:    st.takeSeq(),
		stamp:  revision.Stamp{Process: process, Clock: vec.Clock(process)},
		entity: stored,
	}
	st.append(kind, id, rec)
	st.inserts = append(st.inserts, rec)
	return rec, nil
}

// checkDataLoss refuses a task update when any outcome recorded against the
// current version sits at an occurrence starting after the new version's
// effective date. Those outcomes would describe occurrences the superseding
// version may schedule differently.
func (st *staging) checkDataLoss(cur *versionRecord, newEff time.Time) error {
	task := cur.entity.Task
	for _, c := range st.outcomeChains() {
		live := latestLive(c)
		if live == nil {
			continue
		}
		o := live.entity.Outcome
		if o.TaskUUID != task.UUID {
			continue
		}
		occ, ok := task.Schedule.OccurrenceAt(o.TaskOccurrenceIndex)
		if !ok || occ.Start.After(newEff) {
			return fmt.Errorf("update task %q: occurrence %d has a recorded outcome: %w",
				task.ID, o.TaskOccurrenceIndex, types.ErrDataLossRisk)
		}
	}
	return nil
}

// Delete tombstones the current version of each entity's chain. History is
// retained and the tombstone is restamped so deletion propagates through
// synchronization.
func (s *Store) Delete(entities []types.Entity) ([]types.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}

	st := newStaging(s)
	vec := s.vector.Clone()
	now := time.Now()
	recs := make([]*versionRecord, 0, len(entities))
	for _, e := range entities {
		rec, err := st.delete(e, now, &vec, s.process)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := s.commit(st, vec); err != nil {
		return nil, err
	}

	out := make([]types.Entity, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.entity.Clone())
	}
	s.log.Debug().Int("count", len(out)).Msg("entities deleted")
	return out, nil
}

func (st *staging) delete(e types.Entity, now time.Time, vec *revision.KnowledgeVector, process uuid.UUID) (*versionRecord, error) {
	kind := e.Kind()
	if kind == "" {
		return nil, types.ErrInvalidData
	}
	id := e.Versioned().LogicalID()
	if id == "" {
		return nil, types.ErrInvalidID
	}
	cur := latestLive(st.chain(kind, id))
	if cur == nil {
		return nil, fmt.Errorf("delete %s %q: %w", kind, id, types.ErrNotFound)
	}

	meta := cur.entity.Meta()
	deleted, updated := now, now
	meta.DeletedDate = &deleted
	meta.UpdatedDate = &updated

	vec.Increment(process)
	cur.stamp = revision.Stamp{Process: process, Clock: vec.Clock(process)}
	st.rewrites = append(st.rewrites, cur)
	return cur, nil
}

// commit writes the staged rows inside one transaction, then swaps the
// staged chains and the advanced vector into the store.
func (s *Store) commit(st *staging, vec revision.KnowledgeVector) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range st.inserts {
		if err := insertRow(tx, rec); err != nil {
			return err
		}
	}
	for _, rec := range st.rewrites {
		if slices.Contains(st.inserts, rec) {
			continue
		}
		if err := rewriteRow(tx, rec); err != nil {
			return err
		}
	}
	if err := saveVector(tx, vec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	st.commitMemory()
	s.vector = vec
	s.seq = st.nextSeq
	return nil
}

func insertRow(tx *sql.Tx, rec *versionRecord) error {
	payload, err := json.Marshal(rec.entity)
	if err != nil {
		return fmt.Errorf("encode entity: %w", err)
	}
	v := rec.entity.Versioned()
	_, err = tx.Exec(
		`INSERT INTO entities (seq, kind, id, uuid, effective_date, clock_process, clock, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.seq,
		string(rec.entity.Kind()),
		v.LogicalID(),
		v.VersionUUID().String(),
		v.EffectiveAt().UTC().Format(time.RFC3339Nano),
		rec.stamp.Process.String(),
		rec.stamp.Clock,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert version %s: %w", v.VersionUUID(), err)
	}
	return nil
}

func rewriteRow(tx *sql.Tx, rec *versionRecord) error {
	payload, err := json.Marshal(rec.entity)
	if err != nil {
		return fmt.Errorf("encode entity: %w", err)
	}
	v := rec.entity.Versioned()
	_, err = tx.Exec(
		`UPDATE entities SET effective_date = ?, clock_process = ?, clock = ?, payload = ? WHERE uuid = ?`,
		v.EffectiveAt().UTC().Format(time.RFC3339Nano),
		rec.stamp.Process.String(),
		rec.stamp.Clock,
		string(payload),
		v.VersionUUID().String(),
	)
	if err != nil {
		return fmt.Errorf("rewrite version %s: %w", v.VersionUUID(), err)
	}
	return nil
}

func saveVector(tx *sql.Tx, vec revision.KnowledgeVector) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode knowledge vector: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO store_info (key, value) VALUES ('knowledge_vector', ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("persist knowledge vector: %w", err)
	}
	return nil
}
