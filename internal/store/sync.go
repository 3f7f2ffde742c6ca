package store

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-health/careledger/pkg/revision"
	"github.com/mesh-health/careledger/pkg/types"
)

// ComputeRevision returns every local change the peer's vector does not
// cover, in local insertion order, together with a snapshot of this store's
// vector.
func (s *Store) ComputeRevision(since revision.KnowledgeVector) (revision.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return revision.Record{}, types.ErrStoreDetached
	}

	var recs []*versionRecord
	for _, kind := range types.EntityKinds {
		for _, c := range s.chains[kind] {
			for _, rec := range c.versions {
				if !since.Covers(rec.stamp) {
					recs = append(recs, rec)
				}
			}
		}
	}
	sort.Slice(recs, func(a, b int) bool { return recs[a].seq < recs[b].seq })

	changes := make([]revision.Change, 0, len(recs))
	for _, rec := range recs {
		changes = append(changes, revision.Change{Stamp: rec.stamp, Entity: rec.entity.Clone()})
	}
	return revision.Record{Changes: changes, KnowledgeVector: s.vector.Clone()}, nil
}

// ApplyRevision folds a peer's revision record into this store. Changes the
// local vector already covers are skipped, so re-applying a record is a
// no-op. A change that violates local history fails the whole record with
// ErrSyncConflict and leaves the store untouched.
func (s *Store) ApplyRevision(rec revision.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrStoreDetached
	}

	st := newStaging(s)
	vec := s.vector.Clone()
	now := time.Now()
	applied := 0
	for _, change := range rec.Changes {
		if vec.Covers(change.Stamp) {
			continue
		}
		if err := st.applyChange(change, now); err != nil {
			return err
		}
		vec.Observe(change.Stamp)
		applied++
	}
	vec.Merge(rec.KnowledgeVector)
	if applied == 0 && vec.Equal(s.vector) {
		return nil
	}

	if err := s.commit(st, vec); err != nil {
		return err
	}
	s.log.Info().Int("applied", applied).Msg("revision applied")
	return nil
}

// applyChange folds one stamped entity version into the staged view. A
// version already held by UUID is rewritten in place, which is how tombstones
// propagate. A new version must extend its chain consistently or the change
// is a conflict.
func (st *staging) applyChange(change revision.Change, now time.Time) error {
	e := change.Entity.Clone()
	kind := e.Kind()
	if kind == "" {
		return fmt.Errorf("apply revision: %w", types.ErrInvalidData)
	}
	meta := e.Meta()
	if meta.ID == "" || meta.UUID == uuid.Nil {
		return fmt.Errorf("apply revision: %w", types.ErrInvalidData)
	}

	c := st.chain(kind, meta.ID)
	if c != nil {
		for _, existing := range c.versions {
			if existing.entity.Versioned().VersionUUID() == meta.UUID {
				existing.entity = e
				existing.stamp = change.Stamp
				st.rewrites = append(st.rewrites, existing)
				return nil
			}
		}
	}

	if c == nil || len(c.versions) == 0 {
		rec := &versionRecord{seq: st.takeSeq(), stamp: change.Stamp, entity: e}
		st.append(kind, meta.ID, rec)
		st.inserts = append(st.inserts, rec)
		return nil
	}

	cur := c.versions[len(c.versions)-1]
	curMeta := cur.entity.Meta()
	if len(meta.PreviousVersionUUIDs) == 0 {
		if latestLive(c) != nil {
			return fmt.Errorf("apply revision: %s %q created on both replicas: %w",
				kind, meta.ID, types.ErrSyncConflict)
		}
	} else {
		if !slices.Contains(meta.PreviousVersionUUIDs, curMeta.UUID) {
			return fmt.Errorf("apply revision: %s %q history diverged: %w",
				kind, meta.ID, types.ErrSyncConflict)
		}
		if meta.EffectiveDate.Before(curMeta.EffectiveDate) {
			return fmt.Errorf("apply revision: %s %q effective date precedes local tip: %w",
				kind, meta.ID, types.ErrSyncConflict)
		}
		if e.Task != nil && cur.entity.Task != nil {
			if err := st.checkDataLoss(cur, meta.EffectiveDate); err != nil {
				return fmt.Errorf("apply revision: %v: %w", err, types.ErrSyncConflict)
			}
		}
		if !slices.Contains(curMeta.NextVersionUUIDs, meta.UUID) {
			curMeta.NextVersionUUIDs = append(curMeta.NextVersionUUIDs, meta.UUID)
			linked := now
			curMeta.UpdatedDate = &linked
			st.rewrites = append(st.rewrites, cur)
		}
	}

	rec := &versionRecord{seq: st.takeSeq(), stamp: change.Stamp, entity: e}
	st.append(kind, meta.ID, rec)
	st.inserts = append(st.inserts, rec)
	return nil
}
