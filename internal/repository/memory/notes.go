package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/samber/lo"
)

type noteRepo struct{ s *state }

func (r *noteRepo) Create(_ context.Context, n *models.Note) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n.SetContent(n.Content)
	now := r.s.now()
	n.CreatedAt, n.UpdatedAt = now, now
	r.s.notes[n.ID] = *n
	return nil
}

func (r *noteRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n, ok := r.s.notes[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (r *noteRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	notes := lo.Filter(lo.Values(r.s.notes), func(n models.Note, _ int) bool {
		return n.UserID == userID
	})
	return newestFirst(notes, func(n models.Note) time.Time { return n.CreatedAt }), nil
}

func (r *noteRepo) Update(_ context.Context, id uuid.UUID, patch models.NotePatch) (*models.Note, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	patch.Apply(&n)
	n.UpdatedAt = r.s.now()
	r.s.notes[id] = n
	return &n, nil
}

func (r *noteRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.notes[id]; !ok {
		return repository.ErrNotFound
	}
	r.s.deleteNoteLocked(id)
	return nil
}

// linkedNotesLocked returns the notes linked to other in links, pinned
// first and then most recently updated.
func (s *state) linkedNotesLocked(links map[pair]time.Time, other uuid.UUID, limit int) []models.Note {
	notes := make([]models.Note, 0)
	for k := range links {
		if k.b != other {
			continue
		}
		if n, ok := s.notes[k.a]; ok {
			notes = append(notes, n)
		}
	}
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Pinned != notes[j].Pinned {
			return notes[i].Pinned
		}
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes
}

func (r *noteRepo) ListByProject(_ context.Context, projectID uuid.UUID, limit int) ([]models.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.linkedNotesLocked(r.s.projectNotes, projectID, limit), nil
}

func (r *noteRepo) ListByArea(_ context.Context, areaID uuid.UUID) ([]models.Note, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.linkedNotesLocked(r.s.areaNotes, areaID, 0), nil
}

func (r *noteRepo) link(links map[pair]time.Time, noteID, otherID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := pair{noteID, otherID}
	if _, ok := links[k]; !ok {
		links[k] = r.s.now()
	}
	return nil
}

func (r *noteRepo) unlink(links map[pair]time.Time, noteID, otherID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(links, pair{noteID, otherID})
	return nil
}

func (r *noteRepo) replace(links map[pair]time.Time, noteID uuid.UUID, ids []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for k := range links {
		if k.a == noteID {
			delete(links, k)
		}
	}
	for _, id := range lo.Uniq(ids) {
		links[pair{noteID, id}] = r.s.now()
	}
	return nil
}

// linkedIDs returns the ids linked to noteID in the order they were attached.
func (r *noteRepo) linkedIDs(links map[pair]time.Time, noteID uuid.UUID) []uuid.UUID {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	keys := lo.Filter(lo.Keys(links), func(k pair, _ int) bool { return k.a == noteID })
	sort.Slice(keys, func(i, j int) bool { return links[keys[i]].Before(links[keys[j]]) })
	return lo.Map(keys, func(k pair, _ int) uuid.UUID { return k.b })
}

func (r *noteRepo) AttachProject(_ context.Context, noteID, projectID uuid.UUID) error {
	return r.link(r.s.projectNotes, noteID, projectID)
}

func (r *noteRepo) DetachProject(_ context.Context, noteID, projectID uuid.UUID) error {
	return r.unlink(r.s.projectNotes, noteID, projectID)
}

func (r *noteRepo) ReplaceProjects(_ context.Context, noteID uuid.UUID, projectIDs []uuid.UUID) error {
	return r.replace(r.s.projectNotes, noteID, projectIDs)
}

func (r *noteRepo) ListProjectIDs(_ context.Context, noteID uuid.UUID) ([]uuid.UUID, error) {
	return r.linkedIDs(r.s.projectNotes, noteID), nil
}

func (r *noteRepo) AttachArea(_ context.Context, noteID, areaID uuid.UUID) error {
	return r.link(r.s.areaNotes, noteID, areaID)
}

func (r *noteRepo) DetachArea(_ context.Context, noteID, areaID uuid.UUID) error {
	return r.unlink(r.s.areaNotes, noteID, areaID)
}

func (r *noteRepo) ReplaceAreas(_ context.Context, noteID uuid.UUID, areaIDs []uuid.UUID) error {
	return r.replace(r.s.areaNotes, noteID, areaIDs)
}

func (r *noteRepo) ListAreaIDs(_ context.Context, noteID uuid.UUID) ([]uuid.UUID, error) {
	return r.linkedIDs(r.s.areaNotes, noteID), nil
}

func (r *noteRepo) AttachTag(_ context.Context, noteID, tagID uuid.UUID) error {
	return r.link(r.s.noteTags, noteID, tagID)
}

func (r *noteRepo) DetachTag(_ context.Context, noteID, tagID uuid.UUID) error {
	return r.unlink(r.s.noteTags, noteID, tagID)
}

func (r *noteRepo) ReplaceTags(_ context.Context, noteID uuid.UUID, tagIDs []uuid.UUID) error {
	return r.replace(r.s.noteTags, noteID, tagIDs)
}

func (r *noteRepo) ListTags(_ context.Context, noteID uuid.UUID) ([]models.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tags := make([]models.Tag, 0)
	for k := range r.s.noteTags {
		if k.a != noteID {
			continue
		}
		if t, ok := r.s.tags[k.b]; ok {
			tags = append(tags, t)
		}
	}
	return sortedTags(tags), nil
}
