// Package memory keeps every entity in process memory. It backs
// STORAGE_BACKEND=memory demo runs and the end-to-end tests, and mirrors
// the Postgres stores' semantics (nil, nil on a missing GetByID,
// repository.ErrNotFound on Update/Delete, cascading deletes).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/parabrain/internal/models"
	"github.com/lalith-99/parabrain/internal/repository"
	"github.com/samber/lo"
)

type pair struct {
	a, b uuid.UUID
}

// state is shared by all the entity repositories of one Store so that
// cascades can cross tables under a single lock.
type state struct {
	mu sync.RWMutex

	users    map[uuid.UUID]models.User
	projects map[uuid.UUID]models.Project
	areas    map[uuid.UUID]models.Area
	notes    map[uuid.UUID]models.Note
	tags     map[uuid.UUID]models.Tag

	// pair{note, other} -> time linked
	projectNotes map[pair]time.Time
	areaNotes    map[pair]time.Time
	noteTags     map[pair]time.Time

	now func() time.Time
}

// NewStore returns empty in-memory repositories bundled as a
// repository.Store.
func NewStore() *repository.Store {
	s := &state{
		users:        map[uuid.UUID]models.User{},
		projects:     map[uuid.UUID]models.Project{},
		areas:        map[uuid.UUID]models.Area{},
		notes:        map[uuid.UUID]models.Note{},
		tags:         map[uuid.UUID]models.Tag{},
		projectNotes: map[pair]time.Time{},
		areaNotes:    map[pair]time.Time{},
		noteTags:     map[pair]time.Time{},
		now:          monotonicNow(),
	}
	return &repository.Store{
		Users:    &userRepo{s},
		Projects: &projectRepo{s},
		Areas:    &areaRepo{s},
		Notes:    &noteRepo{s},
		Tags:     &tagRepo{s},
	}
}

// monotonicNow never returns the same instant twice, so "newest first"
// orderings are stable even when a test creates rows in a tight loop.
func monotonicNow() func() time.Time {
	var (
		mu   sync.Mutex
		last time.Time
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := time.Now().UTC()
		if !t.After(last) {
			t = last.Add(time.Microsecond)
		}
		last = t
		return t
	}
}

func newestFirst[T any](items []T, created func(T) time.Time) []T {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]).After(created(items[j]))
	})
	return items
}

// ---------------------------------------------------------------
// Users
// ---------------------------------------------------------------

type userRepo struct{ s *state }

func (r *userRepo) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.CreatedAt = r.s.now()
	r.s.users[u.ID] = *u
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *userRepo) List(_ context.Context) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := lo.Values(r.s.users)
	return newestFirst(users, func(u models.User) time.Time { return u.CreatedAt }), nil
}

func (r *userRepo) Update(_ context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if v, ok := patch.Name.Get(); ok {
		u.Name = v
	}
	if v, ok := patch.AvatarURL.Get(); ok {
		u.AvatarURL = v
	}
	if v, ok := patch.PasswordHash.Get(); ok {
		u.PasswordHash = v
	}
	r.s.users[id] = u
	return &u, nil
}

func (r *userRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	r.s.purgeLocked(id)
	delete(r.s.users, id)
	return nil
}

func (r *userRepo) PurgeData(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.purgeLocked(id)
	return nil
}

// purgeLocked removes everything userID owns. Tags are global and stay.
func (s *state) purgeLocked(userID uuid.UUID) {
	for id, n := range s.notes {
		if n.UserID == userID {
			s.deleteNoteLocked(id)
		}
	}
	for id, p := range s.projects {
		if p.UserID == userID {
			s.deleteProjectLocked(id)
		}
	}
	for id, a := range s.areas {
		if a.UserID == userID {
			s.deleteAreaLocked(id)
		}
	}
}

func (s *state) deleteNoteLocked(id uuid.UUID) {
	delete(s.notes, id)
	for _, links := range []map[pair]time.Time{s.projectNotes, s.areaNotes, s.noteTags} {
		for k := range links {
			if k.a == id {
				delete(links, k)
			}
		}
	}
}

func (s *state) deleteProjectLocked(id uuid.UUID) {
	delete(s.projects, id)
	for k := range s.projectNotes {
		if k.b == id {
			delete(s.projectNotes, k)
		}
	}
}

func (s *state) deleteAreaLocked(id uuid.UUID) {
	delete(s.areas, id)
	for k := range s.areaNotes {
		if k.b == id {
			delete(s.areaNotes, k)
		}
	}
}

// ---------------------------------------------------------------
// Projects
// ---------------------------------------------------------------

type projectRepo struct{ s *state }

func (r *projectRepo) Create(_ context.Context, p *models.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	if p.StartDate.IsZero() {
		p.StartDate = now
	}
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.projects[p.ID] = *p
	return nil
}

func (r *projectRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *projectRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	projects := lo.Filter(lo.Values(r.s.projects), func(p models.Project, _ int) bool {
		return p.UserID == userID
	})
	return newestFirst(projects, func(p models.Project) time.Time { return p.CreatedAt }), nil
}

func (r *projectRepo) Update(_ context.Context, id uuid.UUID, patch models.ProjectPatch) (*models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	patch.Apply(&p)
	p.UpdatedAt = r.s.now()
	r.s.projects[id] = p
	return &p, nil
}

func (r *projectRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.projects[id]; !ok {
		return repository.ErrNotFound
	}
	r.s.deleteProjectLocked(id)
	return nil
}

// ---------------------------------------------------------------
// Areas
// ---------------------------------------------------------------

type areaRepo struct{ s *state }

func (r *areaRepo) Create(_ context.Context, a *models.Area) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.areas[a.ID] = *a
	return nil
}

func (r *areaRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Area, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.areas[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *areaRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Area, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	areas := lo.Filter(lo.Values(r.s.areas), func(a models.Area, _ int) bool {
		return a.UserID == userID
	})
	return newestFirst(areas, func(a models.Area) time.Time { return a.CreatedAt }), nil
}

func (r *areaRepo) Update(_ context.Context, id uuid.UUID, patch models.AreaPatch) (*models.Area, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.areas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	patch.Apply(&a)
	a.UpdatedAt = r.s.now()
	r.s.areas[id] = a
	return &a, nil
}

func (r *areaRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.areas[id]; !ok {
		return repository.ErrNotFound
	}
	r.s.deleteAreaLocked(id)
	return nil
}

// ---------------------------------------------------------------
// Tags
// ---------------------------------------------------------------

type tagRepo struct{ s *state }

func (r *tagRepo) GetOrCreate(_ context.Context, name string) (*models.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t, ok := r.s.tagByNameLocked(name); ok {
		return &t, nil
	}
	t := models.Tag{ID: uuid.New(), Name: name, CreatedAt: r.s.now()}
	r.s.tags[t.ID] = t
	return &t, nil
}

func (r *tagRepo) GetByName(_ context.Context, name string) (*models.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if t, ok := r.s.tagByNameLocked(name); ok {
		return &t, nil
	}
	return nil, nil
}

func (r *tagRepo) List(_ context.Context) ([]models.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return sortedTags(lo.Values(r.s.tags)), nil
}

func (s *state) tagByNameLocked(name string) (models.Tag, bool) {
	return lo.Find(lo.Values(s.tags), func(t models.Tag) bool { return t.Name == name })
}

func sortedTags(tags []models.Tag) []models.Tag {
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags
}
