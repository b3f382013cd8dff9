package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Optional marks whether a JSON field was present in a request body.
//
// encoding/json only calls UnmarshalJSON for keys that appear in the
// input, so Set stays false for an absent field and becomes true for
// any value, including null. Use a pointer T (Optional[*string]) for
// columns that may be cleared back to NULL.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Get returns the value and whether it was provided.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

// UserPatch lists every user field a PUT may change. Password is plain
// text here; handlers hash it before it reaches a store.
type UserPatch struct {
	Name         Optional[string]  `json:"name"`
	AvatarURL    Optional[*string] `json:"avatar_url"`
	Password     Optional[string]  `json:"password"`
	PasswordHash Optional[string]  `json:"-"`
}

// Empty reports whether no field was provided.
func (p UserPatch) Empty() bool {
	return !p.Name.Set && !p.AvatarURL.Set && !p.PasswordHash.Set
}

type ProjectPatch struct {
	Name           Optional[string]        `json:"name"`
	Description    Optional[*string]       `json:"description"`
	Context        Optional[*string]       `json:"context"`
	Color          Optional[*string]       `json:"color"`
	Priority       Optional[int]           `json:"priority"`
	Status         Optional[ProjectStatus] `json:"status"`
	PlannedEndDate Optional[*time.Time]    `json:"planned_end_date"`
	EndDate        Optional[*time.Time]    `json:"end_date"`
}

// Apply merges the provided fields into p.
func (patch ProjectPatch) Apply(p *Project) {
	if v, ok := patch.Name.Get(); ok {
		p.Name = v
	}
	if v, ok := patch.Description.Get(); ok {
		p.Description = v
	}
	if v, ok := patch.Context.Get(); ok {
		p.Context = v
	}
	if v, ok := patch.Color.Get(); ok {
		p.Color = v
	}
	if v, ok := patch.Priority.Get(); ok {
		p.Priority = v
	}
	if v, ok := patch.Status.Get(); ok {
		p.Status = v
	}
	if v, ok := patch.PlannedEndDate.Get(); ok {
		p.PlannedEndDate = v
	}
	if v, ok := patch.EndDate.Get(); ok {
		p.EndDate = v
	}
}

type AreaPatch struct {
	Name        Optional[string]  `json:"name"`
	Description Optional[*string] `json:"description"`
	Color       Optional[*string] `json:"color"`
}

func (patch AreaPatch) Apply(a *Area) {
	if v, ok := patch.Name.Get(); ok {
		a.Name = v
	}
	if v, ok := patch.Description.Get(); ok {
		a.Description = v
	}
	if v, ok := patch.Color.Get(); ok {
		a.Color = v
	}
}

// NotePatch carries scalar fields plus optional replacement link sets.
// Stores only look at Title, Content and Pinned; the link lists are
// resolved by the note service.
type NotePatch struct {
	Title      Optional[string]      `json:"title"`
	Content    Optional[string]      `json:"content"`
	Pinned     Optional[bool]        `json:"pinned"`
	ProjectIDs Optional[[]uuid.UUID] `json:"project_ids"`
	AreaIDs    Optional[[]uuid.UUID] `json:"area_ids"`
	TagNames   Optional[[]string]    `json:"tag_names"`
}

// Apply merges the scalar fields into n, recomputing derived fields when
// the content changes.
func (patch NotePatch) Apply(n *Note) {
	if v, ok := patch.Title.Get(); ok {
		n.Title = v
	}
	if v, ok := patch.Content.Get(); ok {
		n.SetContent(v)
	}
	if v, ok := patch.Pinned.Get(); ok {
		n.Pinned = v
	}
}
