// Package domaintest provides in-memory fakes for service tests.
package domaintest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/id"
	"setflow/internal/core/tenant"
	"setflow/internal/core/tx"
	"setflow/internal/domain"
	"setflow/internal/domain/audit"
)

// Context returns a context with a pass-through transaction manager and
// the given principal (an admin when u is nil).
func Context(u *appctx.UserContext) context.Context {
	if u == nil {
		u = &appctx.UserContext{UserID: id.New().String(), IsAdmin: true, Roles: []string{"admin"}}
	}
	ctx := tenant.WithTxManager(context.Background(), tx.Direct)
	return appctx.WithUser(ctx, u)
}

type versioned interface {
	GetVersion() int
	Stamp(version int, updatedAt time.Time)
}

// CatalogRepo keeps JSON copies of entities so callers never share memory
// with the store.
type CatalogRepo[T domain.Entity] struct {
	mu    sync.Mutex
	rows  map[id.ID][]byte
	dead  map[id.ID]bool
	newFn func() T
	// Match narrows List results; nil keeps every live row.
	Match func(T, domain.ListFilter) bool
}

func NewCatalogRepo[T domain.Entity](newFn func() T) *CatalogRepo[T] {
	return &CatalogRepo[T]{rows: map[id.ID][]byte{}, dead: map[id.ID]bool{}, newFn: newFn}
}

func (r *CatalogRepo[T]) decode(raw []byte) T {
	e := r.newFn()
	_ = json.Unmarshal(raw, e)
	return e
}

func (r *CatalogRepo[T]) Create(_ context.Context, e T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	r.rows[e.GetID()] = raw
	return nil
}

func (r *CatalogRepo[T]) Put(e T) { _ = r.Create(context.Background(), e) }

func (r *CatalogRepo[T]) GetByID(_ context.Context, key id.ID) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.rows[key]
	if !ok {
		var zero T
		return zero, apperror.NewNotFound("entity", key.String())
	}
	e := r.decode(raw)
	return e, nil
}

func (r *CatalogRepo[T]) GetForUpdate(ctx context.Context, key id.ID) (T, error) {
	return r.GetByID(ctx, key)
}

func (r *CatalogRepo[T]) GetByCode(_ context.Context, code string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, raw := range r.rows {
		var probe struct {
			Code string `json:"code"`
		}
		if json.Unmarshal(raw, &probe) == nil && probe.Code == code && !r.dead[k] {
			return r.decode(raw), nil
		}
	}
	var zero T
	return zero, apperror.NewNotFound("entity", code)
}

func (r *CatalogRepo[T]) Update(_ context.Context, e T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.rows[e.GetID()]
	if !ok {
		return apperror.NewNotFound("entity", e.GetID().String())
	}
	if v, ok := any(e).(versioned); ok {
		stored, _ := any(r.decode(raw)).(versioned)
		if stored.GetVersion() != v.GetVersion() {
			return apperror.NewConcurrentModification("entity", e.GetID().String())
		}
		v.Stamp(v.GetVersion()+1, time.Now().UTC())
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	r.rows[e.GetID()] = raw
	return nil
}

// Mutate changes a stored row in place and bumps its version.
func (r *CatalogRepo[T]) Mutate(key id.ID, fn func(T)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.rows[key]
	if !ok {
		return apperror.NewNotFound("entity", key.String())
	}
	e := r.decode(raw)
	fn(e)
	if v, ok := any(e).(versioned); ok {
		v.Stamp(v.GetVersion()+1, time.Now().UTC())
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	r.rows[key] = raw
	return nil
}

func (r *CatalogRepo[T]) SetDeletionMark(_ context.Context, key id.ID, marked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.rows[key]
	if !ok {
		return apperror.NewNotFound("entity", key.String())
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	m["deletionMark"] = marked
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	r.rows[key] = raw
	r.dead[key] = marked
	return nil
}

func (r *CatalogRepo[T]) IsDeleted(key id.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dead[key]
}

// All returns every row, deleted or not, ordered by id.
func (r *CatalogRepo[T]) All() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]id.ID, 0, len(r.rows))
	for k := range r.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.decode(r.rows[k]))
	}
	return out
}

func (r *CatalogRepo[T]) List(_ context.Context, f domain.ListFilter) (domain.ListResult[T], error) {
	items := []T{}
	for _, e := range r.All() {
		if !f.IncludeDeleted && r.IsDeleted(e.GetID()) {
			continue
		}
		if r.Match != nil && !r.Match(e, f) {
			continue
		}
		items = append(items, e)
	}
	return domain.ListResult[T]{Items: items, TotalCount: int64(len(items)), Limit: f.Limit, Offset: f.Offset}, nil
}

func (r *CatalogRepo[T]) Exists(_ context.Context, key id.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[key]
	return ok, nil
}

func (r *CatalogRepo[T]) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, err := r.GetByCode(ctx, code)
	return err == nil, nil
}

func (r *CatalogRepo[T]) GetTree(context.Context, *id.ID) ([]T, error) { return r.All(), nil }

func (r *CatalogRepo[T]) GetPath(ctx context.Context, key id.ID) ([]T, error) {
	e, err := r.GetByID(ctx, key)
	if err != nil {
		return nil, err
	}
	return []T{e}, nil
}

// Recorder keeps audit entries in memory.
type Recorder struct {
	mu      sync.Mutex
	Entries []audit.Entry
}

func (r *Recorder) Record(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, e)
	return nil
}

func (r *Recorder) History(_ context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Entry
	for i := len(r.Entries) - 1; i >= 0; i-- {
		e := r.Entries[i]
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Actions lists the recorded actions in order.
func (r *Recorder) Actions() []audit.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Action, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Action
	}
	return out
}

// RecordRepo adds number lookup to CatalogRepo.
type RecordRepo[T domain.Entity] struct {
	*CatalogRepo[T]
}

func NewRecordRepo[T domain.Entity](newFn func() T) *RecordRepo[T] {
	return &RecordRepo[T]{CatalogRepo: NewCatalogRepo(newFn)}
}

func (r *RecordRepo[T]) GetByNumber(_ context.Context, number string) (T, error) {
	for _, e := range r.All() {
		raw, _ := json.Marshal(e)
		var probe struct {
			Number string `json:"number"`
		}
		if json.Unmarshal(raw, &probe) == nil && probe.Number == number {
			return e, nil
		}
	}
	var zero T
	return zero, apperror.NewNotFound("entity", number)
}
