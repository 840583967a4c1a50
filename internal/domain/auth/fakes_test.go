package auth

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/id"
	"setflow/internal/core/tenant"
	"setflow/internal/core/tx"
)

func testContext(u *appctx.UserContext) context.Context {
	ctx := tenant.WithTxManager(context.Background(), tx.Direct)
	ctx = tenant.WithTenant(ctx, &tenant.Tenant{ID: "t1", Slug: "acme"})
	if u != nil {
		ctx = appctx.WithUser(ctx, u)
	}
	return ctx
}

type memStore struct {
	mu          sync.Mutex
	users       map[id.ID]User
	roles       map[string]Role
	perms       map[string]Permission
	rolePerms   map[id.ID][]id.ID
	userRoles   map[id.ID][]id.ID
	userDepts   map[id.ID][]string
	tokens      map[string]*RefreshToken
	revokeCalls int
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[id.ID]User{},
		roles:     map[string]Role{},
		perms:     map[string]Permission{},
		rolePerms: map[id.ID][]id.ID{},
		userRoles: map[id.ID][]id.ID{},
		userDepts: map[id.ID][]string{},
		tokens:    map[string]*RefreshToken{},
	}
}

type userRepo struct{ s *memStore }

func (r userRepo) Create(_ context.Context, u *User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, userID id.ID) (*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok || u.DeletionMark {
		return nil, apperror.NewNotFound("user", userID.String())
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email && !u.DeletionMark {
			return &u, nil
		}
	}
	return nil, apperror.NewNotFound("user", email)
}

func (r userRepo) Update(_ context.Context, u *User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.users[u.ID]
	if !ok {
		return apperror.NewNotFound("user", u.ID.String())
	}
	if stored.Version != u.Version {
		return apperror.NewConcurrentModification("user", u.ID.String())
	}
	u.Version++
	row := *u
	row.Roles, row.Permissions, row.DepartmentIDs = nil, nil, nil
	r.s.users[u.ID] = row
	return nil
}

func (r userRepo) Delete(_ context.Context, userID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return apperror.NewNotFound("user", userID.String())
	}
	u.DeletionMark = true
	r.s.users[userID] = u
	return nil
}

func (r userRepo) List(_ context.Context, _ UserFilter) ([]User, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []User
	for _, u := range r.s.users {
		if !u.DeletionMark {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (r userRepo) Exists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r userRepo) LoadRoles(_ context.Context, userID id.ID) ([]Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []Role
	for _, role := range r.s.roles {
		if slices.Contains(r.s.userRoles[userID], role.ID) {
			out = append(out, role)
		}
	}
	slices.SortFunc(out, func(a, b Role) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

func (r userRepo) LoadPermissions(_ context.Context, userID id.ID) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, roleID := range r.s.userRoles[userID] {
		for _, p := range r.s.perms {
			if slices.Contains(r.s.rolePerms[roleID], p.ID) && !slices.Contains(out, p.Code) {
				out = append(out, p.Code)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

func (r userRepo) LoadDepartments(_ context.Context, userID id.ID) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.userDepts[userID]), nil
}

func (r userRepo) SetDepartments(_ context.Context, userID id.ID, ids []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.userDepts[userID] = slices.Clone(ids)
	return nil
}

func (r userRepo) AssignRole(_ context.Context, userID, roleID id.ID, _ *id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !slices.Contains(r.s.userRoles[userID], roleID) {
		r.s.userRoles[userID] = append(r.s.userRoles[userID], roleID)
	}
	return nil
}

func (r userRepo) RevokeRole(_ context.Context, userID, roleID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.userRoles[userID] = slices.DeleteFunc(r.s.userRoles[userID], func(x id.ID) bool { return x == roleID })
	return nil
}

type roleRepo struct{ s *memStore }

func (r roleRepo) Create(_ context.Context, role *Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.roles[role.Code] = *role
	return nil
}

func (r roleRepo) GetByCode(_ context.Context, code string) (*Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[code]
	if !ok {
		return nil, apperror.NewNotFound("role", code)
	}
	return &role, nil
}

func (r roleRepo) List(context.Context) ([]Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []Role
	for _, role := range r.s.roles {
		out = append(out, role)
	}
	return out, nil
}

func (r roleRepo) LoadPermissions(_ context.Context, roleID id.ID) ([]Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []Permission
	for _, p := range r.s.perms {
		if slices.Contains(r.s.rolePerms[roleID], p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r roleRepo) AssignPermission(_ context.Context, roleID, permissionID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.rolePerms[roleID] = append(r.s.rolePerms[roleID], permissionID)
	return nil
}

type permRepo struct{ s *memStore }

func (r permRepo) GetByCode(_ context.Context, code string) (*Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.perms[code]
	if !ok {
		return nil, apperror.NewNotFound("permission", code)
	}
	return &p, nil
}

func (r permRepo) List(context.Context) ([]Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []Permission
	for _, p := range r.s.perms {
		out = append(out, p)
	}
	return out, nil
}

func (r permRepo) Upsert(_ context.Context, p *Permission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if stored, ok := r.s.perms[p.Code]; ok {
		*p = stored
		return nil
	}
	r.s.perms[p.Code] = *p
	return nil
}

type tokenRepo struct{ s *memStore }

func (r tokenRepo) SaveRefreshToken(_ context.Context, t *RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *t
	r.s.tokens[t.TokenHash] = &c
	return nil
}

func (r tokenRepo) GetRefreshToken(_ context.Context, hash string) (*RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[hash]
	if !ok {
		return nil, apperror.NewNotFound("refresh_token", "")
	}
	c := *t
	return &c, nil
}

func (r tokenRepo) RevokeRefreshToken(_ context.Context, tokenID id.ID, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for _, t := range r.s.tokens {
		if t.ID == tokenID {
			t.RevokedAt, t.RevokedReason = &now, reason
		}
	}
	return nil
}

func (r tokenRepo) RevokeAllUserTokens(_ context.Context, userID id.ID, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.revokeCalls++
	now := time.Now()
	for _, t := range r.s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt, t.RevokedReason = &now, reason
		}
	}
	return nil
}

func (r tokenRepo) CleanupExpiredTokens(context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for k, t := range r.s.tokens {
		if time.Now().After(t.ExpiresAt) {
			delete(r.s.tokens, k)
			n++
		}
	}
	return n, nil
}
