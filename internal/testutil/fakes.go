package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/drakleaf/rpc-hub/internal/rpc"
	"github.com/google/uuid"
)

var ErrBrokenPipe = errors.New("write: broken pipe")

// FakeTransport records every connection it hands out.
type FakeTransport struct {
	mu sync.Mutex

	// ConnectErr fails every Connect while set.
	ConnectErr error
	// UpdateErr fails every SetActivity on connections created while it is set.
	UpdateErr error
	// BlockConnect makes Connect wait for its context to expire.
	BlockConnect bool

	conns         []*FakeConn
	connectCalls  int
	openAtConnect []int
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

func (t *FakeTransport) Connect(ctx context.Context, applicationID string) (rpc.Connection, error) {
	t.mu.Lock()
	t.connectCalls++
	t.openAtConnect = append(t.openAtConnect, t.openLocked())
	block := t.BlockConnect
	connectErr := t.ConnectErr
	t.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if connectErr != nil {
		return nil, connectErr
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	c := &FakeConn{
		transport:     t,
		ApplicationID: applicationID,
		updateErr:     t.UpdateErr,
	}
	t.conns = append(t.conns, c)
	return c, nil
}

func (t *FakeTransport) SetConnectErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ConnectErr = err
}

func (t *FakeTransport) SetUpdateErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.UpdateErr = err
}

func (t *FakeTransport) ConnectCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectCalls
}

// OpenAtConnect returns, per Connect call, how many handles were still open when it started.
func (t *FakeTransport) OpenAtConnect() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.openAtConnect...)
}

func (t *FakeTransport) Conns() []*FakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*FakeConn(nil), t.conns...)
}

func (t *FakeTransport) Last() *FakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

func (t *FakeTransport) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openLocked()
}

func (t *FakeTransport) openLocked() int {
	open := 0
	for _, c := range t.conns {
		if !c.closed {
			open++
		}
	}
	return open
}

type FakeConn struct {
	transport     *FakeTransport
	ApplicationID string
	activities    []*rpc.Activity
	updateErr     error
	dead          bool
	closed        bool
	closeErr      error
}

func (c *FakeConn) SetActivity(ctx context.Context, activity *rpc.Activity) error {
	c.transport.mu.Lock()
	defer c.transport.mu.Unlock()

	if c.closed {
		return rpc.ErrClosed
	}
	if c.dead {
		return ErrBrokenPipe
	}
	if c.updateErr != nil {
		return c.updateErr
	}
	c.activities = append(c.activities, activity)
	return nil
}

func (c *FakeConn) Close() error {
	c.transport.mu.Lock()
	defer c.transport.mu.Unlock()
	c.closed = true
	return c.closeErr
}

// Kill makes every further update fail, like a Discord client that went away.
func (c *FakeConn) Kill() {
	c.transport.mu.Lock()
	defer c.transport.mu.Unlock()
	c.dead = true
}

// FailClose makes Close report err after closing.
func (c *FakeConn) FailClose(err error) {
	c.transport.mu.Lock()
	defer c.transport.mu.Unlock()
	c.closeErr = err
}

func (c *FakeConn) Closed() bool {
	c.transport.mu.Lock()
	defer c.transport.mu.Unlock()
	return c.closed
}

func (c *FakeConn) Activities() []*rpc.Activity {
	c.transport.mu.Lock()
	defer c.transport.mu.Unlock()
	return append([]*rpc.Activity(nil), c.activities...)
}

// MemoryConfigRepository is an in-memory PresenceConfigRepository.
type MemoryConfigRepository struct {
	mu      sync.Mutex
	configs map[uuid.UUID]*domain.PresenceConfig
	Err     error
}

// MemoryUserRepository is an in-memory UserRepository backed by a MemoryConfigRepository
// for ListActive.
type MemoryUserRepository struct {
	mu       sync.Mutex
	users    map[int64]*domain.User
	configs  *MemoryConfigRepository
	setCalls int
	Err      error
}

func NewMemoryStore() (*MemoryUserRepository, *MemoryConfigRepository) {
	configs := &MemoryConfigRepository{configs: make(map[uuid.UUID]*domain.PresenceConfig)}
	users := &MemoryUserRepository{users: make(map[int64]*domain.User), configs: configs}
	return users, configs
}

func (r *MemoryUserRepository) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

func (r *MemoryUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	existing, ok := r.users[user.ID]
	if ok {
		existing.Username = user.Username
		return nil
	}
	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) GetActiveConfigID(ctx context.Context, userID int64) (*uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.users[userID]
	if !ok || u.ActiveConfigID == nil {
		return nil, nil
	}
	id := *u.ActiveConfigID
	return &id, nil
}

func (r *MemoryUserRepository) SetActiveConfigID(ctx context.Context, userID int64, configID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCalls++
	if r.Err != nil {
		return r.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	u, ok := r.users[userID]
	if !ok {
		u = &domain.User{ID: userID}
		r.users[userID] = u
	}
	if configID == nil {
		u.ActiveConfigID = nil
		return nil
	}
	id := *configID
	u.ActiveConfigID = &id
	return nil
}

func (r *MemoryUserRepository) SetCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setCalls
}

func (r *MemoryUserRepository) ListActive(ctx context.Context) ([]domain.ActiveAssignment, error) {
	r.mu.Lock()
	if r.Err != nil {
		r.mu.Unlock()
		return nil, r.Err
	}
	refs := make(map[int64]uuid.UUID)
	for id, u := range r.users {
		if u.ActiveConfigID != nil {
			refs[id] = *u.ActiveConfigID
		}
	}
	r.mu.Unlock()

	var assignments []domain.ActiveAssignment
	for userID, ref := range refs {
		cfg, err := r.configs.GetByID(ctx, ref)
		if err != nil {
			continue
		}
		assignments = append(assignments, domain.ActiveAssignment{UserID: userID, Config: cfg})
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].UserID < assignments[j].UserID })
	return assignments, nil
}

func (r *MemoryConfigRepository) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

func (r *MemoryConfigRepository) Create(ctx context.Context, cfg *domain.PresenceConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	cp := *cfg
	r.configs[cfg.ID] = &cp
	return nil
}

func (r *MemoryConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PresenceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	cfg, ok := r.configs[id]
	if !ok {
		return nil, domain.ErrConfigNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (r *MemoryConfigRepository) GetByOwner(ctx context.Context, ownerID int64) ([]*domain.PresenceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*domain.PresenceConfig
	for _, cfg := range r.configs {
		if cfg.OwnerUserID == ownerID {
			cp := *cfg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryConfigRepository) Update(ctx context.Context, cfg *domain.PresenceConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	cp := *cfg
	r.configs[cfg.ID] = &cp
	return nil
}

func (r *MemoryConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	delete(r.configs, id)
	return nil
}

// MemoryAPIKeyRepository is an in-memory APIKeyRepository.
type MemoryAPIKeyRepository struct {
	mu   sync.Mutex
	keys map[int64]*domain.APIKey
}

func NewMemoryAPIKeyRepository() *MemoryAPIKeyRepository {
	return &MemoryAPIKeyRepository{keys: make(map[int64]*domain.APIKey)}
}

func (r *MemoryAPIKeyRepository) Replace(ctx context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *key
	r.keys[key.UserID] = &cp
	return nil
}

func (r *MemoryAPIKeyRepository) GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.keys {
		if key.Prefix == prefix {
			cp := *key
			return &cp, nil
		}
	}
	return nil, errors.New("record not found")
}
