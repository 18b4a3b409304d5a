package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

const defaultCleanupInterval = time.Minute

// Store implements ports.StateStore in memory.
// Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*domain.Session
	executions map[string]*domain.Execution

	// memories holds entries by id; go-cache drops them once expired.
	memories *gocache.Cache
	// order lists memory ids per agent in insertion order.
	order map[string][]string
}

// Option configures the in-memory store.
type Option func(*Store)

// WithCleanupInterval sets how often expired memories are purged.
func WithCleanupInterval(d time.Duration) Option {
	return func(s *Store) {
		s.memories = gocache.New(gocache.NoExpiration, d)
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions:   make(map[string]*domain.Session),
		executions: make(map[string]*domain.Execution),
		memories:   gocache.New(gocache.NoExpiration, defaultCleanupInterval),
		order:      make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sessionKey(agentID, sessionID string) string {
	return agentID + "/" + sessionID
}

// StartSession registers a session, replacing any previous one.
func (s *Store) StartSession(ctx context.Context, agentID, sessionID string, initial map[string]any) (*domain.Session, error) {
	now := time.Now()
	sess := &domain.Session{
		AgentID:   agentID,
		SessionID: sessionID,
		State:     domain.CloneMap(initial),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey(agentID, sessionID)] = sess
	return copySession(sess), nil
}

// LoadSession retrieves a copy of the session.
func (s *Store) LoadSession(ctx context.Context, agentID, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionKey(agentID, sessionID)]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return copySession(sess), nil
}

// UpdateState merges partial into the session state.
func (s *Store) UpdateState(ctx context.Context, agentID, sessionID string, partial map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionKey(agentID, sessionID)]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	for k, v := range partial {
		sess.State[k] = v
	}
	sess.UpdatedAt = time.Now()
	return domain.CloneMap(sess.State), nil
}

// StoreMemory persists a memory entry. Entries whose expiry has already
// passed are returned but never become visible to readers.
func (s *Store) StoreMemory(ctx context.Context, agentID string, memoryType domain.MemoryType, key string, content map[string]any, opts domain.MemoryOptions) (*domain.Memory, error) {
	now := time.Now()
	mem := &domain.Memory{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		Type:       memoryType,
		Key:        key,
		Content:    domain.CloneMap(content),
		Importance: opts.Importance,
		CreatedAt:  now,
		ExpiresAt:  opts.ExpiresAt,
	}

	ttl := gocache.NoExpiration
	if mem.ExpiresAt != nil {
		ttl = mem.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return copyMemory(mem), nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories.Set(mem.ID, mem, ttl)
	s.order[agentID] = append(s.order[agentID], mem.ID)
	return copyMemory(mem), nil
}

// RetrieveMemories returns the agent's live memories of the given type, newest first.
func (s *Store) RetrieveMemories(ctx context.Context, agentID string, memoryType domain.MemoryType, limit int) ([]domain.Memory, error) {
	return s.scan(agentID, limit, func(m *domain.Memory) bool {
		return memoryType == "" || m.Type == memoryType
	}), nil
}

// SearchMemories returns the agent's live memories whose key has the prefix, newest first.
func (s *Store) SearchMemories(ctx context.Context, agentID, keyPrefix string) ([]domain.Memory, error) {
	return s.scan(agentID, 0, func(m *domain.Memory) bool {
		return strings.HasPrefix(m.Key, keyPrefix)
	}), nil
}

func (s *Store) scan(agentID string, limit int, match func(*domain.Memory) bool) []domain.Memory {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.order[agentID]
	if len(ids) == 0 {
		return []domain.Memory{}
	}
	live := ids[:0]
	now := time.Now()
	var out []domain.Memory

	// Walk oldest to newest so the id index can be compacted in place.
	for _, id := range ids {
		v, found := s.memories.Get(id)
		if !found {
			continue
		}
		live = append(live, id)
		mem := v.(*domain.Memory)
		if mem.Expired(now) || !match(mem) {
			continue
		}
		out = append(out, *copyMemory(mem))
	}
	s.order[agentID] = live

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []domain.Memory{}
	}
	return out
}

// StartExecution opens an execution log entry.
func (s *Store) StartExecution(ctx context.Context, agentID, taskName string, input map[string]any, opts domain.ExecutionOptions) (string, error) {
	exec := &domain.Execution{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		TaskName:  taskName,
		TaskType:  opts.TaskType,
		Input:     domain.CloneMap(input),
		Metadata:  domain.CloneMap(opts.Metadata),
		Status:    domain.ExecutionRunning,
		StartedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[exec.ID] = exec
	return exec.ID, nil
}

// CompleteExecution closes an execution log entry.
func (s *Store) CompleteExecution(ctx context.Context, executionID string, output map[string]any, status domain.ExecutionStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.executions[executionID]
	if !ok {
		return domain.ErrExecutionNotFound
	}
	now := time.Now()
	exec.Output = domain.CloneMap(output)
	exec.Status = status
	exec.Error = errorMessage
	exec.CompletedAt = &now
	return nil
}

// GetExecution retrieves a copy of an execution log entry.
func (s *Store) GetExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, ok := s.executions[executionID]
	if !ok {
		return nil, domain.ErrExecutionNotFound
	}
	ret := *exec
	ret.Input = domain.CloneMap(exec.Input)
	ret.Output = domain.CloneMap(exec.Output)
	ret.Metadata = domain.CloneMap(exec.Metadata)
	return &ret, nil
}

// Create a copy on read so callers can't mutate store state by pointer.
func copySession(sess *domain.Session) *domain.Session {
	ret := *sess
	ret.State = domain.CloneMap(sess.State)
	return &ret
}

func copyMemory(mem *domain.Memory) *domain.Memory {
	ret := *mem
	ret.Content = domain.CloneMap(mem.Content)
	return &ret
}
