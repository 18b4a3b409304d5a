package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "arbiter:"

// Store implements ports.StateStore using Redis.
//
// Layout (relative to the prefix):
//
//	session:<agent>:<session>  JSON session, expires after the configured TTL
//	memory:<id>                JSON memory, expires at its ExpiresAt
//	memories:<agent>           ZSET of memory ids scored by insertion sequence
//	memseq                     sequence counter for the ZSET scores
//	execution:<id>             JSON execution log entry
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for sessions and execution records.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client, e.g. to build a Locker on the same connection.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) sessionKey(agentID, sessionID string) string {
	return s.prefix + "session:" + agentID + ":" + sessionID
}

func (s *Store) memoryKey(id string) string {
	return s.prefix + "memory:" + id
}

func (s *Store) indexKey(agentID string) string {
	return s.prefix + "memories:" + agentID
}

func (s *Store) executionKey(id string) string {
	return s.prefix + "execution:" + id
}

// StartSession persists a fresh session, replacing any previous one.
func (s *Store) StartSession(ctx context.Context, agentID, sessionID string, initial map[string]any) (*domain.Session, error) {
	now := time.Now()
	sess := &domain.Session{
		AgentID:   agentID,
		SessionID: sessionID,
		State:     domain.CloneMap(initial),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.putJSON(ctx, s.client, s.sessionKey(agentID, sessionID), sess, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// LoadSession retrieves a session.
func (s *Store) LoadSession(ctx context.Context, agentID, sessionID string) (*domain.Session, error) {
	var sess domain.Session
	if err := s.getJSON(ctx, s.client, s.sessionKey(agentID, sessionID), &sess); err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &sess, nil
}

// UpdateState merges partial into the session inside a WATCH transaction,
// retrying when a concurrent writer touched the session.
func (s *Store) UpdateState(ctx context.Context, agentID, sessionID string, partial map[string]any) (map[string]any, error) {
	key := s.sessionKey(agentID, sessionID)
	var merged map[string]any

	txf := func(tx *backend.Tx) error {
		var sess domain.Session
		if err := s.getJSON(ctx, tx, key, &sess); err != nil {
			return err
		}
		if sess.State == nil {
			sess.State = make(map[string]any)
		}
		for k, v := range partial {
			sess.State[k] = v
		}
		sess.UpdatedAt = time.Now()

		data, err := json.Marshal(&sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, s.keepTTL())
			return nil
		})
		if err == nil {
			merged = sess.State
		}
		return err
	}

	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			// Round-trip through JSON so callers see the same types as LoadSession.
			return normalizeState(merged)
		case errors.Is(err, backend.Nil):
			return nil, domain.ErrSessionNotFound
		case errors.Is(err, backend.TxFailedErr):
			continue
		default:
			return nil, fmt.Errorf("failed to update session: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to update session: %w", backend.TxFailedErr)
}

// keepTTL preserves the remaining expiry of the session when a TTL is configured.
func (s *Store) keepTTL() time.Duration {
	if s.ttl > 0 {
		return backend.KeepTTL
	}
	return 0
}

// StoreMemory persists a memory entry and indexes it under its agent.
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

	var ttl time.Duration
	if mem.ExpiresAt != nil {
		ttl = mem.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return mem, nil
		}
	}

	data, err := json.Marshal(mem)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal memory: %w", err)
	}

	seq, err := s.client.Incr(ctx, s.prefix+"memseq").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate memory sequence: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.memoryKey(mem.ID), data, ttl)
	pipe.ZAdd(ctx, s.indexKey(agentID), backend.Z{Score: float64(seq), Member: mem.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save memory: %w", err)
	}
	return mem, nil
}

// RetrieveMemories returns the agent's live memories of the given type, newest first.
func (s *Store) RetrieveMemories(ctx context.Context, agentID string, memoryType domain.MemoryType, limit int) ([]domain.Memory, error) {
	return s.scan(ctx, agentID, limit, func(m *domain.Memory) bool {
		return memoryType == "" || m.Type == memoryType
	})
}

// SearchMemories returns the agent's live memories whose key has the prefix, newest first.
func (s *Store) SearchMemories(ctx context.Context, agentID, keyPrefix string) ([]domain.Memory, error) {
	return s.scan(ctx, agentID, 0, func(m *domain.Memory) bool {
		return strings.HasPrefix(m.Key, keyPrefix)
	})
}

func (s *Store) scan(ctx context.Context, agentID string, limit int, match func(*domain.Memory) bool) ([]domain.Memory, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(agentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory index: %w", err)
	}
	out := []domain.Memory{}
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.memoryKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load memories: %w", err)
	}

	// Lazy cleanup: ids whose payload has expired are dropped from the index.
	var stale []any
	now := time.Now()
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var mem domain.Memory
		if err := json.Unmarshal([]byte(raw), &mem); err != nil {
			return nil, fmt.Errorf("failed to unmarshal memory %s: %w", ids[i], err)
		}
		if mem.Expired(now) || !match(&mem) {
			continue
		}
		out = append(out, mem)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(agentID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune memory index: %w", err)
		}
	}
	return out, nil
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
	if err := s.putJSON(ctx, s.client, s.executionKey(exec.ID), exec, s.ttl); err != nil {
		return "", fmt.Errorf("failed to save execution: %w", err)
	}
	return exec.ID, nil
}

// CompleteExecution closes an execution log entry.
func (s *Store) CompleteExecution(ctx context.Context, executionID string, output map[string]any, status domain.ExecutionStatus, errorMessage string) error {
	exec, err := s.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}
	now := time.Now()
	exec.Output = domain.CloneMap(output)
	exec.Status = status
	exec.Error = errorMessage
	exec.CompletedAt = &now
	if err := s.putJSON(ctx, s.client, s.executionKey(executionID), exec, s.keepTTL()); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution log entry.
func (s *Store) GetExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	var exec domain.Execution
	if err := s.getJSON(ctx, s.client, s.executionKey(executionID), &exec); err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}
	return &exec, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// kv is the subset of commands shared by *backend.Client and *backend.Tx.
type kv interface {
	Get(ctx context.Context, key string) *backend.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *backend.StatusCmd
}

func (s *Store) putJSON(ctx context.Context, c kv, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl).Err()
}

func (s *Store) getJSON(ctx context.Context, c kv, key string, v any) error {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func normalizeState(state map[string]any) (map[string]any, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
