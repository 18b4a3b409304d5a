package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbiter/pkg/domain"
	"github.com/google/uuid"
)

// Store implements ports.StateStore using the local filesystem.
//
// Layout under BasePath:
//
//	sessions/<agent>/<session>.json
//	memories/<agent>.json   (array, oldest first)
//	executions/<id>.json
//
// Writes are atomic (temp file, fsync, rename). A single Store serializes its
// own access; sharing a directory between processes is not supported.
type Store struct {
	BasePath string
	mu       sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".arbiter/state".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".arbiter", "state")
	}
	return &Store{BasePath: basePath}
}

func escape(id string) string {
	return url.PathEscape(id)
}

func (s *Store) sessionPath(agentID, sessionID string) string {
	return filepath.Join(s.BasePath, "sessions", escape(agentID), escape(sessionID)+".json")
}

func (s *Store) memoriesPath(agentID string) string {
	return filepath.Join(s.BasePath, "memories", escape(agentID)+".json")
}

func (s *Store) executionPath(id string) string {
	return filepath.Join(s.BasePath, "executions", escape(id)+".json")
}

// StartSession writes a fresh session file, replacing any previous one.
func (s *Store) StartSession(ctx context.Context, agentID, sessionID string, initial map[string]any) (*domain.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}
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
	if err := writeJSON(s.sessionPath(agentID, sessionID), sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// LoadSession reads a session file.
func (s *Store) LoadSession(ctx context.Context, agentID, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSession(agentID, sessionID)
}

func (s *Store) loadSession(agentID, sessionID string) (*domain.Session, error) {
	var sess domain.Session
	if err := readJSON(s.sessionPath(agentID, sessionID), &sess); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// UpdateState merges partial into the stored session state.
func (s *Store) UpdateState(ctx context.Context, agentID, sessionID string, partial map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.loadSession(agentID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State == nil {
		sess.State = make(map[string]any)
	}
	for k, v := range partial {
		sess.State[k] = v
	}
	sess.UpdatedAt = time.Now()
	if err := writeJSON(s.sessionPath(agentID, sessionID), sess); err != nil {
		return nil, err
	}
	// Re-read so callers observe the same decoded types as LoadSession.
	stored, err := s.loadSession(agentID, sessionID)
	if err != nil {
		return nil, err
	}
	return stored.State, nil
}

// StoreMemory appends a memory entry to the agent's memory file.
// Expired entries are pruned on every write.
func (s *Store) StoreMemory(ctx context.Context, agentID string, memoryType domain.MemoryType, key string, content map[string]any, opts domain.MemoryOptions) (*domain.Memory, error) {
	now := time.Now()
	mem := domain.Memory{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		Type:       memoryType,
		Key:        key,
		Content:    domain.CloneMap(content),
		Importance: opts.Importance,
		CreatedAt:  now,
		ExpiresAt:  opts.ExpiresAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadMemories(agentID)
	if err != nil {
		return nil, err
	}
	live := entries[:0]
	for _, e := range entries {
		if !e.Expired(now) {
			live = append(live, e)
		}
	}
	if !mem.Expired(now) {
		live = append(live, mem)
	}
	if err := writeJSON(s.memoriesPath(agentID), live); err != nil {
		return nil, err
	}
	return &mem, nil
}

func (s *Store) loadMemories(agentID string) ([]domain.Memory, error) {
	var entries []domain.Memory
	if err := readJSON(s.memoriesPath(agentID), &entries); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

// RetrieveMemories returns the agent's live memories of the given type, newest first.
func (s *Store) RetrieveMemories(ctx context.Context, agentID string, memoryType domain.MemoryType, limit int) ([]domain.Memory, error) {
	return s.scan(agentID, limit, func(m *domain.Memory) bool {
		return memoryType == "" || m.Type == memoryType
	})
}

// SearchMemories returns the agent's live memories whose key has the prefix, newest first.
func (s *Store) SearchMemories(ctx context.Context, agentID, keyPrefix string) ([]domain.Memory, error) {
	return s.scan(agentID, 0, func(m *domain.Memory) bool {
		return strings.HasPrefix(m.Key, keyPrefix)
	})
}

func (s *Store) scan(agentID string, limit int, match func(*domain.Memory) bool) ([]domain.Memory, error) {
	s.mu.Lock()
	entries, err := s.loadMemories(agentID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := []domain.Memory{}
	for i := len(entries) - 1; i >= 0; i-- {
		m := entries[i]
		if m.Expired(now) || !match(&m) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// StartExecution writes a new execution log entry.
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
	if err := writeJSON(s.executionPath(exec.ID), exec); err != nil {
		return "", err
	}
	return exec.ID, nil
}

// CompleteExecution closes an execution log entry.
func (s *Store) CompleteExecution(ctx context.Context, executionID string, output map[string]any, status domain.ExecutionStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, err := s.getExecution(executionID)
	if err != nil {
		return err
	}
	now := time.Now()
	exec.Output = domain.CloneMap(output)
	exec.Status = status
	exec.Error = errorMessage
	exec.CompletedAt = &now
	return writeJSON(s.executionPath(executionID), exec)
}

// GetExecution reads an execution log entry.
func (s *Store) GetExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getExecution(executionID)
}

func (s *Store) getExecution(executionID string) (*domain.Execution, error) {
	var exec domain.Execution
	if err := readJSON(s.executionPath(executionID), &exec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, err
	}
	return &exec, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON persists v atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	// Same directory keeps the rename on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
