package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"news-agent/internal/cache"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskStore keeps answered tasks so tasks/get can return them.
type TaskStore interface {
	Save(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
}

// MemoryTaskStore is the default store when Redis is not configured. Expired
// tasks are dropped lazily on access and on Save.
type MemoryTaskStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	tasks map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryTaskStore(ttl time.Duration) *MemoryTaskStore {
	if ttl <= 0 {
		ttl = cache.TaskTTL
	}
	return &MemoryTaskStore{
		ttl:   ttl,
		now:   time.Now,
		tasks: make(map[string]memoryEntry),
	}
}

func (s *MemoryTaskStore) Save(_ context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.tasks {
		if now.After(e.expiresAt) {
			delete(s.tasks, id)
		}
	}
	s.tasks[task.ID] = memoryEntry{data: data, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryTaskStore) Get(_ context.Context, id string) (*Task, error) {
	s.mu.Lock()
	e, ok := s.tasks[id]
	if ok && s.now().After(e.expiresAt) {
		delete(s.tasks, id)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrTaskNotFound
	}
	return decodeTask(e.data)
}

// KV is the subset of cache.RedisCache used by RedisTaskStore.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RedisTaskStore shares tasks between replicas.
type RedisTaskStore struct {
	kv  KV
	ttl time.Duration
}

func NewRedisTaskStore(kv KV, ttl time.Duration) *RedisTaskStore {
	if ttl <= 0 {
		ttl = cache.TaskTTL
	}
	return &RedisTaskStore{kv: kv, ttl: ttl}
}

func (s *RedisTaskStore) Save(ctx context.Context, task *Task) error {
	if err := s.kv.Set(ctx, cache.TaskKey(task.ID), task, s.ttl); err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

func (s *RedisTaskStore) Get(ctx context.Context, id string) (*Task, error) {
	data, err := s.kv.Get(ctx, cache.TaskKey(id))
	if errors.Is(err, cache.ErrKeyNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	return decodeTask(data)
}

func decodeTask(data []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

var (
	_ TaskStore = (*MemoryTaskStore)(nil)
	_ TaskStore = (*RedisTaskStore)(nil)
)
