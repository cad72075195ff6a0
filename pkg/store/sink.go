package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
)

// Sink persists encrypted packages under a name.
type Sink interface {
	// Put stores data under name, replacing any previous package.
	Put(ctx context.Context, name string, data []byte) error
	// Get returns the package stored under name.
	Get(ctx context.Context, name string) ([]byte, error)
	// Close releases the sink's resources.
	Close() error
}

func notFound(op, name string) error {
	return qerrors.NewInputError(op, fmt.Errorf("%w: %s", qerrors.ErrPackageNotFound, name))
}

// --- File sink ---

// FileSink writes packages as files in a directory. Writes are atomic: data
// goes to a temporary file in the same directory which is then renamed.
type FileSink struct {
	dir string
}

// NewFileSink creates dir (mode 0700) if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Path returns the file path for name.
func (s *FileSink) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Put writes data to name with mode 0600.
func (s *FileSink) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".pkg-*")
	if err != nil {
		return fmt.Errorf("create temp package: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod package: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write package: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync package: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close package: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("rename package: %w", err)
	}
	return nil
}

// Get reads the package file for name.
func (s *FileSink) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound("store.FileSink.Get", name)
	}
	if err != nil {
		return nil, fmt.Errorf("read package: %w", err)
	}
	return data, nil
}

// Close is a no-op.
func (s *FileSink) Close() error {
	return nil
}

// --- Redis sink ---

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key prefix, default "qals:package:"
	TTL      time.Duration // zero keeps packages until overwritten
}

// RedisSink stores packages as Redis string values.
type RedisSink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(ctx context.Context, cfg RedisConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "qals:package:"
	}
	return &RedisSink{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

// Key returns the Redis key for name.
func (s *RedisSink) Key(name string) string {
	return s.prefix + name
}

// Put stores data under name.
func (s *RedisSink) Put(ctx context.Context, name string, data []byte) error {
	if err := s.client.Set(ctx, s.Key(name), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store package: %w", err)
	}
	return nil
}

// Get fetches the package stored under name.
func (s *RedisSink) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.Key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound("store.RedisSink.Get", name)
		}
		return nil, fmt.Errorf("get package: %w", err)
	}
	return data, nil
}

// Delete removes the package stored under name.
func (s *RedisSink) Delete(ctx context.Context, name string) error {
	return s.client.Del(ctx, s.Key(name)).Err()
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}

// --- Memory sink ---

// MemorySink keeps packages in memory.
type MemorySink struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{data: make(map[string][]byte)}
}

// Put stores a copy of data.
func (s *MemorySink) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the stored package.
func (s *MemorySink) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[name]
	if !ok {
		return nil, notFound("store.MemorySink.Get", name)
	}
	return append([]byte(nil), data...), nil
}

// Names returns the stored package names.
func (s *MemorySink) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for n := range s.data {
		names = append(names, n)
	}
	return names
}

// Close is a no-op.
func (s *MemorySink) Close() error {
	return nil
}
