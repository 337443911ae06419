package xlsxio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TurtleWithGlasses/deckgen/config"
	"github.com/TurtleWithGlasses/deckgen/pkg/table"
)

// Dataset is an opened workbook held in memory as typed tables, paired
// with metadata for TTL eviction. Tables are immutable, so concurrent
// readers need no per-dataset lock once the entry is published.
type Dataset struct {
	ID        string
	Path      string
	Tables    map[string]*table.Table
	LoadedAt  time.Time
	ExpiresAt time.Time
	mu        sync.RWMutex
}

// DatasetGate coordinates capacity for open datasets (backed by runtime.Controller).
type DatasetGate interface {
	AcquireDataset(ctx context.Context) error
	ReleaseDataset()
}

// PathValidator abstracts filesystem path validation. Implementations
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// ErrHandleNotFound indicates an unknown or expired dataset handle ID.
var ErrHandleNotFound = errors.New("xlsxio: dataset handle not found")

// Manager provides lifecycle hooks for opening and closing datasets and
// a TTL-bearing handle cache.
type Manager struct {
	mu           sync.RWMutex
	datasets     map[string]*Dataset
	loader       *Loader
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         DatasetGate
	validator    PathValidator
	stopCh       chan struct{}
	cleanupWG    sync.WaitGroup
}

// NewManager constructs a lifecycle manager. Pass ttl or cleanupEvery
// <= 0 to use defaults from config. Gate and validator can be nil for
// tests; clock defaults to time.Now when nil.
func NewManager(loader *Loader, ttl, cleanupEvery time.Duration, gate DatasetGate, validator PathValidator, clock func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultDatasetIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultDatasetCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		datasets:     make(map[string]*Dataset),
		loader:       loader,
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		validator:    validator,
		stopCh:       make(chan struct{}),
	}
}

// Start launches periodic eviction of expired datasets.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops all open datasets.
func (m *Manager) Close(ctx context.Context) error {
	close(m.stopCh)
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.datasets {
		delete(m.datasets, id)
		m.release()
	}
	return nil
}

// Open loads the workbook at path into typed tables, registers a
// TTL-bearing dataset, and returns its handle ID. The manager enforces
// open-dataset capacity via the gate when provided.
func (m *Manager) Open(ctx context.Context, path string) (string, error) {
	if err := m.acquire(ctx); err != nil {
		return "", err
	}

	if m.validator != nil {
		canonical, err := m.validator.ValidateOpenPath(path)
		if err != nil {
			m.release()
			return "", err
		}
		path = canonical
	}

	tables, err := m.loader.LoadFile(path)
	if err != nil {
		m.release()
		return "", err
	}
	return m.register(path, tables), nil
}

// Adopt registers already-built tables as a managed dataset. Intended
// for the period aggregator's synthetic tables and for tests.
func (m *Manager) Adopt(ctx context.Context, tables map[string]*table.Table) (string, error) {
	if len(tables) == 0 {
		return "", fmt.Errorf("xlsxio: no tables to adopt")
	}
	if err := m.acquire(ctx); err != nil {
		return "", err
	}
	return m.register("", tables), nil
}

func (m *Manager) register(path string, tables map[string]*table.Table) string {
	id := uuid.NewString()
	loadedAt := m.clock()
	ds := &Dataset{
		ID:        id,
		Path:      path,
		Tables:    tables,
		LoadedAt:  loadedAt,
		ExpiresAt: loadedAt.Add(m.ttl),
	}
	m.mu.Lock()
	m.datasets[id] = ds
	m.mu.Unlock()
	return id
}

// Get returns the dataset when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Dataset, bool) {
	m.mu.RLock()
	ds, ok := m.datasets[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	// Refresh TTL on access (idle timeout semantics)
	now := m.clock()
	ds.mu.Lock()
	ds.ExpiresAt = now.Add(m.ttl)
	ds.mu.Unlock()
	return ds, true
}

// WithTables runs fn against the dataset's table map. The map and its
// tables must be treated as read-only.
func (m *Manager) WithTables(id string, fn func(map[string]*table.Table) error) error {
	ds, ok := m.Get(id)
	if !ok {
		return ErrHandleNotFound
	}
	return fn(ds.Tables)
}

// CloseHandle removes a dataset by ID, releasing capacity via the gate.
func (m *Manager) CloseHandle(id string) error {
	m.mu.Lock()
	_, ok := m.datasets[id]
	if ok {
		delete(m.datasets, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrHandleNotFound
	}
	m.release()
	return nil
}

// EvictExpired drops datasets past their idle TTL.
func (m *Manager) EvictExpired() {
	now := m.clock()
	var expiredIDs []string

	m.mu.RLock()
	for id, ds := range m.datasets {
		if ds.Expired(now) {
			expiredIDs = append(expiredIDs, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expiredIDs {
		m.mu.Lock()
		_, ok := m.datasets[id]
		if ok {
			delete(m.datasets, id)
		}
		m.mu.Unlock()
		if ok {
			m.release()
		}
	}
}

// Count returns the current number of cached datasets.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.datasets)
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireDataset(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseDataset()
}

// Expired reports whether the dataset has reached its idle TTL.
func (ds *Dataset) Expired(now time.Time) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return now.After(ds.ExpiresAt)
}
