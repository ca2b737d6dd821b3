package index

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/koopa0/newsagent/internal/article"
)

// autoClusterThreshold is the corpus size at which the auto backend switches
// from exact flat scans to clustered search.
const autoClusterThreshold = 1000

// bruteforceArticleCap limits the bruteforce backend to the chunks of the
// most recent articles. This mode exists for constrained deployments where
// holding the full corpus in memory is not acceptable.
const bruteforceArticleCap = 200

// Backend names accepted by the Manager; mirror the config constants.
const (
	BackendAuto       = "auto"
	BackendFlat       = "flat"
	BackendClustered  = "clustered"
	BackendBruteforce = "bruteforce"
)

var (
	snapshotBucket = []byte("index")
	snapshotKey    = []byte("snapshot")
)

// ChunkSource supplies the chunks to index. Satisfied by *article.Store.
type ChunkSource interface {
	AllChunks(ctx context.Context) ([]article.Chunk, error)
}

// Manager owns the live index: it selects a backend, rebuilds from the
// article store after every corpus change, and snapshots entries to a bbolt
// file so restarts don't need an immediate rebuild.
//
// Rebuilds are full, not incremental, and serialized by mutex: corpus writes
// are rare (feed loads) while reads dominate, so correctness of a simple
// rebuild beats the complexity of incremental maintenance.
type Manager struct {
	source  ChunkSource
	backend string
	path    string
	logger  *slog.Logger

	mu      sync.RWMutex
	current Index
}

// NewManager creates a Manager. path is the bbolt snapshot file; empty
// disables persistence. backend is one of the Backend constants.
func NewManager(source ChunkSource, backend, path string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source:  source,
		backend: backend,
		path:    path,
		logger:  logger,
	}
}

// Load restores the index from the snapshot file. Failure is non-fatal:
// the caller proceeds with an empty index and the next rebuild repopulates
// both memory and disk.
func (m *Manager) Load() {
	if m.path == "" || m.backend == BackendBruteforce {
		return
	}

	entries, err := readSnapshot(m.path)
	if err != nil {
		m.logger.Warn("index snapshot load failed, starting empty", "path", m.path, "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	idx := m.build(entries)
	m.mu.Lock()
	m.current = idx
	m.mu.Unlock()
	m.logger.Info("index snapshot loaded", "vectors", len(entries), "path", m.path)
}

// Rebuild reconstructs the index from the article store and persists a new
// snapshot. Concurrent rebuilds serialize; searches continue against the
// previous index until the swap.
func (m *Manager) Rebuild(ctx context.Context) error {
	chunks, err := m.source.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("loading chunks for index rebuild: %w", err)
	}

	entries := make([]Entry, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		entries = append(entries, Entry{
			ChunkID:   c.ID,
			ArticleID: c.ArticleID,
			Vector:    c.Embedding,
		})
	}
	if m.backend == BackendBruteforce {
		entries = capToRecentArticles(entries, bruteforceArticleCap)
	}

	idx := m.build(entries)

	m.mu.Lock()
	m.current = idx
	m.mu.Unlock()

	if m.path != "" && m.backend != BackendBruteforce {
		if err := writeSnapshot(m.path, entries); err != nil {
			// Snapshot failure costs a rebuild at next start, nothing more.
			m.logger.Warn("index snapshot write failed", "path", m.path, "error", err)
		}
	}

	m.logger.Info("index rebuilt", "backend", m.backend, "vectors", len(entries))
	return nil
}

// Search queries the live index. An empty or not-yet-built index returns no
// hits.
func (m *Manager) Search(query []float32, k int) []Hit {
	m.mu.RLock()
	idx := m.current
	m.mu.RUnlock()
	if idx == nil {
		return nil
	}
	return idx.Search(query, k)
}

// Len reports the number of indexed vectors.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return 0
	}
	return m.current.Len()
}

// build constructs the configured backend over entries.
func (m *Manager) build(entries []Entry) Index {
	switch m.backend {
	case BackendClustered:
		return NewClustered(entries)
	case BackendFlat, BackendBruteforce:
		return NewFlat(entries)
	default: // BackendAuto
		if len(entries) >= autoClusterThreshold {
			return NewClustered(entries)
		}
		return NewFlat(entries)
	}
}

// capToRecentArticles keeps only entries belonging to the n highest article
// ids. Entries arrive ordered by article id, so a backward scan finds the
// cutoff.
func capToRecentArticles(entries []Entry, n int) []Entry {
	if n <= 0 {
		return nil
	}
	distinct := 0
	var lastID int64 = -1
	cut := 0
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ArticleID != lastID {
			distinct++
			lastID = entries[i].ArticleID
			if distinct > n {
				cut = i + 1
				break
			}
		}
	}
	return entries[cut:]
}

// snapshot is the gob-encoded on-disk form.
type snapshot struct {
	Entries []Entry
}

func writeSnapshot(path string, entries []Entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot{Entries: entries}); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("opening snapshot file: %w", err)
	}
	defer func() { _ = db.Close() }()

	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(snapshotBucket)
		if err != nil {
			return err
		}
		return bucket.Put(snapshotKey, buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

func readSnapshot(path string) ([]Entry, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer func() { _ = db.Close() }()

	var raw []byte
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snapshotBucket)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get(snapshotKey); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap.Entries, nil
}
