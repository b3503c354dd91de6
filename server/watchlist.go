package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dm-vev/synth/server/world"
	"github.com/pelletier/go-toml"
)

var (
	// ErrWatchlistUnavailable is returned when the watchlist is not configured.
	ErrWatchlistUnavailable = errors.New("watchlist is not configured")
	// ErrWatchlistInvalidType is returned when an invalid entity type is provided to a watchlist operation.
	ErrWatchlistInvalidType = errors.New("invalid entity type")
)

// Watchlist selects the entity types whose events are logged by the server. Entries are persisted in a TOML file.
// An empty watchlist watches every entity.
type Watchlist struct {
	mu       sync.RWMutex
	types    map[string]string
	ignored  map[string]string
	filePath string
}

type watchlistFile struct {
	Types   []string `toml:"types"`
	Ignored []string `toml:"ignored"`
}

// LoadWatchlist loads the watchlist stored in the file at the provided path. If the file does not exist yet, it will
// be created with empty lists.
func LoadWatchlist(path string) (*Watchlist, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("watchlist path must not be empty")
	}
	w := &Watchlist{
		types:    make(map[string]string),
		ignored:  make(map[string]string),
		filePath: path,
	}
	if err := w.reloadFromDisk(); err != nil {
		return nil, err
	}
	return w, nil
}

// Query returns an EntityQuery matching the entities selected by the watchlist.
func (w *Watchlist) Query() world.EntityQuery {
	if w == nil {
		return world.EntityQuery{}
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return world.EntityQuery{Types: sortedValues(w.types), ExcludeTypes: sortedValues(w.ignored)}
}

// Watch adds an entity type to the watchlist. The returned bool indicates if the type was newly added.
func (w *Watchlist) Watch(typ string) (bool, error) {
	return w.add(typ, func() map[string]string { return w.types })
}

// Ignore adds an entity type to the ignored types of the watchlist. Ignored types are never watched. The returned bool
// indicates if the type was newly added.
func (w *Watchlist) Ignore(typ string) (bool, error) {
	return w.add(typ, func() map[string]string { return w.ignored })
}

// Unwatch removes an entity type from both lists of the watchlist. The returned bool indicates if the type was
// present before the call.
func (w *Watchlist) Unwatch(typ string) (bool, error) {
	if w == nil {
		return false, ErrWatchlistUnavailable
	}
	trimmed := strings.TrimSpace(typ)
	if trimmed == "" {
		return false, ErrWatchlistInvalidType
	}
	key := normalizeType(trimmed)

	w.mu.Lock()
	defer w.mu.Unlock()

	watched, inTypes := w.types[key]
	ignored, inIgnored := w.ignored[key]
	if !inTypes && !inIgnored {
		return false, nil
	}
	delete(w.types, key)
	delete(w.ignored, key)
	if err := w.writeLocked(); err != nil {
		if inTypes {
			w.types[key] = watched
		}
		if inIgnored {
			w.ignored[key] = ignored
		}
		return false, err
	}
	return true, nil
}

func (w *Watchlist) add(typ string, list func() map[string]string) (bool, error) {
	if w == nil {
		return false, ErrWatchlistUnavailable
	}
	trimmed := strings.TrimSpace(typ)
	if trimmed == "" {
		return false, ErrWatchlistInvalidType
	}
	key := normalizeType(trimmed)

	w.mu.Lock()
	defer w.mu.Unlock()

	m := list()
	if _, exists := m[key]; exists {
		return false, nil
	}
	m[key] = trimmed
	if err := w.writeLocked(); err != nil {
		delete(m, key)
		return false, err
	}
	return true, nil
}

func (w *Watchlist) reloadFromDisk() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloadLocked()
}

func (w *Watchlist) reloadLocked() error {
	data := watchlistFile{}
	contents, err := os.ReadFile(w.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			clear(w.types)
			clear(w.ignored)
			return w.writeLocked()
		}
		return fmt.Errorf("read watchlist: %w", err)
	}
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &data); err != nil {
			return fmt.Errorf("decode watchlist: %w", err)
		}
	}
	w.types = typeMap(data.Types)
	w.ignored = typeMap(data.Ignored)
	return nil
}

func (w *Watchlist) writeLocked() error {
	dir := filepath.Dir(w.filePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("create watchlist directory: %w", err)
		}
	}
	data := watchlistFile{Types: sortedValues(w.types), Ignored: sortedValues(w.ignored)}
	encoded, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}
	if err := os.WriteFile(w.filePath, encoded, 0644); err != nil {
		return fmt.Errorf("write watchlist: %w", err)
	}
	return nil
}

func typeMap(types []string) map[string]string {
	m := make(map[string]string, len(types))
	for _, typ := range types {
		trimmed := strings.TrimSpace(typ)
		if trimmed == "" {
			continue
		}
		m[normalizeType(trimmed)] = trimmed
	}
	return m
}

func sortedValues(m map[string]string) []string {
	values := make([]string, 0, len(m))
	for _, v := range m {
		values = append(values, v)
	}
	slices.SortFunc(values, func(a, b string) int {
		lowerA, lowerB := strings.ToLower(a), strings.ToLower(b)
		if lowerA == lowerB {
			return strings.Compare(a, b)
		}
		return strings.Compare(lowerA, lowerB)
	})
	return values
}

func normalizeType(typ string) string {
	return strings.ToLower(strings.TrimSpace(typ))
}
