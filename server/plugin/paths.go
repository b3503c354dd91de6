package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Directory returns the directory searched for shared objects.
func (m *Manager) Directory() string {
	if m.cfg.Directory == "" {
		return "plugins"
	}
	return m.cfg.Directory
}

// DataRoot returns the directory the data directories of plugins are created
// in.
func (m *Manager) DataRoot() string {
	switch dir := m.cfg.DataDirectory; {
	case dir == "":
		return filepath.Clean(filepath.Join(m.Directory(), "data"))
	case filepath.IsAbs(dir):
		return filepath.Clean(dir)
	default:
		return filepath.Clean(filepath.Join(m.Directory(), dir))
	}
}

// ResolvePath resolves a relative path against Directory. Paths that already
// start with Directory, such as "plugins/demo.so", are only cleaned.
func (m *Manager) ResolvePath(path string) string {
	if path == "" {
		return ""
	}
	path = filepath.Clean(path)
	if filepath.IsAbs(path) {
		return path
	}
	dir := filepath.Clean(m.Directory())
	if rel, err := filepath.Rel(dir, path); err == nil && !escapes(rel) {
		return path
	}
	return filepath.Join(dir, path)
}

// escapes checks if a relative path points outside of its base directory.
func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// pluginDataDirectory returns the data directory of the plugin with the name
// passed.
func (m *Manager) pluginDataDirectory(name string) string {
	return filepath.Join(m.DataRoot(), sanitizePluginDirectory(name))
}

// migrateDataDirectory moves the data directory of a plugin from one path to
// another. If to already exists, it is kept and from is removed if empty.
func (m *Manager) migrateDataDirectory(from, to string) error {
	switch {
	case from == to:
		return nil
	case to == "":
		return errors.New("empty target data directory")
	}
	if from == "" {
		return os.MkdirAll(to, 0o755)
	}
	info, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(to, 0o755)
	} else if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data directory %s is not a directory", from)
	}
	if _, err := os.Stat(to); err == nil {
		return os.Remove(from)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("create parent of data directory: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("move data directory: %w", err)
	}
	return nil
}

// pluginBaseName returns the file name of path without its extension.
func pluginBaseName(path string) string {
	base := filepath.Base(path)
	if base = strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base))); base == "" || base == "." {
		return "plugin"
	}
	return base
}

// sanitizePluginDirectory turns a plugin name into a lowercase directory name
// made up of letters, digits, dashes, underscores and dots.
func sanitizePluginDirectory(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('-')
	}
	if s := strings.Trim(b.String(), "-_."); s != "" {
		return s
	}
	return "plugin"
}
