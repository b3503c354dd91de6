package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	goplugin "plugin"
	"slices"
	"strings"
)

// factorySymbols are the names a shared object may export its Factory under,
// in order of preference.
var factorySymbols = []string{"InitPlugin", "Init", "NewPlugin", "New"}

// Enable loads a Go shared object and enables the plugin its Factory returns.
// Relative paths are resolved with ResolvePath.
func (m *Manager) Enable(path string) (Info, error) {
	if !m.Enabled() {
		return Info{}, ErrDisabled
	}
	path = m.ResolvePath(path)

	m.mu.RLock()
	i := slices.IndexFunc(m.plugins, func(p *instance) bool { return p.info.Path == path })
	if i >= 0 {
		info := m.plugins[i].info
		m.mu.RUnlock()
		return info, ErrAlreadyLoaded
	}
	m.mu.RUnlock()

	mod, err := goplugin.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open plugin: %w", err)
	}
	factory, err := lookupFactory(mod)
	if err != nil {
		return Info{}, fmt.Errorf("open plugin %s: %w", path, err)
	}
	return m.enable(pluginBaseName(path), path, factory)
}

// LoadConfigured enables the shared objects selected by the Config of the
// Manager. It only has an effect the first time it is called.
func (m *Manager) LoadConfigured() {
	m.once.Do(func() {
		if !m.cfg.Enabled {
			m.log.Debug("Shared object plugins disabled.")
			return
		}
		for _, path := range m.discover() {
			if _, err := m.Enable(path); err != nil {
				m.log.Error("Enable plugin.", "path", path, "error", err)
			}
		}
	})
}

// discover returns the sorted paths of the shared objects in Directory, if
// Autoload is set, together with the files listed in the Config.
func (m *Manager) discover() []string {
	dir := m.Directory()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.log.Error("Create plugin directory.", "dir", dir, "error", err)
		return nil
	}
	var paths []string
	if m.cfg.Autoload {
		entries, err := os.ReadDir(dir)
		if err != nil {
			m.log.Error("Read plugin directory.", "dir", dir, "error", err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".so") {
				paths = append(paths, filepath.Join(dir, entry.Name()))
			}
		}
	}
	for _, file := range m.cfg.Files {
		paths = append(paths, m.ResolvePath(file))
	}
	slices.Sort(paths)
	return slices.Compact(paths)
}

// lookupFactory finds the first of factorySymbols exported by mod.
func lookupFactory(mod *goplugin.Plugin) (Factory, error) {
	for _, symbol := range factorySymbols {
		if sym, err := mod.Lookup(symbol); err == nil {
			return factoryFromSymbol(symbol, sym)
		}
	}
	return nil, fmt.Errorf("no factory exported as any of %v", factorySymbols)
}

// factoryFromSymbol converts the value of an exported symbol to a Factory.
// Both Factory functions and constructors returning only a Plugin are
// accepted, as values or pointers.
func factoryFromSymbol(symbol string, sym any) (Factory, error) {
	switch fn := sym.(type) {
	case Factory:
		return fn, nil
	case *Factory:
		return *fn, nil
	case func(*API) (Plugin, error):
		return fn, nil
	case *func(*API) (Plugin, error):
		return *fn, nil
	case func(*API) Plugin:
		return constructorFactory(symbol, fn), nil
	case *func(*API) Plugin:
		return constructorFactory(symbol, *fn), nil
	}
	return nil, fmt.Errorf("symbol %s has incompatible type %T", symbol, sym)
}

// constructorFactory adapts a constructor that cannot fail to a Factory.
func constructorFactory(symbol string, ctor func(*API) Plugin) Factory {
	return func(api *API) (Plugin, error) {
		if p := ctor(api); p != nil {
			return p, nil
		}
		return nil, fmt.Errorf("%s returned nil plugin", symbol)
	}
}
