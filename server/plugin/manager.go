package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
)

// instance is an enabled plugin together with the API it was given.
type instance struct {
	info   Info
	plugin Plugin
	api    *API
	cancel context.CancelFunc
}

// close closes the plugin, cancels the context of its API and undoes the
// registrations made through it.
func (i *instance) close() error {
	err := i.plugin.Close()
	i.cancel()
	i.api.release()
	return err
}

// Manager enables plugins, either compiled into the binary or loaded from Go
// shared objects, and disables them again. All methods are safe for
// concurrent use, but enabling and disabling plugins changes the behaviours
// and handlers of the engine, so it should happen on the goroutine driving it
// or while it is not running.
type Manager struct {
	host Host
	cfg  Config
	log  *slog.Logger

	once    sync.Once
	mu      sync.RWMutex
	plugins []*instance
}

// NewManager returns a Manager that hands host to the plugins it enables.
func NewManager(host Host, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	cfg.Files = slices.Clone(cfg.Files)
	return &Manager{host: host, cfg: cfg, log: log.With("subsystem", "plugin")}
}

// Enabled reports whether shared object plugins may be loaded.
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled
}

// Infos returns the Info of all enabled plugins in the order they were
// enabled.
func (m *Manager) Infos() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, len(m.plugins))
	for i, p := range m.plugins {
		infos[i] = p.info
	}
	return infos
}

// Plugin looks up an enabled plugin by its case-insensitive name.
func (m *Manager) Plugin(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.index(name); i >= 0 {
		return m.plugins[i].plugin, true
	}
	return nil, false
}

// index returns the index of the plugin with the name passed, or -1. m.mu
// must be held.
func (m *Manager) index(name string) int {
	return slices.IndexFunc(m.plugins, func(p *instance) bool {
		return strings.EqualFold(p.info.Name, name)
	})
}

// EnableFactory enables a plugin compiled into the server binary. name is used
// for its data directory until the plugin reports its own name.
func (m *Manager) EnableFactory(name string, factory Factory) (Info, error) {
	if factory == nil {
		return Info{}, fmt.Errorf("enable %s: nil factory", name)
	}
	return m.enable(strings.TrimSpace(name), "", factory)
}

// enable creates a plugin with factory and adds it to the Manager. Everything
// the factory registered is released again if enabling fails.
func (m *Manager) enable(name, path string, factory Factory) (_ Info, err error) {
	if name == "" {
		name = "plugin"
	}
	dataDir := m.pluginDataDirectory(name)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return Info{}, fmt.Errorf("create plugin data directory: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	api := newAPI(m, m.host, name)
	api.setContext(ctx)
	api.setDataDirectory(dataDir)
	defer func() {
		if err != nil {
			cancel()
			api.release()
		}
	}()

	p, err := factory(api)
	if err != nil {
		return Info{}, fmt.Errorf("initialise plugin %s: %w", name, err)
	}
	if p == nil {
		return Info{}, fmt.Errorf("initialise plugin %s: factory returned nil", name)
	}
	inst := &instance{info: Info{Name: p.Name(), Path: path}, plugin: p, api: api, cancel: cancel}
	if inst.info.Name == "" {
		inst.info.Name = name
	}
	if v, ok := p.(VersionedPlugin); ok {
		inst.info.Version = v.Version()
	}
	api.setName(inst.info.Name)
	if target := m.pluginDataDirectory(inst.info.Name); target != dataDir {
		if err := m.migrateDataDirectory(dataDir, target); err != nil {
			m.log.Error("Migrate plugin data directory.", "plugin", inst.info.Name, "error", err)
		} else {
			api.setDataDirectory(target)
		}
	}

	m.mu.Lock()
	if m.index(inst.info.Name) >= 0 {
		m.mu.Unlock()
		if err := p.Close(); err != nil {
			m.log.Error("Close conflicting plugin.", "plugin", inst.info.Name, "error", err)
		}
		return Info{}, fmt.Errorf("%w: %s", ErrNameConflict, inst.info.Name)
	}
	m.plugins = append(m.plugins, inst)
	m.mu.Unlock()

	m.log.Info("Plugin enabled.", "name", inst.info.Name, "version", inst.info.Version, "path", inst.info.Path)
	return inst.info, nil
}

// Disable disables the plugin with the case-insensitive name passed. The
// plugin is removed even if closing it fails.
func (m *Manager) Disable(name string) (Info, error) {
	m.mu.Lock()
	i := m.index(name)
	if i < 0 {
		m.mu.Unlock()
		return Info{}, ErrNotFound
	}
	inst := m.plugins[i]
	m.plugins = slices.Delete(m.plugins, i, i+1)
	m.mu.Unlock()

	if err := inst.close(); err != nil {
		return inst.info, fmt.Errorf("close plugin: %w", err)
	}
	m.log.Info("Plugin disabled.", "name", inst.info.Name)
	return inst.info, nil
}

// Reload disables a plugin loaded from a shared object and enables it from
// the same path again. Go cannot unload shared objects, so the code of the
// plugin only changes if it was rebuilt to a new path.
func (m *Manager) Reload(name string) (Info, error) {
	m.mu.RLock()
	i := m.index(name)
	var path string
	if i >= 0 {
		path = m.plugins[i].info.Path
	}
	m.mu.RUnlock()
	switch {
	case i < 0:
		return Info{}, ErrNotFound
	case path == "":
		return Info{}, ErrNotReloadable
	}

	if _, err := m.Disable(name); err != nil {
		return Info{}, err
	}
	info, err := m.Enable(path)
	if err != nil {
		return Info{}, err
	}
	m.log.Info("Plugin reloaded.", "name", info.Name, "path", info.Path)
	return info, nil
}

// DisableAll disables all plugins in reverse order of enabling and returns
// the Info of each plugin disabled. It stops at the first plugin that fails
// to close.
func (m *Manager) DisableAll() ([]Info, error) {
	infos := m.Infos()
	disabled := make([]Info, 0, len(infos))
	for _, info := range slices.Backward(infos) {
		if _, err := m.Disable(info.Name); err != nil {
			return disabled, err
		}
		disabled = append(disabled, info)
	}
	return disabled, nil
}

// Shutdown disables all plugins in reverse order of enabling. Failures are
// logged.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	plugins := m.plugins
	m.plugins = nil
	m.mu.Unlock()

	for _, inst := range slices.Backward(plugins) {
		if err := inst.close(); err != nil {
			m.log.Error("Close plugin.", "name", inst.info.Name, "error", err)
			continue
		}
		m.log.Info("Plugin disabled.", "name", inst.info.Name)
	}
}

// handlePluginPanic logs a panic recovered from a goroutine of a plugin and
// disables the plugin.
func (m *Manager) handlePluginPanic(name string, reason any, stack []byte) {
	m.log.Error("Plugin panic.", "plugin", name, "panic", reason, "stack", string(stack))
	go func() {
		if _, err := m.Disable(name); err != nil {
			if !errors.Is(err, ErrNotFound) {
				m.log.Error("Disable plugin after panic.", "plugin", name, "error", err)
			}
			return
		}
		m.log.Warn("Plugin disabled after panic.", "plugin", name)
	}()
}
