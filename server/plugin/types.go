package plugin

import "errors"

// Plugin is an extension that registers block behaviours, event handlers and
// commands through its API.
type Plugin interface {
	// Name returns the display name of the plugin. It should be unique for the
	// lifetime of the server process.
	Name() string
	// Close releases all resources held by the plugin. It is called once when
	// the server shuts down or when the plugin is disabled. Behaviours,
	// handlers and commands registered through the API are removed after
	// Close returns.
	Close() error
}

// VersionedPlugin may be implemented by plugins to expose a version string.
type VersionedPlugin interface {
	Version() string
}

// Factory is the constructor of a Plugin. Shared objects loaded by a Manager
// export it under one of the names InitPlugin, Init, NewPlugin or New. The
// returned Plugin is enabled immediately and must be ready to handle events.
type Factory func(api *API) (Plugin, error)

// Info describes a plugin currently loaded by the manager.
type Info struct {
	Name    string
	Version string
	// Path is the shared object the plugin was loaded from. It is empty for
	// plugins enabled through Manager.EnableFactory.
	Path string
}

// Config controls the behaviour of the plugin loader.
type Config struct {
	// Enabled specifies if shared object plugins are discovered and may be
	// enabled. Plugins enabled through Manager.EnableFactory are always
	// allowed.
	Enabled bool
	// Directory is the base directory searched for shared objects and used to
	// resolve relative paths in Files. If empty, "plugins" is used.
	Directory string
	// DataDirectory is where the data folders of plugins are created. If
	// empty, a "data" directory inside Directory is used. Relative paths are
	// resolved against Directory.
	DataDirectory string
	// Autoload controls whether every .so file in Directory is enabled by
	// LoadConfigured.
	Autoload bool
	// Files lists additional shared objects enabled by LoadConfigured.
	Files []string
}

var (
	// ErrDisabled is returned when loading shared objects is disabled.
	ErrDisabled = errors.New("plugin subsystem disabled")
	// ErrAlreadyLoaded is returned when attempting to enable a plugin that has
	// already been loaded.
	ErrAlreadyLoaded = errors.New("plugin already loaded")
	// ErrNameConflict is returned when another loaded plugin already uses the
	// same case-insensitive name.
	ErrNameConflict = errors.New("plugin name already registered")
	// ErrNotFound is returned when attempting to disable or reload a plugin that
	// is not currently loaded.
	ErrNotFound = errors.New("plugin not found")
	// ErrNotReloadable is returned when reloading a plugin that was not
	// loaded from a shared object.
	ErrNotReloadable = errors.New("plugin was not loaded from a file")
)
