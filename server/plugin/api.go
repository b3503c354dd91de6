package plugin

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dm-vev/synth/server/block"
	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/internal/guard"
	"github.com/dm-vev/synth/server/world"
)

// API is handed to the Factory of a plugin and gives it access to the server.
// Behaviours, handlers and commands registered through an API are removed when
// its plugin is disabled.
type API struct {
	manager *Manager
	host    Host
	name    atomic.Pointer[string]
	dataDir atomic.Pointer[string]
	ctx     context.Context

	mu       sync.Mutex
	cleanups []func()
}

func newAPI(manager *Manager, host Host, name string) *API {
	api := &API{manager: manager, host: host, ctx: context.Background()}
	api.setName(name)
	return api
}

func (api *API) setName(name string) {
	if name != "" {
		api.name.Store(&name)
	}
}

func (api *API) pluginName() string {
	if name := api.name.Load(); name != nil {
		return *name
	}
	return "plugin"
}

// setContext sets the context of the API. It must be called before the API is
// handed to a Factory.
func (api *API) setContext(ctx context.Context) {
	api.ctx = ctx
}

// Context returns a context that is cancelled when the plugin is disabled.
func (api *API) Context() context.Context {
	return api.ctx
}

func (api *API) setDataDirectory(dir string) {
	dir = filepath.Clean(dir)
	api.dataDir.Store(&dir)
}

// DataDirectory returns the directory the plugin may store its data in. The
// directory is named after the plugin.
func (api *API) DataDirectory() string {
	if dir := api.dataDir.Load(); dir != nil {
		return *dir
	}
	return api.manager.pluginDataDirectory(api.pluginName())
}

// dataPath resolves a relative path inside the data directory. Paths leaving
// the data directory are refused.
func (api *API) dataPath(name string) (string, error) {
	switch {
	case name == "":
		return "", errors.New("data path is empty")
	case filepath.IsAbs(name):
		return "", fmt.Errorf("data path %s must be relative", name)
	}
	base := api.DataDirectory()
	path := filepath.Join(base, name)
	if rel, err := filepath.Rel(base, path); err != nil || escapes(rel) {
		return "", fmt.Errorf("data path %s leaves the data directory", name)
	}
	return path, nil
}

// EnsureDataSubdir creates a directory inside the data directory and returns
// its path. An empty name creates the data directory itself.
func (api *API) EnsureDataSubdir(name string) (string, error) {
	path := api.DataDirectory()
	if name != "" {
		var err error
		if path, err = api.dataPath(name); err != nil {
			return "", err
		}
	}
	return path, os.MkdirAll(path, 0o755)
}

// OpenDataFile opens a file inside the data directory like os.OpenFile,
// creating its parent directories. A perm of 0 is replaced with 0644.
func (api *API) OpenDataFile(name string, flag int, perm fs.FileMode) (*os.File, error) {
	path, err := api.dataPath(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, flag, cmp.Or(perm, 0o644))
}

// Go runs fn on a new goroutine with the Context of the API. A panic in fn
// disables the plugin.
func (api *API) Go(fn func(context.Context)) {
	if fn == nil {
		return
	}
	ctx, name := api.Context(), api.pluginName()
	go guard.Run(func() { fn(ctx) }, func(reason any, stack []byte) {
		api.manager.handlePluginPanic(name, reason, stack)
	})
}

// Logger returns a logger scoped to the plugin's name for structured logging.
func (api *API) Logger() *slog.Logger {
	return api.manager.log.With("plugin", api.pluginName())
}

// StartTime reports when the server started running.
func (api *API) StartTime() time.Time {
	return api.host.StartTime()
}

// Engine returns the engine of the server. Its methods other than Exec and
// the subscription methods of its Events must only be used from code run by
// the engine, such as handlers, behaviours and functions passed to Exec.
func (api *API) Engine() *world.Engine {
	return api.host.Engine()
}

// Registry returns the block behaviour registry of the server.
func (api *API) Registry() *block.Registry {
	return api.host.Registry()
}

// Exec runs f on the goroutine driving the engine. See world.Engine.Exec.
func (api *API) Exec(f world.ExecFunc) <-chan struct{} {
	return api.host.Engine().Exec(f)
}

// RegisterBehaviour registers a behaviour for the block with the name passed.
// See block.Registry.Register.
func (api *API) RegisterBehaviour(name string, b any) error {
	r := api.host.Registry()
	if err := r.Register(name, b); err != nil {
		return err
	}
	api.addCleanup(func() { r.Unregister(name) })
	return nil
}

// Handle attaches h to the events of the engine. The returned function
// detaches it again before the plugin is disabled.
func (api *API) Handle(h world.Handler) (detach func()) {
	detach = api.host.Engine().Handle(h)
	api.addCleanup(detach)
	return detach
}

// RegisterCommand registers a command that may be executed by operators.
func (api *API) RegisterCommand(command cmd.Command) error {
	set := api.host.Commands()
	if err := set.Register(command); err != nil {
		return err
	}
	api.addCleanup(func() { set.Unregister(command.Name()) })
	return nil
}

// Plugins returns metadata for all loaded plugins.
func (api *API) Plugins() []Info {
	return api.manager.Infos()
}

func (api *API) addCleanup(f func()) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.cleanups = append(api.cleanups, f)
}

// release undoes every registration made through the API, most recent first.
func (api *API) release() {
	api.mu.Lock()
	cleanups := api.cleanups
	api.cleanups = nil
	api.mu.Unlock()
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
