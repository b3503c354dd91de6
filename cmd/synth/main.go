package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dm-vev/synth/server"
	"github.com/dm-vev/synth/server/cmd/builtin"
	"github.com/dm-vev/synth/server/console"
	"github.com/pelletier/go-toml"
)

func main() {
	conf, err := readConfig("config.toml")
	if err != nil {
		slog.Error("Read config.", "error", err)
		os.Exit(1)
	}
	level, err := server.ParseLevel(conf.Log.Level)
	if err != nil {
		slog.Error("Parse log level.", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, conf, log); err != nil {
		log.Error("Server stopped with error.", "error", err)
		os.Exit(1)
	}
}

// run builds the demo world and runs a Server over it until ctx is cancelled
// or the server is stopped through the console.
func run(ctx context.Context, uc server.UserConfig, log *slog.Logger) error {
	conf, err := uc.Config(log)
	if err != nil {
		return err
	}
	w := newDemoWorld(uc.Demo.Seed, uc.Demo.Entities, uc.Demo.ObserverRadius)
	conf.Host = w

	srv, err := conf.New()
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Error("Close server.", "error", err)
		}
	}()
	if _, err := srv.Plugins().EnableFactory("demo", demoFactory(w)); err != nil {
		return fmt.Errorf("enable demo plugin: %w", err)
	}
	srv.LoadPlugins()
	if err := builtin.Register(srv.Commands(), srv); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	if uc.Console.Enabled {
		go console.New(srv, log).Run(ctx)
	}
	return srv.Run(ctx)
}

// readConfig reads the configuration from the config.toml file, or creates the
// file if it does not yet exist.
func readConfig(path string) (server.UserConfig, error) {
	c := server.DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = toml.Marshal(c)
		if err != nil {
			return c, fmt.Errorf("encode default config: %v", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return c, fmt.Errorf("create default config: %v", err)
		}
		return c, nil
	} else if err != nil {
		return c, fmt.Errorf("read config: %v", err)
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("decode config: %v", err)
	}
	return c, nil
}
