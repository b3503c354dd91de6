package console

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
)

// Executor holds the commands run by a Console and the engine they run on. It
// is implemented by *server.Server.
type Executor interface {
	Commands() *cmd.Set
	Engine() *world.Engine
}

// Console reads command lines from an io.Reader, os.Stdin by default, and
// runs them on the engine of an Executor as the "Console" source. Output of
// the commands is written to a logger.
type Console struct {
	srv    Executor
	log    *slog.Logger
	reader io.Reader
}

// New returns a Console reading from os.Stdin. A nil logger is replaced with
// slog.Default().
func New(srv Executor, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{srv: srv, log: log, reader: os.Stdin}
}

// WithReader makes the Console read from r instead of os.Stdin.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run reads and executes commands until ctx is cancelled or the reader is
// exhausted. Lines without a leading slash get one added. Every command is
// run through world.Engine.Exec and Run waits for it to complete before
// reading the next line, so the engine must be running for Run to make
// progress.
func (c *Console) Run(ctx context.Context) {
	lines := make(chan string)
	go c.read(ctx, lines)

	src := &consoleSource{log: c.log}
	for {
		var line string
		select {
		case <-ctx.Done():
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = l
		}
		if !strings.HasPrefix(line, "/") {
			line = "/" + line
		}
		set := c.srv.Commands()
		done, err := c.srv.Engine().ExecContext(ctx, func(e *world.Engine) { cmd.ExecuteLine(set, src, line, e) })
		if err != nil {
			return
		}
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

// read sends every non-empty line read to lines and closes it once the reader
// is exhausted.
func (c *Console) read(ctx context.Context, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(c.reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.log.Error("Read console input.", "error", err)
	}
}

// consoleSource logs command output. Its name grants access to commands only
// allowed on the console.
type consoleSource struct {
	log *slog.Logger
}

func (*consoleSource) Name() string { return "Console" }

func (c *consoleSource) SendCommandOutput(o *cmd.Output) {
	for _, msg := range o.Messages() {
		c.log.Info(msg)
	}
	for _, err := range o.Errors() {
		c.log.Error(err.Error())
	}
}
