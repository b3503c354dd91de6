package cmd

import (
	"strings"

	"github.com/dm-vev/synth/server/world"
)

// Runnable is the part of a Command that is run when the command is executed.
// It receives the arguments following the command name, split by whitespace.
// Runnables are run on the goroutine driving the engine passed, so they may
// use it directly.
type Runnable interface {
	Run(src Source, args []string, o *Output, e *world.Engine)
}

// Allower may be implemented by a Runnable to limit the Sources that may run
// it. Commands that are not allowed for a Source are treated as unknown.
type Allower interface {
	Allow(src Source) bool
}

// RunnableFunc is a function implementing Runnable.
type RunnableFunc func(src Source, args []string, o *Output, e *world.Engine)

// Run ...
func (f RunnableFunc) Run(src Source, args []string, o *Output, e *world.Engine) {
	f(src, args, o, e)
}

// Command is a command that may be executed by a Source through a Set.
type Command struct {
	name        string
	description string
	usage       string
	aliases     []string
	r           Runnable
}

// New returns a new Command using the name, description and usage passed. The
// usage describes the arguments accepted, for example "<type>". The aliases
// are alternative names the command may be executed with.
func New(name, description, usage string, aliases []string, r Runnable) Command {
	return Command{name: strings.ToLower(name), description: description, usage: usage, aliases: aliases, r: r}
}

// Name returns the name of the command.
func (c Command) Name() string {
	return c.name
}

// Description returns the description passed to New.
func (c Command) Description() string {
	return c.description
}

// Usage returns a line describing how the command is used.
func (c Command) Usage() string {
	if c.usage == "" {
		return "/" + c.name
	}
	return "/" + c.name + " " + c.usage
}

// Aliases returns the aliases of the command, including its name.
func (c Command) Aliases() []string {
	return append([]string{c.name}, c.aliases...)
}

// Allowed checks if the Source passed may execute the command.
func (c Command) Allowed(src Source) bool {
	if a, ok := c.r.(Allower); ok {
		return a.Allow(src)
	}
	return true
}

// Execute runs the command with the arguments passed on behalf of src and
// sends the output to it.
func (c Command) Execute(args []string, src Source, e *world.Engine) {
	o := &Output{}
	c.r.Run(src, args, o, e)
	src.SendCommandOutput(o)
}
