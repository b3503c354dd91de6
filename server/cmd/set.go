package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrAliasTaken is returned by Set.Register if one of the aliases of a command
// is already used by another command.
var ErrAliasTaken = errors.New("cmd: alias already registered")

// Set holds the commands that may be executed through ExecuteLine. A Set is
// safe for concurrent use.
type Set struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{commands: make(map[string]Command)}
}

// Register adds a command to the Set under its name and all of its aliases.
// Nothing is registered if one of the aliases is taken.
func (s *Set) Register(c Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	aliases := c.Aliases()
	for _, alias := range aliases {
		if _, ok := s.commands[strings.ToLower(alias)]; ok {
			return fmt.Errorf("%w: %v", ErrAliasTaken, alias)
		}
	}
	for _, alias := range aliases {
		s.commands[strings.ToLower(alias)] = c
	}
	return nil
}

// ByAlias looks up a command by one of its aliases. The lookup is not case
// sensitive.
func (s *Set) ByAlias(alias string) (Command, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commands[strings.ToLower(alias)]
	return c, ok
}

// Commands returns every command in the Set once, sorted by name.
func (s *Set) Commands() []Command {
	s.mu.RLock()
	defer s.mu.RUnlock()
	commands := make([]Command, 0, len(s.commands))
	for alias, c := range s.commands {
		if alias == c.name {
			commands = append(commands, c)
		}
	}
	slices.SortFunc(commands, func(a, b Command) int {
		return strings.Compare(a.name, b.name)
	})
	return commands
}

// Unregister removes the command with the name passed, together with all of
// its aliases. It returns false if no command had the name.
func (s *Set) Unregister(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commands[strings.ToLower(name)]
	if !ok || c.name != strings.ToLower(name) {
		return false
	}
	for _, alias := range c.Aliases() {
		if other, ok := s.commands[strings.ToLower(alias)]; ok && other.name == c.name {
			delete(s.commands, strings.ToLower(alias))
		}
	}
	return true
}
