package cmd

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/dm-vev/synth/server/world"
)

type testSource struct {
	name   string
	output []*Output
}

func (s *testSource) Name() string { return s.name }

func (s *testSource) SendCommandOutput(o *Output) { s.output = append(s.output, o) }

type echo struct{}

func (echo) Run(src Source, args []string, o *Output, _ *world.Engine) {
	o.Printf("%v: %v", src.Name(), strings.Join(args, ","))
}

type consoleOnly struct{ echo }

func (consoleOnly) Allow(src Source) bool { return src.Name() == "Console" }

func TestExecuteLine(t *testing.T) {
	set := NewSet()
	if err := set.Register(New("echo", "Echoes arguments.", "[args...]", []string{"e"}, echo{})); err != nil {
		t.Fatalf("register: %v", err)
	}
	src := &testSource{name: "Tester"}

	ExecuteLine(set, src, "  /ECHO a   b ", nil)
	ExecuteLine(set, src, "/e", nil)
	if len(src.output) != 2 {
		t.Fatalf("expected two outputs, got %v", len(src.output))
	}
	if got := src.output[0].Messages(); !slices.Equal(got, []string{"Tester: a,b"}) {
		t.Fatalf("unexpected messages %v", got)
	}
	if got := src.output[1].Messages(); !slices.Equal(got, []string{"Tester: "}) {
		t.Fatalf("unexpected messages %v", got)
	}

	ExecuteLine(set, src, "echo without slash", nil)
	ExecuteLine(set, src, "   ", nil)
	if len(src.output) != 2 {
		t.Fatalf("expected lines without a slash to be ignored")
	}

	ExecuteLine(set, src, "/missing", nil)
	if len(src.output) != 3 || src.output[2].ErrorCount() != 1 || !strings.Contains(src.output[2].Errors()[0].Error(), "missing") {
		t.Fatalf("expected an unknown command error")
	}
}

func TestExecuteLineNotAllowed(t *testing.T) {
	set := NewSet()
	if err := set.Register(New("stop", "", "", nil, consoleOnly{})); err != nil {
		t.Fatalf("register: %v", err)
	}
	player := &testSource{name: "Steve"}
	ExecuteLine(set, player, "/stop", nil)
	if len(player.output) != 1 || player.output[0].ErrorCount() != 1 {
		t.Fatalf("expected command to be unknown to a disallowed source")
	}
	console := &testSource{name: "Console"}
	ExecuteLine(set, console, "/stop", nil)
	if len(console.output) != 1 || console.output[0].MessageCount() != 1 {
		t.Fatalf("expected command to run for the console")
	}
}

func TestSetRegister(t *testing.T) {
	set := NewSet()
	if err := set.Register(New("Help", "", "", []string{"?"}, echo{})); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := set.Register(New("query", "", "", []string{"?"}, echo{})); !errors.Is(err, ErrAliasTaken) {
		t.Fatalf("expected ErrAliasTaken, got %v", err)
	}
	if _, ok := set.ByAlias("query"); ok {
		t.Fatalf("expected nothing to be registered on conflict")
	}
	if err := set.Register(New("about", "", "<x>", nil, echo{})); err != nil {
		t.Fatalf("register: %v", err)
	}
	var names []string
	for _, c := range set.Commands() {
		names = append(names, c.Name())
	}
	if !slices.Equal(names, []string{"about", "help"}) {
		t.Fatalf("unexpected commands %v", names)
	}
	if c, _ := set.ByAlias("about"); c.Usage() != "/about <x>" {
		t.Fatalf("unexpected usage %q", c.Usage())
	}

	if set.Unregister("?") {
		t.Fatalf("expected an alias not to unregister a command")
	}
	if !set.Unregister("help") {
		t.Fatalf("expected help to be unregistered")
	}
	if _, ok := set.ByAlias("?"); ok {
		t.Fatalf("expected aliases to be removed with the command")
	}
	if err := set.Register(New("query", "", "", []string{"?"}, echo{})); err != nil {
		t.Fatalf("expected alias to be free again, got %v", err)
	}
}
