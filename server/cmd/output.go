package cmd

import (
	"errors"
	"fmt"
)

const (
	// MessageUnknown is sent when a command could not be found.
	MessageUnknown = "Unknown command: %v. Please check that the command exists and that you have permission to use it."
	// MessageUsage is sent when a command was executed with invalid
	// arguments.
	MessageUsage = "Usage: %v"
	// MessageParameterInvalid is sent when an argument could not be parsed.
	MessageParameterInvalid = "Invalid parameter: %v"
)

// Source is the executor of a command.
type Source interface {
	// Name returns the name shown for the source in command output.
	Name() string
	// SendCommandOutput sends the output of a command to the source.
	SendCommandOutput(o *Output)
}

// Output holds the messages and errors produced by a command.
type Output struct {
	messages []string
	errors   []error
}

// Print formats the arguments using fmt.Sprint and adds the result as a
// message.
func (o *Output) Print(a ...any) {
	o.messages = append(o.messages, fmt.Sprint(a...))
}

// Printf formats the arguments using fmt.Sprintf and adds the result as a
// message.
func (o *Output) Printf(format string, a ...any) {
	o.messages = append(o.messages, fmt.Sprintf(format, a...))
}

// Error formats the arguments using fmt.Sprint and adds the result as an
// error.
func (o *Output) Error(a ...any) {
	o.errors = append(o.errors, errors.New(fmt.Sprint(a...)))
}

// Errorf formats the arguments using fmt.Errorf and adds the result as an
// error.
func (o *Output) Errorf(format string, a ...any) {
	o.errors = append(o.errors, fmt.Errorf(format, a...))
}

// Messages returns the messages added to the Output.
func (o *Output) Messages() []string {
	return o.messages
}

// Errors returns the errors added to the Output.
func (o *Output) Errors() []error {
	return o.errors
}

// MessageCount returns the amount of messages added to the Output.
func (o *Output) MessageCount() int {
	return len(o.messages)
}

// ErrorCount returns the amount of errors added to the Output.
func (o *Output) ErrorCount() int {
	return len(o.errors)
}
