package binmode

import (
	"fmt"

	"i2cprobe/core"
	"i2cprobe/protocol"
)

// Handler executes one opcode. It returns an error only before it has
// written anything to the link; the interpreter then replies failure.
type Handler func(op byte) error

// Command is the handler of one opcode family.
type Command struct {
	Family  byte
	Name    string
	Handler Handler
}

// Registry maps opcode families (the top nibble) to handlers.
type Registry struct {
	commands [16]*Command
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register installs h for family, replacing any previous handler.
func (r *Registry) Register(family byte, name string, h Handler) {
	r.commands[family&0x0F] = &Command{Family: family & 0x0F, Name: name, Handler: h}
}

// Lookup returns the command registered for op's family.
func (r *Registry) Lookup(op byte) (*Command, bool) {
	c := r.commands[protocol.Family(op)]
	return c, c != nil
}

// Dispatch runs the handler of op's family.
func (r *Registry) Dispatch(op byte) error {
	c, ok := r.Lookup(op)
	if !ok {
		return fmt.Errorf("%w: 0x%02X", core.ErrUnknownOpcode, op)
	}
	return c.Handler(op)
}
