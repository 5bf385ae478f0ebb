package core

import (
	"errors"
	"sync"
)

// ErrUnknownCommand is returned by Dispatch for an ID nothing claims, or
// for a response ID a remote peer has no business sending us.
var ErrUnknownCommand = errors.New("unknown command ID")

// CommandFunc handles one decoded command. It is responsible for decoding
// its own arguments from the frame data and advancing the pointer past
// everything it consumed.
type CommandFunc func(data *[]byte) error

// Command is one registry entry: the wire ID, the symbolic name and
// argument format the dictionary advertises, and the handler. Responses
// (device to host) register with a nil handler purely to claim an ID.
type Command struct {
	ID      uint16
	Name    string
	Format  string
	Handler CommandFunc
}

// CommandRegistry assigns wire IDs in registration order and dispatches
// decoded frames to handlers. IDs start at 0, so the bootstrap pair must
// register first: identify_response takes 0 and identify takes 1, which a
// host can rely on before it has fetched the dictionary.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	nameToID map[string]uint16
	nextID   uint16
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// Register adds a command and returns its assigned ID. Registering the
// same name again returns the original ID unchanged.
func (r *CommandRegistry) Register(name, format string, handler CommandFunc) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := r.nextID
	r.nextID++

	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id

	return id
}

// RegisterResponse claims an ID for a device-to-host message.
func (r *CommandRegistry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

// GetCommand retrieves a command by ID.
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a command by its symbolic name.
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered entries, responses included.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler registered for cmdID.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// CommandsAndResponses splits the registry for the dictionary. Keys are
// the advertised format strings ("name arg=%type ..."), values the wire
// IDs. Entries with handlers are host-to-device commands, nil-handler
// entries are responses.
func (r *CommandRegistry) CommandsAndResponses() (map[string]int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]int)
	responses := make(map[string]int)

	for i := uint16(0); i < r.nextID; i++ {
		cmd, ok := r.commands[i]
		if !ok {
			continue
		}

		formatStr := cmd.Name
		if cmd.Format != "" {
			formatStr = cmd.Name + " " + cmd.Format
		}

		if cmd.Handler != nil {
			commands[formatStr] = int(cmd.ID)
		} else {
			responses[formatStr] = int(cmd.ID)
		}
	}

	return commands, responses
}
