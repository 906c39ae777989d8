package protocol

import (
	"encoding/json"
	"fmt"
)

// CommandName identifies a control-plane to vehicle command.
type CommandName string

const (
	// CommandAwaitAssignment tells a vehicle it has no dispatched work.
	CommandAwaitAssignment CommandName = "awaitAssignment"
	// CommandAwaitAssignedTaskReload tells a vehicle a dispatched mission is open for it.
	CommandAwaitAssignedTaskReload CommandName = "awaitAssignedTaskReload"
	// CommandLoadMission carries the full mission duty.
	CommandLoadMission CommandName = "load_mission"
)

// Command is the payload published on vehicle/<vin>/commands.
type Command struct {
	VIN       string          `json:"vin"`
	Command   CommandName     `json:"command"`
	Params    json.RawMessage `json:"params,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewCommand builds a command stamped with the current time.
func NewCommand(vin string, name CommandName, params any) (*Command, error) {
	cmd := &Command{VIN: vin, Command: name, Timestamp: Now()}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", name, err)
		}
		cmd.Params = raw
	}
	return cmd, nil
}

// ParseCommand decodes a command payload.
func ParseCommand(payload []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Command == "" {
		return nil, fmt.Errorf("decode command: missing command name")
	}
	return &cmd, nil
}

// AssignmentStatus is the params object of the await* replies.
type AssignmentStatus struct {
	IsThereDispatchedTask bool     `json:"isThereDispatchedTask"`
	MissionCodes          []string `json:"missionCodes,omitempty"`
}

// Marshal returns the JSON encoding of the command.
func (c *Command) Marshal() ([]byte, error) {
	return json.Marshal(c)
}
