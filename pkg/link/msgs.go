package link

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"
)

// TypeID masks
const (
	TypeIDMaskKind  uint32 = 0x80000000
	TypeIDMaskGroup uint32 = 0x7fff0000
	TypeIDMaskID    uint32 = 0x0000ffff
	TypeIDMaskReply uint32 = 0x00008000
)

// Message kinds
const (
	TypeIDKindCommand uint32 = 0x00000000
	TypeIDKindEvent   uint32 = 0x80000000
)

// TypeID groups
const (
	GroupCommand uint32 = 0x00000000
	GroupNav     uint32 = 0x00010000
)

// TypeIDs
const (
	CommandResultTypeID uint32 = GroupCommand | TypeIDMaskReply | 0x0000
	CommandTypeID       uint32 = GroupCommand | 0x0001
	EventTypeID         uint32 = TypeIDKindEvent | GroupCommand | 0x0001
	ActionBatchTypeID   uint32 = GroupNav | 0x0001
	FastPathTypeID      uint32 = GroupNav | 0x0002
	TelemetryTypeID     uint32 = TypeIDKindEvent | GroupNav | 0x0001
)

// Command ops.
const (
	OpEnable         = "enable"
	OpDisable        = "disable"
	OpReset          = "reset"
	OpCalibrateSide  = "calibrate-side"
	OpCalibrateFront = "calibrate-front"
	OpBackup         = "backup"
)

var (
	// ErrUnknownMessageType indicates the type id is not registered.
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrUnsupportedCommand indicates the robot can't execute the command.
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// Message is a message which can be sent over the link.
type Message interface {
	proto.Message
	TypeID() uint32
}

var messageTypes = map[uint32]func() Message{
	CommandResultTypeID: func() Message { return &CommandResult{} },
	CommandTypeID:       func() Message { return &Command{} },
	EventTypeID:         func() Message { return &Event{} },
	ActionBatchTypeID:   func() Message { return &ActionBatch{} },
	FastPathTypeID:      func() Message { return &FastPath{} },
	TelemetryTypeID:     func() Message { return &Telemetry{} },
}

// Envelope wraps an encoded message with its type and the sequence
// number which pairs a command with its result.
type Envelope struct {
	TypeId  uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Seq     uint32 `protobuf:"varint,2,opt,name=seq,proto3" json:"seq,omitempty"`
	Message []byte `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Envelope) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Envelope) Reset() { *m = Envelope{} }

// String implements proto.Message.
func (m *Envelope) String() string { return proto.CompactTextString(m) }

// Wrap encodes msg into an Envelope.
func Wrap(msg Message, seq uint32) (*Envelope, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &Envelope{TypeId: msg.TypeID(), Seq: seq, Message: data}, nil
}

// Open decodes the wrapped message.
func (m *Envelope) Open() (Message, error) {
	create, ok := messageTypes[m.TypeId]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrUnknownMessageType, m.TypeId)
	}
	msg := create()
	if err := proto.Unmarshal(m.Message, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode encodes the envelope into a packet.
func (m *Envelope) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// IsCommand determines if the message is a command or a command result.
func (m *Envelope) IsCommand() bool {
	return m.TypeId&TypeIDMaskKind == TypeIDKindCommand
}

// IsEvent determines if the message is an event.
func (m *Envelope) IsEvent() bool {
	return m.TypeId&TypeIDMaskKind == TypeIDKindEvent
}

// IsReply determines if the message replies a command.
func (m *Envelope) IsReply() bool {
	return m.IsCommand() && m.TypeId&TypeIDMaskReply != 0
}

// DecodeEnvelope decodes a packet into an Envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := proto.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ActionBatch appends search actions, e.g. ST_FULL, to the queue.
type ActionBatch struct {
	Actions []string `protobuf:"bytes,1,rep,name=actions,proto3" json:"actions,omitempty"`
}

// TypeID implements Message.
func (m *ActionBatch) TypeID() uint32 { return ActionBatchTypeID }

// ProtoMessage implements proto.Message.
func (m *ActionBatch) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ActionBatch) Reset() { *m = ActionBatch{} }

// String implements proto.Message.
func (m *ActionBatch) String() string { return proto.CompactTextString(m) }

// FastPath sets the search path of the next fast run.
type FastPath struct {
	Actions []string `protobuf:"bytes,1,rep,name=actions,proto3" json:"actions,omitempty"`
}

// TypeID implements Message.
func (m *FastPath) TypeID() uint32 { return FastPathTypeID }

// ProtoMessage implements proto.Message.
func (m *FastPath) ProtoMessage() {}

// Reset implements proto.Message.
func (m *FastPath) Reset() { *m = FastPath{} }

// String implements proto.Message.
func (m *FastPath) String() string { return proto.CompactTextString(m) }

// Command is a sequencer or calibration command, see the Op constants.
type Command struct {
	Op string `protobuf:"bytes,1,opt,name=op,proto3" json:"op,omitempty"`
}

// TypeID implements Message.
func (m *Command) TypeID() uint32 { return CommandTypeID }

// ProtoMessage implements proto.Message.
func (m *Command) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Command) Reset() { *m = Command{} }

// String implements proto.Message.
func (m *Command) String() string { return proto.CompactTextString(m) }

// CommandResult replies every command. Error is empty on success.
type CommandResult struct {
	Op    string `protobuf:"bytes,1,opt,name=op,proto3" json:"op,omitempty"`
	Error string `protobuf:"bytes,2,opt,name=error,proto3" json:"error,omitempty"`
}

// NewCommandResult creates the result of op.
func NewCommandResult(op string, err error) *CommandResult {
	r := &CommandResult{Op: op}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// TypeID implements Message.
func (m *CommandResult) TypeID() uint32 { return CommandResultTypeID }

// ProtoMessage implements proto.Message.
func (m *CommandResult) ProtoMessage() {}

// Reset implements proto.Message.
func (m *CommandResult) Reset() { *m = CommandResult{} }

// String implements proto.Message.
func (m *CommandResult) String() string { return proto.CompactTextString(m) }

// Err converts a failed result into a CommandError.
func (m *CommandResult) Err() error {
	if m.Error == "" {
		return nil
	}
	return &CommandError{Op: m.Op, Message: m.Error}
}

// Telemetry is the periodic state report. X, Y and Th are the pose in
// the frame of the current maneuver, the offset is that frame in the
// maze.
type Telemetry struct {
	State    string  `protobuf:"bytes,1,opt,name=state,proto3" json:"state,omitempty"`
	Tick     uint64  `protobuf:"varint,2,opt,name=tick,proto3" json:"tick,omitempty"`
	X        float64 `protobuf:"fixed64,3,opt,name=x,proto3" json:"x,omitempty"`
	Y        float64 `protobuf:"fixed64,4,opt,name=y,proto3" json:"y,omitempty"`
	Th       float64 `protobuf:"fixed64,5,opt,name=th,proto3" json:"th,omitempty"`
	OffsetX  float64 `protobuf:"fixed64,6,opt,name=offset_x,json=offsetX,proto3" json:"offset_x,omitempty"`
	OffsetY  float64 `protobuf:"fixed64,7,opt,name=offset_y,json=offsetY,proto3" json:"offset_y,omitempty"`
	OffsetTh float64 `protobuf:"fixed64,8,opt,name=offset_th,json=offsetTh,proto3" json:"offset_th,omitempty"`
	V        float64 `protobuf:"fixed64,9,opt,name=v,proto3" json:"v,omitempty"`
	W        float64 `protobuf:"fixed64,10,opt,name=w,proto3" json:"w,omitempty"`
}

// TypeID implements Message.
func (m *Telemetry) TypeID() uint32 { return TelemetryTypeID }

// ProtoMessage implements proto.Message.
func (m *Telemetry) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Telemetry) Reset() { *m = Telemetry{} }

// String implements proto.Message.
func (m *Telemetry) String() string { return proto.CompactTextString(m) }

// Event forwards an indicator event.
type Event struct {
	Kind    string `protobuf:"bytes,1,opt,name=kind,proto3" json:"kind,omitempty"`
	Message string `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

// TypeID implements Message.
func (m *Event) TypeID() uint32 { return EventTypeID }

// ProtoMessage implements proto.Message.
func (m *Event) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Event) Reset() { *m = Event{} }

// String implements proto.Message.
func (m *Event) String() string { return proto.CompactTextString(m) }

// CommandError is a command failure reported by the robot.
type CommandError struct {
	Op      string
	Message string
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}
