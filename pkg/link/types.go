// Package link carries actions and commands to the robot and telemetry
// back to the planner or monitor. Messages are protobuf encoded inside a
// typed envelope and travel over any packet transport.
package link

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}
