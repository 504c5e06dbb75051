package sh

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robotalks/mouse.go/pkg/link"
	"github.com/robotalks/mouse.go/pkg/link/env"
)

func TestFormatMessage(t *testing.T) {
	out := FormatMessage(&link.Event{Kind: "collision", Message: "front"})
	assert.Contains(t, out, "[Event]")
	assert.Contains(t, out, "collision")
}

func TestConnectFails(t *testing.T) {
	s := &Shell{Config: &env.Config{URL: "bogus://nowhere"}}
	assert.ErrorIs(t, s.Connect("robot"), env.ErrUnsupportedScheme)
	assert.Nil(t, s.Conn)
	s.Disconnect()
}

func TestOpCmd(t *testing.T) {
	cmd := opCmd(link.OpCalibrateSide)
	assert.Equal(t, "calibrate-side", cmd.Name)
	assert.NotNil(t, cmd.Func)
}
