package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/mouse.go/pkg/model"
	"github.com/robotalks/mouse.go/pkg/sim"
	"github.com/robotalks/mouse.go/pkg/wall"
)

func TestNewDetectorCalibration(t *testing.T) {
	m := model.Default()
	world := sim.NewWorld(sim.DefaultConfig(), m, nil, sim.StartPose(m))
	conf := wall.DefaultConfig()
	conf.BackupPath = filepath.Join(t.TempDir(), "WallDetector.bin")

	_, err := newDetector(&conf, world, false)
	assert.ErrorIs(t, err, wall.ErrCalibrationMissing)

	d, err := newDetector(&conf, world, true)
	require.NoError(t, err)
	assert.Equal(t, world.Baseline(), d.Baseline())

	require.NoError(t, wall.SaveBaseline(conf.BackupPath, wall.Value{1, 2, 3, 4}))
	d, err = newDetector(&conf, world, false)
	require.NoError(t, err)
	assert.Equal(t, wall.Value{1, 2, 3, 4}, d.Baseline())
}
