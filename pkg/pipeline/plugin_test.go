package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockDetector_AlwaysDetects(t *testing.T) {
	m := &MockDetector{}
	require.NoError(t, m.Initialise(nil))

	dets, err := m.Process(Frame{SequenceNum: 1, CapturedAt: time.Now()})
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "object", dets[0].Label)
}

func TestMotionDetector_NoMotionOnIdenticalFrames(t *testing.T) {
	m := &MotionDetector{}
	require.NoError(t, m.Initialise(nil))

	frame := Frame{PixelData: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	_, err := m.Process(frame)
	require.NoError(t, err)

	dets, err := m.Process(frame)
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestMotionDetector_DetectsLargeChange(t *testing.T) {
	m := &MotionDetector{}
	require.NoError(t, m.Initialise(nil))

	_, err := m.Process(Frame{PixelData: []byte{0, 0, 0, 0, 0, 0, 0, 0}})
	require.NoError(t, err)

	dets, err := m.Process(Frame{PixelData: []byte{255, 255, 255, 255, 255, 255, 255, 255}})
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "motion", dets[0].Label)
}

func TestPluginRegistry_DefaultHasKnownPlugins(t *testing.T) {
	reg := NewDefaultPluginRegistry()
	assert.True(t, reg.Has("mock"))
	assert.True(t, reg.Has("motion"))
	assert.False(t, reg.Has("nonexistent"))

	_, err := reg.New("nonexistent")
	assert.Error(t, err)
}
