package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{"vision enable", CommandVisionEnable, false},
		{"vision disable", CommandVisionDisable, false},
		{"  VISION   Reset \r", CommandVisionReset, false},
		{"microslam transfer", CommandGridTransfer, false},
		{"vision", 0, true},
		{"vision reset now", 0, true},
		{"vision fly", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "vision reset", CommandVisionReset.String())
	assert.Equal(t, "command(42)", Command(42).String())
	assert.Equal(t, []string{"vision enable", "vision disable", "vision reset", "microslam transfer"}, KnownCommands())

	for _, text := range KnownCommands() {
		c, err := ParseCommand(text)
		require.NoError(t, err)
		assert.Equal(t, text, c.String())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want LineKind
	}{
		{`{"type":"attitude","yaw":1}`, LineVehicle},
		{`  {"type":"local_position"}`, LineVehicle},
		{"vision reset", LineCommand},
		{"microslam transfer", LineCommand},
		{"hello there", LineUnknown},
		{"", LineUnknown},
		{"   ", LineUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.line))
		})
	}
}
