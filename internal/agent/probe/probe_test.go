package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Probing must always yield a valid descriptor, GPU or not.
func TestProbeNeverFails(t *testing.T) {
	descriptor := Probe(context.Background(), nil)

	require.NoError(t, descriptor.Validate())
	assert.GreaterOrEqual(t, descriptor.CPUCores, 1)
	assert.Greater(t, descriptor.RAMGB, 0.0)
	if !descriptor.HasGPU {
		assert.Zero(t, descriptor.GPUMemoryMB)
	}
}

func TestCurrentLoadBounded(t *testing.T) {
	load := CurrentLoad()
	assert.GreaterOrEqual(t, load, 0.0)
	assert.LessOrEqual(t, load, 1.0)
}

func TestParseNvidiaSMI(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		wantMB   int
		wantType string
		wantOK   bool
	}{
		{
			name:     "single gpu",
			out:      "24576, NVIDIA GeForce RTX 4090\n",
			wantMB:   24576,
			wantType: "NVIDIA GeForce RTX 4090",
			wantOK:   true,
		},
		{
			name:     "multi gpu uses first line",
			out:      "81920, NVIDIA H100 80GB HBM3\n81920, NVIDIA H100 80GB HBM3\n",
			wantMB:   81920,
			wantType: "NVIDIA H100 80GB HBM3",
			wantOK:   true,
		},
		{
			name:   "empty output",
			out:    "",
			wantOK: false,
		},
		{
			name:   "garbage output",
			out:    "No devices were found\n",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb, gpuType, ok := parseNvidiaSMI(tt.out)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantMB, mb)
				assert.Equal(t, tt.wantType, gpuType)
			}
		})
	}
}
