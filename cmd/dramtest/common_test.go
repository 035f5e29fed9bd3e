package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscrnt/project_dram/internal/config"
	"github.com/mscrnt/project_dram/pkg/dram"
)

func TestParseCell(t *testing.T) {
	tests := []struct {
		in      string
		want    config.Cell
		wantErr bool
	}{
		{in: "5,5,0", want: config.Cell{Row: 5, Col: 5}},
		{in: "0x1ff, 2, 1", want: config.Cell{Row: 511, Col: 2, Value: true}},
		{in: "5,5", wantErr: true},
		{in: "5,5,2", wantErr: true},
		{in: "a,5,0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCell(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(&socketFlags{clock: "250MHz", grade: "100ns", chip: "4164", stuck: []string{"1,2,1"}})
	require.NoError(t, err)

	assert.Equal(t, "250MHz", cfg.Clock)
	assert.Equal(t, "100ns", cfg.Grade)
	assert.Equal(t, "4164", cfg.Sim.Chip)
	assert.Equal(t, []config.Cell{{Row: 1, Col: 2, Value: true}}, cfg.Sim.Stuck)

	_, err = loadConfig(&socketFlags{grade: "10ns"})
	assert.Error(t, err)
}

func TestRigDetectsChip(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.Chip = "4164"
	r, err := newRig(cfg)
	require.NoError(t, err)

	require.NoError(t, r.ctrl.Init())
	kind, err := r.ctrl.ChipKind()
	require.NoError(t, err)
	assert.Equal(t, dram.Dram4164, kind)
	assert.Equal(t, uint32(0xFFFFFFFF), r.setup.Pattern)
	assert.Equal(t, "simulated 4164", r.setup.Socket)
}

func TestRigEmptySocket(t *testing.T) {
	cfg := config.Default()
	cfg.Sim.Chip = "none"
	r, err := newRig(cfg)
	require.NoError(t, err)

	require.NoError(t, r.ctrl.Init())
	kind, err := r.ctrl.ChipKind()
	require.NoError(t, err)
	assert.Equal(t, dram.Unknown, kind)
}
