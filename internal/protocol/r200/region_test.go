package r200

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPlan_Frequency(t *testing.T) {
	plan := DefaultChannelPlan()
	tests := []struct {
		region Region
		index  uint8
		want   float64
	}{
		{RegionChina900, 0, 920.125},
		{RegionChina900, 4, 921.125},
		{RegionChina800, 2, 840.625},
		{RegionUS, 10, 907.25},
		{RegionEU, 3, 865.7},
		{RegionKorea, 1, 917.3},
	}
	for _, tt := range tests {
		t.Run(tt.region.String(), func(t *testing.T) {
			got, err := plan.Frequency(tt.region, tt.index)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := plan.Frequency(RegionEU, 15)
	assert.Error(t, err)
	_, err = plan.Frequency(Region(0x09), 0)
	assert.Error(t, err)
}

func TestLoadChannelPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	content := "bands:\n  3:\n    baseMHz: 866.3\n    spacingMHz: 1.2\n    channels: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	plan, err := LoadChannelPlan(path)
	require.NoError(t, err)

	f, err := plan.Frequency(RegionEU, 1)
	require.NoError(t, err)
	assert.InDelta(t, 867.5, f, 1e-9)

	// 未覆盖的地区沿用默认值
	f, err = plan.Frequency(RegionUS, 0)
	require.NoError(t, err)
	assert.InDelta(t, 902.25, f, 1e-9)

	_, err = LoadChannelPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("eu")
	require.NoError(t, err)
	assert.Equal(t, RegionEU, r)

	_, err = ParseRegion("mars")
	assert.Error(t, err)
}

func TestPower(t *testing.T) {
	assert.Equal(t, Power(2650), PowerFromDBm(26.5))
	assert.Equal(t, Power(2360), PowerFromDBm(23.6))
	assert.Equal(t, Power(0), PowerFromDBm(-3))
	assert.Equal(t, Power(0), PowerFromDBm(math.NaN()))
	assert.Equal(t, Power(math.MaxUint16), PowerFromDBm(MaxPowerDBm))
	assert.Equal(t, Power(math.MaxUint16), PowerFromDBm(1000))
	assert.Equal(t, Power(math.MaxUint16), PowerFromDBm(math.Inf(1)))
	assert.InDelta(t, 20.0, Power(2000).DBm(), 1e-9)
	assert.Equal(t, "20.00dBm", Power(2000).String())
}
