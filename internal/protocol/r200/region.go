package r200

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Region 工作地区
type Region byte

const (
	RegionChina900 Region = 0x00
	RegionChina800 Region = 0x01
	RegionUS       Region = 0x02
	RegionEU       Region = 0x03
	RegionKorea    Region = 0x04
)

var regionNames = map[Region]string{
	RegionChina900: "china900",
	RegionChina800: "china800",
	RegionUS:       "us",
	RegionEU:       "eu",
	RegionKorea:    "korea",
}

func (r Region) String() string {
	if n, ok := regionNames[r]; ok {
		return n
	}
	return fmt.Sprintf("region(0x%02X)", byte(r))
}

// ParseRegion 按名称解析地区
func ParseRegion(name string) (Region, error) {
	for r, n := range regionNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown region %q", name)
}

// Band 地区信道参数：频率 = BaseMHz + index*SpacingMHz
type Band struct {
	BaseMHz    float64 `yaml:"baseMHz" json:"base_mhz"`
	SpacingMHz float64 `yaml:"spacingMHz" json:"spacing_mhz"`
	Channels   int     `yaml:"channels" json:"channels"`
}

// ChannelPlan 地区 -> 信道参数
type ChannelPlan struct {
	Bands map[Region]Band `yaml:"bands"`
}

// DefaultChannelPlan 模块手册给出的默认信道参数
func DefaultChannelPlan() *ChannelPlan {
	return &ChannelPlan{
		Bands: map[Region]Band{
			RegionChina900: {BaseMHz: 920.125, SpacingMHz: 0.25, Channels: 20},
			RegionChina800: {BaseMHz: 840.125, SpacingMHz: 0.25, Channels: 20},
			RegionUS:       {BaseMHz: 902.25, SpacingMHz: 0.5, Channels: 52},
			RegionEU:       {BaseMHz: 865.1, SpacingMHz: 0.2, Channels: 15},
			RegionKorea:    {BaseMHz: 917.1, SpacingMHz: 0.2, Channels: 32},
		},
	}
}

// LoadChannelPlan 从 YAML 加载信道参数，未覆盖的地区沿用默认值
func LoadChannelPlan(path string) (*ChannelPlan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channel plan: %w", err)
	}
	var override ChannelPlan
	if err := yaml.Unmarshal(b, &override); err != nil {
		return nil, fmt.Errorf("unmarshal channel plan: %w", err)
	}
	plan := DefaultChannelPlan()
	for r, band := range override.Bands {
		plan.Bands[r] = band
	}
	return plan, nil
}

// Frequency 信道索引换算为中心频率（MHz）
func (p *ChannelPlan) Frequency(r Region, index uint8) (float64, error) {
	if p == nil {
		p = DefaultChannelPlan()
	}
	band, ok := p.Bands[r]
	if !ok {
		return 0, fmt.Errorf("no channel plan for %s", r)
	}
	if band.Channels > 0 && int(index) >= band.Channels {
		return 0, fmt.Errorf("channel %d out of range for %s (%d channels)", index, r, band.Channels)
	}
	return band.BaseMHz + float64(index)*band.SpacingMHz, nil
}
