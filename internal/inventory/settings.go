package inventory

import "context"

// SettingsRecorder 记录射频参数变更，由 gormrepo.Repository 实现
type SettingsRecorder interface {
	RecordPower(ctx context.Context, readerID string, power uint16) error
	RecordChannel(ctx context.Context, readerID string, channel uint8) error
	RecordRegion(ctx context.Context, readerID string, region uint8) error
}
