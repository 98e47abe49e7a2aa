package models

import (
	"time"
)

// 与 internal/migrate/sql 下的建表脚本保持一致；不使用 gorm.Model

// ReaderSettings 映射 reader_settings 表：每个读写器最近一次确认的射频参数
type ReaderSettings struct {
	ReaderID  string    `gorm:"column:reader_id;type:text;primaryKey"`
	Power     *int32    `gorm:"column:power"`
	Channel   *int16    `gorm:"column:channel"`
	Region    *int16    `gorm:"column:region"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ReaderSettings) TableName() string { return "reader_settings" }

// ReaderSettingChange 映射 reader_setting_changes 表（审计记录）
type ReaderSettingChange struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ReaderID  string    `gorm:"column:reader_id;type:text;not null"`
	Setting   string    `gorm:"column:setting;type:text;not null"`
	Value     string    `gorm:"column:value;type:text;not null"`
	ChangedAt time.Time `gorm:"column:changed_at;autoCreateTime"`
}

func (ReaderSettingChange) TableName() string { return "reader_setting_changes" }
