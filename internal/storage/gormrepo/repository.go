package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/taoyao-code/rfid-gateway/internal/storage/models"
)

// 设置项名称
const (
	SettingPower   = "power"
	SettingChannel = "channel"
	SettingRegion  = "region"
)

// ErrNotFound 读写器尚无设置记录
var ErrNotFound = errors.New("reader settings not found")

// Open 复用 pgx 连接池创建 *gorm.DB
func Open(pool *pgxpool.Pool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

// Repository 读写器设置快照与变更记录。
// 使用 isTx 标记区分事务上下文，避免嵌套事务重复 Begin/Commit。
type Repository struct {
	db   *gorm.DB
	isTx bool
}

// New 返回使用给定 *gorm.DB 的仓库
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx 复用现有事务或开启新事务执行 fn
func (r *Repository) WithTx(ctx context.Context, fn func(*Repository) error) error {
	if r.isTx {
		return fn(r)
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	child := &Repository{db: tx, isTx: true}
	if err := fn(child); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// RecordPower 记录功率（0.01 dBm）
func (r *Repository) RecordPower(ctx context.Context, readerID string, power uint16) error {
	v := int32(power)
	return r.record(ctx, readerID, SettingPower, fmt.Sprintf("%d", power), &models.ReaderSettings{Power: &v}, "power")
}

// RecordChannel 记录信道索引
func (r *Repository) RecordChannel(ctx context.Context, readerID string, channel uint8) error {
	v := int16(channel)
	return r.record(ctx, readerID, SettingChannel, fmt.Sprintf("%d", channel), &models.ReaderSettings{Channel: &v}, "channel")
}

// RecordRegion 记录地区代码
func (r *Repository) RecordRegion(ctx context.Context, readerID string, region uint8) error {
	v := int16(region)
	return r.record(ctx, readerID, SettingRegion, fmt.Sprintf("%d", region), &models.ReaderSettings{Region: &v}, "region")
}

// record 在一个事务内 upsert 快照的单个字段并追加审计记录
func (r *Repository) record(ctx context.Context, readerID, setting, value string, snap *models.ReaderSettings, column string) error {
	snap.ReaderID = readerID
	snap.UpdatedAt = time.Now()
	return r.WithTx(ctx, func(tx *Repository) error {
		err := tx.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "reader_id"}},
				DoUpdates: clause.Assignments(map[string]any{
					column:       gorm.Expr("excluded." + column),
					"updated_at": gorm.Expr("excluded.updated_at"),
				}),
			}).
			Create(snap).Error
		if err != nil {
			return err
		}
		return tx.db.WithContext(ctx).Create(&models.ReaderSettingChange{
			ReaderID: readerID,
			Setting:  setting,
			Value:    value,
		}).Error
	})
}

// Get 读取读写器当前设置快照
func (r *Repository) Get(ctx context.Context, readerID string) (*models.ReaderSettings, error) {
	var s models.ReaderSettings
	err := r.db.WithContext(ctx).Where("reader_id = ?", readerID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// History 按时间倒序列出变更记录
func (r *Repository) History(ctx context.Context, readerID string, limit int) ([]models.ReaderSettingChange, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.ReaderSettingChange
	err := r.db.WithContext(ctx).
		Where("reader_id = ?", readerID).
		Order("changed_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
