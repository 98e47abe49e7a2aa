package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/gorm"

	cfgpkg "github.com/taoyao-code/rfid-gateway/internal/config"
	"github.com/taoyao-code/rfid-gateway/internal/migrate"
	"github.com/taoyao-code/rfid-gateway/internal/storage/gormrepo"
	pgstorage "github.com/taoyao-code/rfid-gateway/internal/storage/pg"
)

// ConnectDBAndMigrate 建立数据库连接并按需执行内置迁移；未启用时返回 nil
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, error) {
	if !cfg.Enable {
		log.Info("database is disabled, observations will not be persisted")
		return nil, nil
	}
	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	if cfg.AutoMigrate {
		if err = (migrate.Runner{Logger: log}).Up(ctx, dbpool); err != nil {
			log.Error("db migrate error", zap.Error(err))
			dbpool.Close()
			return nil, err
		}
		log.Info("db migrations applied")
	}
	return dbpool, nil
}

// NewSettingsRepo 基于同一连接池打开 GORM，记录读写器参数变更
func NewSettingsRepo(pool *pgxpool.Pool) (*gormrepo.Repository, *gorm.DB, error) {
	db, err := gormrepo.Open(pool)
	if err != nil {
		return nil, nil, err
	}
	return gormrepo.New(db), db, nil
}
