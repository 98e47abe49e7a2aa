package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/rfid-gateway/internal/config"
)

// NewPool 创建 pgx 连接池并探活
func NewPool(ctx context.Context, dbCfg cfgpkg.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbCfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if logger != nil {
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   &pgxZapLogger{logger: logger.Named("pgx")},
			LogLevel: tracelog.LogLevelWarn,
		}
	}

	// 标签写入量小，默认池较小
	cfg.MaxConns = 10
	if dbCfg.MaxOpenConns > 0 {
		cfg.MaxConns = int32(dbCfg.MaxOpenConns)
	}
	cfg.MinConns = 1
	if dbCfg.MaxIdleConns > 0 {
		cfg.MinConns = min(int32(dbCfg.MaxIdleConns), cfg.MaxConns)
	}
	cfg.MaxConnLifetime = time.Hour
	if dbCfg.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = dbCfg.ConnMaxLifetime
	}
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ctxPing, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// pgxZapLogger 将 pgx tracelog 输出适配到 zap
type pgxZapLogger struct {
	logger *zap.Logger
}

func (l *pgxZapLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	fields := make([]zap.Field, 0, len(data))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}

	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		l.logger.Debug(msg, fields...)
	case tracelog.LogLevelInfo:
		l.logger.Info(msg, fields...)
	case tracelog.LogLevelWarn:
		l.logger.Warn(msg, fields...)
	case tracelog.LogLevelError:
		l.logger.Error(msg, fields...)
	default:
		l.logger.Info(msg, fields...)
	}
}
