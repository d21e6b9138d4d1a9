package db

import (
	"fmt"
	"time"

	"bookstore/internal/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// DB_DRIVERに応じてpostgresかsqliteを開く
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gcfg := gormConfig(log)
	if cfg.Driver == "sqlite" {
		return openSQLite(cfg.SQLitePath, gcfg)
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), gcfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(max(cfg.MaxOpenConns/2, 1))
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return gdb, nil
}

// TranslateErrorで一意制約違反をgorm.ErrDuplicatedKeyにする。
// logがnilならGORMのログは捨てる
func gormConfig(log *zap.Logger) *gorm.Config {
	l := logger.Discard
	if log != nil {
		l = logger.New(zapWriter{log.Named("gorm").Sugar()}, logger.Config{
			SlowThreshold:             slowQuery,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}
	return &gorm.Config{TranslateError: true, Logger: l}
}

// GORMの出力はWarn以上しか来ない
type zapWriter struct {
	s *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...any) {
	w.s.Warnf(format, args...)
}
