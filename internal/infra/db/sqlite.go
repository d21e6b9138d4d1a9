package db

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ローカル開発・テスト用
func OpenSQLite(path string) (*gorm.DB, error) {
	return openSQLite(path, gormConfig(nil))
}

// ":memory:" は接続ごとに別DBになるので接続は1本
func openSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}
