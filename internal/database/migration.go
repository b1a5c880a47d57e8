package database

import (
	"fmt"

	"github.com/wfunc/obscura/internal/logger"
	"github.com/wfunc/obscura/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migrationModels 文档存储使用的表
func migrationModels() []interface{} {
	return []interface{}{
		&models.Document{},
		&models.Record{},
	}
}

// Migrate 迁移指定连接的表结构
//
// 文件型 SQLite 使用锁文件避免多个进程同时迁移。
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}

	if dbPath := sqliteFilePath(db); dbPath != "" {
		CleanupStaleLocks(dbPath)
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	for _, model := range migrationModels() {
		if err := db.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		logger.WithModule(logger.ModuleDatabase).Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	return nil
}

// AutoMigrate 迁移全局数据库
func AutoMigrate() error {
	return Migrate(DB)
}
