package database

import (
	"fmt"
	"os"
	"time"

	"github.com/wfunc/obscura/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 迁移锁参数
const (
	lockAttempts = 30
	lockStaleAge = 5 * time.Minute
)

var lockRetryInterval = time.Second

// acquireMigrationLock 获取迁移锁
func acquireMigrationLock(dbPath string) (*os.File, error) {
	lockPath := dbPath + ".migration.lock"
	log := logger.WithModule(logger.ModuleDatabase)

	for i := 0; i < lockAttempts; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			log.Debug("获取迁移锁成功", zap.String("lock", lockPath))
			return lockFile, nil
		}

		// 锁文件过旧视为上次迁移异常退出
		if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > lockStaleAge {
			log.Warn("迁移锁文件过期，尝试删除", zap.String("lock", lockPath))
			os.Remove(lockPath)
			continue
		}

		log.Debug("等待迁移锁...", zap.Int("attempt", i+1))
		time.Sleep(lockRetryInterval)
	}

	return nil, fmt.Errorf("无法获取迁移锁，可能有其他进程正在执行迁移")
}

// releaseMigrationLock 释放迁移锁
func releaseMigrationLock(lockFile *os.File) {
	if lockFile == nil {
		return
	}

	lockPath := lockFile.Name()
	lockFile.Close()
	os.Remove(lockPath)
	logger.WithModule(logger.ModuleDatabase).Debug("释放迁移锁", zap.String("lock", lockPath))
}

// sqliteFilePath 文件型 SQLite 的数据库路径，其他情况返回空
func sqliteFilePath(db *gorm.DB) string {
	if db.Dialector.Name() != "sqlite" {
		return ""
	}
	sqlDB, err := db.DB()
	if err != nil {
		return ""
	}

	var seq int
	var name, file string
	if err := sqlDB.QueryRow("PRAGMA database_list").Scan(&seq, &name, &file); err != nil {
		return ""
	}
	return file
}

// CleanupStaleLocks 清理过期的锁文件
func CleanupStaleLocks(dbPath string) {
	lockPath := dbPath + ".migration.lock"
	if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > 2*lockStaleAge {
		logger.Info("清理过期锁文件", zap.String("file", lockPath))
		os.Remove(lockPath)
	}
}
