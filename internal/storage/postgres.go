package storage

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/koinonia-app/QueueChat/config"
	"github.com/koinonia-app/QueueChat/internal/models"
)

// InitPostgres 初始化 PostgreSQL 连接并迁移模型
func InitPostgres(cfg *config.PostgresConfig) (*gorm.DB, error) {
	dsn := BuildDSN(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	err = db.AutoMigrate(
		&models.Queue{},
		&models.Membership{},
		&models.Chat{},
		&models.Message{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate models: %w", err)
	}
	return db, nil
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(host, port, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
}
