// Package database 管理与用户目标 MySQL 数据库以及 Redis 的连接。
package database

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"homesync-go/internal/model"
	"homesync-go/pkg/log"
)

// PoolConfig 控制每个会话连接的连接池大小与 schema 采样行数。
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SampleRows      int
}

var reDSNPassword = regexp.MustCompile(`^([^:@/]*):(.*)@(tcp|unix)\(`)

// BuildDSN 将连接参数拼装为 go-sql-driver 格式的 DSN。
func BuildDSN(params model.ConnectionParams) string {
	cfg := gomysql.NewConfig()
	cfg.User = params.User
	cfg.Passwd = params.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(params.Host, params.Port)
	cfg.DBName = params.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// MaskDSN 隐藏 DSN 中的密码，仅用于日志。
func MaskDSN(dsn string) string {
	return reDSNPassword.ReplaceAllString(dsn, "$1:***@$3(")
}

// OpenMySQL 根据连接参数打开一个新的 MySQL 连接并完成 ping。
func OpenMySQL(ctx context.Context, params model.ConnectionParams, pool PoolConfig) (*Conn, error) {
	dsn := BuildDSN(params)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database %s: %w", MaskDSN(dsn), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", MaskDSN(dsn), err)
	}

	log.Infof("MySQL database connected: %s", MaskDSN(dsn))
	return NewConn(db, pool.SampleRows), nil
}
