package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Chronicle/internal/shared/logs"
	"Chronicle/internal/shared/serverconfig"
	"Chronicle/modules/kit/logx"
)

const (
	slowQuery   = 200 * time.Millisecond
	maxLifetime = 30 * time.Minute
)

var ErrNoDatabase = errors.New("mysql dbname is empty")

// DSN builds the go-sql-driver DSN for cfg. Times are read back as UTC.
func DSN(cfg serverconfig.MySQLConfig) string {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, host, port, cfg.DBName)
}

// Open connects gorm to MySQL, sizes the pool and pings before returning.
// close releases the pool.
func Open(ctx context.Context, cfg serverconfig.MySQLConfig, l logx.Logger) (gdb *gorm.DB, closeFn func(), err error) {
	if cfg.DBName == "" {
		return nil, nil, ErrNoDatabase
	}
	if l == nil {
		l = logx.Nop()
	}
	gdb, err = gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{
		Logger: logs.NewGormLogger(logger.Warn, slowQuery),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, err
	}
	if cfg.MaxConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}
	sqlDB.SetConnMaxLifetime(maxLifetime)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("ping mysql: %w", err)
	}

	l.Info("mysql connected",
		zap.String("host", cfg.Host),
		zap.String("db", cfg.DBName),
		zap.String("user", cfg.User),
	)
	return gdb, func() { _ = sqlDB.Close() }, nil
}
