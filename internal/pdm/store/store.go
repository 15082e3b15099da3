// Package store 连接管理器：唯一的数据库句柄和设计库句柄都归它所有，
// 其余组件只能通过带作用域的回调借用，不得跨调用缓存句柄
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bitfantasy/nimo-pdm/internal/config"
	"github.com/bitfantasy/nimo-pdm/internal/shared/gitrepo"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrClosed 句柄已关闭，所有作用域调用统一返回该错误
var ErrClosed = errors.New("store closed")

// Store 串行化访问数据库连接与设计库
// 两把锁互相独立：纯DB操作不会被长时间的git操作阻塞
type Store struct {
	dbMu   sync.Mutex
	repoMu sync.Mutex
	db     *gorm.DB
	repo   *gitrepo.Repository
	closed bool
}

// New 创建连接管理器
func New(db *gorm.DB, repo *gitrepo.Repository) *Store {
	return &Store{db: db, repo: repo}
}

// OpenDatabase 按配置打开数据库
// sqlite强制单连接：串行化保证依赖连接池里只有这一条连接
func OpenDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case "", "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DSN()), gormCfg)
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("acquire sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return db, nil
}

// WithConnection 独占数据库句柄执行op，期间不会有其他SQL交错
func (s *Store) WithConnection(ctx context.Context, op func(db *gorm.DB) error) error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return op(s.db.WithContext(ctx))
}

// Transaction 独占句柄并在单个事务内执行op，op报错则整体回滚
// 进入事务后不响应取消：要么提交要么回滚，不存在半提交状态
func (s *Store) Transaction(ctx context.Context, op func(tx *gorm.DB) error) error {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.WithContext(ctx).Transaction(op)
}

// WithRepository 独占设计库句柄执行op
func (s *Store) WithRepository(ctx context.Context, op func(repo *gitrepo.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.repoMu.Lock()
	defer s.repoMu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return op(s.repo)
}

// Close 关闭底层连接，之后所有作用域调用返回ErrClosed
// 锁序与业务路径一致：repoMu先于dbMu
func (s *Store) Close() error {
	s.repoMu.Lock()
	s.dbMu.Lock()
	defer s.dbMu.Unlock()
	defer s.repoMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("acquire sql.DB on close: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
