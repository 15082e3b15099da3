// Package repository 数据访问层
// 与常规服务不同，这里的仓库不持有*gorm.DB：唯一的数据库句柄归连接管理器所有，
// 每个方法的db参数都是WithConnection/Transaction作用域内的临时借用
package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Part         *PartRepository
	Revision     *RevisionRepository
	Relationship *RelationshipRepository
	Approval     *ApprovalRepository
}

// NewRepositories 创建仓库集合
func NewRepositories() *Repositories {
	return &Repositories{
		Part:         &PartRepository{},
		Revision:     &RevisionRepository{},
		Relationship: &RelationshipRepository{},
		Approval:     &ApprovalRepository{},
	}
}

// wrapNotFound 将gorm的未找到错误归一为ErrNotFound
func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
