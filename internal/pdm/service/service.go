package service

import (
	"github.com/bitfantasy/nimo-pdm/internal/pdm/repository"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/store"
	"go.uber.org/zap"
)

// 能力常量：released迁移需要提升能力，其余迁移不需要
const PermRelease = "pdm:release"

// Actor 操作者身份，由JWT claims映射而来
type Actor struct {
	ID          string
	Name        string
	Permissions []string
}

// Can 判断操作者是否持有某能力（*为全量通配）
func (a Actor) Can(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// Services 服务集合
type Services struct {
	Allocator    *AllocatorService
	Part         *PartService
	Relationship *RelationshipService
	Revision     *RevisionService
	Workflow     *WorkflowService
	BOMExport    *BOMExportService
}

// NewServices 创建服务集合
func NewServices(st *store.Store, repos *repository.Repositories, logger *zap.Logger) *Services {
	allocator := NewAllocatorService(repos.Part)
	revision := NewRevisionService(st, repos, logger)
	s := &Services{
		Allocator:    allocator,
		Revision:     revision,
		Part:         NewPartService(st, repos, allocator, revision, logger),
		Relationship: NewRelationshipService(st, repos),
		Workflow:     NewWorkflowService(st, repos, revision, logger),
	}
	s.BOMExport = NewBOMExportService(st, repos)
	return s
}
