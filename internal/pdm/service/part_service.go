package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/repository"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/store"
	"github.com/bitfantasy/nimo-pdm/internal/shared/gitrepo"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PartService 零件服务：建零件时原子地完成取号、零件行、首个版本与git侧骨架
type PartService struct {
	store     *store.Store
	repos     *repository.Repositories
	allocator *AllocatorService
	revisions *RevisionService
	logger    *zap.Logger
}

// NewPartService 创建零件服务
func NewPartService(st *store.Store, repos *repository.Repositories, allocator *AllocatorService, revisions *RevisionService, logger *zap.Logger) *PartService {
	return &PartService{store: st, repos: repos, allocator: allocator, revisions: revisions, logger: logger}
}

// CreatePartReq 创建零件请求
type CreatePartReq struct {
	Category    string `json:"category" binding:"required"`
	Subcategory string `json:"subcategory" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Version     string `json:"version"` // 首版版本号，缺省A
}

// Create 创建零件（status=draft），并原子地建立首个版本
// 集成分支part-<id>与首个版本分支在同一作用域内建立，
// 元数据事务失败时补偿删除已建分支
func (s *PartService) Create(ctx context.Context, req CreatePartReq, actor string) (*entity.Part, error) {
	var part *entity.Part
	err := s.store.WithRepository(ctx, func(repo *gitrepo.Repository) error {
		// 进入前记下HEAD所在分支，失败补偿时先退回再删分支
		prev, err := repo.CurrentBranch()
		if err != nil {
			return fmt.Errorf("git backend: %w", err)
		}
		var created []string
		checkedOut := false
		txErr := s.store.Transaction(ctx, func(tx *gorm.DB) error {
			id, err := s.allocator.Allocate(tx, req.Category, req.Subcategory)
			if err != nil {
				return err
			}

			now := time.Now()
			part = &entity.Part{
				ID:          id,
				Category:    s.allocator.Normalize(req.Category),
				Subcategory: s.allocator.Normalize(req.Subcategory),
				Name:        req.Name,
				Description: req.Description,
				Status:      entity.StatusDraft,
				CreatedBy:   actor,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.repos.Part.Create(tx, part); err != nil {
				return fmt.Errorf("insert part %s: %w", part.DisplayID(), err)
			}

			// git侧：集成分支 + 零件目录骨架
			integration := entity.IntegrationBranch(part.ID)
			if err := repo.CreateBranch(integration, ""); err != nil {
				return fmt.Errorf("git backend: %w", err)
			}
			created = append(created, integration)
			if err := repo.CheckoutBranch(integration); err != nil {
				return fmt.Errorf("git backend: %w", err)
			}
			checkedOut = true
			if _, err := repo.ScaffoldPartDirs(part.DisplayID()); err != nil {
				return fmt.Errorf("git backend: %w", err)
			}

			// 首个版本：行 + 分支
			label := req.Version
			if label == "" {
				label = "A"
			}
			branch := entity.BranchName(part.ID, label)
			if err := repo.CreateBranch(branch, integration); err != nil {
				return fmt.Errorf("git backend: %w", err)
			}
			created = append(created, branch)

			rev := &entity.Revision{
				ID:        uuid.New().String(),
				PartID:    part.ID,
				Version:   label,
				Status:    entity.StatusDraft,
				Branch:    branch,
				Seq:       1,
				CreatedBy: actor,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.repos.Revision.Create(tx, rev); err != nil {
				return fmt.Errorf("insert initial revision: %w", err)
			}
			part.Revisions = []entity.Revision{*rev}
			return nil
		})
		if txErr != nil {
			// 已检出集成分支时必须先把HEAD挪回原分支并清理工作区，
			// 直接删除已检出的分支会留下悬空HEAD，毒化后续所有建零件
			if checkedOut {
				if resetErr := repo.ResetToBranch(prev); resetErr != nil {
					s.logger.Error("Failed to restore branch after rollback",
						zap.String("branch", prev), zap.Error(resetErr))
				}
			}
			for _, b := range created {
				if delErr := repo.DeleteBranch(b); delErr != nil {
					s.logger.Error("Failed to compensate branch after rollback",
						zap.String("branch", b), zap.Error(delErr))
				}
			}
		}
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return part, nil
}

// Get 查询零件
func (s *PartService) Get(ctx context.Context, id int64) (*entity.Part, error) {
	var part *entity.Part
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		part, err = s.repos.Part.FindByID(db, id)
		return err
	})
	return part, err
}

// UpdatePartReq 更新零件请求（只允许改描述性字段，编号与状态不可直接写）
type UpdatePartReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update 更新零件基础信息
func (s *PartService) Update(ctx context.Context, id int64, req UpdatePartReq) (*entity.Part, error) {
	var part *entity.Part
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		part, err = s.repos.Part.FindByID(tx, id)
		if err != nil {
			return fmt.Errorf("load part %d: %w", id, err)
		}
		if req.Name != nil {
			part.Name = *req.Name
		}
		if req.Description != nil {
			part.Description = *req.Description
		}
		part.UpdatedAt = time.Now()
		return s.repos.Part.Update(tx, part)
	})
	if err != nil {
		return nil, err
	}
	return part, nil
}

// List 分页查询零件
func (s *PartService) List(ctx context.Context, status string, page, pageSize int) ([]entity.Part, int64, error) {
	var parts []entity.Part
	var total int64
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		parts, total, err = s.repos.Part.List(db, status, page, pageSize)
		return err
	})
	return parts, total, err
}

// Categories 全部登记过的分类编码
func (s *PartService) Categories(ctx context.Context) ([]entity.Category, error) {
	var cats []entity.Category
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		cats, err = s.repos.Part.ListCategories(db)
		return err
	})
	return cats, err
}

// Properties 零件属性列表
func (s *PartService) Properties(ctx context.Context, partID int64) ([]entity.Property, error) {
	var props []entity.Property
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		props, err = s.repos.Part.ListProperties(db, partID)
		return err
	})
	return props, err
}

// SetProperties 批量写入属性，键已存在时覆盖
func (s *PartService) SetProperties(ctx context.Context, partID int64, kv map[string]string) error {
	return s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.repos.Part.FindByID(tx, partID); err != nil {
			return fmt.Errorf("load part %d: %w", partID, err)
		}
		now := time.Now()
		for k, v := range kv {
			prop := &entity.Property{
				ID:        uuid.New().String(),
				PartID:    partID,
				Key:       k,
				Value:     v,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.repos.Part.UpsertProperty(tx, prop); err != nil {
				return fmt.Errorf("upsert property %s: %w", k, err)
			}
		}
		return nil
	})
}

// AddManufacturerPart 登记制造商料号
func (s *PartService) AddManufacturerPart(ctx context.Context, partID int64, manufacturer, mpn, description string) (*entity.ManufacturerPart, error) {
	mp := &entity.ManufacturerPart{
		ID:           uuid.New().String(),
		PartID:       partID,
		Manufacturer: manufacturer,
		MPN:          mpn,
		Description:  description,
		CreatedAt:    time.Now(),
	}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.repos.Part.FindByID(tx, partID); err != nil {
			return fmt.Errorf("load part %d: %w", partID, err)
		}
		return s.repos.Part.CreateManufacturerPart(tx, mp)
	})
	if err != nil {
		return nil, err
	}
	return mp, nil
}

// ManufacturerParts 零件的制造商料号列表
func (s *PartService) ManufacturerParts(ctx context.Context, partID int64) ([]entity.ManufacturerPart, error) {
	var mps []entity.ManufacturerPart
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		mps, err = s.repos.Part.ListManufacturerParts(db, partID)
		return err
	})
	return mps, err
}

// DeleteManufacturerPart 删除制造商料号，幂等
func (s *PartService) DeleteManufacturerPart(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		removed, err = s.repos.Part.DeleteManufacturerPart(db, id)
		return err
	})
	return removed, err
}
