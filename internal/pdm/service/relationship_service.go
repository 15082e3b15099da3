package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/repository"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RelationshipService 零件关系服务，维护装配/参考/替代三类有向边
type RelationshipService struct {
	store *store.Store
	repos *repository.Repositories
}

// NewRelationshipService 创建关系服务
func NewRelationshipService(st *store.Store, repos *repository.Repositories) *RelationshipService {
	return &RelationshipService{store: st, repos: repos}
}

// AddRelationshipReq 添加关系请求
type AddRelationshipReq struct {
	ParentID int64   `json:"parent_id" binding:"required"`
	ChildID  int64   `json:"child_id" binding:"required"`
	Kind     string  `json:"kind" binding:"required"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Add 添加关系边
// assembly边入库前做环检测：从child沿assembly可达集合若含parent则拒绝
// 校验与插入在同一事务内完成，防止并发写侧漏出环
func (s *RelationshipService) Add(ctx context.Context, req AddRelationshipReq, actor string) (*entity.Relationship, error) {
	if !entity.ValidRelationType(req.Kind) {
		return nil, fmt.Errorf("relation kind %q: %w", req.Kind, ErrRelationKind)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Kind == entity.RelAssembly && req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity %v: %w", req.Quantity, ErrInvalidQuantity)
	}

	var rel *entity.Relationship
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.repos.Part.FindByID(tx, req.ParentID); err != nil {
			return fmt.Errorf("parent part %d: %w", req.ParentID, err)
		}
		if _, err := s.repos.Part.FindByID(tx, req.ChildID); err != nil {
			return fmt.Errorf("child part %d: %w", req.ChildID, err)
		}

		if req.Kind == entity.RelAssembly {
			if req.ParentID == req.ChildID {
				return fmt.Errorf("part %d into itself: %w", req.ParentID, ErrCycle)
			}
			reachable, err := s.assemblyReaches(tx, req.ChildID, req.ParentID)
			if err != nil {
				return err
			}
			if reachable {
				return fmt.Errorf("part %d is already below part %d: %w", req.ParentID, req.ChildID, ErrCycle)
			}
		}

		maxSeq, err := s.repos.Relationship.MaxSeq(tx)
		if err != nil {
			return fmt.Errorf("next relationship seq: %w", err)
		}
		rel = &entity.Relationship{
			ID:        uuid.New().String(),
			ParentID:  req.ParentID,
			ChildID:   req.ChildID,
			Kind:      req.Kind,
			Quantity:  req.Quantity,
			Unit:      req.Unit,
			Seq:       maxSeq + 1,
			CreatedBy: actor,
			CreatedAt: time.Now(),
		}
		return s.repos.Relationship.Create(tx, rel)
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// assemblyReaches 从from沿assembly边深度优先，判断能否到达target
// visited集合保证每个零件只展开一次，遍历规模不超过零件总数
func (s *RelationshipService) assemblyReaches(tx *gorm.DB, from, target int64) (bool, error) {
	visited := map[int64]bool{from: true}
	stack := []int64{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		children, err := s.repos.Relationship.AssemblyChildIDs(tx, cur)
		if err != nil {
			return false, fmt.Errorf("walk assembly edges of %d: %w", cur, err)
		}
		for _, id := range children {
			if id == target {
				return true, nil
			}
			if !visited[id] {
				visited[id] = true
				stack = append(stack, id)
			}
		}
	}
	return false, nil
}

// Children 零件的直接下级边集
func (s *RelationshipService) Children(ctx context.Context, partID int64) ([]entity.Relationship, error) {
	var rels []entity.Relationship
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		rels, err = s.repos.Relationship.ChildrenOf(db, partID)
		return err
	})
	return rels, err
}

// Parents 零件的直接上级边集（用途追溯）
func (s *RelationshipService) Parents(ctx context.Context, partID int64) ([]entity.Relationship, error) {
	var rels []entity.Relationship
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		rels, err = s.repos.Relationship.ParentsOf(db, partID)
		return err
	})
	return rels, err
}

// Remove 删除关系边，幂等：重复删除返回false而非报错
func (s *RelationshipService) Remove(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		removed, err = s.repos.Relationship.Delete(db, id)
		return err
	})
	return removed, err
}
