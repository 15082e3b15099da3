package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/repository"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/sse"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/store"
	"github.com/bitfantasy/nimo-pdm/internal/shared/gitrepo"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkflowService 工作流引擎：面向零件的状态驱动
// 对外按零件收敛：解析当前活动版本，迁移版本状态，再把零件状态
// 重算为各版本状态的投影，全程单事务，无部分生效
type WorkflowService struct {
	store     *store.Store
	repos     *repository.Repositories
	revisions *RevisionService
	logger    *zap.Logger
}

// NewWorkflowService 创建工作流服务
func NewWorkflowService(st *store.Store, repos *repository.Repositories, revisions *RevisionService, logger *zap.Logger) *WorkflowService {
	return &WorkflowService{store: st, repos: repos, revisions: revisions, logger: logger}
}

// ChangeStatusReq 零件状态迁移请求
type ChangeStatusReq struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment"`
}

// ChangeStatus 驱动零件状态迁移
// 权限在任何副作用之前校验：released迁移要求操作者持有pdm:release，
// 校验失败时元数据与git两侧都不发生任何变化
func (s *WorkflowService) ChangeStatus(ctx context.Context, partID int64, req ChangeStatusReq, actor Actor) (*entity.Part, error) {
	if !entity.ValidStatus(req.Status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, req.Status)
	}
	if req.Status == entity.StatusReleased && !actor.Can(PermRelease) {
		return nil, fmt.Errorf("%w: status %s requires %s", ErrPermission, req.Status, PermRelease)
	}

	var part *entity.Part
	var rev *entity.Revision
	err := s.store.WithRepository(ctx, func(repo *gitrepo.Repository) error {
		return s.store.Transaction(ctx, func(tx *gorm.DB) error {
			var err error
			part, err = s.repos.Part.FindByID(tx, partID)
			if err != nil {
				return fmt.Errorf("load part %d: %w", partID, err)
			}

			target, err := s.resolveTarget(tx, partID, req.Status)
			if err != nil {
				return err
			}

			// 发布与退稿隐含一条审批决定，先落记录再迁移
			switch {
			case target.Status == entity.StatusInReview && req.Status == entity.StatusReleased:
				rec := &entity.ApprovalRecord{
					ID:         uuid.New().String(),
					RevisionID: target.ID,
					Reviewer:   actor.ID,
					Decision:   entity.DecisionApprove,
					Comment:    req.Comment,
					CreatedAt:  time.Now(),
				}
				if err := s.repos.Approval.Create(tx, rec); err != nil {
					return fmt.Errorf("record approval: %w", err)
				}
			case target.Status == entity.StatusInReview && req.Status == entity.StatusDraft:
				rec := &entity.ApprovalRecord{
					ID:         uuid.New().String(),
					RevisionID: target.ID,
					Reviewer:   actor.ID,
					Decision:   entity.DecisionReject,
					Comment:    req.Comment,
					CreatedAt:  time.Now(),
				}
				if err := s.repos.Approval.Create(tx, rec); err != nil {
					return fmt.Errorf("record rejection: %w", err)
				}
			}

			rev, err = s.revisions.advanceInTx(tx, repo, target.ID, req.Status)
			if err != nil {
				return err
			}

			status, err := s.revisions.projectPartStatus(tx, partID)
			if err != nil {
				return err
			}
			part.Status = status
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sse.PublishRevisionStatus(partID, rev.ID, rev.Version, rev.Status)
	sse.PublishPartStatus(partID, part.Status)
	s.logger.Info("Part status changed",
		zap.Int64("part_id", partID),
		zap.String("status", part.Status),
		zap.String("revision", rev.Version),
		zap.String("actor", actor.ID))
	return part, nil
}

// resolveTarget 选出本次迁移作用的版本
// 常规迁移作用于活动版本；零件已无活动版本时，obsolete作用于最近发布的版本
func (s *WorkflowService) resolveTarget(tx *gorm.DB, partID int64, newStatus string) (*entity.Revision, error) {
	active, err := s.repos.Revision.FindActive(tx, partID)
	if err == nil {
		return active, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("resolve active revision: %w", err)
	}
	if newStatus == entity.StatusObsolete {
		released, err := s.repos.Revision.FindLatestReleased(tx, partID)
		if err == nil {
			return released, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("resolve released revision: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: part %d has no revision eligible for %s", ErrInvalidTransition, partID, newStatus)
}
