package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/repository"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/store"
	"github.com/bitfantasy/nimo-pdm/internal/shared/gitrepo"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// allowedTransitions 版本状态机
// released除obsolete出口外为终态，不存在released→draft
var allowedTransitions = map[string][]string{
	entity.StatusDraft:    {entity.StatusInReview, entity.StatusObsolete},
	entity.StatusInReview: {entity.StatusDraft, entity.StatusReleased},
	entity.StatusReleased: {entity.StatusObsolete},
	entity.StatusObsolete: {},
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// RevisionService 版本台账：每个版本恰好对应一条git分支，映射单射且只追加
type RevisionService struct {
	store  *store.Store
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewRevisionService 创建版本台账服务
func NewRevisionService(st *store.Store, repos *repository.Repositories, logger *zap.Logger) *RevisionService {
	return &RevisionService{store: st, repos: repos, logger: logger}
}

// Create 为零件开启新版本：派生分支名、建分支、落版本行
// 分支与行在同一逻辑事务里完成，任何一半失败都会回滚另一半，
// 不会出现只有分支没有行、或只有行没有分支的版本
func (s *RevisionService) Create(ctx context.Context, partID int64, version, actor string) (*entity.Revision, error) {
	version = strings.ToUpper(strings.TrimSpace(version))

	var rev *entity.Revision
	err := s.store.WithRepository(ctx, func(repo *gitrepo.Repository) error {
		branchCreated := ""
		txErr := s.store.Transaction(ctx, func(tx *gorm.DB) error {
			part, err := s.repos.Part.FindByID(tx, partID)
			if err != nil {
				return fmt.Errorf("load part %d: %w", partID, err)
			}

			latest, err := s.repos.Revision.FindLatest(tx, partID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("load latest revision: %w", err)
			}
			if version == "" {
				if latest == nil {
					version = "A"
				} else {
					version = nextVersionLabel(latest.Version)
				}
			}

			// 分支名由(零件,版本号)确定性派生，同号并发建版时
			// 后到者在这里拿到命名冲突，而不是落进后面的门槛错误
			branch := entity.BranchName(partID, version)
			if taken, err := repo.BranchExists(branch); err != nil {
				return fmt.Errorf("git backend: %w", err)
			} else if taken {
				return fmt.Errorf("%w: %s", ErrBranchCollision, branch)
			}

			if latest != nil && !versionGreater(version, latest.Version) {
				return fmt.Errorf("%w: %s <= %s", ErrVersionLabel, version, latest.Version)
			}

			// 不变量：每个零件至多一条非终态版本
			if active, err := s.repos.Revision.FindActive(tx, partID); err == nil {
				return fmt.Errorf("%w: revision %s is still %s", ErrInvalidTransition, active.Version, active.Status)
			} else if !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("check active revision: %w", err)
			}

			seq, err := s.repos.Revision.MaxSeq(tx, partID)
			if err != nil {
				return fmt.Errorf("read revision seq: %w", err)
			}

			if err := repo.CreateBranch(branch, entity.IntegrationBranch(partID)); err != nil {
				if errors.Is(err, gitrepo.ErrBranchExists) {
					return fmt.Errorf("%w: %s", ErrBranchCollision, branch)
				}
				return fmt.Errorf("git backend: %w", err)
			}
			branchCreated = branch

			now := time.Now()
			rev = &entity.Revision{
				ID:        uuid.New().String(),
				PartID:    partID,
				Version:   version,
				Status:    entity.StatusDraft,
				Branch:    branch,
				Seq:       seq + 1,
				CreatedBy: actor,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.repos.Revision.Create(tx, rev); err != nil {
				return fmt.Errorf("insert revision for part %s: %w", part.DisplayID(), err)
			}
			return nil
		})
		if txErr != nil && branchCreated != "" {
			// 行侧回滚后补偿删除已建分支，错误浮出前同步完成
			if delErr := repo.DeleteBranch(branchCreated); delErr != nil {
				s.logger.Error("Failed to compensate branch after rollback",
					zap.String("branch", branchCreated), zap.Error(delErr))
			}
		}
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return rev, nil
}

// AdvanceStatus 校验并执行版本状态迁移
// 版本状态是事实源，零件缓存状态列在同一事务里重算，不允许两者分叉
func (s *RevisionService) AdvanceStatus(ctx context.Context, revisionID, newStatus string) (*entity.Revision, error) {
	var rev *entity.Revision
	err := s.store.WithRepository(ctx, func(repo *gitrepo.Repository) error {
		return s.store.Transaction(ctx, func(tx *gorm.DB) error {
			var err error
			rev, err = s.advanceInTx(tx, repo, revisionID, newStatus)
			if err != nil {
				return err
			}
			_, err = s.projectPartStatus(tx, rev.PartID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return rev, nil
}

// statusRank 投影取各版本里最靠前的状态
var statusRank = map[string]int{
	entity.StatusReleased: 3,
	entity.StatusInReview: 2,
	entity.StatusDraft:    1,
	entity.StatusObsolete: 0,
}

// projectPartStatus 把零件状态重算为各版本状态的投影并写回缓存列
// 零件状态 = 非obsolete版本中最高阶者；全部obsolete则零件obsolete；
// 缓存列只允许经由这里更新，且必须与版本状态变更同事务
func (s *RevisionService) projectPartStatus(tx *gorm.DB, partID int64) (string, error) {
	revs, err := s.repos.Revision.ListByPart(tx, partID)
	if err != nil {
		return "", fmt.Errorf("list revisions: %w", err)
	}
	status := entity.StatusObsolete
	best := -1
	for _, r := range revs {
		if r.Status == entity.StatusObsolete {
			continue
		}
		if rank := statusRank[r.Status]; rank > best {
			best = rank
			status = r.Status
		}
	}
	if len(revs) == 0 {
		status = entity.StatusDraft
	}
	if err := s.repos.Part.UpdateStatus(tx, partID, status); err != nil {
		return "", fmt.Errorf("project part status: %w", err)
	}
	return status, nil
}

// advanceInTx 在调用方的事务与设计库作用域内执行迁移
// 工作流引擎与公开的AdvanceStatus共用这条路径
func (s *RevisionService) advanceInTx(tx *gorm.DB, repo *gitrepo.Repository, revisionID, newStatus string) (*entity.Revision, error) {
	if !entity.ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
	}

	rev, err := s.repos.Revision.FindByID(tx, revisionID)
	if err != nil {
		return nil, fmt.Errorf("load revision %s: %w", revisionID, err)
	}
	if !transitionAllowed(rev.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rev.Status, newStatus)
	}

	switch newStatus {
	case entity.StatusReleased:
		// 审批门槛：至少一条通过且无未解决驳回
		approves, openRejects, err := s.repos.Approval.CountDecisions(tx, rev.ID)
		if err != nil {
			return nil, fmt.Errorf("count approvals: %w", err)
		}
		if approves < 1 || openRejects > 0 {
			return nil, fmt.Errorf("%w: approvals=%d open_rejects=%d", ErrApprovalRequired, approves, openRejects)
		}

		hash, err := repo.MergeBranch(rev.Branch, entity.IntegrationBranch(rev.PartID))
		if err != nil {
			return nil, fmt.Errorf("git backend: merge %s: %w", rev.Branch, err)
		}
		now := time.Now()
		rev.CommitHash = hash
		rev.ReleasedAt = &now

	case entity.StatusDraft:
		// 驳回退稿：当前未解决的reject记为已处理，开启新一轮评审
		if err := s.repos.Approval.ResolveRejects(tx, rev.ID); err != nil {
			return nil, fmt.Errorf("resolve rejections: %w", err)
		}
	}
	// obsolete不动分支：历史全部保留以供审计

	rev.Status = newStatus
	rev.UpdatedAt = time.Now()
	if err := s.repos.Revision.Update(tx, rev); err != nil {
		return nil, fmt.Errorf("update revision %s: %w", rev.ID, err)
	}
	return rev, nil
}

// RecordDecision 写入审批决定
// 首个终局决定有约束力：版本一旦离开in_review，后续决定一律拒绝
func (s *RevisionService) RecordDecision(ctx context.Context, revisionID, reviewer, decision, comment string) (*entity.ApprovalRecord, error) {
	if decision != entity.DecisionApprove && decision != entity.DecisionReject {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidTransition, decision)
	}

	var rec *entity.ApprovalRecord
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		rev, err := s.repos.Revision.FindByID(tx, revisionID)
		if err != nil {
			return fmt.Errorf("load revision %s: %w", revisionID, err)
		}
		if rev.Status != entity.StatusInReview {
			return fmt.Errorf("%w: revision is %s, decisions only accepted in_review", ErrInvalidTransition, rev.Status)
		}
		rec = &entity.ApprovalRecord{
			ID:         uuid.New().String(),
			RevisionID: revisionID,
			Reviewer:   reviewer,
			Decision:   decision,
			Comment:    comment,
			CreatedAt:  time.Now(),
		}
		return s.repos.Approval.Create(tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List 零件的全部版本，按创建序号
func (s *RevisionService) List(ctx context.Context, partID int64) ([]entity.Revision, error) {
	var revs []entity.Revision
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		revs, err = s.repos.Revision.ListByPart(db, partID)
		return err
	})
	return revs, err
}

// Latest 最近创建的版本
func (s *RevisionService) Latest(ctx context.Context, partID int64) (*entity.Revision, error) {
	var rev *entity.Revision
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		rev, err = s.repos.Revision.FindLatest(db, partID)
		return err
	})
	return rev, err
}

// LatestReleased 最近发布的版本
func (s *RevisionService) LatestReleased(ctx context.Context, partID int64) (*entity.Revision, error) {
	var rev *entity.Revision
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		rev, err = s.repos.Revision.FindLatestReleased(db, partID)
		return err
	})
	return rev, err
}

// Approvals 版本的审批记录
func (s *RevisionService) Approvals(ctx context.Context, revisionID string) ([]entity.ApprovalRecord, error) {
	var recs []entity.ApprovalRecord
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		recs, err = s.repos.Approval.ListByRevision(db, revisionID)
		return err
	})
	return recs, err
}

// nextVersionLabel 下一个版本号：A→B→...→Z→AA→AB，Excel列名式进位
func nextVersionLabel(current string) string {
	b := []byte(strings.ToUpper(current))
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 'A' || b[i] > 'Z' {
			// 非字母版号（如数字）由调用方显式指定下一个
			return current + "A"
		}
		if b[i] < 'Z' {
			b[i]++
			return string(b)
		}
		b[i] = 'A'
	}
	return "A" + string(b)
}

// versionGreater 版本号排序：短的在前，同长度按字典序
func versionGreater(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}
