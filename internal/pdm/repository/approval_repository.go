package repository

import (
	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"gorm.io/gorm"
)

type ApprovalRepository struct{}

// Create 写入审批记录
func (r *ApprovalRepository) Create(db *gorm.DB, rec *entity.ApprovalRecord) error {
	return db.Create(rec).Error
}

// ListByRevision 某版本的全部审批记录，按时间顺序
func (r *ApprovalRepository) ListByRevision(db *gorm.DB, revisionID string) ([]entity.ApprovalRecord, error) {
	var recs []entity.ApprovalRecord
	err := db.Where("revision_id = ?", revisionID).Order("created_at ASC").Find(&recs).Error
	return recs, err
}

// CountDecisions 统计某版本的有效approve数与未解决reject数
func (r *ApprovalRepository) CountDecisions(db *gorm.DB, revisionID string) (approves, openRejects int64, err error) {
	err = db.Model(&entity.ApprovalRecord{}).
		Where("revision_id = ? AND decision = ? AND resolved = ?", revisionID, entity.DecisionApprove, false).
		Count(&approves).Error
	if err != nil {
		return 0, 0, err
	}
	err = db.Model(&entity.ApprovalRecord{}).
		Where("revision_id = ? AND decision = ? AND resolved = ?", revisionID, entity.DecisionReject, false).
		Count(&openRejects).Error
	return approves, openRejects, err
}

// ResolveRejects 版本退回draft时，将当前未解决的reject全部标记为已解决
func (r *ApprovalRepository) ResolveRejects(db *gorm.DB, revisionID string) error {
	return db.Model(&entity.ApprovalRecord{}).
		Where("revision_id = ? AND decision = ? AND resolved = ?", revisionID, entity.DecisionReject, false).
		Update("resolved", true).Error
}
