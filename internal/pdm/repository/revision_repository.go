package repository

import (
	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"gorm.io/gorm"
)

type RevisionRepository struct{}

// Create 创建版本记录
func (r *RevisionRepository) Create(db *gorm.DB, rev *entity.Revision) error {
	return db.Create(rev).Error
}

// FindByID 根据ID查找版本
func (r *RevisionRepository) FindByID(db *gorm.DB, id string) (*entity.Revision, error) {
	var rev entity.Revision
	if err := db.First(&rev, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &rev, nil
}

// ListByPart 获取零件的全部版本，按创建序号排列
func (r *RevisionRepository) ListByPart(db *gorm.DB, partID int64) ([]entity.Revision, error) {
	var revs []entity.Revision
	err := db.Where("part_id = ?", partID).Order("seq ASC").Find(&revs).Error
	return revs, err
}

// FindActive 查找零件处于非终态（draft/in_review）的版本
// 不变量保证每个零件至多一条
func (r *RevisionRepository) FindActive(db *gorm.DB, partID int64) (*entity.Revision, error) {
	var rev entity.Revision
	err := db.Where("part_id = ? AND status IN ?", partID,
		[]string{entity.StatusDraft, entity.StatusInReview}).
		Order("seq DESC").First(&rev).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &rev, nil
}

// FindLatest 零件最近创建的版本
func (r *RevisionRepository) FindLatest(db *gorm.DB, partID int64) (*entity.Revision, error) {
	var rev entity.Revision
	err := db.Where("part_id = ?", partID).Order("seq DESC").First(&rev).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &rev, nil
}

// FindLatestReleased 零件最近发布的版本
func (r *RevisionRepository) FindLatestReleased(db *gorm.DB, partID int64) (*entity.Revision, error) {
	var rev entity.Revision
	err := db.Where("part_id = ? AND status = ?", partID, entity.StatusReleased).
		Order("seq DESC").First(&rev).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &rev, nil
}

// MaxSeq 零件当前最大版本序号
func (r *RevisionRepository) MaxSeq(db *gorm.DB, partID int64) (int, error) {
	var maxSeq *int
	err := db.Model(&entity.Revision{}).Where("part_id = ?", partID).
		Select("MAX(seq)").Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	if maxSeq == nil {
		return 0, nil
	}
	return *maxSeq, nil
}

// Update 更新版本记录
func (r *RevisionRepository) Update(db *gorm.DB, rev *entity.Revision) error {
	return db.Save(rev).Error
}
