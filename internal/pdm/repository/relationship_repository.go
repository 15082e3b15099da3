package repository

import (
	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"gorm.io/gorm"
)

type RelationshipRepository struct{}

// Create 创建关系边
func (r *RelationshipRepository) Create(db *gorm.DB, rel *entity.Relationship) error {
	return db.Create(rel).Error
}

// FindByID 根据ID查找关系
func (r *RelationshipRepository) FindByID(db *gorm.DB, id string) (*entity.Relationship, error) {
	var rel entity.Relationship
	if err := db.First(&rel, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &rel, nil
}

// ChildrenOf 某零件的直接下级边集，按插入顺序
func (r *RelationshipRepository) ChildrenOf(db *gorm.DB, parentID int64) ([]entity.Relationship, error) {
	var rels []entity.Relationship
	err := db.Where("parent_id = ?", parentID).Order("seq ASC").Find(&rels).Error
	return rels, err
}

// ParentsOf 某零件的直接上级边集，按插入顺序
func (r *RelationshipRepository) ParentsOf(db *gorm.DB, childID int64) ([]entity.Relationship, error) {
	var rels []entity.Relationship
	err := db.Where("child_id = ?", childID).Order("seq ASC").Find(&rels).Error
	return rels, err
}

// AssemblyChildIDs 某零件经assembly边可直达的子零件ID，环检测遍历用
func (r *RelationshipRepository) AssemblyChildIDs(db *gorm.DB, parentID int64) ([]int64, error) {
	var ids []int64
	err := db.Model(&entity.Relationship{}).
		Where("parent_id = ? AND kind = ?", parentID, entity.RelAssembly).
		Pluck("child_id", &ids).Error
	return ids, err
}

// MaxSeq 当前最大插入序号
func (r *RelationshipRepository) MaxSeq(db *gorm.DB) (int, error) {
	var maxSeq *int
	err := db.Model(&entity.Relationship{}).Select("MAX(seq)").Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	if maxSeq == nil {
		return 0, nil
	}
	return *maxSeq, nil
}

// Delete 删除关系，幂等：返回是否删到了记录
func (r *RelationshipRepository) Delete(db *gorm.DB, id string) (bool, error) {
	res := db.Delete(&entity.Relationship{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}
