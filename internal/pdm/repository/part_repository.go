package repository

import (
	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"gorm.io/gorm"
)

type PartRepository struct{}

// Create 创建零件
func (r *PartRepository) Create(db *gorm.DB, part *entity.Part) error {
	return db.Create(part).Error
}

// FindByID 根据ID查找零件
func (r *PartRepository) FindByID(db *gorm.DB, id int64) (*entity.Part, error) {
	var part entity.Part
	if err := db.First(&part, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &part, nil
}

// List 分页查询零件列表（可按status筛选）
func (r *PartRepository) List(db *gorm.DB, status string, page, pageSize int) ([]entity.Part, int64, error) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	query := db.Model(&entity.Part{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var parts []entity.Part
	err := query.Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&parts).Error
	return parts, total, err
}

// Update 更新零件基础信息
func (r *PartRepository) Update(db *gorm.DB, part *entity.Part) error {
	return db.Save(part).Error
}

// UpdateStatus 更新零件的物化状态列
// 只能跟随版本状态变化在同一事务内调用，不允许独立写入
func (r *PartRepository) UpdateStatus(db *gorm.DB, id int64, status string) error {
	return db.Model(&entity.Part{}).Where("id = ?", id).Update("status", status).Error
}

// MaxID 当前最大零件ID，分配器在插入事务内调用
func (r *PartRepository) MaxID(db *gorm.DB) (int64, error) {
	var maxID *int64
	if err := db.Model(&entity.Part{}).Select("MAX(id)").Scan(&maxID).Error; err != nil {
		return 0, err
	}
	if maxID == nil {
		return 0, nil
	}
	return *maxID, nil
}

// CategoryExists 校验大类/小类组合是否登记过
func (r *PartRepository) CategoryExists(db *gorm.DB, code, subcode string) (bool, error) {
	var count int64
	err := db.Model(&entity.Category{}).
		Where("code = ? AND subcode = ?", code, subcode).
		Count(&count).Error
	return count > 0, err
}

// ListCategories 获取全部分类编码
func (r *PartRepository) ListCategories(db *gorm.DB) ([]entity.Category, error) {
	var cats []entity.Category
	err := db.Order("code, subcode").Find(&cats).Error
	return cats, err
}

// ListProperties 获取零件的全部属性
func (r *PartRepository) ListProperties(db *gorm.DB, partID int64) ([]entity.Property, error) {
	var props []entity.Property
	err := db.Where("part_id = ?", partID).Order("key").Find(&props).Error
	return props, err
}

// UpsertProperty 写入或覆盖零件属性
func (r *PartRepository) UpsertProperty(db *gorm.DB, prop *entity.Property) error {
	var existing entity.Property
	err := db.Where("part_id = ? AND key = ?", prop.PartID, prop.Key).First(&existing).Error
	if err == nil {
		existing.Value = prop.Value
		existing.UpdatedAt = prop.UpdatedAt
		return db.Save(&existing).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return db.Create(prop).Error
}

// CreateManufacturerPart 新增制造商料号
func (r *PartRepository) CreateManufacturerPart(db *gorm.DB, mp *entity.ManufacturerPart) error {
	return db.Create(mp).Error
}

// ListManufacturerParts 获取零件的制造商料号
func (r *PartRepository) ListManufacturerParts(db *gorm.DB, partID int64) ([]entity.ManufacturerPart, error) {
	var mps []entity.ManufacturerPart
	err := db.Where("part_id = ?", partID).Order("created_at").Find(&mps).Error
	return mps, err
}

// DeleteManufacturerPart 删除制造商料号，返回是否删到了记录
func (r *PartRepository) DeleteManufacturerPart(db *gorm.DB, id string) (bool, error) {
	res := db.Delete(&entity.ManufacturerPart{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}
