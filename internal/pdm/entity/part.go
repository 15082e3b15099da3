package entity

import (
	"fmt"
	"time"
)

// 零件/版本生命周期状态常量
const (
	StatusDraft    = "draft"
	StatusInReview = "in_review"
	StatusReleased = "released"
	StatusObsolete = "obsolete"
)

// ValidStatus 判断是否为合法的生命周期状态
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusInReview, StatusReleased, StatusObsolete:
		return true
	}
	return false
}

// Part 设计零件（从单个元件到整机装配）
// ID为全局自增整数，由分配器在插入事务内取号，永不复用
type Part struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Category    string    `json:"category" gorm:"size:16;not null;index:idx_parts_category"`
	Subcategory string    `json:"subcategory" gorm:"size:16;not null;index:idx_parts_category"`
	Name        string    `json:"name" gorm:"size:256;not null"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	Status      string    `json:"status" gorm:"size:16;not null;default:draft"` // draft/in_review/released/obsolete 版本状态的物化投影
	CreatedBy   string    `json:"created_by" gorm:"size:64"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 关联
	Revisions  []Revision         `json:"revisions,omitempty" gorm:"foreignKey:PartID"`
	Properties []Property         `json:"properties,omitempty" gorm:"foreignKey:PartID"`
	MfrParts   []ManufacturerPart `json:"manufacturer_parts,omitempty" gorm:"foreignKey:PartID"`
}

func (Part) TableName() string {
	return "parts"
}

// DisplayID 展示编号：<大类>-<小类>-<ID>，由三元组确定性推导，不单独存储
func (p *Part) DisplayID() string {
	return fmt.Sprintf("%s-%s-%d", p.Category, p.Subcategory, p.ID)
}

// Property 零件键值属性（任意元数据扩展点）
type Property struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	PartID    int64     `json:"part_id" gorm:"not null;uniqueIndex:uniq_part_prop_key"`
	Key       string    `json:"key" gorm:"size:64;not null;uniqueIndex:uniq_part_prop_key"`
	Value     string    `json:"value" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Property) TableName() string {
	return "properties"
}

// ManufacturerPart 制造商料号
type ManufacturerPart struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	PartID       int64     `json:"part_id" gorm:"not null;index"`
	Manufacturer string    `json:"manufacturer" gorm:"size:128;not null"`
	MPN          string    `json:"mpn" gorm:"size:64;not null"`
	Description  string    `json:"description,omitempty" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ManufacturerPart) TableName() string {
	return "manufacturer_parts"
}

// Category 可识别的大类/小类编码组合，分配器取号前校验
type Category struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Code        string    `json:"code" gorm:"size:16;not null;uniqueIndex:uniq_category_pair"`
	Subcode     string    `json:"subcode" gorm:"size:16;not null;uniqueIndex:uniq_category_pair"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	IsSystem    bool      `json:"is_system" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Category) TableName() string {
	return "categories"
}
