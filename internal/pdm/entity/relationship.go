package entity

import "time"

// 关系类型常量
const (
	RelAssembly  = "assembly"
	RelReference = "reference"
	RelAlternate = "alternate"
)

// ValidRelationType 判断是否为合法的关系类型
func ValidRelationType(t string) bool {
	switch t {
	case RelAssembly, RelReference, RelAlternate:
		return true
	}
	return false
}

// Relationship 零件间的有向带量关系（装配/参考/替代）
// assembly边子图必须无环，quantity必须大于0
type Relationship struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	ParentID  int64     `json:"parent_id" gorm:"not null;index:idx_rel_parent"`
	ChildID   int64     `json:"child_id" gorm:"not null;index:idx_rel_child"`
	Kind      string    `json:"kind" gorm:"size:16;not null"` // assembly/reference/alternate
	Quantity  float64   `json:"quantity" gorm:"type:numeric(15,4);not null;default:1"`
	Unit      string    `json:"unit,omitempty" gorm:"size:16"`
	Seq       int       `json:"seq" gorm:"not null;default:0"` // 插入序号，边集按此排序
	CreatedBy string    `json:"created_by" gorm:"size:64"`
	CreatedAt time.Time `json:"created_at"`

	// 关联
	Parent *Part `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Child  *Part `json:"child,omitempty" gorm:"foreignKey:ChildID"`
}

func (Relationship) TableName() string {
	return "relationships"
}

// SchemaVersion 迁移版本守卫表，同一版本只插入一次
type SchemaVersion struct {
	Version   int       `json:"version" gorm:"primaryKey;autoIncrement:false"`
	AppliedAt time.Time `json:"applied_at"`
}

func (SchemaVersion) TableName() string {
	return "schema_versions"
}
