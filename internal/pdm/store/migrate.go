package store

import (
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migration 一次模式变更：版本号单调递增，schema_versions保证只应用一次
type migration struct {
	version int
	name    string
	apply   func(db *gorm.DB) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "base schema",
		apply: func(db *gorm.DB) error {
			return db.AutoMigrate(
				&entity.Part{},
				&entity.Revision{},
				&entity.Relationship{},
				&entity.Property{},
				&entity.ApprovalRecord{},
				&entity.ManufacturerPart{},
				&entity.Category{},
			)
		},
	},
	{
		version: 2,
		name:    "relationship lookup indexes",
		apply: func(db *gorm.DB) error {
			stmts := []string{
				"CREATE INDEX IF NOT EXISTS idx_relationships_parent_kind ON relationships(parent_id, kind)",
				"CREATE INDEX IF NOT EXISTS idx_relationships_child_kind ON relationships(child_id, kind)",
				"CREATE INDEX IF NOT EXISTS idx_revisions_part_seq ON revisions(part_id, seq)",
				"CREATE INDEX IF NOT EXISTS idx_approval_records_revision ON approval_records(revision_id, resolved)",
			}
			for _, sql := range stmts {
				if err := db.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		version: 3,
		name:    "seed category codes",
		apply:   seedCategories,
	},
}

// Migrate 应用未执行的迁移并写入schema_versions守卫记录
func Migrate(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(&entity.SchemaVersion{}); err != nil {
		return fmt.Errorf("migrate schema_versions: %w", err)
	}

	var current int
	if err := db.Model(&entity.SchemaVersion{}).Select("COALESCE(MAX(version), 0)").Scan(&current).Error; err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return tx.Create(&entity.SchemaVersion{Version: m.version, AppliedAt: time.Now()}).Error
		}); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		log.Info("Applied migration", zap.Int("version", m.version), zap.String("name", m.name))
	}
	return nil
}

// 预置的大类/小类编码，分配器只接受这里登记过的组合
var categorySeeds = []struct{ Code, Subcode, Name string }{
	{"EL", "RES", "电阻"},
	{"EL", "CAP", "电容"},
	{"EL", "IND", "电感"},
	{"EL", "IC", "集成电路"},
	{"EL", "CON", "连接器"},
	{"ME", "ENC", "外壳结构件"},
	{"ME", "FAS", "紧固件"},
	{"ME", "BRK", "支架"},
	{"AS", "PCBA", "电路板装配"},
	{"AS", "TOP", "整机装配"},
	{"DO", "SPEC", "规格文档"},
	{"DO", "DWG", "图纸文档"},
}

func seedCategories(db *gorm.DB) error {
	for _, c := range categorySeeds {
		cat := entity.Category{
			ID:        uuid.New().String(),
			Code:      c.Code,
			Subcode:   c.Subcode,
			Name:      c.Name,
			IsSystem:  true,
			CreatedAt: time.Now(),
		}
		if err := db.Where("code = ? AND subcode = ?", c.Code, c.Subcode).
			FirstOrCreate(&cat).Error; err != nil {
			return err
		}
	}
	return nil
}
