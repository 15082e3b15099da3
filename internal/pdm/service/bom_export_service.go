package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/repository"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/store"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// BOMExportService 装配BOM导出（xlsx）
type BOMExportService struct {
	store *store.Store
	repos *repository.Repositories
}

// NewBOMExportService 创建BOM导出服务
func NewBOMExportService(st *store.Store, repos *repository.Repositories) *BOMExportService {
	return &BOMExportService{store: st, repos: repos}
}

// bomRow 展开后的一行BOM
type bomRow struct {
	Level    int
	Part     *entity.Part
	Quantity float64
	Unit     string
}

// ExportBOM 导出某零件的多级装配BOM
// 按assembly边先序展开，图不变量保证无环，展开必然终止
func (s *BOMExportService) ExportBOM(ctx context.Context, rootID int64) (*excelize.File, string, error) {
	var rows []bomRow
	var root *entity.Part
	err := s.store.WithConnection(ctx, func(db *gorm.DB) error {
		var err error
		root, err = s.repos.Part.FindByID(db, rootID)
		if err != nil {
			return fmt.Errorf("load part %d: %w", rootID, err)
		}
		rows, err = s.expand(db, rootID, 1)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "BOM"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	headers := []string{"层级", "编号", "名称", "描述", "状态", "数量", "单位"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for i, r := range rows {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.Level)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.Part.DisplayID())
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.Part.Name)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.Part.Description)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.Part.Status)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.Quantity)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), r.Unit)
	}

	widths := []float64{8, 18, 28, 36, 12, 10, 8}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("BOM_%s_%s.xlsx", root.DisplayID(), time.Now().Format("20060102"))
	return f, filename, nil
}

// expand 先序展开装配树
func (s *BOMExportService) expand(db *gorm.DB, parentID int64, level int) ([]bomRow, error) {
	edges, err := s.repos.Relationship.ChildrenOf(db, parentID)
	if err != nil {
		return nil, fmt.Errorf("expand part %d: %w", parentID, err)
	}
	var rows []bomRow
	for _, e := range edges {
		if e.Kind != entity.RelAssembly {
			continue
		}
		child, err := s.repos.Part.FindByID(db, e.ChildID)
		if err != nil {
			return nil, fmt.Errorf("load child part %d: %w", e.ChildID, err)
		}
		rows = append(rows, bomRow{Level: level, Part: child, Quantity: e.Quantity, Unit: e.Unit})
		sub, err := s.expand(db, e.ChildID, level+1)
		if err != nil {
			return nil, err
		}
		rows = append(rows, sub...)
	}
	return rows, nil
}
