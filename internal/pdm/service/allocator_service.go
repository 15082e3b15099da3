package service

import (
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/repository"
	"gorm.io/gorm"
)

// AllocatorService 编号分配器：产生全局递增的零件ID并推导展示编号
// Allocate必须与零件插入共用同一事务，靠事务隔离防止两次分配读到相同的next值
type AllocatorService struct {
	partRepo *repository.PartRepository
}

// NewAllocatorService 创建编号分配器
func NewAllocatorService(partRepo *repository.PartRepository) *AllocatorService {
	return &AllocatorService{partRepo: partRepo}
}

// Allocate 在tx内取下一个零件ID，编码未登记时返回ErrAllocation
func (s *AllocatorService) Allocate(tx *gorm.DB, category, subcategory string) (int64, error) {
	category = strings.ToUpper(strings.TrimSpace(category))
	subcategory = strings.ToUpper(strings.TrimSpace(subcategory))
	if category == "" || subcategory == "" {
		return 0, fmt.Errorf("%w: empty code", ErrAllocation)
	}

	ok, err := s.partRepo.CategoryExists(tx, category, subcategory)
	if err != nil {
		return 0, fmt.Errorf("check category %s-%s: %w", category, subcategory, err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s-%s", ErrAllocation, category, subcategory)
	}

	maxID, err := s.partRepo.MaxID(tx)
	if err != nil {
		return 0, fmt.Errorf("read max part id: %w", err)
	}
	return maxID + 1, nil
}

// Normalize 归一化编码，供服务层在校验前统一大小写
func (s *AllocatorService) Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
