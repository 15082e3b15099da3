package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/service"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/testutil"
	"gorm.io/gorm"
)

func TestAllocateUnknownCategory(t *testing.T) {
	env := testutil.Setup(t)
	err := env.Store.Transaction(context.Background(), func(tx *gorm.DB) error {
		_, err := env.Services.Allocator.Allocate(tx, "XX", "YY")
		return err
	})
	if !errors.Is(err, service.ErrAllocation) {
		t.Fatalf("Expected ErrAllocation, got %v", err)
	}
}

func TestAllocateNormalizesCode(t *testing.T) {
	env := testutil.Setup(t)
	var id int64
	err := env.Store.Transaction(context.Background(), func(tx *gorm.DB) error {
		var err error
		id, err = env.Services.Allocator.Allocate(tx, " el ", "res")
		return err
	})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if id != 1 {
		t.Fatalf("Expected first id 1, got %d", id)
	}
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()

	// 分配与插入共用事务，串行化之下并发建零件不会拿到重复编号
	const n = 10
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			part, err := env.Services.Part.Create(ctx, service.CreatePartReq{
				Category: "EL", Subcategory: "RES", Name: "电阻",
			}, "tester")
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			ids <- part.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("Duplicate part id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("Expected %d parts, got %d", n, len(seen))
	}
}

func TestDisplayIDDerivation(t *testing.T) {
	p := entity.Part{ID: 42, Category: "EL", Subcategory: "RES"}
	if got := p.DisplayID(); got != "EL-RES-42" {
		t.Fatalf("DisplayID = %s", got)
	}
}
