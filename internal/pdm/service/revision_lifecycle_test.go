package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/service"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/testutil"
	"github.com/google/uuid"
)

// obsoleteActive 将零件当前活动版本走到obsolete，腾出开新版的位置
func obsoleteActive(t *testing.T, env *testutil.TestEnv, partID int64) {
	t.Helper()
	_, err := env.Services.Workflow.ChangeStatus(context.Background(), partID,
		service.ChangeStatusReq{Status: entity.StatusObsolete}, testutil.Admin())
	if err != nil {
		t.Fatalf("Obsolete active revision: %v", err)
	}
}

func TestCreatePartScaffoldsBranches(t *testing.T) {
	env := testutil.Setup(t)
	part := seedPart(t, env, "EL", "RES", "电阻")

	if part.DisplayID() != "EL-RES-1" {
		t.Errorf("DisplayID = %s", part.DisplayID())
	}
	if len(part.Revisions) != 1 || part.Revisions[0].Version != "A" {
		t.Fatalf("Expected initial revision A, got %+v", part.Revisions)
	}

	for _, b := range []string{"part-1", "part-1-rev-A"} {
		exists, err := env.Repo.BranchExists(b)
		if err != nil || !exists {
			t.Errorf("Branch %s missing (exists=%v err=%v)", b, exists, err)
		}
	}
}

func TestSecondActiveRevisionRejected(t *testing.T) {
	env := testutil.Setup(t)
	part := seedPart(t, env, "EL", "RES", "电阻")

	// 版本A仍是draft，禁止再开新版
	_, err := env.Services.Revision.Create(context.Background(), part.ID, "", "tester")
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestCreateRevisionDefaultLabel(t *testing.T) {
	env := testutil.Setup(t)
	part := seedPart(t, env, "EL", "RES", "电阻")
	obsoleteActive(t, env, part.ID)

	rev, err := env.Services.Revision.Create(context.Background(), part.ID, "", "tester")
	if err != nil {
		t.Fatalf("Create revision: %v", err)
	}
	if rev.Version != "B" {
		t.Errorf("Expected default label B, got %s", rev.Version)
	}
	if rev.Branch != "part-1-rev-B" {
		t.Errorf("Branch = %s", rev.Branch)
	}
	if rev.Seq != 2 {
		t.Errorf("Seq = %d", rev.Seq)
	}
}

func TestCreateRevisionLabelMustIncrease(t *testing.T) {
	env := testutil.Setup(t)
	part := seedPart(t, env, "EL", "RES", "电阻")
	obsoleteActive(t, env, part.ID)

	if _, err := env.Services.Revision.Create(context.Background(), part.ID, "C", "tester"); err != nil {
		t.Fatalf("Create revision C: %v", err)
	}
	obsoleteActive(t, env, part.ID)

	// B从未用过（无分支可撞），小于最新版号C，只能触发版号门槛
	_, err := env.Services.Revision.Create(context.Background(), part.ID, "B", "tester")
	if !errors.Is(err, service.ErrVersionLabel) {
		t.Fatalf("Expected ErrVersionLabel, got %v", err)
	}
}

func TestCreateRevisionSameLabelCollision(t *testing.T) {
	env := testutil.Setup(t)
	part := seedPart(t, env, "EL", "RES", "电阻")

	// 同号重复建版：版本A仍在，后到者必须拿到命名冲突而不是别的门槛错误
	_, err := env.Services.Revision.Create(context.Background(), part.ID, "A", "tester")
	if !errors.Is(err, service.ErrBranchCollision) {
		t.Fatalf("Expected ErrBranchCollision, got %v", err)
	}

	revs, err := env.Services.Revision.List(context.Background(), part.ID)
	if err != nil {
		t.Fatalf("List revisions: %v", err)
	}
	if len(revs) != 1 {
		t.Fatalf("Expected exactly one revision A, got %d", len(revs))
	}
}

func TestCreateRevisionBranchCollision(t *testing.T) {
	env := testutil.Setup(t)
	part := seedPart(t, env, "EL", "RES", "电阻")
	obsoleteActive(t, env, part.ID)

	// git侧已被占用的分支名
	if err := env.Repo.CreateBranch("part-1-rev-B", "part-1"); err != nil {
		t.Fatalf("Pre-create branch: %v", err)
	}

	_, err := env.Services.Revision.Create(context.Background(), part.ID, "B", "tester")
	if !errors.Is(err, service.ErrBranchCollision) {
		t.Fatalf("Expected ErrBranchCollision, got %v", err)
	}

	// 失败后不留版本行
	revs, _ := env.Services.Revision.List(context.Background(), part.ID)
	if len(revs) != 1 {
		t.Fatalf("Expected only revision A, got %d revisions", len(revs))
	}
}

func TestCreateRevisionCompensatesBranchOnRowFailure(t *testing.T) {
	env := testutil.Setup(t)
	part := seedPart(t, env, "EL", "RES", "电阻")
	obsoleteActive(t, env, part.ID)

	// 行侧冲突：占用Branch唯一索引但不占用分支名本身
	ghost := &entity.Revision{
		ID: uuid.New().String(), PartID: part.ID, Version: "Z",
		Status: entity.StatusObsolete, Branch: "part-1-rev-B", Seq: 0,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	if err := env.DB.Create(ghost).Error; err != nil {
		t.Fatalf("Seed ghost revision: %v", err)
	}

	_, err := env.Services.Revision.Create(context.Background(), part.ID, "B", "tester")
	if err == nil {
		t.Fatal("Expected row insert failure")
	}

	// 事务回滚后分支被补偿删除，两侧一致
	exists, berr := env.Repo.BranchExists("part-1-rev-B")
	if berr != nil {
		t.Fatalf("BranchExists: %v", berr)
	}
	if exists {
		t.Fatal("Branch survived metadata rollback")
	}
}

func TestObsoleteRevisionKeepsBranch(t *testing.T) {
	env := testutil.Setup(t)
	part := seedPart(t, env, "EL", "RES", "电阻")
	obsoleteActive(t, env, part.ID)

	exists, err := env.Repo.BranchExists("part-1-rev-A")
	if err != nil || !exists {
		t.Fatalf("Obsolete removed the revision branch (exists=%v err=%v)", exists, err)
	}
}

func TestDecisionOnlyWhileInReview(t *testing.T) {
	env := testutil.Setup(t)
	part := seedPart(t, env, "EL", "RES", "电阻")
	revs, _ := env.Services.Revision.List(context.Background(), part.ID)

	// draft阶段不接受审批决定
	_, err := env.Services.Revision.RecordDecision(context.Background(), revs[0].ID, "reviewer", entity.DecisionApprove, "")
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestAdvanceStatusProjectsPartStatus(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	part := seedPart(t, env, "EL", "RES", "电阻")
	revs, err := env.Services.Revision.List(ctx, part.ID)
	if err != nil || len(revs) != 1 {
		t.Fatalf("List revisions: %v (%d)", err, len(revs))
	}
	rev := revs[0]

	// 直接走版本状态机，零件缓存状态必须跟着事实源走
	if _, err := env.Services.Revision.AdvanceStatus(ctx, rev.ID, entity.StatusInReview); err != nil {
		t.Fatalf("Advance to in_review: %v", err)
	}
	got, err := env.Services.Part.Get(ctx, part.ID)
	if err != nil {
		t.Fatalf("Get part: %v", err)
	}
	if got.Status != entity.StatusInReview {
		t.Errorf("Part status = %s, want %s", got.Status, entity.StatusInReview)
	}

	if _, err := env.Services.Revision.RecordDecision(ctx, rev.ID, "reviewer", entity.DecisionApprove, "ok"); err != nil {
		t.Fatalf("Record approval: %v", err)
	}
	if _, err := env.Services.Revision.AdvanceStatus(ctx, rev.ID, entity.StatusReleased); err != nil {
		t.Fatalf("Advance to released: %v", err)
	}
	got, err = env.Services.Part.Get(ctx, part.ID)
	if err != nil {
		t.Fatalf("Get part: %v", err)
	}
	if got.Status != entity.StatusReleased {
		t.Errorf("Part status = %s, want %s", got.Status, entity.StatusReleased)
	}
}
