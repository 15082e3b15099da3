package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/service"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/testutil"
)

func TestReleaseWorkflow(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	part := seedPart(t, env, "EL", "RES", "电阻")

	// draft -> in_review
	p, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusInReview}, testutil.Plain())
	if err != nil {
		t.Fatalf("Submit for review: %v", err)
	}
	if p.Status != entity.StatusInReview {
		t.Fatalf("Part status = %s", p.Status)
	}

	// in_review -> released，操作即是一条approve决定
	p, err = env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusReleased, Comment: "LGTM"}, testutil.Admin())
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if p.Status != entity.StatusReleased {
		t.Fatalf("Part status = %s", p.Status)
	}

	rev, err := env.Services.Revision.LatestReleased(ctx, part.ID)
	if err != nil {
		t.Fatalf("LatestReleased: %v", err)
	}
	if rev.CommitHash == "" {
		t.Error("Released revision missing merge commit hash")
	}
	if rev.ReleasedAt == nil {
		t.Error("Released revision missing release time")
	}

	// 发布后版本进入终态，决定一律拒绝
	_, err = env.Services.Revision.RecordDecision(ctx, rev.ID, "late-reviewer", entity.DecisionReject, "too late")
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition after release, got %v", err)
	}
}

func TestReleaseRequiresPermission(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	part := seedPart(t, env, "EL", "RES", "电阻")

	if _, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusInReview}, testutil.Plain()); err != nil {
		t.Fatalf("Submit for review: %v", err)
	}

	_, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusReleased}, testutil.Plain())
	if !errors.Is(err, service.ErrPermission) {
		t.Fatalf("Expected ErrPermission, got %v", err)
	}

	// 权限拒绝不得留下任何副作用：无approve记录、版本仍在评审中
	rev, _ := env.Services.Revision.Latest(ctx, part.ID)
	if rev.Status != entity.StatusInReview {
		t.Errorf("Revision status changed to %s", rev.Status)
	}
	recs, _ := env.Services.Revision.Approvals(ctx, rev.ID)
	if len(recs) != 0 {
		t.Errorf("Permission failure recorded %d decisions", len(recs))
	}
}

func TestReleaseBlockedByOpenReject(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	part := seedPart(t, env, "EL", "RES", "电阻")

	if _, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusInReview}, testutil.Plain()); err != nil {
		t.Fatalf("Submit for review: %v", err)
	}
	rev, _ := env.Services.Revision.Latest(ctx, part.ID)

	if _, err := env.Services.Revision.RecordDecision(ctx, rev.ID, "reviewer-a", entity.DecisionApprove, ""); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := env.Services.Revision.RecordDecision(ctx, rev.ID, "reviewer-b", entity.DecisionReject, "wrong footprint"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	// 有未解决的驳回，即使有approve也不能发布
	_, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusReleased}, testutil.Admin())
	if !errors.Is(err, service.ErrApprovalRequired) {
		t.Fatalf("Expected ErrApprovalRequired, got %v", err)
	}

	// 退回draft把驳回标记为已解决，重新评审后可发布
	if _, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusDraft, Comment: "rework"}, testutil.Plain()); err != nil {
		t.Fatalf("Back to draft: %v", err)
	}
	if _, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusInReview}, testutil.Plain()); err != nil {
		t.Fatalf("Resubmit: %v", err)
	}
	if _, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusReleased}, testutil.Admin()); err != nil {
		t.Fatalf("Release after rework: %v", err)
	}
}

func TestInvalidPartTransition(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	part := seedPart(t, env, "EL", "RES", "电阻")

	// draft不能直接released
	_, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusReleased}, testutil.Admin())
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}

	_, err = env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: "archived"}, testutil.Admin())
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition for unknown status, got %v", err)
	}
}

func TestObsoleteReleasedPart(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	part := seedPart(t, env, "EL", "RES", "电阻")

	if _, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusInReview}, testutil.Plain()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusReleased}, testutil.Admin()); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// 无活动版本时obsolete作用于最近发布的版本
	p, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusObsolete}, testutil.Plain())
	if err != nil {
		t.Fatalf("Obsolete: %v", err)
	}
	if p.Status != entity.StatusObsolete {
		t.Fatalf("Part status = %s", p.Status)
	}
}

func TestPartStatusProjection(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	part := seedPart(t, env, "EL", "RES", "电阻")

	// 发布A
	if _, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusInReview}, testutil.Plain()); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusReleased}, testutil.Admin()); err != nil {
		t.Fatal(err)
	}

	// 开新版B之后零件状态仍是released（已发布版本更靠前）
	if _, err := env.Services.Revision.Create(ctx, part.ID, "", "tester"); err != nil {
		t.Fatalf("Create revision B: %v", err)
	}
	if _, err := env.Services.Workflow.ChangeStatus(ctx, part.ID,
		service.ChangeStatusReq{Status: entity.StatusInReview}, testutil.Plain()); err != nil {
		t.Fatalf("Submit B: %v", err)
	}
	p, err := env.Services.Part.Get(ctx, part.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != entity.StatusReleased {
		t.Errorf("Projection = %s, want released", p.Status)
	}
}
