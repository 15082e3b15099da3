package entity

import (
	"fmt"
	"time"
)

// Revision 零件版本，1:1对应一条git分支
// 已发布版本不可变；版本只会被置为obsolete，永不删除
type Revision struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	PartID      int64      `json:"part_id" gorm:"not null;uniqueIndex:uniq_part_version"`
	Version     string     `json:"version" gorm:"size:16;not null;uniqueIndex:uniq_part_version"`
	Status      string     `json:"status" gorm:"size:16;not null;default:draft"` // draft/in_review/released/obsolete
	Branch      string     `json:"branch" gorm:"size:128;not null;uniqueIndex"`
	CommitHash  string     `json:"commit_hash,omitempty" gorm:"size:64"` // 合入集成分支后记录
	Seq         int        `json:"seq" gorm:"not null;default:0"`        // 同一零件内的创建序号
	CreatedBy   string     `json:"created_by" gorm:"size:64"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// 关联
	Part      *Part            `json:"part,omitempty" gorm:"foreignKey:PartID"`
	Approvals []ApprovalRecord `json:"approvals,omitempty" gorm:"foreignKey:RevisionID"`
}

func (Revision) TableName() string {
	return "revisions"
}

// Terminal 是否处于终态（released仅保留obsolete出口）
func (r *Revision) Terminal() bool {
	return r.Status == StatusReleased || r.Status == StatusObsolete
}

// BranchName 版本分支名：part-<零件ID>-rev-<版本号>
// 版本号嵌入分支名以消除并发建版时的同名竞争
func BranchName(partID int64, version string) string {
	return fmt.Sprintf("part-%d-rev-%s", partID, version)
}

// IntegrationBranch 零件集成分支名
func IntegrationBranch(partID int64) string {
	return fmt.Sprintf("part-%d", partID)
}

// 审批决定常量
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ApprovalRecord 版本审批记录
// 未解决的reject会阻止released；版本退回draft时reject被标记为已解决
type ApprovalRecord struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	RevisionID string    `json:"revision_id" gorm:"size:36;not null;index"`
	Reviewer   string    `json:"reviewer" gorm:"size:64;not null"`
	Decision   string    `json:"decision" gorm:"size:16;not null"` // approve/reject
	Comment    string    `json:"comment,omitempty" gorm:"type:text"`
	Resolved   bool      `json:"resolved" gorm:"default:false"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ApprovalRecord) TableName() string {
	return "approval_records"
}
