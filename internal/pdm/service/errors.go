package service

import "errors"

// 组件级错误分类，全部以值返回并可被errors.Is识别
// 底层gorm/git错误由各服务用%w包一层上下文后携带
var (
	// ErrAllocation 大类/小类编码未登记
	ErrAllocation = errors.New("unrecognized category code")
	// ErrCycle 新增assembly边会形成环
	ErrCycle = errors.New("assembly relationship would create a cycle")
	// ErrInvalidQuantity assembly边数量必须大于0
	ErrInvalidQuantity = errors.New("assembly quantity must be positive")
	// ErrRelationKind 未知的关系类型
	ErrRelationKind = errors.New("unknown relationship kind")
	// ErrBranchCollision 版本分支名已存在
	ErrBranchCollision = errors.New("revision branch already exists")
	// ErrInvalidTransition 状态机不允许的迁移
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPermission 操作者缺少所需能力
	ErrPermission = errors.New("permission denied")
	// ErrVersionLabel 版本号必须在零件内单调递增
	ErrVersionLabel = errors.New("version label must be greater than the latest revision")
	// ErrApprovalRequired 缺少审批通过或存在未解决的驳回
	ErrApprovalRequired = errors.New("release requires at least one approval and no open rejection")
)
