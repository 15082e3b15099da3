package handler

import (
	"github.com/bitfantasy/nimo-pdm/internal/pdm/entity"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/service"
	"github.com/gin-gonic/gin"
)

type RevisionHandler struct {
	svc *service.RevisionService
}

func NewRevisionHandler(svc *service.RevisionService) *RevisionHandler {
	return &RevisionHandler{svc: svc}
}

// Create POST /parts/:id/revisions
func (h *RevisionHandler) Create(c *gin.Context) {
	partID, ok := PartID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Version string `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	rev, err := h.svc.Create(c.Request.Context(), partID, req.Version, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, rev)
}

// List GET /parts/:id/revisions
func (h *RevisionHandler) List(c *gin.Context) {
	partID, ok := PartID(c, "id")
	if !ok {
		return
	}
	revs, err := h.svc.List(c.Request.Context(), partID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": revs})
}

// Latest GET /parts/:id/revisions/latest
func (h *RevisionHandler) Latest(c *gin.Context) {
	partID, ok := PartID(c, "id")
	if !ok {
		return
	}
	rev, err := h.svc.Latest(c.Request.Context(), partID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, rev)
}

// LatestReleased GET /parts/:id/revisions/latest-released
func (h *RevisionHandler) LatestReleased(c *gin.Context) {
	partID, ok := PartID(c, "id")
	if !ok {
		return
	}
	rev, err := h.svc.LatestReleased(c.Request.Context(), partID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, rev)
}

// UpdateStatus PUT /revisions/:revId/status
// 直接驱动单个版本的状态机，零件缓存状态随之同事务重算
func (h *RevisionHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	// released与零件级入口同规：需要提升能力
	if req.Status == entity.StatusReleased && !GetActor(c).Can(service.PermRelease) {
		Forbidden(c, "发布需要 "+service.PermRelease+" 能力")
		return
	}
	rev, err := h.svc.AdvanceStatus(c.Request.Context(), c.Param("revId"), req.Status)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, rev)
}

// Decide POST /revisions/:revId/decisions
func (h *RevisionHandler) Decide(c *gin.Context) {
	var req struct {
		Decision string `json:"decision" binding:"required"`
		Comment  string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	rec, err := h.svc.RecordDecision(c.Request.Context(), c.Param("revId"), GetUserID(c), req.Decision, req.Comment)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, rec)
}

// Approvals GET /revisions/:revId/decisions
func (h *RevisionHandler) Approvals(c *gin.Context) {
	recs, err := h.svc.Approvals(c.Request.Context(), c.Param("revId"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": recs})
}
