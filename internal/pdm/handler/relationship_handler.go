package handler

import (
	"github.com/bitfantasy/nimo-pdm/internal/pdm/service"
	"github.com/gin-gonic/gin"
)

type RelationshipHandler struct {
	svc *service.RelationshipService
}

func NewRelationshipHandler(svc *service.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{svc: svc}
}

// Add POST /relationships
func (h *RelationshipHandler) Add(c *gin.Context) {
	var req service.AddRelationshipReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	rel, err := h.svc.Add(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, rel)
}

// Children GET /parts/:id/relationships/children
func (h *RelationshipHandler) Children(c *gin.Context) {
	id, ok := PartID(c, "id")
	if !ok {
		return
	}
	rels, err := h.svc.Children(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": rels})
}

// Parents GET /parts/:id/relationships/parents
func (h *RelationshipHandler) Parents(c *gin.Context) {
	id, ok := PartID(c, "id")
	if !ok {
		return
	}
	rels, err := h.svc.Parents(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": rels})
}

// Remove DELETE /relationships/:relId
func (h *RelationshipHandler) Remove(c *gin.Context) {
	removed, err := h.svc.Remove(c.Request.Context(), c.Param("relId"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"removed": removed})
}
