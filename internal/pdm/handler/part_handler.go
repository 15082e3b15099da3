package handler

import (
	"github.com/bitfantasy/nimo-pdm/internal/pdm/service"
	"github.com/gin-gonic/gin"
)

type PartHandler struct {
	svc       *service.PartService
	workflow  *service.WorkflowService
	bomExport *service.BOMExportService
}

func NewPartHandler(svc *service.PartService, workflow *service.WorkflowService, bomExport *service.BOMExportService) *PartHandler {
	return &PartHandler{svc: svc, workflow: workflow, bomExport: bomExport}
}

// Create POST /parts
func (h *PartHandler) Create(c *gin.Context) {
	var req service.CreatePartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	part, err := h.svc.Create(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, part)
}

// Get GET /parts/:id
func (h *PartHandler) Get(c *gin.Context) {
	id, ok := PartID(c, "id")
	if !ok {
		return
	}
	part, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, part)
}

// List GET /parts?status=&page=&page_size=
func (h *PartHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	parts, total, err := h.svc.List(c.Request.Context(), c.Query("status"), page, pageSize)
	if err != nil {
		InternalError(c, "获取零件列表失败: "+err.Error())
		return
	}
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: parts,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// Update PUT /parts/:id
func (h *PartHandler) Update(c *gin.Context) {
	id, ok := PartID(c, "id")
	if !ok {
		return
	}
	var req service.UpdatePartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	part, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, part)
}

// ChangeStatus POST /parts/:id/status
func (h *PartHandler) ChangeStatus(c *gin.Context) {
	id, ok := PartID(c, "id")
	if !ok {
		return
	}
	var req service.ChangeStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	part, err := h.workflow.ChangeStatus(c.Request.Context(), id, req, GetActor(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, part)
}

// Categories GET /categories
func (h *PartHandler) Categories(c *gin.Context) {
	cats, err := h.svc.Categories(c.Request.Context())
	if err != nil {
		InternalError(c, "获取分类列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": cats})
}

// Properties GET /parts/:id/properties
func (h *PartHandler) Properties(c *gin.Context) {
	id, ok := PartID(c, "id")
	if !ok {
		return
	}
	props, err := h.svc.Properties(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": props})
}

// SetProperties PUT /parts/:id/properties
func (h *PartHandler) SetProperties(c *gin.Context) {
	id, ok := PartID(c, "id")
	if !ok {
		return
	}
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.SetProperties(c.Request.Context(), id, req); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, nil)
}

// AddManufacturerPart POST /parts/:id/manufacturer-parts
func (h *PartHandler) AddManufacturerPart(c *gin.Context) {
	id, ok := PartID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Manufacturer string `json:"manufacturer" binding:"required"`
		MPN          string `json:"mpn" binding:"required"`
		Description  string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	mp, err := h.svc.AddManufacturerPart(c.Request.Context(), id, req.Manufacturer, req.MPN, req.Description)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, mp)
}

// ListManufacturerParts GET /parts/:id/manufacturer-parts
func (h *PartHandler) ListManufacturerParts(c *gin.Context) {
	id, ok := PartID(c, "id")
	if !ok {
		return
	}
	mps, err := h.svc.ManufacturerParts(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": mps})
}

// DeleteManufacturerPart DELETE /manufacturer-parts/:mpId
func (h *PartHandler) DeleteManufacturerPart(c *gin.Context) {
	removed, err := h.svc.DeleteManufacturerPart(c.Request.Context(), c.Param("mpId"))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"removed": removed})
}

// ExportBOM GET /parts/:id/bom/export
func (h *PartHandler) ExportBOM(c *gin.Context) {
	id, ok := PartID(c, "id")
	if !ok {
		return
	}
	f, filename, err := h.bomExport.ExportBOM(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
