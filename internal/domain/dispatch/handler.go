package dispatch

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"notico/internal/common"
	"notico/internal/render"
)

// Handler exposes the management API: template CRUD and rendering, send
// manager discovery, synchronous sends, and async job enqueueing.
type Handler struct {
	registry *Registry
	enqueuer Enqueuer         // optional; /jobs returns 503 when absent
	logs     DeliveryLogStore // optional
	validate *validator.Validate
}

// NewHandler creates a new management API handler.
func NewHandler(registry *Registry, enqueuer Enqueuer, logs DeliveryLogStore) *Handler {
	return &Handler{
		registry: registry,
		enqueuer: enqueuer,
		logs:     logs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ListTemplateServices handles GET /template-manager.
// Only initialized services are advertised.
func (h *Handler) ListTemplateServices(c *gin.Context) {
	common.Success(c, http.StatusOK, gin.H{
		"template_managers": h.registry.TemplateServices(true),
	})
}

// ListTemplates handles GET /template-manager/:service.
func (h *Handler) ListTemplates(c *gin.Context) {
	tm, ok := h.registry.TemplateManager(c.Param("service"))
	if !ok {
		common.HandleError(c, common.NewUnknownServiceError(c.Param("service")))
		return
	}

	infos, err := tm.List(c.Request.Context())
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, infos)
}

// GetTemplate handles GET /template-manager/:service/:code.
func (h *Handler) GetTemplate(c *gin.Context) {
	tm, ok := h.registry.TemplateManager(c.Param("service"))
	if !ok {
		common.HandleError(c, common.NewUnknownServiceError(c.Param("service")))
		return
	}

	info, err := tm.Retrieve(c.Request.Context(), c.Param("code"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	if info == nil {
		common.HandleError(c, common.NewNotFoundError("template", c.Param("code")))
		return
	}

	common.Success(c, http.StatusOK, info)
}

// CreateTemplate handles POST /template-manager/:service/:code.
func (h *Handler) CreateTemplate(c *gin.Context) {
	h.upsertTemplate(c, false)
}

// UpdateTemplate handles PUT /template-manager/:service/:code.
func (h *Handler) UpdateTemplate(c *gin.Context) {
	h.upsertTemplate(c, true)
}

func (h *Handler) upsertTemplate(c *gin.Context, update bool) {
	tm, ok := h.registry.TemplateManager(c.Param("service"))
	if !ok {
		common.HandleError(c, common.NewUnknownServiceError(c.Param("service")))
		return
	}

	var body any
	if err := c.ShouldBindJSON(&body); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var (
		info *TemplateInfo
		err  error
	)
	if update {
		info, err = tm.Update(c.Request.Context(), c.Param("code"), body)
	} else {
		info, err = tm.Create(c.Request.Context(), c.Param("code"), body)
	}
	if err != nil {
		common.HandleError(c, err)
		return
	}

	status := http.StatusCreated
	if update {
		status = http.StatusOK
	}
	common.Success(c, status, info)
}

// DeleteTemplate handles DELETE /template-manager/:service/:code.
func (h *Handler) DeleteTemplate(c *gin.Context) {
	tm, ok := h.registry.TemplateManager(c.Param("service"))
	if !ok {
		common.HandleError(c, common.NewUnknownServiceError(c.Param("service")))
		return
	}

	if err := tm.Delete(c.Request.Context(), c.Param("code")); err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"code": c.Param("code")})
}

// renderRequest is the preview payload for POST .../render.
type renderRequest struct {
	Context         Context       `json:"context"`
	UndefinedPolicy render.Policy `json:"undefined_policy"`
	Output          string        `json:"output" validate:"omitempty,oneof=data html"`
}

// RenderTemplate handles POST /template-manager/:service/:code/render.
// Output selects structured data (default) or the HTML-wrapped markup.
func (h *Handler) RenderTemplate(c *gin.Context) {
	tm, ok := h.registry.TemplateManager(c.Param("service"))
	if !ok {
		common.HandleError(c, common.NewUnknownServiceError(c.Param("service")))
		return
	}

	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		common.HandleError(c, common.NewSchemaValidationError(err.Error()))
		return
	}
	if req.UndefinedPolicy == "" {
		req.UndefinedPolicy = render.DefaultPolicy
	}
	if !req.UndefinedPolicy.Valid() {
		common.HandleError(c, common.NewSchemaValidationError("unknown undefined_policy: "+string(req.UndefinedPolicy)))
		return
	}

	if req.Output == "html" {
		markup, err := tm.RenderHTML(c.Request.Context(), c.Param("code"), req.Context, req.UndefinedPolicy)
		if err != nil {
			common.HandleError(c, err)
			return
		}
		common.Success(c, http.StatusOK, gin.H{"html": markup})
		return
	}

	rendered, err := tm.Render(c.Request.Context(), c.Param("code"), req.Context, req.UndefinedPolicy)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, gin.H{"rendered": rendered})
}

// sendServiceInfo describes a send manager in the discovery listing.
type sendServiceInfo struct {
	Name           string `json:"name"`
	CanSendRaw     bool   `json:"can_send_raw"`
	DelimiterStart string `json:"delimiter_start"`
	DelimiterEnd   string `json:"delimiter_end"`
}

// ListSendServices handles GET /send-manager.
func (h *Handler) ListSendServices(c *gin.Context) {
	names := h.registry.SendServices(true)
	infos := make([]sendServiceInfo, 0, len(names))
	for _, name := range names {
		sm, _ := h.registry.SendManager(name)
		start, end := sm.TemplateManager().Delimiters()
		infos = append(infos, sendServiceInfo{
			Name:           name,
			CanSendRaw:     sm.CanSendRaw(),
			DelimiterStart: start,
			DelimiterEnd:   end,
		})
	}
	common.Success(c, http.StatusOK, infos)
}

// Send handles POST /send-manager/:service — a synchronous send.
func (h *Handler) Send(c *gin.Context) {
	sm, ok := h.registry.SendManager(c.Param("service"))
	if !ok {
		common.HandleError(c, common.NewUnknownServiceError(c.Param("service")))
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		common.HandleError(c, common.NewSchemaValidationError(err.Error()))
		return
	}

	result, err := sm.Send(c.Request.Context(), &req)
	if err != nil {
		slog.Error("send failed",
			"service", sm.ServiceName(),
			"template_code", req.TemplateCode,
			"error", err,
		)
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// SendRaw handles POST /send-manager/:service/raw.
func (h *Handler) SendRaw(c *gin.Context) {
	sm, ok := h.registry.SendManager(c.Param("service"))
	if !ok {
		common.HandleError(c, common.NewUnknownServiceError(c.Param("service")))
		return
	}

	var req RawSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		common.HandleError(c, common.NewSchemaValidationError(err.Error()))
		return
	}

	result, err := sm.SendRaw(c.Request.Context(), &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// enqueueRequest is the async job submission payload.
type enqueueRequest struct {
	SenderType    string          `json:"sender_type" validate:"required"`
	SenderPayload json.RawMessage `json:"sender_payload" validate:"required"`
}

// EnqueueJob handles POST /jobs — queues a dispatch job for the worker
// and returns 202 Accepted.
func (h *Handler) EnqueueJob(c *gin.Context) {
	if h.enqueuer == nil {
		common.Error(c, http.StatusServiceUnavailable, "job queue is not configured")
		return
	}

	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		common.HandleError(c, common.NewSchemaValidationError(err.Error()))
		return
	}

	// Reject unknown services before the job hits the queue.
	if _, ok := h.registry.SendManager(req.SenderType); !ok {
		common.HandleError(c, common.NewUnknownServiceError(req.SenderType))
		return
	}

	job := &JobPayload{
		Worker: WorkerNotificationSender,
		WorkerPayload: WorkerPayload{
			SenderType:    req.SenderType,
			SenderPayload: req.SenderPayload,
		},
	}

	if err := h.enqueuer.EnqueueDispatch(job); err != nil {
		slog.Error("enqueue dispatch job failed", "sender_type", req.SenderType, "error", err)
		common.Error(c, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	common.Success(c, http.StatusAccepted, gin.H{"status": "queued", "sender_type": req.SenderType})
}

// ListLogs handles GET /logs.
func (h *Handler) ListLogs(c *gin.Context) {
	if h.logs == nil {
		common.Error(c, http.StatusServiceUnavailable, "delivery log store is not configured")
		return
	}

	var filter LogFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid query parameters: "+err.Error())
		return
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	logs, total, err := h.logs.List(c.Request.Context(), filter)
	if err != nil {
		common.HandleError(c, err)
		return
	}

	common.Success(c, http.StatusOK, LogListResponse{
		Logs:     logs,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

// RegisterRoutes registers the management API routes on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/template-manager", h.ListTemplateServices)
	rg.GET("/template-manager/:service", h.ListTemplates)
	rg.GET("/template-manager/:service/:code", h.GetTemplate)
	rg.POST("/template-manager/:service/:code", h.CreateTemplate)
	rg.PUT("/template-manager/:service/:code", h.UpdateTemplate)
	rg.DELETE("/template-manager/:service/:code", h.DeleteTemplate)
	rg.POST("/template-manager/:service/:code/render", h.RenderTemplate)

	rg.GET("/send-manager", h.ListSendServices)
	rg.POST("/send-manager/:service", h.Send)
	rg.POST("/send-manager/:service/raw", h.SendRaw)

	rg.POST("/jobs", h.EnqueueJob)
	rg.GET("/logs", h.ListLogs)
}
