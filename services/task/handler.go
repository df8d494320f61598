package task

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"gorm.io/datatypes"

	"taskplane/pkg/config"
	"taskplane/pkg/errutil"
	"taskplane/pkg/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type RegisterRoutesParams struct {
	fx.In
	Engine  *gin.Engine
	Config  *config.Config
	Handler *Handler
}

func RegisterRoutes(p RegisterRoutesParams) {
	api := p.Engine.Group("/api/v1/tasks", middleware.Auth(p.Config))

	api.POST("/assign/:userId", p.Handler.Assign)
	api.POST("/assign-random/:userId", p.Handler.AssignRandom)
	api.POST("/reset/:userId", p.Handler.Reset)
	api.GET("/status/:userId", p.Handler.Status)
	api.GET("/stats/:userId", p.Handler.Stats)
	api.POST("/submit/:taskId", p.Handler.Submit)
	api.POST("/update-tasks", p.Handler.UpdateTasks)
}

// memberID resolves the path parameter, falling back to the authenticated
// caller for absent or placeholder values. An empty resolved id is
// rejected; repository lookups drop zero-value conditions, so it must
// never reach a query.
func memberID(c *gin.Context) (string, error) {
	id := c.Param("userId")
	if id == "" || id == "me" {
		id = middleware.CallerID(c)
	}
	if id == "" {
		return "", errutil.Unauthorized("caller identity not resolved", nil)
	}
	return id, nil
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func (h *Handler) Assign(c *gin.Context) {
	id, err := memberID(c)
	if err != nil {
		fail(c, err)
		return
	}

	result, err := h.svc.Allocate(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusCreated, "Tasks assigned successfully", result)
}

func (h *Handler) AssignRandom(c *gin.Context) {
	id, err := memberID(c)
	if err != nil {
		fail(c, err)
		return
	}

	count, _ := strconv.Atoi(c.Query("count"))

	result, err := h.svc.AllocateRandom(c.Request.Context(), id, count)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusCreated, "Tasks assigned successfully", result)
}

func (h *Handler) Reset(c *gin.Context) {
	id, err := memberID(c)
	if err != nil {
		fail(c, err)
		return
	}

	result, err := h.svc.Reallocate(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusCreated, "Tasks reset successfully", result)
}

func (h *Handler) Status(c *gin.Context) {
	id, err := memberID(c)
	if err != nil {
		fail(c, err)
		return
	}

	result, err := h.svc.Status(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Task status fetched", result)
}

func (h *Handler) Stats(c *gin.Context) {
	id, err := memberID(c)
	if err != nil {
		fail(c, err)
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Task stats fetched", stats)
}

type submitRequest struct {
	Rating int            `json:"rating"`
	Review string         `json:"review"`
	Result datatypes.JSON `json:"result"`
}

func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := h.svc.Submit(c.Request.Context(), c.Param("taskId"), req.Rating, req.Review, req.Result)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Task submitted successfully", result)
}

type updateTasksRequest struct {
	UserID     string  `json:"userId"`
	ProductID  string  `json:"productId"`
	StartAfter int     `json:"startAfter"`
	Percentage float64 `json:"percentage"`
}

func (r updateTasksRequest) validate() error {
	details := make([]errutil.Detail, 0)
	if r.UserID == "" {
		details = append(details, errutil.Detail{Field: "userId", Message: "User ID is required"})
	}
	if r.ProductID == "" {
		details = append(details, errutil.Detail{Field: "productId", Message: "Product ID is required"})
	}
	if r.StartAfter < 1 {
		details = append(details, errutil.Detail{Field: "startAfter", Message: "Task number must be at least 1"})
	}
	if len(details) > 0 {
		return errutil.ValidationFailed("missing required fields", nil, errutil.WithDetails(details...))
	}
	return nil
}

func (h *Handler) UpdateTasks(c *gin.Context) {
	var req updateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errutil.BadRequest("invalid request body", err))
		return
	}

	if err := req.validate(); err != nil {
		fail(c, err)
		return
	}

	task, err := h.svc.ReplaceSlot(c.Request.Context(), req.UserID, req.StartAfter, req.ProductID, req.Percentage)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Task updated successfully", task)
}
