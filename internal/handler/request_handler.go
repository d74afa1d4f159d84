package handler

import (
	"errors"
	"net/http"

	"uk-requests/internal/middleware"
	"uk-requests/internal/service"
	"uk-requests/internal/workflow"
	"uk-requests/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RequestHandler struct {
	requestService service.RequestService
	log            *zap.Logger
}

func NewRequestHandler(requestService service.RequestService, log *zap.Logger) *RequestHandler {
	return &RequestHandler{requestService: requestService, log: log}
}

// RegisterRoutes binds the request endpoints. auth must resolve the caller's actor.
func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	requests := router.Group("/api/requests")
	requests.Use(auth)
	{
		requests.GET("/statuses", h.ListStatuses)
		requests.GET("/categories", h.ListCategories)
		requests.GET("", h.ListRequests)
		requests.POST("", h.CreateRequest)
		requests.GET("/:id", h.GetRequest)
		requests.PATCH("/:id", h.UpdateRequest)
		requests.DELETE("/:id", h.DeleteRequest)
		requests.POST("/:id/status", h.ChangeStatus)
		requests.GET("/:id/history", h.GetHistory)
	}
}

// illegalTransitionDetails lets clients render the allowed moves.
type illegalTransitionDetails struct {
	CurrentStatus   string   `json:"current_status"`
	TargetStatus    string   `json:"target_status"`
	AllowedStatuses []string `json:"allowed_statuses"`
}

// writeError maps service and workflow errors onto HTTP responses.
func (h *RequestHandler) writeError(c *gin.Context, err error) {
	var forbidden *workflow.ForbiddenError
	var illegal *workflow.IllegalTransitionError

	switch {
	case errors.As(err, &illegal):
		allowed := make([]string, 0, len(illegal.Allowed))
		for _, s := range illegal.Allowed {
			allowed = append(allowed, string(s))
		}
		c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, workflow.KindIllegalTransition.String(), err.Error(),
			illegalTransitionDetails{CurrentStatus: string(illegal.Current), TargetStatus: string(illegal.Target), AllowedStatuses: allowed}))
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, response.ErrorWithCode(http.StatusForbidden, workflow.KindForbidden.String(), err.Error(),
			gin.H{"reason": forbidden.Reason}))
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, response.ErrorWithCode(http.StatusNotFound, workflow.KindNotFound.String(), "Request not found", nil))
	case errors.Is(err, workflow.ErrPersistenceConflict):
		c.JSON(http.StatusConflict, response.ErrorWithCode(http.StatusConflict, workflow.KindPersistenceConflict.String(), err.Error(), nil))
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusForbidden, response.ErrorWithCode(http.StatusForbidden, "access_denied", err.Error(), nil))
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, "validation", err.Error(), nil))
	default:
		h.log.Error("request handling failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
	}
}

func mustActor(c *gin.Context) (workflow.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
	}
	return actor, ok
}

// ListStatuses returns the status catalogue
// @Summary      List request statuses
// @Description  Every status with its label and the statuses it may move to
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.StatusInfo}
// @Router       /api/requests/statuses [get]
func (h *RequestHandler) ListStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.requestService.Statuses()))
}

// ListCategories returns the category catalogue
// @Summary      List request categories
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.CategoryInfo}
// @Router       /api/requests/categories [get]
func (h *RequestHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.requestService.Categories()))
}

// ListRequests returns the requests visible to the caller
// @Summary      List requests
// @Description  Residents see their own requests, company staff see requests from their houses
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        status    query     string  false  "Filter by status"
// @Param        category  query     string  false  "Filter by category"
// @Success      200       {object}  response.Response{data=[]service.RequestResponse}
// @Failure      400       {object}  response.Response
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	filter := service.RequestFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
	}
	requests, err := h.requestService.ListRequests(c.Request.Context(), actor, filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"items": requests,
		"total": len(requests),
	}))
}

// CreateRequest files a new request
// @Summary      Create a request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRequestDTO  true  "Request payload"
// @Success      201      {object}  response.Response{data=service.RequestResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req service.CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.requestService.CreateRequest(c.Request.Context(), actor, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// GetRequest returns one request with its history
// @Summary      Get a request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	result, err := h.requestService.GetRequest(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UpdateRequest edits title and description of a new request
// @Summary      Edit a request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Request ID"
// @Param        payload  body      service.UpdateRequestDTO  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/requests/{id} [patch]
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req service.UpdateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.requestService.UpdateRequest(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// DeleteRequest removes a request and its history
// @Summary      Delete a request
// @Tags         requests
// @Security     BearerAuth
// @Param        id   path  string  true  "Request ID"
// @Success      204
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /api/requests/{id} [delete]
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	if err := h.requestService.DeleteRequest(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ChangeStatus moves a request through the workflow
// @Summary      Change request status
// @Description  Applies one transition and records it in the request history
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Request ID"
// @Param        payload  body      service.ChangeStatusDTO  true  "Target status and comment"
// @Success      200      {object}  response.Response{data=object}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/status [post]
func (h *RequestHandler) ChangeStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req service.ChangeStatusDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, entry, err := h.requestService.ChangeStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.log.Info("request status changed",
		zap.String("request_id", result.ID),
		zap.String("new_status", entry.NewStatus),
		zap.String("actor_id", actor.ID.String()))

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"request": result,
		"entry":   entry,
	}))
}

// GetHistory returns the status history of a request, oldest first
// @Summary      Request history
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]service.HistoryResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id}/history [get]
func (h *RequestHandler) GetHistory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	history, err := h.requestService.GetHistory(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}
