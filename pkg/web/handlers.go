// Package web provides HTTP handlers and REST API endpoints for workflow
// management, business event ingestion, and approval decisions.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/flowhive/flowhive/pkg/approval"
	"github.com/flowhive/flowhive/pkg/dispatcher"
	"github.com/flowhive/flowhive/pkg/models"
	"github.com/flowhive/flowhive/pkg/persistence"
	"github.com/flowhive/flowhive/pkg/services"
)

const defaultLogLimit = 100

type APIHandlers struct {
	workflowService *services.Workflow
	templateService *services.Template
	dispatcher      *dispatcher.Dispatcher
	approvals       *approval.Service
	trail           persistence.ExecutionLogStore
	validator       *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	templateService *services.Template,
	eventDispatcher *dispatcher.Dispatcher,
	approvals *approval.Service,
	trail persistence.ExecutionLogStore,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		templateService: templateService,
		dispatcher:      eventDispatcher,
		approvals:       approvals,
		trail:           trail,
		validator:       validate,
	}
}

// Register wires all routes onto the fiber app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	w := app.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/active", h.SetWorkflowActive)
	w.Get("/:id/log", h.GetWorkflowLog)

	templates := app.Group("/templates")
	templates.Post("/", h.CreateTemplate)
	templates.Get("/:id", h.GetTemplate)
	templates.Patch("/:id", h.UpdateTemplate)

	app.Post("/events", h.IngestEvent)
	app.Post("/approvals/:token", h.DecideApproval)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return badRequest(c, "organization_id query parameter is required")
	}

	workflows, err := h.workflowService.List(c.Context(), organizationID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.WorkflowDefinition{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		IsActive:       req.IsActive,
		Nodes:          req.Nodes,
		Connections:    req.Connections,
		Variables:      req.Variables,
		Metadata:       req.Metadata,
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.WorkflowDefinition{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		Nodes:       req.Nodes,
		Connections: req.Connections,
		Variables:   req.Variables,
		Metadata:    req.Metadata,
	}

	updated, err := h.workflowService.Update(c.Context(), id, workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetWorkflowActive(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req SetActiveRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.workflowService.SetActive(c.Context(), id, req.Active)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

// GetWorkflowLog reads the workflow's execution trail, newest first. Severity
// and limit are optional query filters.
func (h *APIHandlers) GetWorkflowLog(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.workflowService.FetchByID(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	severity := models.LogSeverity(c.Query("severity"))

	switch severity {
	case "", models.SeverityInfo, models.SeverityWarn, models.SeverityError:
	default:
		return badRequest(c, "severity must be one of info, warn, error")
	}

	limit := defaultLogLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return badRequest(c, "limit must be a positive integer")
		}

		limit = parsed
	}

	entries, err := h.trail.LogEntries(c.Context(), id, severity, limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}

// IngestEvent accepts one business event and fans it out to every matching
// workflow trigger. Zero matches is a normal outcome, not an error.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var req IngestEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := &models.BusinessEvent{
		ID:             req.ID,
		OrganizationID: req.OrganizationID,
		Category:       req.Category,
		EntityType:     req.EntityType,
		Action:         req.Action,
		Payload:        req.Payload,
		OccurredAt:     time.Now().UTC(),
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	matched, err := h.dispatcher.Dispatch(c.Context(), event)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": event.ID,
		"matched":  matched,
	})
}

func (h *APIHandlers) DecideApproval(c fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return badRequest(c, "Approval token is required")
	}

	var req DecideApprovalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	decided, err := h.approvals.Decide(c.Context(), token, *req.Approve, req.DecidedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(decided)
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return badRequest(c, "organization_id query parameter is required")
	}

	template, err := h.templateService.FetchByID(c.Context(), organizationID, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) CreateTemplate(c fiber.Ctx) error {
	var req CreateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	template := &models.ActionTemplate{
		ID:             req.ID,
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Channel:        models.NotificationChannel(req.Channel),
		Subject:        req.Subject,
		Body:           req.Body,
		IsLocked:       req.IsLocked,
	}

	created, err := h.templateService.Create(c.Context(), template)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateTemplate(c fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return badRequest(c, "organization_id query parameter is required")
	}

	var req UpdateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.templateService.Update(c.Context(), organizationID, c.Params("id"), req.Subject, req.Body)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}
