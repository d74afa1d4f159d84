package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"uk-requests/internal/metrics"
	"uk-requests/internal/model"
	"uk-requests/internal/repository"
	"uk-requests/internal/workflow"
	ws "uk-requests/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// listCap bounds unpaginated list responses.
const listCap = 200

// --- DTOs ---

type CreateRequestDTO struct {
	Category    string `json:"category" binding:"required"`
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	Price       string `json:"price"` // decimal string, empty or "0" for free services
}

type UpdateRequestDTO struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description"`
}

type ChangeStatusDTO struct {
	Status  string `json:"status" binding:"required"`
	Comment string `json:"comment"`
}

type RequestFilter struct {
	Status   string
	Category string
}

type HistoryResponse struct {
	ID            string  `json:"id"`
	OldStatus     *string `json:"old_status"`
	NewStatus     string  `json:"new_status"`
	Comment       string  `json:"comment"`
	ChangedBy     *string `json:"changed_by"`
	ChangedByName string  `json:"changed_by_name,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type RequestResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Category        string            `json:"category"`
	CategoryLabel   string            `json:"category_label"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Status          string            `json:"status"`
	StatusLabel     string            `json:"status_label"`
	AllowedStatuses []string          `json:"allowed_statuses"`
	Price           string            `json:"price"`
	PaymentStatus   string            `json:"payment_status"`
	UserName        string            `json:"user_name,omitempty"`
	UserAddress     string            `json:"user_address,omitempty"`
	UserApartment   string            `json:"user_apartment,omitempty"`
	History         []HistoryResponse `json:"history"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

type StatusInfo struct {
	Value    string   `json:"value"`
	Label    string   `json:"label"`
	Targets  []string `json:"targets"`
	Terminal bool     `json:"terminal"`
}

type CategoryInfo struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// EventPublisher receives request lifecycle events after they are committed.
type EventPublisher interface {
	Publish(evt ws.Event)
}

// --- Interface ---

type RequestService interface {
	CreateRequest(ctx context.Context, actor workflow.Actor, req CreateRequestDTO) (RequestResponse, error)
	GetRequest(ctx context.Context, actor workflow.Actor, id string) (RequestResponse, error)
	ListRequests(ctx context.Context, actor workflow.Actor, filter RequestFilter) ([]RequestResponse, error)
	UpdateRequest(ctx context.Context, actor workflow.Actor, id string, req UpdateRequestDTO) (RequestResponse, error)
	DeleteRequest(ctx context.Context, actor workflow.Actor, id string) error
	ChangeStatus(ctx context.Context, actor workflow.Actor, id string, req ChangeStatusDTO) (RequestResponse, HistoryResponse, error)
	GetHistory(ctx context.Context, actor workflow.Actor, id string) ([]HistoryResponse, error)
	Statuses() []StatusInfo
	Categories() []CategoryInfo
}

type requestService struct {
	requests repository.RequestRepository
	history  repository.HistoryRepository
	machine  *workflow.Machine
	events   EventPublisher // optional
}

func NewRequestService(requests repository.RequestRepository, history repository.HistoryRepository, machine *workflow.Machine, events EventPublisher) RequestService {
	return &requestService{requests: requests, history: history, machine: machine, events: events}
}

// --- Implementation ---

func (s *requestService) CreateRequest(ctx context.Context, actor workflow.Actor, dto CreateRequestDTO) (RequestResponse, error) {
	if actor.HouseID == nil {
		return RequestResponse{}, fmt.Errorf("%w: link your address in the profile before filing requests", ErrValidation)
	}

	category := model.RequestCategory(dto.Category)
	if !category.Valid() {
		return RequestResponse{}, fmt.Errorf("%w: unknown category %q", ErrValidation, dto.Category)
	}

	title := strings.TrimSpace(dto.Title)
	if title == "" {
		return RequestResponse{}, fmt.Errorf("%w: title is required", ErrValidation)
	}

	price := decimal.Zero
	if dto.Price != "" {
		parsed, err := decimal.NewFromString(dto.Price)
		if err != nil {
			return RequestResponse{}, fmt.Errorf("%w: invalid price: %v", ErrValidation, err)
		}
		if parsed.IsNegative() {
			return RequestResponse{}, fmt.Errorf("%w: price cannot be negative", ErrValidation)
		}
		price = parsed
	}

	req := &model.Request{
		UserID:      actor.ID,
		Category:    category,
		Title:       title,
		Description: dto.Description,
		Price:       price,
	}
	if price.IsPositive() {
		req.PaymentStatus = model.PaymentPending
	}

	entry, err := s.machine.Create(ctx, req, actor)
	if err != nil {
		return RequestResponse{}, err
	}

	// committed already; publish even if the reload fails
	full, reloadErr := s.requests.FindByIDWithRelations(ctx, req.ID)
	if reloadErr != nil {
		full = req
	}
	s.publish(ws.Event{
		Type:      ws.EventRequestCreated,
		RequestID: req.ID.String(),
		OwnerID:   req.UserID.String(),
		CompanyID: companyOf(full),
		NewStatus: string(req.Status),
		ChangedBy: actor.ID.String(),
		At:        entry.CreatedAt,
	})

	if reloadErr != nil {
		return RequestResponse{}, fmt.Errorf("failed to reload request: %w", reloadErr)
	}
	return toRequestResponse(*full), nil
}

func (s *requestService) GetRequest(ctx context.Context, actor workflow.Actor, id string) (RequestResponse, error) {
	requestID, err := parseID(id)
	if err != nil {
		return RequestResponse{}, err
	}

	req, err := s.requests.FindByIDWithRelations(ctx, requestID)
	if err != nil {
		return RequestResponse{}, err
	}
	if err := canView(actor, req); err != nil {
		return RequestResponse{}, err
	}

	return toRequestResponse(*req), nil
}

func (s *requestService) ListRequests(ctx context.Context, actor workflow.Actor, filter RequestFilter) ([]RequestResponse, error) {
	repoFilter := repository.RequestFilter{Limit: listCap}

	switch actor.Role {
	case model.RoleResident:
		repoFilter.UserID = &actor.ID
	case model.RoleDispatcher, model.RoleAdmin:
		if actor.CompanyID == nil {
			return []RequestResponse{}, nil
		}
		repoFilter.CompanyID = actor.CompanyID
	case model.RoleSuperAdmin:
	default:
		return nil, ErrAccessDenied
	}

	if filter.Status != "" {
		status := model.RequestStatus(filter.Status)
		if !workflow.IsKnown(status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
		}
		repoFilter.Status = status
	}
	if filter.Category != "" {
		category := model.RequestCategory(filter.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, filter.Category)
		}
		repoFilter.Category = category
	}

	requests, err := s.requests.List(ctx, repoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	result := make([]RequestResponse, 0, len(requests))
	for _, r := range requests {
		result = append(result, toRequestResponse(r))
	}
	return result, nil
}

func (s *requestService) UpdateRequest(ctx context.Context, actor workflow.Actor, id string, dto UpdateRequestDTO) (RequestResponse, error) {
	requestID, err := parseID(id)
	if err != nil {
		return RequestResponse{}, err
	}

	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return RequestResponse{}, err
	}
	if !actor.Owns(req) {
		return RequestResponse{}, fmt.Errorf("%w: only the author can edit a request", ErrAccessDenied)
	}
	if req.Status != model.StatusNew {
		return RequestResponse{}, fmt.Errorf("%w: only new requests can be edited", ErrValidation)
	}

	if dto.Title != nil {
		title := strings.TrimSpace(*dto.Title)
		if title == "" {
			return RequestResponse{}, fmt.Errorf("%w: title cannot be empty", ErrValidation)
		}
		req.Title = title
	}
	if dto.Description != nil {
		req.Description = *dto.Description
	}

	if err := s.requests.UpdateDetails(ctx, req, model.StatusNew); err != nil {
		return RequestResponse{}, fmt.Errorf("failed to update request: %w", err)
	}

	return s.reload(ctx, req.ID)
}

func (s *requestService) DeleteRequest(ctx context.Context, actor workflow.Actor, id string) error {
	requestID, err := parseID(id)
	if err != nil {
		return err
	}

	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return err
	}
	if !actor.Owns(req) && actor.Role != model.RoleAdmin && actor.Role != model.RoleSuperAdmin {
		return fmt.Errorf("%w: only the author can delete a request", ErrAccessDenied)
	}
	if err := staffScope(actor, req); err != nil {
		return err
	}
	if actor.Role == model.RoleResident && req.Status != model.StatusNew {
		return fmt.Errorf("%w: only new requests can be deleted", ErrValidation)
	}

	// the status read above must still hold when the row is removed
	return s.requests.Delete(ctx, requestID, req.Status)
}

// ChangeStatus loads the request and hands it to the state machine. Errors
// from the machine are returned unchanged so callers can classify them.
func (s *requestService) ChangeStatus(ctx context.Context, actor workflow.Actor, id string, dto ChangeStatusDTO) (RequestResponse, HistoryResponse, error) {
	requestID, err := parseID(id)
	if err != nil {
		return RequestResponse{}, HistoryResponse{}, err
	}

	target := model.RequestStatus(dto.Status)
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		metrics.ObserveTransition("", target, err)
		return RequestResponse{}, HistoryResponse{}, err
	}

	if err := staffScope(actor, req); err != nil {
		metrics.ObserveTransition(req.Status, target, err)
		return RequestResponse{}, HistoryResponse{}, err
	}

	updated, entry, err := s.machine.Apply(ctx, req, actor, target, strings.TrimSpace(dto.Comment))
	metrics.ObserveTransition(req.Status, target, err)
	if err != nil {
		return RequestResponse{}, HistoryResponse{}, err
	}

	s.publish(ws.Event{
		Type:      ws.EventStatusChanged,
		RequestID: updated.ID.String(),
		OwnerID:   updated.UserID.String(),
		CompanyID: companyOf(req),
		OldStatus: string(req.Status),
		NewStatus: string(updated.Status),
		Comment:   entry.Comment,
		ChangedBy: actor.ID.String(),
		At:        entry.CreatedAt,
	})

	resp, err := s.reload(ctx, updated.ID)
	if err != nil {
		// committed already; fall back to what the machine returned
		resp = toRequestResponse(*updated)
	}
	return resp, toHistoryResponse(*entry), nil
}

func (s *requestService) GetHistory(ctx context.Context, actor workflow.Actor, id string) ([]HistoryResponse, error) {
	requestID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := canView(actor, req); err != nil {
		return nil, err
	}

	entries, err := s.history.ListFor(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	result := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, toHistoryResponse(e))
	}
	return result, nil
}

func (s *requestService) Statuses() []StatusInfo {
	statuses := workflow.Statuses()
	result := make([]StatusInfo, 0, len(statuses))
	for _, st := range statuses {
		result = append(result, StatusInfo{
			Value:    string(st),
			Label:    workflow.Label(st),
			Targets:  statusStrings(workflow.LegalTargets(st)),
			Terminal: workflow.IsTerminal(st),
		})
	}
	return result
}

func (s *requestService) Categories() []CategoryInfo {
	categories := model.Categories()
	result := make([]CategoryInfo, 0, len(categories))
	for _, c := range categories {
		result = append(result, CategoryInfo{Value: string(c), Label: c.Label()})
	}
	return result
}

// --- Helpers ---

func (s *requestService) reload(ctx context.Context, id uuid.UUID) (RequestResponse, error) {
	req, err := s.requests.FindByIDWithRelations(ctx, id)
	if err != nil {
		return RequestResponse{}, fmt.Errorf("failed to reload request: %w", err)
	}
	return toRequestResponse(*req), nil
}

func (s *requestService) publish(evt ws.Event) {
	if s.events != nil {
		s.events.Publish(evt)
	}
}

func canView(actor workflow.Actor, req *model.Request) error {
	switch {
	case !actor.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrAccessDenied, actor.Role)
	case actor.Role == model.RoleResident && !actor.Owns(req):
		return fmt.Errorf("%w: request belongs to another resident", ErrAccessDenied)
	}
	return staffScope(actor, req)
}

// staffScope limits dispatchers and admins to requests from houses their
// company serves. req must have User.House loaded.
func staffScope(actor workflow.Actor, req *model.Request) error {
	if actor.Role != model.RoleDispatcher && actor.Role != model.RoleAdmin {
		return nil
	}
	company := ownerCompany(req)
	if actor.CompanyID == nil || company == nil || *company != *actor.CompanyID {
		return fmt.Errorf("%w: request belongs to another company", ErrAccessDenied)
	}
	return nil
}

func ownerCompany(req *model.Request) *uuid.UUID {
	if req.User == nil || req.User.House == nil {
		return nil
	}
	return req.User.House.CompanyID
}

func companyOf(req *model.Request) string {
	if company := ownerCompany(req); company != nil {
		return company.String()
	}
	return ""
}

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid request id: %v", ErrValidation, err)
	}
	return parsed, nil
}

func statusStrings(statuses []model.RequestStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func toHistoryResponse(h model.RequestHistory) HistoryResponse {
	resp := HistoryResponse{
		ID:        h.ID.String(),
		NewStatus: string(h.NewStatus),
		Comment:   h.Comment,
		CreatedAt: h.CreatedAt.Format(time.RFC3339),
	}
	if h.OldStatus != nil {
		s := string(*h.OldStatus)
		resp.OldStatus = &s
	}
	if h.ChangedBy != nil {
		s := h.ChangedBy.String()
		resp.ChangedBy = &s
	}
	if h.Changer != nil {
		resp.ChangedByName = h.Changer.FullName()
	}
	return resp
}

func toRequestResponse(r model.Request) RequestResponse {
	resp := RequestResponse{
		ID:              r.ID.String(),
		UserID:          r.UserID.String(),
		Category:        string(r.Category),
		CategoryLabel:   r.Category.Label(),
		Title:           r.Title,
		Description:     r.Description,
		Status:          string(r.Status),
		StatusLabel:     workflow.Label(r.Status),
		AllowedStatuses: statusStrings(workflow.LegalTargets(r.Status)),
		Price:           r.Price.StringFixed(2),
		PaymentStatus:   r.PaymentStatus,
		History:         make([]HistoryResponse, 0, len(r.History)),
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}

	if r.User != nil {
		resp.UserName = r.User.FullName()
		resp.UserApartment = r.User.Apartment
		if r.User.House != nil {
			resp.UserAddress = r.User.House.Address
		}
	}
	for _, h := range r.History {
		resp.History = append(resp.History, toHistoryResponse(h))
	}

	return resp
}
