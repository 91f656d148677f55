package app

import (
	"context"
	"net/http"
	"strings"

	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

var allowedApprovalKinds = map[string]struct{}{
	"EXPENSE":  {},
	"DISCOUNT": {},
	"TIME_OFF": {},
	"PURCHASE": {},
	"OTHER":    {},
}

type CreateApprovalInput struct {
	Kind        string   `json:"kind"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Amount      *float64 `json:"amount"`
	Currency    string   `json:"currency"`
}

func (s *Service) CreateApprovalRequest(ctx context.Context, session Session, input CreateApprovalInput) (store.ApprovalRequest, error) {
	kind := strings.ToUpper(strings.TrimSpace(input.Kind))
	if _, ok := allowedApprovalKinds[kind]; !ok {
		return store.ApprovalRequest{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown approval kind", map[string]any{"kind": input.Kind})
	}
	if strings.TrimSpace(input.Title) == "" {
		return store.ApprovalRequest{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if input.Amount != nil && *input.Amount < 0 {
		return store.ApprovalRequest{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "amount cannot be negative", nil)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" && input.Amount != nil {
		currency = "USD"
	}

	request := store.ApprovalRequest{
		ID:          util.NewID("apr"),
		Kind:        kind,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Amount:      input.Amount,
		Currency:    currency,
		Status:      "PENDING",
		RequestedBy: session.UserName,
		RequesterID: session.UserID,
	}
	if err := s.store.InsertApprovalRequest(ctx, request); err != nil {
		return store.ApprovalRequest{}, err
	}
	return s.store.GetApprovalRequest(ctx, request.ID)
}

func (s *Service) GetApprovalRequest(ctx context.Context, id string) (store.ApprovalRequest, error) {
	return s.store.GetApprovalRequest(ctx, id)
}

func (s *Service) ListApprovalRequests(ctx context.Context, status, kind string) ([]store.ApprovalRequest, error) {
	return s.store.ListApprovalRequests(ctx, strings.ToUpper(status), strings.ToUpper(kind))
}

// DecideApprovalRequest approves or rejects a pending request. Requesters
// cannot decide their own submissions.
func (s *Service) DecideApprovalRequest(ctx context.Context, id string, session Session, approve bool, note string) (store.ApprovalRequest, error) {
	request, err := s.store.GetApprovalRequest(ctx, id)
	if err != nil {
		return store.ApprovalRequest{}, err
	}
	if request.RequesterID == session.UserID {
		return store.ApprovalRequest{}, domainError(http.StatusForbidden, "SELF_APPROVAL", "requesters cannot decide their own requests", nil)
	}

	status := "REJECTED"
	if approve {
		status = "APPROVED"
	}
	decided, err := s.store.DecideApprovalRequest(ctx, request.ID, status, session.UserName, note)
	if err != nil {
		return store.ApprovalRequest{}, err
	}
	if !decided {
		return store.ApprovalRequest{}, domainError(http.StatusConflict, "ALREADY_DECIDED", "request is no longer pending", map[string]any{"status": request.Status})
	}

	updated, err := s.store.GetApprovalRequest(ctx, request.ID)
	if err != nil {
		return store.ApprovalRequest{}, err
	}
	s.dispatchWebhooks("approval.decided", map[string]any{
		"id":        updated.ID,
		"kind":      updated.Kind,
		"title":     updated.Title,
		"status":    updated.Status,
		"decidedBy": updated.DecidedBy,
	})
	return updated, nil
}

// CancelApprovalRequest withdraws a pending request. Only the requester may
// cancel.
func (s *Service) CancelApprovalRequest(ctx context.Context, id string, session Session) (store.ApprovalRequest, error) {
	request, err := s.store.GetApprovalRequest(ctx, id)
	if err != nil {
		return store.ApprovalRequest{}, err
	}
	cancelled, err := s.store.CancelApprovalRequest(ctx, request.ID, session.UserID)
	if err != nil {
		return store.ApprovalRequest{}, err
	}
	if !cancelled {
		if request.RequesterID != session.UserID {
			return store.ApprovalRequest{}, domainError(http.StatusForbidden, "FORBIDDEN", "only the requester can cancel", nil)
		}
		return store.ApprovalRequest{}, domainError(http.StatusConflict, "ALREADY_DECIDED", "request is no longer pending", map[string]any{"status": request.Status})
	}
	return s.store.GetApprovalRequest(ctx, request.ID)
}
