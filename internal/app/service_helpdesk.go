package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"meridian/api/internal/search"
	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

var allowedTicketStatuses = map[string]struct{}{
	"OPEN":     {},
	"PENDING":  {},
	"RESOLVED": {},
	"CLOSED":   {},
}

var allowedTicketPriorities = map[string]struct{}{
	"LOW":    {},
	"MEDIUM": {},
	"HIGH":   {},
	"URGENT": {},
}

// slaWindow maps priority to the response window used for the SLA due date.
func slaWindow(priority string) time.Duration {
	switch priority {
	case "URGENT":
		return 4 * time.Hour
	case "HIGH":
		return 8 * time.Hour
	case "MEDIUM":
		return 24 * time.Hour
	default:
		return 72 * time.Hour
	}
}

type CreateTicketInput struct {
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	Priority       string   `json:"priority"`
	RequesterName  string   `json:"requesterName"`
	RequesterEmail string   `json:"requesterEmail"`
	Tags           []string `json:"tags"`
}

func (s *Service) CreateTicket(ctx context.Context, input CreateTicketInput) (store.Ticket, error) {
	if strings.TrimSpace(input.Subject) == "" {
		return store.Ticket{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "subject is required", nil)
	}
	priority := strings.ToUpper(strings.TrimSpace(input.Priority))
	if priority == "" {
		priority = "MEDIUM"
	}
	if _, ok := allowedTicketPriorities[priority]; !ok {
		return store.Ticket{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown priority", map[string]any{"priority": input.Priority})
	}

	slaDue := time.Now().Add(slaWindow(priority))
	ticket := store.Ticket{
		ID:             util.NewID("tkt"),
		Subject:        strings.TrimSpace(input.Subject),
		Body:           input.Body,
		Status:         "OPEN",
		Priority:       priority,
		RequesterName:  strings.TrimSpace(input.RequesterName),
		RequesterEmail: strings.ToLower(strings.TrimSpace(input.RequesterEmail)),
		Tags:           input.Tags,
		SLADueAt:       &slaDue,
	}

	// The number carries a unique index; another request may have taken the
	// same counter value, so retry on duplicate key.
	var insertErr error
	for attempt := 0; attempt < sequenceRetries; attempt++ {
		number, err := s.nextTicketNumber(ctx)
		if err != nil {
			return store.Ticket{}, err
		}
		ticket.Number = number
		insertErr = s.store.InsertTicket(ctx, ticket)
		if insertErr == nil {
			break
		}
		if !store.IsUniqueViolation(insertErr) {
			return store.Ticket{}, insertErr
		}
	}
	if insertErr != nil {
		return store.Ticket{}, domainError(http.StatusConflict, "NUMBER_EXHAUSTED", "could not allocate ticket number", nil)
	}

	created, err := s.store.GetTicket(ctx, ticket.ID)
	if err != nil {
		return store.Ticket{}, err
	}

	s.indexTicket(created)
	s.dispatchWebhooks("ticket.created", ticketPayload(created))
	if s.SMTPConfigured() && created.RequesterEmail != "" {
		go func(t store.Ticket) {
			if err := s.email.SendTicketReceiptEmail(t.RequesterEmail, t.RequesterName, t.Number, t.Subject); err != nil {
				log.Printf("email: ticket receipt %s: %v", t.Number, err)
			}
		}(created)
	}

	return created, nil
}

func (s *Service) GetTicket(ctx context.Context, id string) (store.Ticket, error) {
	return s.store.GetTicket(ctx, id)
}

func (s *Service) ListTickets(ctx context.Context, filter store.TicketFilter) ([]store.Ticket, error) {
	if filter.Status != "" {
		if _, ok := allowedTicketStatuses[filter.Status]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown status", map[string]any{"status": filter.Status})
		}
	}
	return s.store.ListTickets(ctx, filter)
}

type UpdateTicketInput struct {
	Subject  *string   `json:"subject"`
	Body     *string   `json:"body"`
	Priority *string   `json:"priority"`
	Tags     *[]string `json:"tags"`
}

func (s *Service) UpdateTicket(ctx context.Context, id string, input UpdateTicketInput) (store.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return store.Ticket{}, err
	}

	if input.Subject != nil {
		if strings.TrimSpace(*input.Subject) == "" {
			return store.Ticket{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "subject cannot be empty", nil)
		}
		ticket.Subject = strings.TrimSpace(*input.Subject)
	}
	if input.Body != nil {
		ticket.Body = *input.Body
	}
	if input.Priority != nil {
		priority := strings.ToUpper(strings.TrimSpace(*input.Priority))
		if _, ok := allowedTicketPriorities[priority]; !ok {
			return store.Ticket{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = priority
	}
	if input.Tags != nil {
		ticket.Tags = *input.Tags
	}

	if err := s.store.UpdateTicket(ctx, ticket); err != nil {
		return store.Ticket{}, err
	}
	updated, err := s.store.GetTicket(ctx, ticket.ID)
	if err != nil {
		return store.Ticket{}, err
	}
	s.indexTicket(updated)
	return updated, nil
}

func (s *Service) UpdateTicketStatus(ctx context.Context, id, status string) (store.Ticket, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if _, ok := allowedTicketStatuses[status]; !ok {
		return store.Ticket{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown status", map[string]any{"status": status})
	}
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return store.Ticket{}, err
	}
	resolved := status == "RESOLVED" && ticket.Status != "RESOLVED"
	if err := s.store.UpdateTicketStatus(ctx, ticket.ID, status, resolved); err != nil {
		return store.Ticket{}, err
	}
	updated, err := s.store.GetTicket(ctx, ticket.ID)
	if err != nil {
		return store.Ticket{}, err
	}
	s.indexTicket(updated)
	if resolved {
		s.dispatchWebhooks("ticket.resolved", ticketPayload(updated))
	}
	return updated, nil
}

func (s *Service) AssignTicket(ctx context.Context, id string, assigneeID *string) (store.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return store.Ticket{}, err
	}
	if assigneeID != nil {
		if _, err := s.store.GetUserByID(ctx, *assigneeID); err != nil {
			return store.Ticket{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "assignee not found", map[string]any{"assigneeId": *assigneeID})
		}
	}
	if err := s.store.AssignTicket(ctx, ticket.ID, assigneeID); err != nil {
		return store.Ticket{}, err
	}
	return s.store.GetTicket(ctx, ticket.ID)
}

func (s *Service) DeleteTicket(ctx context.Context, id string) error {
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTicket(ctx, ticket.ID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteTicket(ticket.ID)
	}
	return nil
}

func (s *Service) AddTicketComment(ctx context.Context, ticketID string, session Session, body string, internal bool) (store.TicketComment, error) {
	if strings.TrimSpace(body) == "" {
		return store.TicketComment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return store.TicketComment{}, err
	}
	comment := store.TicketComment{
		ID:         util.NewID("cmt"),
		TicketID:   ticket.ID,
		AuthorID:   session.UserID,
		AuthorName: session.UserName,
		Body:       body,
		Internal:   internal,
	}
	if err := s.store.InsertTicketComment(ctx, comment); err != nil {
		return store.TicketComment{}, err
	}
	return comment, nil
}

func (s *Service) ListTicketComments(ctx context.Context, ticketID string, includeInternal bool) ([]store.TicketComment, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return s.store.ListTicketComments(ctx, ticket.ID, includeInternal)
}

func (s *Service) indexTicket(t store.Ticket) {
	if s.search == nil {
		return
	}
	s.search.IndexTicket(search.TicketRecord{
		ID:      t.ID,
		Number:  t.Number,
		Subject: t.Subject,
		Body:    t.Body,
		Status:  t.Status,
	})
}

func ticketPayload(t store.Ticket) map[string]any {
	return map[string]any{
		"id":       t.ID,
		"number":   t.Number,
		"subject":  t.Subject,
		"status":   t.Status,
		"priority": t.Priority,
	}
}
