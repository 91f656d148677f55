package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"meridian/api/internal/search"
	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

var allowedAccountPlans = map[string]struct{}{
	"STARTER":    {},
	"GROWTH":     {},
	"ENTERPRISE": {},
}

var allowedTouchpointKinds = map[string]struct{}{
	"CALL":    {},
	"EMAIL":   {},
	"MEETING": {},
	"NOTE":    {},
	"QBR":     {},
}

type AccountInput struct {
	Name         string     `json:"name"`
	Domain       string     `json:"domain"`
	Plan         string     `json:"plan"`
	BillingEmail string     `json:"billingEmail"`
	MRR          float64    `json:"mrr"`
	HealthScore  int        `json:"healthScore"`
	RenewalAt    *time.Time `json:"renewalAt"`
	OwnerID      *string    `json:"ownerId"`
}

func validateAccountInput(input AccountInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	plan := strings.ToUpper(strings.TrimSpace(input.Plan))
	if _, ok := allowedAccountPlans[plan]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown plan", map[string]any{"plan": input.Plan})
	}
	if input.HealthScore < 0 || input.HealthScore > 100 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "healthScore must be between 0 and 100", nil)
	}
	if input.MRR < 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "mrr cannot be negative", nil)
	}
	return nil
}

func (s *Service) CreateAccount(ctx context.Context, input AccountInput) (store.Account, error) {
	if err := validateAccountInput(input); err != nil {
		return store.Account{}, err
	}
	account := store.Account{
		ID:           util.NewID("acc"),
		Name:         strings.TrimSpace(input.Name),
		Domain:       strings.ToLower(strings.TrimSpace(input.Domain)),
		Plan:         strings.ToUpper(strings.TrimSpace(input.Plan)),
		BillingEmail: input.BillingEmail,
		MRR:          input.MRR,
		HealthScore:  input.HealthScore,
		RenewalAt:    input.RenewalAt,
		OwnerID:      input.OwnerID,
	}
	if err := s.store.InsertAccount(ctx, account); err != nil {
		return store.Account{}, err
	}
	created, err := s.store.GetAccount(ctx, account.ID)
	if err != nil {
		return store.Account{}, err
	}
	s.indexAccount(created)
	return created, nil
}

func (s *Service) GetAccount(ctx context.Context, id string) (store.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *Service) ListAccounts(ctx context.Context, plan string, renewalWithinDays int) ([]store.Account, error) {
	if plan != "" {
		if _, ok := allowedAccountPlans[strings.ToUpper(plan)]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown plan", map[string]any{"plan": plan})
		}
	}
	return s.store.ListAccounts(ctx, strings.ToUpper(plan), renewalWithinDays)
}

func (s *Service) UpdateAccount(ctx context.Context, id string, input AccountInput) (store.Account, error) {
	if err := validateAccountInput(input); err != nil {
		return store.Account{}, err
	}
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return store.Account{}, err
	}
	account.Name = strings.TrimSpace(input.Name)
	account.Domain = strings.ToLower(strings.TrimSpace(input.Domain))
	account.Plan = strings.ToUpper(strings.TrimSpace(input.Plan))
	account.BillingEmail = input.BillingEmail
	account.MRR = input.MRR
	account.HealthScore = input.HealthScore
	account.RenewalAt = input.RenewalAt
	account.OwnerID = input.OwnerID

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return store.Account{}, err
	}
	updated, err := s.store.GetAccount(ctx, account.ID)
	if err != nil {
		return store.Account{}, err
	}
	s.indexAccount(updated)
	return updated, nil
}

func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAccount(ctx, account.ID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteAccount(account.ID)
	}
	return nil
}

type TouchpointInput struct {
	Kind       string     `json:"kind"`
	Note       string     `json:"note"`
	OccurredAt *time.Time `json:"occurredAt"`
}

func (s *Service) AddTouchpoint(ctx context.Context, accountID string, session Session, input TouchpointInput) (store.Touchpoint, error) {
	kind := strings.ToUpper(strings.TrimSpace(input.Kind))
	if _, ok := allowedTouchpointKinds[kind]; !ok {
		return store.Touchpoint{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown touchpoint kind", map[string]any{"kind": input.Kind})
	}
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return store.Touchpoint{}, err
	}
	occurredAt := time.Now()
	if input.OccurredAt != nil {
		occurredAt = *input.OccurredAt
	}
	touchpoint := store.Touchpoint{
		ID:         util.NewID("tp"),
		AccountID:  account.ID,
		Kind:       kind,
		Note:       input.Note,
		AuthorName: session.UserName,
		OccurredAt: occurredAt,
	}
	if err := s.store.InsertTouchpoint(ctx, touchpoint); err != nil {
		return store.Touchpoint{}, err
	}
	return touchpoint, nil
}

func (s *Service) ListTouchpoints(ctx context.Context, accountID string, limit int) ([]store.Touchpoint, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.store.ListTouchpoints(ctx, account.ID, limit)
}

func (s *Service) indexAccount(a store.Account) {
	if s.search == nil {
		return
	}
	s.search.IndexAccount(search.AccountRecord{
		ID:     a.ID,
		Name:   a.Name,
		Domain: a.Domain,
		Plan:   a.Plan,
	})
}
