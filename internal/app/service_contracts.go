package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"meridian/api/internal/auth"
	"meridian/api/internal/docrepo"
	"meridian/api/internal/export"
	"meridian/api/internal/search"
	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

type ContractInput struct {
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	AccountID *string `json:"accountId"`
}

func (s *Service) CreateContract(ctx context.Context, session Session, input ContractInput) (store.Contract, error) {
	if strings.TrimSpace(input.Title) == "" {
		return store.Contract{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if input.AccountID != nil {
		if _, err := s.store.GetAccount(ctx, *input.AccountID); err != nil {
			return store.Contract{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "account not found", map[string]any{"accountId": *input.AccountID})
		}
	}

	contract := store.Contract{
		ID:        util.NewID("ctr"),
		Title:     strings.TrimSpace(input.Title),
		AccountID: input.AccountID,
		Status:    "DRAFT",
		Body:      input.Body,
		CreatedBy: session.UserName,
	}

	var insertErr error
	for attempt := 0; attempt < sequenceRetries; attempt++ {
		number, err := s.nextContractNumber(ctx)
		if err != nil {
			return store.Contract{}, err
		}
		contract.Number = number
		insertErr = s.store.InsertContract(ctx, contract)
		if insertErr == nil {
			break
		}
		if !store.IsUniqueViolation(insertErr) {
			return store.Contract{}, insertErr
		}
	}
	if insertErr != nil {
		return store.Contract{}, domainError(http.StatusConflict, "NUMBER_EXHAUSTED", "could not allocate contract number", nil)
	}

	rev, err := s.docs.EnsureContractRepo(contract.ID, docrepo.Content{
		Title: contract.Title,
		Body:  contract.Body,
	}, session.UserName)
	if err != nil {
		return store.Contract{}, fmt.Errorf("init contract repo: %w", err)
	}
	if err := s.store.UpdateContractBody(ctx, contract.ID, contract.Title, contract.Body, rev.Hash); err != nil {
		return store.Contract{}, err
	}

	created, err := s.store.GetContract(ctx, contract.ID)
	if err != nil {
		return store.Contract{}, err
	}
	s.indexContract(created)
	return created, nil
}

func (s *Service) GetContract(ctx context.Context, id string) (map[string]any, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	signers, err := s.store.ListSigners(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"contract": contract,
		"signers":  signerViews(signers),
	}, nil
}

func (s *Service) ListContracts(ctx context.Context, status, accountID string) ([]store.Contract, error) {
	return s.store.ListContracts(ctx, strings.ToUpper(status), accountID)
}

// UpdateContractBody commits a new revision and moves the draft pointer.
// Only drafts can be edited.
func (s *Service) UpdateContractBody(ctx context.Context, id string, session Session, input ContractInput) (store.Contract, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return store.Contract{}, err
	}
	if contract.Status != "DRAFT" {
		return store.Contract{}, domainError(http.StatusConflict, "NOT_DRAFT", "only draft contracts can be edited", map[string]any{"status": contract.Status})
	}
	title := contract.Title
	if strings.TrimSpace(input.Title) != "" {
		title = strings.TrimSpace(input.Title)
	}

	rev, err := s.docs.CommitContent(contract.ID, docrepo.Content{
		Title: title,
		Body:  input.Body,
	}, session.UserName, "Update contract draft")
	if err != nil {
		return store.Contract{}, fmt.Errorf("commit contract revision: %w", err)
	}
	if err := s.store.UpdateContractBody(ctx, contract.ID, title, input.Body, rev.Hash); err != nil {
		return store.Contract{}, err
	}

	updated, err := s.store.GetContract(ctx, contract.ID)
	if err != nil {
		return store.Contract{}, err
	}
	s.indexContract(updated)
	return updated, nil
}

func (s *Service) ContractHistory(ctx context.Context, id string, limit int) ([]store.RevisionInfo, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.docs.History(contract.ID, limit)
}

func (s *Service) ContractRevision(ctx context.Context, id, hash string) (map[string]any, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := s.docs.GetContentByHash(contract.ID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "revision not found", map[string]any{"revision": hash})
	}
	return map[string]any{
		"revision": hash,
		"title":    content.Title,
		"body":     content.Body,
	}, nil
}

// ── Signers ──

type SignerInput struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *Service) AddSigner(ctx context.Context, contractID string, input SignerInput) (store.Signer, error) {
	address, err := mail.ParseAddress(strings.TrimSpace(input.Email))
	if err != nil {
		return store.Signer{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid email", map[string]any{"email": input.Email})
	}
	contract, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return store.Signer{}, err
	}
	if contract.Status != "DRAFT" {
		return store.Signer{}, domainError(http.StatusConflict, "NOT_DRAFT", "signers can only be added to drafts", map[string]any{"status": contract.Status})
	}

	existing, err := s.store.ListSigners(ctx, contract.ID)
	if err != nil {
		return store.Signer{}, err
	}
	email := strings.ToLower(address.Address)
	for _, signer := range existing {
		if signer.Email == email {
			return store.Signer{}, domainError(http.StatusConflict, "DUPLICATE_SIGNER", "signer already on the contract", map[string]any{"email": email})
		}
	}

	signer := store.Signer{
		ID:         util.NewID("sgn"),
		ContractID: contract.ID,
		Email:      email,
		Name:       strings.TrimSpace(input.Name),
		Status:     "PENDING",
		SortOrder:  len(existing),
	}
	if err := s.store.InsertSigner(ctx, signer); err != nil {
		return store.Signer{}, err
	}
	return signer, nil
}

func (s *Service) RemoveSigners(ctx context.Context, contractID string) error {
	contract, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return err
	}
	if contract.Status != "DRAFT" {
		return domainError(http.StatusConflict, "NOT_DRAFT", "signers can only be removed from drafts", map[string]any{"status": contract.Status})
	}
	return s.store.DeleteSigners(ctx, contract.ID)
}

// SendContract freezes the draft and issues one single-use signing token per
// signer. Only the hash is stored; the raw token leaves via email.
func (s *Service) SendContract(ctx context.Context, id string) (store.Contract, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return store.Contract{}, err
	}
	signers, err := s.store.ListSigners(ctx, contract.ID)
	if err != nil {
		return store.Contract{}, err
	}
	if len(signers) == 0 {
		return store.Contract{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "add at least one signer before sending", nil)
	}

	sent, err := s.store.MarkContractSent(ctx, contract.ID)
	if err != nil {
		return store.Contract{}, err
	}
	if !sent {
		return store.Contract{}, domainError(http.StatusConflict, "INVALID_TRANSITION", "only draft contracts can be sent", map[string]any{"status": contract.Status})
	}

	for _, signer := range signers {
		token := util.NewID("sig") + util.NewID("")
		if err := s.store.UpdateSignerToken(ctx, signer.ID, auth.HashToken(token)); err != nil {
			return store.Contract{}, err
		}
		if s.SMTPConfigured() {
			signURL := fmt.Sprintf("%s/sign/%s", strings.TrimRight(s.cfg.BaseURL, "/"), token)
			go func(to, name, number, title, url string) {
				if err := s.email.SendSignatureRequestEmail(to, name, title, number, url); err != nil {
					log.Printf("email: signature request %s to %s: %v", number, to, err)
				}
			}(signer.Email, signer.Name, contract.Number, contract.Title, signURL)
		}
	}

	updated, err := s.store.GetContract(ctx, contract.ID)
	if err != nil {
		return store.Contract{}, err
	}
	s.indexContract(updated)
	s.dispatchWebhooks("contract.sent", contractPayload(updated))
	return updated, nil
}

// SignerByToken resolves a raw signing token for the public signing page.
func (s *Service) SignerByToken(ctx context.Context, token string) (map[string]any, error) {
	signer, err := s.store.GetSignerByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "unknown signing link", nil)
	}
	contract, err := s.store.GetContract(ctx, signer.ContractID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"signer": map[string]any{
			"name":   signer.Name,
			"email":  signer.Email,
			"status": signer.Status,
		},
		"contract": map[string]any{
			"number": contract.Number,
			"title":  contract.Title,
			"body":   contract.Body,
			"status": contract.Status,
		},
	}, nil
}

// SignContract records the signer's consent. When the last pending signer
// signs, the contract completes.
func (s *Service) SignContract(ctx context.Context, token string) (map[string]any, error) {
	signer, err := s.store.GetSignerByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "unknown signing link", nil)
	}
	contract, err := s.store.GetContract(ctx, signer.ContractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != "SENT" {
		return nil, domainError(http.StatusConflict, "NOT_OPEN", "contract is not open for signing", map[string]any{"status": contract.Status})
	}

	signed, err := s.store.MarkSignerSigned(ctx, signer.ID)
	if err != nil {
		return nil, err
	}
	if !signed {
		return nil, domainError(http.StatusConflict, "ALREADY_DECIDED", "signer has already responded", map[string]any{"status": signer.Status})
	}

	pending, err := s.store.CountPendingSigners(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	completed := pending == 0
	if completed {
		if err := s.store.MarkContractCompleted(ctx, contract.ID); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.GetContract(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	s.indexContract(updated)
	if completed {
		s.dispatchWebhooks("contract.completed", contractPayload(updated))
	}
	return map[string]any{
		"status":    updated.Status,
		"completed": completed,
	}, nil
}

// DeclineContract records a signer's refusal and declines the whole contract.
func (s *Service) DeclineContract(ctx context.Context, token, reason string) (map[string]any, error) {
	signer, err := s.store.GetSignerByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "unknown signing link", nil)
	}
	contract, err := s.store.GetContract(ctx, signer.ContractID)
	if err != nil {
		return nil, err
	}
	if contract.Status != "SENT" {
		return nil, domainError(http.StatusConflict, "NOT_OPEN", "contract is not open for signing", map[string]any{"status": contract.Status})
	}

	declined, err := s.store.MarkSignerDeclined(ctx, signer.ID, reason)
	if err != nil {
		return nil, err
	}
	if !declined {
		return nil, domainError(http.StatusConflict, "ALREADY_DECIDED", "signer has already responded", map[string]any{"status": signer.Status})
	}
	if err := s.store.MarkContractDeclined(ctx, contract.ID); err != nil {
		return nil, err
	}

	updated, err := s.store.GetContract(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	s.indexContract(updated)
	return map[string]any{"status": updated.Status}, nil
}

func (s *Service) VoidContract(ctx context.Context, id string) (store.Contract, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return store.Contract{}, err
	}
	voided, err := s.store.VoidContract(ctx, contract.ID)
	if err != nil {
		return store.Contract{}, err
	}
	if !voided {
		return store.Contract{}, domainError(http.StatusConflict, "INVALID_TRANSITION", "completed contracts cannot be voided", map[string]any{"status": contract.Status})
	}
	updated, err := s.store.GetContract(ctx, contract.ID)
	if err != nil {
		return store.Contract{}, err
	}
	s.indexContract(updated)
	return updated, nil
}

func (s *Service) DeleteContract(ctx context.Context, id string) error {
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return err
	}
	if contract.Status != "DRAFT" {
		return domainError(http.StatusConflict, "NOT_DRAFT", "only draft contracts can be deleted", map[string]any{"status": contract.Status})
	}
	if err := s.store.DeleteSigners(ctx, contract.ID); err != nil {
		return err
	}
	if err := s.store.DeleteContract(ctx, contract.ID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteContract(contract.ID)
	}
	return nil
}

// ── Exports ──

func (s *Service) ExportContractPDF(ctx context.Context, id string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not configured", nil)
	}
	contract, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.exporter.ExportContract(ctx, contract.ID)
}

func (s *Service) ExportInvoicePDF(ctx context.Context, id string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not configured", nil)
	}
	invoice, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.exporter.ExportInvoice(ctx, invoice.ID)
}

func (s *Service) indexContract(c store.Contract) {
	if s.search == nil {
		return
	}
	s.search.IndexContract(search.ContractRecord{
		ID:     c.ID,
		Number: c.Number,
		Title:  c.Title,
		Body:   c.Body,
		Status: c.Status,
	})
}

func contractPayload(c store.Contract) map[string]any {
	return map[string]any{
		"id":     c.ID,
		"number": c.Number,
		"title":  c.Title,
		"status": c.Status,
	}
}

// signerViews hides token hashes from API responses.
func signerViews(signers []store.Signer) []map[string]any {
	out := make([]map[string]any, 0, len(signers))
	for _, signer := range signers {
		view := map[string]any{
			"id":        signer.ID,
			"email":     signer.Email,
			"name":      signer.Name,
			"status":    signer.Status,
			"sortOrder": signer.SortOrder,
		}
		if signer.SignedAt != nil {
			view["signedAt"] = signer.SignedAt
		}
		if signer.DeclineReason != "" {
			view["declineReason"] = signer.DeclineReason
		}
		out = append(out, view)
	}
	return out
}
