package app

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

// balanceEpsilon absorbs float rounding when checking that debits equal
// credits.
const balanceEpsilon = 0.005

var allowedInvoiceStatuses = map[string]struct{}{
	"DRAFT":  {},
	"ISSUED": {},
	"PAID":   {},
	"VOID":   {},
}

// ── Journal ──

type JournalEntryInput struct {
	EntryDate *time.Time          `json:"entryDate"`
	Memo      string              `json:"memo"`
	Lines     []store.JournalLine `json:"lines"`
}

func (s *Service) CreateJournalEntry(ctx context.Context, session Session, input JournalEntryInput) (store.JournalEntry, error) {
	if len(input.Lines) < 2 {
		return store.JournalEntry{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "an entry needs at least two lines", nil)
	}
	var debits, credits float64
	for i, line := range input.Lines {
		if strings.TrimSpace(line.AccountCode) == "" {
			return store.JournalEntry{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "every line needs an account code", map[string]any{"line": i})
		}
		if line.Debit < 0 || line.Credit < 0 {
			return store.JournalEntry{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "amounts cannot be negative", map[string]any{"line": i})
		}
		if line.Debit > 0 && line.Credit > 0 {
			return store.JournalEntry{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a line is either a debit or a credit, not both", map[string]any{"line": i})
		}
		debits += line.Debit
		credits += line.Credit
	}
	if math.Abs(debits-credits) > balanceEpsilon {
		return store.JournalEntry{}, domainError(http.StatusUnprocessableEntity, "UNBALANCED_ENTRY", "debits must equal credits", map[string]any{
			"debits":  debits,
			"credits": credits,
		})
	}

	entryDate := time.Now()
	if input.EntryDate != nil {
		entryDate = *input.EntryDate
	}
	entry := store.JournalEntry{
		ID:        util.NewID("jrn"),
		EntryDate: entryDate,
		Memo:      input.Memo,
		Lines:     input.Lines,
		CreatedBy: session.UserName,
	}
	if err := s.store.InsertJournalEntry(ctx, entry); err != nil {
		return store.JournalEntry{}, err
	}
	return s.store.GetJournalEntry(ctx, entry.ID)
}

func (s *Service) GetJournalEntry(ctx context.Context, id string) (store.JournalEntry, error) {
	return s.store.GetJournalEntry(ctx, id)
}

func (s *Service) ListJournalEntries(ctx context.Context, from, to *time.Time, limit int) ([]store.JournalEntry, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "to must not be before from", nil)
	}
	return s.store.ListJournalEntries(ctx, from, to, limit)
}

// ── Invoices ──

type InvoiceInput struct {
	AccountID string              `json:"accountId"`
	Currency  string              `json:"currency"`
	DueDate   *time.Time          `json:"dueDate"`
	Lines     []store.InvoiceLine `json:"lines"`
}

func validateInvoiceLines(lines []store.InvoiceLine) ([]store.InvoiceLine, float64, error) {
	if len(lines) == 0 {
		return nil, 0, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "an invoice needs at least one line", nil)
	}
	out := make([]store.InvoiceLine, 0, len(lines))
	var total float64
	for i, line := range lines {
		if strings.TrimSpace(line.Description) == "" {
			return nil, 0, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "every line needs a description", map[string]any{"line": i})
		}
		if line.Quantity <= 0 {
			return nil, 0, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "quantity must be positive", map[string]any{"line": i})
		}
		if line.UnitPrice < 0 {
			return nil, 0, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unit price cannot be negative", map[string]any{"line": i})
		}
		line.Amount = line.Quantity * line.UnitPrice
		total += line.Amount
		out = append(out, line)
	}
	return out, total, nil
}

func (s *Service) CreateInvoice(ctx context.Context, input InvoiceInput) (store.Invoice, error) {
	account, err := s.store.GetAccount(ctx, input.AccountID)
	if err != nil {
		return store.Invoice{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "account not found", map[string]any{"accountId": input.AccountID})
	}
	lines, total, err := validateInvoiceLines(input.Lines)
	if err != nil {
		return store.Invoice{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}
	now := time.Now()
	dueDate := now.AddDate(0, 0, 30)
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}

	invoice := store.Invoice{
		ID:        util.NewID("inv"),
		AccountID: account.ID,
		Status:    "DRAFT",
		Currency:  currency,
		IssueDate: now,
		DueDate:   dueDate,
		Lines:     lines,
		Total:     total,
	}

	var insertErr error
	for attempt := 0; attempt < sequenceRetries; attempt++ {
		number, err := s.nextInvoiceNumber(ctx)
		if err != nil {
			return store.Invoice{}, err
		}
		invoice.Number = number
		insertErr = s.store.InsertInvoice(ctx, invoice)
		if insertErr == nil {
			break
		}
		if !store.IsUniqueViolation(insertErr) {
			return store.Invoice{}, insertErr
		}
	}
	if insertErr != nil {
		return store.Invoice{}, domainError(http.StatusConflict, "NUMBER_EXHAUSTED", "could not allocate invoice number", nil)
	}

	return s.store.GetInvoice(ctx, invoice.ID)
}

func (s *Service) GetInvoice(ctx context.Context, id string) (store.Invoice, error) {
	return s.store.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, accountID, status string) ([]store.Invoice, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" {
		if _, ok := allowedInvoiceStatuses[status]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown status", map[string]any{"status": status})
		}
	}
	return s.store.ListInvoices(ctx, accountID, status)
}

// UpdateInvoiceLines replaces the lines of a draft invoice and recomputes
// the total.
func (s *Service) UpdateInvoiceLines(ctx context.Context, id string, input InvoiceInput) (store.Invoice, error) {
	invoice, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return store.Invoice{}, err
	}
	if invoice.Status != "DRAFT" {
		return store.Invoice{}, domainError(http.StatusConflict, "NOT_DRAFT", "only draft invoices can be edited", map[string]any{"status": invoice.Status})
	}
	lines, total, err := validateInvoiceLines(input.Lines)
	if err != nil {
		return store.Invoice{}, err
	}
	dueDate := invoice.DueDate
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}
	if err := s.store.UpdateInvoiceLines(ctx, invoice.ID, lines, total, dueDate); err != nil {
		return store.Invoice{}, err
	}
	return s.store.GetInvoice(ctx, invoice.ID)
}

func (s *Service) IssueInvoice(ctx context.Context, id string) (store.Invoice, error) {
	invoice, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return store.Invoice{}, err
	}
	changed, err := s.store.UpdateInvoiceStatus(ctx, invoice.ID, "ISSUED", []string{"DRAFT"}, false)
	if err != nil {
		return store.Invoice{}, err
	}
	if !changed {
		return store.Invoice{}, domainError(http.StatusConflict, "INVALID_TRANSITION", "only draft invoices can be issued", map[string]any{"status": invoice.Status})
	}
	return s.store.GetInvoice(ctx, invoice.ID)
}

func (s *Service) MarkInvoicePaid(ctx context.Context, id string) (store.Invoice, error) {
	invoice, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return store.Invoice{}, err
	}
	changed, err := s.store.UpdateInvoiceStatus(ctx, invoice.ID, "PAID", []string{"ISSUED"}, true)
	if err != nil {
		return store.Invoice{}, err
	}
	if !changed {
		return store.Invoice{}, domainError(http.StatusConflict, "INVALID_TRANSITION", "only issued invoices can be paid", map[string]any{"status": invoice.Status})
	}
	paid, err := s.store.GetInvoice(ctx, invoice.ID)
	if err != nil {
		return store.Invoice{}, err
	}
	s.dispatchWebhooks("invoice.paid", map[string]any{
		"id":        paid.ID,
		"number":    paid.Number,
		"accountId": paid.AccountID,
		"total":     paid.Total,
		"currency":  paid.Currency,
	})
	return paid, nil
}

func (s *Service) VoidInvoice(ctx context.Context, id string) (store.Invoice, error) {
	invoice, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return store.Invoice{}, err
	}
	changed, err := s.store.UpdateInvoiceStatus(ctx, invoice.ID, "VOID", []string{"DRAFT", "ISSUED"}, false)
	if err != nil {
		return store.Invoice{}, err
	}
	if !changed {
		return store.Invoice{}, domainError(http.StatusConflict, "INVALID_TRANSITION", "paid invoices cannot be voided", map[string]any{"status": invoice.Status})
	}
	return s.store.GetInvoice(ctx, invoice.ID)
}
