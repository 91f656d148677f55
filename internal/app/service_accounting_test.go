package app

import (
	"context"
	"testing"
	"time"

	"meridian/api/internal/store"
)

func TestCreateJournalEntryRejectsUnbalanced(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.CreateJournalEntry(context.Background(), agentSession(), JournalEntryInput{
		Memo: "Office chairs",
		Lines: []store.JournalLine{
			{AccountCode: "6100", Debit: 500},
			{AccountCode: "1000", Credit: 450},
		},
	})
	assertDomainCode(t, err, "UNBALANCED_ENTRY")
}

func TestCreateJournalEntryToleratesRounding(t *testing.T) {
	var captured store.JournalEntry
	fs := &fakeStore{
		insertJournalEntryFn: func(_ context.Context, e store.JournalEntry) error {
			captured = e
			return nil
		},
	}
	fs.getJournalEntryFn = func(_ context.Context, id string) (store.JournalEntry, error) {
		return captured, nil
	}
	svc := newTestService(fs)

	_, err := svc.CreateJournalEntry(context.Background(), agentSession(), JournalEntryInput{
		Memo: "Rounded invoice",
		Lines: []store.JournalLine{
			{AccountCode: "6100", Debit: 33.333},
			{AccountCode: "6200", Debit: 33.333},
			{AccountCode: "1000", Credit: 66.67},
		},
	})
	if err != nil {
		t.Fatalf("expected sub-cent imbalance to pass, got %v", err)
	}
	if captured.CreatedBy != "Avery Quinn" {
		t.Fatalf("expected the session user as author, got %q", captured.CreatedBy)
	}
}

func TestCreateJournalEntryLineValidation(t *testing.T) {
	svc := newTestService(&fakeStore{})
	tests := []struct {
		name  string
		lines []store.JournalLine
	}{
		{
			name:  "single line",
			lines: []store.JournalLine{{AccountCode: "1000", Debit: 10}},
		},
		{
			name: "missing account code",
			lines: []store.JournalLine{
				{AccountCode: "", Debit: 10},
				{AccountCode: "1000", Credit: 10},
			},
		},
		{
			name: "negative amount",
			lines: []store.JournalLine{
				{AccountCode: "6100", Debit: -10},
				{AccountCode: "1000", Credit: -10},
			},
		},
		{
			name: "debit and credit on one line",
			lines: []store.JournalLine{
				{AccountCode: "6100", Debit: 10, Credit: 10},
				{AccountCode: "1000", Debit: 10, Credit: 10},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJournalEntry(context.Background(), agentSession(), JournalEntryInput{Lines: tt.lines})
			assertDomainCode(t, err, "VALIDATION_ERROR")
		})
	}
}

func TestListJournalEntriesRejectsInvertedRange(t *testing.T) {
	svc := newTestService(&fakeStore{})
	from := time.Now()
	to := from.Add(-time.Hour)
	_, err := svc.ListJournalEntries(context.Background(), &from, &to, 50)
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

// ── Invoices ──

func accountStore() *fakeStore {
	return &fakeStore{
		getAccountFn: func(_ context.Context, id string) (store.Account, error) {
			return store.Account{ID: id, Name: "Globex"}, nil
		},
	}
}

func TestCreateInvoiceComputesLineAmounts(t *testing.T) {
	fs := accountStore()
	var captured store.Invoice
	fs.insertInvoiceFn = func(_ context.Context, inv store.Invoice) error {
		captured = inv
		return nil
	}
	fs.getInvoiceFn = func(_ context.Context, id string) (store.Invoice, error) {
		return captured, nil
	}
	svc := newTestService(fs)

	created, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		AccountID: "acc-1",
		Lines: []store.InvoiceLine{
			{Description: "Seats", Quantity: 10, UnitPrice: 49},
			{Description: "Onboarding", Quantity: 1, UnitPrice: 500},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if created.Lines[0].Amount != 490 || created.Lines[1].Amount != 500 {
		t.Fatalf("unexpected line amounts: %v", created.Lines)
	}
	if created.Total != 990 {
		t.Fatalf("expected total 990, got %v", created.Total)
	}
	if created.Status != "DRAFT" || created.Currency != "USD" {
		t.Fatalf("expected DRAFT/USD defaults, got %s/%s", created.Status, created.Currency)
	}
	days := created.DueDate.Sub(created.IssueDate).Hours() / 24
	if days < 29 || days > 31 {
		t.Fatalf("expected ~30 day default due date, got %.1f days", days)
	}
}

func TestCreateInvoiceRequiresAccount(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		AccountID: "acc-missing",
		Lines:     []store.InvoiceLine{{Description: "Seats", Quantity: 1, UnitPrice: 49}},
	})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestCreateInvoiceRetriesOnDuplicateNumber(t *testing.T) {
	fs := accountStore()
	attempts := 0
	fs.insertInvoiceFn = func(context.Context, store.Invoice) error {
		attempts++
		return uniqueViolation()
	}
	svc := newTestService(fs)

	_, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		AccountID: "acc-1",
		Lines:     []store.InvoiceLine{{Description: "Seats", Quantity: 1, UnitPrice: 49}},
	})
	assertDomainCode(t, err, "NUMBER_EXHAUSTED")
	if attempts != sequenceRetries {
		t.Fatalf("expected %d attempts, got %d", sequenceRetries, attempts)
	}
}

func TestUpdateInvoiceLinesOnlyDraft(t *testing.T) {
	fs := &fakeStore{
		getInvoiceFn: func(_ context.Context, id string) (store.Invoice, error) {
			return store.Invoice{ID: id, Status: "ISSUED"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateInvoiceLines(context.Background(), "inv-1", InvoiceInput{
		Lines: []store.InvoiceLine{{Description: "Seats", Quantity: 1, UnitPrice: 49}},
	})
	assertDomainCode(t, err, "NOT_DRAFT")
}

func TestIssueInvoicePassesAllowedStates(t *testing.T) {
	var gotStatus string
	var gotAllowed []string
	fs := &fakeStore{
		getInvoiceFn: func(_ context.Context, id string) (store.Invoice, error) {
			return store.Invoice{ID: id, Status: "DRAFT"}, nil
		},
		updateInvoiceStatusFn: func(_ context.Context, _, status string, allowedFrom []string, markPaid bool) (bool, error) {
			gotStatus = status
			gotAllowed = allowedFrom
			if markPaid {
				t.Error("issuing must not stamp paidAt")
			}
			return true, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.IssueInvoice(context.Background(), "inv-1"); err != nil {
		t.Fatalf("IssueInvoice: %v", err)
	}
	if gotStatus != "ISSUED" {
		t.Fatalf("expected target ISSUED, got %q", gotStatus)
	}
	if len(gotAllowed) != 1 || gotAllowed[0] != "DRAFT" {
		t.Fatalf("expected allowedFrom [DRAFT], got %v", gotAllowed)
	}
}

func TestMarkInvoicePaidRejectsDraft(t *testing.T) {
	fs := &fakeStore{
		getInvoiceFn: func(_ context.Context, id string) (store.Invoice, error) {
			return store.Invoice{ID: id, Status: "DRAFT"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.MarkInvoicePaid(context.Background(), "inv-1")
	assertDomainCode(t, err, "INVALID_TRANSITION")
}

func TestVoidInvoiceRejectsPaid(t *testing.T) {
	fs := &fakeStore{
		getInvoiceFn: func(_ context.Context, id string) (store.Invoice, error) {
			return store.Invoice{ID: id, Status: "PAID"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.VoidInvoice(context.Background(), "inv-1")
	assertDomainCode(t, err, "INVALID_TRANSITION")
}

func TestMarkInvoicePaidStampsPaidAt(t *testing.T) {
	fs := &fakeStore{
		getInvoiceFn: func(_ context.Context, id string) (store.Invoice, error) {
			return store.Invoice{ID: id, Number: "INV-2026-0001", Status: "ISSUED", Total: 990, Currency: "USD"}, nil
		},
		updateInvoiceStatusFn: func(_ context.Context, _, _ string, _ []string, markPaid bool) (bool, error) {
			if !markPaid {
				t.Error("expected paidAt to be stamped")
			}
			return true, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.MarkInvoicePaid(context.Background(), "inv-1"); err != nil {
		t.Fatalf("MarkInvoicePaid: %v", err)
	}
}
