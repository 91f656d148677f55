package export

import (
	"context"
	"fmt"
	"html"
	"html/template"

	"meridian/api/internal/store"
)

// DataStore is the subset of persistence the exporter needs.
type DataStore interface {
	GetContract(ctx context.Context, id string) (store.Contract, error)
	ListSigners(ctx context.Context, contractID string) ([]store.Signer, error)
	GetInvoice(ctx context.Context, id string) (store.Invoice, error)
	GetAccount(ctx context.Context, id string) (store.Account, error)
}

// Service renders contracts and invoices as PDFs.
type Service struct {
	store DataStore
}

func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// ExportContract renders the contract body plus a signature block.
func (s *Service) ExportContract(ctx context.Context, contractID string) (*Result, error) {
	contract, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}

	signers, err := s.store.ListSigners(ctx, contract.ID)
	if err != nil {
		return nil, fmt.Errorf("list signers: %w", err)
	}

	data := ContractData{
		Number:    contract.Number,
		Title:     contract.Title,
		Status:    contract.Status,
		BodyHTML:  template.HTML(html.EscapeString(contract.Body)),
		UpdatedAt: contract.UpdatedAt,
	}
	for _, signer := range signers {
		data.Signers = append(data.Signers, ContractSigner{
			Name:     signer.Name,
			Email:    signer.Email,
			Status:   signer.Status,
			SignedAt: signer.SignedAt,
		})
	}

	page, err := RenderContractHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	return renderPDF(page, contract.Number+"-"+contract.Title)
}

// ExportInvoice renders an invoice with its line items.
func (s *Service) ExportInvoice(ctx context.Context, invoiceID string) (*Result, error) {
	invoice, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	accountName := ""
	if account, err := s.store.GetAccount(ctx, invoice.AccountID); err == nil {
		accountName = account.Name
	}

	data := InvoiceData{
		Number:      invoice.Number,
		AccountName: accountName,
		Status:      invoice.Status,
		Currency:    invoice.Currency,
		IssueDate:   invoice.IssueDate,
		DueDate:     invoice.DueDate,
		Total:       invoice.Total,
	}
	for _, line := range invoice.Lines {
		data.Lines = append(data.Lines, InvoiceLineData{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount,
		})
	}

	page, err := RenderInvoiceHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	return renderPDF(page, "invoice-"+invoice.Number)
}
