package export

import (
	"bytes"
	"html/template"
	"time"
)

var (
	contractTemplate = template.Must(template.New("contract").Parse(contractHTML))
	invoiceTemplate  = template.Must(template.New("invoice").Parse(invoiceHTML))
)

// ContractData holds data for contract template rendering
type ContractData struct {
	Number    string
	Title     string
	Status    string
	BodyHTML  template.HTML
	Signers   []ContractSigner
	UpdatedAt time.Time
}

// ContractSigner holds signer data for the signature block
type ContractSigner struct {
	Name     string
	Email    string
	Status   string
	SignedAt *time.Time
}

// InvoiceData holds data for invoice template rendering
type InvoiceData struct {
	Number      string
	AccountName string
	Status      string
	Currency    string
	IssueDate   time.Time
	DueDate     time.Time
	Lines       []InvoiceLineData
	Total       float64
}

// InvoiceLineData is one row of the invoice table
type InvoiceLineData struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	Amount      float64
}

// RenderContractHTML renders the contract template with provided data
func RenderContractHTML(data ContractData) (string, error) {
	var buf bytes.Buffer
	if err := contractTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderInvoiceHTML renders the invoice template with provided data
func RenderInvoiceHTML(data InvoiceData) (string, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const contractHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #1a1a1a; }
    h1 { border-bottom: 2px solid #0b5d50; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .body { white-space: pre-wrap; }
    .signatures { margin-top: 3rem; page-break-inside: avoid; }
    .signer { border-top: 1px solid #999; margin-top: 2rem; padding-top: 0.5rem; }
    .signer .status { color: #666; font-size: 0.85em; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Number}} | {{.Status}} | {{.UpdatedAt.Format "Jan 2, 2006"}}</div>
  <div class="body">{{.BodyHTML}}</div>
  {{if .Signers}}
  <div class="signatures">
    <h2>Signatures</h2>
    {{range .Signers}}
    <div class="signer">
      <div>{{.Name}} &lt;{{.Email}}&gt;</div>
      <div class="status">{{.Status}}{{if .SignedAt}} on {{.SignedAt.Format "Jan 2, 2006 15:04 MST"}}{{end}}</div>
    </div>
    {{end}}
  </div>
  {{end}}
</body>
</html>`

const invoiceHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Invoice {{.Number}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #1a1a1a; }
    h1 { color: #0b5d50; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { width: 100%; border-collapse: collapse; margin: 1.5rem 0; }
    th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid #ddd; }
    th { border-bottom: 2px solid #0b5d50; }
    td.num, th.num { text-align: right; }
    .total { font-weight: bold; font-size: 1.1em; }
  </style>
</head>
<body>
  <h1>Invoice {{.Number}}</h1>
  <div class="meta">
    {{.AccountName}} | {{.Status}}<br>
    Issued {{.IssueDate.Format "Jan 2, 2006"}} | Due {{.DueDate.Format "Jan 2, 2006"}}
  </div>
  <table>
    <tr><th>Description</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Amount</th></tr>
    {{range .Lines}}
    <tr><td>{{.Description}}</td><td class="num">{{printf "%.2f" .Quantity}}</td><td class="num">{{printf "%.2f" .UnitPrice}}</td><td class="num">{{printf "%.2f" .Amount}}</td></tr>
    {{end}}
    <tr class="total"><td colspan="3">Total ({{.Currency}})</td><td class="num">{{printf "%.2f" .Total}}</td></tr>
  </table>
</body>
</html>`
