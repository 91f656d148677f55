package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTicket   ResultType = "ticket"
	ResultIssue    ResultType = "issue"
	ResultAccount  ResultType = "account"
	ResultContract ResultType = "contract"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Number  string     `json:"number,omitempty"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// TicketRecord is the data we index for a helpdesk ticket.
type TicketRecord struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Status  string `json:"status"`
}

// IssueRecord is the data we index for a tracker issue.
type IssueRecord struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
}

// AccountRecord is the data we index for a customer account.
type AccountRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Plan   string `json:"plan"`
}

// ContractRecord is the data we index for a contract.
type ContractRecord struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Status string `json:"status"`
}
