package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Webhook struct {
	ID        string
	Event     string
	URL       string
	Secret    string
	Active    bool
	CreatedBy string
	CreatedAt time.Time
}

type Attachment struct {
	ID          string
	Module      string
	RecordID    string
	Filename    string
	ContentType string
	Size        int64
	StorageKey  string
	UploadedBy  string
	CreatedAt   time.Time
}

// ── Helpdesk ──

type Ticket struct {
	ID             string
	Number         string
	Subject        string
	Body           string
	Status         string
	Priority       string
	RequesterName  string
	RequesterEmail string
	AssigneeID     *string
	Tags           []string
	SLADueAt       *time.Time
	ResolvedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TicketComment struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorName string
	Body       string
	Internal   bool
	CreatedAt  time.Time
}

// ── Approvals ──

type ApprovalRequest struct {
	ID           string
	Kind         string
	Title        string
	Description  string
	Amount       *float64
	Currency     string
	Status       string
	RequestedBy  string
	RequesterID  string
	DecidedBy    string
	DecisionNote string
	DecidedAt    *time.Time
	CreatedAt    time.Time
}

// ── Customer success ──

type Account struct {
	ID           string
	Name         string
	Domain       string
	Plan         string
	BillingEmail string
	MRR          float64
	HealthScore  int
	RenewalAt    *time.Time
	OwnerID      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Touchpoint struct {
	ID         string
	AccountID  string
	Kind       string
	Note       string
	AuthorName string
	OccurredAt time.Time
	CreatedAt  time.Time
}

// ── StratFlow ──

type Project struct {
	ID          string
	Key         string
	Name        string
	Description string
	LeadID      *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type BoardColumn struct {
	ID        string
	ProjectID string
	Name      string
	SortOrder int
	CreatedAt time.Time
}

type Issue struct {
	ID          string
	ProjectID   string
	Key         string
	ColumnID    string
	SprintID    *string
	Title       string
	Description string
	Type        string
	Priority    string
	AssigneeID  *string
	Reporter    string
	Position    float64
	Estimate    *float64
	Labels      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Sprint struct {
	ID        string
	ProjectID string
	Name      string
	Goal      string
	Status    string
	StartsAt  *time.Time
	EndsAt    *time.Time
	CreatedAt time.Time
}

// ── Accounting ──

type JournalLine struct {
	AccountCode string  `json:"accountCode"`
	AccountName string  `json:"accountName"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
}

type JournalEntry struct {
	ID        string
	EntryDate time.Time
	Memo      string
	Lines     []JournalLine
	CreatedBy string
	CreatedAt time.Time
}

type InvoiceLine struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Amount      float64 `json:"amount"`
}

type Invoice struct {
	ID        string
	Number    string
	AccountID string
	Status    string
	Currency  string
	IssueDate time.Time
	DueDate   time.Time
	Lines     []InvoiceLine
	Total     float64
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ── Assets & licenses ──

type Asset struct {
	ID            string
	Tag           string
	Name          string
	Category      string
	SerialNumber  string
	Status        string
	AssignedToID  *string
	PurchasedAt   *time.Time
	WarrantyUntil *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type License struct {
	ID        string
	Product   string
	Vendor    string
	Seats     int
	SeatsUsed int
	ExpiresAt *time.Time
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type LicenseAssignment struct {
	ID         string
	LicenseID  string
	UserID     string
	UserName   string
	AssignedAt time.Time
}

// ── Social marketing ──

type SocialPost struct {
	ID          string
	Body        string
	Channels    []string
	Status      string
	ScheduledAt *time.Time
	PublishedAt *time.Time
	AuthorID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ── Contracts ──

type Contract struct {
	ID              string
	Number          string
	Title           string
	AccountID       *string
	Status          string
	Body            string
	CurrentRevision string
	CreatedBy       string
	SentAt          *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Signer struct {
	ID            string
	ContractID    string
	Email         string
	Name          string
	TokenHash     string
	Status        string
	SortOrder     int
	SignedAt      *time.Time
	DeclineReason string
	CreatedAt     time.Time
}

type RevisionInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
