package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meridian/api/internal/auth"
	"meridian/api/internal/authpw"
	"meridian/api/internal/config"
	"meridian/api/internal/docrepo"
	"meridian/api/internal/email"
	"meridian/api/internal/export"
	"meridian/api/internal/files"
	"meridian/api/internal/rbac"
	"meridian/api/internal/search"
	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// sequenceRetries bounds the duplicate-key retry loop for generated numbers.
const sequenceRetries = 5

type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListUsers(context.Context) ([]store.User, error)
	UpdateUserRole(context.Context, string, string) error

	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	InsertWebhook(context.Context, store.Webhook) error
	ListWebhooks(context.Context) ([]store.Webhook, error)
	ListActiveWebhooksByEvent(context.Context, string) ([]store.Webhook, error)
	DeleteWebhook(context.Context, string) error

	InsertAttachment(context.Context, store.Attachment) error
	GetAttachment(context.Context, string) (store.Attachment, error)
	ListAttachments(context.Context, string, string) ([]store.Attachment, error)
	DeleteAttachment(context.Context, string) error

	SummaryCounts(context.Context) (int, int, int, error)
	NextSequence(context.Context, string) (int64, error)

	InsertTicket(context.Context, store.Ticket) error
	GetTicket(context.Context, string) (store.Ticket, error)
	ListTickets(context.Context, store.TicketFilter) ([]store.Ticket, error)
	UpdateTicket(context.Context, store.Ticket) error
	UpdateTicketStatus(context.Context, string, string, bool) error
	AssignTicket(context.Context, string, *string) error
	DeleteTicket(context.Context, string) error
	InsertTicketComment(context.Context, store.TicketComment) error
	ListTicketComments(context.Context, string, bool) ([]store.TicketComment, error)

	InsertApprovalRequest(context.Context, store.ApprovalRequest) error
	GetApprovalRequest(context.Context, string) (store.ApprovalRequest, error)
	ListApprovalRequests(context.Context, string, string) ([]store.ApprovalRequest, error)
	DecideApprovalRequest(context.Context, string, string, string, string) (bool, error)
	CancelApprovalRequest(context.Context, string, string) (bool, error)

	InsertAccount(context.Context, store.Account) error
	GetAccount(context.Context, string) (store.Account, error)
	ListAccounts(context.Context, string, int) ([]store.Account, error)
	UpdateAccount(context.Context, store.Account) error
	DeleteAccount(context.Context, string) error
	InsertTouchpoint(context.Context, store.Touchpoint) error
	ListTouchpoints(context.Context, string, int) ([]store.Touchpoint, error)

	InsertProject(context.Context, store.Project) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjects(context.Context) ([]store.Project, error)
	UpdateProject(context.Context, store.Project) error
	DeleteProject(context.Context, string) error
	ProjectIssueCount(context.Context, string) (int, error)
	InsertBoardColumn(context.Context, store.BoardColumn) error
	GetBoardColumn(context.Context, string) (store.BoardColumn, error)
	ListBoardColumns(context.Context, string) ([]store.BoardColumn, error)
	RenameBoardColumn(context.Context, string, string) error
	DeleteBoardColumn(context.Context, string) error
	ColumnIssueCount(context.Context, string) (int, error)
	InsertIssue(context.Context, store.Issue) error
	GetIssue(context.Context, string) (store.Issue, error)
	ListIssues(context.Context, store.IssueFilter) ([]store.Issue, error)
	UpdateIssue(context.Context, store.Issue) error
	MoveIssue(context.Context, string, string, float64) error
	ReindexColumn(context.Context, string, float64) error
	DeleteIssue(context.Context, string) error
	InsertSprint(context.Context, store.Sprint) error
	GetSprint(context.Context, string) (store.Sprint, error)
	ListSprints(context.Context, string) ([]store.Sprint, error)
	UpdateSprintStatus(context.Context, string, string) error
	ClearSprintFromIssues(context.Context, string) error

	InsertJournalEntry(context.Context, store.JournalEntry) error
	GetJournalEntry(context.Context, string) (store.JournalEntry, error)
	ListJournalEntries(context.Context, *time.Time, *time.Time, int) ([]store.JournalEntry, error)
	InsertInvoice(context.Context, store.Invoice) error
	GetInvoice(context.Context, string) (store.Invoice, error)
	ListInvoices(context.Context, string, string) ([]store.Invoice, error)
	UpdateInvoiceStatus(context.Context, string, string, []string, bool) (bool, error)
	UpdateInvoiceLines(context.Context, string, []store.InvoiceLine, float64, time.Time) error

	InsertAsset(context.Context, store.Asset) error
	GetAsset(context.Context, string) (store.Asset, error)
	ListAssets(context.Context, string, string) ([]store.Asset, error)
	UpdateAsset(context.Context, store.Asset) error
	DeleteAsset(context.Context, string) error
	InsertLicense(context.Context, store.License) error
	GetLicense(context.Context, string) (store.License, error)
	ListLicenses(context.Context) ([]store.License, error)
	UpdateLicense(context.Context, store.License) error
	DeleteLicense(context.Context, string) error
	AssignLicenseSeat(context.Context, store.LicenseAssignment) (bool, error)
	ReleaseLicenseSeat(context.Context, string, string) error
	ListLicenseAssignments(context.Context, string) ([]store.LicenseAssignment, error)

	InsertSocialPost(context.Context, store.SocialPost) error
	GetSocialPost(context.Context, string) (store.SocialPost, error)
	ListSocialPosts(context.Context, string) ([]store.SocialPost, error)
	UpdateSocialPost(context.Context, store.SocialPost) error
	UpdateSocialPostSchedule(context.Context, string, string, any) error
	MarkSocialPostPublished(context.Context, string) (bool, error)
	DeleteSocialPost(context.Context, string) error

	InsertContract(context.Context, store.Contract) error
	GetContract(context.Context, string) (store.Contract, error)
	ListContracts(context.Context, string, string) ([]store.Contract, error)
	UpdateContractBody(context.Context, string, string, string, string) error
	MarkContractSent(context.Context, string) (bool, error)
	MarkContractCompleted(context.Context, string) error
	MarkContractDeclined(context.Context, string) error
	VoidContract(context.Context, string) (bool, error)
	DeleteContract(context.Context, string) error
	InsertSigner(context.Context, store.Signer) error
	ListSigners(context.Context, string) ([]store.Signer, error)
	UpdateSignerToken(context.Context, string, string) error
	GetSignerByTokenHash(context.Context, string) (store.Signer, error)
	MarkSignerSigned(context.Context, string) (bool, error)
	MarkSignerDeclined(context.Context, string, string) (bool, error)
	CountPendingSigners(context.Context, string) (int, error)
	DeleteSigners(context.Context, string) error
}

// sessionStore holds refresh tokens. Backed by Redis in production with the
// Postgres table as fallback.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type contractRepo interface {
	EnsureContractRepo(contractID string, initial docrepo.Content, author string) (store.RevisionInfo, error)
	CommitContent(contractID string, content docrepo.Content, author, message string) (store.RevisionInfo, error)
	GetContentByHash(contractID, hash string) (docrepo.Content, error)
	History(contractID string, limit int) ([]store.RevisionInfo, error)
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexTicket(t search.TicketRecord)
	IndexIssue(i search.IssueRecord)
	IndexAccount(a search.AccountRecord)
	IndexContract(c search.ContractRecord)
	DeleteTicket(id string)
	DeleteIssue(id string)
	DeleteAccount(id string)
	DeleteContract(id string)
}

// Deps bundles the service's collaborators. Search, Email, Blobs, and
// Exporter may be nil; the corresponding features degrade gracefully.
type Deps struct {
	Store    *store.PostgresStore
	Sessions sessionStore
	Docs     *docrepo.Service
	Search   *search.Service
	Email    *email.Service
	Blobs    files.BlobStore
	Exporter *export.Service
	AuthPW   *authpw.Service
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	docs     contractRepo
	search   searchIndex
	email    *email.Service
	blobs    files.BlobStore
	exporter *export.Service
	authpw   *authpw.Service
	webhooks *http.Client
}

func New(cfg config.Config, deps Deps) *Service {
	s := &Service{
		cfg:      cfg,
		store:    deps.Store,
		sessions: deps.Sessions,
		docs:     deps.Docs,
		email:    deps.Email,
		blobs:    deps.Blobs,
		exporter: deps.Exporter,
		authpw:   deps.AuthPW,
		webhooks: &http.Client{Timeout: 10 * time.Second},
	}
	if deps.Search != nil {
		s.search = deps.Search
	}
	if s.sessions == nil {
		s.sessions = deps.Store
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Bootstrap seeds the workspace with an admin account on first boot.
func (s *Service) Bootstrap(ctx context.Context) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	admin := store.User{
		ID:              util.NewID("usr"),
		DisplayName:     "Workspace Admin",
		Email:           "admin@meridian.local",
		Role:            "admin",
		IsEmailVerified: true,
	}
	return s.store.CreateUser(ctx, admin)
}

// ── Sessions ──

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Redis only stores the user id; load the full record.
	if user.DisplayName == "" {
		user, err = s.store.GetUserByID(ctx, user.ID)
		if err != nil {
			return Session{}, err
		}
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	if user.DeactivatedAt != nil {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ── Workspace users ──

func (s *Service) ListUsers(ctx context.Context) ([]map[string]any, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, map[string]any{
			"id":          user.ID,
			"displayName": user.DisplayName,
			"email":       user.Email,
			"role":        user.Role,
			"verified":    user.IsEmailVerified,
			"createdAt":   user.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) UpdateUserRole(ctx context.Context, userID, role string) error {
	normalized := rbac.Normalize(role)
	if string(normalized) != strings.ToLower(strings.TrimSpace(role)) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown role", map[string]any{"role": role})
	}
	return s.store.UpdateUserRole(ctx, userID, string(normalized))
}

// ── Summary & search ──

func (s *Service) Summary(ctx context.Context) (map[string]any, error) {
	openTickets, pendingApprovals, activeContracts, err := s.store.SummaryCounts(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"openTickets":      openTickets,
		"pendingApprovals": pendingApprovals,
		"activeContracts":  activeContracts,
	}, nil
}

func (s *Service) Search(ctx context.Context, text, filterType string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:       text,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	}), nil
}

// ── Generated numbers ──

func (s *Service) nextNumber(ctx context.Context, scope, format string) (string, error) {
	n, err := s.store.NextSequence(ctx, scope)
	if err != nil {
		return "", fmt.Errorf("next %s sequence: %w", scope, err)
	}
	return fmt.Sprintf(format, n), nil
}

func (s *Service) nextTicketNumber(ctx context.Context) (string, error) {
	return s.nextNumber(ctx, "ticket", "HD-%d")
}

func (s *Service) nextInvoiceNumber(ctx context.Context) (string, error) {
	n, err := s.store.NextSequence(ctx, "invoice")
	if err != nil {
		return "", fmt.Errorf("next invoice sequence: %w", err)
	}
	return fmt.Sprintf("INV-%d-%04d", time.Now().Year(), n), nil
}

func (s *Service) nextContractNumber(ctx context.Context) (string, error) {
	n, err := s.store.NextSequence(ctx, "contract")
	if err != nil {
		return "", fmt.Errorf("next contract sequence: %w", err)
	}
	return fmt.Sprintf("CTR-%d-%04d", time.Now().Year(), n), nil
}

func (s *Service) nextIssueKey(ctx context.Context, projectKey string) (string, error) {
	n, err := s.store.NextSequence(ctx, "issue:"+projectKey)
	if err != nil {
		return "", fmt.Errorf("next issue sequence: %w", err)
	}
	return fmt.Sprintf("%s-%d", projectKey, n), nil
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
