package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexTicket indexes a ticket (fire-and-forget to Meilisearch).
func (s *Service) IndexTicket(t TicketRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTicket(t); err != nil {
			log.Printf("search: index ticket %s: %v", t.ID, err)
		}
	}()
}

// IndexIssue indexes an issue (fire-and-forget to Meilisearch).
func (s *Service) IndexIssue(i IssueRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexIssue(i); err != nil {
			log.Printf("search: index issue %s: %v", i.ID, err)
		}
	}()
}

// IndexAccount indexes an account (fire-and-forget to Meilisearch).
func (s *Service) IndexAccount(a AccountRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexAccount(a); err != nil {
			log.Printf("search: index account %s: %v", a.ID, err)
		}
	}()
}

// IndexContract indexes a contract (fire-and-forget to Meilisearch).
func (s *Service) IndexContract(c ContractRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexContract(c); err != nil {
			log.Printf("search: index contract %s: %v", c.ID, err)
		}
	}()
}

// DeleteTicket removes a ticket from the search index (fire-and-forget).
func (s *Service) DeleteTicket(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTicket(id); err != nil {
			log.Printf("search: delete ticket %s: %v", id, err)
		}
	}()
}

// DeleteIssue removes an issue from the search index (fire-and-forget).
func (s *Service) DeleteIssue(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteIssue(id); err != nil {
			log.Printf("search: delete issue %s: %v", id, err)
		}
	}()
}

// DeleteAccount removes an account from the search index (fire-and-forget).
func (s *Service) DeleteAccount(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteAccount(id); err != nil {
			log.Printf("search: delete account %s: %v", id, err)
		}
	}()
}

// DeleteContract removes a contract from the search index (fire-and-forget).
func (s *Service) DeleteContract(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteContract(id); err != nil {
			log.Printf("search: delete contract %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	tickets, issues, accounts, contracts, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexTickets(tickets); err != nil {
		log.Printf("search: reindex tickets: %v", err)
	}
	if err := s.meili.IndexIssues(issues); err != nil {
		log.Printf("search: reindex issues: %v", err)
	}
	if err := s.meili.IndexAccounts(accounts); err != nil {
		log.Printf("search: reindex accounts: %v", err)
	}
	if err := s.meili.IndexContracts(contracts); err != nil {
		log.Printf("search: reindex contracts: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
