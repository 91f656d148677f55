package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxTickets   = "meridian_tickets"
	idxIssues    = "meridian_issues"
	idxAccounts  = "meridian_accounts"
	idxContracts = "meridian_contracts"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// Returns a client even when the initial connection fails; the health
// loop keeps probing and reconfigures once the server comes back.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxTickets,
			primaryKey: "id",
			filterable: []string{"status"},
			searchable: []string{"number", "subject", "body"},
		},
		{
			uid:        idxIssues,
			primaryKey: "id",
			filterable: []string{"projectId"},
			searchable: []string{"key", "title", "description"},
		},
		{
			uid:        idxAccounts,
			primaryKey: "id",
			filterable: []string{"plan"},
			searchable: []string{"name", "domain"},
		},
		{
			uid:        idxContracts,
			primaryKey: "id",
			filterable: []string{"status"},
			searchable: []string{"number", "title", "body"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries all four indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxTickets, ResultTicket},
		{idxIssues, ResultIssue},
		{idxAccounts, ResultAccount},
		{idxContracts, ResultContract},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		})
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxTickets:
		return ResultTicket
	case idxIssues:
		return ResultIssue
	case idxAccounts:
		return ResultAccount
	case idxContracts:
		return ResultContract
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.Status = decodeString(hit, "status")

	switch rtyp {
	case ResultTicket:
		r.Number = decodeString(hit, "number")
		r.Title = firstNonBlank(decodeFormattedString(hit, "subject"), decodeString(hit, "subject"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body"))
	case ResultIssue:
		r.Number = decodeString(hit, "key")
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	case ResultAccount:
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "domain"), decodeString(hit, "domain"))
	case ResultContract:
		r.Number = decodeString(hit, "number")
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "body"), decodeString(hit, "body"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexTicket adds or updates a ticket in the search index.
func (m *Meili) IndexTicket(t TicketRecord) error {
	_, err := m.client.Index(idxTickets).AddDocuments([]TicketRecord{t}, nil)
	return err
}

// IndexIssue adds or updates an issue in the search index.
func (m *Meili) IndexIssue(i IssueRecord) error {
	_, err := m.client.Index(idxIssues).AddDocuments([]IssueRecord{i}, nil)
	return err
}

// IndexAccount adds or updates an account in the search index.
func (m *Meili) IndexAccount(a AccountRecord) error {
	_, err := m.client.Index(idxAccounts).AddDocuments([]AccountRecord{a}, nil)
	return err
}

// IndexContract adds or updates a contract in the search index.
func (m *Meili) IndexContract(c ContractRecord) error {
	_, err := m.client.Index(idxContracts).AddDocuments([]ContractRecord{c}, nil)
	return err
}

// DeleteTicket removes a ticket from the search index.
func (m *Meili) DeleteTicket(id string) error {
	_, err := m.client.Index(idxTickets).DeleteDocument(id, nil)
	return err
}

// DeleteIssue removes an issue from the search index.
func (m *Meili) DeleteIssue(id string) error {
	_, err := m.client.Index(idxIssues).DeleteDocument(id, nil)
	return err
}

// DeleteAccount removes an account from the search index.
func (m *Meili) DeleteAccount(id string) error {
	_, err := m.client.Index(idxAccounts).DeleteDocument(id, nil)
	return err
}

// DeleteContract removes a contract from the search index.
func (m *Meili) DeleteContract(id string) error {
	_, err := m.client.Index(idxContracts).DeleteDocument(id, nil)
	return err
}

// IndexTickets bulk-indexes tickets.
func (m *Meili) IndexTickets(tickets []TicketRecord) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := m.client.Index(idxTickets).AddDocuments(tickets, nil)
	return err
}

// IndexIssues bulk-indexes issues.
func (m *Meili) IndexIssues(issues []IssueRecord) error {
	if len(issues) == 0 {
		return nil
	}
	_, err := m.client.Index(idxIssues).AddDocuments(issues, nil)
	return err
}

// IndexAccounts bulk-indexes accounts.
func (m *Meili) IndexAccounts(accounts []AccountRecord) error {
	if len(accounts) == 0 {
		return nil
	}
	_, err := m.client.Index(idxAccounts).AddDocuments(accounts, nil)
	return err
}

// IndexContracts bulk-indexes contracts.
func (m *Meili) IndexContracts(contracts []ContractRecord) error {
	if len(contracts) == 0 {
		return nil
	}
	_, err := m.client.Index(idxContracts).AddDocuments(contracts, nil)
	return err
}
