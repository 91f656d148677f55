package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across tickets, issues, accounts, and
// contracts using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultTicket {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'ticket'::text AS type, t.id, t.number, t.subject AS title,
				ts_headline('english', coalesce(t.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				t.status,
				ts_rank(t.fts, %s) AS rank
			FROM tickets t
			WHERE t.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultIssue {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'issue'::text AS type, i.id, i.key AS number, i.title,
				ts_headline('english', coalesce(i.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS status,
				ts_rank(i.fts, %s) AS rank
			FROM issues i
			WHERE i.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultAccount {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'account'::text AS type, a.id, ''::text AS number, a.name AS title,
				a.domain AS snippet,
				a.plan AS status,
				ts_rank(a.fts, %s) AS rank
			FROM accounts a
			WHERE a.fts @@ %s`, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultContract {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'contract'::text AS type, c.id, c.number, c.title,
				ts_headline('english', coalesce(c.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.status,
				ts_rank(c.fts, %s) AS rank
			FROM contracts c
			WHERE c.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, number, title, snippet, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Number, &r.Title, &r.Snippet, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]TicketRecord, []IssueRecord, []AccountRecord, []ContractRecord, error) {
	ticketRows, err := p.db.QueryContext(ctx, `
		SELECT id, number, subject, body, status FROM tickets
	`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load tickets: %w", err)
	}
	defer ticketRows.Close()

	tickets := make([]TicketRecord, 0)
	for ticketRows.Next() {
		var t TicketRecord
		if err := ticketRows.Scan(&t.ID, &t.Number, &t.Subject, &t.Body, &t.Status); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := ticketRows.Err(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("iterate tickets: %w", err)
	}

	issueRows, err := p.db.QueryContext(ctx, `
		SELECT id, key, title, description, project_id FROM issues
	`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load issues: %w", err)
	}
	defer issueRows.Close()

	issues := make([]IssueRecord, 0)
	for issueRows.Next() {
		var i IssueRecord
		if err := issueRows.Scan(&i.ID, &i.Key, &i.Title, &i.Description, &i.ProjectID); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, i)
	}
	if err := issueRows.Err(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("iterate issues: %w", err)
	}

	accountRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, domain, plan FROM accounts
	`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load accounts: %w", err)
	}
	defer accountRows.Close()

	accounts := make([]AccountRecord, 0)
	for accountRows.Next() {
		var a AccountRecord
		if err := accountRows.Scan(&a.ID, &a.Name, &a.Domain, &a.Plan); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := accountRows.Err(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("iterate accounts: %w", err)
	}

	contractRows, err := p.db.QueryContext(ctx, `
		SELECT id, number, title, body, status FROM contracts
	`)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load contracts: %w", err)
	}
	defer contractRows.Close()

	contracts := make([]ContractRecord, 0)
	for contractRows.Next() {
		var c ContractRecord
		if err := contractRows.Scan(&c.ID, &c.Number, &c.Title, &c.Body, &c.Status); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := contractRows.Err(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("iterate contracts: %w", err)
	}

	return tickets, issues, accounts, contracts, nil
}
