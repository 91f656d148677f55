package app

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"meridian/api/internal/search"
	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

// Board ordering uses fractional positions: an issue dropped between two
// neighbours takes their midpoint. When neighbours get closer than
// positionEpsilon the column is rewritten at positionSpacing intervals.
const (
	positionSpacing = 1024.0
	positionEpsilon = 1e-9
)

var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

var allowedIssueTypes = map[string]struct{}{
	"TASK":  {},
	"BUG":   {},
	"STORY": {},
	"EPIC":  {},
}

var allowedSprintStatuses = map[string]struct{}{
	"PLANNED":   {},
	"ACTIVE":    {},
	"COMPLETED": {},
}

// defaultColumns seed every new project's board.
var defaultColumns = []string{"Backlog", "In Progress", "Review", "Done"}

// ── Projects ──

type ProjectInput struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	LeadID      *string `json:"leadId"`
}

func (s *Service) CreateProject(ctx context.Context, input ProjectInput) (store.Project, error) {
	key := strings.ToUpper(strings.TrimSpace(input.Key))
	if !projectKeyPattern.MatchString(key) {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "key must be 2-10 characters, letters and digits, starting with a letter", map[string]any{"key": input.Key})
	}
	if strings.TrimSpace(input.Name) == "" {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	project := store.Project{
		ID:          util.NewID("prj"),
		Key:         key,
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		LeadID:      input.LeadID,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		if store.IsUniqueViolation(err) {
			return store.Project{}, domainError(http.StatusConflict, "KEY_TAKEN", "project key already in use", map[string]any{"key": key})
		}
		return store.Project{}, err
	}

	for i, name := range defaultColumns {
		column := store.BoardColumn{
			ID:        util.NewID("col"),
			ProjectID: project.ID,
			Name:      name,
			SortOrder: i,
		}
		if err := s.store.InsertBoardColumn(ctx, column); err != nil {
			return store.Project{}, err
		}
	}

	return s.store.GetProject(ctx, project.ID)
}

func (s *Service) GetProject(ctx context.Context, id string) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	issueCount, err := s.store.ProjectIssueCount(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"project":    project,
		"issueCount": issueCount,
	}, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]store.Project, error) {
	return s.store.ListProjects(ctx)
}

func (s *Service) UpdateProject(ctx context.Context, id string, input ProjectInput) (store.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return store.Project{}, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	// The key is permanent; issue keys derive from it.
	project.Name = strings.TrimSpace(input.Name)
	project.Description = input.Description
	project.LeadID = input.LeadID
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return store.Project{}, err
	}
	return s.store.GetProject(ctx, project.ID)
}

func (s *Service) DeleteProject(ctx context.Context, id string) error {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.store.ProjectIssueCount(ctx, project.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return domainError(http.StatusConflict, "PROJECT_NOT_EMPTY", "project still has issues", map[string]any{"issueCount": count})
	}
	return s.store.DeleteProject(ctx, project.ID)
}

// ── Board columns ──

func (s *Service) Board(ctx context.Context, projectID string) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	columns, err := s.store.ListBoardColumns(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	issues, err := s.store.ListIssues(ctx, store.IssueFilter{ProjectID: project.ID})
	if err != nil {
		return nil, err
	}

	byColumn := make(map[string][]store.Issue, len(columns))
	for _, issue := range issues {
		byColumn[issue.ColumnID] = append(byColumn[issue.ColumnID], issue)
	}

	columnViews := make([]map[string]any, 0, len(columns))
	for _, column := range columns {
		columnIssues := byColumn[column.ID]
		if columnIssues == nil {
			columnIssues = []store.Issue{}
		}
		columnViews = append(columnViews, map[string]any{
			"id":     column.ID,
			"name":   column.Name,
			"issues": columnIssues,
		})
	}

	return map[string]any{
		"project": project,
		"columns": columnViews,
	}, nil
}

func (s *Service) AddBoardColumn(ctx context.Context, projectID, name string) (store.BoardColumn, error) {
	if strings.TrimSpace(name) == "" {
		return store.BoardColumn{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.BoardColumn{}, err
	}
	existing, err := s.store.ListBoardColumns(ctx, project.ID)
	if err != nil {
		return store.BoardColumn{}, err
	}
	column := store.BoardColumn{
		ID:        util.NewID("col"),
		ProjectID: project.ID,
		Name:      strings.TrimSpace(name),
		SortOrder: len(existing),
	}
	if err := s.store.InsertBoardColumn(ctx, column); err != nil {
		return store.BoardColumn{}, err
	}
	return s.store.GetBoardColumn(ctx, column.ID)
}

func (s *Service) RenameBoardColumn(ctx context.Context, columnID, name string) (store.BoardColumn, error) {
	if strings.TrimSpace(name) == "" {
		return store.BoardColumn{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if err := s.store.RenameBoardColumn(ctx, columnID, strings.TrimSpace(name)); err != nil {
		return store.BoardColumn{}, err
	}
	return s.store.GetBoardColumn(ctx, columnID)
}

func (s *Service) DeleteBoardColumn(ctx context.Context, columnID string) error {
	count, err := s.store.ColumnIssueCount(ctx, columnID)
	if err != nil {
		return err
	}
	if count > 0 {
		return domainError(http.StatusConflict, "COLUMN_NOT_EMPTY", "move issues out of the column first", map[string]any{"issueCount": count})
	}
	return s.store.DeleteBoardColumn(ctx, columnID)
}

// ── Issues ──

type IssueInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Priority    string   `json:"priority"`
	ColumnID    string   `json:"columnId"`
	AssigneeID  *string  `json:"assigneeId"`
	Estimate    *float64 `json:"estimate"`
	Labels      []string `json:"labels"`
}

func (s *Service) CreateIssue(ctx context.Context, projectID string, session Session, input IssueInput) (store.Issue, error) {
	if strings.TrimSpace(input.Title) == "" {
		return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	issueType := strings.ToUpper(strings.TrimSpace(input.Type))
	if issueType == "" {
		issueType = "TASK"
	}
	if _, ok := allowedIssueTypes[issueType]; !ok {
		return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown issue type", map[string]any{"type": input.Type})
	}
	priority := strings.ToUpper(strings.TrimSpace(input.Priority))
	if priority == "" {
		priority = "MEDIUM"
	}
	if _, ok := allowedTicketPriorities[priority]; !ok {
		return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown priority", map[string]any{"priority": input.Priority})
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Issue{}, err
	}

	columns, err := s.store.ListBoardColumns(ctx, project.ID)
	if err != nil {
		return store.Issue{}, err
	}
	if len(columns) == 0 {
		return store.Issue{}, domainError(http.StatusConflict, "NO_COLUMNS", "project board has no columns", nil)
	}
	columnID := columns[0].ID
	if input.ColumnID != "" {
		found := false
		for _, column := range columns {
			if column.ID == input.ColumnID {
				found = true
				break
			}
		}
		if !found {
			return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "column does not belong to project", map[string]any{"columnId": input.ColumnID})
		}
		columnID = input.ColumnID
	}

	position, err := s.endOfColumnPosition(ctx, columnID)
	if err != nil {
		return store.Issue{}, err
	}

	issue := store.Issue{
		ID:          util.NewID("iss"),
		ProjectID:   project.ID,
		ColumnID:    columnID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Type:        issueType,
		Priority:    priority,
		AssigneeID:  input.AssigneeID,
		Reporter:    session.UserName,
		Position:    position,
		Estimate:    input.Estimate,
		Labels:      input.Labels,
	}

	var insertErr error
	for attempt := 0; attempt < sequenceRetries; attempt++ {
		key, err := s.nextIssueKey(ctx, project.Key)
		if err != nil {
			return store.Issue{}, err
		}
		issue.Key = key
		insertErr = s.store.InsertIssue(ctx, issue)
		if insertErr == nil {
			break
		}
		if !store.IsUniqueViolation(insertErr) {
			return store.Issue{}, insertErr
		}
	}
	if insertErr != nil {
		return store.Issue{}, domainError(http.StatusConflict, "NUMBER_EXHAUSTED", "could not allocate issue key", nil)
	}

	created, err := s.store.GetIssue(ctx, issue.ID)
	if err != nil {
		return store.Issue{}, err
	}
	s.indexIssue(created)
	return created, nil
}

func (s *Service) GetIssue(ctx context.Context, id string) (store.Issue, error) {
	return s.store.GetIssue(ctx, id)
}

func (s *Service) ListIssues(ctx context.Context, filter store.IssueFilter) ([]store.Issue, error) {
	return s.store.ListIssues(ctx, filter)
}

type UpdateIssueInput struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Type        *string   `json:"type"`
	Priority    *string   `json:"priority"`
	AssigneeID  *string   `json:"assigneeId"`
	SprintID    *string   `json:"sprintId"`
	Estimate    *float64  `json:"estimate"`
	Labels      *[]string `json:"labels"`
}

func (s *Service) UpdateIssue(ctx context.Context, id string, input UpdateIssueInput) (store.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return store.Issue{}, err
	}
	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title cannot be empty", nil)
		}
		issue.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		issue.Description = *input.Description
	}
	if input.Type != nil {
		issueType := strings.ToUpper(strings.TrimSpace(*input.Type))
		if _, ok := allowedIssueTypes[issueType]; !ok {
			return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown issue type", map[string]any{"type": *input.Type})
		}
		issue.Type = issueType
	}
	if input.Priority != nil {
		priority := strings.ToUpper(strings.TrimSpace(*input.Priority))
		if _, ok := allowedTicketPriorities[priority]; !ok {
			return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown priority", map[string]any{"priority": *input.Priority})
		}
		issue.Priority = priority
	}
	if input.AssigneeID != nil {
		if *input.AssigneeID == "" {
			issue.AssigneeID = nil
		} else {
			issue.AssigneeID = input.AssigneeID
		}
	}
	if input.SprintID != nil {
		if *input.SprintID == "" {
			issue.SprintID = nil
		} else {
			sprint, err := s.store.GetSprint(ctx, *input.SprintID)
			if err != nil {
				return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sprint not found", map[string]any{"sprintId": *input.SprintID})
			}
			if sprint.ProjectID != issue.ProjectID {
				return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sprint belongs to a different project", nil)
			}
			issue.SprintID = input.SprintID
		}
	}
	if input.Estimate != nil {
		issue.Estimate = input.Estimate
	}
	if input.Labels != nil {
		issue.Labels = *input.Labels
	}

	if err := s.store.UpdateIssue(ctx, issue); err != nil {
		return store.Issue{}, err
	}
	updated, err := s.store.GetIssue(ctx, issue.ID)
	if err != nil {
		return store.Issue{}, err
	}
	s.indexIssue(updated)
	return updated, nil
}

type MoveIssueInput struct {
	ColumnID string `json:"columnId"`
	Index    int    `json:"index"`
}

// MoveIssue places the issue at the given slot of the target column using
// midpoint positions. When the surrounding gap underflows the whole column
// is reindexed and the placement retried once.
func (s *Service) MoveIssue(ctx context.Context, id string, input MoveIssueInput) (store.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return store.Issue{}, err
	}

	columnID := input.ColumnID
	if columnID == "" {
		columnID = issue.ColumnID
	}
	column, err := s.store.GetBoardColumn(ctx, columnID)
	if err != nil {
		return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "column not found", map[string]any{"columnId": columnID})
	}
	if column.ProjectID != issue.ProjectID {
		return store.Issue{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "column belongs to a different project", nil)
	}

	position, ok, err := s.slotPosition(ctx, column.ID, issue.ID, input.Index)
	if err != nil {
		return store.Issue{}, err
	}
	if !ok {
		if err := s.store.ReindexColumn(ctx, column.ID, positionSpacing); err != nil {
			return store.Issue{}, err
		}
		position, ok, err = s.slotPosition(ctx, column.ID, issue.ID, input.Index)
		if err != nil {
			return store.Issue{}, err
		}
		if !ok {
			return store.Issue{}, domainError(http.StatusConflict, "REORDER_FAILED", "could not place issue", nil)
		}
	}

	if err := s.store.MoveIssue(ctx, issue.ID, column.ID, position); err != nil {
		return store.Issue{}, err
	}

	moved, err := s.store.GetIssue(ctx, issue.ID)
	if err != nil {
		return store.Issue{}, err
	}
	if moved.ColumnID != issue.ColumnID {
		s.dispatchWebhooks("issue.moved", map[string]any{
			"id":         moved.ID,
			"key":        moved.Key,
			"fromColumn": issue.ColumnID,
			"toColumn":   moved.ColumnID,
		})
	}
	return moved, nil
}

// slotPosition computes the fractional position for the given slot. The
// second return is false when the surrounding gap is below positionEpsilon
// and the column needs reindexing first.
func (s *Service) slotPosition(ctx context.Context, columnID, movingID string, index int) (float64, bool, error) {
	all, err := s.store.ListIssues(ctx, store.IssueFilter{ColumnID: columnID})
	if err != nil {
		return 0, false, err
	}
	neighbours := make([]store.Issue, 0, len(all))
	for _, item := range all {
		if item.ID == movingID {
			continue
		}
		neighbours = append(neighbours, item)
	}

	if index < 0 {
		index = 0
	}
	if index > len(neighbours) {
		index = len(neighbours)
	}

	switch {
	case len(neighbours) == 0:
		return positionSpacing, true, nil
	case index == 0:
		first := neighbours[0].Position
		if first < 2*positionEpsilon {
			return 0, false, nil
		}
		return first / 2, true, nil
	case index == len(neighbours):
		return neighbours[len(neighbours)-1].Position + positionSpacing, true, nil
	default:
		lo := neighbours[index-1].Position
		hi := neighbours[index].Position
		if hi-lo < positionEpsilon {
			return 0, false, nil
		}
		return lo + (hi-lo)/2, true, nil
	}
}

func (s *Service) endOfColumnPosition(ctx context.Context, columnID string) (float64, error) {
	issues, err := s.store.ListIssues(ctx, store.IssueFilter{ColumnID: columnID})
	if err != nil {
		return 0, err
	}
	if len(issues) == 0 {
		return positionSpacing, nil
	}
	return issues[len(issues)-1].Position + positionSpacing, nil
}

func (s *Service) DeleteIssue(ctx context.Context, id string) error {
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteIssue(ctx, issue.ID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteIssue(issue.ID)
	}
	return nil
}

func (s *Service) indexIssue(i store.Issue) {
	if s.search == nil {
		return
	}
	s.search.IndexIssue(search.IssueRecord{
		ID:          i.ID,
		Key:         i.Key,
		Title:       i.Title,
		Description: i.Description,
		ProjectID:   i.ProjectID,
	})
}

// ── Sprints ──

func (s *Service) CreateSprint(ctx context.Context, projectID string, name, goal string) (store.Sprint, error) {
	if strings.TrimSpace(name) == "" {
		return store.Sprint{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Sprint{}, err
	}
	sprint := store.Sprint{
		ID:        util.NewID("spr"),
		ProjectID: project.ID,
		Name:      strings.TrimSpace(name),
		Goal:      goal,
		Status:    "PLANNED",
	}
	if err := s.store.InsertSprint(ctx, sprint); err != nil {
		return store.Sprint{}, err
	}
	return s.store.GetSprint(ctx, sprint.ID)
}

func (s *Service) ListSprints(ctx context.Context, projectID string) ([]store.Sprint, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.store.ListSprints(ctx, project.ID)
}

// UpdateSprintStatus walks the PLANNED → ACTIVE → COMPLETED lifecycle.
// Completing a sprint clears it from any issues still carrying it.
func (s *Service) UpdateSprintStatus(ctx context.Context, id, status string) (store.Sprint, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if _, ok := allowedSprintStatuses[status]; !ok {
		return store.Sprint{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown sprint status", map[string]any{"status": status})
	}
	sprint, err := s.store.GetSprint(ctx, id)
	if err != nil {
		return store.Sprint{}, err
	}

	valid := (sprint.Status == "PLANNED" && status == "ACTIVE") ||
		(sprint.Status == "ACTIVE" && status == "COMPLETED") ||
		sprint.Status == status
	if !valid {
		return store.Sprint{}, domainError(http.StatusConflict, "INVALID_TRANSITION", "sprint cannot move to that status", map[string]any{"from": sprint.Status, "to": status})
	}

	if err := s.store.UpdateSprintStatus(ctx, sprint.ID, status); err != nil {
		return store.Sprint{}, err
	}
	if status == "COMPLETED" {
		if err := s.store.ClearSprintFromIssues(ctx, sprint.ID); err != nil {
			return store.Sprint{}, err
		}
	}
	return s.store.GetSprint(ctx, sprint.ID)
}
