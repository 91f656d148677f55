package app

import (
	"context"
	"testing"

	"meridian/api/internal/store"
)

func TestCreateProjectSeedsDefaultColumns(t *testing.T) {
	var project store.Project
	var columns []store.BoardColumn
	fs := &fakeStore{
		insertProjectFn: func(_ context.Context, p store.Project) error {
			project = p
			return nil
		},
		insertBoardColumnFn: func(_ context.Context, c store.BoardColumn) error {
			columns = append(columns, c)
			return nil
		},
	}
	fs.getProjectFn = func(_ context.Context, id string) (store.Project, error) {
		return project, nil
	}
	svc := newTestService(fs)

	created, err := svc.CreateProject(context.Background(), ProjectInput{Key: "mer", Name: "Meridian Core"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if created.Key != "MER" {
		t.Fatalf("expected uppercased key MER, got %q", created.Key)
	}
	if len(columns) != 4 {
		t.Fatalf("expected 4 seeded columns, got %d", len(columns))
	}
	wantNames := []string{"Backlog", "In Progress", "Review", "Done"}
	for i, column := range columns {
		if column.Name != wantNames[i] {
			t.Errorf("column %d: expected %q, got %q", i, wantNames[i], column.Name)
		}
		if column.SortOrder != i {
			t.Errorf("column %d: expected sort order %d, got %d", i, i, column.SortOrder)
		}
		if column.ProjectID != project.ID {
			t.Errorf("column %d: expected project %s, got %s", i, project.ID, column.ProjectID)
		}
	}
}

func TestCreateProjectRejectsBadKeys(t *testing.T) {
	svc := newTestService(&fakeStore{})
	for _, key := range []string{"", "X", "1ABC", "WAYTOOLONG1", "AB-C"} {
		_, err := svc.CreateProject(context.Background(), ProjectInput{Key: key, Name: "Bad Key"})
		assertDomainCode(t, err, "VALIDATION_ERROR")
	}
}

func TestCreateProjectKeyTaken(t *testing.T) {
	fs := &fakeStore{
		insertProjectFn: func(context.Context, store.Project) error {
			return uniqueViolation()
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateProject(context.Background(), ProjectInput{Key: "MER", Name: "Duplicate"})
	assertDomainCode(t, err, "KEY_TAKEN")
}

func TestDeleteProjectRequiresEmptyBoard(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, id string) (store.Project, error) {
			return store.Project{ID: id, Key: "MER"}, nil
		},
		projectIssueCountFn: func(context.Context, string) (int, error) {
			return 3, nil
		},
	}
	svc := newTestService(fs)

	err := svc.DeleteProject(context.Background(), "prj-1")
	assertDomainCode(t, err, "PROJECT_NOT_EMPTY")
}

func TestDeleteBoardColumnRequiresEmptyColumn(t *testing.T) {
	fs := &fakeStore{
		columnIssueCountFn: func(context.Context, string) (int, error) {
			return 2, nil
		},
	}
	svc := newTestService(fs)

	err := svc.DeleteBoardColumn(context.Background(), "col-1")
	assertDomainCode(t, err, "COLUMN_NOT_EMPTY")
}

// ── Issues ──

func issueProjectStore() *fakeStore {
	return &fakeStore{
		getProjectFn: func(_ context.Context, id string) (store.Project, error) {
			return store.Project{ID: id, Key: "MER"}, nil
		},
		listBoardColumnsFn: func(_ context.Context, projectID string) ([]store.BoardColumn, error) {
			return []store.BoardColumn{
				{ID: "col-todo", ProjectID: projectID, Name: "Backlog", SortOrder: 0},
				{ID: "col-done", ProjectID: projectID, Name: "Done", SortOrder: 1},
			}, nil
		},
	}
}

func TestCreateIssueAppendsToColumnEnd(t *testing.T) {
	fs := issueProjectStore()
	fs.listIssuesFn = func(_ context.Context, filter store.IssueFilter) ([]store.Issue, error) {
		return []store.Issue{
			{ID: "iss-a", Position: 1024},
			{ID: "iss-b", Position: 2048},
		}, nil
	}
	var captured store.Issue
	fs.insertIssueFn = func(_ context.Context, issue store.Issue) error {
		captured = issue
		return nil
	}
	fs.getIssueFn = func(_ context.Context, id string) (store.Issue, error) {
		return captured, nil
	}
	svc := newTestService(fs)

	created, err := svc.CreateIssue(context.Background(), "prj-1", agentSession(), IssueInput{Title: "Wire the webhook retries"})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if created.Position != 3072 {
		t.Fatalf("expected position 3072, got %v", created.Position)
	}
	if created.Key != "MER-1" {
		t.Fatalf("expected key MER-1, got %q", created.Key)
	}
	if created.ColumnID != "col-todo" {
		t.Fatalf("expected the first column by default, got %q", created.ColumnID)
	}
	if created.Type != "TASK" || created.Priority != "MEDIUM" {
		t.Fatalf("expected TASK/MEDIUM defaults, got %s/%s", created.Type, created.Priority)
	}
	if created.Reporter != "Avery Quinn" {
		t.Fatalf("expected the session user as reporter, got %q", created.Reporter)
	}
}

func TestCreateIssueWithoutColumns(t *testing.T) {
	fs := issueProjectStore()
	fs.listBoardColumnsFn = func(context.Context, string) ([]store.BoardColumn, error) {
		return nil, nil
	}
	svc := newTestService(fs)

	_, err := svc.CreateIssue(context.Background(), "prj-1", agentSession(), IssueInput{Title: "Homeless issue"})
	assertDomainCode(t, err, "NO_COLUMNS")
}

func TestCreateIssueRejectsForeignColumn(t *testing.T) {
	fs := issueProjectStore()
	svc := newTestService(fs)

	_, err := svc.CreateIssue(context.Background(), "prj-1", agentSession(), IssueInput{
		Title:    "Wrong board",
		ColumnID: "col-other",
	})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestMoveIssueTakesMidpoint(t *testing.T) {
	fs := issueProjectStore()
	fs.getIssueFn = func(_ context.Context, id string) (store.Issue, error) {
		return store.Issue{ID: id, ProjectID: "prj-1", ColumnID: "col-todo", Position: 5000}, nil
	}
	fs.getBoardColumnFn = func(_ context.Context, id string) (store.BoardColumn, error) {
		return store.BoardColumn{ID: id, ProjectID: "prj-1"}, nil
	}
	fs.listIssuesFn = func(_ context.Context, filter store.IssueFilter) ([]store.Issue, error) {
		return []store.Issue{
			{ID: "iss-a", Position: 1024},
			{ID: "iss-b", Position: 2048},
		}, nil
	}
	var movedTo float64
	fs.moveIssueFn = func(_ context.Context, _, _ string, position float64) error {
		movedTo = position
		return nil
	}
	svc := newTestService(fs)

	if _, err := svc.MoveIssue(context.Background(), "iss-c", MoveIssueInput{ColumnID: "col-todo", Index: 1}); err != nil {
		t.Fatalf("MoveIssue: %v", err)
	}
	if movedTo != 1536 {
		t.Fatalf("expected midpoint 1536, got %v", movedTo)
	}
}

func TestMoveIssueToTopHalvesFirstPosition(t *testing.T) {
	fs := issueProjectStore()
	fs.getIssueFn = func(_ context.Context, id string) (store.Issue, error) {
		return store.Issue{ID: id, ProjectID: "prj-1", ColumnID: "col-todo", Position: 5000}, nil
	}
	fs.getBoardColumnFn = func(_ context.Context, id string) (store.BoardColumn, error) {
		return store.BoardColumn{ID: id, ProjectID: "prj-1"}, nil
	}
	fs.listIssuesFn = func(context.Context, store.IssueFilter) ([]store.Issue, error) {
		return []store.Issue{{ID: "iss-a", Position: 1024}}, nil
	}
	var movedTo float64
	fs.moveIssueFn = func(_ context.Context, _, _ string, position float64) error {
		movedTo = position
		return nil
	}
	svc := newTestService(fs)

	if _, err := svc.MoveIssue(context.Background(), "iss-b", MoveIssueInput{ColumnID: "col-todo", Index: 0}); err != nil {
		t.Fatalf("MoveIssue: %v", err)
	}
	if movedTo != 512 {
		t.Fatalf("expected half of the first position, got %v", movedTo)
	}
}

func TestMoveIssueReindexesOnGapUnderflow(t *testing.T) {
	fs := issueProjectStore()
	fs.getIssueFn = func(_ context.Context, id string) (store.Issue, error) {
		return store.Issue{ID: id, ProjectID: "prj-1", ColumnID: "col-todo", Position: 5000}, nil
	}
	fs.getBoardColumnFn = func(_ context.Context, id string) (store.BoardColumn, error) {
		return store.BoardColumn{ID: id, ProjectID: "prj-1"}, nil
	}
	reindexed := false
	fs.reindexColumnFn = func(_ context.Context, columnID string, spacing float64) error {
		if spacing != positionSpacing {
			t.Errorf("expected spacing %v, got %v", positionSpacing, spacing)
		}
		reindexed = true
		return nil
	}
	fs.listIssuesFn = func(context.Context, store.IssueFilter) ([]store.Issue, error) {
		if !reindexed {
			// Neighbours too close together to take a midpoint.
			return []store.Issue{
				{ID: "iss-a", Position: 1000},
				{ID: "iss-b", Position: 1000 + 1e-10},
			}, nil
		}
		return []store.Issue{
			{ID: "iss-a", Position: 1024},
			{ID: "iss-b", Position: 2048},
		}, nil
	}
	var movedTo float64
	fs.moveIssueFn = func(_ context.Context, _, _ string, position float64) error {
		movedTo = position
		return nil
	}
	svc := newTestService(fs)

	if _, err := svc.MoveIssue(context.Background(), "iss-c", MoveIssueInput{ColumnID: "col-todo", Index: 1}); err != nil {
		t.Fatalf("MoveIssue: %v", err)
	}
	if !reindexed {
		t.Fatal("expected the column to be reindexed")
	}
	if movedTo != 1536 {
		t.Fatalf("expected midpoint after reindex, got %v", movedTo)
	}
}

func TestMoveIssueRejectsCrossProjectColumn(t *testing.T) {
	fs := issueProjectStore()
	fs.getIssueFn = func(_ context.Context, id string) (store.Issue, error) {
		return store.Issue{ID: id, ProjectID: "prj-1", ColumnID: "col-todo"}, nil
	}
	fs.getBoardColumnFn = func(_ context.Context, id string) (store.BoardColumn, error) {
		return store.BoardColumn{ID: id, ProjectID: "prj-other"}, nil
	}
	svc := newTestService(fs)

	_, err := svc.MoveIssue(context.Background(), "iss-1", MoveIssueInput{ColumnID: "col-foreign"})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestUpdateIssueRejectsCrossProjectSprint(t *testing.T) {
	fs := issueProjectStore()
	fs.getIssueFn = func(_ context.Context, id string) (store.Issue, error) {
		return store.Issue{ID: id, ProjectID: "prj-1", ColumnID: "col-todo"}, nil
	}
	fs.getSprintFn = func(_ context.Context, id string) (store.Sprint, error) {
		return store.Sprint{ID: id, ProjectID: "prj-other", Status: "PLANNED"}, nil
	}
	svc := newTestService(fs)

	sprintID := "spr-other"
	_, err := svc.UpdateIssue(context.Background(), "iss-1", UpdateIssueInput{SprintID: &sprintID})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

// ── Sprints ──

func TestSprintLifecycle(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		wantErr  string
	}{
		{name: "planned to active", from: "PLANNED", to: "ACTIVE"},
		{name: "active to completed", from: "ACTIVE", to: "COMPLETED"},
		{name: "same status is idempotent", from: "ACTIVE", to: "ACTIVE"},
		{name: "planned cannot complete", from: "PLANNED", to: "COMPLETED", wantErr: "INVALID_TRANSITION"},
		{name: "completed cannot reopen", from: "COMPLETED", to: "ACTIVE", wantErr: "INVALID_TRANSITION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{
				getSprintFn: func(_ context.Context, id string) (store.Sprint, error) {
					return store.Sprint{ID: id, ProjectID: "prj-1", Status: tt.from}, nil
				},
			}
			svc := newTestService(fs)

			_, err := svc.UpdateSprintStatus(context.Background(), "spr-1", tt.to)
			if tt.wantErr != "" {
				assertDomainCode(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("UpdateSprintStatus: %v", err)
			}
		})
	}
}

func TestCompletingSprintClearsIssues(t *testing.T) {
	cleared := false
	fs := &fakeStore{
		getSprintFn: func(_ context.Context, id string) (store.Sprint, error) {
			return store.Sprint{ID: id, ProjectID: "prj-1", Status: "ACTIVE"}, nil
		},
		clearSprintFromIssuesFn: func(_ context.Context, sprintID string) error {
			cleared = true
			return nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.UpdateSprintStatus(context.Background(), "spr-1", "COMPLETED"); err != nil {
		t.Fatalf("UpdateSprintStatus: %v", err)
	}
	if !cleared {
		t.Fatal("expected issues to drop the completed sprint")
	}
}
