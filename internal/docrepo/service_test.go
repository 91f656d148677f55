package docrepo

import (
	"strings"
	"testing"
)

func TestEnsureContractRepoCreatesInitialCommit(t *testing.T) {
	svc := New(t.TempDir())

	rev, err := svc.EnsureContractRepo("ctr-1", Content{Title: "MSA", Body: "<p>Terms</p>"}, "Avery Quinn")
	if err != nil {
		t.Fatalf("EnsureContractRepo: %v", err)
	}
	if len(rev.Hash) != 7 {
		t.Fatalf("expected a short hash, got %q", rev.Hash)
	}
	if rev.Author != "Avery Quinn" {
		t.Fatalf("unexpected author %q", rev.Author)
	}
	if !strings.Contains(rev.Message, "Create contract draft") {
		t.Fatalf("unexpected message %q", rev.Message)
	}
}

func TestEnsureContractRepoIsIdempotent(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.EnsureContractRepo("ctr-1", Content{Title: "MSA", Body: "v1"}, "Avery Quinn")
	if err != nil {
		t.Fatalf("EnsureContractRepo: %v", err)
	}
	second, err := svc.EnsureContractRepo("ctr-1", Content{Title: "MSA", Body: "overwritten?"}, "Someone Else")
	if err != nil {
		t.Fatalf("EnsureContractRepo again: %v", err)
	}
	if first.Hash != second.Hash {
		t.Fatalf("expected the existing head returned, got %q then %q", first.Hash, second.Hash)
	}

	content, err := svc.GetContentByHash("ctr-1", second.Hash)
	if err != nil {
		t.Fatalf("GetContentByHash: %v", err)
	}
	if content.Body != "v1" {
		t.Fatalf("expected the original body preserved, got %q", content.Body)
	}
}

func TestCommitContentAdvancesHistory(t *testing.T) {
	svc := New(t.TempDir())

	initial, err := svc.EnsureContractRepo("ctr-1", Content{Title: "MSA", Body: "v1"}, "Avery Quinn")
	if err != nil {
		t.Fatalf("EnsureContractRepo: %v", err)
	}
	second, err := svc.CommitContent("ctr-1", Content{Title: "MSA", Body: "v2"}, "Dana Soto", "Update payment terms")
	if err != nil {
		t.Fatalf("CommitContent: %v", err)
	}
	if second.Hash == initial.Hash {
		t.Fatal("expected a new revision hash")
	}

	history, err := svc.History("ctr-1", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(history))
	}
	if history[0].Hash != second.Hash {
		t.Fatalf("expected newest revision first, got %q", history[0].Hash)
	}
	if history[0].Author != "Dana Soto" {
		t.Fatalf("unexpected author %q", history[0].Author)
	}
}

func TestHistoryHonorsLimit(t *testing.T) {
	svc := New(t.TempDir())

	if _, err := svc.EnsureContractRepo("ctr-1", Content{Title: "MSA", Body: "v1"}, "Avery Quinn"); err != nil {
		t.Fatalf("EnsureContractRepo: %v", err)
	}
	for _, body := range []string{"v2", "v3", "v4"} {
		if _, err := svc.CommitContent("ctr-1", Content{Title: "MSA", Body: body}, "Avery Quinn", "Edit"); err != nil {
			t.Fatalf("CommitContent: %v", err)
		}
	}

	history, err := svc.History("ctr-1", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected the limit applied, got %d revisions", len(history))
	}
}

func TestGetContentByShortHash(t *testing.T) {
	svc := New(t.TempDir())

	if _, err := svc.EnsureContractRepo("ctr-1", Content{Title: "MSA", Body: "v1"}, "Avery Quinn"); err != nil {
		t.Fatalf("EnsureContractRepo: %v", err)
	}
	rev, err := svc.CommitContent("ctr-1", Content{Title: "MSA", Body: "v2"}, "Avery Quinn", "Edit")
	if err != nil {
		t.Fatalf("CommitContent: %v", err)
	}

	content, err := svc.GetContentByHash("ctr-1", rev.Hash)
	if err != nil {
		t.Fatalf("GetContentByHash: %v", err)
	}
	if content.Body != "v2" {
		t.Fatalf("expected body v2, got %q", content.Body)
	}
}

func TestGetContentUnknownHash(t *testing.T) {
	svc := New(t.TempDir())

	if _, err := svc.EnsureContractRepo("ctr-1", Content{Title: "MSA", Body: "v1"}, "Avery Quinn"); err != nil {
		t.Fatalf("EnsureContractRepo: %v", err)
	}
	if _, err := svc.GetContentByHash("ctr-1", "deadbeef"); err == nil {
		t.Fatal("expected an error for an unknown revision")
	}
}

func TestCommitContentUnknownContract(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.CommitContent("ctr-missing", Content{}, "Avery Quinn", "Edit"); err == nil {
		t.Fatal("expected an error for a contract without a repo")
	}
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Avery Quinn", "Avery.Quinn"},
		{"dana-soto", "dana.soto"},
		{"??!!", "user"},
		{"", "user"},
	}
	for _, tt := range tests {
		if got := sanitizeEmail(tt.in); got != tt.want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
