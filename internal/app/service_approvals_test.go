package app

import (
	"context"
	"testing"

	"meridian/api/internal/store"
)

func TestCreateApprovalDefaultsCurrency(t *testing.T) {
	amount := 1250.0
	var captured store.ApprovalRequest
	fs := &fakeStore{
		insertApprovalRequestFn: func(_ context.Context, r store.ApprovalRequest) error {
			captured = r
			return nil
		},
	}
	fs.getApprovalRequestFn = func(_ context.Context, id string) (store.ApprovalRequest, error) {
		return captured, nil
	}
	svc := newTestService(fs)

	created, err := svc.CreateApprovalRequest(context.Background(), agentSession(), CreateApprovalInput{
		Kind:   "expense",
		Title:  "Team offsite",
		Amount: &amount,
	})
	if err != nil {
		t.Fatalf("CreateApprovalRequest: %v", err)
	}
	if created.Kind != "EXPENSE" {
		t.Fatalf("expected uppercased kind, got %q", created.Kind)
	}
	if created.Currency != "USD" {
		t.Fatalf("expected USD default when an amount is set, got %q", created.Currency)
	}
	if created.Status != "PENDING" {
		t.Fatalf("expected PENDING, got %q", created.Status)
	}
	if created.RequesterID != "usr-agent" {
		t.Fatalf("expected requester from session, got %q", created.RequesterID)
	}
}

func TestCreateApprovalRejectsNegativeAmount(t *testing.T) {
	amount := -5.0
	svc := newTestService(&fakeStore{})
	_, err := svc.CreateApprovalRequest(context.Background(), agentSession(), CreateApprovalInput{
		Kind:   "EXPENSE",
		Title:  "Refund myself",
		Amount: &amount,
	})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestDecideApprovalRejectsSelfApproval(t *testing.T) {
	fs := &fakeStore{
		getApprovalRequestFn: func(_ context.Context, id string) (store.ApprovalRequest, error) {
			return store.ApprovalRequest{ID: id, Status: "PENDING", RequesterID: "usr-agent"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.DecideApprovalRequest(context.Background(), "apr-1", agentSession(), true, "")
	assertDomainCode(t, err, "SELF_APPROVAL")
}

func TestDecideApprovalAlreadyDecided(t *testing.T) {
	fs := &fakeStore{
		getApprovalRequestFn: func(_ context.Context, id string) (store.ApprovalRequest, error) {
			return store.ApprovalRequest{ID: id, Status: "APPROVED", RequesterID: "usr-other"}, nil
		},
		decideApprovalRequestFn: func(context.Context, string, string, string, string) (bool, error) {
			return false, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.DecideApprovalRequest(context.Background(), "apr-1", agentSession(), true, "")
	assertDomainCode(t, err, "ALREADY_DECIDED")
}

func TestDecideApprovalRecordsDecision(t *testing.T) {
	var gotStatus, gotNote string
	fs := &fakeStore{
		getApprovalRequestFn: func(_ context.Context, id string) (store.ApprovalRequest, error) {
			return store.ApprovalRequest{ID: id, Status: "PENDING", RequesterID: "usr-other"}, nil
		},
		decideApprovalRequestFn: func(_ context.Context, _, status, decidedBy, note string) (bool, error) {
			gotStatus = status
			gotNote = note
			if decidedBy != "Avery Quinn" {
				t.Errorf("expected decider from session, got %q", decidedBy)
			}
			return true, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.DecideApprovalRequest(context.Background(), "apr-1", agentSession(), false, "over budget"); err != nil {
		t.Fatalf("DecideApprovalRequest: %v", err)
	}
	if gotStatus != "REJECTED" {
		t.Fatalf("expected REJECTED, got %q", gotStatus)
	}
	if gotNote != "over budget" {
		t.Fatalf("expected the note persisted, got %q", gotNote)
	}
}

func TestCancelApprovalOnlyRequester(t *testing.T) {
	fs := &fakeStore{
		getApprovalRequestFn: func(_ context.Context, id string) (store.ApprovalRequest, error) {
			return store.ApprovalRequest{ID: id, Status: "PENDING", RequesterID: "usr-other"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CancelApprovalRequest(context.Background(), "apr-1", agentSession())
	assertDomainCode(t, err, "FORBIDDEN")
}

func TestCancelApprovalAfterDecision(t *testing.T) {
	fs := &fakeStore{
		getApprovalRequestFn: func(_ context.Context, id string) (store.ApprovalRequest, error) {
			return store.ApprovalRequest{ID: id, Status: "REJECTED", RequesterID: "usr-agent"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CancelApprovalRequest(context.Background(), "apr-1", agentSession())
	assertDomainCode(t, err, "ALREADY_DECIDED")
}
