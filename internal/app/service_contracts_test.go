package app

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"meridian/api/internal/auth"
	"meridian/api/internal/store"
)

func TestCreateContractCommitsInitialRevision(t *testing.T) {
	var contract store.Contract
	var bodyRevision string
	fs := &fakeStore{
		insertContractFn: func(_ context.Context, c store.Contract) error {
			contract = c
			return nil
		},
		updateContractBodyFn: func(_ context.Context, _, _, _, revision string) error {
			bodyRevision = revision
			contract.CurrentRevision = revision
			return nil
		},
	}
	fs.getContractFn = func(_ context.Context, id string) (store.Contract, error) {
		return contract, nil
	}
	svc := newTestService(fs)

	created, err := svc.CreateContract(context.Background(), agentSession(), ContractInput{
		Title: "Master Services Agreement",
		Body:  "<p>Terms...</p>",
	})
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
	if created.Status != "DRAFT" {
		t.Fatalf("expected DRAFT, got %q", created.Status)
	}
	if !regexp.MustCompile(`^CTR-\d{4}-\d{4}$`).MatchString(created.Number) {
		t.Fatalf("unexpected contract number %q", created.Number)
	}
	if bodyRevision != "rev-initial" {
		t.Fatalf("expected the initial revision pinned, got %q", bodyRevision)
	}
}

func TestUpdateContractBodyOnlyDraft(t *testing.T) {
	fs := &fakeStore{
		getContractFn: func(_ context.Context, id string) (store.Contract, error) {
			return store.Contract{ID: id, Status: "SENT"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateContractBody(context.Background(), "ctr-1", agentSession(), ContractInput{Body: "changed"})
	assertDomainCode(t, err, "NOT_DRAFT")
}

// ── Signers ──

func TestAddSignerValidatesEmail(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.AddSigner(context.Background(), "ctr-1", SignerInput{Email: "not-an-email"})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestAddSignerRejectsDuplicates(t *testing.T) {
	fs := &fakeStore{
		getContractFn: func(_ context.Context, id string) (store.Contract, error) {
			return store.Contract{ID: id, Status: "DRAFT"}, nil
		},
		listSignersFn: func(_ context.Context, contractID string) ([]store.Signer, error) {
			return []store.Signer{{ContractID: contractID, Email: "dana@example.com"}}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.AddSigner(context.Background(), "ctr-1", SignerInput{Email: "Dana@Example.com", Name: "Dana"})
	assertDomainCode(t, err, "DUPLICATE_SIGNER")
}

func TestAddSignerAppendsSortOrder(t *testing.T) {
	fs := &fakeStore{
		getContractFn: func(_ context.Context, id string) (store.Contract, error) {
			return store.Contract{ID: id, Status: "DRAFT"}, nil
		},
		listSignersFn: func(_ context.Context, contractID string) ([]store.Signer, error) {
			return []store.Signer{{ContractID: contractID, Email: "first@example.com"}}, nil
		},
	}
	svc := newTestService(fs)

	signer, err := svc.AddSigner(context.Background(), "ctr-1", SignerInput{Email: "second@example.com", Name: "Sam"})
	if err != nil {
		t.Fatalf("AddSigner: %v", err)
	}
	if signer.SortOrder != 1 {
		t.Fatalf("expected sort order 1, got %d", signer.SortOrder)
	}
	if signer.Status != "PENDING" {
		t.Fatalf("expected PENDING, got %q", signer.Status)
	}
	if signer.Email != "second@example.com" {
		t.Fatalf("expected normalized email, got %q", signer.Email)
	}
}

// ── Sending & signing ──

func TestSendContractRequiresSigners(t *testing.T) {
	fs := &fakeStore{
		getContractFn: func(_ context.Context, id string) (store.Contract, error) {
			return store.Contract{ID: id, Status: "DRAFT"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.SendContract(context.Background(), "ctr-1")
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

func TestSendContractIssuesTokenPerSigner(t *testing.T) {
	status := "DRAFT"
	tokenHashes := map[string]string{}
	fs := &fakeStore{
		getContractFn: func(_ context.Context, id string) (store.Contract, error) {
			return store.Contract{ID: id, Number: "CTR-2026-0001", Title: "MSA", Status: status}, nil
		},
		listSignersFn: func(_ context.Context, contractID string) ([]store.Signer, error) {
			return []store.Signer{
				{ID: "sgn-1", ContractID: contractID, Email: "a@example.com", Status: "PENDING"},
				{ID: "sgn-2", ContractID: contractID, Email: "b@example.com", Status: "PENDING"},
			}, nil
		},
		markContractSentFn: func(context.Context, string) (bool, error) {
			status = "SENT"
			return true, nil
		},
		updateSignerTokenFn: func(_ context.Context, signerID, tokenHash string) error {
			tokenHashes[signerID] = tokenHash
			return nil
		},
	}
	svc := newTestService(fs)

	sent, err := svc.SendContract(context.Background(), "ctr-1")
	if err != nil {
		t.Fatalf("SendContract: %v", err)
	}
	if sent.Status != "SENT" {
		t.Fatalf("expected SENT, got %q", sent.Status)
	}
	if len(tokenHashes) != 2 {
		t.Fatalf("expected a token per signer, got %d", len(tokenHashes))
	}
	hexHash := regexp.MustCompile(`^[0-9a-f]{64}$`)
	for signerID, hash := range tokenHashes {
		if !hexHash.MatchString(hash) {
			t.Errorf("signer %s: expected a sha256 hash, got %q", signerID, hash)
		}
	}
	if tokenHashes["sgn-1"] == tokenHashes["sgn-2"] {
		t.Fatal("signers must not share a token")
	}
}

func TestSendContractAlreadySent(t *testing.T) {
	fs := &fakeStore{
		getContractFn: func(_ context.Context, id string) (store.Contract, error) {
			return store.Contract{ID: id, Status: "SENT"}, nil
		},
		listSignersFn: func(_ context.Context, contractID string) ([]store.Signer, error) {
			return []store.Signer{{ID: "sgn-1", ContractID: contractID}}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.SendContract(context.Background(), "ctr-1")
	assertDomainCode(t, err, "INVALID_TRANSITION")
}

// signingStore wires a raw token through the hash lookup the way the real
// store resolves signing links.
func signingStore(token, contractStatus string) *fakeStore {
	hash := auth.HashToken(token)
	return &fakeStore{
		getSignerByTokenHashFn: func(_ context.Context, tokenHash string) (store.Signer, error) {
			if tokenHash != hash {
				return store.Signer{}, sql.ErrNoRows
			}
			return store.Signer{ID: "sgn-1", ContractID: "ctr-1", Email: "a@example.com", Status: "PENDING"}, nil
		},
		getContractFn: func(_ context.Context, id string) (store.Contract, error) {
			return store.Contract{ID: id, Number: "CTR-2026-0001", Title: "MSA", Status: contractStatus}, nil
		},
	}
}

func TestSignContractCompletesWhenLastSignerSigns(t *testing.T) {
	fs := signingStore("tok-last", "SENT")
	completed := false
	fs.markSignerSignedFn = func(context.Context, string) (bool, error) {
		return true, nil
	}
	fs.countPendingSignersFn = func(context.Context, string) (int, error) {
		return 0, nil
	}
	fs.markContractCompletedFn = func(context.Context, string) error {
		completed = true
		return nil
	}
	svc := newTestService(fs)

	payload, err := svc.SignContract(context.Background(), "tok-last")
	if err != nil {
		t.Fatalf("SignContract: %v", err)
	}
	if !completed {
		t.Fatal("expected the contract marked completed")
	}
	if payload["completed"] != true {
		t.Fatalf("expected completed=true, got %v", payload["completed"])
	}
}

func TestSignContractWaitsForRemainingSigners(t *testing.T) {
	fs := signingStore("tok-first", "SENT")
	fs.markSignerSignedFn = func(context.Context, string) (bool, error) {
		return true, nil
	}
	fs.countPendingSignersFn = func(context.Context, string) (int, error) {
		return 1, nil
	}
	fs.markContractCompletedFn = func(context.Context, string) error {
		t.Error("contract must not complete with signers pending")
		return nil
	}
	svc := newTestService(fs)

	payload, err := svc.SignContract(context.Background(), "tok-first")
	if err != nil {
		t.Fatalf("SignContract: %v", err)
	}
	if payload["completed"] != false {
		t.Fatalf("expected completed=false, got %v", payload["completed"])
	}
}

func TestSignContractRejectsUnknownToken(t *testing.T) {
	svc := newTestService(signingStore("tok-real", "SENT"))
	_, err := svc.SignContract(context.Background(), "tok-guessed")
	assertDomainCode(t, err, "NOT_FOUND")
}

func TestSignContractRejectsClosedContract(t *testing.T) {
	svc := newTestService(signingStore("tok-late", "COMPLETED"))
	_, err := svc.SignContract(context.Background(), "tok-late")
	assertDomainCode(t, err, "NOT_OPEN")
}

func TestSignContractAlreadyDecided(t *testing.T) {
	fs := signingStore("tok-twice", "SENT")
	fs.markSignerSignedFn = func(context.Context, string) (bool, error) {
		return false, nil
	}
	svc := newTestService(fs)

	_, err := svc.SignContract(context.Background(), "tok-twice")
	assertDomainCode(t, err, "ALREADY_DECIDED")
}

func TestDeclineContractDeclinesWholeContract(t *testing.T) {
	fs := signingStore("tok-decline", "SENT")
	var gotReason string
	declined := false
	fs.markSignerDeclinedFn = func(_ context.Context, _, reason string) (bool, error) {
		gotReason = reason
		return true, nil
	}
	fs.markContractDeclinedFn = func(context.Context, string) error {
		declined = true
		return nil
	}
	svc := newTestService(fs)

	if _, err := svc.DeclineContract(context.Background(), "tok-decline", "pricing changed"); err != nil {
		t.Fatalf("DeclineContract: %v", err)
	}
	if !declined {
		t.Fatal("expected the contract marked declined")
	}
	if gotReason != "pricing changed" {
		t.Fatalf("expected the reason persisted, got %q", gotReason)
	}
}

// ── Lifecycle guards ──

func TestVoidContractRejectsCompleted(t *testing.T) {
	fs := &fakeStore{
		getContractFn: func(_ context.Context, id string) (store.Contract, error) {
			return store.Contract{ID: id, Status: "COMPLETED"}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.VoidContract(context.Background(), "ctr-1")
	assertDomainCode(t, err, "INVALID_TRANSITION")
}

func TestDeleteContractOnlyDraft(t *testing.T) {
	fs := &fakeStore{
		getContractFn: func(_ context.Context, id string) (store.Contract, error) {
			return store.Contract{ID: id, Status: "SENT"}, nil
		},
	}
	svc := newTestService(fs)

	err := svc.DeleteContract(context.Background(), "ctr-1")
	assertDomainCode(t, err, "NOT_DRAFT")
}

func TestExportContractUnavailableWithoutExporter(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.ExportContractPDF(context.Background(), "ctr-1")
	assertDomainCode(t, err, "EXPORT_UNAVAILABLE")
}

func TestExportInvoiceUnavailableWithoutExporter(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.ExportInvoicePDF(context.Background(), "inv-1")
	assertDomainCode(t, err, "EXPORT_UNAVAILABLE")
}
