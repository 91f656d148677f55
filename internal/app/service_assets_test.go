package app

import (
	"context"
	"testing"

	"meridian/api/internal/store"
)

func TestCreateAssetAllocatesTagWithRetry(t *testing.T) {
	var inserted []string
	fs := &fakeStore{
		insertAssetFn: func(_ context.Context, asset store.Asset) error {
			inserted = append(inserted, asset.Tag)
			if len(inserted) == 1 {
				return uniqueViolation()
			}
			return nil
		},
	}
	fs.getAssetFn = func(_ context.Context, id string) (store.Asset, error) {
		return store.Asset{ID: id, Tag: inserted[len(inserted)-1]}, nil
	}
	svc := newTestService(fs)

	created, err := svc.CreateAsset(context.Background(), AssetInput{Name: "MacBook Pro 16"})
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	if created.Tag != "AST-0002" {
		t.Fatalf("expected tag AST-0002 after one retry, got %q", created.Tag)
	}
}

func TestAssetAssignmentPairing(t *testing.T) {
	assignee := "usr-1"
	tests := []struct {
		name  string
		input AssetInput
	}{
		{
			name:  "assignee without assigned status",
			input: AssetInput{Name: "Dock", Status: "IN_STOCK", AssignedToID: &assignee},
		},
		{
			name:  "assigned status without assignee",
			input: AssetInput{Name: "Dock", Status: "ASSIGNED"},
		},
	}
	svc := newTestService(&fakeStore{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAsset(context.Background(), tt.input)
			assertDomainCode(t, err, "VALIDATION_ERROR")
		})
	}
}

func TestCreateAssetChecksAssigneeExists(t *testing.T) {
	svc := newTestService(&fakeStore{})
	assignee := "usr-ghost"
	_, err := svc.CreateAsset(context.Background(), AssetInput{
		Name:         "Monitor",
		Status:       "ASSIGNED",
		AssignedToID: &assignee,
	})
	assertDomainCode(t, err, "VALIDATION_ERROR")
}

// ── Licenses ──

func TestUpdateLicenseCannotShrinkBelowUsage(t *testing.T) {
	fs := &fakeStore{
		getLicenseFn: func(_ context.Context, id string) (store.License, error) {
			return store.License{ID: id, Product: "Figma", Seats: 10, SeatsUsed: 7}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.UpdateLicense(context.Background(), "lic-1", LicenseInput{Product: "Figma", Seats: 5})
	assertDomainCode(t, err, "SEATS_IN_USE")
}

func TestDeleteLicenseWithSeatsInUse(t *testing.T) {
	fs := &fakeStore{
		getLicenseFn: func(_ context.Context, id string) (store.License, error) {
			return store.License{ID: id, Product: "Figma", Seats: 10, SeatsUsed: 1}, nil
		},
	}
	svc := newTestService(fs)

	err := svc.DeleteLicense(context.Background(), "lic-1")
	assertDomainCode(t, err, "SEATS_IN_USE")
}

func licenseSeatStore() *fakeStore {
	return &fakeStore{
		getLicenseFn: func(_ context.Context, id string) (store.License, error) {
			return store.License{ID: id, Product: "Figma", Seats: 2, SeatsUsed: 2}, nil
		},
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Sam"}, nil
		},
	}
}

func TestAssignLicenseSeatRejectsDoubleAssignment(t *testing.T) {
	fs := licenseSeatStore()
	fs.listLicenseAssignmentsFn = func(_ context.Context, licenseID string) ([]store.LicenseAssignment, error) {
		return []store.LicenseAssignment{{LicenseID: licenseID, UserID: "usr-1"}}, nil
	}
	svc := newTestService(fs)

	_, err := svc.AssignLicenseSeat(context.Background(), "lic-1", "usr-1")
	assertDomainCode(t, err, "ALREADY_ASSIGNED")
}

func TestAssignLicenseSeatExhausted(t *testing.T) {
	fs := licenseSeatStore()
	fs.assignLicenseSeatFn = func(context.Context, store.LicenseAssignment) (bool, error) {
		// The store refuses atomically when the seat cap is reached.
		return false, nil
	}
	svc := newTestService(fs)

	_, err := svc.AssignLicenseSeat(context.Background(), "lic-1", "usr-2")
	assertDomainCode(t, err, "SEATS_EXHAUSTED")
}

func TestAssignLicenseSeatClaimsSeat(t *testing.T) {
	fs := licenseSeatStore()
	var captured store.LicenseAssignment
	fs.assignLicenseSeatFn = func(_ context.Context, a store.LicenseAssignment) (bool, error) {
		captured = a
		return true, nil
	}
	svc := newTestService(fs)

	if _, err := svc.AssignLicenseSeat(context.Background(), "lic-1", "usr-2"); err != nil {
		t.Fatalf("AssignLicenseSeat: %v", err)
	}
	if captured.LicenseID != "lic-1" || captured.UserID != "usr-2" {
		t.Fatalf("unexpected assignment: %+v", captured)
	}
}
