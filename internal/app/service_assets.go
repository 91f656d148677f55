package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"meridian/api/internal/store"
	"meridian/api/internal/util"
)

var allowedAssetStatuses = map[string]struct{}{
	"IN_STOCK": {},
	"ASSIGNED": {},
	"REPAIR":   {},
	"RETIRED":  {},
}

func (s *Service) nextAssetTag(ctx context.Context) (string, error) {
	return s.nextNumber(ctx, "asset", "AST-%04d")
}

type AssetInput struct {
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	SerialNumber  string     `json:"serialNumber"`
	Status        string     `json:"status"`
	AssignedToID  *string    `json:"assignedToId"`
	PurchasedAt   *time.Time `json:"purchasedAt"`
	WarrantyUntil *time.Time `json:"warrantyUntil"`
}

func validateAssetInput(input AssetInput) (string, error) {
	if strings.TrimSpace(input.Name) == "" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	status := strings.ToUpper(strings.TrimSpace(input.Status))
	if status == "" {
		status = "IN_STOCK"
	}
	if _, ok := allowedAssetStatuses[status]; !ok {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown asset status", map[string]any{"status": input.Status})
	}
	if input.AssignedToID != nil && status != "ASSIGNED" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "only assigned assets carry an assignee", nil)
	}
	if status == "ASSIGNED" && input.AssignedToID == nil {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "assigned assets need an assignee", nil)
	}
	return status, nil
}

func (s *Service) CreateAsset(ctx context.Context, input AssetInput) (store.Asset, error) {
	status, err := validateAssetInput(input)
	if err != nil {
		return store.Asset{}, err
	}
	if input.AssignedToID != nil {
		if _, err := s.store.GetUserByID(ctx, *input.AssignedToID); err != nil {
			return store.Asset{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "assignee not found", map[string]any{"assignedToId": *input.AssignedToID})
		}
	}

	asset := store.Asset{
		ID:            util.NewID("ast"),
		Name:          strings.TrimSpace(input.Name),
		Category:      strings.TrimSpace(input.Category),
		SerialNumber:  strings.TrimSpace(input.SerialNumber),
		Status:        status,
		AssignedToID:  input.AssignedToID,
		PurchasedAt:   input.PurchasedAt,
		WarrantyUntil: input.WarrantyUntil,
	}

	// The tag carries a unique index, same retry discipline as ticket numbers.
	var insertErr error
	for attempt := 0; attempt < sequenceRetries; attempt++ {
		tag, err := s.nextAssetTag(ctx)
		if err != nil {
			return store.Asset{}, err
		}
		asset.Tag = tag
		insertErr = s.store.InsertAsset(ctx, asset)
		if insertErr == nil {
			break
		}
		if !store.IsUniqueViolation(insertErr) {
			return store.Asset{}, insertErr
		}
	}
	if insertErr != nil {
		return store.Asset{}, domainError(http.StatusConflict, "NUMBER_EXHAUSTED", "could not allocate asset tag", nil)
	}

	return s.store.GetAsset(ctx, asset.ID)
}

func (s *Service) GetAsset(ctx context.Context, id string) (store.Asset, error) {
	return s.store.GetAsset(ctx, id)
}

func (s *Service) ListAssets(ctx context.Context, category, status string) ([]store.Asset, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" {
		if _, ok := allowedAssetStatuses[status]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown asset status", map[string]any{"status": status})
		}
	}
	return s.store.ListAssets(ctx, category, status)
}

func (s *Service) UpdateAsset(ctx context.Context, id string, input AssetInput) (store.Asset, error) {
	status, err := validateAssetInput(input)
	if err != nil {
		return store.Asset{}, err
	}
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return store.Asset{}, err
	}
	if input.AssignedToID != nil {
		if _, err := s.store.GetUserByID(ctx, *input.AssignedToID); err != nil {
			return store.Asset{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "assignee not found", map[string]any{"assignedToId": *input.AssignedToID})
		}
	}

	asset.Name = strings.TrimSpace(input.Name)
	asset.Category = strings.TrimSpace(input.Category)
	asset.SerialNumber = strings.TrimSpace(input.SerialNumber)
	asset.Status = status
	asset.AssignedToID = input.AssignedToID
	asset.PurchasedAt = input.PurchasedAt
	asset.WarrantyUntil = input.WarrantyUntil

	if err := s.store.UpdateAsset(ctx, asset); err != nil {
		return store.Asset{}, err
	}
	return s.store.GetAsset(ctx, asset.ID)
}

func (s *Service) DeleteAsset(ctx context.Context, id string) error {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	return s.store.DeleteAsset(ctx, asset.ID)
}

// ── Licenses ──

type LicenseInput struct {
	Product   string     `json:"product"`
	Vendor    string     `json:"vendor"`
	Seats     int        `json:"seats"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Notes     string     `json:"notes"`
}

func validateLicenseInput(input LicenseInput) error {
	if strings.TrimSpace(input.Product) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "product is required", nil)
	}
	if input.Seats < 1 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "seats must be at least 1", nil)
	}
	return nil
}

func (s *Service) CreateLicense(ctx context.Context, input LicenseInput) (store.License, error) {
	if err := validateLicenseInput(input); err != nil {
		return store.License{}, err
	}
	license := store.License{
		ID:        util.NewID("lic"),
		Product:   strings.TrimSpace(input.Product),
		Vendor:    strings.TrimSpace(input.Vendor),
		Seats:     input.Seats,
		ExpiresAt: input.ExpiresAt,
		Notes:     input.Notes,
	}
	if err := s.store.InsertLicense(ctx, license); err != nil {
		return store.License{}, err
	}
	return s.store.GetLicense(ctx, license.ID)
}

func (s *Service) GetLicense(ctx context.Context, id string) (store.License, error) {
	return s.store.GetLicense(ctx, id)
}

func (s *Service) ListLicenses(ctx context.Context) ([]store.License, error) {
	return s.store.ListLicenses(ctx)
}

func (s *Service) UpdateLicense(ctx context.Context, id string, input LicenseInput) (store.License, error) {
	if err := validateLicenseInput(input); err != nil {
		return store.License{}, err
	}
	license, err := s.store.GetLicense(ctx, id)
	if err != nil {
		return store.License{}, err
	}
	if input.Seats < license.SeatsUsed {
		return store.License{}, domainError(http.StatusConflict, "SEATS_IN_USE", "cannot shrink below assigned seats", map[string]any{"seatsUsed": license.SeatsUsed})
	}
	license.Product = strings.TrimSpace(input.Product)
	license.Vendor = strings.TrimSpace(input.Vendor)
	license.Seats = input.Seats
	license.ExpiresAt = input.ExpiresAt
	license.Notes = input.Notes
	if err := s.store.UpdateLicense(ctx, license); err != nil {
		return store.License{}, err
	}
	return s.store.GetLicense(ctx, license.ID)
}

func (s *Service) DeleteLicense(ctx context.Context, id string) error {
	license, err := s.store.GetLicense(ctx, id)
	if err != nil {
		return err
	}
	if license.SeatsUsed > 0 {
		return domainError(http.StatusConflict, "SEATS_IN_USE", "release all seats before deleting", map[string]any{"seatsUsed": license.SeatsUsed})
	}
	return s.store.DeleteLicense(ctx, license.ID)
}

// AssignLicenseSeat claims a seat for the user. The store enforces the seat
// cap atomically, so two concurrent claims cannot oversubscribe.
func (s *Service) AssignLicenseSeat(ctx context.Context, licenseID, userID string) (store.License, error) {
	license, err := s.store.GetLicense(ctx, licenseID)
	if err != nil {
		return store.License{}, err
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return store.License{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "user not found", map[string]any{"userId": userID})
	}
	existing, err := s.store.ListLicenseAssignments(ctx, license.ID)
	if err != nil {
		return store.License{}, err
	}
	for _, assignment := range existing {
		if assignment.UserID == userID {
			return store.License{}, domainError(http.StatusConflict, "ALREADY_ASSIGNED", "user already holds a seat", nil)
		}
	}

	assigned, err := s.store.AssignLicenseSeat(ctx, store.LicenseAssignment{
		ID:        util.NewID("seat"),
		LicenseID: license.ID,
		UserID:    userID,
	})
	if err != nil {
		return store.License{}, err
	}
	if !assigned {
		return store.License{}, domainError(http.StatusConflict, "SEATS_EXHAUSTED", "no seats left on this license", map[string]any{"seats": license.Seats})
	}
	return s.store.GetLicense(ctx, license.ID)
}

func (s *Service) ReleaseLicenseSeat(ctx context.Context, licenseID, userID string) (store.License, error) {
	license, err := s.store.GetLicense(ctx, licenseID)
	if err != nil {
		return store.License{}, err
	}
	if err := s.store.ReleaseLicenseSeat(ctx, license.ID, userID); err != nil {
		return store.License{}, err
	}
	return s.store.GetLicense(ctx, license.ID)
}

func (s *Service) ListLicenseAssignments(ctx context.Context, licenseID string) ([]store.LicenseAssignment, error) {
	license, err := s.store.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	return s.store.ListLicenseAssignments(ctx, license.ID)
}
