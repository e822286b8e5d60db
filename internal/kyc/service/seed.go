package service

import (
	"context"
	"fmt"

	"kycgate/internal/kyc/models"
	"kycgate/internal/kyc/ports"
)

// DefaultTierConfigs is the starter policy matrix. Deployments adjust it
// administratively; the seed only establishes a working baseline.
func DefaultTierConfigs() []models.TierConfig {
	return []models.TierConfig{
		// IN basic is OTP-based eKYC against the national identity registry;
		// no document uploads are required at this tier.
		{
			Country:       "IN",
			Tier:          models.TierBasic,
			Provider:      "hyperverge",
			MinConfidence: 0.85,
			Active:        true,
		},
		{
			Country:           "IN",
			Tier:              models.TierFull,
			RequiredDocuments: []models.DocumentType{models.DocNationalID},
			Provider:          "idfy",
			MinConfidence:     0.90,
			Active:            true,
		},
		{
			Country:           "AE",
			Tier:              models.TierBasic,
			RequiredDocuments: []models.DocumentType{models.DocNationalID},
			Provider:          "hyperverge",
			MinConfidence:     0.85,
			Active:            true,
		},
		{
			Country:           "AE",
			Tier:              models.TierFull,
			RequiredDocuments: []models.DocumentType{models.DocPassport},
			Provider:          "idfy",
			MinConfidence:     0.90,
			Active:            true,
		},
		{
			Country:           "GB",
			Tier:              models.TierBasic,
			RequiredDocuments: []models.DocumentType{models.DocPassport, models.DocDrivingLicense},
			Provider:          "hyperverge",
			MinConfidence:     0.85,
			Active:            true,
		},
		{
			Country:           "GB",
			Tier:              models.TierFull,
			RequiredDocuments: []models.DocumentType{models.DocPassport},
			Provider:          "idfy",
			MinConfidence:     0.90,
			Active:            true,
		},
	}
}

// SeedTierConfigs installs the default policies for any (country, tier) pair
// not already configured. Existing rows are left alone.
func SeedTierConfigs(ctx context.Context, store ports.TierConfigStore) error {
	existing, err := store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list tier configs: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, config := range existing {
		seen[config.Country+"/"+config.Tier.String()] = true
	}

	for _, config := range DefaultTierConfigs() {
		if seen[config.Country+"/"+config.Tier.String()] {
			continue
		}
		if err := store.Upsert(ctx, config); err != nil {
			return fmt.Errorf("seed tier config %s/%s: %w", config.Country, config.Tier, err)
		}
	}
	return nil
}
