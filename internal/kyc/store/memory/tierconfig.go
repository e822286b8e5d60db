package memory

import (
	"context"
	"strings"
	"sync"

	"kycgate/internal/kyc/models"
	"kycgate/pkg/platform/sentinel"
)

type TierConfigStore struct {
	mu      sync.RWMutex
	configs map[string]models.TierConfig
}

func NewTierConfigStore() *TierConfigStore {
	return &TierConfigStore{configs: make(map[string]models.TierConfig)}
}

func configKey(country string, tier models.Tier) string {
	return strings.ToUpper(country) + "/" + tier.String()
}

func (s *TierConfigStore) Get(_ context.Context, country string, tier models.Tier) (*models.TierConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config, ok := s.configs[configKey(country, tier)]
	if !ok || !config.Active {
		return nil, sentinel.ErrNotFound
	}
	copied := config
	return &copied, nil
}

func (s *TierConfigStore) Upsert(_ context.Context, config models.TierConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[configKey(config.Country, config.Tier)] = config
	return nil
}

func (s *TierConfigStore) ListActive(_ context.Context) ([]models.TierConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.TierConfig
	for _, config := range s.configs {
		if config.Active {
			out = append(out, config)
		}
	}
	return out, nil
}
