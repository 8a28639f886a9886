// Package router decides which provider and model serve a given
// (user, service) pair.
package router

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/commercekit/llm-gateway/internal/config"
	"github.com/commercekit/llm-gateway/internal/database"
	"github.com/commercekit/llm-gateway/internal/providers"
	"gorm.io/gorm"
)

// Route is a resolved routing decision: a ready adapter plus the model it
// should run.
type Route struct {
	Adapter      providers.Adapter
	ProviderName string
	Model        string
}

// Resolve picks the provider and model for a request. Checked strictly in
// order, first match wins:
//
//  1. override for (user_id, service_name)
//  2. account-wide override for (user_id, NULL)
//  3. the globally configured default
//
// The chosen provider must exist and be enabled; anything else is a fatal
// configuration error, never a silent fallback.
func Resolve(userID, serviceName string) (*Route, error) {
	providerName := config.Cfg.DefaultProvider
	model := config.Cfg.DefaultModel

	var override database.CustomerOverride
	err := database.DB.
		Where("user_id = ? AND service_name = ?", userID, serviceName).
		First(&override).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = database.DB.
			Where("user_id = ? AND service_name IS NULL", userID).
			First(&override).Error
	}
	if err == nil {
		providerName = override.ProviderName
		model = override.ModelName
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var cfg database.ProviderConfig
	err = database.DB.
		Where("name = ? AND is_enabled = ?", providerName, true).
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &providers.Error{
				Provider:   providerName,
				Message:    "not configured or disabled",
				StatusCode: http.StatusBadRequest,
			}
		}
		return nil, err
	}

	adapter, err := BuildAdapter(&cfg)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = adapter.DefaultModel()
	}

	return &Route{
		Adapter:      adapter,
		ProviderName: providerName,
		Model:        model,
	}, nil
}

// BuildAdapter instantiates the adapter for a stored provider config,
// decoding the opaque extra-config blob. An unrecognized name is a fatal
// configuration error.
func BuildAdapter(cfg *database.ProviderConfig) (providers.Adapter, error) {
	extra := map[string]string{}
	if cfg.ExtraConfig != "" {
		// A malformed blob is ignored rather than blocking generation.
		_ = json.Unmarshal([]byte(cfg.ExtraConfig), &extra)
	}

	return providers.New(cfg.Name, providers.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Extra:   extra,
	})
}
