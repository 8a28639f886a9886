package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/commercekit/llm-gateway/internal/database"
	"github.com/commercekit/llm-gateway/internal/providers"
	"github.com/commercekit/llm-gateway/internal/router"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type providerBody struct {
	Name        *string  `json:"name"`
	DisplayName *string  `json:"display_name"`
	APIKey      *string  `json:"api_key"`
	BaseURL     *string  `json:"base_url"`
	Models      []string `json:"models"`
	IsEnabled   *bool    `json:"is_enabled"`
	Priority    *int     `json:"priority"`
	ExtraConfig *string  `json:"extra_config"`
}

// ListProviders returns all provider configs ordered by ascending priority.
func ListProviders(w http.ResponseWriter, r *http.Request) {
	var configs []database.ProviderConfig
	if err := database.DB.Order("priority ASC").Find(&configs).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list providers")
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

// CreateProvider registers a new upstream provider. Unknown adapter names are
// rejected up front so misconfiguration fails at write time, not request time.
func CreateProvider(w http.ResponseWriter, r *http.Request) {
	var body providerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == nil || *body.Name == "" || body.APIKey == nil {
		writeError(w, http.StatusBadRequest, "name and api_key are required")
		return
	}
	if !providers.Known(*body.Name) {
		writeError(w, http.StatusBadRequest, "unknown provider name: "+*body.Name)
		return
	}

	cfg := database.ProviderConfig{
		Name:      *body.Name,
		APIKey:    *body.APIKey,
		IsEnabled: true,
		Priority:  100,
		Models:    strings.Join(body.Models, ","),
	}
	if body.DisplayName != nil {
		cfg.DisplayName = *body.DisplayName
	} else {
		cfg.DisplayName = cfg.Name
	}
	if body.BaseURL != nil {
		cfg.BaseURL = *body.BaseURL
	}
	if body.IsEnabled != nil {
		cfg.IsEnabled = *body.IsEnabled
	}
	if body.Priority != nil {
		cfg.Priority = *body.Priority
	}
	if body.ExtraConfig != nil {
		cfg.ExtraConfig = *body.ExtraConfig
	}

	var existing database.ProviderConfig
	if err := database.DB.Where("name = ?", cfg.Name).First(&existing).Error; err == nil {
		writeError(w, http.StatusConflict, "provider already exists: "+cfg.Name)
		return
	}

	if err := database.DB.Create(&cfg).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create provider")
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// GetProvider returns one provider config by id.
func GetProvider(w http.ResponseWriter, r *http.Request) {
	var cfg database.ProviderConfig
	if err := database.DB.First(&cfg, chi.URLParam(r, "id")).Error; err != nil {
		writeError(w, http.StatusNotFound, "Provider not found")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateProvider applies a partial update to a provider config.
func UpdateProvider(w http.ResponseWriter, r *http.Request) {
	var cfg database.ProviderConfig
	if err := database.DB.First(&cfg, chi.URLParam(r, "id")).Error; err != nil {
		writeError(w, http.StatusNotFound, "Provider not found")
		return
	}

	var body providerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updates := map[string]any{}
	if body.DisplayName != nil {
		updates["display_name"] = *body.DisplayName
	}
	if body.APIKey != nil {
		updates["api_key"] = *body.APIKey
	}
	if body.BaseURL != nil {
		updates["base_url"] = *body.BaseURL
	}
	if body.Models != nil {
		updates["models"] = strings.Join(body.Models, ",")
	}
	if body.IsEnabled != nil {
		updates["is_enabled"] = *body.IsEnabled
	}
	if body.Priority != nil {
		updates["priority"] = *body.Priority
	}
	if body.ExtraConfig != nil {
		updates["extra_config"] = *body.ExtraConfig
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&cfg).Updates(updates).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to update provider")
			return
		}
	}
	writeJSON(w, http.StatusOK, cfg)
}

// DeleteProvider removes a provider config. Missing ids are an error, not a
// silent success.
func DeleteProvider(w http.ResponseWriter, r *http.Request) {
	result := database.DB.Delete(&database.ProviderConfig{}, chi.URLParam(r, "id"))
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "Provider not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestProvider issues a minimal generation against the stored config and
// reports reachability.
func TestProvider(w http.ResponseWriter, r *http.Request) {
	var cfg database.ProviderConfig
	if err := database.DB.First(&cfg, chi.URLParam(r, "id")).Error; err != nil {
		writeError(w, http.StatusNotFound, "Provider not found")
		return
	}

	adapter, err := router.BuildAdapter(&cfg)
	if err != nil {
		writeProviderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider": cfg.Name,
		"ok":       adapter.TestConnection(r.Context()),
	})
}

type overrideBody struct {
	UserID       string  `json:"user_id"`
	ServiceName  *string `json:"service_name"`
	ProviderName string  `json:"provider_name"`
	ModelName    string  `json:"model_name"`
}

// ListOverrides returns customer overrides, optionally filtered by user.
func ListOverrides(w http.ResponseWriter, r *http.Request) {
	query := database.DB.Model(&database.CustomerOverride{})
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var overrides []database.CustomerOverride
	if err := query.Order("user_id ASC").Find(&overrides).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list overrides")
		return
	}
	writeJSON(w, http.StatusOK, overrides)
}

// CreateOverride pins a user (optionally per service) to a provider/model.
// At most one override may exist per (user, service) pair.
func CreateOverride(w http.ResponseWriter, r *http.Request) {
	var body overrideBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.UserID == "" || body.ProviderName == "" || body.ModelName == "" {
		writeError(w, http.StatusBadRequest, "user_id, provider_name and model_name are required")
		return
	}
	if !providers.Known(body.ProviderName) {
		writeError(w, http.StatusBadRequest, "unknown provider name: "+body.ProviderName)
		return
	}

	dup := database.DB.Where("user_id = ?", body.UserID)
	if body.ServiceName == nil {
		dup = dup.Where("service_name IS NULL")
	} else {
		dup = dup.Where("service_name = ?", *body.ServiceName)
	}
	var existing database.CustomerOverride
	if err := dup.First(&existing).Error; err == nil {
		writeError(w, http.StatusConflict, "override already exists for this user and service")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to check existing overrides")
		return
	}

	override := database.CustomerOverride{
		UserID:       body.UserID,
		ServiceName:  body.ServiceName,
		ProviderName: body.ProviderName,
		ModelName:    body.ModelName,
	}
	if err := database.DB.Create(&override).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create override")
		return
	}
	writeJSON(w, http.StatusCreated, override)
}

// DeleteOverride removes an override by id.
func DeleteOverride(w http.ResponseWriter, r *http.Request) {
	result := database.DB.Delete(&database.CustomerOverride{}, chi.URLParam(r, "id"))
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "Override not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
