package database

import "time"

// ProviderConfig is an administrator-managed upstream vendor configuration.
// Name must be one of the registered adapter names.
type ProviderConfig struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	APIKey      string    `gorm:"not null" json:"-"`
	BaseURL     string    `json:"base_url"`
	Models      string    `json:"models"` // comma-separated allowed model ids
	IsEnabled   bool      `gorm:"not null;default:true" json:"is_enabled"`
	Priority    int       `gorm:"not null;default:100" json:"priority"`
	ExtraConfig string    `json:"extra_config"` // opaque JSON blob passed to the adapter
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CustomerOverride pins a user (optionally scoped to one calling service) to
// a specific provider and model. A NULL service name applies account-wide.
// At most one row may exist per (user, service) pair.
type CustomerOverride struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string    `gorm:"not null;uniqueIndex:idx_user_service;index" json:"user_id"`
	ServiceName  *string   `gorm:"uniqueIndex:idx_user_service" json:"service_name"`
	ProviderName string    `gorm:"not null" json:"provider_name"`
	ModelName    string    `gorm:"not null" json:"model_name"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UsageLog is the append-only accounting ledger. Exactly one row is written
// per inbound generate request, whatever the outcome.
type UsageLog struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        string    `gorm:"not null;index" json:"user_id"`
	ServiceName   string    `gorm:"not null;index" json:"service_name"`
	TaskType      string    `json:"task_type"`
	ProviderName  string    `gorm:"not null;index" json:"provider_name"`
	ModelName     string    `json:"model_name"`
	InputTokens   int64     `gorm:"not null;default:0" json:"input_tokens"`
	OutputTokens  int64     `gorm:"not null;default:0" json:"output_tokens"`
	CostUSD       float64   `gorm:"not null;default:0" json:"cost_usd"`
	LatencyMs     int64     `gorm:"not null;default:0" json:"latency_ms"`
	Cached        bool      `gorm:"not null;default:false" json:"cached"`
	Error         *string   `json:"error"`
	PromptPreview string    `json:"prompt_preview"` // first 200 chars
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
