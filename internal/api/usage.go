package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/commercekit/llm-gateway/internal/database"
	"gorm.io/gorm"
)

const defaultUsageDays = 30

// usageTotals is the shared aggregate shape for ledger rollups.
type usageTotals struct {
	Group        string  `json:"group,omitempty"`
	Requests     int64   `json:"requests"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	CacheHits    int64   `json:"cache_hits"`
	Errors       int64   `json:"errors"`
}

const usageSelect = "COUNT(*) as requests, " +
	"COALESCE(SUM(input_tokens),0) as input_tokens, " +
	"COALESCE(SUM(output_tokens),0) as output_tokens, " +
	"COALESCE(SUM(cost_usd),0) as cost_usd, " +
	"COALESCE(SUM(CASE WHEN cached THEN 1 ELSE 0 END),0) as cache_hits, " +
	"COALESCE(SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END),0) as errors"

func usageWindow(r *http.Request) *gorm.DB {
	days := defaultUsageDays
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	return database.DB.Model(&database.UsageLog{}).Where("created_at >= ?", since)
}

// UsageSummary returns totals over the trailing N days.
func UsageSummary(w http.ResponseWriter, r *http.Request) {
	var total usageTotals
	if err := usageWindow(r).Select(usageSelect).Scan(&total).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to aggregate usage")
		return
	}
	writeJSON(w, http.StatusOK, total)
}

func usageGrouped(w http.ResponseWriter, r *http.Request, column string) {
	var results []usageTotals
	err := usageWindow(r).
		Select(column + " as `group`, " + usageSelect).
		Group(column).
		Order("cost_usd DESC").
		Scan(&results).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to aggregate usage")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// UsageByProvider groups ledger totals by provider, most expensive first.
func UsageByProvider(w http.ResponseWriter, r *http.Request) {
	usageGrouped(w, r, "provider_name")
}

// UsageByService groups ledger totals by calling service.
func UsageByService(w http.ResponseWriter, r *http.Request) {
	usageGrouped(w, r, "service_name")
}

// UsageByCustomer groups ledger totals by user.
func UsageByCustomer(w http.ResponseWriter, r *http.Request) {
	usageGrouped(w, r, "user_id")
}
