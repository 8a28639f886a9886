package cost

import (
	"strings"

	"github.com/commercekit/llm-gateway/internal/database"
	"go.uber.org/zap"
)

const promptPreviewLen = 200

// Calculate prices a completed generation in USD. Matching order: first
// table entry whose provider matches and whose prefix starts the model, then
// the provider's first entry regardless of prefix, then the hard default.
func Calculate(provider, model string, inputTokens, outputTokens int64) float64 {
	inputUSD, outputUSD := defaultInputUSD, defaultOutputUSD

	var fallback *pricing
	matched := false
	for i := range pricingTable {
		p := &pricingTable[i]
		if p.Provider != provider {
			continue
		}
		if fallback == nil {
			fallback = p
		}
		if strings.HasPrefix(model, p.ModelPrefix) {
			inputUSD, outputUSD = p.InputUSD, p.OutputUSD
			matched = true
			break
		}
	}
	if !matched && fallback != nil {
		inputUSD, outputUSD = fallback.InputUSD, fallback.OutputUSD
	}

	return (float64(inputTokens)*inputUSD + float64(outputTokens)*outputUSD) / 1_000_000
}

// Entry describes one gateway request for the usage ledger.
type Entry struct {
	UserID       string
	ServiceName  string
	TaskType     string
	ProviderName string
	ModelName    string
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	LatencyMs    int64
	Cached       bool
	Err          error
	Prompt       string
}

// LogUsage appends one ledger row. Accounting must never fail a generation
// request, so write errors are logged and swallowed.
func LogUsage(e Entry) {
	record := database.UsageLog{
		UserID:        e.UserID,
		ServiceName:   e.ServiceName,
		TaskType:      e.TaskType,
		ProviderName:  e.ProviderName,
		ModelName:     e.ModelName,
		InputTokens:   e.InputTokens,
		OutputTokens:  e.OutputTokens,
		CostUSD:       e.CostUSD,
		LatencyMs:     e.LatencyMs,
		Cached:        e.Cached,
		PromptPreview: preview(e.Prompt),
	}
	if e.Err != nil {
		msg := e.Err.Error()
		record.Error = &msg
	}

	if err := database.DB.Create(&record).Error; err != nil {
		zap.L().Error("failed to write usage log",
			zap.String("user_id", e.UserID),
			zap.String("service", e.ServiceName),
			zap.Error(err))
	}
}

func preview(prompt string) string {
	if len(prompt) > promptPreviewLen {
		return prompt[:promptPreviewLen]
	}
	return prompt
}
