package cost

// pricing holds per-million-token USD prices for one (provider, model-prefix)
// pair. Lookup walks the table in declaration order and takes the first
// prefix match, so more specific prefixes must be listed before shorter ones
// that would shadow them (gpt-4o-mini before gpt-4o).
type pricing struct {
	Provider    string
	ModelPrefix string
	InputUSD    float64 // per 1M input tokens
	OutputUSD   float64 // per 1M output tokens
}

var pricingTable = []pricing{
	// Anthropic
	{"claude", "claude-opus-4", 15.00, 75.00},
	{"claude", "claude-sonnet-4", 3.00, 15.00},
	{"claude", "claude-haiku-4", 0.80, 4.00},
	{"claude", "claude-3-5-sonnet", 3.00, 15.00},
	{"claude", "claude-3-5-haiku", 0.80, 4.00},
	{"claude", "claude-3-opus", 15.00, 75.00},
	// OpenAI
	{"openai", "gpt-4o-mini", 0.15, 0.60},
	{"openai", "gpt-4o", 2.50, 10.00},
	{"openai", "gpt-4-turbo", 10.00, 30.00},
	{"openai", "o1-mini", 3.00, 12.00},
	{"openai", "o1", 15.00, 60.00},
	{"openai", "o3-mini", 1.10, 4.40},
	// Google
	{"gemini", "gemini-2.0-flash", 0.075, 0.30},
	{"gemini", "gemini-2.0-pro", 1.25, 10.00},
	{"gemini", "gemini-1.5-pro", 1.25, 5.00},
	{"gemini", "gemini-1.5-flash", 0.075, 0.30},
	// Llama
	{"llama", "llama-3.3-70b", 0.59, 0.79},
	{"llama", "llama-3.1-8b", 0.05, 0.08},
	// Mistral
	{"mistral", "mistral-large", 2.00, 6.00},
	{"mistral", "mistral-small", 0.10, 0.30},
}

// Prices of last resort for providers absent from the table, e.g. custom
// self-hosted endpoints.
const (
	defaultInputUSD  = 1.00
	defaultOutputUSD = 3.00
)
