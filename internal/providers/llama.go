package providers

const (
	llamaBaseURL      = "https://api.llama.com/compat"
	llamaDefaultModel = "llama-3.3-70b"
)

// Llama serves Meta's Llama API through the OpenAI-compatible surface.
type Llama struct{ openaiCompat }

func NewLlama(cfg Config) *Llama {
	return &Llama{newCompat("llama", llamaBaseURL, llamaDefaultModel, cfg)}
}
