package providers

const (
	mistralBaseURL      = "https://api.mistral.ai"
	mistralDefaultModel = "mistral-large-latest"
)

// Mistral speaks the OpenAI-compatible wire format on its own endpoint.
type Mistral struct{ openaiCompat }

func NewMistral(cfg Config) *Mistral {
	return &Mistral{newCompat("mistral", mistralBaseURL, mistralDefaultModel, cfg)}
}
