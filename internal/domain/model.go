package domain

// Completion models selectable by the user.
const (
	ModelLlama70B    = "llama-3.3-70b-versatile"
	ModelDeepseek70B = "deepseek-r1-distill-llama-70b"

	DefaultModel = ModelLlama70B
)

// SupportedModels lists the selectable models in display order.
var SupportedModels = []string{ModelLlama70B, ModelDeepseek70B}

// IsSupportedModel reports whether name is one of SupportedModels.
func IsSupportedModel(name string) bool {
	for _, m := range SupportedModels {
		if m == name {
			return true
		}
	}
	return false
}

// ModelConfig holds the sampling parameters sent with every completion.
type ModelConfig struct {
	Temperature float32
	MaxTokens   int
}

// DefaultModelConfig is fixed; callers cannot override it per request.
var DefaultModelConfig = ModelConfig{
	Temperature: 0.7,
	MaxTokens:   512,
}
