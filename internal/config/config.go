// Package config defines process configuration and loading.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file, and environment.
// - External errors must be wrapped via this package's sentinel errors.
package config

// Judge describes one panel member. The client speaks the OpenAI
// chat-completions wire format, so any compatible endpoint works through
// BaseURL.
type Judge struct {
	// ID is the stable judge identifier stored on every verdict.
	ID string `koanf:"id"`

	// Name is the display label; defaults to ID when empty.
	Name string `koanf:"name"`

	// Provider is informational, e.g. "groq" or "openai".
	Provider string `koanf:"provider"`

	// Model is the provider-side model identifier.
	Model string `koanf:"model"`

	// BaseURL overrides the provider endpoint. Empty means the client
	// library default.
	BaseURL string `koanf:"base_url"`

	// APIKeyEnv names the environment variable holding the credential.
	APIKeyEnv string `koanf:"api_key_env"`

	// Optional judges are skipped with a warning when their credential is
	// absent; required judges fail startup.
	Optional bool `koanf:"optional"`

	// TPM is the token-per-minute budget for this judge's model.
	TPM int `koanf:"tpm"`

	// MaxInFlight bounds concurrent requests to this judge's model.
	MaxInFlight int `koanf:"max_in_flight"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr serves Prometheus metrics while a run executes, e.g.
	// ":9080". Empty disables the listener.
	MetricsAddr string `koanf:"metrics_addr"`

	// Judges is the panel roster.
	Judges []Judge `koanf:"judges"`

	// Rubric selects the enabled rubric dimensions.
	Rubric []string `koanf:"rubric"`

	// ManualMetrics adds free-form metric keys judged alongside the rubric.
	ManualMetrics []string `koanf:"manual_metrics"`

	// ChunkSize sets how many items go into one judge request.
	ChunkSize int `koanf:"chunk_size"`

	// WorkerCount sets the number of chunk workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory chunk queue.
	QueueSize int `koanf:"queue_size"`

	// MaxAttempts caps judge request attempts including the first.
	MaxAttempts int `koanf:"max_attempts"`

	// Temperature is passed through to every judge request.
	Temperature float64 `koanf:"temperature"`

	// StructuredOutput requests strict JSON-schema responses first, with a
	// one-time fallback to json_object mode on failure.
	StructuredOutput bool `koanf:"structured_output"`

	// MaxOutputTokens caps the judge completion size.
	MaxOutputTokens int `koanf:"max_output_tokens"`

	// RequestTimeoutMS bounds a single judge HTTP request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// LexiconPath points at a JSON anchor lexicon; empty uses the built-in
	// one.
	LexiconPath string `koanf:"lexicon_path"`
}

// rosterAliases maps shorthand judge ids to full specs, so a config file can
// name a panel member by alias alone.
var rosterAliases = map[string]Judge{
	"judge-mini-a": {
		Name:        "Llama 3.1 8B Instant",
		Provider:    "groq",
		Model:       "llama-3.1-8b-instant",
		BaseURL:     "https://api.groq.com/openai/v1",
		APIKeyEnv:   "GROQ_API_KEY",
		TPM:         6000,
		MaxInFlight: 4,
	},
	"judge-mini-b": {
		Name:        "Llama 3.3 70B Versatile",
		Provider:    "groq",
		Model:       "llama-3.3-70b-versatile",
		BaseURL:     "https://api.groq.com/openai/v1",
		APIKeyEnv:   "GROQ_API_KEY",
		TPM:         6000,
		MaxInFlight: 4,
	},
	"judge-mini-c": {
		Name:        "GPT-4o mini",
		Provider:    "openai",
		Model:       "gpt-4o-mini",
		APIKeyEnv:   "OPENAI_API_KEY",
		Optional:    true,
		TPM:         200_000,
		MaxInFlight: 8,
	},
}

// resolveAliases fills empty judge fields from the alias table when the id
// matches a known shorthand. Explicit fields always win.
func (c *Config) resolveAliases() {
	for i, j := range c.Judges {
		base, ok := rosterAliases[j.ID]
		if !ok {
			continue
		}
		if j.Name == "" {
			c.Judges[i].Name = base.Name
		}
		if j.Provider == "" {
			c.Judges[i].Provider = base.Provider
		}
		if j.Model == "" {
			c.Judges[i].Model = base.Model
		}
		if j.BaseURL == "" {
			c.Judges[i].BaseURL = base.BaseURL
		}
		if j.APIKeyEnv == "" {
			c.Judges[i].APIKeyEnv = base.APIKeyEnv
		}
		if !j.Optional {
			c.Judges[i].Optional = base.Optional
		}
		if j.TPM == 0 {
			c.Judges[i].TPM = base.TPM
		}
		if j.MaxInFlight == 0 {
			c.Judges[i].MaxInFlight = base.MaxInFlight
		}
	}
}

// New creates a Config with defaults. The default roster is two required
// Groq judges plus one optional OpenAI judge.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Judges: []Judge{
			{
				ID:          "groq-llama31-8b",
				Name:        "Llama 3.1 8B Instant",
				Provider:    "groq",
				Model:       "llama-3.1-8b-instant",
				BaseURL:     "https://api.groq.com/openai/v1",
				APIKeyEnv:   "GROQ_API_KEY",
				TPM:         6000,
				MaxInFlight: 4,
			},
			{
				ID:          "groq-llama33-70b",
				Name:        "Llama 3.3 70B Versatile",
				Provider:    "groq",
				Model:       "llama-3.3-70b-versatile",
				BaseURL:     "https://api.groq.com/openai/v1",
				APIKeyEnv:   "GROQ_API_KEY",
				TPM:         6000,
				MaxInFlight: 4,
			},
			{
				ID:          "openai-gpt4o-mini",
				Name:        "GPT-4o mini",
				Provider:    "openai",
				Model:       "gpt-4o-mini",
				APIKeyEnv:   "OPENAI_API_KEY",
				Optional:    true,
				TPM:         200_000,
				MaxInFlight: 8,
			},
		},
		Rubric: []string{
			"grammar", "word_choice", "cohesion", "conciseness",
			"completeness", "correctness", "clarity",
		},
		ChunkSize:        8,
		WorkerCount:      4,
		QueueSize:        10_000,
		MaxAttempts:      4,
		Temperature:      0.0,
		StructuredOutput: true,
		MaxOutputTokens:  4096,
		RequestTimeoutMS: 120_000,
	}
}
