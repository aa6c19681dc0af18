package config

// DefaultBootstrapText seeds the default corpus when no bootstrap text is configured.
const DefaultBootstrapText = `This is a generic chatbot. It can answer questions based on the information provided to it.
For now, it knows a little about AI: Artificial Intelligence (AI) is the simulation of human intelligence in machines.
AI systems can perform tasks like learning, problem-solving, and decision-making.`

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/corpora.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-minilm"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "http://localhost:11434"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "qwq"
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 120
	}
	if cfg.Chunking.BootstrapSize == 0 {
		cfg.Chunking.BootstrapSize = 500
	}
	if cfg.Chunking.BootstrapOverlap == 0 {
		cfg.Chunking.BootstrapOverlap = 50
	}
	if cfg.Chunking.DocumentSize == 0 {
		cfg.Chunking.DocumentSize = 1000
	}
	if cfg.Chunking.DocumentOverlap == 0 {
		cfg.Chunking.DocumentOverlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Bootstrap.Name == "" {
		cfg.Bootstrap.Name = "Built-in knowledge"
	}
	if cfg.Bootstrap.Text == "" && cfg.Bootstrap.TextPath == "" {
		cfg.Bootstrap.Text = DefaultBootstrapText
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods", ".odt", ".rtf"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
