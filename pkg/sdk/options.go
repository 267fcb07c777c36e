package nlquery

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "memory"
	addrs    []string
	password string

	generator Generator
	baseURL   string
	apiKey    string

	models       []string
	defaultModel string

	collection       string
	keyPrefix        string
	deterministicIDs bool
	queryLimit       int
	matchAllLimit    int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey configures the client to connect to a Valkey instance with valkey-search.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis configures the client to connect to a Redis instance with RediSearch.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps the collection in process. Data is lost on Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	})
}

// WithGenerator sets the generative model provider.
// Takes precedence over WithOpenAI.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithOpenAI uses an OpenAI-compatible chat completion endpoint, e.g. Ollama's /v1.
func WithOpenAI(baseURL, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = baseURL
		c.apiKey = apiKey
	})
}

// WithModels sets the model allow-list. The first model is the default
// unless WithDefaultModel names another one.
func WithModels(models ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.models = append([]string(nil), models...)
	})
}

// WithDefaultModel sets the model used when a call names none.
func WithDefaultModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultModel = model
	})
}

// WithCollection sets the collection name. Default: "people".
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.collection = name
	})
}

// WithKeyPrefix sets the key namespace shared with the server. Default: "nlq:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithDeterministicIDs derives document ids from record content,
// so re-ingesting the same line updates instead of inserting.
func WithDeterministicIDs() Option {
	return optionFunc(func(c *clientConfig) {
		c.deterministicIDs = true
	})
}

// WithQueryLimit caps hits returned by filtered and free-text queries. Default: 10.
func WithQueryLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryLimit = n
	})
}

// WithMatchAllLimit caps hits returned for questions that list the whole collection. Default: 100.
func WithMatchAllLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.matchAllLimit = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
