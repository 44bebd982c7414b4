package config

// Default values.
const (
	DefaultDividendPolicy   = "none"
	DefaultLogLevel         = "info"
	DefaultLogOutput        = "stdout"
	DefaultLogFilePath      = "logs/eod-normalizer.log"
	DefaultMetricsNamespace = "eod_normalizer"
)

// DefaultSourcePriority ranks the exchange bhavcopy feeds above vendor feeds.
var DefaultSourcePriority = []string{"NSE_BHAV", "BSE_BHAV", "VENDOR"}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			DividendPolicy: DefaultDividendPolicy,
			SourcePriority: append([]string(nil), DefaultSourcePriority...),
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Output:   DefaultLogOutput,
			FilePath: DefaultLogFilePath,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultMetricsNamespace,
		},
	}
}
