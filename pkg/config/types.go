package config

import "time"

type CrossOrigin string

const (
	CrossOriginNone           CrossOrigin = ""
	CrossOriginAnonymous      CrossOrigin = "anonymous"
	CrossOriginUseCredentials CrossOrigin = "use-credentials"
)

type TransportName string

const (
	TransportAuto        TransportName = "auto"
	TransportEventSource TransportName = "eventsource"
	TransportWebSocket   TransportName = "websocket"
)

type Config struct {
	Output    OutputConfig    `toml:"output" yaml:"output"`
	Features  FeaturesConfig  `toml:"features" yaml:"features"`
	KeepAlive KeepAliveConfig `toml:"keepAlive" yaml:"keepAlive"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Log       LogConfig       `toml:"log" yaml:"log"`
}

// OutputConfig mirrors the bundler output options the load-script runtime
// is generated from.
type OutputConfig struct {
	ScriptType         string      `toml:"scriptType" yaml:"scriptType"`
	ChunkLoadTimeout   int         `toml:"chunkLoadTimeout" yaml:"chunkLoadTimeout"`
	CrossOriginLoading CrossOrigin `toml:"crossOriginLoading" yaml:"crossOriginLoading"`
	UniqueName         string      `toml:"uniqueName" yaml:"uniqueName"`
	Charset            bool        `toml:"charset" yaml:"charset"`
}

type FeaturesConfig struct {
	FetchPriority   bool `toml:"fetchPriority" yaml:"fetchPriority"`
	ExternalSupport bool `toml:"externalSupport" yaml:"externalSupport"`
	CreateScriptURL bool `toml:"createScriptUrl" yaml:"createScriptUrl"`
}

type KeepAliveConfig struct {
	ResourceQuery string        `toml:"resourceQuery" yaml:"resourceQuery"`
	Transport     TransportName `toml:"transport" yaml:"transport"`
	Backoff       BackoffConfig `toml:"backoff" yaml:"backoff"`
}

type BackoffConfig struct {
	InitialDelay Duration `toml:"initialDelay" yaml:"initialDelay"`
	MaxDelay     Duration `toml:"maxDelay" yaml:"maxDelay"`
	Multiplier   float64  `toml:"multiplier" yaml:"multiplier"`
	Jitter       bool     `toml:"jitter" yaml:"jitter"`
}

type ServerConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
	WatchDir string `toml:"watchDir" yaml:"watchDir"`
	// AllowOrigins lists page origins besides localhost that may open
	// keep-alive connections.
	AllowOrigins []string `toml:"allowOrigins" yaml:"allowOrigins"`
}

type LogConfig struct {
	Level   string `toml:"level" yaml:"level"`
	NoColor bool   `toml:"noColor" yaml:"noColor"`
}

// Duration decodes from strings such as "1s" or "250ms" in both TOML and YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			ScriptType:         "",
			ChunkLoadTimeout:   120000,
			CrossOriginLoading: CrossOriginNone,
			UniqueName:         "",
			Charset:            true,
		},
		Features: FeaturesConfig{
			FetchPriority:   false,
			ExternalSupport: true,
			CreateScriptURL: false,
		},
		KeepAlive: KeepAliveConfig{
			ResourceQuery: "",
			Transport:     TransportAuto,
			Backoff: BackoffConfig{
				InitialDelay: Duration{time.Second},
				MaxDelay:     Duration{30 * time.Second},
				Multiplier:   2,
				Jitter:       true,
			},
		},
		Server: ServerConfig{
			Host:     "localhost",
			Port:     4322,
			Prefix:   "/lazy-compilation-using-",
			WatchDir: "./src",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadTimeout converts the millisecond chunk load timeout into a duration.
func (o OutputConfig) LoadTimeout() time.Duration {
	return time.Duration(o.ChunkLoadTimeout) * time.Millisecond
}

// TimeoutSeconds is the value carried on the script element's timeout attribute.
func (o OutputConfig) TimeoutSeconds() float64 {
	return float64(o.ChunkLoadTimeout) / 1000
}
