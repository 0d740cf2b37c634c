package strand

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/machinefabric/strand-go/capi"
)

// LogLevel selects the engine's log verbosity.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "trace"
	LogLevelDebug  LogLevel = "debug"
	LogLevelInfo   LogLevel = "info"
	LogLevelNotice LogLevel = "notice"
	LogLevelWarn   LogLevel = "warn"
	LogLevelError  LogLevel = "error"
	LogLevelFatal  LogLevel = "fatal"
)

func (l LogLevel) String() string { return string(l) }

// LogFormat selects how the engine renders its log output.
type LogFormat string

const (
	LogFormatAuto     LogFormat = "auto"
	LogFormatColors   LogFormat = "colors"
	LogFormatNoColors LogFormat = "nocolors"
	LogFormatJSON     LogFormat = "json"
)

func (f LogFormat) String() string { return string(f) }

// RepoKind selects the engine's block store backend.
type RepoKind string

const (
	RepoKindFS      RepoKind = "fs"
	RepoKindSQLite  RepoKind = "sqlite"
	RepoKindLevelDB RepoKind = "leveldb"
)

func (k RepoKind) String() string { return string(k) }

// ByteAmount is a byte count the engine expects as a decimal string in
// its configuration JSON.
type ByteAmount uint64

func (b ByteAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(b), 10))
}

func (b *ByteAmount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Hand-written configs sometimes carry a bare number.
		var n uint64
		if nerr := json.Unmarshal(data, &n); nerr != nil {
			return err
		}
		*b = ByteAmount(n)
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*b = ByteAmount(n)
	return nil
}

func (b *ByteAmount) UnmarshalYAML(value *yaml.Node) error {
	n, err := strconv.ParseUint(value.Value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid byte amount %q: %w", value.Value, err)
	}
	*b = ByteAmount(n)
	return nil
}

// Engine configuration defaults.
const (
	DefaultStorageQuota ByteAmount = 20 << 30   // 20 GiB
	DefaultBlockTTL     uint32     = 2_592_000  // 30 days, in seconds
	DefaultDiscPort     uint16     = 8090
	DefaultMetricsPort  uint16     = 8008
	DefaultMaxPeers     uint32     = 160
)

// Config is the node configuration handed to the engine as JSON. Field
// names follow the engine's kebab-case wire surface; zero values are
// omitted and the engine applies its own defaults for them.
type Config struct {
	LogLevel       LogLevel   `json:"log-level,omitempty" yaml:"log-level"`
	LogFormat      LogFormat  `json:"log-format,omitempty" yaml:"log-format"`
	Metrics        bool       `json:"metrics,omitempty" yaml:"metrics"`
	MetricsAddress string     `json:"metrics-address,omitempty" yaml:"metrics-address"`
	MetricsPort    uint16     `json:"metrics-port,omitempty" yaml:"metrics-port"`
	DataDir        string     `json:"data-dir,omitempty" yaml:"data-dir"`
	ListenAddrs    []string   `json:"listen-addrs,omitempty" yaml:"listen-addrs"`
	NAT            string     `json:"nat,omitempty" yaml:"nat"`
	DiscPort       uint16     `json:"disc-port,omitempty" yaml:"disc-port"`
	NetPrivKeyFile string     `json:"net-privkey,omitempty" yaml:"net-privkey"`
	BootstrapNodes []string   `json:"bootstrap-node,omitempty" yaml:"bootstrap-node"`
	MaxPeers       uint32     `json:"max-peers,omitempty" yaml:"max-peers"`
	AgentString    string     `json:"agent-string,omitempty" yaml:"agent-string"`
	RepoKind       RepoKind   `json:"repo-kind,omitempty" yaml:"repo-kind"`
	StorageQuota   ByteAmount `json:"storage-quota,omitempty" yaml:"storage-quota"`
	BlockTTL       uint32     `json:"block-ttl,omitempty" yaml:"block-ttl"`
	CacheSize      ByteAmount `json:"cache-size,omitempty" yaml:"cache-size"`
	LogFile        string     `json:"log-file,omitempty" yaml:"log-file"`
}

// DefaultConfig returns the engine defaults spelled out.
func DefaultConfig() Config {
	return Config{
		LogLevel:       LogLevelInfo,
		LogFormat:      LogFormatAuto,
		MetricsAddress: "127.0.0.1",
		MetricsPort:    DefaultMetricsPort,
		ListenAddrs:    []string{"/ip4/0.0.0.0/tcp/0"},
		NAT:            "any",
		DiscPort:       DefaultDiscPort,
		MaxPeers:       DefaultMaxPeers,
		AgentString:    "strand",
		RepoKind:       RepoKindFS,
		StorageQuota:   DefaultStorageQuota,
		BlockTTL:       DefaultBlockTTL,
	}
}

// configSchema is the JSON Schema (draft-7) the marshaled configuration
// is validated against before it crosses the engine boundary.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "strand node configuration",
  "type": "object",
  "properties": {
    "log-level":  {"type": "string", "enum": ["trace", "debug", "info", "notice", "warn", "error", "fatal"]},
    "log-format": {"type": "string", "enum": ["auto", "colors", "nocolors", "json"]},
    "metrics": {"type": "boolean"},
    "metrics-address": {"type": "string", "minLength": 1},
    "metrics-port": {"type": "integer", "minimum": 0, "maximum": 65535},
    "data-dir": {"type": "string"},
    "listen-addrs": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "nat": {"type": "string"},
    "disc-port": {"type": "integer", "minimum": 0, "maximum": 65535},
    "net-privkey": {"type": "string"},
    "bootstrap-node": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "max-peers": {"type": "integer", "minimum": 1},
    "agent-string": {"type": "string"},
    "repo-kind": {"type": "string", "enum": ["fs", "sqlite", "leveldb"]},
    "storage-quota": {"type": "string", "pattern": "^[0-9]+$"},
    "block-ttl": {"type": "integer", "minimum": 0},
    "cache-size": {"type": "string", "pattern": "^[0-9]+$"},
    "log-file": {"type": "string"}
  }
}`

// Validate marshals the configuration and checks it against the
// embedded schema. New refuses configurations that fail here, so bad
// values are caught before any engine call is issued.
func (c Config) Validate() error {
	doc, err := json.Marshal(c)
	if err != nil {
		return capi.NewConfigError("marshal configuration", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader([]byte(configSchema))
	documentLoader := gojsonschema.NewBytesLoader(doc)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return capi.NewConfigError("validate configuration", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return capi.NewConfigError(strings.Join(details, "; "), nil)
	}
	return nil
}

// LoadConfig reads a node configuration from path, YAML or JSON by file
// extension, layered over DefaultConfig so partial files work. The
// result is validated before it is returned.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, capi.NewConfigError(fmt.Sprintf("read %s", path), err)
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, capi.NewConfigError(fmt.Sprintf("parse %s", path), err)
		}
	case ".json":
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, capi.NewConfigError(fmt.Sprintf("parse %s", path), err)
		}
	default:
		return Config{}, capi.NewConfigError(fmt.Sprintf("unsupported config extension %q", ext), nil)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
