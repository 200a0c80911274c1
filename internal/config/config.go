package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/boardsync/internal/errors"
	"github.com/vango-dev/boardsync/pkg/protocol"
	"github.com/vango-dev/boardsync/pkg/realtime"
)

// File names searched by Load, in order.
var FileNames = []string{"boardsync.json", "boardsync.yaml", "boardsync.yml"}

const (
	// DefaultTokenEnv is the environment variable the token is read from.
	DefaultTokenEnv = "BOARDSYNC_TOKEN"

	// DefaultMetricsListen is the address of the ops HTTP server.
	DefaultMetricsListen = "127.0.0.1:9464"

	// DefaultFlushInterval is how often transcripts are archived.
	DefaultFlushInterval = "1m"
)

// Config represents a boardsync.json or boardsync.yaml project file.
// Durations are Go duration strings ("500ms", "30s").
type Config struct {
	// URL is the realtime endpoint.
	URL string `json:"url" yaml:"url"`

	// UserID is stamped on outbound envelopes when set.
	UserID *int64 `json:"userId,omitempty" yaml:"userId,omitempty"`

	// Room is joined by `boardsync watch` when no --room flag is given.
	Room *int64 `json:"room,omitempty" yaml:"room,omitempty"`

	Token TokenConfig `json:"token" yaml:"token"`

	ConnectTimeout string `json:"connectTimeout,omitempty" yaml:"connectTimeout,omitempty"`
	WriteTimeout   string `json:"writeTimeout,omitempty" yaml:"writeTimeout,omitempty"`
	Heartbeat      string `json:"heartbeat,omitempty" yaml:"heartbeat,omitempty"`

	Reconnect ReconnectConfig `json:"reconnect" yaml:"reconnect"`

	// Compression negotiates permessage-deflate.
	Compression bool `json:"compression,omitempty" yaml:"compression,omitempty"`

	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	Transcript TranscriptConfig `json:"transcript" yaml:"transcript"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// TokenConfig says where the bearer token comes from.
type TokenConfig struct {
	// Env names the environment variable holding the token.
	Env string `json:"env,omitempty" yaml:"env,omitempty"`

	// Param is the query parameter the token is sent in.
	Param string `json:"param,omitempty" yaml:"param,omitempty"`
}

// ReconnectConfig is the automatic reconnect policy.
type ReconnectConfig struct {
	// MaxAttempts of zero disables automatic reconnects.
	MaxAttempts *int     `json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty"`
	BaseDelay   string   `json:"baseDelay,omitempty" yaml:"baseDelay,omitempty"`
	MaxDelay    string   `json:"maxDelay,omitempty" yaml:"maxDelay,omitempty"`
	Jitter      *float64 `json:"jitter,omitempty" yaml:"jitter,omitempty"`
}

// MetricsConfig controls the ops HTTP server.
type MetricsConfig struct {
	// Listen is the address for /metrics and /healthz. "off" disables it.
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`
}

// TranscriptConfig controls envelope archiving. Archiving is off unless
// Dir or Bucket is set; Bucket wins when both are.
type TranscriptConfig struct {
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, for MinIO and friends.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	FlushInterval string `json:"flushInterval,omitempty" yaml:"flushInterval,omitempty"`

	// Kinds limits recording to these kinds. Empty records everything.
	Kinds []string `json:"kinds,omitempty" yaml:"kinds,omitempty"`
}

// New returns a Config with every default filled in and no URL.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the first project file found in dir.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("BS101").
		WithDetail("No boardsync.json or boardsync.yaml found in " + dir).
		WithSuggestion("Run 'boardsync config init' to write a starter file")
}

// LoadFile reads a project file. The format follows the extension:
// .yaml and .yml are YAML, anything else is JSON with comments.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("BS101").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("BS102").Wrap(err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(path, data, cfg)
	default:
		err = decodeJSON(path, data, cfg)
	}
	if err != nil {
		return nil, err
	}

	cfg.configPath = path
	cfg.applyDefaults()
	return cfg, nil
}

// decodeJSON strips comments and trailing commas, then decodes strictly.
// jsonc keeps byte offsets intact, so syntax errors point at the
// original file.
func decodeJSON(path string, data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		ce := errors.New("BS102").Wrap(err)
		var syntax *json.SyntaxError
		var typ *json.UnmarshalTypeError
		switch {
		case stderrors.As(err, &syntax):
			line, col := position(data, syntax.Offset)
			ce.WithLocation(path, line, col)
		case stderrors.As(err, &typ):
			line, col := position(data, typ.Offset)
			ce.WithLocation(path, line, col)
		}
		return ce.WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
	}
	return nil
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

func decodeYAML(path string, data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		ce := errors.New("BS102").Wrap(err)
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			if line, convErr := strconv.Atoi(m[1]); convErr == nil {
				ce.WithLocation(path, line, 0)
			}
		}
		return ce.WithSuggestion("Check that " + filepath.Base(path) + " is valid YAML")
	}
	return nil
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col := 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path in the format its extension
// selects.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("BS102").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("BS102").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in empty fields from realtime.DefaultConfig.
func (c *Config) applyDefaults() {
	def := realtime.DefaultConfig()

	if c.Token.Env == "" {
		c.Token.Env = DefaultTokenEnv
	}
	if c.Token.Param == "" {
		c.Token.Param = def.TokenParam
	}
	if c.ConnectTimeout == "" {
		c.ConnectTimeout = def.ConnectTimeout.String()
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = def.WriteTimeout.String()
	}
	if c.Heartbeat == "" {
		c.Heartbeat = def.HeartbeatInterval.String()
	}

	if c.Reconnect.MaxAttempts == nil {
		n := def.MaxReconnectAttempts
		c.Reconnect.MaxAttempts = &n
	}
	if c.Reconnect.BaseDelay == "" {
		c.Reconnect.BaseDelay = def.ReconnectBaseDelay.String()
	}
	if c.Reconnect.MaxDelay == "" {
		c.Reconnect.MaxDelay = def.ReconnectMaxDelay.String()
	}
	if c.Reconnect.Jitter == nil {
		j := def.ReconnectJitter
		c.Reconnect.Jitter = &j
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}
	if c.Transcript.FlushInterval == "" {
		c.Transcript.FlushInterval = DefaultFlushInterval
	}
}

// Validate checks the file as a whole, including that ToRealtime would
// succeed.
func (c *Config) Validate() error {
	if _, err := c.ToRealtime(); err != nil {
		return err
	}
	if _, err := c.duration("transcript.flushInterval", c.Transcript.FlushInterval); err != nil {
		return err
	}
	for _, name := range c.Transcript.Kinds {
		if _, ok := protocol.ParseKind(name); !ok {
			return c.invalid("transcript.kinds", fmt.Sprintf("unknown kind %q", name))
		}
	}
	return nil
}

// ToRealtime converts the file into a realtime.Config.
func (c *Config) ToRealtime() (*realtime.Config, error) {
	if c.URL == "" {
		return nil, errors.New("BS103").
			WithDetail("url is required").
			WithSuggestion(`Add "url": "wss://your-server/ws" to ` + c.fileName())
	}

	rc := realtime.DefaultConfig().WithURL(c.URL)
	rc.TokenParam = c.Token.Param
	rc.EnableCompression = c.Compression
	if c.UserID != nil {
		rc.WithUserID(protocol.UserID(*c.UserID))
	}

	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"connectTimeout", c.ConnectTimeout, &rc.ConnectTimeout},
		{"writeTimeout", c.WriteTimeout, &rc.WriteTimeout},
		{"heartbeat", c.Heartbeat, &rc.HeartbeatInterval},
		{"reconnect.baseDelay", c.Reconnect.BaseDelay, &rc.ReconnectBaseDelay},
		{"reconnect.maxDelay", c.Reconnect.MaxDelay, &rc.ReconnectMaxDelay},
	}
	for _, d := range durations {
		v, err := c.duration(d.field, d.value)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}
	if c.Reconnect.MaxAttempts != nil {
		rc.MaxReconnectAttempts = *c.Reconnect.MaxAttempts
	}
	if c.Reconnect.Jitter != nil {
		rc.ReconnectJitter = *c.Reconnect.Jitter
	}

	if err := rc.Validate(); err != nil {
		return nil, errors.New("BS105").Wrap(err)
	}
	return rc, nil
}

// FlushInterval returns the parsed transcript flush interval.
func (c *Config) FlushInterval() (time.Duration, error) {
	return c.duration("transcript.flushInterval", c.Transcript.FlushInterval)
}

// TranscriptKinds returns the parsed transcript kind filter.
func (c *Config) TranscriptKinds() []protocol.Kind {
	var kinds []protocol.Kind
	for _, name := range c.Transcript.Kinds {
		if k, ok := protocol.ParseKind(name); ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// MetricsEnabled reports whether the ops server should run.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Listen != "" && c.Metrics.Listen != "off"
}

// TranscriptEnabled reports whether envelopes should be archived.
func (c *Config) TranscriptEnabled() bool {
	return c.Transcript.Dir != "" || c.Transcript.Bucket != ""
}

func (c *Config) duration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.New("BS104").
			WithDetail(fmt.Sprintf("%s: %q is not a duration", field, value)).
			WithSuggestion(`Use a value like "30s" or "1m"`).
			Wrap(err)
	}
	if d <= 0 {
		return 0, c.invalid(field, "must be positive")
	}
	return d, nil
}

func (c *Config) invalid(field, msg string) error {
	return errors.New("BS105").WithDetail(field + ": " + msg)
}

func (c *Config) fileName() string {
	if c.configPath == "" {
		return FileNames[0]
	}
	return filepath.Base(c.configPath)
}

// FindProjectRoot walks up from startDir to the first directory holding a
// project file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("BS101").
				WithDetail("No boardsync.json or boardsync.yaml found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// Exists reports whether dir holds a project file.
func Exists(dir string) bool {
	for _, name := range FileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// LoadFromWorkingDir loads the nearest project file at or above the
// working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return Load(root)
}
