package realtime

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing url", func(c *Config) { c.URL = "" }, "URL is required"},
		{"bad scheme", func(c *Config) { c.URL = "ftp://example.com" }, "unsupported URL scheme"},
		{"no host", func(c *Config) { c.URL = "ws:///path" }, "no host"},
		{"no token param", func(c *Config) { c.TokenParam = "" }, "TokenParam"},
		{"zero connect timeout", func(c *Config) { c.ConnectTimeout = 0 }, "ConnectTimeout"},
		{"zero heartbeat", func(c *Config) { c.HeartbeatInterval = 0 }, "HeartbeatInterval"},
		{"negative attempts", func(c *Config) { c.MaxReconnectAttempts = -1 }, "MaxReconnectAttempts"},
		{"max below base", func(c *Config) { c.ReconnectMaxDelay = time.Millisecond }, "ReconnectMaxDelay"},
		{"jitter too large", func(c *Config) { c.ReconnectJitter = 1 }, "ReconnectJitter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig().WithURL("wss://boards.example.com/ws")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestConfig_DialURL(t *testing.T) {
	tests := []struct {
		in, scheme string
	}{
		{"http://localhost:8080/ws", "ws"},
		{"https://boards.example.com/ws?v=2", "wss"},
		{"ws://localhost/ws", "ws"},
		{"wss://boards.example.com/ws", "wss"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig().WithURL(tt.in)
		got, err := cfg.dialURL("a b&c")
		if err != nil {
			t.Fatalf("dialURL(%q): %v", tt.in, err)
		}
		u, err := url.Parse(got)
		if err != nil {
			t.Fatalf("parse %q: %v", got, err)
		}
		if u.Scheme != tt.scheme {
			t.Errorf("%s: scheme = %q, want %q", tt.in, u.Scheme, tt.scheme)
		}
		if tok := u.Query().Get("token"); tok != "a b&c" {
			t.Errorf("%s: token = %q", tt.in, tok)
		}
	}
}

func TestConfig_CloneIsIndependent(t *testing.T) {
	cfg := DefaultConfig().WithURL("ws://localhost/ws").WithUserID(5)
	clone := cfg.Clone()
	*clone.UserID = 6
	clone.HeartbeatInterval = time.Second

	if *cfg.UserID != 5 || cfg.HeartbeatInterval != 30*time.Second {
		t.Fatalf("original mutated: %+v", cfg)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	if _, err := New(DefaultConfig()); err == nil {
		t.Fatal("New() with no URL succeeded")
	}
}

func TestState_String(t *testing.T) {
	want := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateReconnecting: "reconnecting",
		StateClosing:      "closing",
		State(99):         "unknown",
	}
	for s, name := range want {
		if got := s.String(); got != name {
			t.Errorf("State(%d).String() = %q, want %q", s, got, name)
		}
	}
}
