package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
role = "client"
transport = "ws"
addr = " ws://127.0.0.1:8080/frames "
size_bits = 32
type_bits = 16
max_payload = 1048576
message_type = 513
include_loopback = true
debug = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Role != RoleClient {
		t.Fatalf("unexpected role: %q", cfg.Role)
	}
	if cfg.Transport != KindWS {
		t.Fatalf("unexpected transport: %q", cfg.Transport)
	}
	if cfg.Addr != "ws://127.0.0.1:8080/frames" {
		t.Fatalf("addr not trimmed: %q", cfg.Addr)
	}
	if cfg.SizeBits != 32 || cfg.TypeBits != 16 {
		t.Fatalf("unexpected widths: %d/%d", cfg.SizeBits, cfg.TypeBits)
	}
	if cfg.MaxPayload != 1<<20 || cfg.MessageType != 513 {
		t.Fatalf("unexpected limits: %d/%d", cfg.MaxPayload, cfg.MessageType)
	}
	if !cfg.IncludeLoopback || !cfg.Debug {
		t.Fatal("expected include_loopback and debug to be set")
	}
	if !slices.Equal(cfg.ICEServers, Default().ICEServers) {
		t.Fatalf("ice_servers should keep the default, got %v", cfg.ICEServers)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadEmptyICEServers(t *testing.T) {
	cfg, err := Load(writeConfig(t, `ice_servers = []`))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.ICEServers) != 0 {
		t.Fatalf("expected no ICE servers, got %v", cfg.ICEServers)
	}
	if cfg.SizeBits != 16 || cfg.TypeBits != 8 {
		t.Fatal("unset keys should keep their defaults")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `role = `},
		{"wrong type", `size_bits = "sixteen"`},
		{"unknown key", `sizebits = 16`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Role = RoleHost

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default host", func(c *Config) {}, true},
		{"webrtc client", func(c *Config) { c.Role = RoleClient; c.Transport = KindWebRTC }, true},
		{"dump with file", func(c *Config) { c.Role = RoleDump; c.File = "frames.bin"; c.Addr = "" }, true},
		{"missing role", func(c *Config) { c.Role = "" }, false},
		{"unknown role", func(c *Config) { c.Role = "relay" }, false},
		{"unknown transport", func(c *Config) { c.Transport = "udp" }, false},
		{"missing addr", func(c *Config) { c.Addr = "" }, false},
		{"pack without file", func(c *Config) { c.Role = RolePack }, false},
		{"size bits 24", func(c *Config) { c.SizeBits = 24 }, false},
		{"type bits 64", func(c *Config) { c.TypeBits = 64 }, false},
		{"type fits", func(c *Config) { c.MessageType = 255 }, true},
		{"type too wide", func(c *Config) { c.MessageType = 256 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestDerivedSettings(t *testing.T) {
	cfg := Default()

	f, err := cfg.Framer()
	if err != nil {
		t.Fatal(err)
	}
	if f.SizeBits() != 16 || f.TypeBits() != 8 {
		t.Fatalf("framer widths %d/%d", f.SizeBits(), f.TypeBits())
	}

	if opts := cfg.StreamOptions(); opts != nil {
		t.Fatalf("expected no options without a max payload, got %d", len(opts))
	}

	cfg.MaxPayload = 4
	dec := stream.NewDecoder(f, cfg.StreamOptions()...)
	if _, err := dec.Feed([]byte{0x00, 0x05, 0x01}); !errors.Is(err, stream.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}

	cfg.IncludeLoopback = true
	pc := cfg.PeerConfig()
	if !pc.IncludeLoopback || !slices.Equal(pc.ICEServers, cfg.ICEServers) {
		t.Fatalf("unexpected peer config %+v", pc)
	}
}

func TestDefaultICEServers(t *testing.T) {
	want := transport.DefaultPeerConfig().ICEServers
	cfg := Default()
	if len(want) == 0 || !slices.Equal(cfg.ICEServers, want) {
		t.Fatalf("default ICE servers = %v, want %v", cfg.ICEServers, want)
	}

	cfg.ICEServers[0] = "stun:example.invalid:3478"
	if slices.Equal(transport.DefaultPeerConfig().ICEServers, cfg.ICEServers) {
		t.Fatal("editing the config changed the transport defaults")
	}
}
