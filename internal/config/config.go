// Package config holds the runtime configuration, its defaults and the TOML
// file loader.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/1ureka/genpkt/internal/stream"
	"github.com/1ureka/genpkt/internal/transport"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Role represents the user's chosen mode of operation.
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
	RoleDump   Role = "dump"
	RolePack   Role = "pack"
)

// Kind names a transport.
type Kind string

const (
	KindTCP    Kind = "tcp"
	KindWS     Kind = "ws"
	KindWebRTC Kind = "webrtc"
)

// Config stores every runtime parameter. Values come from Default, then a
// TOML file, then CLI flags.
type Config struct {
	Role      Role
	Transport Kind

	// Addr is the listen address (host) or the dial address / URL (client).
	// For the WebRTC transport it is the signaling address.
	Addr string

	SizeBits    int    // width of the size field: 8, 16 or 32
	TypeBits    int    // width of the type field: 8, 16 or 32
	MaxPayload  uint64 // inbound sanity bound; 0 means the size field's maximum
	MessageType uint32 // type tag the client and pack modes send

	ICEServers      []string
	IncludeLoopback bool

	File  string // dump/pack: packet file path
	Debug bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Transport:   KindTCP,
		Addr:        "127.0.0.1:9000",
		SizeBits:    16,
		TypeBits:    8,
		MessageType: 1,
		ICEServers:  slices.Clone(transport.DefaultPeerConfig().ICEServers),
	}
}

// fileConfig is the config.toml key mapping.
type fileConfig struct {
	Role            string   `toml:"role"`
	Transport       string   `toml:"transport"`
	Addr            string   `toml:"addr"`
	SizeBits        int      `toml:"size_bits"`
	TypeBits        int      `toml:"type_bits"`
	MaxPayload      uint64   `toml:"max_payload"`
	MessageType     uint32   `toml:"message_type"`
	ICEServers      []string `toml:"ice_servers"`
	IncludeLoopback bool     `toml:"include_loopback"`
	File            string   `toml:"file"`
	Debug           bool     `toml:"debug"`
}

// Load reads a TOML file and overlays the keys it defines on Default. The
// result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("role") {
		cfg.Role = Role(strings.TrimSpace(raw.Role))
	}
	if meta.IsDefined("transport") {
		cfg.Transport = Kind(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("size_bits") {
		cfg.SizeBits = raw.SizeBits
	}
	if meta.IsDefined("type_bits") {
		cfg.TypeBits = raw.TypeBits
	}
	if meta.IsDefined("max_payload") {
		cfg.MaxPayload = raw.MaxPayload
	}
	if meta.IsDefined("message_type") {
		cfg.MessageType = raw.MessageType
	}
	if meta.IsDefined("ice_servers") {
		cfg.ICEServers = raw.ICEServers
	}
	if meta.IsDefined("include_loopback") {
		cfg.IncludeLoopback = raw.IncludeLoopback
	}
	if meta.IsDefined("file") {
		cfg.File = strings.TrimSpace(raw.File)
	}
	if meta.IsDefined("debug") {
		cfg.Debug = raw.Debug
	}

	return cfg, nil
}

// Validate checks that the configuration is usable for its role.
func (c Config) Validate() error {
	switch c.Role {
	case RoleHost, RoleClient:
		switch c.Transport {
		case KindTCP, KindWS, KindWebRTC:
		default:
			return fmt.Errorf("%w: unknown transport %q (expected tcp, ws or webrtc)", ErrInvalid, c.Transport)
		}
		if c.Addr == "" {
			return fmt.Errorf("%w: missing address for %s role", ErrInvalid, c.Role)
		}
	case RoleDump, RolePack:
		if c.File == "" {
			return fmt.Errorf("%w: missing file for %s role", ErrInvalid, c.Role)
		}
	default:
		return fmt.Errorf("%w: unknown role %q (expected host, client, dump or pack)", ErrInvalid, c.Role)
	}

	f, err := c.Framer()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.MessageType > f.MaxType() {
		return fmt.Errorf("%w: message type %d does not fit %d-bit type field", ErrInvalid, c.MessageType, c.TypeBits)
	}
	return nil
}

// Framer returns the framer for the configured header layout.
func (c Config) Framer() (stream.Framer, error) {
	return stream.NewFramer(c.SizeBits, c.TypeBits)
}

// StreamOptions returns the decoder options implied by the configuration.
func (c Config) StreamOptions() []stream.Option {
	if c.MaxPayload == 0 {
		return nil
	}
	return []stream.Option{stream.WithMaxPayload(c.MaxPayload)}
}

// PeerConfig returns the WebRTC settings.
func (c Config) PeerConfig() transport.PeerConfig {
	return transport.PeerConfig{
		ICEServers:      c.ICEServers,
		IncludeLoopback: c.IncludeLoopback,
	}
}
