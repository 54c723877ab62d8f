// Genpkt — CLI entry point.
//
// This tool exchanges length-prefixed, type-tagged packets over TCP,
// WebSocket or a WebRTC DataChannel, and reads and writes packet files. The
// header layout (size and type field widths) is chosen at startup.
//
// It can be launched interactively (no -role flag) or non-interactively via
// CLI flags. A TOML file given with -config supplies defaults that explicit
// flags override.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/genpkt/internal/app"
	"github.com/1ureka/genpkt/internal/config"
	"github.com/1ureka/genpkt/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	configPath := flag.String("config", "", "Path to a TOML config file")
	role := flag.String("role", "", "Role: host, client, dump or pack")
	kind := flag.String("transport", "", "Transport: tcp, ws or webrtc")
	addr := flag.String("addr", "", "Listen address (host) or dial address / URL (client)")
	sizeBits := flag.Int("size-bits", 0, "Size field width: 8, 16 or 32")
	typeBits := flag.Int("type-bits", 0, "Type field width: 8, 16 or 32")
	maxPayload := flag.Uint64("max-payload", 0, "Reject inbound frames announcing more payload bytes than this")
	msgType := flag.Uint("type", 0, "Frame type sent by client and pack (1 text, 2 ping)")
	file := flag.String("file", "", "Packet file (dump and pack)")
	loopback := flag.Bool("loopback", false, "Gather loopback ICE candidates (webrtc)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Explicit flags override file values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "role":
			cfg.Role = config.Role(*role)
		case "transport":
			cfg.Transport = config.Kind(*kind)
		case "addr":
			cfg.Addr = *addr
		case "size-bits":
			cfg.SizeBits = *sizeBits
		case "type-bits":
			cfg.TypeBits = *typeBits
		case "max-payload":
			cfg.MaxPayload = *maxPayload
		case "type":
			cfg.MessageType = uint32(*msgType)
		case "file":
			cfg.File = *file
		case "loopback":
			cfg.IncludeLoopback = *loopback
		case "debug":
			cfg.Debug = *debugMode
		}
	})

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Genpkt — v%s", version))
	pterm.Println()

	if cfg.Role == "" {
		// No role from flags or file → interactive mode.
		askConfig(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

// run executes the configured role.
func run(ctx context.Context, cfg config.Config) error {
	f, err := cfg.Framer()
	if err != nil {
		return err
	}
	util.LogDebug("header layout: %d-bit size, %d-bit type (%d bytes)", f.SizeBits(), f.TypeBits(), f.HeaderLen())

	switch cfg.Role {
	case config.RoleHost:
		util.StartStatsReporter(ctx)
		if err := app.Serve(ctx, cfg, f); err != nil {
			return err
		}
		util.LogInfo("successfully closed host")

	case config.RoleClient:
		addr, err := normalizeAddr(cfg.Transport, cfg.Addr)
		if err != nil {
			return err
		}
		cfg.Addr = addr

		tr, err := app.Dial(ctx, cfg, f)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer tr.Close()

		util.StartStatsReporter(ctx)
		util.LogSuccess("link established, reading lines from stdin")
		if err := app.RunClient(ctx, tr, os.Stdin, cfg.MessageType); err != nil {
			return err
		}

	case config.RoleDump:
		n, err := app.Dump(cfg.File, f, os.Stdout, cfg.StreamOptions()...)
		if err != nil {
			return err
		}
		util.LogDebug("dumped %d packets", n)

	case config.RolePack:
		n, err := app.Pack(cfg.File, f, cfg.MessageType, os.Stdin)
		if err != nil {
			return err
		}
		util.LogSuccess("wrote %d packets to %s", n, cfg.File)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// normalizeAddr validates a client address. WS and WebRTC signaling take a
// URL; a bare host:port is completed with the default path.
func normalizeAddr(kind config.Kind, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if kind == config.KindTCP {
		return raw, nil
	}

	path := "/frames"
	if kind == config.KindWebRTC {
		path = "/ws"
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw + path
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid WebSocket URL scheme %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = path
	}
	return u.String(), nil
}

// askConfig fills the role-specific fields through interactive prompts.
func askConfig(cfg *config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{
			"host   — Serve frame links",
			"client — Send lines as frames",
			"dump   — Print a packet file",
			"pack   — Write lines to a packet file",
		}).
		WithDefaultText("Select your role").
		Show()
	cfg.Role = config.Role(strings.TrimSpace(strings.SplitN(role, "—", 2)[0]))
	pterm.Println()

	switch cfg.Role {
	case config.RoleHost, config.RoleClient:
		kind, _ := pterm.DefaultInteractiveSelect.
			WithOptions([]string{string(config.KindTCP), string(config.KindWS), string(config.KindWebRTC)}).
			WithDefaultText("Select the transport").
			Show()
		cfg.Transport = config.Kind(kind)
		pterm.Println()
		cfg.Addr = askText("Address", cfg.Addr)
	default:
		cfg.File = askText("Packet file", cfg.File)
	}

	cfg.SizeBits = askBits("Size field width", cfg.SizeBits)
	cfg.TypeBits = askBits("Type field width", cfg.TypeBits)
}

// askText prompts for a non-empty value, offering def.
func askText(prompt, def string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			WithDefaultValue(def).
			Show()

		if v := strings.TrimSpace(raw); v != "" {
			pterm.Println()
			return v
		}

		util.LogWarning("a value is required")
		pterm.Println()
	}
}

// askBits prompts the user for a field width until a valid one is entered.
func askBits(prompt string, def int) int {
	for {
		raw := askText(prompt+" (8, 16 or 32)", strconv.Itoa(def))

		bits, err := strconv.Atoi(raw)
		if err == nil && (bits == 8 || bits == 16 || bits == 32) {
			return bits
		}

		util.LogWarning("invalid width: must be 8, 16 or 32")
		pterm.Println()
	}
}
