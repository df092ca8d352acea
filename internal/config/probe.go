package config

import (
	"fmt"
	"os"
	"strings"
)

// Default probe values (production)
const (
	DefaultServerURL = "ws://localhost:8080/ws"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
)

// ProbeConfig holds the settings of the end-to-end probe client
type ProbeConfig struct {
	// ServerURL is the websocket endpoint of the signaling server
	ServerURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// ProbeOptions for loading the probe config with CLI flag overrides
type ProbeOptions struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// LoadProbe resolves CLI flag > env > default for every probe setting.
func LoadProbe(opts ProbeOptions) (*ProbeConfig, error) {
	cfg := &ProbeConfig{
		ServerURL:  firstNonEmpty(opts.ServerURL, os.Getenv("WARPMATCH_URL"), DefaultServerURL),
		STUNServer: firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer: firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:   firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:   firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
	}

	if !strings.HasPrefix(cfg.ServerURL, "ws://") && !strings.HasPrefix(cfg.ServerURL, "wss://") {
		return nil, fmt.Errorf("server URL must start with ws:// or wss://, got %q", cfg.ServerURL)
	}
	return cfg, nil
}

// GetSTUNServers returns STUN server URLs; "none" disables STUN
func (c *ProbeConfig) GetSTUNServers() []string {
	if c.STUNServer == "" || c.STUNServer == "none" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *ProbeConfig) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *ProbeConfig) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
