package config

import "time"

// Transport names accepted by --transport.
const (
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// Config holds the settings of one mcp-remote run.
type Config struct {
	// ServerURL and Headers only come from the command line.
	ServerURL string `yaml:"-"`
	Headers   string `yaml:"headers,omitempty"`

	CallbackPort int    `yaml:"callbackPort,omitempty"`
	CallbackPath string `yaml:"callbackPath,omitempty"`
	// PortExplicit is set when the port was given on the command line.
	PortExplicit bool `yaml:"-"`

	Transport  string   `yaml:"transport,omitempty"`
	Scopes     []string `yaml:"scopes,omitempty"`
	ClientName string   `yaml:"clientName,omitempty"`

	ConfigDir string `yaml:"-"`
	Clean     bool   `yaml:"-"`
	Debug     bool   `yaml:"debug,omitempty"`

	LongPollTimeout time.Duration `yaml:"longPollTimeout,omitempty"`
}
