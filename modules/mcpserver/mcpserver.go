// Package mcpserver exposes the pipeline as an MCP server over stdio, so MCP
// hosts can drive a conversation with the same safety handling as the HTTP
// gateway.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/calmahq/calma/internal/core"
	"github.com/calmahq/calma/internal/pipeline"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Config holds the MCP server settings.
type Config struct {
	// Name is the server name advertised during the MCP handshake.
	Name string `yaml:"name"`

	// Version is the server version advertised during the MCP handshake.
	Version string `yaml:"version"`
}

func (c *Config) defaults() {
	if c.Name == "" {
		c.Name = "calma"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
}

// Module is the MCP stdio server module. It is a leaf module, enabled only
// when present in the configuration.
type Module struct {
	config Config
	appCtx *core.AppContext
	logger *slog.Logger

	pipeline *pipeline.Pipeline
	cancel   context.CancelFunc
	done     chan struct{}
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "mcpserver",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("mcpserver: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.config.defaults()
	return nil
}

// Start implements core.Starter. It resolves the pipeline from the service
// registry and serves MCP over stdio until Stop cancels the listener.
func (m *Module) Start() error {
	svc, ok := m.appCtx.Service("pipeline")
	if !ok {
		return errors.New("mcpserver: pipeline service not registered")
	}
	p, ok := svc.(*pipeline.Pipeline)
	if !ok {
		return errors.New("mcpserver: pipeline service has unexpected type")
	}
	m.pipeline = p

	s := server.NewMCPServer(
		m.config.Name,
		m.config.Version,
		server.WithToolCapabilities(true),
	)
	registerTools(s, m.pipeline)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	stdio := server.NewStdioServer(s)
	go func() {
		defer close(m.done)
		m.logger.Info("mcp server listening on stdio", "name", m.config.Name)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("mcp server error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()

	select {
	case <-m.done:
	case <-ctx.Done():
	}
	return nil
}
