package observability

import (
	"context"
	"log/slog"

	"github.com/calmahq/calma/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Observability{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Observability)(nil)
	_ core.Configurable = (*Observability)(nil)
	_ core.Provisioner  = (*Observability)(nil)
	_ core.Stopper      = (*Observability)(nil)
)

// Config holds observability module settings.
type Config struct {
	// Namespace prefixes all metric names. Defaults to "calma".
	Namespace string `yaml:"namespace"`

	Tracing TracingConfig `yaml:"tracing"`
}

func (c *Config) defaults() {
	if c.Namespace == "" {
		c.Namespace = "calma"
	}
}

// Observability is the module that owns the metrics registry and the tracer
// provider. It loads first so every other module can pick up the "metrics"
// service during its own provisioning.
type Observability struct {
	config  Config
	metrics *Metrics
	logger  *slog.Logger

	shutdownTracing func(context.Context) error
}

// ModuleInfo implements core.Module.
func (o *Observability) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "observability",
		New: func() core.Module { return &Observability{} },
	}
}

// Configure implements core.Configurable.
func (o *Observability) Configure(node *yaml.Node) error {
	if err := node.Decode(&o.config); err != nil {
		return err
	}
	o.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (o *Observability) Provision(ctx *core.AppContext) error {
	o.logger = ctx.Logger
	o.config.defaults()

	o.metrics = NewMetrics(o.config.Namespace)
	ctx.RegisterService("metrics", o.metrics)

	if o.config.Tracing.Enabled {
		shutdown, err := SetupTracing(context.Background(), o.config.Tracing)
		if err != nil {
			return err
		}
		o.shutdownTracing = shutdown
		o.logger.Info("tracing enabled", "endpoint", o.config.Tracing.Endpoint)
	}

	return nil
}

// Stop implements core.Stopper.
func (o *Observability) Stop(ctx context.Context) error {
	if o.shutdownTracing != nil {
		return o.shutdownTracing(ctx)
	}
	return nil
}
