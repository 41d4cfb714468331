// Package openai implements the provider.openai module over the OpenAI
// Chat Completions API, including multimodal content and model listing.
package openai

import (
	"errors"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/calmahq/calma/internal/core"
	"github.com/calmahq/calma/internal/provider"
	"github.com/calmahq/calma/internal/security"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Provider    = (*Provider)(nil)
	_ provider.ModelLister = (*Provider)(nil)
	_ core.Module          = (*Provider)(nil)
	_ core.Configurable    = (*Provider)(nil)
	_ core.Provisioner     = (*Provider)(nil)
	_ core.Validator       = (*Provider)(nil)
)

// Provider implements the OpenAI Chat Completions API as a provider module.
type Provider struct {
	config Config
	logger *slog.Logger
	client *http.Client
	vision map[string]bool
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger
	p.config.defaults()

	p.client = &http.Client{
		Timeout: p.config.parsedTimeout(),
	}

	p.vision = make(map[string]bool, len(knownVisionModels)+len(p.config.VisionModels))
	for m := range knownVisionModels {
		p.vision[m] = true
	}
	for _, m := range p.config.VisionModels {
		p.vision[m] = true
	}

	// Keep the configured key out of log output.
	if svc, ok := ctx.Service("security.redactor"); ok {
		if r, ok := svc.(*security.Redactor); ok {
			r.AddLiteral(p.config.APIKey)
		}
	}

	ctx.RegisterService("provider.openai", p)

	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if p.config.APIKey == "" && p.config.ProxyBaseURL == "" {
		return errors.New("provider.openai: api_key or proxy_base_url is required")
	}
	if p.config.Model == "" {
		return errors.New("provider.openai: model is required")
	}
	return p.config.validateTimeouts()
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "openai" }

// DefaultModel implements provider.Provider.
func (p *Provider) DefaultModel() string { return p.config.Model }

// SupportsVision implements provider.Provider.
func (p *Provider) SupportsVision(model string) bool { return p.vision[model] }
