// Package core provides the module system foundation for calma.
//
// Every pluggable piece of the application (provider clients, stores, the
// pipeline, the gateway) is a Module registered at init time and assembled
// from configuration at startup. The lifecycle order is:
//
//	New() → Configure() → Provision() → Validate() → Start() → Stop()
package core

// ModuleID uniquely identifies a module, namespaced by dots
// (e.g. "provider.openai", "store.sqlite").
type ModuleID string

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface every module implements.
// Optional behavior is expressed through the lifecycle interfaces
// (Configurable, Provisioner, Validator, Starter, Stopper).
type Module interface {
	ModuleInfo() ModuleInfo
}
