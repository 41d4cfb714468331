package core

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// registry is the process-wide module catalog, populated from init()
// functions via RegisterModule.
var registry = struct {
	sync.RWMutex
	byID map[string]ModuleInfo
}{byID: make(map[string]ModuleInfo)}

// RegisterModule adds a module's ModuleInfo to the global registry. It is
// meant to run from init() and panics on a malformed or duplicate
// registration, since either is a programming error.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("core: registering module with empty ID")
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registry.Lock()
	defer registry.Unlock()

	id := string(info.ID)
	if _, taken := registry.byID[id]; taken {
		panic(fmt.Sprintf("core: duplicate module registration: %s", id))
	}
	registry.byID[id] = info
}

// GetModule returns the ModuleInfo for the given ID, or false if not found.
func GetModule(id string) (ModuleInfo, bool) {
	registry.RLock()
	defer registry.RUnlock()
	info, ok := registry.byID[id]
	return info, ok
}

// GetModules returns every registered module, sorted by ID.
func GetModules() []ModuleInfo {
	return collect(func(string) bool { return true })
}

// GetModulesByNamespace returns the modules under a namespace prefix, sorted
// by ID. "provider" matches "provider.openai" but not "provider" itself.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	prefix := namespace + "."
	return collect(func(id string) bool { return strings.HasPrefix(id, prefix) })
}

func collect(keep func(id string) bool) []ModuleInfo {
	registry.RLock()
	defer registry.RUnlock()

	var out []ModuleInfo
	for id, info := range registry.byID {
		if keep(id) {
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	registry.Lock()
	defer registry.Unlock()
	registry.byID = make(map[string]ModuleInfo)
}
