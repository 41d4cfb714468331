package main

// Register all built-in modules.
import (
	_ "github.com/calmahq/calma/internal/gateway"
	_ "github.com/calmahq/calma/internal/observability"
	_ "github.com/calmahq/calma/internal/pipeline"
	_ "github.com/calmahq/calma/modules/mcpserver"
	_ "github.com/calmahq/calma/modules/provider/anthropic"
	_ "github.com/calmahq/calma/modules/provider/openai"
	_ "github.com/calmahq/calma/modules/provider/openrouter"
	_ "github.com/calmahq/calma/modules/store/sqlite"
)
