//go:build v8

package fnbridge

import (
	"github.com/cryguy/fnbridge/internal/core"
	"github.com/cryguy/fnbridge/internal/v8engine"
)

// Backend names the compiled-in engine.
const Backend = "v8"

var newEngine core.EngineFactory = v8engine.NewEngine
