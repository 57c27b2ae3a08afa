//go:build !v8

package fnbridge

import (
	"github.com/cryguy/fnbridge/internal/core"
	"github.com/cryguy/fnbridge/internal/quickjs"
)

// Backend names the compiled-in engine.
const Backend = "quickjs"

var newEngine core.EngineFactory = quickjs.NewEngine
