package bridge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cryguy/fnbridge/internal/core"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/go-sourcemap/sourcemap"
)

// DefaultFilename names guest code in stack traces.
const DefaultFilename = "handler.js"

// shimFilename names the bridge shim in stack traces where the engine
// records script names.
const shimFilename = "bridge.js"

var (
	handlerNameRE = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)
	moduleRE      = regexp.MustCompile(`(?m)^\s*export\s`)
)

// Script is guest source ready to run in an engine.
type Script struct {
	Source   string // code that runs in the engine
	Original string // code as the user wrote it
	Filename string

	// positions maps Source back to Original when esbuild rewrote it.
	positions *sourcemap.Consumer
}

// origin maps a 1-based engine position in Source to the user's file and
// returns that line's text. Column 0 means unknown. An unmapped position
// yields line 0.
func (s *Script) origin(line, column int) (int, int, string) {
	if s.positions == nil {
		return line, column, sourceLine(s.Source, line)
	}
	if line < 1 {
		return 0, 0, ""
	}
	genColumn := column - 1
	if genColumn < 0 {
		genColumn = 0
	}
	_, _, l, c, ok := s.positions.Source(line, genColumn)
	if !ok || l < 1 {
		return 0, 0, ""
	}
	if column < 1 {
		c = -1
	}
	return l, c + 1, sourceLine(s.Original, l)
}

// ParseHandlerName accepts "name", "a.b" and "module:name" and returns the
// binding to resolve.
func ParseHandlerName(name string) (string, error) {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if !handlerNameRE.MatchString(name) {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidHandlerName, name)
	}
	return name, nil
}

// Prepare validates source with esbuild. Sources with export statements are
// rewritten into an IIFE that publishes their exports on a hidden global;
// TypeScript is stripped of types. Plain scripts run unmodified so their
// top-level bindings stay global.
func Prepare(source, filename, loader string) (*Script, error) {
	if strings.TrimSpace(source) == "" {
		return nil, core.NewError(core.KindLoad, core.ErrEmptySource)
	}
	if filename == "" {
		filename = DefaultFilename
	}

	opts := api.TransformOptions{
		Target:     api.ESNext,
		Sourcefile: filename,
	}
	switch loader {
	case "", "js":
		opts.Loader = api.LoaderJS
	case "ts":
		opts.Loader = api.LoaderTS
	default:
		return nil, core.NewError(core.KindLoad, fmt.Errorf("unsupported loader %q", loader))
	}

	module := moduleRE.MatchString(source)
	if module {
		opts.Format = api.FormatIIFE
		opts.GlobalName = "globalThis." + moduleGlobal
	}
	rewritten := module || opts.Loader == api.LoaderTS
	if rewritten {
		opts.Sourcemap = api.SourceMapExternal
	}

	result := api.Transform(source, opts)
	if len(result.Errors) > 0 {
		return nil, core.NewError(core.KindLoad, compileError(result.Errors[0]))
	}

	script := &Script{
		Source:   source,
		Original: source,
		Filename: filename,
	}
	if rewritten {
		script.Source = string(result.Code)
		positions, err := sourcemap.Parse(filename, result.Map)
		if err != nil {
			return nil, core.NewError(core.KindLoad, fmt.Errorf("reading source map: %w", err))
		}
		script.positions = positions
	}
	return script, nil
}

func compileError(msg api.Message) *core.CompileError {
	ce := &core.CompileError{Message: msg.Text}
	loc := msg.Location
	if loc == nil {
		return ce
	}
	ce.Line = loc.Line
	ce.Column = loc.Column + 1
	width := loc.Length
	if width < 1 {
		width = 1
	}
	ce.Snippet = loc.LineText + "\n" + strings.Repeat(" ", loc.Column) + strings.Repeat("^", width)
	return ce
}

// scriptLoadError converts an engine failure while running the top level.
func scriptLoadError(err error, script *Script) *core.Error {
	se, ok := err.(*core.ScriptError)
	if !ok {
		return core.NewError(core.KindLoad, fmt.Errorf("running %s: %w", script.Filename, err))
	}
	if se.Syntax {
		line, column, text := script.origin(se.Line, se.Column)
		ce := &core.CompileError{Line: line, Column: column, Message: se.Error()}
		if text != "" {
			if column < 1 {
				column = 1
			}
			ce.Snippet = text + "\n" + strings.Repeat(" ", column-1) + "^"
		}
		return core.NewError(core.KindLoad, ce)
	}
	e := core.NewError(core.KindLoad, fmt.Errorf("running %s: %w", script.Filename, se))
	e.Diagnostic = diagnose(se.Name, se.Message, se.Stack, se.Line, se.Column, script)
	return e
}
