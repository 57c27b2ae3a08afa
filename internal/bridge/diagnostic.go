package bridge

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cryguy/fnbridge/internal/core"
)

// frameRE matches the location suffix of a stack frame in both engines:
// "at f (handler.js:3:9)" on V8, "at f (handler.js:3)" on QuickJS.
var frameRE = regexp.MustCompile(`([^\s():]+):(\d+)(?::(\d+))?\)?$`)

// diagnose builds a diagnostic for an exception thrown by guest code.
// line and column are 1-based; zero means unknown and the stack is searched.
func diagnose(name, message, stack string, line, column int, script *Script) *core.Diagnostic {
	d := &core.Diagnostic{
		Name:    name,
		Message: message,
		Stack:   strings.TrimRight(stack, "\n"),
	}
	if line == 0 {
		line, column = locate(d.Stack, script.Filename)
	}
	line, column, src := script.origin(line, column)
	if src == "" {
		return d
	}
	d.Line = line
	d.SourceLine = src
	d.StartColumn, d.EndColumn = columnRange(src, column)
	return d
}

// locate finds the innermost frame in the guest file. When the engine does
// not record our file name, the innermost frame outside the shim is used.
func locate(stack, filename string) (line, column int) {
	var fallbackLine, fallbackCol int
	for _, l := range strings.Split(stack, "\n") {
		l = strings.TrimSpace(l)
		if !strings.HasPrefix(l, "at ") {
			continue
		}
		m := frameRE.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		ln, _ := strconv.Atoi(m[2])
		cn := 0
		if m[3] != "" {
			cn, _ = strconv.Atoi(m[3])
		}
		if m[1] == filename {
			return ln, cn
		}
		if fallbackLine == 0 && m[1] != shimFilename {
			fallbackLine, fallbackCol = ln, cn
		}
	}
	return fallbackLine, fallbackCol
}

func sourceLine(source string, line int) string {
	if line < 1 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}

// columnRange returns a 0-based half-open range. With a known column it
// covers the token starting there; otherwise the trimmed statement.
func columnRange(src string, column int) (int, int) {
	if column < 1 || column > len(src) {
		start := len(src) - len(strings.TrimLeft(src, " \t"))
		end := len(strings.TrimRight(src, " \t;"))
		if end <= start {
			return 0, 0
		}
		return start, end
	}
	start := column - 1
	end := start
	for end < len(src) && isTokenByte(src[end]) {
		end++
	}
	if end == start {
		end = start + 1
	}
	return start, end
}

func isTokenByte(c byte) bool {
	return c == '_' || c == '$' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
