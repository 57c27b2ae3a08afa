package core

import (
	"strconv"
	"strings"
)

// Diagnostic describes a guest exception. Line is 1-based; the column range
// is 0-based and half open. Zero Line means the location is unknown.
type Diagnostic struct {
	Name        string
	Message     string
	Line        int
	StartColumn int
	EndColumn   int
	SourceLine  string
	Stack       string
}

// Headline is the exception name and message.
func (d *Diagnostic) Headline() string {
	if d.Name == "" {
		return d.Message
	}
	if d.Message == "" {
		return d.Name
	}
	return d.Name + ": " + d.Message
}

// String renders
//
//	<line>: <name>: <message>
//	<source line>
//	    ^^^^
//	<stack>
func (d *Diagnostic) String() string {
	var b strings.Builder
	if d.Line > 0 {
		b.WriteString(strconv.Itoa(d.Line))
		b.WriteString(": ")
	}
	b.WriteString(d.Headline())
	if d.SourceLine != "" {
		b.WriteByte('\n')
		b.WriteString(d.SourceLine)
		if marker := d.marker(); marker != "" {
			b.WriteByte('\n')
			b.WriteString(marker)
		}
	}
	if d.Stack != "" {
		b.WriteByte('\n')
		b.WriteString(d.Stack)
	}
	return b.String()
}

// marker keeps tabs from the source line so the carets line up.
func (d *Diagnostic) marker() string {
	if d.EndColumn <= d.StartColumn || d.StartColumn < 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < d.StartColumn; i++ {
		if i < len(d.SourceLine) && d.SourceLine[i] == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteString(strings.Repeat("^", d.EndColumn-d.StartColumn))
	return b.String()
}
