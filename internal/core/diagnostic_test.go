package core

import "testing"

func TestDiagnosticString(t *testing.T) {
	tests := []struct {
		name string
		d    Diagnostic
		want string
	}{
		{
			name: "full",
			d: Diagnostic{
				Name:        "Error",
				Message:     "boom",
				Line:        2,
				StartColumn: 8,
				EndColumn:   13,
				SourceLine:  "  throw new Error('boom');",
				Stack:       "Error: boom\n    at handler (handler.js:2:9)",
			},
			want: "2: Error: boom\n  throw new Error('boom');\n        ^^^^^\nError: boom\n    at handler (handler.js:2:9)",
		},
		{
			name: "message only",
			d:    Diagnostic{Message: "oops"},
			want: "oops",
		},
		{
			name: "tabs preserved",
			d: Diagnostic{
				Name:        "TypeError",
				Message:     "x is undefined",
				Line:        1,
				StartColumn: 2,
				EndColumn:   3,
				SourceLine:  "\t\tx.y",
			},
			want: "1: TypeError: x is undefined\n\t\tx.y\n\t\t^",
		},
		{
			name: "no column range",
			d:    Diagnostic{Name: "Error", Message: "bad", Line: 4, SourceLine: "foo()"},
			want: "4: Error: bad\nfoo()",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.String(); got != tt.want {
				t.Fatalf("String() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}
