package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

func printJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	_, _ = fmt.Fprintln(w, string(b))
}

// printText writes s followed by exactly one newline; empty s prints nothing.
func printText(w io.Writer, s string) {
	if s == "" {
		return
	}
	_, _ = fmt.Fprintln(w, strings.TrimRight(s, "\n"))
}
