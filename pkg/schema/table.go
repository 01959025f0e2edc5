package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FormatTable renders names and their types as two aligned rows:
//
//	Names: | runid | energy |
//	Types: | U12   | f8     |
//
// Each column is padded to the wider of its name and type. Extra entries in
// the longer slice are ignored.
func FormatTable(names, types []string) string {
	n := len(names)
	if len(types) < n {
		n = len(types)
	}

	widths := make([]int, n)
	for i := 0; i < n; i++ {
		widths[i] = max(utf8.RuneCountInString(names[i]), utf8.RuneCountInString(types[i]))
	}

	var b strings.Builder
	b.WriteString("Names: | ")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%-*s | ", widths[i], names[i])
	}
	b.WriteString("\nTypes: | ")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%-*s | ", widths[i], types[i])
	}
	b.WriteString("\n")
	return b.String()
}
