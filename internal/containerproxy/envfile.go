package containerproxy

import "strings"

// BuildEnvFile renders a POSIX shell-sourceable env file for the Apple
// container backend, where passing secrets via `-e` is unreliable.
// Grounded on spec §9's design note: the file opens with a shebang and
// emits one `export NAME='value'` line per entry, with single quotes
// in values escaped by closing the quote, emitting an escaped quote,
// and reopening it (`' -> '\''`).
func BuildEnvFile(env map[string]string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for name, value := range env {
		b.WriteString("export ")
		b.WriteString(name)
		b.WriteString("='")
		b.WriteString(escapeSingleQuotes(value))
		b.WriteString("'\n")
	}
	return b.String()
}

// escapeSingleQuotes implements the ' -> '\'' substitution needed to
// safely embed an arbitrary value inside single quotes in a POSIX
// shell script.
func escapeSingleQuotes(value string) string {
	return strings.ReplaceAll(value, "'", `'\''`)
}
