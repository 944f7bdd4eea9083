package latex

import "strings"

// escapeTable lists LaTeX special characters with their literal-safe
// equivalents. Backslash comes first so that no later entry can be mistaken
// for author text.
var escapeTable = []string{
	`\`, `\textbackslash{}`,
	`_`, `\_`,
	`%`, `\%`,
	`&`, `\&`,
	`#`, `\#`,
	`$`, `\$`,
	`{`, `\{`,
	`}`, `\}`,
	`^`, `\textasciicircum{}`,
	`~`, `\textasciitilde{}`,
}

// Both replacers scan their input once and never rescan replaced output,
// so escape sequences inserted for one character are not touched by the
// entries that follow it.
var (
	escaper   = strings.NewReplacer(escapeTable...)
	unescaper = strings.NewReplacer(reversed(escapeTable)...)
)

// Escape replaces LaTeX special characters in s with their literal-safe
// equivalents. It is not idempotent: apply it exactly once per content run.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape. It is used for token arguments (image URLs,
// citation keys) that must reach LaTeX verbatim.
func Unescape(s string) string {
	return unescaper.Replace(s)
}

func reversed(pairs []string) []string {
	out := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, pairs[i+1], pairs[i])
	}
	return out
}
