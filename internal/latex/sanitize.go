package latex

import "regexp"

var (
	bibBackendPattern  = regexp.MustCompile(`\\usepackage\s*\[\s*backend\s*=\s*[^\]]*\]\s*\{\s*biblatex\s*\}[ \t]*\n?`)
	bibResourcePattern = regexp.MustCompile(`\\addbibresource\s*\{[^}]*\}[ \t]*\n?`)
)

// Sanitize removes the biblatex backend and bibliography resource
// declarations, which the converter does not understand. Citations are
// resolved by the converter's own citation processing instead.
func Sanitize(source string) string {
	source = bibBackendPattern.ReplaceAllString(source, "")
	return bibResourcePattern.ReplaceAllString(source, "")
}
