package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Provenance records which summary document an analysis report was generated from.
type Provenance struct {
	Source  string
	Version int
	RunID   string
	Mode    string
}

const provenanceTag = "channeltool:analysis"

var provenancePattern = regexp.MustCompile(
	`^<!--\s*` + regexp.QuoteMeta(provenanceTag) + `\s+source="([^"]*)"\s+version=(\d+)(?:\s+run=(\S+?))?(?:\s+mode=(\S+?))?\s*-->`,
)

// Header renders the provenance as a single HTML comment line.
func (p Provenance) Header() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!-- %s source=%q version=%d", provenanceTag, p.Source, p.Version)
	if p.RunID != "" {
		fmt.Fprintf(&b, " run=%s", p.RunID)
	}
	if p.Mode != "" {
		fmt.Fprintf(&b, " mode=%s", p.Mode)
	}
	b.WriteString(" -->")
	return b.String()
}

// ParseProvenance reads the header from the first line of a report.
func ParseProvenance(text string) (Provenance, bool) {
	first, _, _ := strings.Cut(strings.TrimLeft(text, "\ufeff \t\r\n"), "\n")
	m := provenancePattern.FindStringSubmatch(strings.TrimSpace(first))
	if m == nil {
		return Provenance{}, false
	}
	version, err := strconv.Atoi(m[2])
	if err != nil {
		return Provenance{}, false
	}
	return Provenance{Source: m[1], Version: version, RunID: m[3], Mode: m[4]}, true
}

// StripProvenance removes the header line, if present, and returns the report body.
func StripProvenance(text string) string {
	trimmed := strings.TrimLeft(text, "\ufeff \t\r\n")
	first, rest, _ := strings.Cut(trimmed, "\n")
	if provenancePattern.MatchString(strings.TrimSpace(first)) {
		return rest
	}
	return text
}

// Matches reports whether the report was generated from the given summary version.
// Reports without a header never match.
func (p Provenance) Matches(source string, version int) bool {
	return p.Source == source && p.Version == version
}
