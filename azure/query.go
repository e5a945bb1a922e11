package azure

import "strings"

// Filter narrows a work-item listing. Zero values mean "no filter".
type Filter struct {
	State string // exact match on [System.State]
	Title string // substring containment on [System.Title]
}

// BuildWiql composes the WIQL listing query. Filter values go through
// quoteLiteral, so a caller-supplied string cannot break out of its literal.
// Results are always ordered by last change, newest first.
func BuildWiql(f Filter) string {
	var b strings.Builder
	b.WriteString("SELECT [System.Id], [System.Title], [System.State] FROM WorkItems WHERE [System.TeamProject] = @project")
	if f.State != "" {
		b.WriteString(" AND [System.State] = ")
		b.WriteString(quoteLiteral(f.State))
	}
	if f.Title != "" {
		b.WriteString(" AND [System.Title] CONTAINS ")
		b.WriteString(quoteLiteral(f.Title))
	}
	b.WriteString(" ORDER BY [System.ChangedDate] DESC")
	return b.String()
}

// quoteLiteral wraps s as a WIQL string literal. WIQL escapes an embedded
// single quote by doubling it.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
