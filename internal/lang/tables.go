package lang

import (
	"sort"
	"strings"
)

// declTabler is implemented by the policies in this package. It exposes the
// declaration tables that tokens.Grammar does not carry.
type declTabler interface {
	declTables() map[string]string
}

// DeclTables returns the language's declaration-site, declarator and type
// tables in a stable textual form. Two policies that decide declarations
// and types differently never return equal maps.
func (l *Language) DeclTables() map[string]string {
	t, ok := l.Policy.(declTabler)
	if !ok {
		return nil
	}
	return t.declTables()
}

func kindList(m map[string]bool) string {
	kinds := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			kinds = append(kinds, k)
		}
	}
	sort.Strings(kinds)
	return strings.Join(kinds, ",")
}

func siteList(m map[string]declSite) string {
	entries := make([]string, 0, len(m))
	for kind, s := range m {
		entries = append(entries, kind+"("+strings.Join(s.fields, "|")+")")
	}
	sort.Strings(entries)
	return strings.Join(entries, ",")
}

func (p *cPolicy) declTables() map[string]string {
	return map[string]string{
		"names":       kindList(p.nameKinds),
		"sites":       siteList(p.sites),
		"declarators": kindList(p.declarators),
		"holders":     kindList(p.holders),
		"specifiers":  kindList(cTypeSpecifiers),
	}
}

func (javaPolicy) declTables() map[string]string {
	return map[string]string{
		"names":   kindList(javaNameKinds),
		"sites":   siteList(javaDeclSites),
		"holders": kindList(javaTypeHolders),
		"catch":   kindList(javaCatchTypes),
	}
}

func (csharpPolicy) declTables() map[string]string {
	return map[string]string{
		"names":   kindList(csharpNameKinds),
		"sites":   siteList(csharpDeclSites),
		"holders": kindList(csharpTypeHolders),
	}
}
