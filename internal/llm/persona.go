package llm

import (
	"os"
	"regexp"
	"strings"
)

const personaFallback = "You are a helpful assistant representing Eric Bell."

var companyLinePattern = regexp.MustCompile(`(?m)^\s*(?:Company|Employer):\s*(.+)$`)

// PersonaSource loads the persona instructions from disk. Load re-reads
// the file on every call so the persona can be swapped without a restart;
// company names are extracted once at construction.
type PersonaSource struct {
	path         string
	companyNames []string
}

func NewPersonaSource(path string) *PersonaSource {
	p := &PersonaSource{path: path}
	p.companyNames = extractCompanyNames(p.Load())
	return p
}

func (p *PersonaSource) Load() string {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return personaFallback
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return personaFallback
	}
	return text
}

func (p *PersonaSource) CompanyNames() []string { return p.companyNames }

func extractCompanyNames(persona string) []string {
	matches := companyLinePattern.FindAllStringSubmatch(persona, -1)
	seen := make(map[string]bool)
	var names []string
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
