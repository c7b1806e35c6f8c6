package secrets

// Rule is one detection pattern. Keywords, when present, gate the rule: it
// only runs if one of them appears (case-insensitive) in the input.
type Rule struct {
	ID       string   `koanf:"id"`
	Pattern  string   `koanf:"pattern"`
	Keywords []string `koanf:"keywords"`
}

// DefaultRules covers the provider keys and generic credential shapes most
// likely to be pasted into a research query or project context.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "anthropic-api-key", Pattern: `sk-ant-[A-Za-z0-9_\-]{20,}`},
		{ID: "openai-api-key", Pattern: `sk-(?:proj-)?[A-Za-z0-9]{32,}`},
		{ID: "aws-access-key-id", Pattern: `(?:AKIA|ASIA|AGPA|AROA)[A-Z0-9]{16}`},
		{
			ID:       "aws-secret-access-key",
			Pattern:  `(?i)aws_secret_access_key\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`,
			Keywords: []string{"aws"},
		},
		{ID: "github-token", Pattern: `gh[pousr]_[A-Za-z0-9]{36}`},
		{ID: "slack-token", Pattern: `xox[abposr]-[A-Za-z0-9-]{10,}`},
		{ID: "google-api-key", Pattern: `AIza[0-9A-Za-z_\-]{35}`},
		{ID: "private-key", Pattern: `-----BEGIN (?:RSA |EC |OPENSSH |PGP )?PRIVATE KEY-----`},
		{ID: "jwt", Pattern: `eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`},
		{
			ID:       "bearer-token",
			Pattern:  `(?i)bearer\s+[A-Za-z0-9_\-.=]{20,}`,
			Keywords: []string{"bearer"},
		},
		{
			ID:       "generic-api-key",
			Pattern:  `(?i)(?:api[_-]?key|secret|password)\s*[:=]\s*['"]?[^\s'"]{12,}['"]?`,
			Keywords: []string{"key", "secret", "password"},
		},
		{
			ID:       "database-url",
			Pattern:  `(?i)(?:postgres|postgresql|mysql|mongodb(?:\+srv)?|redis)://[^:\s]+:[^@\s]+@[^\s]+`,
			Keywords: []string{"://"},
		},
	}
}
