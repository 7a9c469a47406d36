package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} and ${VAR:-default}
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} and ${VAR:-default} references in s.
// Unset variables without a default expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := match[2 : len(match)-1]

		// ${VAR:-default}
		if idx := strings.Index(inner, ":-"); idx >= 0 {
			name := inner[:idx]
			def := inner[idx+2:]
			if val := os.Getenv(name); val != "" {
				return val
			}
			return def
		}

		return os.Getenv(inner)
	})
}
