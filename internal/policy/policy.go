package policy

import (
	"strings"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
)

// CheckCommandAllowed reports whether commandPath may run under allowlist.
// An entry allows its own path and every subcommand below it, so "wallet"
// allows "wallet balance" while "wallet balance" does not allow "wallet send".
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	path := normalize(commandPath)
	for _, allowed := range allowlist {
		entry := normalize(allowed)
		if entry == "" {
			continue
		}
		if entry == path || strings.HasPrefix(path, entry+" ") {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, "command blocked by --enable-commands policy")
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
