package id

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
)

// SpacedRune is a rune name with its spacer positions preserved for display.
type SpacedRune struct {
	Rune   string
	Spaced string
}

// ParseRune accepts names like "UNCOMMON•GOODS" or "UNCOMMON.GOODS".
func ParseRune(input string) (SpacedRune, error) {
	norm := strings.TrimSpace(input)
	if norm == "" {
		return SpacedRune{}, clierr.New(clierr.CodeUsage, "rune name is required")
	}
	var name, spaced strings.Builder
	lastSpacer := true
	for _, r := range norm {
		switch {
		case r >= 'A' && r <= 'Z':
			name.WriteRune(r)
			spaced.WriteRune(r)
			lastSpacer = false
		case r == '•' || r == '.':
			if lastSpacer {
				return SpacedRune{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid spacer position in rune %q", input))
			}
			spaced.WriteRune('•')
			lastSpacer = true
		default:
			return SpacedRune{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid character %q in rune %q", r, input))
		}
	}
	if lastSpacer {
		return SpacedRune{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("rune %q cannot end with a spacer", input))
	}
	if name.Len() > 28 {
		return SpacedRune{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("rune %q is too long", input))
	}
	return SpacedRune{Rune: name.String(), Spaced: spaced.String()}, nil
}
