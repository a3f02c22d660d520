package id

import (
	"strings"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
)

type OutgoingKind string

const (
	OutgoingAmount      OutgoingKind = "amount"
	OutgoingInscription OutgoingKind = "inscription"
	OutgoingSatPoint    OutgoingKind = "satpoint"
	OutgoingRune        OutgoingKind = "rune"
)

// Outgoing is the asset argument of `wallet send`.
type Outgoing struct {
	Kind          OutgoingKind
	Sats          uint64
	InscriptionID InscriptionID
	SatPoint      SatPoint
	RuneAmount    string
	Rune          SpacedRune
}

// ParseOutgoing tries, in order: inscription id, satpoint, "<decimal>:<RUNE>",
// then a denominated bitcoin amount.
func ParseOutgoing(input string) (Outgoing, error) {
	norm := strings.TrimSpace(input)
	if norm == "" {
		return Outgoing{}, clierr.New(clierr.CodeUsage, "outgoing asset is required")
	}
	if inscription, err := ParseInscriptionID(norm); err == nil {
		return Outgoing{Kind: OutgoingInscription, InscriptionID: inscription}, nil
	}
	if satpoint, err := ParseSatPoint(norm); err == nil {
		return Outgoing{Kind: OutgoingSatPoint, SatPoint: satpoint}, nil
	}
	if amount, name, ok := strings.Cut(norm, ":"); ok {
		spaced, err := ParseRune(name)
		if err != nil {
			return Outgoing{}, err
		}
		amount = strings.TrimSpace(amount)
		if !decimalPattern.MatchString(amount) {
			return Outgoing{}, clierr.New(clierr.CodeUsage, "rune amount must be a decimal number")
		}
		if strings.Trim(amount, "0.") == "" {
			return Outgoing{}, clierr.New(clierr.CodeUsage, "rune amount must be greater than zero")
		}
		return Outgoing{Kind: OutgoingRune, RuneAmount: amount, Rune: spaced}, nil
	}
	sats, err := ParseAmount(norm)
	if err != nil {
		return Outgoing{}, err
	}
	if sats == 0 {
		return Outgoing{}, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	return Outgoing{Kind: OutgoingAmount, Sats: sats}, nil
}
