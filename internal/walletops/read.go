package walletops

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/id"
	"github.com/ggonzalez94/ord-wallet/internal/model"
	"github.com/ggonzalez94/ord-wallet/internal/sat"
)

func loadOutputs(ctx context.Context, w Wallet) ([]model.Output, error) {
	outputs, err := w.Outputs(ctx)
	if err != nil {
		return nil, operationError("load wallet outputs", err)
	}
	return outputs, nil
}

// Balance splits the wallet's sats into cardinal, inscribed and rune-bearing
// outputs and totals rune balances by spaced name.
func Balance(ctx context.Context, w Wallet) (model.Balance, error) {
	outputs, err := loadOutputs(ctx, w)
	if err != nil {
		return model.Balance{}, err
	}
	var bal model.Balance
	runes := map[string]*big.Int{}
	divisibility := map[string]uint8{}
	for _, o := range outputs {
		bal.Total += o.Value
		switch {
		case len(o.Inscriptions) > 0:
			bal.Ordinal += o.Value
		case len(o.Runes) > 0:
			bal.Runic += o.Value
		default:
			bal.Cardinal += o.Value
		}
		for name, pile := range o.Runes {
			amount, ok := new(big.Int).SetString(pile.Amount, 10)
			if !ok {
				return model.Balance{}, clierr.New(clierr.CodeOperation, fmt.Sprintf("invalid %s amount %q in %s", name, pile.Amount, o.Outpoint))
			}
			if runes[name] == nil {
				runes[name] = new(big.Int)
			}
			runes[name].Add(runes[name], amount)
			divisibility[name] = pile.Divisibility
		}
	}
	if len(runes) > 0 {
		bal.Runes = make(map[string]string, len(runes))
		for name, total := range runes {
			bal.Runes[name] = id.FormatUnits(total.String(), int(divisibility[name]))
		}
	}
	return bal, nil
}

func Outputs(ctx context.Context, w Wallet) ([]model.OutputEntry, error) {
	outputs, err := loadOutputs(ctx, w)
	if err != nil {
		return nil, err
	}
	entries := make([]model.OutputEntry, 0, len(outputs))
	for _, o := range outputs {
		entries = append(entries, model.OutputEntry{
			Output:       o.Outpoint,
			Amount:       o.Value,
			Inscriptions: o.Inscriptions,
			Runes:        o.Runes,
			SatRanges:    formatRanges(o.SatRanges),
		})
	}
	return entries, nil
}

// Cardinals lists outputs that carry neither inscriptions nor runes.
func Cardinals(ctx context.Context, w Wallet) ([]model.CardinalEntry, error) {
	outputs, err := loadOutputs(ctx, w)
	if err != nil {
		return nil, err
	}
	entries := make([]model.CardinalEntry, 0)
	for _, o := range outputs {
		if o.Cardinal() {
			entries = append(entries, model.CardinalEntry{Output: o.Outpoint, Amount: o.Value})
		}
	}
	return entries, nil
}

func Inscriptions(ctx context.Context, w Wallet) ([]model.InscriptionEntry, error) {
	outputs, err := loadOutputs(ctx, w)
	if err != nil {
		return nil, err
	}
	entries := make([]model.InscriptionEntry, 0)
	for _, o := range outputs {
		for _, inscriptionID := range o.Inscriptions {
			ins, err := w.Inscription(ctx, inscriptionID)
			if err != nil {
				return nil, operationError("load inscription "+inscriptionID, err)
			}
			entries = append(entries, model.InscriptionEntry{
				Inscription: inscriptionID,
				Location:    ins.SatPoint,
				Explorer:    w.ExplorerURL(inscriptionID),
				Postage:     o.Value,
			})
		}
	}
	return entries, nil
}

// Sats lists the wallet's rare sats, or with Ranges every sat range it holds.
func Sats(ctx context.Context, w Wallet, p SatsParams) (any, error) {
	outputs, err := loadOutputs(ctx, w)
	if err != nil {
		return nil, err
	}
	for _, o := range outputs {
		if o.Value > 0 && len(o.SatRanges) == 0 {
			return nil, clierr.New(clierr.CodeOperation, "listing sats requires an ord server started with --index-sats")
		}
	}

	if p.Ranges {
		entries := make([]model.SatRangeEntry, 0, len(outputs))
		for _, o := range outputs {
			entries = append(entries, model.SatRangeEntry{Output: o.Outpoint, Ranges: formatRanges(o.SatRanges)})
		}
		return entries, nil
	}

	entries := make([]model.SatEntry, 0)
	for _, o := range outputs {
		var offset uint64
		for _, r := range o.SatRanges {
			s := sat.Sat(r[0])
			if rarity := s.Rarity(); rarity > sat.Common {
				entries = append(entries, model.SatEntry{
					Sat:    r[0],
					Output: o.Outpoint,
					Offset: offset,
					Rarity: rarity.String(),
				})
			}
			offset += r[1] - r[0]
		}
	}
	return entries, nil
}

// Transactions lists recorded wallet actions, newest first, followed by the
// transactions that created the wallet's unspent outputs.
func Transactions(ctx context.Context, w Wallet, p TransactionsParams) ([]model.TransactionEntry, error) {
	if p.Limit < 0 {
		return nil, clierr.New(clierr.CodeUsage, "--limit must not be negative")
	}
	actions, err := w.Actions("", "")
	if err != nil {
		return nil, operationError("list wallet actions", err)
	}
	outputs, err := loadOutputs(ctx, w)
	if err != nil {
		return nil, err
	}

	entries := make([]model.TransactionEntry, 0, len(actions)+len(outputs))
	for _, a := range actions {
		txid := a.Transaction
		if txid == "" {
			txid = a.ActionID
		}
		entries = append(entries, model.TransactionEntry{Transaction: txid, Source: a.Kind, Status: string(a.Status)})
	}
	seen := map[string]struct{}{}
	for _, o := range outputs {
		if _, ok := seen[o.Transaction]; ok || o.Transaction == "" {
			continue
		}
		seen[o.Transaction] = struct{}{}
		entries = append(entries, model.TransactionEntry{Transaction: o.Transaction, Source: "output", Status: "confirmed"})
	}
	if p.Limit > 0 && len(entries) > p.Limit {
		entries = entries[:p.Limit]
	}
	return entries, nil
}

func Receive(_ context.Context, w Wallet, p ReceiveParams) (model.ReceiveResult, error) {
	n := p.Number
	if n == 0 {
		n = 1
	}
	if n < 0 {
		return model.ReceiveResult{}, clierr.New(clierr.CodeUsage, "--number must be positive")
	}
	addrs, err := w.NewAddresses(n)
	if err != nil {
		return model.ReceiveResult{}, operationError("derive receive addresses", err)
	}
	return model.ReceiveResult{Addresses: addrs}, nil
}

// Dump prints the wallet descriptor together with its encrypted seed.
func Dump(_ context.Context, w Wallet, logger *slog.Logger) (model.WalletDump, error) {
	if err := requireSigner(w, "dump"); err != nil {
		return model.WalletDump{}, err
	}
	dump, err := w.Dump()
	if err != nil {
		return model.WalletDump{}, operationError("dump wallet", err)
	}
	if logger != nil {
		logger.Warn("dumping wallet key material; anyone with this output and the passphrase controls the funds", "wallet", w.Name())
	}
	return dump, nil
}

func formatRanges(ranges []model.SatRange) []string {
	if len(ranges) == 0 {
		return nil
	}
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, fmt.Sprintf("%d-%d", r[0], r[1]))
	}
	return out
}

func unspacedRune(name string) string {
	return strings.NewReplacer("•", "", ".", "").Replace(name)
}
