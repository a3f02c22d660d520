package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/ggonzalez94/ord-wallet/internal/cache"
	"github.com/ggonzalez94/ord-wallet/internal/model"
	"github.com/ggonzalez94/ord-wallet/internal/ordclient"
)

var errAddressBound = errors.New("address-bound wallet has no keys")

// Wallet is the per-invocation wallet context handed to operation handlers.
// A named wallet is backed by a stored record and can sign; an address-bound
// wallet is a read-only view of a single address.
type Wallet struct {
	name      string
	chain     string
	params    *chaincfg.Params
	client    *ordclient.Client
	store     *Store
	cache     *cache.Store
	record    *Record
	addresses []string
	log       *slog.Logger
	now       func() time.Time
}

func (w *Wallet) Name() string  { return w.name }
func (w *Wallet) Chain() string { return w.chain }

// CanSign reports whether the wallet holds keys.
func (w *Wallet) CanSign() bool { return w.record != nil }

func (w *Wallet) Addresses() []string {
	out := make([]string, len(w.addresses))
	copy(out, w.addresses)
	return out
}

// Outputs returns the unspent outputs of every wallet address, in address
// order, each listed once.
func (w *Wallet) Outputs(ctx context.Context) ([]model.Output, error) {
	seen := map[string]struct{}{}
	outputs := make([]model.Output, 0)
	for _, addr := range w.addresses {
		info, err := w.client.Address(ctx, addr)
		if err != nil {
			return nil, err
		}
		for _, outpoint := range info.Outputs {
			if _, ok := seen[outpoint]; ok {
				continue
			}
			seen[outpoint] = struct{}{}
			out, err := w.client.Output(ctx, outpoint)
			if err != nil {
				return nil, err
			}
			if out.Spent {
				continue
			}
			outputs = append(outputs, out)
		}
	}
	w.log.Debug("loaded wallet outputs", "wallet", w.name, "addresses", len(w.addresses), "outputs", len(outputs))
	return outputs, nil
}

func (w *Wallet) Inscription(ctx context.Context, inscriptionID string) (model.Inscription, error) {
	return w.client.Inscription(ctx, inscriptionID)
}

func (w *Wallet) Rune(ctx context.Context, name string) (model.Rune, error) {
	return w.client.Rune(ctx, name)
}

func (w *Wallet) ExplorerURL(inscriptionID string) string {
	return w.client.ExplorerURL(inscriptionID)
}

// ValidateAddress checks that address belongs to the wallet's chain.
func (w *Wallet) ValidateAddress(address string) error {
	return ValidateAddress(address, w.params)
}

// NewAddresses derives and stores n fresh receive addresses. An address-bound
// wallet only ever has its bound address.
// NextAddress is the address the next NewAddresses call hands out. Nothing
// is stored and the receive index does not move.
func (w *Wallet) NextAddress() (string, error) {
	if w.record == nil {
		addrs := w.Addresses()
		if len(addrs) == 0 {
			return "", errAddressBound
		}
		return addrs[0], nil
	}
	return ReceiveAddress(w.record.XPub, w.record.NextIndex, w.params)
}

func (w *Wallet) NewAddresses(n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("address count must be positive")
	}
	if w.record == nil {
		return w.Addresses(), nil
	}
	start := w.record.NextIndex
	fresh := make([]string, 0, n)
	for i := 0; i < n; i++ {
		addr, err := ReceiveAddress(w.record.XPub, start+uint32(i), w.params)
		if err != nil {
			return nil, err
		}
		fresh = append(fresh, addr)
	}
	if err := w.store.AppendAddresses(w.name, start, fresh); err != nil {
		return nil, err
	}
	w.record.NextIndex = start + uint32(n)
	w.addresses = append(w.addresses, fresh...)
	w.log.Info("derived receive addresses", "wallet", w.name, "from", start, "count", n)
	return fresh, nil
}

// Dump exposes the wallet descriptor and its encrypted seed.
func (w *Wallet) Dump() (model.WalletDump, error) {
	if w.record == nil {
		return model.WalletDump{}, errAddressBound
	}
	return model.WalletDump{
		Name:        w.name,
		Chain:       w.chain,
		Descriptor:  w.record.Descriptor,
		NextIndex:   w.record.NextIndex,
		Keystore:    json.RawMessage(w.record.SealedSeed),
		Fingerprint: w.record.Fingerprint,
	}, nil
}

// SaveAction records an unsigned intent, stamping its timestamps.
func (w *Wallet) SaveAction(action model.Action) (model.Action, error) {
	if w.store == nil {
		return model.Action{}, errAddressBound
	}
	now := w.now().UTC().Format(time.RFC3339)
	if action.CreatedAt == "" {
		action.CreatedAt = now
	}
	action.UpdatedAt = now
	action.Wallet = w.name
	action.Chain = w.chain
	if err := w.store.SaveAction(action); err != nil {
		return model.Action{}, err
	}
	return action, nil
}

func (w *Wallet) Actions(kind string, status model.ActionStatus) ([]model.Action, error) {
	if w.store == nil {
		return []model.Action{}, nil
	}
	return w.store.ListActions(w.name, kind, status)
}

func (w *Wallet) Close() error {
	var errs []error
	if w.store != nil {
		errs = append(errs, w.store.Close())
	}
	if w.cache != nil {
		errs = append(errs, w.cache.Close())
	}
	return errors.Join(errs...)
}
