package walletops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ggonzalez94/ord-wallet/internal/config"
	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/model"
	"github.com/ggonzalez94/ord-wallet/internal/wallet"
)

// Create generates a new seed and stores it as wallet name. The seed is
// returned once; it is never printed again.
func Create(_ context.Context, name string, settings config.Settings, p CreateParams) (model.WalletCreated, error) {
	seed, err := wallet.NewSeed()
	if err != nil {
		return model.WalletCreated{}, operationError("create wallet", err)
	}
	rec, err := store(name, settings, seed, p.Passphrase)
	if err != nil {
		return model.WalletCreated{}, err
	}
	return model.WalletCreated{
		Name:       rec.Name,
		Chain:      rec.Chain,
		Seed:       wallet.EncodeSeed(seed),
		Passphrase: p.Passphrase,
		Descriptor: rec.Descriptor,
	}, nil
}

// Restore stores wallet name from a hex seed or from a keystore file
// written by `wallet dump`, which must open with Passphrase.
func Restore(_ context.Context, name string, settings config.Settings, p RestoreParams) (model.WalletCreated, error) {
	hasSeed := strings.TrimSpace(p.Seed) != ""
	hasKeystore := strings.TrimSpace(p.Keystore) != ""
	if hasSeed == hasKeystore {
		return model.WalletCreated{}, clierr.New(clierr.CodeUsage, "exactly one of --seed or --keystore is required")
	}

	var seed []byte
	if hasSeed {
		parsed, err := wallet.ParseSeed(p.Seed)
		if err != nil {
			return model.WalletCreated{}, clierr.Wrap(clierr.CodeUsage, "invalid seed", err)
		}
		seed = parsed
	} else {
		sealed, err := wallet.ReadKeystoreFile(p.Keystore)
		if err != nil {
			return model.WalletCreated{}, operationError("restore wallet", err)
		}
		opened, err := wallet.OpenSeed(sealed, p.Passphrase)
		if err != nil {
			return model.WalletCreated{}, operationError("restore wallet", err)
		}
		seed = opened
	}

	rec, err := store(name, settings, seed, p.Passphrase)
	if err != nil {
		return model.WalletCreated{}, err
	}
	return model.WalletCreated{Name: rec.Name, Chain: rec.Chain, Descriptor: rec.Descriptor}, nil
}

func store(name string, settings config.Settings, seed []byte, passphrase string) (wallet.Record, error) {
	rec, err := wallet.Create(settings, name, seed, passphrase)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletExists) {
			return wallet.Record{}, clierr.Wrap(clierr.CodeOperation, fmt.Sprintf("wallet %s already exists", name), err)
		}
		return wallet.Record{}, operationError("store wallet", err)
	}
	return rec, nil
}
