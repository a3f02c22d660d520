package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ggonzalez94/ord-wallet/internal/cache"
	"github.com/ggonzalez94/ord-wallet/internal/config"
	"github.com/ggonzalez94/ord-wallet/internal/httpx"
	"github.com/ggonzalez94/ord-wallet/internal/logging"
	"github.com/ggonzalez94/ord-wallet/internal/model"
	"github.com/ggonzalez94/ord-wallet/internal/ordclient"
)

// Builder constructs wallet contexts against an ord server.
type Builder struct {
	log *slog.Logger
	now func() time.Time
}

func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Builder{log: logger, now: time.Now}
}

// BuildNamed loads a stored wallet by name. Unless noSync is set the server
// must be indexing addresses on the wallet's chain and must not have hit an
// unrecoverable reorg.
func (b *Builder) BuildNamed(ctx context.Context, name string, noSync bool, settings config.Settings, serverURL *url.URL) (*Wallet, error) {
	params, err := ChainParams(settings.Chain)
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(settings.WalletPath, settings.WalletLockPath)
	if err != nil {
		return nil, err
	}
	rec, err := store.GetWallet(name)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if rec.Chain != settings.Chain {
		_ = store.Close()
		return nil, fmt.Errorf("wallet %s was created on %s, not %s", name, rec.Chain, settings.Chain)
	}
	addresses, err := store.Addresses(name)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	client, respCache, err := b.newClient(settings, serverURL)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	w := &Wallet{
		name:      name,
		chain:     settings.Chain,
		params:    params,
		client:    client,
		store:     store,
		cache:     respCache,
		record:    &rec,
		addresses: addresses,
		log:       b.log,
		now:       b.now,
	}

	if noSync {
		b.log.Debug("skipping server sync check", "wallet", name)
		return w, nil
	}
	height, err := b.checkServer(ctx, client, settings.Chain)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := store.SetSyncedHeight(name, height); err != nil {
		_ = w.Close()
		return nil, err
	}
	rec.SyncedHeight = height
	b.log.Debug("wallet synced", "wallet", name, "height", height)
	return w, nil
}

// BuildAddressBound returns a read-only wallet view of a single address.
func (b *Builder) BuildAddressBound(ctx context.Context, address string, noSync bool, settings config.Settings, serverURL *url.URL) (*Wallet, error) {
	params, err := ChainParams(settings.Chain)
	if err != nil {
		return nil, err
	}
	address = strings.TrimSpace(address)
	if err := ValidateAddress(address, params); err != nil {
		return nil, err
	}
	client, respCache, err := b.newClient(settings, serverURL)
	if err != nil {
		return nil, err
	}
	w := &Wallet{
		name:      address,
		chain:     settings.Chain,
		params:    params,
		client:    client,
		cache:     respCache,
		addresses: []string{address},
		log:       b.log,
		now:       b.now,
	}
	if noSync {
		return w, nil
	}
	if _, err := b.checkServer(ctx, client, settings.Chain); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

func (b *Builder) newClient(settings config.Settings, serverURL *url.URL) (*ordclient.Client, *cache.Store, error) {
	opts := []ordclient.Option{ordclient.WithLogger(b.log)}
	var respCache *cache.Store
	if settings.CacheEnabled {
		store, err := cache.Open(settings.CachePath, settings.CacheLockPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
		respCache = store
		opts = append(opts, ordclient.WithCache(store))
	}
	httpClient := httpx.New(settings.Timeout, settings.Retries)
	return ordclient.New(httpClient, serverURL, opts...), respCache, nil
}

func (b *Builder) checkServer(ctx context.Context, client *ordclient.Client, chain string) (uint64, error) {
	b.log.Debug("checking ord server status", "server", client.BaseURL())
	status, err := client.Status(ctx)
	if err != nil {
		return 0, err
	}
	if err := checkStatus(status, chain); err != nil {
		return 0, err
	}
	if status.Height == nil || *status.Height < 0 {
		return 0, nil
	}
	return uint64(*status.Height), nil
}

func checkStatus(status model.ServerStatus, chain string) error {
	if status.Chain != "" && status.Chain != chain {
		return fmt.Errorf("ord server is on %s but wallet is on %s", status.Chain, chain)
	}
	if !status.AddressIndex {
		return errors.New("ord server does not have an address index; restart it with --index-addresses")
	}
	if status.UnrecoverableReorg {
		return errors.New("ord server reports an unrecoverable reorg")
	}
	return nil
}

// Create stores a new named wallet derived from seed, sealed under passphrase.
func Create(settings config.Settings, name string, seed []byte, passphrase string) (Record, error) {
	params, err := ChainParams(settings.Chain)
	if err != nil {
		return Record{}, err
	}
	account, err := DeriveAccount(seed, params)
	if err != nil {
		return Record{}, err
	}
	sealed, err := SealSeed(seed, passphrase)
	if err != nil {
		return Record{}, err
	}
	store, err := OpenStore(settings.WalletPath, settings.WalletLockPath)
	if err != nil {
		return Record{}, err
	}
	defer store.Close()

	rec := Record{
		Name:        name,
		Chain:       settings.Chain,
		Descriptor:  account.Descriptor(),
		XPub:        account.XPub,
		Fingerprint: account.Fingerprint,
		SealedSeed:  sealed,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateWallet(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
