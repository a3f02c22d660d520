package walletcmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"

	"github.com/ggonzalez94/ord-wallet/internal/config"
	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/logging"
	"github.com/ggonzalez94/ord-wallet/internal/ordclient"
	"github.com/ggonzalez94/ord-wallet/internal/wallet"
	"github.com/ggonzalez94/ord-wallet/internal/walletops"
)

// FallbackServerURL is used when neither --server-url nor the settings name
// an ord server.
const FallbackServerURL = "http://127.0.0.1:80"

// Builder constructs the wallet context for one invocation.
type Builder interface {
	BuildNamed(ctx context.Context, name string, noSync bool, settings config.Settings, serverURL *url.URL) (walletops.Wallet, error)
	BuildAddressBound(ctx context.Context, address string, noSync bool, settings config.Settings, serverURL *url.URL) (walletops.Wallet, error)
}

type storeBuilder struct {
	b *wallet.Builder
}

// NewBuilder returns the Builder backed by the local wallet store.
func NewBuilder(logger *slog.Logger) Builder {
	return storeBuilder{b: wallet.NewBuilder(logger)}
}

func (s storeBuilder) BuildNamed(ctx context.Context, name string, noSync bool, settings config.Settings, serverURL *url.URL) (walletops.Wallet, error) {
	w, err := s.b.BuildNamed(ctx, name, noSync, settings, serverURL)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s storeBuilder) BuildAddressBound(ctx context.Context, address string, noSync bool, settings config.Settings, serverURL *url.URL) (walletops.Wallet, error) {
	w, err := s.b.BuildAddressBound(ctx, address, noSync, settings, serverURL)
	if err != nil {
		return nil, err
	}
	return w, nil
}

type (
	walletHandler           func(ctx context.Context, w walletops.Wallet) (any, error)
	lifecycleHandler[P any] func(ctx context.Context, name string, settings config.Settings, p P) (any, error)
	paramHandler[P any]     func(ctx context.Context, w walletops.Wallet, p P) (any, error)
)

// Handlers holds one handler per operation.
type Handlers struct {
	Balance      walletHandler
	Batch        paramHandler[walletops.BatchParams]
	Cardinals    walletHandler
	Create       lifecycleHandler[walletops.CreateParams]
	Dump         walletHandler
	Inscribe     paramHandler[walletops.InscribeParams]
	Inscriptions walletHandler
	Mint         paramHandler[walletops.MintParams]
	Outputs      walletHandler
	Receive      paramHandler[walletops.ReceiveParams]
	Restore      lifecycleHandler[walletops.RestoreParams]
	Resume       walletHandler
	Sats         paramHandler[walletops.SatsParams]
	Send         paramHandler[walletops.SendParams]
	Transactions paramHandler[walletops.TransactionsParams]
}

// DefaultHandlers wires every operation to its walletops implementation.
func DefaultHandlers(logger *slog.Logger) Handlers {
	return Handlers{
		Balance: func(ctx context.Context, w walletops.Wallet) (any, error) {
			return walletops.Balance(ctx, w)
		},
		Batch: func(ctx context.Context, w walletops.Wallet, p walletops.BatchParams) (any, error) {
			return walletops.Batch(ctx, w, p)
		},
		Cardinals: func(ctx context.Context, w walletops.Wallet) (any, error) {
			return walletops.Cardinals(ctx, w)
		},
		Create: func(ctx context.Context, name string, settings config.Settings, p walletops.CreateParams) (any, error) {
			return walletops.Create(ctx, name, settings, p)
		},
		Dump: func(ctx context.Context, w walletops.Wallet) (any, error) {
			return walletops.Dump(ctx, w, logger)
		},
		Inscribe: func(ctx context.Context, w walletops.Wallet, p walletops.InscribeParams) (any, error) {
			return walletops.Inscribe(ctx, w, p)
		},
		Inscriptions: func(ctx context.Context, w walletops.Wallet) (any, error) {
			return walletops.Inscriptions(ctx, w)
		},
		Mint: func(ctx context.Context, w walletops.Wallet, p walletops.MintParams) (any, error) {
			return walletops.Mint(ctx, w, p)
		},
		Outputs: func(ctx context.Context, w walletops.Wallet) (any, error) {
			return walletops.Outputs(ctx, w)
		},
		Receive: func(ctx context.Context, w walletops.Wallet, p walletops.ReceiveParams) (any, error) {
			return walletops.Receive(ctx, w, p)
		},
		Restore: func(ctx context.Context, name string, settings config.Settings, p walletops.RestoreParams) (any, error) {
			return walletops.Restore(ctx, name, settings, p)
		},
		Resume: func(ctx context.Context, w walletops.Wallet) (any, error) {
			return walletops.Resume(ctx, w)
		},
		Sats: walletops.Sats,
		Send: func(ctx context.Context, w walletops.Wallet, p walletops.SendParams) (any, error) {
			return walletops.Send(ctx, w, p)
		},
		Transactions: func(ctx context.Context, w walletops.Wallet, p walletops.TransactionsParams) (any, error) {
			return walletops.Transactions(ctx, w, p)
		},
	}
}

// Mode is how the wallet context is constructed: NamedWallet or AddressBound.
type Mode interface {
	isMode()
}

// NamedWallet loads a stored, signing-capable wallet.
type NamedWallet struct{ Name string }

// AddressBound is a read-only view of one address.
type AddressBound struct{ Address string }

func (NamedWallet) isMode()  {}
func (AddressBound) isMode() {}

// ResolveMode picks AddressBound whenever an address was given, whatever
// the wallet name.
func ResolveMode(inv Invocation) Mode {
	if inv.Address != "" {
		return AddressBound{Address: inv.Address}
	}
	name := inv.Name
	if name == "" {
		name = DefaultWalletName
	}
	return NamedWallet{Name: name}
}

// ResolveServerURL applies --server-url, then the configured server, then
// FallbackServerURL.
func ResolveServerURL(override string, settings config.Settings) (*url.URL, error) {
	raw := override
	if raw == "" {
		if configured, ok := settings.DefaultServerURL(); ok {
			raw = configured
		} else {
			raw = FallbackServerURL
		}
	}
	u, err := ordclient.ParseServerURL(raw)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeConfig, "invalid server URL", err)
	}
	return u, nil
}

// Router builds the wallet context for an invocation and dispatches it.
type Router struct {
	builder  Builder
	handlers Handlers
	log      *slog.Logger
}

func NewRouter(builder Builder, handlers Handlers, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Router{builder: builder, handlers: handlers, log: logger}
}

// Run executes inv. Create and Restore never resolve a server or build a
// wallet. Handler results and errors are returned as is.
func (r *Router) Run(ctx context.Context, inv Invocation, settings config.Settings) (any, error) {
	if inv.Operation == nil {
		return nil, clierr.New(clierr.CodeUsage, "missing wallet operation")
	}
	// Variants are matched by value below.
	if reflect.ValueOf(inv.Operation).Kind() == reflect.Pointer {
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("wallet operation %T must be passed by value", inv.Operation))
	}
	name := inv.Name
	if name == "" {
		name = DefaultWalletName
	}
	r.log.Debug("wallet invocation", "operation", inv.Operation.Name(), "name", name, "address", inv.Address, "no_sync", inv.NoSync)

	switch op := inv.Operation.(type) {
	case Create:
		return r.handlers.Create(ctx, name, settings, op.Params)
	case Restore:
		return r.handlers.Restore(ctx, name, settings, op.Params)
	}

	serverURL, err := ResolveServerURL(inv.ServerURL, settings)
	if err != nil {
		return nil, err
	}
	w, err := r.build(ctx, ResolveMode(inv), inv.NoSync, settings, serverURL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := w.Close(); err != nil {
			r.log.Warn("close wallet", "error", err)
		}
	}()
	return r.dispatch(ctx, w, inv.Operation)
}

func (r *Router) build(ctx context.Context, mode Mode, noSync bool, settings config.Settings, serverURL *url.URL) (walletops.Wallet, error) {
	var (
		w   walletops.Wallet
		err error
	)
	switch m := mode.(type) {
	case AddressBound:
		r.log.Debug("building address-bound wallet", "address", m.Address, "server", serverURL.Redacted())
		w, err = r.builder.BuildAddressBound(ctx, m.Address, noSync, settings, serverURL)
	case NamedWallet:
		r.log.Debug("building named wallet", "name", m.Name, "server", serverURL.Redacted())
		w, err = r.builder.BuildNamed(ctx, m.Name, noSync, settings, serverURL)
	default:
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("unknown construction mode %T", mode))
	}
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeConstruction, "construct wallet", err)
	}
	if w == nil {
		return nil, clierr.New(clierr.CodeConstruction, "construct wallet: builder returned no wallet")
	}
	return w, nil
}

func (r *Router) dispatch(ctx context.Context, w walletops.Wallet, op Operation) (any, error) {
	switch op := op.(type) {
	case Balance:
		return r.handlers.Balance(ctx, w)
	case Batch:
		return r.handlers.Batch(ctx, w, op.Params)
	case Cardinals:
		return r.handlers.Cardinals(ctx, w)
	case Dump:
		return r.handlers.Dump(ctx, w)
	case Inscribe:
		return r.handlers.Inscribe(ctx, w, op.Params)
	case Inscriptions:
		return r.handlers.Inscriptions(ctx, w)
	case Mint:
		return r.handlers.Mint(ctx, w, op.Params)
	case Outputs:
		return r.handlers.Outputs(ctx, w)
	case Receive:
		return r.handlers.Receive(ctx, w, op.Params)
	case Resume:
		return r.handlers.Resume(ctx, w)
	case Sats:
		return r.handlers.Sats(ctx, w, op.Params)
	case Send:
		return r.handlers.Send(ctx, w, op.Params)
	case Transactions:
		return r.handlers.Transactions(ctx, w, op.Params)
	case Create, Restore:
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("%s reached wallet dispatch", op.Name()))
	default:
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("unhandled wallet operation %T", op))
	}
}
