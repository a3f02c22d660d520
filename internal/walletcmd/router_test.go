package walletcmd

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ggonzalez94/ord-wallet/internal/config"
	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/model"
	"github.com/ggonzalez94/ord-wallet/internal/walletops"
)

type stubWallet struct {
	walletops.Wallet
	closed bool
}

func (s *stubWallet) Close() error {
	s.closed = true
	return nil
}

type buildCall struct {
	Mode   string
	Target string
	NoSync bool
	URL    string
}

type fakeBuilder struct {
	calls  []buildCall
	wallet *stubWallet
	err    error
}

func (f *fakeBuilder) BuildNamed(_ context.Context, name string, noSync bool, _ config.Settings, u *url.URL) (walletops.Wallet, error) {
	f.calls = append(f.calls, buildCall{Mode: "named", Target: name, NoSync: noSync, URL: u.String()})
	if f.err != nil {
		return nil, f.err
	}
	return f.wallet, nil
}

func (f *fakeBuilder) BuildAddressBound(_ context.Context, address string, noSync bool, _ config.Settings, u *url.URL) (walletops.Wallet, error) {
	f.calls = append(f.calls, buildCall{Mode: "address", Target: address, NoSync: noSync, URL: u.String()})
	if f.err != nil {
		return nil, f.err
	}
	return f.wallet, nil
}

// recordingHandlers returns handlers that record which one ran and echo its
// name as the result.
func recordingHandlers(calls *[]string) Handlers {
	w := func(name string) walletHandler {
		return func(context.Context, walletops.Wallet) (any, error) {
			*calls = append(*calls, name)
			return name, nil
		}
	}
	return Handlers{
		Balance: w("balance"),
		Batch: func(context.Context, walletops.Wallet, walletops.BatchParams) (any, error) {
			*calls = append(*calls, "batch")
			return "batch", nil
		},
		Cardinals: w("cardinals"),
		Create: func(_ context.Context, name string, _ config.Settings, _ walletops.CreateParams) (any, error) {
			*calls = append(*calls, "create:"+name)
			return "create", nil
		},
		Dump: w("dump"),
		Inscribe: func(context.Context, walletops.Wallet, walletops.InscribeParams) (any, error) {
			*calls = append(*calls, "inscribe")
			return "inscribe", nil
		},
		Inscriptions: w("inscriptions"),
		Mint: func(context.Context, walletops.Wallet, walletops.MintParams) (any, error) {
			*calls = append(*calls, "mint")
			return "mint", nil
		},
		Outputs: w("outputs"),
		Receive: func(context.Context, walletops.Wallet, walletops.ReceiveParams) (any, error) {
			*calls = append(*calls, "receive")
			return "receive", nil
		},
		Restore: func(_ context.Context, name string, _ config.Settings, _ walletops.RestoreParams) (any, error) {
			*calls = append(*calls, "restore:"+name)
			return "restore", nil
		},
		Resume: w("resume"),
		Sats: func(context.Context, walletops.Wallet, walletops.SatsParams) (any, error) {
			*calls = append(*calls, "sats")
			return "sats", nil
		},
		Send: func(context.Context, walletops.Wallet, walletops.SendParams) (any, error) {
			*calls = append(*calls, "send")
			return "send", nil
		},
		Transactions: func(context.Context, walletops.Wallet, walletops.TransactionsParams) (any, error) {
			*calls = append(*calls, "transactions")
			return "transactions", nil
		},
	}
}

func allOperations() []Operation {
	return []Operation{
		Balance{}, Batch{}, Create{}, Dump{}, Inscribe{}, Inscriptions{}, Mint{}, Receive{},
		Restore{}, Resume{}, Sats{}, Send{}, Transactions{}, Outputs{}, Cardinals{},
	}
}

func newTestRouter() (*Router, *fakeBuilder, *[]string) {
	builder := &fakeBuilder{wallet: &stubWallet{}}
	calls := &[]string{}
	return NewRouter(builder, recordingHandlers(calls), nil), builder, calls
}

func TestCreateAndRestoreSkipConstruction(t *testing.T) {
	for _, op := range []Operation{Create{}, Restore{}} {
		router, builder, calls := newTestRouter()
		// An unusable server URL would fail resolution if it were attempted.
		settings := config.Settings{ServerURL: "::not a url"}
		inv := Invocation{Name: "vault", ServerURL: "also bad", Address: "bc1qignored", Operation: op}

		got, err := router.Run(context.Background(), inv, settings)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", op.Name(), err)
		}
		if got != op.Name() {
			t.Fatalf("%s: unexpected result %v", op.Name(), got)
		}
		if len(builder.calls) != 0 {
			t.Fatalf("%s: builder must not be called, got %+v", op.Name(), builder.calls)
		}
		if diff := cmp.Diff([]string{op.Name() + ":vault"}, *calls); diff != "" {
			t.Fatalf("%s: unexpected handler calls (-want +got):\n%s", op.Name(), diff)
		}
	}
}

func TestPointerOperationsRejected(t *testing.T) {
	for _, op := range []Operation{&Create{}, &Restore{}, &Balance{}} {
		router, builder, calls := newTestRouter()
		_, err := router.Run(context.Background(), Invocation{Name: "vault", Operation: op}, config.Settings{})
		if cErr, ok := clierr.As(err); !ok || cErr.Code != clierr.CodeInternal {
			t.Fatalf("%T: expected internal error, got %v", op, err)
		}
		if len(builder.calls) != 0 || len(*calls) != 0 {
			t.Fatalf("%T: nothing should run: builds=%v handlers=%v", op, builder.calls, *calls)
		}
	}
}

func TestAddressSelectsAddressBoundRegardlessOfName(t *testing.T) {
	for _, name := range []string{"", DefaultWalletName, "custom"} {
		router, builder, _ := newTestRouter()
		inv := Invocation{Name: name, Address: "bc1pwatch", NoSync: true, Operation: Balance{}}
		if _, err := router.Run(context.Background(), inv, config.Settings{}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		want := []buildCall{{Mode: "address", Target: "bc1pwatch", NoSync: true, URL: FallbackServerURL}}
		if diff := cmp.Diff(want, builder.calls); diff != "" {
			t.Fatalf("name=%q: unexpected build calls (-want +got):\n%s", name, diff)
		}
	}
}

func TestNoAddressSelectsNamedWallet(t *testing.T) {
	router, builder, _ := newTestRouter()
	if _, err := router.Run(context.Background(), Invocation{Name: "vault", Operation: Outputs{}}, config.Settings{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := router.Run(context.Background(), Invocation{Operation: Outputs{}}, config.Settings{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []buildCall{
		{Mode: "named", Target: "vault", URL: FallbackServerURL},
		{Mode: "named", Target: DefaultWalletName, URL: FallbackServerURL},
	}
	if diff := cmp.Diff(want, builder.calls); diff != "" {
		t.Fatalf("unexpected build calls (-want +got):\n%s", diff)
	}
}

func TestResolveMode(t *testing.T) {
	cases := []struct {
		inv  Invocation
		want Mode
	}{
		{Invocation{Name: "ord"}, NamedWallet{Name: "ord"}},
		{Invocation{}, NamedWallet{Name: DefaultWalletName}},
		{Invocation{Name: "x", Address: "bc1q"}, AddressBound{Address: "bc1q"}},
	}
	for _, tc := range cases {
		if got := ResolveMode(tc.inv); got != tc.want {
			t.Fatalf("ResolveMode(%+v) = %#v want %#v", tc.inv, got, tc.want)
		}
	}
}

func TestResolveServerURLPrecedence(t *testing.T) {
	cases := []struct {
		name     string
		override string
		settings config.Settings
		want     string
	}{
		{"flag wins", "http://a", config.Settings{ServerURL: "http://b"}, "http://a"},
		{"settings", "", config.Settings{ServerURL: "http://b"}, "http://b"},
		{"fallback", "", config.Settings{}, "http://127.0.0.1:80"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := ResolveServerURL(tc.override, tc.settings)
			if err != nil {
				t.Fatalf("ResolveServerURL failed: %v", err)
			}
			if u.String() != tc.want {
				t.Fatalf("got %s want %s", u, tc.want)
			}
		})
	}
}

func TestInvalidServerURLIsConfigurationError(t *testing.T) {
	router, builder, calls := newTestRouter()
	for _, inv := range []Invocation{
		{Operation: Balance{}, ServerURL: "127.0.0.1:80"},
		{Operation: Balance{}},
	} {
		_, err := router.Run(context.Background(), inv, config.Settings{ServerURL: "not a url"})
		cErr, ok := clierr.As(err)
		if !ok || cErr.Code != clierr.CodeConfig {
			t.Fatalf("expected configuration error, got %v", err)
		}
	}
	if len(builder.calls) != 0 || len(*calls) != 0 {
		t.Fatalf("nothing should run after a bad URL: builds=%v handlers=%v", builder.calls, *calls)
	}
}

func TestConstructionErrors(t *testing.T) {
	router, builder, calls := newTestRouter()
	builder.err = errors.New("wallet not found: vault")
	_, err := router.Run(context.Background(), Invocation{Name: "vault", Operation: Balance{}}, config.Settings{})
	if cErr, ok := clierr.As(err); !ok || cErr.Code != clierr.CodeConstruction {
		t.Fatalf("expected construction error, got %v", err)
	}

	for _, code := range []clierr.Code{clierr.CodeUnavailable, clierr.CodeNotFound} {
		cause := clierr.New(code, "ord server unreachable")
		builder.err = cause
		_, err = router.Run(context.Background(), Invocation{Operation: Balance{}}, config.Settings{})
		if cErr, ok := clierr.As(err); !ok || cErr.Code != clierr.CodeConstruction {
			t.Fatalf("expected construction error for %s cause, got %v", clierr.TypeName(code), err)
		}
		if !errors.Is(err, cause) {
			t.Fatalf("construction error dropped its cause: %v", err)
		}
	}
	if len(*calls) != 0 {
		t.Fatalf("no handler should run, got %v", *calls)
	}
}

func TestDispatchCompleteness(t *testing.T) {
	for _, op := range allOperations() {
		if _, ok := op.(Create); ok {
			continue
		}
		if _, ok := op.(Restore); ok {
			continue
		}
		router, builder, calls := newTestRouter()
		got, err := router.Run(context.Background(), Invocation{Name: "ord", Operation: op}, config.Settings{})
		if err != nil {
			t.Fatalf("%s: Run failed: %v", op.Name(), err)
		}
		if diff := cmp.Diff([]string{op.Name()}, *calls); diff != "" {
			t.Fatalf("%s: expected exactly one handler (-want +got):\n%s", op.Name(), diff)
		}
		if got != op.Name() {
			t.Fatalf("%s: result not returned unmodified: %v", op.Name(), got)
		}
		if !builder.wallet.closed {
			t.Fatalf("%s: wallet was not closed", op.Name())
		}
	}
}

func TestDispatchRejectsLifecycleOperations(t *testing.T) {
	router, _, calls := newTestRouter()
	for _, op := range []Operation{Create{}, Restore{}} {
		_, err := router.dispatch(context.Background(), &stubWallet{}, op)
		if cErr, ok := clierr.As(err); !ok || cErr.Code != clierr.CodeInternal {
			t.Fatalf("%s: expected internal error, got %v", op.Name(), err)
		}
	}
	if len(*calls) != 0 {
		t.Fatalf("no handler should run, got %v", *calls)
	}
}

func TestHandlerErrorsReturnedUnchanged(t *testing.T) {
	router, _, _ := newTestRouter()
	want := clierr.New(clierr.CodeOperation, "insufficient funds")
	router.handlers.Send = func(context.Context, walletops.Wallet, walletops.SendParams) (any, error) {
		return model.Action{}, want
	}
	_, err := router.Run(context.Background(), Invocation{Operation: Send{}}, config.Settings{})
	if err != want {
		t.Fatalf("expected handler error unchanged, got %v", err)
	}
}

func TestDefaultHandlersAreComplete(t *testing.T) {
	h := DefaultHandlers(nil)
	missing := []string{}
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}
	check("balance", h.Balance != nil)
	check("batch", h.Batch != nil)
	check("cardinals", h.Cardinals != nil)
	check("create", h.Create != nil)
	check("dump", h.Dump != nil)
	check("inscribe", h.Inscribe != nil)
	check("inscriptions", h.Inscriptions != nil)
	check("mint", h.Mint != nil)
	check("outputs", h.Outputs != nil)
	check("receive", h.Receive != nil)
	check("restore", h.Restore != nil)
	check("resume", h.Resume != nil)
	check("sats", h.Sats != nil)
	check("send", h.Send != nil)
	check("transactions", h.Transactions != nil)
	if len(missing) > 0 {
		t.Fatalf("missing handlers: %v", missing)
	}
}
