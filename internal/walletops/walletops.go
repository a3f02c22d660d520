// Package walletops holds the wallet operation handlers. Handlers are
// stateless: everything they need arrives through the Wallet context and the
// operation's parameters.
package walletops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/model"
)

// DefaultPostage is the value, in sats, given to new inscription and rune outputs.
const DefaultPostage = 10_000

// Wallet is the wallet context an operation runs against.
type Wallet interface {
	Name() string
	Chain() string
	CanSign() bool
	Addresses() []string
	Outputs(ctx context.Context) ([]model.Output, error)
	Inscription(ctx context.Context, inscriptionID string) (model.Inscription, error)
	Rune(ctx context.Context, name string) (model.Rune, error)
	ExplorerURL(inscriptionID string) string
	ValidateAddress(address string) error
	NextAddress() (string, error)
	NewAddresses(n int) ([]string, error)
	Dump() (model.WalletDump, error)
	SaveAction(action model.Action) (model.Action, error)
	Actions(kind string, status model.ActionStatus) ([]model.Action, error)
	Close() error
}

type BatchParams struct {
	File    string
	FeeRate float64
	DryRun  bool
}

type CreateParams struct {
	Passphrase string
}

type InscribeParams struct {
	File        string
	Destination string
	FeeRate     float64
	Postage     uint64
	DryRun      bool
}

type MintParams struct {
	Rune        string
	Destination string
	FeeRate     float64
	Postage     uint64
	DryRun      bool
}

type ReceiveParams struct {
	Number int
}

// RestoreParams carries exactly one of Seed (hex) or Keystore (path to a
// file written by `wallet dump`).
type RestoreParams struct {
	Seed       string
	Keystore   string
	Passphrase string
}

type SatsParams struct {
	Ranges bool
}

type SendParams struct {
	Address string
	Asset   string
	FeeRate float64
	Postage uint64
	DryRun  bool
}

type TransactionsParams struct {
	Limit int
}

var now = time.Now

func operationError(message string, err error) error {
	if clierr.Typed(err) {
		return err
	}
	return clierr.Wrap(clierr.CodeOperation, message, err)
}

func requireSigner(w Wallet, op string) error {
	if w.CanSign() {
		return nil
	}
	return clierr.New(clierr.CodeOperation, fmt.Sprintf("%s requires a named wallet; %s is a read-only address", op, w.Name()))
}

func newActionID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func newAction(w Wallet, kind string, feeRate float64, destination string, dryRun bool) model.Action {
	status := model.ActionStatusPending
	if dryRun {
		status = model.ActionStatusDryRun
	}
	ts := now().UTC().Format(time.RFC3339)
	return model.Action{
		ActionID:    newActionID(),
		Wallet:      w.Name(),
		Kind:        kind,
		Status:      status,
		Chain:       w.Chain(),
		FeeRate:     feeRate,
		Destination: destination,
		Details:     map[string]any{},
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

// record persists action unless it is a dry run.
func record(w Wallet, action model.Action) (model.Action, error) {
	if action.Status == model.ActionStatusDryRun {
		return action, nil
	}
	saved, err := w.SaveAction(action)
	if err != nil {
		return model.Action{}, operationError("record "+action.Kind, err)
	}
	return saved, nil
}

func checkFeeRate(feeRate float64) error {
	if feeRate <= 0 {
		return clierr.New(clierr.CodeUsage, "--fee-rate must be positive")
	}
	return nil
}

func postageOrDefault(postage uint64) uint64 {
	if postage == 0 {
		return DefaultPostage
	}
	return postage
}

// resolveDestination validates an explicit destination. Without one it
// returns the wallet's next receive address unclaimed; fresh reports that
// claimAddress must store it once the action is recorded.
func resolveDestination(w Wallet, destination string) (addr string, fresh bool, err error) {
	if destination != "" {
		if err := w.ValidateAddress(destination); err != nil {
			return "", false, clierr.Wrap(clierr.CodeUsage, "invalid destination", err)
		}
		return destination, false, nil
	}
	addr, err = w.NextAddress()
	if err != nil {
		return "", false, operationError("derive destination address", err)
	}
	if addr == "" {
		return "", false, clierr.New(clierr.CodeOperation, "wallet has no receive address")
	}
	return addr, true, nil
}

// claimAddress stores a receive address handed out by resolveDestination.
// Dry runs leave the receive index untouched.
func claimAddress(w Wallet, action model.Action, addr string) error {
	if action.Status == model.ActionStatusDryRun {
		return nil
	}
	addrs, err := w.NewAddresses(1)
	if err != nil {
		return operationError("store destination address", err)
	}
	if len(addrs) == 0 || addrs[0] != addr {
		return clierr.New(clierr.CodeOperation, fmt.Sprintf("receive address %s was claimed concurrently; action %s names it as destination", addr, action.ActionID))
	}
	return nil
}
