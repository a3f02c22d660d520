package walletcmd

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/id"
	"github.com/ggonzalez94/ord-wallet/internal/schema"
	"github.com/ggonzalez94/ord-wallet/internal/walletops"
)

// SigningAnnotation marks commands that need a named wallet with keys.
const SigningAnnotation = schema.SigningAnnotation

var signing = map[string]string{SigningAnnotation: "true"}

type walletFlags struct {
	name      string
	noSync    bool
	serverURL string
	address   string
}

// invocation validates the shared flags and pairs them with op.
func (f *walletFlags) invocation(cmd *cobra.Command, op Operation) (Invocation, error) {
	inv := Invocation{
		Name:      f.name,
		NoSync:    f.noSync,
		ServerURL: strings.TrimSpace(f.serverURL),
		Address:   strings.TrimSpace(f.address),
		Operation: op,
	}
	if cmd.Flags().Changed("server-url") {
		if inv.ServerURL == "" {
			return Invocation{}, clierr.New(clierr.CodeUsage, "--server-url must not be empty")
		}
		if _, err := url.Parse(inv.ServerURL); err != nil {
			return Invocation{}, clierr.Wrap(clierr.CodeUsage, "invalid --server-url", err)
		}
	}
	if cmd.Flags().Changed("address") && inv.Address == "" {
		return Invocation{}, clierr.New(clierr.CodeUsage, "--address must not be empty")
	}
	if strings.TrimSpace(inv.Name) == "" {
		return Invocation{}, clierr.New(clierr.CodeUsage, "--name must not be empty")
	}
	return inv, nil
}

// NewCommand builds the `wallet` command tree. Each operation subcommand
// parses its flags into an Invocation and hands it to onParsed.
func NewCommand(onParsed func(cmd *cobra.Command, inv Invocation) error) *cobra.Command {
	flags := &walletFlags{}
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Wallet commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return clierr.New(clierr.CodeUsage, "missing wallet operation")
			}
			return clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown wallet operation %q", args[0]))
		},
	}
	cmd.PersistentFlags().StringVar(&flags.name, "name", DefaultWalletName, "Use wallet named <WALLET>")
	cmd.PersistentFlags().BoolVar(&flags.noSync, "no-sync", false, "Do not check the ord server index before running")
	cmd.PersistentFlags().BoolVar(&flags.noSync, "nosync", false, "Alias of --no-sync")
	_ = cmd.PersistentFlags().MarkHidden("nosync")
	cmd.PersistentFlags().StringVar(&flags.serverURL, "server-url", "", "Use ord server at <URL>")
	cmd.PersistentFlags().StringVar(&flags.address, "address", "", "Read-only view of <ADDRESS> instead of a named wallet")

	leaf := func(use, short string, args cobra.PositionalArgs, annotations map[string]string, build func(args []string) (Operation, error)) *cobra.Command {
		return &cobra.Command{
			Use:         use,
			Short:       short,
			Args:        args,
			Annotations: annotations,
			RunE: func(cmd *cobra.Command, args []string) error {
				op, err := build(args)
				if err != nil {
					return err
				}
				inv, err := flags.invocation(cmd, op)
				if err != nil {
					return err
				}
				return onParsed(cmd, inv)
			},
		}
	}
	static := func(op Operation) func([]string) (Operation, error) {
		return func([]string) (Operation, error) { return op, nil }
	}

	cmd.AddCommand(leaf("balance", "Get wallet balance", cobra.NoArgs, nil, static(Balance{})))
	cmd.AddCommand(leaf("cardinals", "List unspent cardinal outputs", cobra.NoArgs, nil, static(Cardinals{})))
	cmd.AddCommand(leaf("dump", "Dump wallet descriptor and encrypted seed", cobra.NoArgs, signing, static(Dump{})))
	cmd.AddCommand(leaf("inscriptions", "List wallet inscriptions", cobra.NoArgs, nil, static(Inscriptions{})))
	cmd.AddCommand(leaf("outputs", "List all unspent outputs", cobra.NoArgs, nil, static(Outputs{})))
	cmd.AddCommand(leaf("resume", "Resume pending etchings", cobra.NoArgs, signing, static(Resume{})))

	cmd.AddCommand(newBatchCommand(leaf))
	cmd.AddCommand(newCreateCommand(leaf))
	cmd.AddCommand(newInscribeCommand(leaf))
	cmd.AddCommand(newMintCommand(leaf))
	cmd.AddCommand(newReceiveCommand(leaf))
	cmd.AddCommand(newRestoreCommand(leaf))
	cmd.AddCommand(newSatsCommand(leaf))
	cmd.AddCommand(newSendCommand(leaf))
	cmd.AddCommand(newTransactionsCommand(leaf))
	return cmd
}

type leafFunc func(use, short string, args cobra.PositionalArgs, annotations map[string]string, build func(args []string) (Operation, error)) *cobra.Command

// txFlags are shared by the operations that record a transaction.
type txFlags struct {
	feeRate float64
	postage string
	dryRun  bool
}

func (t *txFlags) register(fs *pflag.FlagSet, withPostage bool) {
	fs.Float64Var(&t.feeRate, "fee-rate", 0, "Fee rate in sat/vB")
	fs.BoolVar(&t.dryRun, "dry-run", false, "Check and print the action without recording it")
	if withPostage {
		fs.StringVar(&t.postage, "postage", "", "Amount of postage, e.g. \"10000 sat\"")
	}
}

func (t *txFlags) parse() (float64, uint64, error) {
	if t.feeRate <= 0 {
		return 0, 0, clierr.New(clierr.CodeUsage, "--fee-rate must be positive")
	}
	if strings.TrimSpace(t.postage) == "" {
		return t.feeRate, 0, nil
	}
	postage, err := id.ParseAmount(t.postage)
	if err != nil {
		return 0, 0, err
	}
	if postage == 0 {
		return 0, 0, clierr.New(clierr.CodeUsage, "--postage must be positive")
	}
	return t.feeRate, postage, nil
}

func newBatchCommand(leaf leafFunc) *cobra.Command {
	var file string
	var tx txFlags
	cmd := leaf("batch", "Create inscriptions and an optional rune etching from a batch file", cobra.NoArgs, signing, func([]string) (Operation, error) {
		feeRate, _, err := tx.parse()
		if err != nil {
			return nil, err
		}
		return Batch{Params: walletops.BatchParams{File: file, FeeRate: feeRate, DryRun: tx.dryRun}}, nil
	})
	cmd.Flags().StringVar(&file, "file", "", "Batch YAML file")
	tx.register(cmd.Flags(), false)
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("fee-rate")
	return cmd
}

func newCreateCommand(leaf leafFunc) *cobra.Command {
	var passphrase string
	cmd := leaf("create", "Create new wallet", cobra.NoArgs, nil, func([]string) (Operation, error) {
		return Create{Params: walletops.CreateParams{Passphrase: passphrase}}, nil
	})
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Encrypt the wallet seed with <PASSPHRASE>")
	return cmd
}

func newInscribeCommand(leaf leafFunc) *cobra.Command {
	var file, destination string
	var tx txFlags
	cmd := leaf("inscribe", "Inscribe a file", cobra.NoArgs, signing, func([]string) (Operation, error) {
		feeRate, postage, err := tx.parse()
		if err != nil {
			return nil, err
		}
		return Inscribe{Params: walletops.InscribeParams{
			File:        file,
			Destination: strings.TrimSpace(destination),
			FeeRate:     feeRate,
			Postage:     postage,
			DryRun:      tx.dryRun,
		}}, nil
	})
	cmd.Flags().StringVar(&file, "file", "", "Inscribe sat with contents of <FILE>")
	cmd.Flags().StringVar(&destination, "destination", "", "Send inscription to <DESTINATION>")
	tx.register(cmd.Flags(), true)
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("fee-rate")
	return cmd
}

func newMintCommand(leaf leafFunc) *cobra.Command {
	var runeName, destination string
	var tx txFlags
	cmd := leaf("mint", "Mint a rune", cobra.NoArgs, signing, func([]string) (Operation, error) {
		feeRate, postage, err := tx.parse()
		if err != nil {
			return nil, err
		}
		if _, err := id.ParseRune(runeName); err != nil {
			return nil, err
		}
		return Mint{Params: walletops.MintParams{
			Rune:        runeName,
			Destination: strings.TrimSpace(destination),
			FeeRate:     feeRate,
			Postage:     postage,
			DryRun:      tx.dryRun,
		}}, nil
	})
	cmd.Flags().StringVar(&runeName, "rune", "", "Mint <RUNE>")
	cmd.Flags().StringVar(&destination, "destination", "", "Send minted runes to <DESTINATION>")
	tx.register(cmd.Flags(), true)
	_ = cmd.MarkFlagRequired("rune")
	_ = cmd.MarkFlagRequired("fee-rate")
	return cmd
}

func newReceiveCommand(leaf leafFunc) *cobra.Command {
	var number int
	cmd := leaf("receive", "Generate receive addresses", cobra.NoArgs, nil, func([]string) (Operation, error) {
		if number < 1 {
			return nil, clierr.New(clierr.CodeUsage, "--number must be at least 1")
		}
		return Receive{Params: walletops.ReceiveParams{Number: number}}, nil
	})
	cmd.Flags().IntVarP(&number, "number", "n", 1, "Generate <NUMBER> addresses")
	return cmd
}

func newRestoreCommand(leaf leafFunc) *cobra.Command {
	var seed, keystore, passphrase string
	cmd := leaf("restore", "Restore wallet from a seed or keystore", cobra.NoArgs, nil, func([]string) (Operation, error) {
		return Restore{Params: walletops.RestoreParams{Seed: seed, Keystore: keystore, Passphrase: passphrase}}, nil
	})
	cmd.Flags().StringVar(&seed, "seed", "", "Restore from hex <SEED>")
	cmd.Flags().StringVar(&keystore, "keystore", "", "Restore from a `wallet dump` <FILE>")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Seed passphrase")
	cmd.MarkFlagsMutuallyExclusive("seed", "keystore")
	cmd.MarkFlagsOneRequired("seed", "keystore")
	return cmd
}

func newSatsCommand(leaf leafFunc) *cobra.Command {
	var ranges bool
	cmd := leaf("sats", "List wallet satoshis", cobra.NoArgs, nil, func([]string) (Operation, error) {
		return Sats{Params: walletops.SatsParams{Ranges: ranges}}, nil
	})
	cmd.Flags().BoolVar(&ranges, "ranges", false, "List every sat range instead of rare sats")
	return cmd
}

func newSendCommand(leaf leafFunc) *cobra.Command {
	var tx txFlags
	cmd := leaf("send <ADDRESS> <ASSET>", "Send sat, inscription or runes", cobra.ExactArgs(2), signing, func(args []string) (Operation, error) {
		feeRate, postage, err := tx.parse()
		if err != nil {
			return nil, err
		}
		if _, err := id.ParseOutgoing(args[1]); err != nil {
			return nil, err
		}
		return Send{Params: walletops.SendParams{
			Address: strings.TrimSpace(args[0]),
			Asset:   args[1],
			FeeRate: feeRate,
			Postage: postage,
			DryRun:  tx.dryRun,
		}}, nil
	})
	tx.register(cmd.Flags(), true)
	_ = cmd.MarkFlagRequired("fee-rate")
	return cmd
}

func newTransactionsCommand(leaf leafFunc) *cobra.Command {
	var limit int
	cmd := leaf("transactions", "See wallet transactions", cobra.NoArgs, nil, func([]string) (Operation, error) {
		if limit < 0 {
			return nil, clierr.New(clierr.CodeUsage, "--limit must not be negative")
		}
		return Transactions{Params: walletops.TransactionsParams{Limit: limit}}, nil
	})
	cmd.Flags().IntVar(&limit, "limit", 0, "Fetch at most <LIMIT> transactions")
	return cmd
}

// Parse parses wallet arguments, the tokens after `wallet`, into an
// Invocation without performing any I/O.
func Parse(args []string) (Invocation, error) {
	var parsed *Invocation
	cmd := NewCommand(func(_ *cobra.Command, inv Invocation) error {
		parsed = &inv
		return nil
	})
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})
	if err := cmd.Execute(); err != nil {
		if clierr.Typed(err) {
			return Invocation{}, err
		}
		return Invocation{}, clierr.Wrap(clierr.CodeUsage, "parse wallet arguments", err)
	}
	if parsed == nil {
		return Invocation{}, clierr.New(clierr.CodeUsage, "missing wallet operation")
	}
	return *parsed, nil
}
