package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/ord-wallet/internal/config"
	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/logging"
	"github.com/ggonzalez94/ord-wallet/internal/model"
	"github.com/ggonzalez94/ord-wallet/internal/out"
	"github.com/ggonzalez94/ord-wallet/internal/policy"
	"github.com/ggonzalez94/ord-wallet/internal/schema"
	"github.com/ggonzalez94/ord-wallet/internal/version"
	"github.com/ggonzalez94/ord-wallet/internal/walletcmd"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	log         *slog.Logger
	root        *cobra.Command
	lastCommand string
	lastWallet  string
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, log: logging.Discard()}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(context.Background())
	err = normalizeRunError(err)
	if err == nil {
		return 0
	}

	state.renderError("", err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Ordinals and runes wallet client for an ord server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeConfig, "load configuration", err)
			}
			s.settings = settings
			s.log = logging.New(s.runner.stderr, settings.LogLevel)

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			return policy.CheckCommandAllowed(settings.EnableCommands, path)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated, dotted paths allowed)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().StringVar(&s.flags.Chain, "chain", "", "Bitcoin network: mainnet|testnet|signet|regtest")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Overall command timeout, e.g. 30s")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per ord server request")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable the ord response cache")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(walletcmd.NewCommand(s.runWallet))
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// runWallet executes one parsed wallet invocation and prints its envelope.
func (s *runtimeState) runWallet(cmd *cobra.Command, inv walletcmd.Invocation) error {
	s.lastWallet = walletLabel(inv)

	ctx, cancel := context.WithTimeout(cmd.Context(), s.settings.Timeout)
	defer cancel()

	router := walletcmd.NewRouter(walletcmd.NewBuilder(s.log), walletcmd.DefaultHandlers(s.log), s.log)
	data, err := router.Run(ctx, inv, s.settings)
	if err != nil {
		return err
	}
	return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, walletWarnings(inv))
}

func walletLabel(inv walletcmd.Invocation) string {
	switch m := walletcmd.ResolveMode(inv).(type) {
	case walletcmd.AddressBound:
		return m.Address
	case walletcmd.NamedWallet:
		return m.Name
	default:
		return ""
	}
}

func walletWarnings(inv walletcmd.Invocation) []string {
	var warnings []string
	switch op := inv.Operation.(type) {
	case walletcmd.Create:
		warnings = append(warnings, "the seed is shown only once; store it offline")
	case walletcmd.Dump:
		warnings = append(warnings, "output contains the encrypted wallet seed; do not share it")
	case walletcmd.Batch:
		warnings = dryRunWarning(warnings, op.Params.DryRun)
	case walletcmd.Inscribe:
		warnings = dryRunWarning(warnings, op.Params.DryRun)
	case walletcmd.Mint:
		warnings = dryRunWarning(warnings, op.Params.DryRun)
	case walletcmd.Send:
		warnings = dryRunWarning(warnings, op.Params.DryRun)
	}
	switch inv.Operation.(type) {
	case walletcmd.Create, walletcmd.Restore:
		// Neither contacts the ord server.
	default:
		if inv.NoSync {
			warnings = append(warnings, "ord server index was not checked (--no-sync)")
		}
	}
	return warnings
}

func dryRunWarning(warnings []string, dryRun bool) []string {
	if !dryRun {
		return warnings
	}
	return append(warnings, "dry run: action was not recorded")
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
	return cmd
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Wallet:    s.lastWallet,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := clierr.TypeName(clierr.CodeInternal)
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		typ = clierr.TypeName(cErr.Code)
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Wallet:    s.lastWallet,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	if isTimeout(err) {
		return clierr.Wrap(clierr.CodeUnavailable, "command timed out", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"required flag(s)",
		"flag needs an argument",
		"if any flags in the group",
		"at least one of the flags",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
