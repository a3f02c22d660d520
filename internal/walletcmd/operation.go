package walletcmd

import "github.com/ggonzalez94/ord-wallet/internal/walletops"

// DefaultWalletName is used when --name is not given.
const DefaultWalletName = "ord"

// Operation is one parsed wallet subcommand. The set of variants is closed.
type Operation interface {
	// Name is the subcommand that selects the operation.
	Name() string
	isOperation()
}

type (
	Balance      struct{}
	Batch        struct{ Params walletops.BatchParams }
	Create       struct{ Params walletops.CreateParams }
	Dump         struct{}
	Inscribe     struct{ Params walletops.InscribeParams }
	Inscriptions struct{}
	Mint         struct{ Params walletops.MintParams }
	Receive      struct{ Params walletops.ReceiveParams }
	Restore      struct{ Params walletops.RestoreParams }
	Resume       struct{}
	Sats         struct{ Params walletops.SatsParams }
	Send         struct{ Params walletops.SendParams }
	Transactions struct{ Params walletops.TransactionsParams }
	Outputs      struct{}
	Cardinals    struct{}
)

func (Balance) Name() string      { return "balance" }
func (Batch) Name() string        { return "batch" }
func (Create) Name() string       { return "create" }
func (Dump) Name() string         { return "dump" }
func (Inscribe) Name() string     { return "inscribe" }
func (Inscriptions) Name() string { return "inscriptions" }
func (Mint) Name() string         { return "mint" }
func (Receive) Name() string      { return "receive" }
func (Restore) Name() string      { return "restore" }
func (Resume) Name() string       { return "resume" }
func (Sats) Name() string         { return "sats" }
func (Send) Name() string         { return "send" }
func (Transactions) Name() string { return "transactions" }
func (Outputs) Name() string      { return "outputs" }
func (Cardinals) Name() string    { return "cardinals" }

func (Balance) isOperation()      {}
func (Batch) isOperation()        {}
func (Create) isOperation()       {}
func (Dump) isOperation()         {}
func (Inscribe) isOperation()     {}
func (Inscriptions) isOperation() {}
func (Mint) isOperation()         {}
func (Receive) isOperation()      {}
func (Restore) isOperation()      {}
func (Resume) isOperation()       {}
func (Sats) isOperation()         {}
func (Send) isOperation()         {}
func (Transactions) isOperation() {}
func (Outputs) isOperation()      {}
func (Cardinals) isOperation()    {}

// Invocation is one fully parsed `wallet` request. Empty ServerURL and
// Address mean the flag was not given.
type Invocation struct {
	Name      string
	NoSync    bool
	ServerURL string
	Address   string
	Operation Operation
}
