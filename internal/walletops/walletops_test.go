package walletops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/model"
)

const (
	txA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	txB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	txC = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"

	testAddress = "bcrt1pdestination"
)

type fakeWallet struct {
	name      string
	canSign   bool
	outputs   []model.Output
	runes     map[string]model.Rune
	inscr     map[string]model.Inscription
	addresses []string
	next      int
	saved     []model.Action
	outputErr error
	saveErr   error
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		name:    "ord",
		canSign: true,
		outputs: []model.Output{
			{Outpoint: txA + ":0", Value: 50_000, Transaction: txA, SatRanges: []model.SatRange{{0, 50_000}}},
			{Outpoint: txA + ":1", Value: 20_000, Transaction: txA, SatRanges: []model.SatRange{{5_000_000_000, 5_000_020_000}}},
			{Outpoint: txB + ":0", Value: 10_000, Transaction: txB, Inscriptions: []string{txB + "i0"}, SatRanges: []model.SatRange{{7_000, 17_000}}},
			{Outpoint: txC + ":2", Value: 546, Transaction: txC, Runes: map[string]model.Pile{"UNCOMMON•GOODS": {Amount: "1500", Divisibility: 2, Symbol: "⧉"}}, SatRanges: []model.SatRange{{90_000, 90_546}}},
		},
		runes: map[string]model.Rune{
			"UNCOMMONGOODS": {ID: "1:0", SpacedRune: "UNCOMMON•GOODS", Divisibility: 2, Mintable: true, Etching: txC},
			"CLOSED":        {ID: "2:0", SpacedRune: "CLOSED", Mintable: false},
		},
		inscr: map[string]model.Inscription{
			txB + "i0": {ID: txB + "i0", SatPoint: txB + ":0:0"},
		},
	}
}

func (f *fakeWallet) Name() string        { return f.name }
func (f *fakeWallet) Chain() string       { return "regtest" }
func (f *fakeWallet) CanSign() bool       { return f.canSign }
func (f *fakeWallet) Addresses() []string { return f.addresses }
func (f *fakeWallet) Close() error        { return nil }

func (f *fakeWallet) Outputs(context.Context) ([]model.Output, error) {
	return f.outputs, f.outputErr
}

func (f *fakeWallet) Inscription(_ context.Context, id string) (model.Inscription, error) {
	ins, ok := f.inscr[id]
	if !ok {
		return model.Inscription{}, clierr.New(clierr.CodeNotFound, id+" not found")
	}
	return ins, nil
}

func (f *fakeWallet) Rune(_ context.Context, name string) (model.Rune, error) {
	r, ok := f.runes[name]
	if !ok {
		return model.Rune{}, clierr.New(clierr.CodeNotFound, name+" not found")
	}
	return r, nil
}

func (f *fakeWallet) ExplorerURL(id string) string { return "http://ord.test/inscription/" + id }

func (f *fakeWallet) ValidateAddress(address string) error {
	if !strings.HasPrefix(address, "bcrt1") {
		return errors.New("wrong network")
	}
	return nil
}

func (f *fakeWallet) NextAddress() (string, error) {
	if !f.canSign {
		return f.name, nil
	}
	return fmt.Sprintf("bcrt1pfresh%d", f.next), nil
}

func (f *fakeWallet) NewAddresses(n int) ([]string, error) {
	if !f.canSign {
		return []string{f.name}, nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("bcrt1pfresh%d", f.next))
		f.next++
	}
	f.addresses = append(f.addresses, out...)
	return out, nil
}

func (f *fakeWallet) Dump() (model.WalletDump, error) {
	return model.WalletDump{Name: f.name, Descriptor: "tr(...)"}, nil
}

func (f *fakeWallet) SaveAction(a model.Action) (model.Action, error) {
	if f.saveErr != nil {
		return model.Action{}, f.saveErr
	}
	if a.UpdatedAt == "" {
		a.UpdatedAt = "2026-10-15T00:00:00Z"
	}
	for i := range f.saved {
		if f.saved[i].ActionID == a.ActionID {
			f.saved[i] = a
			return a, nil
		}
	}
	f.saved = append(f.saved, a)
	return a, nil
}

func (f *fakeWallet) Actions(kind string, status model.ActionStatus) ([]model.Action, error) {
	out := make([]model.Action, 0)
	for _, a := range f.saved {
		if (kind == "" || a.Kind == kind) && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func fixedClock(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func readOnly(w *fakeWallet) *fakeWallet {
	w.canSign = false
	w.name = "bcrt1pwatched"
	return w
}

func requireCode(t *testing.T, err error, code clierr.Code) {
	t.Helper()
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != code {
		t.Fatalf("expected error code %d, got %v", code, err)
	}
}

func TestBalanceSplitsBySatKind(t *testing.T) {
	got, err := Balance(context.Background(), newFakeWallet())
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	want := model.Balance{
		Cardinal: 70_000,
		Ordinal:  10_000,
		Runic:    546,
		Runes:    map[string]string{"UNCOMMON•GOODS": "15"},
		Total:    80_546,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected balance (-want +got):\n%s", diff)
	}
}

func TestBalancePassesThroughTypedServerErrors(t *testing.T) {
	w := newFakeWallet()
	w.outputErr = clierr.New(clierr.CodeUnavailable, "server down")
	_, err := Balance(context.Background(), w)
	requireCode(t, err, clierr.CodeUnavailable)

	w.outputErr = errors.New("boom")
	_, err = Balance(context.Background(), w)
	requireCode(t, err, clierr.CodeOperation)
}

func TestCardinalsAndOutputs(t *testing.T) {
	w := newFakeWallet()
	cardinals, err := Cardinals(context.Background(), w)
	if err != nil {
		t.Fatalf("Cardinals failed: %v", err)
	}
	want := []model.CardinalEntry{{Output: txA + ":0", Amount: 50_000}, {Output: txA + ":1", Amount: 20_000}}
	if diff := cmp.Diff(want, cardinals); diff != "" {
		t.Fatalf("unexpected cardinals (-want +got):\n%s", diff)
	}

	outputs, err := Outputs(context.Background(), w)
	if err != nil {
		t.Fatalf("Outputs failed: %v", err)
	}
	if len(outputs) != 4 || outputs[2].Inscriptions[0] != txB+"i0" || outputs[0].SatRanges[0] != "0-50000" {
		t.Fatalf("unexpected outputs: %+v", outputs)
	}
}

func TestInscriptionsResolveLocation(t *testing.T) {
	got, err := Inscriptions(context.Background(), newFakeWallet())
	if err != nil {
		t.Fatalf("Inscriptions failed: %v", err)
	}
	want := []model.InscriptionEntry{{
		Inscription: txB + "i0",
		Location:    txB + ":0:0",
		Explorer:    "http://ord.test/inscription/" + txB + "i0",
		Postage:     10_000,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected inscriptions (-want +got):\n%s", diff)
	}
}

func TestSatsListsRareSats(t *testing.T) {
	got, err := Sats(context.Background(), newFakeWallet(), SatsParams{})
	if err != nil {
		t.Fatalf("Sats failed: %v", err)
	}
	want := []model.SatEntry{
		{Sat: 0, Output: txA + ":0", Offset: 0, Rarity: "mythic"},
		{Sat: 5_000_000_000, Output: txA + ":1", Offset: 0, Rarity: "uncommon"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected sats (-want +got):\n%s", diff)
	}

	ranges, err := Sats(context.Background(), newFakeWallet(), SatsParams{Ranges: true})
	if err != nil {
		t.Fatalf("Sats ranges failed: %v", err)
	}
	if entries := ranges.([]model.SatRangeEntry); len(entries) != 4 || entries[1].Ranges[0] != "5000000000-5000020000" {
		t.Fatalf("unexpected ranges: %+v", entries)
	}
}

func TestSatsRequiresSatIndex(t *testing.T) {
	w := newFakeWallet()
	w.outputs[0].SatRanges = nil
	_, err := Sats(context.Background(), w, SatsParams{})
	requireCode(t, err, clierr.CodeOperation)
}

func TestReceive(t *testing.T) {
	w := newFakeWallet()
	got, err := Receive(context.Background(), w, ReceiveParams{})
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if diff := cmp.Diff([]string{"bcrt1pfresh0"}, got.Addresses); diff != "" {
		t.Fatalf("unexpected addresses (-want +got):\n%s", diff)
	}
	got, err = Receive(context.Background(), readOnly(newFakeWallet()), ReceiveParams{Number: 3})
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if diff := cmp.Diff([]string{"bcrt1pwatched"}, got.Addresses); diff != "" {
		t.Fatalf("address-bound receive should return the bound address (-want +got):\n%s", diff)
	}
}

func TestDumpRequiresKeys(t *testing.T) {
	if _, err := Dump(context.Background(), newFakeWallet(), nil); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	_, err := Dump(context.Background(), readOnly(newFakeWallet()), nil)
	requireCode(t, err, clierr.CodeOperation)
}

func TestSendAmountSelectsLargestCardinals(t *testing.T) {
	fixedClock(t)
	w := newFakeWallet()
	action, err := Send(context.Background(), w, SendParams{Address: testAddress, Asset: "0.0006 btc", FeeRate: 2})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if action.Status != model.ActionStatusPending || action.Kind != model.ActionKindSend {
		t.Fatalf("unexpected action: %+v", action)
	}
	if diff := cmp.Diff([]string{txA + ":0", txA + ":1"}, action.Details["inputs"]); diff != "" {
		t.Fatalf("unexpected inputs (-want +got):\n%s", diff)
	}
	if len(w.saved) != 1 || w.saved[0].CreatedAt != "2026-10-15T12:00:00Z" {
		t.Fatalf("expected one recorded action, got %+v", w.saved)
	}
}

func TestSelectCardinalsLargestFirstKeepsTies(t *testing.T) {
	outputs := []model.Output{
		{Outpoint: "small:0", Value: 1_000},
		{Outpoint: "tie:0", Value: 4_000},
		{Outpoint: "inscribed:0", Value: 90_000, Inscriptions: []string{"x"}},
		{Outpoint: "tie:1", Value: 4_000},
		{Outpoint: "big:0", Value: 6_000},
	}
	inputs, total := selectCardinals(outputs, 12_000)
	if diff := cmp.Diff([]string{"big:0", "tie:0", "tie:1"}, inputs); diff != "" {
		t.Fatalf("unexpected inputs (-want +got):\n%s", diff)
	}
	if total != 14_000 {
		t.Fatalf("unexpected total %d", total)
	}
}

func TestSendRejections(t *testing.T) {
	cases := []struct {
		name   string
		wallet *fakeWallet
		params SendParams
		code   clierr.Code
	}{
		{"address bound", readOnly(newFakeWallet()), SendParams{Address: testAddress, Asset: "1 sat", FeeRate: 1}, clierr.CodeOperation},
		{"no fee rate", newFakeWallet(), SendParams{Address: testAddress, Asset: "1 sat"}, clierr.CodeUsage},
		{"bad address", newFakeWallet(), SendParams{Address: "bc1qmainnet", Asset: "1 sat", FeeRate: 1}, clierr.CodeUsage},
		{"too much", newFakeWallet(), SendParams{Address: testAddress, Asset: "1 btc", FeeRate: 1}, clierr.CodeOperation},
		{"foreign inscription", newFakeWallet(), SendParams{Address: testAddress, Asset: txC + "i0", FeeRate: 1}, clierr.CodeOperation},
		{"rune overdraw", newFakeWallet(), SendParams{Address: testAddress, Asset: "16:UNCOMMON•GOODS", FeeRate: 1}, clierr.CodeOperation},
		{"unknown rune", newFakeWallet(), SendParams{Address: testAddress, Asset: "1:NOPE", FeeRate: 1}, clierr.CodeNotFound},
		{"zero sats", newFakeWallet(), SendParams{Address: testAddress, Asset: "0 sat", FeeRate: 1}, clierr.CodeUsage},
		{"zero bitcoin", newFakeWallet(), SendParams{Address: testAddress, Asset: "0.0 btc", FeeRate: 1}, clierr.CodeUsage},
		{"zero rune amount", newFakeWallet(), SendParams{Address: testAddress, Asset: "0:UNCOMMON•GOODS", FeeRate: 1}, clierr.CodeUsage},
		{"zero decimal rune amount", newFakeWallet(), SendParams{Address: testAddress, Asset: "0.00:UNCOMMON•GOODS", FeeRate: 1}, clierr.CodeUsage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Send(context.Background(), tc.wallet, tc.params)
			requireCode(t, err, tc.code)
			if len(tc.wallet.saved) != 0 {
				t.Fatalf("expected nothing recorded, got %+v", tc.wallet.saved)
			}
		})
	}
}

func TestSendRuneAndInscription(t *testing.T) {
	w := newFakeWallet()
	action, err := Send(context.Background(), w, SendParams{Address: testAddress, Asset: "12.5:UNCOMMON.GOODS", FeeRate: 1})
	if err != nil {
		t.Fatalf("Send rune failed: %v", err)
	}
	if action.Details["amount"] != "1250" || action.Details["rune_id"] != "1:0" {
		t.Fatalf("unexpected rune details: %+v", action.Details)
	}

	action, err = Send(context.Background(), w, SendParams{Address: testAddress, Asset: txB + "i0", FeeRate: 1, DryRun: true})
	if err != nil {
		t.Fatalf("Send inscription failed: %v", err)
	}
	if action.Status != model.ActionStatusDryRun {
		t.Fatalf("expected dry run, got %s", action.Status)
	}
	if len(w.saved) != 1 {
		t.Fatalf("dry runs must not be recorded, saved=%d", len(w.saved))
	}
}

func TestInscribeDerivesDestination(t *testing.T) {
	w := newFakeWallet()
	path := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	action, err := Inscribe(context.Background(), w, InscribeParams{File: path, FeeRate: 3})
	if err != nil {
		t.Fatalf("Inscribe failed: %v", err)
	}
	if action.Destination != "bcrt1pfresh0" || action.Details["size"] != int64(5) {
		t.Fatalf("unexpected action: %+v", action)
	}
	if ct, _ := action.Details["content_type"].(string); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}

	_, err = Inscribe(context.Background(), w, InscribeParams{File: filepath.Join(t.TempDir(), "missing.txt"), FeeRate: 3})
	requireCode(t, err, clierr.CodeUsage)
}

func TestDryRunsLeaveReceiveIndex(t *testing.T) {
	w := newFakeWallet()
	path := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	minted, err := Mint(context.Background(), w, MintParams{Rune: "UNCOMMON•GOODS", FeeRate: 1, DryRun: true})
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	inscribed, err := Inscribe(context.Background(), w, InscribeParams{File: path, FeeRate: 1, DryRun: true})
	if err != nil {
		t.Fatalf("Inscribe failed: %v", err)
	}
	batch, err := Batch(context.Background(), w, BatchParams{File: writeBatch(t, "mode: separate-outputs\ninscriptions:\n  - file: a.txt\n"), FeeRate: 1, DryRun: true})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	for _, dest := range []string{minted.Destination, inscribed.Destination, batch.Batch.Destination} {
		if dest != "bcrt1pfresh0" {
			t.Fatalf("expected the next receive address as destination, got %s", dest)
		}
	}
	if w.next != 0 || len(w.addresses) != 0 {
		t.Fatalf("dry runs advanced the receive index: next=%d addresses=%v", w.next, w.addresses)
	}

	got, err := Receive(context.Background(), w, ReceiveParams{})
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if diff := cmp.Diff([]string{"bcrt1pfresh0"}, got.Addresses); diff != "" {
		t.Fatalf("unexpected receive addresses (-want +got):\n%s", diff)
	}
}

func TestRecordedActionsClaimDestination(t *testing.T) {
	w := newFakeWallet()
	w.saveErr = errors.New("disk full")
	_, err := Mint(context.Background(), w, MintParams{Rune: "UNCOMMON•GOODS", FeeRate: 1})
	requireCode(t, err, clierr.CodeOperation)
	if w.next != 0 {
		t.Fatalf("failed mint advanced the receive index to %d", w.next)
	}

	w.saveErr = nil
	action, err := Mint(context.Background(), w, MintParams{Rune: "UNCOMMON•GOODS", FeeRate: 1})
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if action.Destination != "bcrt1pfresh0" || w.next != 1 {
		t.Fatalf("expected bcrt1pfresh0 claimed, got destination=%s next=%d", action.Destination, w.next)
	}

	result, err := Batch(context.Background(), w, BatchParams{File: writeBatch(t, "mode: separate-outputs\ninscriptions:\n  - file: a.txt\n  - file: a.txt\n"), FeeRate: 1})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if result.Batch.Destination != "bcrt1pfresh1" || w.next != 2 {
		t.Fatalf("expected one shared address claimed, got destination=%s next=%d", result.Batch.Destination, w.next)
	}
}

func TestMintChecksMintable(t *testing.T) {
	w := newFakeWallet()
	if _, err := Mint(context.Background(), w, MintParams{Rune: "UNCOMMON•GOODS", FeeRate: 1, Destination: testAddress}); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	_, err := Mint(context.Background(), w, MintParams{Rune: "CLOSED", FeeRate: 1})
	requireCode(t, err, clierr.CodeOperation)
	_, err = Mint(context.Background(), w, MintParams{Rune: "MISSING", FeeRate: 1})
	requireCode(t, err, clierr.CodeNotFound)
}

func writeBatch(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("write inscription: %v", err)
	}
	path := filepath.Join(dir, "batch.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	return path
}

func TestBatchWithEtchingThenResume(t *testing.T) {
	w := newFakeWallet()
	path := writeBatch(t, `
mode: separate-outputs
postage: 1000
inscriptions:
  - file: a.txt
etching:
  rune: NEW•RUNE
  divisibility: 1
  premine: "10"
  supply: "110"
  terms:
    amount: "10"
    cap: 10
`)
	result, err := Batch(context.Background(), w, BatchParams{File: path, FeeRate: 5})
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if result.Etching == nil || result.Etching.Status != model.ActionStatusPending {
		t.Fatalf("expected pending etching, got %+v", result.Etching)
	}
	if result.Batch.Details["etching"] != result.Etching.ActionID {
		t.Fatalf("batch does not reference its etching: %+v", result.Batch.Details)
	}

	resumed, err := Resume(context.Background(), w)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if len(resumed) != 1 || resumed[0].Status != model.ActionStatusPending {
		t.Fatalf("expected etching to stay pending, got %+v", resumed)
	}

	w.runes["NEWRUNE"] = model.Rune{ID: "900:1", SpacedRune: "NEW•RUNE", Etching: txA}
	resumed, err = Resume(context.Background(), w)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if len(resumed) != 1 || resumed[0].Status != model.ActionStatusEtched || resumed[0].Transaction != txA {
		t.Fatalf("expected etched action, got %+v", resumed)
	}
	pending, _ := w.Actions(model.ActionKindEtching, model.ActionStatusPending)
	if len(pending) != 0 {
		t.Fatalf("expected no pending etchings left, got %+v", pending)
	}
}

func TestBatchFileValidation(t *testing.T) {
	cases := map[string]string{
		"unknown mode":   "mode: weird\ninscriptions:\n  - file: a.txt\n",
		"no inscription": "mode: same-sat\n",
		"unknown key":    "inscriptions:\n  - file: a.txt\nbogus: 1\n",
		"bad supply":     "inscriptions:\n  - file: a.txt\netching:\n  rune: ABC\n  supply: \"5\"\n  premine: \"1\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadBatchFile(writeBatch(t, doc))
			requireCode(t, err, clierr.CodeUsage)
		})
	}
}

func TestBatchRejectsAlreadyEtchedRune(t *testing.T) {
	path := writeBatch(t, "inscriptions:\n  - file: a.txt\netching:\n  rune: UNCOMMON•GOODS\n  premine: \"1\"\n  supply: \"1\"\n")
	_, err := Batch(context.Background(), newFakeWallet(), BatchParams{File: path, FeeRate: 1})
	requireCode(t, err, clierr.CodeOperation)
}

func TestTransactionsListsActionsThenOutputs(t *testing.T) {
	w := newFakeWallet()
	w.saved = []model.Action{{ActionID: "act1", Kind: model.ActionKindMint, Status: model.ActionStatusPending}}
	got, err := Transactions(context.Background(), w, TransactionsParams{})
	if err != nil {
		t.Fatalf("Transactions failed: %v", err)
	}
	want := []model.TransactionEntry{
		{Transaction: "act1", Source: "mint", Status: "pending"},
		{Transaction: txA, Source: "output", Status: "confirmed"},
		{Transaction: txB, Source: "output", Status: "confirmed"},
		{Transaction: txC, Source: "output", Status: "confirmed"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected transactions (-want +got):\n%s", diff)
	}
	limited, err := Transactions(context.Background(), w, TransactionsParams{Limit: 2})
	if err != nil {
		t.Fatalf("Transactions failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}
