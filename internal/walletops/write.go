package walletops

import (
	"context"
	"fmt"
	"math/big"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/id"
	"github.com/ggonzalez94/ord-wallet/internal/model"
)

// Send records an unsigned transfer of sats, an inscription, a specific sat
// or a rune balance to Address after checking the wallet holds it.
func Send(ctx context.Context, w Wallet, p SendParams) (model.Action, error) {
	if err := requireSigner(w, "send"); err != nil {
		return model.Action{}, err
	}
	if err := checkFeeRate(p.FeeRate); err != nil {
		return model.Action{}, err
	}
	if err := w.ValidateAddress(p.Address); err != nil {
		return model.Action{}, clierr.Wrap(clierr.CodeUsage, "invalid destination", err)
	}
	outgoing, err := id.ParseOutgoing(p.Asset)
	if err != nil {
		return model.Action{}, err
	}
	outputs, err := loadOutputs(ctx, w)
	if err != nil {
		return model.Action{}, err
	}

	action := newAction(w, model.ActionKindSend, p.FeeRate, p.Address, p.DryRun)
	action.Details["asset"] = string(outgoing.Kind)

	switch outgoing.Kind {
	case id.OutgoingAmount:
		inputs, total := selectCardinals(outputs, outgoing.Sats)
		if total < outgoing.Sats {
			return model.Action{}, clierr.New(clierr.CodeOperation, fmt.Sprintf("insufficient cardinal balance: have %d sats, need %d", total, outgoing.Sats))
		}
		action.Details["sats"] = outgoing.Sats
		action.Details["inputs"] = inputs

	case id.OutgoingInscription:
		inscriptionID := outgoing.InscriptionID.String()
		output, ok := findInscription(outputs, inscriptionID)
		if !ok {
			return model.Action{}, clierr.New(clierr.CodeOperation, fmt.Sprintf("inscription %s is not in wallet", inscriptionID))
		}
		action.Details["inscription"] = inscriptionID
		action.Details["inputs"] = []string{output.Outpoint}
		action.Details["postage"] = postageOrDefault(p.Postage)

	case id.OutgoingSatPoint:
		target := outgoing.SatPoint.Outpoint.String()
		var found bool
		for _, o := range outputs {
			if o.Outpoint == target && outgoing.SatPoint.Offset < o.Value {
				found = true
				break
			}
		}
		if !found {
			return model.Action{}, clierr.New(clierr.CodeOperation, fmt.Sprintf("satpoint %s is not in wallet", outgoing.SatPoint))
		}
		action.Details["satpoint"] = outgoing.SatPoint.String()
		action.Details["inputs"] = []string{target}
		action.Details["postage"] = postageOrDefault(p.Postage)

	case id.OutgoingRune:
		entry, err := w.Rune(ctx, outgoing.Rune.Rune)
		if err != nil {
			return model.Action{}, operationError("look up rune "+outgoing.Rune.Spaced, err)
		}
		units, err := id.DecimalToBaseUnits(outgoing.RuneAmount, int(entry.Divisibility))
		if err != nil {
			return model.Action{}, err
		}
		want, _ := new(big.Int).SetString(units, 10)
		have := new(big.Int)
		inputs := make([]string, 0)
		for _, o := range outputs {
			for name, pile := range o.Runes {
				if unspacedRune(name) != outgoing.Rune.Rune {
					continue
				}
				amount, ok := new(big.Int).SetString(pile.Amount, 10)
				if !ok {
					continue
				}
				have.Add(have, amount)
				inputs = append(inputs, o.Outpoint)
			}
		}
		if have.Cmp(want) < 0 {
			return model.Action{}, clierr.New(clierr.CodeOperation, fmt.Sprintf("insufficient %s balance: have %s, need %s",
				outgoing.Rune.Spaced, id.FormatUnits(have.String(), int(entry.Divisibility)), outgoing.RuneAmount))
		}
		action.Details["rune"] = outgoing.Rune.Spaced
		action.Details["rune_id"] = entry.ID
		action.Details["amount"] = units
		action.Details["inputs"] = inputs
		action.Details["postage"] = postageOrDefault(p.Postage)
	}

	return record(w, action)
}

// selectCardinals picks cardinal outputs, largest first, until target sats
// are covered.
func selectCardinals(outputs []model.Output, target uint64) ([]string, uint64) {
	cardinals := make([]model.Output, 0, len(outputs))
	for _, o := range outputs {
		if o.Cardinal() {
			cardinals = append(cardinals, o)
		}
	}
	sort.SliceStable(cardinals, func(i, j int) bool {
		return cardinals[i].Value > cardinals[j].Value
	})
	var total uint64
	inputs := make([]string, 0)
	for _, o := range cardinals {
		if total >= target {
			break
		}
		inputs = append(inputs, o.Outpoint)
		total += o.Value
	}
	return inputs, total
}

func findInscription(outputs []model.Output, inscriptionID string) (model.Output, bool) {
	for _, o := range outputs {
		for _, ins := range o.Inscriptions {
			if ins == inscriptionID {
				return o, true
			}
		}
	}
	return model.Output{}, false
}

func cardinalTotal(outputs []model.Output) uint64 {
	var total uint64
	for _, o := range outputs {
		if o.Cardinal() {
			total += o.Value
		}
	}
	return total
}

type inscriptionFile struct {
	Path        string `json:"file"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func statInscriptionFile(path string) (inscriptionFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return inscriptionFile{}, clierr.Wrap(clierr.CodeUsage, "read inscription file", err)
	}
	if info.IsDir() {
		return inscriptionFile{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("%s is a directory", path))
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		return inscriptionFile{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported inscription file type %q", filepath.Ext(path)))
	}
	return inscriptionFile{Path: path, ContentType: contentType, Size: info.Size()}, nil
}

// Inscribe records an unsigned commit/reveal pair inscribing File.
func Inscribe(ctx context.Context, w Wallet, p InscribeParams) (model.Action, error) {
	if err := requireSigner(w, "inscribe"); err != nil {
		return model.Action{}, err
	}
	if err := checkFeeRate(p.FeeRate); err != nil {
		return model.Action{}, err
	}
	file, err := statInscriptionFile(p.File)
	if err != nil {
		return model.Action{}, err
	}
	postage := postageOrDefault(p.Postage)
	outputs, err := loadOutputs(ctx, w)
	if err != nil {
		return model.Action{}, err
	}
	if have := cardinalTotal(outputs); have < postage {
		return model.Action{}, clierr.New(clierr.CodeOperation, fmt.Sprintf("insufficient cardinal balance for postage: have %d sats, need %d", have, postage))
	}
	destination, fresh, err := resolveDestination(w, p.Destination)
	if err != nil {
		return model.Action{}, err
	}

	action := newAction(w, model.ActionKindInscribe, p.FeeRate, destination, p.DryRun)
	action.Details["file"] = file.Path
	action.Details["content_type"] = file.ContentType
	action.Details["size"] = file.Size
	action.Details["postage"] = postage
	return recordTo(w, action, fresh)
}

// Mint records an unsigned mint of a mintable rune.
func Mint(ctx context.Context, w Wallet, p MintParams) (model.Action, error) {
	if err := requireSigner(w, "mint"); err != nil {
		return model.Action{}, err
	}
	if err := checkFeeRate(p.FeeRate); err != nil {
		return model.Action{}, err
	}
	spaced, err := id.ParseRune(p.Rune)
	if err != nil {
		return model.Action{}, err
	}
	entry, err := w.Rune(ctx, spaced.Rune)
	if err != nil {
		return model.Action{}, operationError("look up rune "+spaced.Spaced, err)
	}
	if !entry.Mintable {
		return model.Action{}, clierr.New(clierr.CodeOperation, fmt.Sprintf("rune %s is not mintable", entry.SpacedRune))
	}
	destination, fresh, err := resolveDestination(w, p.Destination)
	if err != nil {
		return model.Action{}, err
	}

	action := newAction(w, model.ActionKindMint, p.FeeRate, destination, p.DryRun)
	action.Details["rune"] = entry.SpacedRune
	action.Details["rune_id"] = entry.ID
	action.Details["postage"] = postageOrDefault(p.Postage)
	return recordTo(w, action, fresh)
}

// recordTo records action and then claims its destination when it is an
// unclaimed receive address.
func recordTo(w Wallet, action model.Action, fresh bool) (model.Action, error) {
	saved, err := record(w, action)
	if err != nil || !fresh {
		return saved, err
	}
	if err := claimAddress(w, saved, saved.Destination); err != nil {
		return model.Action{}, err
	}
	return saved, nil
}

// BatchResult is the outcome of `wallet batch`: the batch itself and, when
// the batch etches a rune, the pending etching that `wallet resume` tracks.
type BatchResult struct {
	Batch   model.Action  `json:"batch"`
	Etching *model.Action `json:"etching,omitempty"`
}

func Batch(ctx context.Context, w Wallet, p BatchParams) (BatchResult, error) {
	if err := requireSigner(w, "batch"); err != nil {
		return BatchResult{}, err
	}
	if err := checkFeeRate(p.FeeRate); err != nil {
		return BatchResult{}, err
	}
	file, err := LoadBatchFile(p.File)
	if err != nil {
		return BatchResult{}, err
	}

	baseDir := filepath.Dir(p.File)
	inscriptions := make([]map[string]any, 0, len(file.Inscriptions))
	for i, entry := range file.Inscriptions {
		path := entry.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		stat, err := statInscriptionFile(path)
		if err != nil {
			return BatchResult{}, err
		}
		destination := entry.Destination
		if destination != "" {
			if err := w.ValidateAddress(destination); err != nil {
				return BatchResult{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("inscription %d destination", i), err)
			}
		}
		inscriptions = append(inscriptions, map[string]any{
			"file":         stat.Path,
			"content_type": stat.ContentType,
			"size":         stat.Size,
			"destination":  destination,
		})
	}

	postage := postageOrDefault(file.Postage)
	outputs, err := loadOutputs(ctx, w)
	if err != nil {
		return BatchResult{}, err
	}
	need := postage * uint64(len(inscriptions))
	if file.Mode == BatchModeSameSat || file.Mode == BatchModeSharedOutput {
		need = postage
	}
	if have := cardinalTotal(outputs); have < need {
		return BatchResult{}, clierr.New(clierr.CodeOperation, fmt.Sprintf("insufficient cardinal balance for postage: have %d sats, need %d", have, need))
	}

	// Inscriptions without a destination share one fresh wallet address.
	var fallback string
	for _, ins := range inscriptions {
		if ins["destination"] != "" {
			continue
		}
		if fallback == "" {
			if fallback, _, err = resolveDestination(w, ""); err != nil {
				return BatchResult{}, err
			}
		}
		ins["destination"] = fallback
	}

	batch := newAction(w, model.ActionKindBatch, p.FeeRate, fallback, p.DryRun)
	batch.Details["mode"] = string(file.Mode)
	batch.Details["postage"] = postage
	batch.Details["inscriptions"] = inscriptions
	if len(file.Metadata) > 0 {
		batch.Details["metadata"] = file.Metadata
	}

	var etching *model.Action
	if file.Etching != nil {
		spaced, err := id.ParseRune(file.Etching.Rune)
		if err != nil {
			return BatchResult{}, err
		}
		if _, err := w.Rune(ctx, spaced.Rune); err == nil {
			return BatchResult{}, clierr.New(clierr.CodeOperation, fmt.Sprintf("rune %s has already been etched", spaced.Spaced))
		} else if cErr, ok := clierr.As(err); !ok || cErr.Code != clierr.CodeNotFound {
			return BatchResult{}, operationError("look up rune "+spaced.Spaced, err)
		}
		e := newAction(w, model.ActionKindEtching, p.FeeRate, "", p.DryRun)
		e.Details["rune"] = spaced.Spaced
		e.Details["batch"] = batch.ActionID
		e.Details["divisibility"] = file.Etching.Divisibility
		e.Details["premine"] = file.Etching.Premine
		e.Details["supply"] = file.Etching.Supply
		if file.Etching.Symbol != "" {
			e.Details["symbol"] = file.Etching.Symbol
		}
		if file.Etching.Terms != nil {
			e.Details["terms"] = file.Etching.Terms
		}
		if file.Etching.Turbo {
			e.Details["turbo"] = true
		}
		batch.Details["etching"] = e.ActionID
		etching = &e
	}

	saved, err := record(w, batch)
	if err != nil {
		return BatchResult{}, err
	}
	result := BatchResult{Batch: saved}
	if etching != nil {
		savedEtching, err := record(w, *etching)
		if err != nil {
			return BatchResult{}, err
		}
		result.Etching = &savedEtching
	}
	if fallback != "" {
		if err := claimAddress(w, saved, fallback); err != nil {
			return BatchResult{}, err
		}
	}
	return result, nil
}

// Resume checks pending etchings against the server and marks those whose
// rune now exists as etched.
func Resume(ctx context.Context, w Wallet) ([]model.Action, error) {
	if err := requireSigner(w, "resume"); err != nil {
		return nil, err
	}
	pending, err := w.Actions(model.ActionKindEtching, model.ActionStatusPending)
	if err != nil {
		return nil, operationError("list pending etchings", err)
	}
	out := make([]model.Action, 0, len(pending))
	for _, action := range pending {
		name, _ := action.Details["rune"].(string)
		spaced, err := id.ParseRune(name)
		if err != nil {
			return nil, operationError("pending etching "+action.ActionID, err)
		}
		entry, err := w.Rune(ctx, spaced.Rune)
		if err != nil {
			if cErr, ok := clierr.As(err); ok && cErr.Code == clierr.CodeNotFound {
				out = append(out, action)
				continue
			}
			return nil, operationError("look up rune "+spaced.Spaced, err)
		}
		action.Status = model.ActionStatusEtched
		if action.Details == nil {
			action.Details = map[string]any{}
		}
		action.Details["rune_id"] = entry.ID
		action.Transaction = entry.Etching
		action.UpdatedAt = ""
		saved, err := w.SaveAction(action)
		if err != nil {
			return nil, operationError("update etching "+action.ActionID, err)
		}
		out = append(out, saved)
	}
	return out, nil
}
