package walletops

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
	"github.com/ggonzalez94/ord-wallet/internal/id"
)

type BatchMode string

const (
	BatchModeSeparateOutputs BatchMode = "separate-outputs"
	BatchModeSameSat         BatchMode = "same-sat"
	BatchModeSharedOutput    BatchMode = "shared-output"
)

// maxDivisibility is the largest divisibility a rune may be etched with.
const maxDivisibility = 38

// BatchFile is the YAML document read by `wallet batch`.
type BatchFile struct {
	Mode         BatchMode      `yaml:"mode"`
	Postage      uint64         `yaml:"postage"`
	Inscriptions []BatchEntry   `yaml:"inscriptions"`
	Etching      *BatchEtching  `yaml:"etching"`
	Metadata     map[string]any `yaml:"metadata"`
}

type BatchEntry struct {
	File        string `yaml:"file"`
	Destination string `yaml:"destination"`
}

type BatchEtching struct {
	Rune         string        `yaml:"rune" json:"rune"`
	Divisibility uint8         `yaml:"divisibility" json:"divisibility"`
	Premine      string        `yaml:"premine" json:"premine"`
	Supply       string        `yaml:"supply" json:"supply"`
	Symbol       string        `yaml:"symbol" json:"symbol,omitempty"`
	Terms        *EtchingTerms `yaml:"terms" json:"terms,omitempty"`
	Turbo        bool          `yaml:"turbo" json:"turbo"`
}

type EtchingTerms struct {
	Amount string    `yaml:"amount" json:"amount"`
	Cap    uint64    `yaml:"cap" json:"cap"`
	Height [2]uint64 `yaml:"height" json:"height"`
	Offset [2]uint64 `yaml:"offset" json:"offset"`
}

// LoadBatchFile reads and validates a batch file. Unknown keys are rejected.
func LoadBatchFile(path string) (BatchFile, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return BatchFile{}, clierr.Wrap(clierr.CodeUsage, "read batch file", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	var file BatchFile
	if err := dec.Decode(&file); err != nil {
		return BatchFile{}, clierr.Wrap(clierr.CodeUsage, "parse batch file", err)
	}
	if err := file.validate(); err != nil {
		return BatchFile{}, err
	}
	return file, nil
}

func (f *BatchFile) validate() error {
	switch f.Mode {
	case "":
		f.Mode = BatchModeSeparateOutputs
	case BatchModeSeparateOutputs, BatchModeSameSat, BatchModeSharedOutput:
	default:
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown batch mode %q", f.Mode))
	}
	if len(f.Inscriptions) == 0 {
		return clierr.New(clierr.CodeUsage, "batch file must list at least one inscription")
	}
	for i, entry := range f.Inscriptions {
		if strings.TrimSpace(entry.File) == "" {
			return clierr.New(clierr.CodeUsage, fmt.Sprintf("inscription %d is missing a file", i))
		}
		if f.Mode == BatchModeSameSat && entry.Destination != "" && i > 0 {
			return clierr.New(clierr.CodeUsage, "same-sat batches can only set a destination on the first inscription")
		}
	}
	if f.Etching != nil {
		return f.Etching.validate()
	}
	return nil
}

// validate checks that supply equals premine plus cap times amount, all in
// the rune's base units.
func (e *BatchEtching) validate() error {
	if _, err := id.ParseRune(e.Rune); err != nil {
		return err
	}
	if e.Divisibility > maxDivisibility {
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("etching divisibility must be at most %d", maxDivisibility))
	}
	units := func(field, v string) (*big.Int, error) {
		if strings.TrimSpace(v) == "" {
			return new(big.Int), nil
		}
		s, err := id.DecimalToBaseUnits(v, int(e.Divisibility))
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "etching "+field, err)
		}
		n, _ := new(big.Int).SetString(s, 10)
		return n, nil
	}
	premine, err := units("premine", e.Premine)
	if err != nil {
		return err
	}
	supply, err := units("supply", e.Supply)
	if err != nil {
		return err
	}
	minted := new(big.Int)
	if e.Terms != nil {
		amount, err := units("terms amount", e.Terms.Amount)
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			return clierr.New(clierr.CodeUsage, "etching terms amount must be positive")
		}
		if e.Terms.Cap == 0 {
			return clierr.New(clierr.CodeUsage, "etching terms cap must be positive")
		}
		minted.Mul(amount, new(big.Int).SetUint64(e.Terms.Cap))
	}
	if supply.Cmp(new(big.Int).Add(premine, minted)) != 0 {
		return clierr.New(clierr.CodeUsage, "etching supply must equal premine + terms.cap * terms.amount")
	}
	if supply.Sign() == 0 {
		return clierr.New(clierr.CodeUsage, "etching supply must be positive")
	}
	return nil
}
