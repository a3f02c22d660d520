package id

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/ord-wallet/internal/errors"
)

type Outpoint struct {
	TxID string
	Vout uint32
}

func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Vout)
}

type SatPoint struct {
	Outpoint Outpoint
	Offset   uint64
}

func (s SatPoint) String() string {
	return fmt.Sprintf("%s:%d", s.Outpoint, s.Offset)
}

type InscriptionID struct {
	TxID  string
	Index uint32
}

func (i InscriptionID) String() string {
	return fmt.Sprintf("%si%d", i.TxID, i.Index)
}

func ParseOutpoint(input string) (Outpoint, error) {
	txid, vout, ok := strings.Cut(strings.TrimSpace(input), ":")
	if !ok {
		return Outpoint{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid outpoint %q", input))
	}
	if err := checkTxID(txid); err != nil {
		return Outpoint{}, err
	}
	n, err := strconv.ParseUint(vout, 10, 32)
	if err != nil {
		return Outpoint{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid outpoint index in %q", input), err)
	}
	return Outpoint{TxID: strings.ToLower(txid), Vout: uint32(n)}, nil
}

func ParseSatPoint(input string) (SatPoint, error) {
	norm := strings.TrimSpace(input)
	i := strings.LastIndex(norm, ":")
	if i < 0 {
		return SatPoint{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid satpoint %q", input))
	}
	outpoint, err := ParseOutpoint(norm[:i])
	if err != nil {
		return SatPoint{}, err
	}
	offset, err := strconv.ParseUint(norm[i+1:], 10, 64)
	if err != nil {
		return SatPoint{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid satpoint offset in %q", input), err)
	}
	return SatPoint{Outpoint: outpoint, Offset: offset}, nil
}

func ParseInscriptionID(input string) (InscriptionID, error) {
	norm := strings.TrimSpace(input)
	if len(norm) < 66 || norm[64] != 'i' {
		return InscriptionID{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid inscription id %q", input))
	}
	if err := checkTxID(norm[:64]); err != nil {
		return InscriptionID{}, err
	}
	n, err := strconv.ParseUint(norm[65:], 10, 32)
	if err != nil {
		return InscriptionID{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid inscription index in %q", input), err)
	}
	return InscriptionID{TxID: strings.ToLower(norm[:64]), Index: uint32(n)}, nil
}

func checkTxID(txid string) error {
	if len(txid) != 64 {
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid txid %q: expected 64 hex characters", txid))
	}
	if _, err := hex.DecodeString(txid); err != nil {
		return clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid txid %q", txid), err)
	}
	return nil
}
