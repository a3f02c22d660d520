package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Wallet    string    `json:"wallet,omitempty"`
}

// ServerStatus is the subset of the ord server /status document the wallet checks.
type ServerStatus struct {
	Chain              string `json:"chain"`
	Height             *int64 `json:"height"`
	AddressIndex       bool   `json:"address_index"`
	RuneIndex          bool   `json:"rune_index"`
	SatIndex           bool   `json:"sat_index"`
	UnrecoverableReorg bool   `json:"unrecoverable_reorg"`
}

type AddressInfo struct {
	Outputs      []string `json:"outputs"`
	Inscriptions []string `json:"inscriptions"`
	SatBalance   uint64   `json:"sat_balance"`
}

type Pile struct {
	Amount       string `json:"amount"`
	Divisibility uint8  `json:"divisibility"`
	Symbol       string `json:"symbol,omitempty"`
}

type SatRange [2]uint64

type Output struct {
	Outpoint     string          `json:"outpoint"`
	Address      string          `json:"address,omitempty"`
	Value        uint64          `json:"value"`
	Transaction  string          `json:"transaction"`
	Inscriptions []string        `json:"inscriptions,omitempty"`
	Runes        map[string]Pile `json:"runes,omitempty"`
	SatRanges    []SatRange      `json:"sat_ranges,omitempty"`
	Spent        bool            `json:"spent"`
	Indexed      bool            `json:"indexed"`
}

// Cardinal reports whether the output carries neither inscriptions nor runes.
func (o Output) Cardinal() bool {
	return len(o.Inscriptions) == 0 && len(o.Runes) == 0
}

type Inscription struct {
	ID            string `json:"id"`
	Number        int64  `json:"number"`
	SatPoint      string `json:"satpoint"`
	Address       string `json:"address,omitempty"`
	Value         uint64 `json:"value"`
	ContentType   string `json:"content_type,omitempty"`
	ContentLength uint64 `json:"content_length,omitempty"`
	Height        uint64 `json:"height"`
}

type Rune struct {
	ID           string `json:"id"`
	SpacedRune   string `json:"spaced_rune"`
	Divisibility uint8  `json:"divisibility"`
	Symbol       string `json:"symbol,omitempty"`
	Etching      string `json:"etching"`
	Mints        uint64 `json:"mints"`
	Mintable     bool   `json:"mintable"`
}

// Balance is reported in sats, split by what the sats carry.
type Balance struct {
	Cardinal uint64            `json:"cardinal"`
	Ordinal  uint64            `json:"ordinal"`
	Runic    uint64            `json:"runic"`
	Runes    map[string]string `json:"runes,omitempty"`
	Total    uint64            `json:"total"`
}

type OutputEntry struct {
	Output       string          `json:"output"`
	Amount       uint64          `json:"amount"`
	Inscriptions []string        `json:"inscriptions,omitempty"`
	Runes        map[string]Pile `json:"runes,omitempty"`
	SatRanges    []string        `json:"sat_ranges,omitempty"`
}

type CardinalEntry struct {
	Output string `json:"output"`
	Amount uint64 `json:"amount"`
}

type InscriptionEntry struct {
	Inscription string `json:"inscription"`
	Location    string `json:"location"`
	Explorer    string `json:"explorer"`
	Postage     uint64 `json:"postage"`
}

type SatEntry struct {
	Sat    uint64 `json:"sat"`
	Output string `json:"output"`
	Offset uint64 `json:"offset"`
	Rarity string `json:"rarity"`
}

type SatRangeEntry struct {
	Output string   `json:"output"`
	Ranges []string `json:"ranges"`
}

type TransactionEntry struct {
	Transaction string `json:"transaction"`
	Source      string `json:"source"`
	Status      string `json:"status,omitempty"`
}

type ReceiveResult struct {
	Addresses []string `json:"addresses"`
}

type WalletCreated struct {
	Name       string `json:"name"`
	Chain      string `json:"chain"`
	Seed       string `json:"seed,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
	Descriptor string `json:"descriptor"`
}

type WalletDump struct {
	Name        string `json:"name"`
	Chain       string `json:"chain"`
	Descriptor  string `json:"descriptor"`
	NextIndex   uint32 `json:"next_index"`
	Keystore    any    `json:"keystore"`
	Fingerprint string `json:"fingerprint"`
}
