package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ggonzalez94/ord-wallet/internal/config"
)

const (
	SeedLength = 32

	purposeTaproot = 86
)

// Scrypt cost used when sealing wallet seeds. Tests lower it.
var (
	ScryptN = keystore.StandardScryptN
	ScryptP = keystore.StandardScryptP
)

// ChainParams maps a configured chain name to btcd network parameters.
func ChainParams(chain string) (*chaincfg.Params, error) {
	switch chain {
	case config.ChainMainnet, "":
		return &chaincfg.MainNetParams, nil
	case config.ChainTestnet:
		return &chaincfg.TestNet3Params, nil
	case config.ChainSignet:
		return &chaincfg.SigNetParams, nil
	case config.ChainRegtest:
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported chain %q", chain)
	}
}

func NewSeed() ([]byte, error) {
	seed := make([]byte, SeedLength)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate seed: %w", err)
	}
	return seed, nil
}

// ParseSeed accepts a hex seed with or without the 0x prefix.
func ParseSeed(raw string) ([]byte, error) {
	clean := strings.TrimSpace(raw)
	if !strings.HasPrefix(clean, "0x") && !strings.HasPrefix(clean, "0X") {
		clean = "0x" + clean
	}
	seed, err := hexutil.Decode(clean)
	if err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, fmt.Errorf("seed must be between %d and %d bytes", hdkeychain.MinSeedBytes, hdkeychain.MaxSeedBytes)
	}
	return seed, nil
}

func EncodeSeed(seed []byte) string {
	return hexutil.Encode(seed)
}

// SealSeed encrypts seed with passphrase using the web3 secret storage format.
func SealSeed(seed []byte, passphrase string) ([]byte, error) {
	sealed, err := keystore.EncryptDataV3(seed, []byte(passphrase), ScryptN, ScryptP)
	if err != nil {
		return nil, fmt.Errorf("encrypt seed: %w", err)
	}
	return json.Marshal(sealed)
}

func OpenSeed(sealed []byte, passphrase string) ([]byte, error) {
	var cj keystore.CryptoJSON
	if err := json.Unmarshal(sealed, &cj); err != nil {
		return nil, fmt.Errorf("decode sealed seed: %w", err)
	}
	seed, err := keystore.DecryptDataV3(cj, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt seed: %w", err)
	}
	return seed, nil
}

// ReadKeystoreFile loads a sealed seed as written by `wallet dump`, either the
// whole dump document or just its keystore object.
func ReadKeystoreFile(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}
	var doc struct {
		Keystore json.RawMessage `json:"keystore"`
		Crypto   json.RawMessage `json:"crypto"`
	}
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("decode keystore file: %w", err)
	}
	switch {
	case len(doc.Keystore) > 0:
		return doc.Keystore, nil
	case len(doc.Crypto) > 0:
		return doc.Crypto, nil
	default:
		return buf, nil
	}
}

// Account is the BIP86 account-level public key of a wallet.
type Account struct {
	XPub        string
	Fingerprint string
	CoinType    uint32
}

func DeriveAccount(seed []byte, params *chaincfg.Params) (Account, error) {
	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return Account{}, fmt.Errorf("derive master key: %w", err)
	}
	masterPub, err := master.ECPubKey()
	if err != nil {
		return Account{}, fmt.Errorf("derive master public key: %w", err)
	}
	key := master
	for _, idx := range []uint32{purposeTaproot, params.HDCoinType, 0} {
		key, err = key.Derive(hdkeychain.HardenedKeyStart + idx)
		if err != nil {
			return Account{}, fmt.Errorf("derive account path: %w", err)
		}
	}
	pub, err := key.Neuter()
	if err != nil {
		return Account{}, fmt.Errorf("neuter account key: %w", err)
	}
	return Account{
		XPub:        pub.String(),
		Fingerprint: hex.EncodeToString(btcutil.Hash160(masterPub.SerializeCompressed())[:4]),
		CoinType:    params.HDCoinType,
	}, nil
}

func (a Account) Descriptor() string {
	return fmt.Sprintf("tr([%s/%d'/%d'/0']%s/0/*)", a.Fingerprint, purposeTaproot, a.CoinType, a.XPub)
}

// ReceiveAddress derives the BIP86 key-path taproot address xpub/0/index.
func ReceiveAddress(xpub string, index uint32, params *chaincfg.Params) (string, error) {
	account, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return "", fmt.Errorf("parse account key: %w", err)
	}
	external, err := account.Derive(0)
	if err != nil {
		return "", fmt.Errorf("derive external chain: %w", err)
	}
	child, err := external.Derive(index)
	if err != nil {
		return "", fmt.Errorf("derive address %d: %w", index, err)
	}
	pub, err := child.ECPubKey()
	if err != nil {
		return "", fmt.Errorf("derive public key %d: %w", index, err)
	}
	outputKey := txscript.ComputeTaprootKeyNoScript(pub)
	addr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), params)
	if err != nil {
		return "", fmt.Errorf("encode taproot address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// ValidateAddress checks that address decodes for the given network.
func ValidateAddress(address string, params *chaincfg.Params) error {
	addr, err := btcutil.DecodeAddress(strings.TrimSpace(address), params)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	if !addr.IsForNet(params) {
		return fmt.Errorf("address %q is not valid on %s", address, params.Name)
	}
	return nil
}
