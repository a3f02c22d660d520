package ordclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ggonzalez94/ord-wallet/internal/cache"
	"github.com/ggonzalez94/ord-wallet/internal/httpx"
	"github.com/ggonzalez94/ord-wallet/internal/logging"
	"github.com/ggonzalez94/ord-wallet/internal/model"
)

const (
	outputTTL      = 15 * time.Second
	inscriptionTTL = 30 * time.Second
	runeTTL        = 60 * time.Second
)

// Client talks to the JSON API of an ord server.
type Client struct {
	http    *httpx.Client
	baseURL *url.URL
	cache   *cache.Store
	log     *slog.Logger
	// tip is the last chain height the server reported; 0 until known.
	tip uint64
}

type Option func(*Client)

// WithCache serves repeated lookups from store for a short TTL.
func WithCache(store *cache.Store) Option {
	return func(c *Client) { c.cache = store }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

func New(httpClient *httpx.Client, baseURL *url.URL, opts ...Option) *Client {
	c := &Client{http: httpClient, baseURL: baseURL, log: logging.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the server URL with any password masked.
func (c *Client) BaseURL() string {
	return c.baseURL.Redacted()
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.TrimRight(c.baseURL.String(), "/") + "/" + strings.Join(escaped, "/")
}

func (c *Client) Status(ctx context.Context) (model.ServerStatus, error) {
	var status model.ServerStatus
	if _, err := httpx.GetJSON(ctx, c.http, c.endpoint("status"), &status); err != nil {
		return model.ServerStatus{}, err
	}
	if status.Height != nil && *status.Height > 0 {
		c.tip = uint64(*status.Height)
	}
	return status, nil
}

func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if _, err := httpx.GetJSON(ctx, c.http, c.endpoint("blockheight"), &height); err != nil {
		return 0, err
	}
	c.tip = height
	return height, nil
}

type addressResponse struct {
	Outputs      []string `json:"outputs"`
	Inscriptions []string `json:"inscriptions"`
	SatBalance   uint64   `json:"sat_balance"`
}

func (c *Client) Address(ctx context.Context, address string) (model.AddressInfo, error) {
	var resp addressResponse
	if _, err := httpx.GetJSON(ctx, c.http, c.endpoint("address", address), &resp); err != nil {
		return model.AddressInfo{}, err
	}
	return model.AddressInfo{
		Outputs:      resp.Outputs,
		Inscriptions: resp.Inscriptions,
		SatBalance:   resp.SatBalance,
	}, nil
}

type pileResponse struct {
	Amount       json.Number `json:"amount"`
	Divisibility uint8       `json:"divisibility"`
	Symbol       *string     `json:"symbol"`
}

type outputResponse struct {
	Address      *string                 `json:"address"`
	Indexed      bool                    `json:"indexed"`
	Inscriptions []string                `json:"inscriptions"`
	Outpoint     string                  `json:"outpoint"`
	Runes        map[string]pileResponse `json:"runes"`
	SatRanges    [][2]uint64             `json:"sat_ranges"`
	Spent        bool                    `json:"spent"`
	Transaction  string                  `json:"transaction"`
	Value        uint64                  `json:"value"`
}

func (c *Client) Output(ctx context.Context, outpoint string) (model.Output, error) {
	var resp outputResponse
	if err := c.cachedGet(ctx, c.endpoint("output", outpoint), outputTTL, &resp); err != nil {
		return model.Output{}, err
	}
	out := model.Output{
		Outpoint:     resp.Outpoint,
		Value:        resp.Value,
		Transaction:  resp.Transaction,
		Inscriptions: resp.Inscriptions,
		Spent:        resp.Spent,
		Indexed:      resp.Indexed,
	}
	if out.Outpoint == "" {
		out.Outpoint = outpoint
	}
	if resp.Address != nil {
		out.Address = *resp.Address
	}
	if len(resp.Runes) > 0 {
		out.Runes = make(map[string]model.Pile, len(resp.Runes))
		for name, pile := range resp.Runes {
			p := model.Pile{Amount: pile.Amount.String(), Divisibility: pile.Divisibility}
			if pile.Symbol != nil {
				p.Symbol = *pile.Symbol
			}
			out.Runes[name] = p
		}
	}
	for _, r := range resp.SatRanges {
		out.SatRanges = append(out.SatRanges, model.SatRange(r))
	}
	return out, nil
}

type inscriptionResponse struct {
	Address       *string `json:"address"`
	ContentLength *uint64 `json:"content_length"`
	ContentType   *string `json:"content_type"`
	Height        uint64  `json:"height"`
	ID            string  `json:"id"`
	Number        int64   `json:"number"`
	SatPoint      string  `json:"satpoint"`
	Value         *uint64 `json:"value"`
}

func (c *Client) Inscription(ctx context.Context, inscriptionID string) (model.Inscription, error) {
	var resp inscriptionResponse
	if err := c.cachedGet(ctx, c.endpoint("inscription", inscriptionID), inscriptionTTL, &resp); err != nil {
		return model.Inscription{}, err
	}
	ins := model.Inscription{
		ID:       resp.ID,
		Number:   resp.Number,
		SatPoint: resp.SatPoint,
		Height:   resp.Height,
	}
	if resp.Address != nil {
		ins.Address = *resp.Address
	}
	if resp.ContentLength != nil {
		ins.ContentLength = *resp.ContentLength
	}
	if resp.ContentType != nil {
		ins.ContentType = *resp.ContentType
	}
	if resp.Value != nil {
		ins.Value = *resp.Value
	}
	return ins, nil
}

type runeResponse struct {
	Entry struct {
		Divisibility uint8   `json:"divisibility"`
		Etching      string  `json:"etching"`
		Mints        uint64  `json:"mints"`
		SpacedRune   string  `json:"spaced_rune"`
		Symbol       *string `json:"symbol"`
	} `json:"entry"`
	ID       string `json:"id"`
	Mintable bool   `json:"mintable"`
}

func (c *Client) Rune(ctx context.Context, name string) (model.Rune, error) {
	var resp runeResponse
	if err := c.cachedGet(ctx, c.endpoint("rune", name), runeTTL, &resp); err != nil {
		return model.Rune{}, err
	}
	r := model.Rune{
		ID:           resp.ID,
		SpacedRune:   resp.Entry.SpacedRune,
		Divisibility: resp.Entry.Divisibility,
		Etching:      resp.Entry.Etching,
		Mints:        resp.Entry.Mints,
		Mintable:     resp.Mintable,
	}
	if resp.Entry.Symbol != nil {
		r.Symbol = *resp.Entry.Symbol
	}
	return r, nil
}

func (c *Client) cachedGet(ctx context.Context, endpoint string, ttl time.Duration, out any) error {
	if c.cache != nil {
		res, err := c.cache.Get(endpoint, c.tip)
		if err == nil && res.Hit && !res.Stale {
			if err := json.Unmarshal(res.Value, out); err == nil {
				c.log.Debug("cache hit", "endpoint", endpoint, "age", res.Age)
				return nil
			}
		}
	}
	body, err := httpx.GetJSON(ctx, c.http, endpoint, out)
	if err != nil {
		return err
	}
	if c.cache != nil {
		if err := c.cache.Set(endpoint, body, ttl, c.tip); err != nil {
			c.log.Warn("cache write failed", "endpoint", endpoint, "error", err)
		}
	}
	return nil
}

// ExplorerURL links an inscription on the server's web interface. Server
// credentials are left out of the link.
func (c *Client) ExplorerURL(inscriptionID string) string {
	u := *c.baseURL
	u.User = nil
	return strings.TrimRight(u.String(), "/") + "/inscription/" + url.PathEscape(inscriptionID)
}

// ParseServerURL validates an ord server endpoint. Relative or host-less
// URLs are rejected.
func ParseServerURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server URL %q must include a scheme and host", raw)
	}
	return u, nil
}
