package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

const (
	chainlinkName = "chainlink"

	aggregatorABIJSON = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`
)

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// ChainlinkOptions parameterise the on-chain feed adapter.
type ChainlinkOptions struct {
	RPCURL     string
	XAUAddress string
	XAGAddress string
}

// Chainlink reads XAU/USD and XAG/USD aggregator feeds over Ethereum RPC.
// Feed answers carry eight decimals. Fiat conversion uses the embedded
// fallback table since the chain quotes USD only.
type Chainlink struct {
	opts      ChainlinkOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewChainlink builds the on-chain feed adapter.
func NewChainlink(opts ChainlinkOptions, logger zerolog.Logger) *Chainlink {
	return &Chainlink{opts: opts, logger: logger.With().Str("component", "chainlink_source").Logger()}
}

// Name identifies the adapter in quote source tags.
func (c *Chainlink) Name() string { return chainlinkName }

// Available reports whether RPC endpoint and both feed addresses are configured.
func (c *Chainlink) Available() bool {
	return c.opts.RPCURL != "" && c.opts.XAUAddress != "" && c.opts.XAGAddress != ""
}

// Fetch reads both feeds and normalises them to a full table.
func (c *Chainlink) Fetch(ctx context.Context) (pricing.PriceTable, error) {
	if !c.Available() {
		return pricing.PriceTable{}, fmt.Errorf("%s: rpc url or feed addresses not configured", chainlinkName)
	}

	client, err := c.getClient(ctx)
	if err != nil {
		return pricing.PriceTable{}, fmt.Errorf("%s: %w", chainlinkName, err)
	}

	feeds := map[pricing.Metal]string{
		pricing.Gold:   c.opts.XAUAddress,
		pricing.Silver: c.opts.XAGAddress,
	}

	perOunce := make(map[pricing.Metal]decimal.Decimal, len(feeds))
	for metal, feedAddr := range feeds {
		answer, err := c.latestAnswer(ctx, client, feedAddr)
		if err != nil {
			return pricing.PriceTable{}, fmt.Errorf("%s: %s feed: %w", chainlinkName, metal, err)
		}
		if answer.Sign() <= 0 {
			return pricing.PriceTable{}, fmt.Errorf("%s: %s feed returned non-positive answer", chainlinkName, metal)
		}
		perOunce[metal] = decimal.NewFromBigInt(answer, -8)
	}

	return buildTable(chainlinkName, perOunce, nil, time.Now().UTC())
}

func (c *Chainlink) latestAnswer(ctx context.Context, client *ethclient.Client, feedAddr string) (*big.Int, error) {
	addr := common.HexToAddress(feedAddr)

	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return nil, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, err
	}

	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 5 {
		return nil, errors.New("unexpected latestRoundData response")
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return nil, errors.New("failed to decode latestRoundData answer")
	}
	return answer, nil
}

func (c *Chainlink) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

var _ Source = (*Chainlink)(nil)
