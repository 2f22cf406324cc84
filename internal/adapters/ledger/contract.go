// Package ledger reads vote tallies and season state from the voting
// contract. It never sends transactions.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/okian/seasonboard/internal/domain/model"
)

// Contract method names.
const (
	methodVotesInSeason = "getVotesInSeason"
	methodPeriodInfo    = "getPeriodInfo"
	methodCurrentSeason = "currentSeason"
)

// VotingABI is the read-only subset of the voting contract used here.
const VotingABI = `[
  {"type":"function","name":"getVotesInSeason","stateMutability":"view",
   "inputs":[{"name":"season","type":"uint256"},{"name":"itemId","type":"uint256"}],
   "outputs":[{"name":"votes","type":"uint256"}]},
  {"type":"function","name":"getPeriodInfo","stateMutability":"view",
   "inputs":[{"name":"season","type":"uint256"}],
   "outputs":[
     {"name":"startTime","type":"uint256"},
     {"name":"endTime","type":"uint256"},
     {"name":"totalVotes","type":"uint256"},
     {"name":"totalDelegations","type":"uint256"},
     {"name":"finalized","type":"bool"},
     {"name":"activeItemCount","type":"uint256"}]},
  {"type":"function","name":"currentSeason","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"season","type":"uint256"}]}
]`

// PeriodInfo is the decoded answer of getPeriodInfo.
type PeriodInfo struct {
	Season           uint64
	StartTime        time.Time
	EndTime          time.Time
	TotalVotes       *big.Int
	TotalDelegations *big.Int
	Finalized        bool
	ActiveItemCount  uint64
}

// Period projects the info onto the domain model.
func (p PeriodInfo) Period() model.Period {
	return model.Period{
		SeasonNumber: p.Season,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		Finalized:    p.Finalized,
	}
}

// Contract is the typed boundary to the voting contract.
type Contract interface {
	VotesInSeason(ctx context.Context, season, itemID uint64) (*big.Int, error)
	PeriodInfo(ctx context.Context, season uint64) (PeriodInfo, error)
	CurrentSeason(ctx context.Context) (uint64, error)
}

// EthContract calls the voting contract through eth_call.
type EthContract struct {
	caller  ethereum.ContractCaller
	address common.Address
	abi     abi.ABI
	closer  func()
}

// Compile-time interface check
var _ Contract = (*EthContract)(nil)

// NewEthContract binds the voting ABI to address using caller.
func NewEthContract(caller ethereum.ContractCaller, address common.Address) (*EthContract, error) {
	parsed, err := abi.JSON(strings.NewReader(VotingABI))
	if err != nil {
		return nil, fmt.Errorf("parse voting abi: %w", err)
	}
	return &EthContract{caller: caller, address: address, abi: parsed}, nil
}

// Dial connects to rpcURL and binds the contract at the hex address.
func Dial(ctx context.Context, rpcURL, address string) (*EthContract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address %q", address)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrTransient, rpcURL, err)
	}
	c, err := NewEthContract(client, common.HexToAddress(address))
	if err != nil {
		client.Close()
		return nil, err
	}
	c.closer = client.Close
	return c, nil
}

// Close releases the RPC connection when the contract owns one.
func (c *EthContract) Close() {
	if c.closer != nil {
		c.closer()
	}
}

func (c *EthContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := c.address
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransient, method, err)
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %w", ErrDecode, method, err)
	}
	return out, nil
}

// VotesInSeason returns the raw vote weight of itemID in season.
func (c *EthContract) VotesInSeason(ctx context.Context, season, itemID uint64) (*big.Int, error) {
	out, err := c.call(ctx, methodVotesInSeason, new(big.Int).SetUint64(season), new(big.Int).SetUint64(itemID))
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrDecode, methodVotesInSeason, len(out))
	}
	return asBig(methodVotesInSeason, out[0])
}

// PeriodInfo returns the decoded season tuple.
func (c *EthContract) PeriodInfo(ctx context.Context, season uint64) (PeriodInfo, error) {
	out, err := c.call(ctx, methodPeriodInfo, new(big.Int).SetUint64(season))
	if err != nil {
		return PeriodInfo{}, err
	}
	if len(out) != 6 {
		return PeriodInfo{}, fmt.Errorf("%w: %s returned %d values", ErrDecode, methodPeriodInfo, len(out))
	}

	var nums [5]*big.Int
	for i, idx := range []int{0, 1, 2, 3, 5} {
		if nums[i], err = asBig(methodPeriodInfo, out[idx]); err != nil {
			return PeriodInfo{}, err
		}
	}
	finalized, ok := out[4].(bool)
	if !ok {
		return PeriodInfo{}, fmt.Errorf("%w: %s finalized is %T", ErrDecode, methodPeriodInfo, out[4])
	}

	return PeriodInfo{
		Season:           season,
		StartTime:        unixTime(nums[0]),
		EndTime:          unixTime(nums[1]),
		TotalVotes:       nums[2],
		TotalDelegations: nums[3],
		Finalized:        finalized,
		ActiveItemCount:  nums[4].Uint64(),
	}, nil
}

// CurrentSeason returns the season the contract is accepting votes for.
func (c *EthContract) CurrentSeason(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, methodCurrentSeason)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: %s returned %d values", ErrDecode, methodCurrentSeason, len(out))
	}
	n, err := asBig(methodCurrentSeason, out[0])
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflows uint64", ErrDecode, methodCurrentSeason)
	}
	return n.Uint64(), nil
}

func asBig(method string, v interface{}) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: %s value is %T", ErrDecode, method, v)
	}
	return n, nil
}

func unixTime(n *big.Int) time.Time {
	if n == nil || n.Sign() == 0 || !n.IsInt64() {
		return time.Time{}
	}
	return time.Unix(n.Int64(), 0).UTC()
}
