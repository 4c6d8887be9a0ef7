package ledger

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientBalance is returned when the payer does not hold enough of
// the asset to cover the transfer.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrInsufficientAllowance is returned when the payer has not authorized the
// engine to spend the requested amount.
var ErrInsufficientAllowance = errors.New("insufficient allowance")

// ErrInvalidAmount is returned for nil, zero or negative transfer amounts.
var ErrInvalidAmount = errors.New("invalid amount")

// AssetLedger is the custody collaborator for fungible assets. Each call
// either fully succeeds or fails without partial effect. TransferFrom spends
// the payer's prior authorization; Transfer moves engine-custodied funds.
type AssetLedger interface {
	TransferFrom(asset, payer, payee common.Address, amount *big.Int) error
	Transfer(asset, payer, payee common.Address, amount *big.Int) error
}

type balanceKey struct {
	Asset   common.Address
	Account common.Address
}

// MemoryLedger is an in-process fungible-asset ledger with balances and
// engine allowances. It backs the server and tests; the engine only ever
// sees the AssetLedger interface.
type MemoryLedger struct {
	mu         sync.Mutex
	balances   map[balanceKey]*big.Int
	allowances map[balanceKey]*big.Int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[balanceKey]*big.Int),
	}
}

// Mint credits newly created units of an asset to an account.
func (l *MemoryLedger) Mint(asset, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(asset, account, amount)
	return nil
}

// Approve sets the amount of an asset the owner authorizes the engine to
// spend on their behalf. It overwrites any previous allowance.
func (l *MemoryLedger) Approve(asset, owner common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[balanceKey{asset, owner}] = new(big.Int).Set(amount)
	return nil
}

// BalanceOf reports the current balance of an account for an asset.
func (l *MemoryLedger) BalanceOf(asset, account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bal, ok := l.balances[balanceKey{asset, account}]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// TransferFrom moves amount of asset from payer to payee, consuming the
// payer's allowance. Balance and allowance are checked before any mutation.
func (l *MemoryLedger) TransferFrom(asset, payer, payee common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[balanceKey{asset, payer}]
	if bal == nil || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	allowance := l.allowances[balanceKey{asset, payer}]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}

	allowance.Sub(allowance, amount)
	bal.Sub(bal, amount)
	l.credit(asset, payee, amount)
	return nil
}

// Transfer moves amount of asset from payer to payee without an allowance
// check; the engine uses it only for accounts it custodies itself.
func (l *MemoryLedger) Transfer(asset, payer, payee common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[balanceKey{asset, payer}]
	if bal == nil || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	l.credit(asset, payee, amount)
	return nil
}

func (l *MemoryLedger) credit(asset, account common.Address, amount *big.Int) {
	key := balanceKey{asset, account}
	if bal, ok := l.balances[key]; ok {
		bal.Add(bal, amount)
		return
	}
	l.balances[key] = new(big.Int).Set(amount)
}
