package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

// GenesisEntry seeds one balance, with an optional engine allowance.
type GenesisEntry struct {
	Asset     string `json:"asset"`
	Account   string `json:"account"`
	Balance   string `json:"balance"`
	Allowance string `json:"allowance,omitempty"`
}

// Genesis is the JSON document loaded at serve start.
type Genesis struct {
	Entries []GenesisEntry `json:"entries"`
}

// LoadGenesis reads a genesis file and applies it to the ledger.
func LoadGenesis(path string, l *MemoryLedger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read genesis: %w", err)
	}

	var gen Genesis
	if err := json.Unmarshal(data, &gen); err != nil {
		return fmt.Errorf("parse genesis: %w", err)
	}

	for i, entry := range gen.Entries {
		if !common.IsHexAddress(entry.Asset) || !common.IsHexAddress(entry.Account) {
			return fmt.Errorf("genesis entry %d: invalid address", i)
		}
		asset := common.HexToAddress(entry.Asset)
		account := common.HexToAddress(entry.Account)

		balance, ok := new(big.Int).SetString(entry.Balance, 10)
		if !ok {
			return fmt.Errorf("genesis entry %d: invalid balance %q", i, entry.Balance)
		}
		if balance.Sign() > 0 {
			if err := l.Mint(asset, account, balance); err != nil {
				return fmt.Errorf("genesis entry %d: %w", i, err)
			}
		}

		if entry.Allowance == "" {
			continue
		}
		allowance, ok := new(big.Int).SetString(entry.Allowance, 10)
		if !ok {
			return fmt.Errorf("genesis entry %d: invalid allowance %q", i, entry.Allowance)
		}
		if err := l.Approve(asset, account, allowance); err != nil {
			return fmt.Errorf("genesis entry %d: %w", i, err)
		}
	}

	return nil
}
