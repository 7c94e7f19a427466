package domain

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// User is an exchange account. BalanceCents is a cached running total kept
// consistent with the sum of the user's ledger entries; every change to it
// is written inside the same transaction as the entry that explains it.
type User struct {
	ID            string
	WalletAddress string
	BalanceCents  int64
	CreatedAt     time.Time
}

// NormalizeWalletAddress validates addr as a hex Ethereum address and returns
// its EIP-55 checksummed form. It returns ErrInvalidWalletAddress for
// anything that is not a 20-byte hex address.
func NormalizeWalletAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", ErrInvalidWalletAddress
	}
	return common.HexToAddress(addr).Hex(), nil
}
