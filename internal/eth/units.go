package eth

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of wei decimals in one ether
const EtherDecimals = 18

// FormatEther renders a wei amount in ether. Whole amounts keep one decimal
// place, so 1 ether is "1.0".
func FormatEther(wei *big.Int) string {
	s := decimal.NewFromBigInt(wei, -EtherDecimals).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseEther converts an ether amount to wei. Amounts with more than 18
// decimals or below zero are rejected.
func ParseEther(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", amount)
	}

	wei := amount.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount, EtherDecimals)
	}

	return wei.BigInt(), nil
}
