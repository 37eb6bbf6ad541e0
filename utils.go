package ethsign

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress accepts a 0x-prefixed or bare 40 hex character address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

func IsZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}

func ParseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id: %q", s)
	}
	return id, nil
}
