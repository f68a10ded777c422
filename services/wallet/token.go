package wallet

import (
	// Go Internal Packages
	"crypto/rand"
	"math/big"
	"strconv"
)

var tokenSpace = big.NewInt(900000)

// GenerateToken returns a uniformly drawn 6-digit token in [100000, 999999].
func GenerateToken() (string, error) {
	n, err := rand.Int(rand.Reader, tokenSpace)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
