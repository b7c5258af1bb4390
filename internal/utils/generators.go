package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// redemption codes use an unambiguous alphabet (no 0/O, 1/I) so front-desk
// staff can type them by hand
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateRedemptionCode returns a human-readable ticket code like
// "TKT-7XK2-M9QD-4RWF".
func GenerateRedemptionCode() string {
	groups := make([]string, 3)
	for g := range groups {
		chars := make([]byte, 4)
		for i := range chars {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
			if err != nil {
				// crypto/rand failing means the platform is broken; fall back
				// to a timestamp-derived index rather than abort ticket issuance
				n = big.NewInt(time.Now().UnixNano() % int64(len(codeAlphabet)))
			}
			chars[i] = codeAlphabet[n.Int64()]
		}
		groups[g] = string(chars)
	}
	return fmt.Sprintf("TKT-%s-%s-%s", groups[0], groups[1], groups[2])
}

// GenerateRefundID returns an identifier for refund records in provider logs.
func GenerateRefundID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("ref_%d_%06d", timestamp, randomNum.Int64())
}
