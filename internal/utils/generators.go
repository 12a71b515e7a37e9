package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateReservationCode builds a human-readable unique code
// (RES-XXXX-YYYY). The random block plus a uuid fragment keeps collisions
// rare enough that the unique constraint is a backstop, not a retry loop.
func GenerateReservationCode() string {
	num, _ := rand.Int(rand.Reader, big.NewInt(9000))
	fragment := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("RES-%04d-%s", num.Int64()+1000, fragment)
}

func GenerateTransactionID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("txn_%d_%09d", timestamp, randomNum.Int64())
}

// CleanText collapses newlines and repeated whitespace, for mail subjects
// and names that end up in single-line contexts.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
