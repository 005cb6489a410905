package utils

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"
)

// Guest tokens are self-describing: a millisecond timestamp prefix plus a
// random suffix, validated by format alone. The server keeps no issuance
// record; any caller presenting a well-formed token is trusted to be that
// guest.
var guestTokenPattern = regexp.MustCompile(`^guest_\d{13}_[a-zA-Z0-9]{10}$`)

func GenerateGuestToken() string {
	return fmt.Sprintf("guest_%013d_%s", time.Now().UnixMilli(), randomString(10))
}

func IsValidGuestToken(token string) bool {
	return guestTokenPattern.MatchString(token)
}

func randomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}
