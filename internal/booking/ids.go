package booking

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewPNR returns a 10-digit passenger name record
func NewPNR() string {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[:8]) % 9_000_000_000
	return fmt.Sprintf("%010d", n+1_000_000_000)
}

// NewTransactionID returns a payment reference like TXN4F1A...
func NewTransactionID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TXN" + strings.ToUpper(raw[:16])
}
