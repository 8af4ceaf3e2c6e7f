package invoicing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// IdentifierGenerator mints invoice numbers and public tokens.
type IdentifierGenerator interface {
	InvoiceNumber() (string, error)
	PublicToken() (string, error)
}

const (
	suffixLen   = 9
	tokenBytes  = 32
	base36Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// RandomIdentifiers draws from crypto/rand.
type RandomIdentifiers struct {
	Now func() time.Time
}

// InvoiceNumber returns INV-<unix millis>-<9 uppercase base36 chars>.
func (g RandomIdentifiers) InvoiceNumber() (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	suffix := make([]byte, suffixLen)
	radix := big.NewInt(int64(len(base36Chars)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", fmt.Errorf("invoice number: %w", err)
		}
		suffix[i] = base36Chars[n.Int64()]
	}
	return "INV-" + strconv.FormatInt(now().UnixMilli(), 10) + "-" + string(suffix), nil
}

// PublicToken returns 64 lowercase hex characters.
func (g RandomIdentifiers) PublicToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("public token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
