package decoder

import (
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/whirlpool-ingestor/internal/models"
)

// Layout selects which record format account payloads are parsed with.
type Layout string

const (
	// LayoutSnapshot is the packed 202-byte snapshot record.
	LayoutSnapshot Layout = "snapshot"
	// LayoutAccount is the full on-chain Whirlpool account.
	LayoutAccount Layout = "account"
)

func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutSnapshot, LayoutAccount:
		return l, nil
	case "":
		return LayoutSnapshot, nil
	}
	return "", fmt.Errorf("unknown decoder layout %q", s)
}

// Func decodes one account data pair into a snapshot.
type Func func(payload, encoding string) (*models.PoolSnapshot, error)

// For returns the decode function for layout.
func For(layout Layout) Func {
	if layout == LayoutAccount {
		return DecodeAccount
	}
	return DecodeSnapshot
}

// DecodeSnapshot decompresses payload and parses it as a packed snapshot.
func DecodeSnapshot(payload, encoding string) (*models.PoolSnapshot, error) {
	raw, err := Decompress(payload, encoding)
	if err != nil {
		return nil, err
	}
	return ParsePoolSnapshot(raw)
}

// DecodeAccount decompresses payload and parses it as a full account.
func DecodeAccount(payload, encoding string) (*models.PoolSnapshot, error) {
	raw, err := Decompress(payload, encoding)
	if err != nil {
		return nil, err
	}
	acc, err := ParseWhirlpoolAccount(raw)
	if err != nil {
		return nil, err
	}
	return acc.Snapshot(), nil
}
