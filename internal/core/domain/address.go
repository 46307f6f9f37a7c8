package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

const AddressLength = 20

// Address is a 20-byte account identity. The zero value is the empty
// sentinel returned for unassigned seller slots.
type Address [AddressLength]byte

var ZeroAddress Address

// ParseAddress accepts "0x"-prefixed hex. All-lower and all-upper input is
// taken as is; mixed-case input must carry a valid EIP-55 checksum.
func ParseAddress(s string) (Address, error) {
	var a Address

	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return a, fmt.Errorf("%w: missing 0x prefix: %q", ErrInvalidAddress, s)
	}
	body := s[2:]
	if len(body) != 2*AddressLength {
		return a, fmt.Errorf("%w: want %d hex digits, got %d", ErrInvalidAddress, 2*AddressLength, len(body))
	}

	raw, err := hex.DecodeString(body)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	copy(a[:], raw)

	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if a.String()[2:] != body {
			return Address{}, fmt.Errorf("%w: bad checksum: %q", ErrInvalidAddress, s)
		}
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// Hex returns the lowercase form used as the storage key.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// String returns the EIP-55 checksummed form.
func (a Address) String() string {
	lower := hex.EncodeToString(a[:])

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
