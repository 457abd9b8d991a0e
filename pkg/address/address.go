// Package address converts raw account ids into bech32 strings bound to a
// network prefix and back.
package address

import (
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/go-faster/errors"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

// IDLen is the size of a raw account id.
const IDLen = 15

type Codec struct {
	hrp string
}

func NewCodec(networkID string) (Codec, error) {
	if networkID == "" || strings.ToLower(networkID) != networkID {
		return Codec{}, errors.Errorf("invalid network id %q", networkID)
	}
	return Codec{hrp: networkID}, nil
}

func (c Codec) NetworkID() string {
	return c.hrp
}

func (c Codec) Encode(id []byte) (string, error) {
	if len(id) != IDLen {
		return "", errors.Wrapf(core.ErrInvalidAddress, "account id must be %d bytes, got %d", IDLen, len(id))
	}
	payload, err := bech32.ConvertBits(id, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert bits")
	}
	raw, err := bech32.Encode(c.hrp, payload)
	if err != nil {
		return "", errors.Wrap(err, "bech32 encode")
	}
	return raw, nil
}

// Decode returns the raw id behind addr and fails if addr was encoded for a
// different network.
func (c Codec) Decode(addr string) ([]byte, error) {
	hrp, payload, err := bech32.Decode(addr)
	if err != nil {
		return nil, errors.Wrapf(core.ErrInvalidAddress, "%s: %v", addr, err)
	}
	if hrp != c.hrp {
		return nil, errors.Wrapf(core.ErrInvalidAddress, "%s: network %q, expected %q", addr, hrp, c.hrp)
	}
	id, err := bech32.ConvertBits(payload, 5, 8, false)
	if err != nil {
		return nil, errors.Wrapf(core.ErrInvalidAddress, "%s: %v", addr, err)
	}
	if len(id) != IDLen {
		return nil, errors.Wrapf(core.ErrInvalidAddress, "%s: id is %d bytes", addr, len(id))
	}
	return id, nil
}

// Canonical returns addr in lower case form. bech32 also accepts the upper
// case form of an address, so two different strings can name the same id.
func (c Codec) Canonical(addr string) (string, error) {
	id, err := c.Decode(addr)
	if err != nil {
		return "", err
	}
	return c.Encode(id)
}

// MustEncode is for tests and constants.
func (c Codec) MustEncode(id []byte) string {
	s, err := c.Encode(id)
	if err != nil {
		panic(err)
	}
	return s
}
