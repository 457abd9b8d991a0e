package address

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arnac-io/multisig-coordinator/pkg/core"
)

func TestCodec(t *testing.T) {
	codec, err := NewCodec("mtst")
	require.NoError(t, err)
	other, err := NewCodec("mm")
	require.NoError(t, err)

	id := bytes.Repeat([]byte{0xab}, IDLen)
	addr, err := codec.Encode(id)
	require.NoError(t, err)
	require.Contains(t, addr, "mtst1")

	tests := []struct {
		name    string
		codec   Codec
		addr    string
		want    []byte
		wantErr bool
	}{
		{name: "round trip", codec: codec, addr: addr, want: id},
		{name: "other network", codec: other, addr: addr, wantErr: true},
		{name: "garbage", codec: codec, addr: "not-an-address", wantErr: true},
		{name: "empty", codec: codec, addr: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.codec.Decode(tt.addr)
			if tt.wantErr {
				require.ErrorIs(t, err, core.ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err = codec.Encode([]byte{1, 2, 3})
	require.ErrorIs(t, err, core.ErrValidation)

	_, err = NewCodec("MTST")
	require.Error(t, err)
}

func TestCodec_Canonical(t *testing.T) {
	codec, err := NewCodec("mtst")
	require.NoError(t, err)
	addr := codec.MustEncode(bytes.Repeat([]byte{0x5c}, IDLen))

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "lower case", addr: addr},
		{name: "upper case", addr: strings.ToUpper(addr)},
		{name: "mixed case", addr: strings.ToUpper(addr[:6]) + addr[6:], wantErr: true},
		{name: "garbage", addr: "mtst1nope", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Canonical(tt.addr)
			if tt.wantErr {
				require.ErrorIs(t, err, core.ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			require.Equal(t, addr, got)
		})
	}
}
