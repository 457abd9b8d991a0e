package core

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	tests := []struct {
		name      string
		kind      AccountKind
		threshold uint32
		approvers []string
		wantErr   error
	}{
		{
			name:      "2 of 3",
			kind:      AccountKindPublic,
			threshold: 2,
			approvers: []string{"a", "b", "c"},
		},
		{
			name:      "threshold equals approvers",
			kind:      AccountKindPrivate,
			threshold: 3,
			approvers: []string{"a", "b", "c"},
		},
		{
			name:      "zero threshold",
			kind:      AccountKindPublic,
			threshold: 0,
			approvers: []string{"a", "b"},
			wantErr:   ErrInvalidThreshold,
		},
		{
			name:      "threshold above approvers",
			kind:      AccountKindPublic,
			threshold: 3,
			approvers: []string{"a", "b"},
			wantErr:   ErrInvalidThreshold,
		},
		{
			name:      "duplicate approver",
			kind:      AccountKindPublic,
			threshold: 1,
			approvers: []string{"a", "b", "a"},
			wantErr:   ErrDuplicateApprover,
		},
		{
			name:      "unknown kind",
			kind:      "shared",
			threshold: 1,
			approvers: []string{"a"},
			wantErr:   ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := NewAccount("acc", tt.kind, tt.threshold, tt.approvers)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.approvers, acc.Approvers)
			for i, a := range tt.approvers {
				idx, ok := acc.ApproverIndex(a)
				require.True(t, ok)
				require.Equal(t, i, idx)
			}
			_, ok := acc.ApproverIndex("z")
			require.False(t, ok)
		})
	}
}

func TestParseTxStatus(t *testing.T) {
	for _, s := range []string{"pending", "success", "failure"} {
		st, err := ParseTxStatus(s)
		require.NoError(t, err)
		require.Equal(t, s, string(st))
	}
	for _, s := range []string{"", "executing", "PENDING"} {
		_, err := ParseTxStatus(s)
		require.ErrorIs(t, err, ErrValidation)
	}
}

func TestNewTx(t *testing.T) {
	tx, err := NewTx("acc", []byte("req"), []byte("sum"), []byte("commit"))
	require.NoError(t, err)
	require.Equal(t, TxStatusPending, tx.Status)
	require.NotEqual(t, uuid.Nil, tx.ID)

	_, err = NewTx("acc", []byte("req"), nil, []byte("commit"))
	require.ErrorIs(t, err, ErrEmptyPayload)

	_, err = NewSignature(tx.ID, "a", nil)
	require.ErrorIs(t, err, ErrEmptyPayload)
}

func TestErrorFamilies(t *testing.T) {
	require.ErrorIs(t, ErrAccountNotFound, ErrEntityNotFound)
	require.ErrorIs(t, ErrTxNotFound, ErrEntityNotFound)
	require.False(t, errors.Is(ErrTxNotPending, ErrEntityNotFound))

	err := error(&CreatedButNotPersistedError{Account: Account{Address: "acc"}, Err: ErrConflict})
	var target *CreatedButNotPersistedError
	require.True(t, errors.As(err, &target))
	require.Equal(t, "acc", target.Account.Address)
	require.ErrorIs(t, err, ErrConflict)
}
