package rpc

import (
	"testing"
	"time"

	sollib "github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New_Options(t *testing.T) {
	t.Parallel()

	payerKey, err := sollib.NewRandomPrivateKey()
	require.NoError(t, err)

	client := New(solrpc.New("http://localhost:8899"), payerKey,
		WithRetry(3, time.Second),
		WithCommitment(solrpc.CommitmentFinalized),
	)

	assert.Equal(t, uint(3), client.cfg.RetryAttempts)
	assert.Equal(t, time.Second, client.cfg.RetryDelay)
	assert.Equal(t, solrpc.CommitmentFinalized, client.cfg.Commitment)
	// Confirmation polling is not caller-configurable.
	assert.Equal(t, sendConfigDefault.ConfirmRetryAttempts, client.cfg.ConfirmRetryAttempts)
}

func Test_SnapshotFromInfo(t *testing.T) {
	t.Parallel()

	address := sollib.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	owner := sollib.SystemProgramID

	res := &solrpc.GetAccountInfoResult{
		RPCContext: solrpc.RPCContext{
			Context: solrpc.Context{Slot: 42},
		},
		Value: &solrpc.Account{
			Lamports: 1_000,
			Owner:    owner,
			Data:     solrpc.DataBytesOrJSONFromBytes([]byte{0x01, 0x02}),
		},
	}

	snap := snapshotFromInfo(address, res)
	assert.Equal(t, address, snap.Address)
	assert.Equal(t, uint64(1_000), snap.Lamports)
	assert.Equal(t, owner, snap.Owner)
	assert.Equal(t, []byte{0x01, 0x02}, snap.Data)
	assert.Equal(t, uint64(42), snap.Slot)
}
