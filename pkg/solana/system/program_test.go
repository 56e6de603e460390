package system

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/wallet-server/pkg/solana"
)

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction, err := Transfer(keys[0], keys[1], 10_000_000)
	require.NoError(t, err)

	assert.Equal(t, ProgramKey[:], []byte(instruction.Program))
	require.Len(t, instruction.Data, 12)
	assert.EqualValues(t, 2, binary.LittleEndian.Uint32(instruction.Data[0:4]))
	assert.EqualValues(t, 10_000_000, binary.LittleEndian.Uint64(instruction.Data[4:12]))

	require.Len(t, instruction.Accounts, 2)
	assert.Equal(t, solana.NewAccountMeta(keys[0], true), instruction.Accounts[0])
	assert.Equal(t, solana.NewAccountMeta(keys[1], false), instruction.Accounts[1])

	var tx solana.Transaction
	require.NoError(t, tx.Unmarshal(solana.NewTransaction(keys[0], instruction).Marshal()))

	decompiled, err := DecompileTransfer(tx.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.From)
	assert.Equal(t, keys[1], decompiled.To)
	assert.EqualValues(t, 10_000_000, decompiled.Lamports)
}

func TestTransfer_InvalidAddress(t *testing.T) {
	keys := generateKeys(t, 1)

	_, err := Transfer(nil, keys[0], 1)
	assert.Equal(t, ErrInvalidAddress, err)

	_, err = Transfer(keys[0], nil, 1)
	assert.Equal(t, ErrInvalidAddress, err)

	_, err = Transfer(keys[0], keys[0][:16], 1)
	assert.Equal(t, ErrInvalidAddress, err)
}

func TestAdvanceNonce(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := AdvanceNonce(keys[0], keys[1])
	assert.True(t, IsAdvanceNonce(instruction))

	transfer, err := Transfer(keys[1], keys[2], 1)
	require.NoError(t, err)
	assert.False(t, IsAdvanceNonce(transfer))

	tx := solana.NewTransaction(keys[1], instruction, transfer)
	decompiled, err := DecompileAdvanceNonce(tx.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Nonce)
	assert.Equal(t, keys[1], decompiled.Authority)

	_, err = DecompileAdvanceNonce(tx.Message, 1)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func TestGetNonceValueFromAccount(t *testing.T) {
	data := make([]byte, 80)
	for i := 40; i < 72; i++ {
		data[i] = byte(i)
	}

	val, err := GetNonceValueFromAccount(solana.AccountInfo{
		Data:  data,
		Owner: ProgramKey[:],
	})
	require.NoError(t, err)
	assert.Equal(t, data[40:72], val[:])

	_, err = GetNonceValueFromAccount(solana.AccountInfo{Data: data[:79], Owner: ProgramKey[:]})
	assert.Error(t, err)

	keys := generateKeys(t, 1)
	_, err = GetNonceValueFromAccount(solana.AccountInfo{Data: data, Owner: keys[0]})
	assert.Error(t, err)
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}

	return keys
}
