package tests

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/wallet-server/pkg/pointer"
	"github.com/code-payments/wallet-server/pkg/solana"
	"github.com/code-payments/wallet-server/pkg/solana/system"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
)

func RunTests(t *testing.T, s transaction.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s transaction.Store){
		testRoundTrip,
		testUpdate,
		testReturnedRecordsAreCopies,
		testGetAllByStatus,
		testInvalidRecord,
	} {
		tf(t, s)
		teardown()
	}
}

func newKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}

func newRecord(t *testing.T, chainId string, status transaction.Status, createdAt time.Time) *transaction.Record {
	from := newKey(t)
	transfer, err := system.Transfer(from, newKey(t), 1_000)
	require.NoError(t, err)

	return &transaction.Record{
		Id:      uuid.NewString(),
		ChainId: chainId,
		From:    chain.EncodeAddress(from),
		Origin:  "https://dapp.example",
		Status:  status,
		TxType:  transaction.TxTypeSystemTransfer,
		Message: transaction.Message{
			FeePayer:     chain.EncodeAddress(from),
			Instructions: []solana.Instruction{transfer},
		},
		CreatedAt: createdAt,
	}
}

func testRoundTrip(t *testing.T, s transaction.Store) {
	ctx := context.Background()

	expected := newRecord(t, chain.SolanaMainnet, transaction.StatusSubmitted, time.Now())
	nonce := system.AdvanceNonce(newKey(t), newKey(t))
	expected.Message.Instructions = append([]solana.Instruction{nonce}, expected.Message.Instructions...)
	expected.Message.SetRecentBlockhash("GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi", 1234)
	expected.SendOptions = &solana.SendOptions{
		MaxRetries:          pointer.To[uint64](3),
		PreflightCommitment: pointer.To("confirmed"),
		SkipPreflight:       pointer.To(true),
	}
	expected.SignTxParam = &transaction.SignTxParam{
		EncodedSerializedMessage: "AQABAg==",
		Signatures: []transaction.SignaturePubkeyPair{
			{PublicKey: expected.From},
			{PublicKey: chain.EncodeAddress(newKey(t)), Signature: make([]byte, ed25519.SignatureSize)},
		},
	}
	expected.RawSignatures = []byte{1, 2, 3}
	expected.TxHash = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"
	expected.SignatureStatus = transaction.SignatureStatus{
		Slot:               100,
		Confirmations:      10,
		ConfirmationStatus: "confirmed",
	}
	expected.SubmittedAt = time.Now()

	actual, err := s.Get(ctx, expected.Id)
	assert.Equal(t, transaction.ErrNotFound, err)
	assert.Nil(t, actual)

	require.NoError(t, s.Put(ctx, expected))

	actual, err = s.Get(ctx, expected.Id)
	require.NoError(t, err)
	assertEquivalentRecords(t, expected, actual)
	assert.True(t, actual.Message.UsesDurableNonce())
	assert.True(t, actual.ConfirmedAt.IsZero())
}

func testUpdate(t *testing.T, s transaction.Store) {
	ctx := context.Background()

	record := newRecord(t, chain.SolanaDevnet, transaction.StatusUnapproved, time.Now())
	require.NoError(t, s.Put(ctx, record))

	record.Status = transaction.StatusError
	record.ErrorMessage = "Blockhash not found"
	record.Message.SetRecentBlockhash("GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi", 99)
	record.SignatureStatus.Err = "InstructionError"
	record.ConfirmedAt = time.Now()
	require.NoError(t, s.Put(ctx, record))

	actual, err := s.Get(ctx, record.Id)
	require.NoError(t, err)
	assertEquivalentRecords(t, record, actual)

	all, err := s.GetAllByStatus(ctx, nil, transaction.StatusUnapproved)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testReturnedRecordsAreCopies(t *testing.T, s transaction.Store) {
	ctx := context.Background()

	record := newRecord(t, chain.SolanaMainnet, transaction.StatusUnapproved, time.Now())
	require.NoError(t, s.Put(ctx, record))

	record.Status = transaction.StatusApproved
	record.Message.Instructions[0].Data[0] = 0xff

	actual, err := s.Get(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusUnapproved, actual.Status)
	assert.NotEqual(t, byte(0xff), actual.Message.Instructions[0].Data[0])

	actual.Message.SetRecentBlockhash("GHtXQBsoZHVnNFa9YevAzFr17DJjgHXk3ycTKD5xD3Zi", 1)

	again, err := s.Get(ctx, record.Id)
	require.NoError(t, err)
	assert.Empty(t, again.Message.RecentBlockhash)
}

func testGetAllByStatus(t *testing.T, s transaction.Store) {
	ctx := context.Background()

	start := time.Now().Add(-time.Hour)
	var mainnet, devnet []*transaction.Record
	for i := 0; i < 3; i++ {
		record := newRecord(t, chain.SolanaMainnet, transaction.StatusSubmitted, start.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Put(ctx, record))
		mainnet = append(mainnet, record)

		record = newRecord(t, chain.SolanaDevnet, transaction.StatusSubmitted, start.Add(time.Duration(i)*time.Minute+time.Second))
		require.NoError(t, s.Put(ctx, record))
		devnet = append(devnet, record)
	}
	require.NoError(t, s.Put(ctx, newRecord(t, chain.SolanaMainnet, transaction.StatusConfirmed, start)))

	actual, err := s.GetAllByStatus(ctx, pointer.To(chain.SolanaMainnet), transaction.StatusSubmitted)
	require.NoError(t, err)
	require.Len(t, actual, len(mainnet))
	for i := range mainnet {
		assert.Equal(t, mainnet[i].Id, actual[i].Id)
	}

	actual, err = s.GetAllByStatus(ctx, pointer.To(chain.SolanaDevnet), transaction.StatusSubmitted)
	require.NoError(t, err)
	require.Len(t, actual, len(devnet))
	for i := range devnet {
		assert.Equal(t, devnet[i].Id, actual[i].Id)
	}

	actual, err = s.GetAllByStatus(ctx, nil, transaction.StatusSubmitted)
	require.NoError(t, err)
	require.Len(t, actual, 6)
	for i := 0; i < 3; i++ {
		assert.Equal(t, mainnet[i].Id, actual[2*i].Id)
		assert.Equal(t, devnet[i].Id, actual[2*i+1].Id)
	}

	actual, err = s.GetAllByStatus(ctx, nil, transaction.StatusConfirmed)
	require.NoError(t, err)
	assert.Len(t, actual, 1)

	actual, err = s.GetAllByStatus(ctx, pointer.To(chain.SolanaTestnet), transaction.StatusSubmitted)
	require.NoError(t, err)
	assert.Empty(t, actual)
}

func testInvalidRecord(t *testing.T, s transaction.Store) {
	ctx := context.Background()

	record := newRecord(t, chain.SolanaMainnet, transaction.StatusUnapproved, time.Now())
	record.Id = ""
	assert.Error(t, s.Put(ctx, record))

	record = newRecord(t, chain.SolanaMainnet, transaction.StatusUnapproved, time.Now())
	record.ChainId = ""
	assert.Error(t, s.Put(ctx, record))
}

func assertEquivalentRecords(t *testing.T, expected, actual *transaction.Record) {
	assert.Equal(t, expected.Id, actual.Id)
	assert.Equal(t, expected.ChainId, actual.ChainId)
	assert.Equal(t, expected.From, actual.From)
	assert.Equal(t, expected.Origin, actual.Origin)
	assert.Equal(t, expected.Status, actual.Status)
	assert.Equal(t, expected.TxType, actual.TxType)
	assert.True(t, expected.Message.Equal(&actual.Message))
	assert.Equal(t, expected.SendOptions, actual.SendOptions)
	assert.Equal(t, expected.SignTxParam, actual.SignTxParam)
	assert.Equal(t, expected.RawSignatures, actual.RawSignatures)
	assert.Equal(t, expected.TxHash, actual.TxHash)
	assert.Equal(t, expected.SignatureStatus, actual.SignatureStatus)
	assert.Equal(t, expected.ErrorMessage, actual.ErrorMessage)
	assert.Equal(t, expected.CreatedAt.Unix(), actual.CreatedAt.Unix())
	assert.Equal(t, expected.SubmittedAt.IsZero(), actual.SubmittedAt.IsZero())
	if !expected.SubmittedAt.IsZero() {
		assert.Equal(t, expected.SubmittedAt.Unix(), actual.SubmittedAt.Unix())
	}
	assert.Equal(t, expected.ConfirmedAt.IsZero(), actual.ConfirmedAt.IsZero())
	if !expected.ConfirmedAt.IsZero() {
		assert.Equal(t, expected.ConfirmedAt.Unix(), actual.ConfirmedAt.Unix())
	}
}
