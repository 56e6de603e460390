package txmanager

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/nft/simplehash"
	"github.com/code-payments/wallet-server/pkg/solana"
	"github.com/code-payments/wallet-server/pkg/solana/system"
	"github.com/code-payments/wallet-server/pkg/testutil"
	"github.com/code-payments/wallet-server/pkg/wallet/blocklist"
	"github.com/code-payments/wallet-server/pkg/wallet/blocktracker"
	"github.com/code-payments/wallet-server/pkg/wallet/chain"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction"
	"github.com/code-payments/wallet-server/pkg/wallet/data/transaction/memory"
	"github.com/code-payments/wallet-server/pkg/wallet/events"
	"github.com/code-payments/wallet-server/pkg/wallet/keyring"
)

const (
	testChain             = chain.SolanaMainnet
	trackerLastValidBlock = 1000
	sanctionedAddress     = "FepMPR8bmBZrSGtWKdvWRYSQ1UNSwBF5cnDDhXsDtUxy"
)

type fakeRPC struct {
	mu sync.Mutex

	blockHeight      uint64
	blockHeightCalls int
	blockHeightErr   error

	sendErr error
	sent    []solana.Transaction

	statuses         map[string]*solana.SignatureStatus
	truncateStatuses bool
	statusCalls      int

	fee         uint64
	feeMessages []string

	accounts map[string]*solana.AccountInfo
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		blockHeight: 100,
		statuses:    make(map[string]*solana.SignatureStatus),
		accounts:    make(map[string]*solana.AccountInfo),
	}
}

func (f *fakeRPC) GetBlockHeight(_ context.Context, _ string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.blockHeightCalls++
	if f.blockHeightErr != nil {
		return 0, f.blockHeightErr
	}
	return f.blockHeight, nil
}

func (f *fakeRPC) SendTransaction(_ context.Context, _ string, signed []byte, _ *solana.SendOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return "", f.sendErr
	}

	var tx solana.Transaction
	if err := tx.Unmarshal(signed); err != nil {
		return "", err
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0].String(), nil
}

func (f *fakeRPC) GetSignatureStatuses(_ context.Context, _ string, sigs []string) ([]*solana.SignatureStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statusCalls++
	if f.truncateStatuses {
		return nil, nil
	}

	res := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		res[i] = f.statuses[sig]
	}
	return res, nil
}

func (f *fakeRPC) GetFeeForMessage(_ context.Context, _, base64Message string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.feeMessages = append(f.feeMessages, base64Message)
	return f.fee, nil
}

func (f *fakeRPC) GetAccountInfo(_ context.Context, _, address string) (*solana.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.accounts[address], nil
}

func (f *fakeRPC) setStatus(sig string, status *solana.SignatureStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[sig] = status
}

func (f *fakeRPC) lastSent() solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type fakeTracker struct {
	mu sync.Mutex

	blockhash            string
	lastValidBlockHeight uint64
	forcedCalls          int
	err                  error

	tracked    []string
	trackCalls int

	updates chan blocktracker.Update
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		blockhash:            randomHash(),
		lastValidBlockHeight: trackerLastValidBlock,
		updates:              make(chan blocktracker.Update, 1),
	}
}

func (f *fakeTracker) GetLatestBlockhash(_ context.Context, _ string, force bool) (string, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if force {
		f.forcedCalls++
	}
	if f.err != nil {
		return "", 0, f.err
	}
	return f.blockhash, f.lastValidBlockHeight, nil
}

func (f *fakeTracker) Subscribe() (<-chan blocktracker.Update, func()) {
	return f.updates, func() {}
}

func (f *fakeTracker) Track(chains []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tracked = append([]string(nil), chains...)
	f.trackCalls++
}

func (f *fakeTracker) getTracked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracked
}

type fakeNFTClient struct {
	proofs map[string]*simplehash.CompressedNftProof
}

func (f *fakeNFTClient) FetchSolCompressedNftProofData(_ context.Context, tokenAddress string) *simplehash.CompressedNftProof {
	proof, ok := f.proofs[tokenAddress]
	if !ok {
		return nil
	}
	cloned := *proof
	cloned.Proof = append([]string(nil), proof.Proof...)
	return &cloned
}

type testEnv struct {
	ctx        context.Context
	manager    *Manager
	store      transaction.Store
	rpc        *fakeRPC
	tracker    *fakeTracker
	keyring    *keyring.Memory
	nft        *fakeNFTClient
	publisher  *events.Memory
	registry   *prometheus.Registry
	owner      ed25519.PrivateKey
	ownerAddr  string
	recipients []ed25519.PublicKey
}

func setup(t *testing.T) *testEnv {
	t.Cleanup(testutil.DisableLogging())

	env := &testEnv{
		ctx:        context.Background(),
		store:      memory.New(),
		rpc:        newFakeRPC(),
		tracker:    newFakeTracker(),
		keyring:    keyring.NewMemory(),
		nft:        &fakeNFTClient{proofs: make(map[string]*simplehash.CompressedNftProof)},
		publisher:  events.NewMemory(),
		registry:   prometheus.NewRegistry(),
		owner:      testutil.GenerateSolanaKeypair(t),
		recipients: testutil.GenerateSolanaKeys(t, 3),
	}

	var err error
	env.ownerAddr, err = env.keyring.Add(env.owner)
	require.NoError(t, err)

	env.manager = New(
		env.store,
		env.rpc,
		env.tracker,
		env.keyring,
		env.nft,
		blocklist.New(sanctionedAddress),
		env.publisher,
		metrics.NewCollectors(env.registry),
		WithDefaults(),
	)

	return env
}

func (e *testEnv) addSystemTransfer(t *testing.T) string {
	txData, err := e.manager.MakeSystemProgramTransferTxData(e.ctx, e.ownerAddr, chain.EncodeAddress(e.recipients[0]), 1_000)
	require.NoError(t, err)

	id, err := e.manager.AddUnapprovedTransaction(e.ctx, testChain, txData, e.ownerAddr, "https://wallet.example", nil)
	require.NoError(t, err)
	return id
}

func (e *testEnv) addDurableNonceTransfer(t *testing.T) (id, nonceValue string) {
	nonceAccount := e.recipients[2]
	transfer, err := system.Transfer(e.owner.Public().(ed25519.PublicKey), e.recipients[0], 1_000)
	require.NoError(t, err)

	nonceValue = randomHash()
	txData := &TxData{
		Message: transaction.Message{
			RecentBlockhash: nonceValue,
			FeePayer:        e.ownerAddr,
			Instructions: []solana.Instruction{
				system.AdvanceNonce(nonceAccount, e.owner.Public().(ed25519.PublicKey)),
				transfer,
			},
		},
		TxType: transaction.TxTypeSystemTransfer,
	}

	id, err = e.manager.AddUnapprovedTransaction(e.ctx, testChain, txData, e.ownerAddr, "", nil)
	require.NoError(t, err)
	return id, nonceValue
}

func (e *testEnv) get(t *testing.T, id string) *transaction.Record {
	record, err := e.store.Get(e.ctx, id)
	require.NoError(t, err)
	return record
}

func (e *testEnv) eventStatuses(id string) []string {
	var statuses []string
	for _, event := range e.publisher.EventsFor(id) {
		statuses = append(statuses, event.Status)
	}
	return statuses
}

func randomHash() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base58.Encode(b)
}

func newTreeAccount(authority ed25519.PublicKey, maxBufferSize, maxDepth, canopy uint32) []byte {
	var data []byte

	data = append(data, 1, 0)
	data = binary.LittleEndian.AppendUint32(data, maxBufferSize)
	data = binary.LittleEndian.AppendUint32(data, maxDepth)
	data = append(data, authority...)
	data = binary.LittleEndian.AppendUint64(data, 1234)
	data = append(data, make([]byte, 6)...)

	data = append(data, make([]byte, 24)...)
	changeLog := 32 + 32*int(maxDepth) + 4 + 4
	data = append(data, make([]byte, int(maxBufferSize)*changeLog)...)
	data = append(data, make([]byte, 32*int(maxDepth)+32+4+4)...)
	if canopy > 0 {
		data = append(data, make([]byte, 32*((1<<(canopy+1))-2))...)
	}

	return data
}

var errSendFailed = errors.New("send failed")

func (f *fakeRPC) getStatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}
