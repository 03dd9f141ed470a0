package hyperliquid

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0x0123456789012345678901234567890123456789012345678901234567890123"

func TestEncodeActionKeepsFieldOrderAndCompactInts(t *testing.T) {
	action := cancelAction{
		Type:    "cancel",
		Cancels: []cancelWire{{Asset: 10000, OrderID: 5}},
	}
	got, err := encodeAction(action)
	require.NoError(t, err)

	want := []byte{0x82, 0xa4}
	want = append(want, "type"...)
	want = append(want, 0xa6)
	want = append(want, "cancel"...)
	want = append(want, 0xa7)
	want = append(want, "cancels"...)
	want = append(want, 0x91, 0x82, 0xa1, 'a', 0xcd, 0x27, 0x10, 0xa1, 'o', 0x05)
	assert.Equal(t, want, got)
}

func TestActionHashDependsOnNonceAndVault(t *testing.T) {
	action := cancelAction{Type: "cancel", Cancels: []cancelWire{{Asset: 10000, OrderID: 1}}}

	first, err := ActionHash(action, nil, 1)
	require.NoError(t, err)
	again, err := ActionHash(action, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	otherNonce, err := ActionHash(action, nil, 2)
	require.NoError(t, err)
	assert.NotEqual(t, first, otherNonce)

	vault := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	withVault, err := ActionHash(action, &vault, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first, withVault)
}

func TestSignL1ActionRecoversSigner(t *testing.T) {
	for _, mainnet := range []bool{true, false} {
		signer, err := NewSigner(testKey, mainnet)
		require.NoError(t, err)

		action := orderAction{
			Type: "order",
			Orders: []orderWire{{
				Asset:     10000,
				IsBuy:     true,
				LimitPx:   "0.18234",
				Size:      "548",
				OrderType: orderTypeWire{Limit: &limitOrderType{Tif: TifGtc}},
			}},
			Grouping: "na",
		}
		const nonce = 1700000000000
		sig, err := signer.SignL1Action(action, nonce)
		require.NoError(t, err)
		assert.Contains(t, []byte{27, 28}, sig.V)
		assert.Len(t, sig.R, 66)
		assert.Len(t, sig.S, 66)

		hash, err := ActionHash(action, nil, nonce)
		require.NoError(t, err)
		digest, err := phantomAgentDigest(signer.source(), hash)
		require.NoError(t, err)

		raw := append(hexutil.MustDecode(sig.R), hexutil.MustDecode(sig.S)...)
		raw = append(raw, sig.V-27)
		pub, err := crypto.SigToPub(digest, raw)
		require.NoError(t, err)
		assert.Equal(t, signer.Address(), crypto.PubkeyToAddress(*pub))
	}
}

func TestPhantomAgentSourceSeparatesNetworks(t *testing.T) {
	hash := crypto.Keccak256Hash([]byte("action"))
	mainnet, err := phantomAgentDigest("a", hash)
	require.NoError(t, err)
	testnet, err := phantomAgentDigest("b", hash)
	require.NoError(t, err)
	assert.NotEqual(t, mainnet, testnet)
}

func TestNewSignerRejectsGarbage(t *testing.T) {
	_, err := NewSigner("not-a-key", true)
	assert.Error(t, err)
}

type dummyAction struct {
	Type string `msgpack:"type"`
	Num  uint64 `msgpack:"num"`
}

// Reference vector published with the Hyperliquid Python SDK.
func TestSignL1ActionKnownVector(t *testing.T) {
	action := dummyAction{Type: "dummy", Num: 100000000000}

	mainnet, err := NewSigner(testKey, true)
	require.NoError(t, err)
	sig, err := mainnet.SignL1Action(action, 0)
	require.NoError(t, err)
	assert.Equal(t, "53749d5b30552aeb2fca34b530185976545bb22d0b3ce6f62e31be961a59298", new(big.Int).SetBytes(hexutil.MustDecode(sig.R)).Text(16))
	assert.Equal(t, "755c40ba9bf05223521753995abb2f73ab3229be8ec921f350cb447e384d8ed8", new(big.Int).SetBytes(hexutil.MustDecode(sig.S)).Text(16))
	assert.Equal(t, byte(27), sig.V)

	testnet, err := NewSigner(testKey, false)
	require.NoError(t, err)
	testSig, err := testnet.SignL1Action(action, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(28), testSig.V)
	assert.NotEqual(t, sig.R, testSig.R)
}
