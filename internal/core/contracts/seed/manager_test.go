package seed

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/contracts/internal/core/contracts/testutil"
	"github.com/weisyn/contracts/internal/core/eutxo"
	"github.com/weisyn/contracts/internal/core/infrastructure/crypto/rootkey"
	"github.com/weisyn/contracts/pkg/types"
)

func sealedContract(t *testing.T, cipher *rootkey.Cipher, contractSeed []byte) *types.Contract {
	t.Helper()

	sealed, err := cipher.Encrypt(context.Background(), contractSeed)
	require.NoError(t, err)

	definition := testutil.NewInterpretedDefinition(`{"triggers": {"oracle": {"state": "state"}}}`)
	definition.Data.Ownerships = []types.Ownership{{Secret: sealed}}

	return &types.Contract{
		Variant:     types.VariantInterpreted,
		Transaction: definition,
		Code:        definition.Data.Code,
	}
}

func TestDeriveKeypair_Deterministic(t *testing.T) {
	contractSeed := testutil.RandomBytes(32)
	root := testutil.RandomAddress()

	first, err := DeriveKeypair(contractSeed, root, 3)
	require.NoError(t, err)
	second, err := DeriveKeypair(contractSeed, root, 3)
	require.NoError(t, err)

	assert.Equal(t, first.Serialize(), second.Serialize())
}

func TestDeriveKeypair_Distinct(t *testing.T) {
	contractSeed := testutil.RandomBytes(32)
	root := testutil.RandomAddress()

	base, err := DeriveKeypair(contractSeed, root, 0)
	require.NoError(t, err)

	nextIndex, err := DeriveKeypair(contractSeed, root, 1)
	require.NoError(t, err)
	assert.NotEqual(t, base.Serialize(), nextIndex.Serialize())

	otherChain, err := DeriveKeypair(contractSeed, testutil.RandomAddress(), 0)
	require.NoError(t, err)
	assert.NotEqual(t, base.Serialize(), otherChain.Serialize())

	_, err = DeriveKeypair(nil, root, 0)
	assert.Error(t, err)
}

func TestSignNextTransaction(t *testing.T) {
	cipher, err := rootkey.New([]byte("node root key"))
	require.NoError(t, err)

	contractSeed := testutil.RandomBytes(32)
	contract := sealedContract(t, cipher, contractSeed)
	m := New(&testutil.MockLogger{}, cipher, eutxo.NewStaticResolver())

	next := &types.Transaction{
		Address: testutil.RandomAddress(),
		Type:    "contract",
		Data:    types.TransactionData{Content: "next"},
	}

	signed, err := m.SignNextTransaction(context.Background(), contract, next, 2)
	require.NoError(t, err)

	// 原交易不被原地修改
	assert.Empty(t, next.PreviousSignature)
	require.NotEmpty(t, signed.PreviousSignature)

	// 公钥与确定性派生一致（静态解析器把合约地址解析为其自身链根）
	expected, err := DeriveKeypair(contractSeed, contract.Address(), 2)
	require.NoError(t, err)
	assert.Equal(t, expected.PubKey().SerializeCompressed(), signed.PreviousPublicKey)

	// 签名对交易摘要可验
	payload := struct {
		Address types.Address         `json:"address"`
		Type    string                `json:"type"`
		Data    types.TransactionData `json:"data"`
	}{Address: signed.Address, Type: signed.Type, Data: signed.Data}
	encoded, err := json.Marshal(&payload)
	require.NoError(t, err)
	digest := sha256.Sum256(encoded)

	signature, err := ecdsa.ParseDERSignature(signed.PreviousSignature)
	require.NoError(t, err)
	assert.True(t, signature.Verify(digest[:], expected.PubKey()))
}

func TestSignNextTransaction_Errors(t *testing.T) {
	cipher, err := rootkey.New([]byte("node root key"))
	require.NoError(t, err)
	m := New(&testutil.MockLogger{}, cipher, eutxo.NewStaticResolver())
	next := &types.Transaction{Address: testutil.RandomAddress()}

	t.Run("nil合约", func(t *testing.T) {
		_, err := m.SignNextTransaction(context.Background(), nil, next, 0)
		assert.ErrorIs(t, err, ErrNilContract)
	})

	t.Run("nil交易", func(t *testing.T) {
		contract := sealedContract(t, cipher, testutil.RandomBytes(32))
		_, err := m.SignNextTransaction(context.Background(), contract, nil, 0)
		assert.ErrorIs(t, err, ErrNilTransaction)
	})

	t.Run("无所有权条目", func(t *testing.T) {
		contract := sealedContract(t, cipher, testutil.RandomBytes(32))
		contract.Transaction.Data.Ownerships = nil
		_, err := m.SignNextTransaction(context.Background(), contract, next, 0)
		assert.ErrorIs(t, err, ErrNoOwnership)
	})

	t.Run("解封失败", func(t *testing.T) {
		contract := sealedContract(t, cipher, testutil.RandomBytes(32))
		otherCipher, err := rootkey.New([]byte("different root key"))
		require.NoError(t, err)
		other := New(&testutil.MockLogger{}, otherCipher, eutxo.NewStaticResolver())

		_, err = other.SignNextTransaction(context.Background(), contract, next, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSeedUnsealFailed))
	})
}
