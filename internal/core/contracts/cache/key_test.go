package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weisyn/contracts/internal/core/contracts/testutil"
	"github.com/weisyn/contracts/pkg/types"
)

func TestKeyHash_Distinguishes(t *testing.T) {
	base := Key{Kind: "trigger", Identity: "oracle", Contract: "aabb", Time: 1700000000}

	variants := []Key{
		{Kind: "condition", Identity: "oracle", Contract: "aabb", Time: 1700000000},
		{Kind: "trigger", Identity: "transaction:vote/1", Contract: "aabb", Time: 1700000000},
		{Kind: "trigger", Identity: "oracle", Contract: "ccdd", Time: 1700000000},
		{Kind: "trigger", Identity: "oracle", Contract: "aabb", Time: 1700000001},
		{Kind: "trigger", Identity: "oracle", Contract: "aabb", Time: 1700000000, Caller: "eeff"},
	}

	for _, v := range variants {
		assert.NotEqual(t, base.Hash(), v.Hash(), "key %+v", v)
	}
	assert.Equal(t, base.Hash(), base.Hash())
}

func TestDigestInputs_OrderIndependent(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	a := testutil.NewNativeOutput(testutil.RandomAddress(), 10, ts)
	b := testutil.NewNativeOutput(testutil.RandomAddress(), 20, ts)
	c := testutil.NewTokenOutput(testutil.RandomAddress(), testutil.RandomAddress(), 5, ts)

	first := DigestInputs([]*types.UnspentOutput{a, b, c})
	second := DigestInputs([]*types.UnspentOutput{c, a, b})

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, DigestInputs([]*types.UnspentOutput{a, b}))
	assert.Empty(t, DigestInputs(nil))
}

func TestDigestArgs_KeyOrderIndependent(t *testing.T) {
	first := DigestArgs(map[string]interface{}{"a": 1, "b": "x", "c": []interface{}{1, 2}})
	second := DigestArgs(map[string]interface{}{"c": []interface{}{1, 2}, "b": "x", "a": 1})

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, DigestArgs(map[string]interface{}{"a": 2, "b": "x", "c": []interface{}{1, 2}}))
	assert.Empty(t, DigestArgs(nil))
}
