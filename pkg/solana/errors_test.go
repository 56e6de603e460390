package solana

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ybbus/jsonrpc"
)

func decodeJSON(t *testing.T, s string) interface{} {
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestParseTransactionError(t *testing.T) {
	for _, tc := range []struct {
		raw         string
		key         TransactionErrorKey
		index       int
		instruction InstructionErrorKey
		custom      *CustomError
	}{
		{raw: `"DuplicateSignature"`, key: TransactionErrorDuplicateSignature},
		{raw: `{"InsufficientFundsForRent":{"account_index":1}}`, key: "InsufficientFundsForRent"},
		{raw: `{"InstructionError":[0,"InvalidArgument"]}`, key: TransactionErrorInstructionError, instruction: InstructionErrorInvalidArgument},
		{raw: `{"InstructionError":[2,{"Custom":3}]}`, key: TransactionErrorInstructionError, index: 2, instruction: InstructionErrorCustom, custom: customErr(3)},
	} {
		parsed, err := ParseTransactionError(decodeJSON(t, tc.raw))
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.key, parsed.ErrorKey(), tc.raw)

		encoded, err := parsed.JSONString()
		require.NoError(t, err)
		assert.JSONEq(t, tc.raw, encoded)

		if tc.instruction == "" {
			assert.Nil(t, parsed.InstructionError(), tc.raw)
			assert.Equal(t, string(tc.key), parsed.Error())
			continue
		}

		require.NotNil(t, parsed.InstructionError(), tc.raw)
		assert.Equal(t, tc.index, parsed.InstructionError().Index)
		assert.Equal(t, tc.instruction, parsed.InstructionError().ErrorKey())
		assert.Equal(t, tc.custom, parsed.InstructionError().CustomError())
		assert.Contains(t, parsed.Error(), "error processing instruction")
	}
}

func TestParseTransactionError_Invalid(t *testing.T) {
	parsed, err := ParseTransactionError(nil)
	assert.NoError(t, err)
	assert.Nil(t, parsed)

	for _, raw := range []string{
		`12`,
		`{"a":1,"b":2}`,
		`{"InstructionError":[0]}`,
		`{"InstructionError":["x","InvalidArgument"]}`,
		`{"InstructionError":[0,{"Custom":"abc"}]}`,
		`{"InstructionError":[0,7]}`,
	} {
		_, err := ParseTransactionError(decodeJSON(t, raw))
		assert.Error(t, err, raw)
	}
}

func TestTransactionErrorFromInstructionError(t *testing.T) {
	txErr := TransactionErrorFromInstructionError(&InstructionError{Index: 2, Err: CustomError(3)})
	encoded, err := txErr.JSONString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"InstructionError":[2,{"Custom":3}]}`, encoded)

	txErr = TransactionErrorFromInstructionError(&InstructionError{Index: 0, Err: errors.New(string(InstructionErrorInvalidArgument))})
	encoded, err = txErr.JSONString()
	require.NoError(t, err)
	assert.JSONEq(t, `{"InstructionError":[0,"InvalidArgument"]}`, encoded)

	encoded, err = NewTransactionError(TransactionErrorBlockhashNotFound).JSONString()
	require.NoError(t, err)
	assert.Equal(t, `"BlockhashNotFound"`, encoded)
}

func TestParseRPCError(t *testing.T) {
	parsed, err := ParseRPCError(nil)
	assert.NoError(t, err)
	assert.Nil(t, parsed)

	parsed, err = ParseRPCError(&jsonrpc.RPCError{Code: -32002})
	assert.NoError(t, err)
	assert.Nil(t, parsed)

	parsed, err = ParseRPCError(&jsonrpc.RPCError{
		Code: -32002,
		Data: decodeJSON(t, `{"err":"BlockhashNotFound","logs":[]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, TransactionErrorBlockhashNotFound, parsed.ErrorKey())

	_, err = ParseRPCError(&jsonrpc.RPCError{Code: -32002, Data: "oops"})
	assert.Error(t, err)
}

func TestParseJSONNumber(t *testing.T) {
	for _, v := range []interface{}{"7", 7.0, 7, json.Number("7")} {
		n, err := parseJSONNumber(v)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	}

	for _, v := range []interface{}{"seven", json.Number("7.5"), true} {
		_, err := parseJSONNumber(v)
		assert.Error(t, err)
	}
}

func customErr(code int) *CustomError {
	c := CustomError(code)
	return &c
}
