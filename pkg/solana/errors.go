package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the variant name of a runtime TransactionError as
// it appears in RPC responses.
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse            TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountLoadedTwice      TransactionErrorKey = "AccountLoadedTwice"
	TransactionErrorAccountNotFound         TransactionErrorKey = "AccountNotFound"
	TransactionErrorProgramAccountNotFound  TransactionErrorKey = "ProgramAccountNotFound"
	TransactionErrorInsufficientFundsForFee TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorInvalidAccountForFee    TransactionErrorKey = "InvalidAccountForFee"
	TransactionErrorAlreadyProcessed        TransactionErrorKey = "AlreadyProcessed"
	TransactionErrorDuplicateSignature      TransactionErrorKey = "DuplicateSignature"
	TransactionErrorBlockhashNotFound       TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError        TransactionErrorKey = "InstructionError"
	TransactionErrorMissingSignatureForFee  TransactionErrorKey = "MissingSignatureForFee"
	TransactionErrorInvalidAccountIndex     TransactionErrorKey = "InvalidAccountIndex"
	TransactionErrorSignatureFailure        TransactionErrorKey = "SignatureFailure"
	TransactionErrorSanitizeFailure         TransactionErrorKey = "SanitizeFailure"
	TransactionErrorClusterMaintenance      TransactionErrorKey = "ClusterMaintenance"
	TransactionErrorUnsupportedVersion      TransactionErrorKey = "UnsupportedVersion"
	TransactionErrorInvalidWritableAccount  TransactionErrorKey = "InvalidWritableAccount"
)

// InstructionErrorKey is the variant name of an InstructionError.
type InstructionErrorKey string

const (
	InstructionErrorGenericError             InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument          InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData   InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData       InstructionErrorKey = "InvalidAccountData"
	InstructionErrorAccountDataTooSmall      InstructionErrorKey = "AccountDataTooSmall"
	InstructionErrorInsufficientFunds        InstructionErrorKey = "InsufficientFunds"
	InstructionErrorIncorrectProgramID       InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorMissingRequiredSignature InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorUninitializedAccount     InstructionErrorKey = "UninitializedAccount"
	InstructionErrorNotEnoughAccountKeys     InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorCustom                   InstructionErrorKey = "Custom"
)

// CustomError is a program specific error code.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %#x", int(c))
}

// InstructionError is a failure of the instruction at Index.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("error processing instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	switch i.Err.(type) {
	case nil:
		return ""
	case CustomError:
		return InstructionErrorCustom
	default:
		return InstructionErrorKey(i.Err.Error())
	}
}

func (i InstructionError) CustomError() *CustomError {
	if code, ok := i.Err.(CustomError); ok {
		return &code
	}
	return nil
}

// rawValue is the JSON shape the RPC uses for the error, e.g. [2, {"Custom": 3}].
func (i InstructionError) rawValue() interface{} {
	var detail interface{} = string(i.ErrorKey())
	if code := i.CustomError(); code != nil {
		detail = map[string]interface{}{string(InstructionErrorCustom): float64(*code)}
	}
	return []interface{}{float64(i.Index), detail}
}

// TransactionError is a runtime error attached to a failed transaction.
type TransactionError struct {
	key         TransactionErrorKey
	instruction *InstructionError
	raw         interface{}
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{
		key: key,
		raw: string(key),
	}
}

func TransactionErrorFromInstructionError(err *InstructionError) *TransactionError {
	return &TransactionError{
		key:         TransactionErrorInstructionError,
		instruction: err,
		raw: map[string]interface{}{
			string(TransactionErrorInstructionError): err.rawValue(),
		},
	}
}

// ParseRPCError extracts the transaction error carried in the data of a
// failed sendTransaction preflight. nil is returned if there is none.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil || err.Data == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected rpc error data type %T", err.Data)
	}
	return ParseTransactionError(data["err"])
}

// ParseTransactionError parses the decoded "err" field of an RPC result.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return &TransactionError{key: TransactionErrorKey(t), raw: raw}, nil
	case map[string]interface{}:
		if len(t) != 1 {
			return nil, errors.Errorf("expected a single error variant, got %d", len(t))
		}

		for k, v := range t {
			if k != string(TransactionErrorInstructionError) {
				return &TransactionError{key: TransactionErrorKey(k), raw: raw}, nil
			}

			instruction, err := parseInstructionError(v)
			if err != nil {
				return nil, errors.Wrap(err, "failed to parse instruction error")
			}
			return &TransactionError{
				key:         TransactionErrorInstructionError,
				instruction: instruction,
				raw:         raw,
			}, nil
		}
	}

	return nil, errors.Errorf("unexpected transaction error type %T", raw)
}

func parseInstructionError(v interface{}) (*InstructionError, error) {
	tuple, ok := v.([]interface{})
	if !ok || len(tuple) != 2 {
		return nil, errors.New("expected an [index, error] tuple")
	}

	index, err := parseJSONNumber(tuple[0])
	if err != nil {
		return nil, err
	}

	result := &InstructionError{Index: index}
	switch detail := tuple[1].(type) {
	case string:
		result.Err = errors.New(detail)
	case map[string]interface{}:
		if len(detail) != 1 {
			return nil, errors.Errorf("expected a single instruction error variant, got %d", len(detail))
		}
		for k, v := range detail {
			if k != string(InstructionErrorCustom) {
				result.Err = errors.New(k)
				continue
			}

			code, err := parseJSONNumber(v)
			if err != nil {
				return nil, errors.Wrap(err, "invalid custom error code")
			}
			result.Err = CustomError(code)
		}
	default:
		return nil, errors.Errorf("unexpected instruction error type %T", detail)
	}

	return result, nil
}

func (t TransactionError) Error() string {
	if t.instruction != nil {
		return t.instruction.Error()
	}
	return string(t.key)
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	return t.key
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instruction
}

// JSONString returns the error in the encoding the RPC produced it.
func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}

func parseJSONNumber(v interface{}) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errors.Errorf("non integer value %v", v)
		}
		return int(i), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, errors.Errorf("non numeric value %v", v)
		}
		return int(i), nil
	case float64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, errors.Errorf("non numeric value %v", v)
}
