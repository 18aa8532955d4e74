package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// Response is a JSON-RPC 2.0 response envelope. Result stays raw so each
// method wrapper can decode its own payload shape.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// RPCError is the error object a node returns for a failed call.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Block is the wire form of an eth_getBlockByNumber result. Numeric fields
// arrive as hex quantity strings; Transactions stays raw because its shape
// depends on the fullTx request flag (hashes vs. full objects).
type Block struct {
	Number        string          `json:"number"`
	Hash          string          `json:"hash"`
	Timestamp     string          `json:"timestamp"`
	BaseFeePerGas string          `json:"baseFeePerGas"`
	Transactions  json.RawMessage `json:"transactions"`
}

// Transaction is the wire form of a transaction object inside a block. Only
// the fee fields matter here; legacy transactions omit the EIP-1559 caps and
// some clients omit gasPrice on typed transactions.
type Transaction struct {
	Hash                 string `json:"hash"`
	Type                 string `json:"type"`
	GasPrice             string `json:"gasPrice"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
}

// ParsedBlock is a Block with native types. BaseFeePerGas is zero, never
// nil, on blocks without a fee market.
type ParsedBlock struct {
	Number        uint64
	Hash          string
	Timestamp     uint64
	BaseFeePerGas *big.Int
	Transactions  []ParsedTransaction
}

// ParsedTransaction is a Transaction with native types. Absent fee fields
// parse to zero so callers never see a nil amount.
type ParsedTransaction struct {
	Hash                 string
	Type                 uint64
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Parsed converts the wire block into native types. fullTx must match the
// flag used for the fetch: when true the transactions array is decoded,
// otherwise it holds hashes and is skipped.
func (b *Block) Parsed(fullTx bool) (*ParsedBlock, error) {
	number, _ := ParseHexUint64(b.Number)
	timestamp, _ := ParseHexUint64(b.Timestamp)

	parsed := &ParsedBlock{
		Number:        number,
		Hash:          b.Hash,
		Timestamp:     timestamp,
		BaseFeePerGas: hexBigOrZero(b.BaseFeePerGas),
	}

	if !fullTx || len(b.Transactions) == 0 {
		return parsed, nil
	}

	var txs []Transaction
	if err := json.Unmarshal(b.Transactions, &txs); err != nil {
		return nil, fmt.Errorf("decode transactions of block %d: %w", number, err)
	}

	parsed.Transactions = make([]ParsedTransaction, len(txs))
	for i := range txs {
		parsed.Transactions[i] = txs[i].Parsed()
	}
	return parsed, nil
}

// Parsed converts the wire transaction into native types.
func (t *Transaction) Parsed() ParsedTransaction {
	txType, _ := ParseHexUint64(t.Type)
	return ParsedTransaction{
		Hash:                 t.Hash,
		Type:                 txType,
		GasPrice:             hexBigOrZero(t.GasPrice),
		MaxFeePerGas:         hexBigOrZero(t.MaxFeePerGas),
		MaxPriorityFeePerGas: hexBigOrZero(t.MaxPriorityFeePerGas),
	}
}
