// Package chain provides the gateway client the workflow uses to submit
// transaction batches, query chain state, and estimate fees. The workflow
// consumes the Client interface; the JSON-RPC implementation lives in
// gateway.go.
package chain

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
)

// Tx describes a single call to be included in a batch. Args are marshalled
// positionally into the submission payload.
type Tx struct {
	Module string `json:"module"`
	Call   string `json:"call"`
	Args   []any  `json:"args"`
}

func (t Tx) String() string {
	return fmt.Sprintf("%s.%s%v", t.Module, t.Call, t.Args)
}

// Event is one chain event emitted while a submitted batch executed.
type Event struct {
	Module string   `json:"module"`
	Method string   `json:"method"`
	Data   []string `json:"data"`
}

// Client is the capability surface the workflow needs from the chain. All
// submissions await finalization before returning.
type Client interface {
	// SubmitBatch submits txs as one atomic batch signed by the operator
	// account and returns the events emitted on success.
	SubmitBatch(ctx context.Context, txs []Tx) ([]Event, error)

	// SubmitBatchAs is SubmitBatch signed by the account derived from seed.
	// Used by burn/reap, where each gift account signs for itself.
	SubmitBatchAs(ctx context.Context, seed string, txs []Tx) ([]Event, error)

	// Query reads chain state at path (e.g. "nfts/collection") with
	// positional args and returns the raw result for the caller to pick
	// fields out of.
	Query(ctx context.Context, path string, args ...any) (gjson.Result, error)

	// EstimateFee returns the estimated fee for a single tx.
	EstimateFee(ctx context.Context, tx Tx) (uint64, error)

	// ExistentialDeposit returns the chain's minimum viable account balance.
	ExistentialDeposit(ctx context.Context) (uint64, error)
}

// Transaction builders. These are the only call shapes the workflow emits;
// keeping them here keeps module/call strings out of the stages.

func CreateCollection(collectionID, admin string) Tx {
	return Tx{Module: "nfts", Call: "createCollection", Args: []any{collectionID, admin}}
}

func MintItem(collectionID string, itemID int, owner string) Tx {
	return Tx{Module: "nfts", Call: "mint", Args: []any{collectionID, itemID, owner}}
}

func SetCollectionMetadata(collectionID, metadataCid string) Tx {
	return Tx{Module: "nfts", Call: "setCollectionMetadata", Args: []any{collectionID, metadataCid}}
}

func SetItemMetadata(collectionID string, itemID int, metadataCid string) Tx {
	return Tx{Module: "nfts", Call: "setMetadata", Args: []any{collectionID, itemID, metadataCid}}
}

func BurnItem(collectionID string, itemID int) Tx {
	return Tx{Module: "nfts", Call: "burn", Args: []any{collectionID, itemID}}
}

func ClearItemMetadata(collectionID string, itemID int) Tx {
	return Tx{Module: "nfts", Call: "clearMetadata", Args: []any{collectionID, itemID}}
}

func Transfer(dest string, amount uint64) Tx {
	return Tx{Module: "balances", Call: "transfer", Args: []any{dest, amount}}
}

// TransferAll moves the account's entire free balance to dest, reaping the
// account when keepAlive is false.
func TransferAll(dest string, keepAlive bool) Tx {
	return Tx{Module: "balances", Call: "transferAll", Args: []any{dest, keepAlive}}
}
