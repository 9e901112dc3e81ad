package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/stellar/go/keypair"
	"github.com/tidwall/gjson"
)

// Config is the network section of the workflow configuration.
type Config struct {
	// Endpoint is the URL of the chain's JSON-RPC gateway.
	Endpoint string `yaml:"endpoint"`
	// AccountSeed is the operator account's secret seed.
	AccountSeed string `yaml:"account-seed"`
	// ProxiedAddress, when set, wraps every submission in a proxy call on
	// behalf of this address.
	ProxiedAddress string `yaml:"proxied-address"`
}

// RPCError is a JSON-RPC level failure returned by the gateway.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// DispatchError is an on-chain failure of a finalized submission, decoded
// into the module.name form the operator can look up.
type DispatchError struct {
	Module string `json:"module"`
	Name   string `json:"name"`
	Docs   string `json:"docs"`
}

func (e *DispatchError) Error() string {
	if e.Module == "" {
		return e.Name
	}
	return fmt.Sprintf("%s.%s: %s", e.Module, e.Name, e.Docs)
}

// GatewayClient talks JSON-RPC over HTTP to a chain gateway node. It signs
// submissions locally with the operator keypair; seeds never leave the
// process.
type GatewayClient struct {
	endpoint string
	operator *keypair.Full
	proxied  string
	client   *http.Client
}

// Dial validates the network configuration and constructs a client. It does
// not touch the network; the first RPC does.
func Dial(cfg Config) (*GatewayClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("no RPC endpoint is configured for the network")
	}
	if cfg.AccountSeed == "" {
		return nil, errors.New("no account seed is configured to sign with")
	}
	operator, err := keypair.ParseFull(cfg.AccountSeed)
	if err != nil {
		return nil, errors.Wrap(err, "invalid operator account seed")
	}
	return &GatewayClient{
		endpoint: cfg.Endpoint,
		operator: operator,
		proxied:  cfg.ProxiedAddress,
		client:   &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// OperatorAddress is the address funds are reclaimed to during burn/reap.
func (c *GatewayClient) OperatorAddress() string {
	return c.operator.Address()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type submitParams struct {
	Txs       []Tx   `json:"txs"`
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
	Proxied   string `json:"proxied,omitempty"`
	Finalize  bool   `json:"finalize"`
}

func (c *GatewayClient) SubmitBatch(ctx context.Context, txs []Tx) ([]Event, error) {
	return c.submit(ctx, c.operator, txs)
}

func (c *GatewayClient) SubmitBatchAs(ctx context.Context, seed string, txs []Tx) ([]Event, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return nil, errors.Wrap(err, "invalid signing seed")
	}
	return c.submit(ctx, kp, txs)
}

func (c *GatewayClient) submit(ctx context.Context, signer *keypair.Full, txs []Tx) ([]Event, error) {
	payload, err := json.Marshal(txs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode batch")
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign batch")
	}

	result, err := c.call(ctx, "author_submitBatch", submitParams{
		Txs:       txs,
		Signer:    signer.Address(),
		Signature: base64.StdEncoding.EncodeToString(sig),
		Proxied:   c.proxied,
		Finalize:  true,
	})
	if err != nil {
		return nil, err
	}

	if dispatchErr := result.Get("dispatchError"); dispatchErr.Exists() {
		derr := &DispatchError{
			Module: dispatchErr.Get("module").String(),
			Name:   dispatchErr.Get("name").String(),
			Docs:   dispatchErr.Get("docs").String(),
		}
		if derr.Name == "" {
			derr.Name = dispatchErr.String()
		}
		return nil, derr
	}

	var events []Event
	for _, ev := range result.Get("events").Array() {
		event := Event{
			Module: ev.Get("module").String(),
			Method: ev.Get("method").String(),
		}
		for _, d := range ev.Get("data").Array() {
			event.Data = append(event.Data, d.String())
		}
		events = append(events, event)
	}
	log.Printf("[INFO] Batch of %d tx(s) finalized, %d event(s)", len(txs), len(events))
	return events, nil
}

func (c *GatewayClient) Query(ctx context.Context, path string, args ...any) (gjson.Result, error) {
	result, err := c.call(ctx, "state_query", map[string]any{
		"path": path,
		"args": args,
	})
	if err != nil {
		return gjson.Result{}, err
	}
	return result, nil
}

func (c *GatewayClient) EstimateFee(ctx context.Context, tx Tx) (uint64, error) {
	result, err := c.call(ctx, "payment_estimateFee", map[string]any{"tx": tx})
	if err != nil {
		return 0, err
	}
	return result.Get("partialFee").Uint(), nil
}

func (c *GatewayClient) ExistentialDeposit(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "state_query", map[string]any{
		"path": "consts/balances/existentialDeposit",
	})
	if err != nil {
		return 0, err
	}
	return result.Uint(), nil
}

// call performs one JSON-RPC round trip and returns the result body.
func (c *GatewayClient) call(ctx context.Context, method string, params any) (gjson.Result, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "failed to encode RPC request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, errors.Wrap(err, "failed to create RPC request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "RPC %s failed", method)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, errors.Wrapf(err, "failed to read RPC %s response", method)
	}
	raw := string(data)

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, errors.Errorf("RPC %s returned status %d: %s", method, resp.StatusCode, raw)
	}
	if rpcErr := gjson.Get(raw, "error"); rpcErr.Exists() {
		return gjson.Result{}, &RPCError{
			Code:    int(rpcErr.Get("code").Int()),
			Message: rpcErr.Get("message").String(),
		}
	}
	return gjson.Get(raw, "result"), nil
}
