package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	kp, err := keypair.Random()
	require.NoError(t, err)

	client, err := Dial(Config{Endpoint: srv.URL, AccountSeed: kp.Seed()})
	require.NoError(t, err)
	return client
}

func TestDial_Validation(t *testing.T) {
	_, err := Dial(Config{AccountSeed: "SEED"})
	assert.Error(t, err, "missing endpoint must fail")

	_, err = Dial(Config{Endpoint: "http://localhost:9933"})
	assert.Error(t, err, "missing seed must fail")

	_, err = Dial(Config{Endpoint: "http://localhost:9933", AccountSeed: "not-a-seed"})
	assert.Error(t, err, "malformed seed must fail")
}

func TestSubmitBatch_DecodesEvents(t *testing.T) {
	var gotMethod string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotMethod = req["method"].(string)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{
			"events":[{"module":"nfts","method":"Issued","data":["7","0"]}]}}`))
	})

	events, err := client.SubmitBatch(context.Background(), []Tx{
		MintItem("7", 0, "GABC"),
	})
	require.NoError(t, err)
	assert.Equal(t, "author_submitBatch", gotMethod)
	require.Len(t, events, 1)
	assert.Equal(t, "nfts", events[0].Module)
	assert.Equal(t, "Issued", events[0].Method)
	assert.Equal(t, []string{"7", "0"}, events[0].Data)
}

func TestSubmitBatch_DecodesDispatchError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{
			"dispatchError":{"module":"nfts","name":"NoPermission","docs":"The signing account has no permission."}}}`))
	})

	_, err := client.SubmitBatch(context.Background(), []Tx{BurnItem("7", 3)})
	require.Error(t, err)

	var derr *DispatchError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "nfts.NoPermission: The signing account has no permission.", derr.Error())
}

func TestSubmitBatch_RPCError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"pool is full"}}`))
	})

	_, err := client.SubmitBatch(context.Background(), []Tx{Transfer("GABC", 100)})
	var rerr *RPCError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "pool is full", rerr.Message)
}

func TestQueryAndConstants(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req["method"] {
		case "state_query":
			params := req["params"].(map[string]any)
			if params["path"] == "consts/balances/existentialDeposit" {
				w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":333333333}`))
				return
			}
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"items":42,"owner":"GXYZ"}}`))
		case "payment_estimateFee":
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"partialFee":1500}}`))
		}
	})

	result, err := client.Query(context.Background(), "nfts/collection", "7")
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Get("items").Int())

	fee, err := client.EstimateFee(context.Background(), Transfer("GABC", 100))
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), fee)

	ed, err := client.ExistentialDeposit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(333333333), ed)
}

func TestGiftSecrets(t *testing.T) {
	secret, address, err := GenerateGiftSecret()
	require.NoError(t, err)
	assert.True(t, ValidAddress(address))

	derived, err := AddressFromSecret(secret)
	require.NoError(t, err)
	assert.Equal(t, address, derived)

	_, err = AddressFromSecret("garbage")
	assert.Error(t, err)
	assert.False(t, ValidAddress("garbage"))
}
