package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/guregu/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/withObsrvr/nft-campaign-runner/internal/cli/prompt"
	"github.com/withObsrvr/nft-campaign-runner/internal/config"
	"github.com/withObsrvr/nft-campaign-runner/pkg/chain"
	"github.com/withObsrvr/nft-campaign-runner/pkg/checkpoint"
	"github.com/withObsrvr/nft-campaign-runner/pkg/pinning"
	"github.com/withObsrvr/nft-campaign-runner/pkg/record"
)

// fakeChain records submissions and serves canned query results.
type fakeChain struct {
	mu          sync.Mutex
	submissions [][]chain.Tx
	signedAs    []string
	queries     map[string]string // "path arg1 arg2" -> JSON
	queriesOnce map[string]string // consumed on first read
	deposit     uint64
	fee         uint64
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		queries:     map[string]string{},
		queriesOnce: map[string]string{},
		deposit:     100,
		fee:         10,
	}
}

func (f *fakeChain) SubmitBatch(_ context.Context, txs []chain.Tx) ([]chain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, txs)
	return nil, nil
}

func (f *fakeChain) SubmitBatchAs(_ context.Context, seed string, txs []chain.Tx) ([]chain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedAs = append(f.signedAs, seed)
	f.submissions = append(f.submissions, txs)
	return nil, nil
}

func (f *fakeChain) Query(_ context.Context, path string, args ...any) (gjson.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := path
	for _, a := range args {
		key += fmt.Sprintf(" %v", a)
	}
	if raw, ok := f.queriesOnce[key]; ok {
		delete(f.queriesOnce, key)
		return gjson.Parse(raw), nil
	}
	if raw, ok := f.queries[key]; ok {
		return gjson.Parse(raw), nil
	}
	return gjson.Parse("null"), nil
}

func (f *fakeChain) EstimateFee(context.Context, chain.Tx) (uint64, error) {
	return f.fee, nil
}

func (f *fakeChain) ExistentialDeposit(context.Context) (uint64, error) {
	return f.deposit, nil
}

func (f *fakeChain) OperatorAddress() string { return "GOPERATOR" }

func (f *fakeChain) submitted() [][]chain.Tx {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]chain.Tx(nil), f.submissions...)
}

// The production collaborators must satisfy the stage-facing interfaces.
var (
	_ ChainClient = (*chain.GatewayClient)(nil)
	_ Pinner      = (*pinning.Client)(nil)
)

// fakePinner returns deterministic content ids.
type fakePinner struct {
	mu   sync.Mutex
	pins []string
}

func (f *fakePinner) PinFile(_ context.Context, path, name string, useCache bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pins = append(f.pins, name)
	return "Qm-" + name, nil
}

type fixture struct {
	ctx   *Context
	chain *fakeChain
	pins  *fakePinner
}

func newFixture(t *testing.T, rows int, mutate func(*config.Workflow)) *fixture {
	t.Helper()
	dir := t.TempDir()

	table := &record.Table{Header: []string{"name", "email"}}
	for i := 0; i < rows; i++ {
		table.Rows = append(table.Rows, []string{
			fmt.Sprintf("gift-%d", i), fmt.Sprintf("gift-%d@example.com", i),
		})
	}
	source := filepath.Join(dir, "gifts.csv")
	require.NoError(t, table.Write(source))

	cfg := &config.Workflow{
		Collection:     config.Collection{ID: "7"},
		MetadataFolder: filepath.Join(dir, "meta"),
		CheckpointDir:  filepath.Join(dir, ".checkpoint"),
		OutputFile:     filepath.Join(dir, "gifts.final.csv"),
		ReportFile:     filepath.Join(dir, "gifts.report.xlsx"),
	}
	cfg.Item.Data.SourceFile = source
	cfg.Item.BatchSize = 2
	if mutate != nil {
		mutate(cfg)
	}

	fc := newFakeChain()
	fp := &fakePinner{}
	p := prompt.NewWithIO(strings.NewReader(""), os.Stderr)
	p.AssumeYes = true

	wctx, err := Load(context.Background(), cfg, fc, fp, p, false)
	require.NoError(t, err)
	t.Cleanup(wctx.Unlock)

	return &fixture{ctx: wctx, chain: fc, pins: fp}
}

func TestRun_FullPipeline(t *testing.T) {
	f := newFixture(t, 5, func(cfg *config.Workflow) {
		cfg.Item.InitialFund = 500
		cfg.Collection.Metadata = &config.MetadataSpec{Name: "Gifts", Description: "d"}
	})

	require.NoError(t, f.ctx.Run(context.Background()))

	// create collection + 3 mint batches + 3 funding batches
	subs := f.chain.submitted()
	var mints, transfers, creates int
	for _, txs := range subs {
		for _, tx := range txs {
			switch tx.Call {
			case "mint":
				mints++
			case "transfer":
				transfers++
			case "createCollection":
				creates++
			}
		}
	}
	assert.Equal(t, 1, creates)
	assert.Equal(t, 5, mints)
	assert.Equal(t, 5, transfers)

	// Checkpoints are removed after a fully successful run.
	assert.False(t, f.ctx.Store.Exists())

	// The exported files exist.
	assert.FileExists(t, f.ctx.Config.OutputFile)
	assert.FileExists(t, f.ctx.Config.ReportFile)

	// The final table carries secrets, addresses, and sequential item ids.
	final, err := record.Load(f.ctx.Config.OutputFile)
	require.NoError(t, err)
	cols := final.Columns(checkpoint.ColSecret, checkpoint.ColAddress, checkpoint.ColItemID)
	for i := 0; i < 5; i++ {
		assert.NotEmpty(t, cols[0].Values[i], "row %d secret", i)
		assert.NotEmpty(t, cols[1].Values[i], "row %d address", i)
		assert.Equal(t, fmt.Sprint(i), cols[2].Values[i], "row %d item id", i)
	}
}

func TestMint_ResumesFromCheckpointedBatch(t *testing.T) {
	f := newFixture(t, 5, nil)

	require.NoError(t, f.ctx.generateGiftSecrets())
	require.NoError(t, f.ctx.createCollection(context.Background()))

	// Two of three batches already committed by a previous run.
	f.ctx.Store.Batch.Mint = null.IntFrom(2)

	require.NoError(t, f.ctx.mintItems(context.Background()))

	var mintBatches [][]chain.Tx
	for _, txs := range f.chain.submitted() {
		if txs[0].Call == "mint" {
			mintBatches = append(mintBatches, txs)
		}
	}
	require.Len(t, mintBatches, 1, "only the uncommitted batch is replayed")
	require.Len(t, mintBatches[0], 1, "final short batch holds one row")
	assert.Equal(t, 4, mintBatches[0][0].Args[1], "item id continues the sequence")
}

func TestStages_OffsetPastEndIsNoOp(t *testing.T) {
	offset := int64(50)
	f := newFixture(t, 10, func(cfg *config.Workflow) {
		cfg.Item.Data.Offset = &offset
		cfg.Item.InitialFund = 500
	})

	require.NoError(t, f.ctx.generateGiftSecrets())
	require.NoError(t, f.ctx.createCollection(context.Background()))
	require.NoError(t, f.ctx.mintItems(context.Background()))
	require.NoError(t, f.ctx.sendInitialFunds(context.Background()))

	for _, txs := range f.chain.submitted() {
		for _, tx := range txs {
			assert.NotEqual(t, "mint", tx.Call, "an exhausted range must mint nothing")
			assert.NotEqual(t, "transfer", tx.Call, "an exhausted range must fund nothing")
		}
	}
	cols := f.ctx.Store.Data.Table.Columns(checkpoint.ColSecret)
	for i, v := range cols[0].Values {
		assert.Empty(t, v, "row %d is outside the range and must stay untouched", i)
	}
}

func TestMint_RequiresAddresses(t *testing.T) {
	f := newFixture(t, 3, nil)
	require.NoError(t, f.ctx.createCollection(context.Background()))

	err := f.ctx.mintItems(context.Background())
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestGenerateGiftSecrets_Idempotent(t *testing.T) {
	f := newFixture(t, 3, nil)

	require.NoError(t, f.ctx.generateGiftSecrets())
	first := f.ctx.Store.Data.Table.Columns(checkpoint.ColSecret)[0].Values

	require.NoError(t, f.ctx.generateGiftSecrets())
	second := f.ctx.Store.Data.Table.Columns(checkpoint.ColSecret)[0].Values
	assert.Equal(t, first, second, "existing secrets must never be regenerated")
}

func TestSetItemMetadata_IncompleteCheckpoint(t *testing.T) {
	f := newFixture(t, 3, func(cfg *config.Workflow) {
		cfg.Item.Metadata = &config.MetadataSpec{Name: "Gift <<name>>", Description: "d"}
	})
	require.NoError(t, f.ctx.createCollection(context.Background()))

	// Metadata cids present but item ids missing.
	values := []string{"c1", "c2", "c3"}
	require.NoError(t, f.ctx.Store.Data.Table.SetColumns(record.Column{
		Title: checkpoint.ColMetaCid, Values: values,
	}))

	err := f.ctx.setItemMetadata(context.Background())
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestPinAndSetItemMetadata_SkipsRecordedRows(t *testing.T) {
	f := newFixture(t, 3, func(cfg *config.Workflow) {
		cfg.Item.Metadata = &config.MetadataSpec{Name: "Gift <<name>>", Description: "d"}
	})

	// Row 0 already has a metadata cid from a previous run.
	require.NoError(t, f.ctx.Store.Data.Table.SetColumns(record.Column{
		Title: checkpoint.ColMetaCid, Values: []string{"QmAlready", "", ""},
	}))

	require.NoError(t, f.ctx.pinAndSetItemMetadata(context.Background()))

	cols := f.ctx.Store.Data.Table.Columns(checkpoint.ColMetaCid)
	assert.Equal(t, "QmAlready", cols[0].Values[0])
	assert.NotEmpty(t, cols[0].Values[1])
	assert.NotEmpty(t, cols[0].Values[2])

	// Two new metadata pins, not three.
	assert.Len(t, f.pins.pins, 2)

	// The counter covers the full range afterwards.
	assert.Equal(t, int64(2), f.ctx.Store.Batch.MetaCid.ValueOrZero())
}

func TestDryRun_NoSideEffects(t *testing.T) {
	dir := t.TempDir()
	table := &record.Table{
		Header: []string{"name", "email"},
		Rows:   [][]string{{"a", "a@x"}, {"b", "b@x"}},
	}
	source := filepath.Join(dir, "gifts.csv")
	require.NoError(t, table.Write(source))

	cfg := &config.Workflow{
		Collection: config.Collection{
			ID:       "7",
			Metadata: &config.MetadataSpec{Name: "Gifts", Description: "d"},
		},
		MetadataFolder: filepath.Join(dir, "meta"),
		CheckpointDir:  filepath.Join(dir, ".checkpoint"),
		OutputFile:     filepath.Join(dir, "gifts.final.csv"),
		ReportFile:     filepath.Join(dir, "gifts.report.xlsx"),
	}
	cfg.Item.Data.SourceFile = source
	cfg.Item.BatchSize = 2
	cfg.Item.InitialFund = 500

	fc := newFakeChain()
	fp := &fakePinner{}
	p := prompt.NewWithIO(strings.NewReader(""), os.Stderr)
	p.AssumeYes = true

	wctx, err := Load(context.Background(), cfg, fc, fp, p, true)
	require.NoError(t, err)
	defer wctx.Unlock()

	require.NoError(t, wctx.Run(context.Background()))

	assert.Empty(t, fc.submitted(), "dry run must not submit transactions")
	assert.Empty(t, fp.pins, "dry run must not pin")
	assert.NoFileExists(t, cfg.OutputFile)

	// No checkpoint file of any kind may be written, so the next real run
	// starts clean without a resume prompt.
	assert.NoFileExists(t, filepath.Join(cfg.CheckpointDir, ".data.cp"))
	assert.NoFileExists(t, filepath.Join(cfg.CheckpointDir, ".batch.cp"))
	assert.NoFileExists(t, filepath.Join(cfg.CheckpointDir, ".collection.cp"))
	assert.False(t, wctx.Store.Exists())
}

func TestBurnAndReap(t *testing.T) {
	f := newFixture(t, 2, nil)
	require.NoError(t, f.ctx.generateGiftSecrets())
	require.NoError(t, f.ctx.createCollection(context.Background()))

	cols := f.ctx.Store.Data.Table.Columns(checkpoint.ColSecret, checkpoint.ColAddress)
	addr0, addr1 := cols[1].Values[0], cols[1].Values[1]

	// addr0 still holds item 0 with metadata and has balance left; addr1 is
	// already empty. The holding disappears once burned.
	f.chain.queriesOnce["nfts/account "+addr0+" 7"] = "[0]"
	f.chain.queries["nfts/itemMetadata 7 0"] = `"Qm-meta"`
	f.chain.queries["balances/account "+addr0] = `{"free":490}`
	f.chain.queries["balances/account "+addr1] = `{"free":0}`

	require.NoError(t, f.ctx.burnAndReap(context.Background()))

	var burns, clears, reaps int
	for _, txs := range f.chain.submitted() {
		for _, tx := range txs {
			switch tx.Call {
			case "burn":
				burns++
			case "clearMetadata":
				clears++
			case "transferAll":
				reaps++
			}
		}
	}
	assert.Equal(t, 1, burns)
	assert.Equal(t, 1, clears)
	// addr0 balance is reaped; addr1 has nothing to reap. The reap is
	// signed by the gift account itself.
	assert.Equal(t, 1, reaps)
	require.Len(t, f.chain.signedAs, 1)
	assert.Equal(t, cols[0].Values[0], f.chain.signedAs[0])
}

func TestBurnAndReap_SkipsAccountsStillHoldingItems(t *testing.T) {
	f := newFixture(t, 1, nil)
	require.NoError(t, f.ctx.generateGiftSecrets())
	require.NoError(t, f.ctx.createCollection(context.Background()))

	addr := f.ctx.Store.Data.Table.Columns(checkpoint.ColAddress)[0].Values[0]

	// The query keeps returning an item even after the burn: treat it as a
	// holding outside this run and do not reap.
	f.chain.queries["nfts/account "+addr+" 7"] = "[9]"
	f.chain.queries["nfts/itemMetadata 7 9"] = "null"
	f.chain.queries["balances/account "+addr] = `{"free":490}`

	require.NoError(t, f.ctx.burnAndReap(context.Background()))
	assert.Empty(t, f.chain.signedAs, "no reap for an account still holding items")
}

func TestLoadExisting_NoAppendConfirmation(t *testing.T) {
	dir := t.TempDir()
	table := &record.Table{
		Header: []string{"name", "email"},
		Rows:   [][]string{{"a", "a@x"}},
	}
	source := filepath.Join(dir, "gifts.csv")
	require.NoError(t, table.Write(source))

	cfg := &config.Workflow{
		Collection:    config.Collection{ID: "7"},
		CheckpointDir: filepath.Join(dir, ".checkpoint"),
	}
	cfg.Item.Data.SourceFile = source
	cfg.Item.BatchSize = 2

	fc := newFakeChain()
	fc.queries["nfts/collection 7"] = `{"items":42,"owner":"GOPERATOR"}`
	fp := &fakePinner{}

	// The prompter would answer "no" if asked; settling an existing
	// collection must not ask at all.
	p := prompt.NewWithIO(strings.NewReader(""), os.Stderr)

	wctx, err := LoadExisting(context.Background(), cfg, fc, fp, p, false)
	require.NoError(t, err)
	defer wctx.Unlock()

	assert.Equal(t, "7", wctx.Store.Collection.ID)
	assert.True(t, wctx.Store.Collection.IsExisting)
	assert.Equal(t, 42, wctx.Store.Collection.StartItemID)
}

func TestLoad_SecondRunIsLockedOut(t *testing.T) {
	f := newFixture(t, 1, nil)

	p := prompt.NewWithIO(strings.NewReader(""), os.Stderr)
	p.AssumeYes = true
	_, err := Load(context.Background(), f.ctx.Config, f.chain, f.pins, p, false)
	require.ErrorIs(t, err, checkpoint.ErrLocked)
}

func TestVerify_InitialFundBelowDeposit(t *testing.T) {
	f := newFixture(t, 1, func(cfg *config.Workflow) {
		cfg.Item.InitialFund = 50 // deposit is 100
	})

	err := f.ctx.verify(context.Background())
	assert.ErrorContains(t, err, "existential deposit")
}

func TestFormatFileName(t *testing.T) {
	f := newFixture(t, 2, nil)

	assert.Equal(t, "2.png", f.ctx.formatFileName("<>.png", 0))
	assert.Equal(t, "3.png", f.ctx.formatFileName("<>.png", 1))
	assert.Equal(t, "gift-0.png", f.ctx.formatFileName("<<name>>.png", 0))
}
