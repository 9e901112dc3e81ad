package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/guregu/null"
	"github.com/pkg/errors"

	"github.com/withObsrvr/nft-campaign-runner/internal/config"
	"github.com/withObsrvr/nft-campaign-runner/pkg/batch"
	"github.com/withObsrvr/nft-campaign-runner/pkg/chain"
	"github.com/withObsrvr/nft-campaign-runner/pkg/checkpoint"
)

// metadataDocument is the JSON pinned per item and for the collection.
type metadataDocument struct {
	Name         string `json:"name"`
	Image        string `json:"image,omitempty"`
	AnimationURL string `json:"animation_url,omitempty"`
	Description  string `json:"description"`
}

type metadataResult struct {
	MetaCid  string
	ImageCid string
	VideoCid string
}

// generateMetadata pins the optional image and video, writes the metadata
// document to metaPath, and pins it. Media pins use the content cache;
// metadata pins never do, since every document is unique.
func (c *Context) generateMetadata(ctx context.Context, name, description, imageFile, videoFile, metaPath string) (metadataResult, error) {
	var result metadataResult

	if imageFile != "" {
		if err := mustBeFile(imageFile); err != nil {
			return result, err
		}
		cid, err := c.pinFile(ctx, imageFile, pinName(imageFile, "image"), true)
		if err != nil {
			return result, errors.Wrapf(err, "failed to pin image %s", imageFile)
		}
		result.ImageCid = cid
	}

	if videoFile != "" {
		if err := mustBeFile(videoFile); err != nil {
			return result, err
		}
		cid, err := c.pinFile(ctx, videoFile, pinName(videoFile, "video"), true)
		if err != nil {
			return result, errors.Wrapf(err, "failed to pin video %s", videoFile)
		}
		result.VideoCid = cid
	}

	doc := metadataDocument{
		Name:        name,
		Description: description,
	}
	if result.ImageCid != "" {
		doc.Image = "ipfs://ipfs/" + result.ImageCid
	}
	if result.VideoCid != "" {
		doc.AnimationURL = "ipfs://ipfs/" + result.VideoCid
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return result, errors.Wrap(err, "failed to encode metadata document")
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), 0700); err != nil {
		return result, errors.Wrap(err, "failed to create metadata folder")
	}
	if err := os.WriteFile(metaPath, data, 0600); err != nil {
		return result, errors.Wrapf(err, "failed to write metadata document %s", metaPath)
	}

	metaCid, err := c.pinFile(ctx, metaPath, pinName(metaPath, "meta"), false)
	if err != nil {
		return result, errors.Wrapf(err, "failed to pin metadata %s", metaPath)
	}
	result.MetaCid = metaCid
	return result, nil
}

// pinAndSetItemMetadata uploads the media and metadata for every row in the
// record range and records the three content-id columns, in batches guarded
// by the metaCid counter. Rows whose metadata cid is already recorded are
// skipped, so an interrupted batch only re-uploads its unfinished rows (and
// the media cache spares even those re-uploads).
func (c *Context) pinAndSetItemMetadata(ctx context.Context) error {
	meta := c.Config.Item.Metadata
	if meta == nil {
		log.Printf("[INFO] Skipped, no item metadata is configured for the workflow")
		return nil
	}

	data := c.Store.Data
	cols := data.Table.Columns(checkpoint.ColImageCid, checkpoint.ColVideoCid, checkpoint.ColMetaCid)
	imageCol, videoCol, metaCol := cols[0], cols[1], cols[2]

	uploaded := 0
	action := func(ctx context.Context, start, end, batchNo int) error {
		for i := start; i < end; i++ {
			if metaCol.Values[i] != "" {
				log.Printf("[INFO] Metadata for row %d is already uploaded, skipping", rowNumber(i))
				continue
			}
			result, err := c.generateRowMetadata(ctx, meta, i)
			if err != nil {
				return err
			}
			imageCol.Values[i] = result.ImageCid
			videoCol.Values[i] = result.VideoCid
			metaCol.Values[i] = result.MetaCid
			uploaded++
		}
		return nil
	}
	checkpointBatch := func(start, end, batchNo int) error {
		if err := data.Table.SetColumns(imageCol, videoCol, metaCol); err != nil {
			return err
		}
		if err := c.checkpointData(); err != nil {
			return err
		}
		c.Store.Batch.MetaCid = null.IntFrom(int64(batchNo))
		return c.checkpointBatch()
	}

	err := batch.Execute(ctx, batch.Info{
		StartRecordNo:       data.StartRecordNo,
		EndRecordNo:         data.EndRecordNo,
		BatchSize:           c.Config.Item.BatchSize,
		CheckpointedBatchNo: c.Store.Batch.MetaCid,
	}, action, checkpointBatch)
	if err != nil {
		return err
	}

	if uploaded > 0 {
		log.Printf("[INFO] %d metadata document(s) uploaded", uploaded)
	}
	return nil
}

// generateRowMetadata builds and pins the metadata for one data row.
func (c *Context) generateRowMetadata(ctx context.Context, meta *config.MetadataSpec, row int) (metadataResult, error) {
	data := c.Store.Data

	var imageFile, videoFile string
	if meta.ImageFileNameTemplate != "" {
		name := c.formatFileName(meta.ImageFileNameTemplate, row)
		imageFile = filepath.Join(meta.ImageFolder, name)
	}
	if meta.VideoFileNameTemplate != "" {
		name := c.formatFileName(meta.VideoFileNameTemplate, row)
		videoFile = filepath.Join(meta.VideoFolder, name)
	}

	itemName := data.Table.FillTemplate(meta.Name, data.Table.Rows[row])
	itemDescription := data.Table.FillTemplate(meta.Description, data.Table.Rows[row])

	metaPath := filepath.Join(c.Config.MetadataFolder, fmt.Sprintf("row-%d.meta", rowNumber(row)))
	return c.generateMetadata(ctx, itemName, itemDescription, imageFile, videoFile, metaPath)
}

// setItemMetadata submits one setMetadata call per item in batches guarded
// by the set-metadata counter. Both the item-id and metadata-cid columns
// must be fully populated over the record range.
func (c *Context) setItemMetadata(ctx context.Context) error {
	if c.Config.Item.Metadata == nil {
		log.Printf("[INFO] Skipped, no item metadata is configured for the workflow")
		return nil
	}

	col := c.Store.Collection
	if col.ID == "" {
		return errors.Wrap(ErrPrecondition, "no collection id is recorded")
	}

	data := c.Store.Data
	cols := data.Table.Columns(checkpoint.ColMetaCid, checkpoint.ColItemID)
	metaCol, itemCol := cols[0], cols[1]

	for i := data.StartRecordNo; i < data.EndRecordNo; i++ {
		if metaCol.Values[i] == "" {
			return errors.Wrapf(ErrPrecondition, "no metadata cid is recorded for row %d", rowNumber(i))
		}
		if _, err := strconv.Atoi(itemCol.Values[i]); err != nil {
			return errors.Wrapf(ErrPrecondition, "no item id is recorded for row %d", rowNumber(i))
		}
	}

	action := func(ctx context.Context, start, end, batchNo int) error {
		txs := make([]chain.Tx, 0, end-start)
		for i := start; i < end; i++ {
			itemID, _ := strconv.Atoi(itemCol.Values[i])
			txs = append(txs, chain.SetItemMetadata(col.ID, itemID, metaCol.Values[i]))
		}
		log.Printf("[INFO] Setting metadata batch %d for rows [%d, %d)", batchNo, start, end)
		return c.submitBatch(ctx, txs)
	}
	checkpointBatch := func(start, end, batchNo int) error {
		c.Store.Batch.SetMetadata = null.IntFrom(int64(batchNo))
		return c.checkpointBatch()
	}

	return batch.Execute(ctx, batch.Info{
		StartRecordNo:       data.StartRecordNo,
		EndRecordNo:         data.EndRecordNo,
		BatchSize:           c.Config.Item.BatchSize,
		CheckpointedBatchNo: c.Store.Batch.SetMetadata,
	}, action, checkpointBatch)
}

// formatFileName resolves a file name template for one row: the <>
// placeholder takes the 1-based sheet row number, <<column>> tokens take the
// row's cell values.
func (c *Context) formatFileName(template string, row int) string {
	if strings.Contains(template, "<>") {
		return strings.ReplaceAll(template, "<>", strconv.Itoa(rowNumber(row)))
	}
	return c.Store.Data.Table.FillTemplate(template, c.Store.Data.Table.Rows[row])
}

// rowNumber converts a zero-based record index to the row number the
// operator sees in the source sheet (header is row 1).
func rowNumber(i int) int {
	return i + 2
}

func mustBeFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Errorf("file %s does not exist", path)
	}
	if info.IsDir() {
		return errors.Errorf("path %s is not a file", path)
	}
	return nil
}

func pinName(path, kind string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + kind
}
