// Package config loads and validates the workflow configuration file.
// Pinning and signing credentials may come from the environment (optionally
// via a .env file) instead of the workflow file, so the file can be shared
// without leaking secrets.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/guregu/null"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/withObsrvr/nft-campaign-runner/pkg/chain"
	"github.com/withObsrvr/nft-campaign-runner/pkg/pinning"
)

const envPrefix = "CAMPAIGN"

// Workflow is the root of the workflow configuration file.
type Workflow struct {
	Network    chain.Config   `yaml:"network"`
	Pinning    pinning.Config `yaml:"pinning"`
	Collection Collection     `yaml:"collection"`
	Item       Item           `yaml:"item"`

	// MetadataFolder is where generated metadata documents are written
	// before pinning.
	MetadataFolder string `yaml:"metadata-folder"`

	// CheckpointDir defaults to .checkpoint next to the working directory.
	CheckpointDir string `yaml:"checkpoint-dir"`

	// OutputFile and ReportFile are derived from the data source path.
	OutputFile string `yaml:"-"`
	ReportFile string `yaml:"-"`
}

// Collection configures the on-chain collection to create or append to.
type Collection struct {
	ID       string        `yaml:"id"`
	Metadata *MetadataSpec `yaml:"metadata"`
}

// Item configures the per-gift work: data source, batching, metadata
// templates, and the optional initial fund for each gift account.
type Item struct {
	Data        Data          `yaml:"data"`
	BatchSize   int           `yaml:"batch-size"`
	InitialFund uint64        `yaml:"initial-fund"`
	Metadata    *MetadataSpec `yaml:"metadata"`
}

// Data locates the source table and the slice of it this run covers. Offset
// is 1-based; both offset and count are optional.
type Data struct {
	SourceFile string `yaml:"source-file"`
	Offset     *int64 `yaml:"offset"`
	Count      *int64 `yaml:"count"`
}

// MetadataSpec describes how to build metadata documents. Name and
// Description support <<column>> templating; the file name templates
// additionally support the <> row-number placeholder.
type MetadataSpec struct {
	Name                  string `yaml:"name"`
	Description           string `yaml:"description"`
	ImageFile             string `yaml:"image-file"`
	VideoFile             string `yaml:"video-file"`
	ImageFolder           string `yaml:"image-folder"`
	ImageFileNameTemplate string `yaml:"image-file-name-template"`
	VideoFolder           string `yaml:"video-folder"`
	VideoFileNameTemplate string `yaml:"video-file-name-template"`
}

// OffsetOrNull converts the optional offset for the checkpoint layer.
func (d Data) OffsetOrNull() null.Int {
	if d.Offset == nil {
		return null.Int{}
	}
	return null.IntFrom(*d.Offset)
}

// CountOrNull converts the optional count for the checkpoint layer.
func (d Data) CountOrNull() null.Int {
	if d.Count == nil {
		return null.Int{}
	}
	return null.IntFrom(*d.Count)
}

// DefaultBatchSize applies when item.batch-size is not configured.
const DefaultBatchSize = 100

// Load reads, overlays, and validates the workflow file at path.
func Load(path string) (*Workflow, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve config path %s", path)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read workflow config %s", absPath)
	}

	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse workflow config %s", absPath)
	}

	applyEnvOverrides(&wf)

	if err := wf.validate(absPath); err != nil {
		return nil, err
	}
	wf.applyDefaults()
	return &wf, nil
}

// applyEnvOverrides fills credentials from the environment when the file
// leaves them out. A .env file next to the working directory is honored.
func applyEnvOverrides(wf *Workflow) {
	_ = godotenv.Load() // missing .env is fine

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if s := v.GetString("pinning.api-key"); s != "" {
		wf.Pinning.APIKey = s
	}
	if s := v.GetString("pinning.secret-api-key"); s != "" {
		wf.Pinning.SecretAPIKey = s
	}
	if s := v.GetString("network.account-seed"); s != "" {
		wf.Network.AccountSeed = s
	}
}

func (wf *Workflow) validate(configFile string) error {
	missing := func(element string) error {
		return errors.Errorf("%s is not configured in %s", element, configFile)
	}

	if wf.Network.Endpoint == "" {
		return missing("network.endpoint")
	}
	if wf.Network.AccountSeed == "" {
		return missing("network.account-seed (or CAMPAIGN_NETWORK_ACCOUNT_SEED)")
	}
	if wf.Pinning.APIKey == "" {
		return missing("pinning.api-key (or CAMPAIGN_PINNING_API_KEY)")
	}
	if wf.Pinning.SecretAPIKey == "" {
		return missing("pinning.secret-api-key (or CAMPAIGN_PINNING_SECRET_API_KEY)")
	}
	if wf.Collection.ID == "" {
		return missing("collection.id")
	}
	if wf.Item.Data.SourceFile == "" {
		return missing("item.data.source-file")
	}

	sourceFile, err := filepath.Abs(wf.Item.Data.SourceFile)
	if err != nil {
		return errors.Wrap(err, "failed to resolve item.data.source-file")
	}
	wf.Item.Data.SourceFile = sourceFile
	if _, err := os.Stat(sourceFile); err != nil {
		return errors.Errorf("item.data.source-file does not exist at %s", sourceFile)
	}

	if meta := wf.Item.Metadata; meta != nil {
		if meta.Name == "" {
			return missing("item.metadata.name")
		}
		if meta.Description == "" {
			return missing("item.metadata.description")
		}
		if meta.ImageFileNameTemplate != "" {
			if meta.ImageFolder == "" {
				return missing("item.metadata.image-folder")
			}
			if _, err := os.Stat(meta.ImageFolder); err != nil {
				return errors.Errorf("item.metadata.image-folder does not exist at %s", meta.ImageFolder)
			}
		}
		if meta.VideoFileNameTemplate != "" && meta.VideoFolder == "" {
			return missing("item.metadata.video-folder")
		}
	}
	return nil
}

func (wf *Workflow) applyDefaults() {
	if wf.Item.BatchSize <= 0 {
		wf.Item.BatchSize = DefaultBatchSize
	}
	if wf.CheckpointDir == "" {
		wf.CheckpointDir = ".checkpoint"
	}
	if wf.MetadataFolder == "" {
		wf.MetadataFolder = filepath.Dir(wf.Item.Data.SourceFile)
	}

	ext := filepath.Ext(wf.Item.Data.SourceFile)
	base := strings.TrimSuffix(wf.Item.Data.SourceFile, ext)
	if ext == "" {
		ext = ".csv"
	}
	wf.OutputFile = base + ".final" + ext
	wf.ReportFile = base + ".report.xlsx"
}
