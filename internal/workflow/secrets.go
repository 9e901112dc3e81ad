package workflow

import (
	"log"

	"github.com/withObsrvr/nft-campaign-runner/pkg/chain"
	"github.com/withObsrvr/nft-campaign-runner/pkg/checkpoint"
)

// generateGiftSecrets creates a throwaway keypair for every row in the
// record range that does not have one yet and records the secret and address
// columns. Rows outside the range keep whatever they already hold.
func (c *Context) generateGiftSecrets() error {
	data := c.Store.Data
	cols := data.Table.Columns(checkpoint.ColSecret, checkpoint.ColAddress)
	secretCol, addressCol := cols[0], cols[1]

	updated := false
	for i := data.StartRecordNo; i < data.EndRecordNo; i++ {
		if secretCol.Values[i] != "" {
			continue
		}
		secret, address, err := chain.GenerateGiftSecret()
		if err != nil {
			return err
		}
		secretCol.Values[i] = secret
		addressCol.Values[i] = address
		updated = true
	}

	if updated {
		if err := data.Table.SetColumns(secretCol, addressCol); err != nil {
			return err
		}
		if err := c.checkpointData(); err != nil {
			return err
		}
	}
	log.Printf("[INFO] Gift secrets generated")
	return nil
}
