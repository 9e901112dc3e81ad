package chain

import (
	"github.com/pkg/errors"
	"github.com/stellar/go/keypair"
)

// GenerateGiftSecret creates a fresh throwaway keypair for one gift account
// and returns its secret seed and address.
func GenerateGiftSecret() (secret, address string, err error) {
	kp, err := keypair.Random()
	if err != nil {
		return "", "", errors.Wrap(err, "failed to generate gift keypair")
	}
	return kp.Seed(), kp.Address(), nil
}

// AddressFromSecret re-derives the address for a checkpointed gift secret.
func AddressFromSecret(secret string) (string, error) {
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return "", errors.Wrap(err, "invalid gift account secret")
	}
	return kp.Address(), nil
}

// ValidAddress reports whether addr is a well-formed account address. Used
// to normalize identifiers at the checkpoint-load boundary.
func ValidAddress(addr string) bool {
	_, err := keypair.ParseAddress(addr)
	return err == nil
}
