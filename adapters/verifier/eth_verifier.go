package verifier

import (
	"errors"
	"fmt"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/internal/eth"
	"github.com/layer-3/scryptex/ports"
)

// EthVerifier checks EIP-191 personal_sign signatures produced by EVM wallets
type EthVerifier struct{}

// NewEthVerifier creates a new EVM signature verifier
func NewEthVerifier() ports.SignatureVerifier {
	return EthVerifier{}
}

// Verify recovers the signer of message and compares it to address.
// A well-formed signature from another key yields false without error.
func (EthVerifier) Verify(address, message, signature string) (bool, error) {
	signer, err := eth.RecoverPersonalSigner(message, signature)
	if err != nil {
		if errors.Is(err, eth.ErrMalformedSignature) {
			return false, fmt.Errorf("%w: %v", core.ErrSignatureVerificationFailed, err)
		}
		return false, err
	}
	return eth.SameAddress(signer.Hex(), address), nil
}
