package market

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/agora-markets/agora/internal/asset"
)

// custody is an engine's asset-holding account plus the receive hook that
// gates inbound transfers. The hook accepts a transfer only while the engine
// itself is executing a custody pull; a third party pushing assets directly
// at the engine is rejected so no quantity can enter custody without a
// listing or bid flow accounting for it.
type custody struct {
	assets  *asset.Ledger
	account common.Address

	// expecting is set only for the duration of the engine's own pull.
	expecting atomic.Bool
}

// newCustody derives a stable account address from the engine name and
// registers the receive hook with the asset ledger.
func newCustody(assets *asset.Ledger, engineName string) *custody {
	c := &custody{
		assets:  assets,
		account: common.BytesToAddress(crypto.Keccak256([]byte(engineName))[12:]),
	}
	assets.Register(c.account, c)
	return c
}

// OnTransferReceived implements asset.Receiver. A transfer is accepted only
// when the engine's own pull is in flight and the engine itself is the
// operator; a third-party push racing a pull is still rejected.
func (c *custody) OnTransferReceived(operator, from common.Address, id, amount uint64) error {
	if !c.expecting.Load() || operator != c.account {
		return ErrUnsolicitedTransfer
	}
	return nil
}

// pull moves amount units of token id from the given account into custody.
func (c *custody) pull(from common.Address, id, amount uint64) error {
	c.expecting.Store(true)
	defer c.expecting.Store(false)
	return c.assets.SafeTransferFrom(c.account, from, c.account, id, amount)
}

// push moves amount units of token id out of custody to the given account.
func (c *custody) push(to common.Address, id, amount uint64) error {
	return c.assets.SafeTransferFrom(c.account, c.account, to, id, amount)
}
