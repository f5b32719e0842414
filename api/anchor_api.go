package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/eth2030/xlbus/anchor"
	"github.com/eth2030/xlbus/core/types"
)

// AnchorAPI is the "anchor" RPC namespace.
type AnchorAPI struct {
	anchor *anchor.StateRootAnchor
}

// NewAnchorAPI creates the anchor namespace.
func NewAnchorAPI(a *anchor.StateRootAnchor) *AnchorAPI {
	return &AnchorAPI{anchor: a}
}

// LatestHeight implements anchor_latestHeight.
func (api *AnchorAPI) LatestHeight() hexutil.Uint64 {
	return hexutil.Uint64(api.anchor.LatestHeight())
}

// GetStateRoot implements anchor_getStateRoot. Unknown and evicted heights
// return the zero hash.
func (api *AnchorAPI) GetStateRoot(height hexutil.Uint64) types.Hash {
	return api.anchor.GetStateRoot(uint64(height))
}

// CommitStateRoot implements anchor_commitStateRoot. sig is a worker's
// signature over anchor.CommitDigest; the committer is the recovered signer.
func (api *AnchorAPI) CommitStateRoot(height hexutil.Uint64, root types.Hash, sig hexutil.Bytes) error {
	return wrapError(api.anchor.CommitSignedStateRoot(uint64(height), root, sig))
}

// Info implements anchor_info.
func (api *AnchorAPI) Info() *AnchorInfo {
	info := &AnchorInfo{
		RemoteChainID: hexutil.Uint64(api.anchor.RemoteChainID()),
		MaxEntries:    hexutil.Uint64(api.anchor.MaxEntries()),
		LatestHeight:  hexutil.Uint64(api.anchor.LatestHeight()),
	}
	for _, h := range api.anchor.RetainedHeights() {
		info.Retained = append(info.Retained, hexutil.Uint64(h))
	}
	return info
}

// StateRoots implements anchor_subscribe("stateRoots").
func (api *AnchorAPI) StateRoots(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	rpcSub := notifier.CreateSubscription()
	roots := make(chan anchor.StateRootAvailable, 16)
	sub := api.anchor.SubscribeStateRoots(roots)

	go func() {
		defer sub.Unsubscribe()

		for {
			select {
			case ev := <-roots:
				notifier.Notify(rpcSub.ID, newRPCStateRoot(ev))
			case <-rpcSub.Err():
				return
			}
		}
	}()
	return rpcSub, nil
}
