package consensus

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/rechain/rechain/internal/cas"
)

// BlockStore resolves the opaque block bodies a BlockID refers to. The
// reactor itself never calls BlockStore: BlockID is opaque to consensus
// decisions. BlockStore exists for callers that need to turn a
// BlockAuthorized/BlockProposeAuthorized notification into actual bytes,
// e.g. to serve them to a late-joining peer.
type BlockStore struct {
	cas *cas.CAS
}

// NewBlockStore wraps an already-configured content-addressed store.
func NewBlockStore(c *cas.CAS) *BlockStore {
	return &BlockStore{cas: c}
}

// Put stores body and returns the BlockID the reactor should propose.
func (b *BlockStore) Put(ctx context.Context, body []byte) (BlockID, error) {
	info, err := b.cas.Store(ctx, bytes.NewReader(body), nil)
	if err != nil {
		return BlockID{}, fmt.Errorf("block store put: %w", err)
	}
	return blockIDFromCID(info.CID)
}

// Get retrieves the body previously stored for id.
func (b *BlockStore) Get(ctx context.Context, id BlockID) ([]byte, error) {
	rc, err := b.cas.Retrieve(ctx, hex.EncodeToString(id[:]))
	if err != nil {
		return nil, fmt.Errorf("block store get: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func blockIDFromCID(cid string) (BlockID, error) {
	raw, err := hex.DecodeString(cid)
	if err != nil {
		return BlockID{}, fmt.Errorf("decode cid %q: %w", cid, err)
	}
	var id BlockID
	n := copy(id[:], raw)
	if n == 0 {
		return BlockID{}, fmt.Errorf("empty cid")
	}
	return id, nil
}
