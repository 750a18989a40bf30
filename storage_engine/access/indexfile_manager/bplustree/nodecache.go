package bplus

import "github.com/dgraph-io/ristretto/v2"

// nodeCache memoizes decoded nodes by page id, consulted by fetchNode on
// every path (search, range, insert, split, remove) as a shortcut around
// re-running decodeNode on a page this process already decoded once. It is
// strictly an accelerator: fetchNode hands callers a copy rather than the
// cached node itself, and every write goes through writeBackNode, which
// calls invalidate for the page it encodes, so a stale entry can never be
// observed — a miss here, whether cold or just-evicted, always falls back
// to decodeNode exactly as if the cache did not exist.
type nodeCache struct {
	c *ristretto.Cache[uint32, *node]
}

func newNodeCache() *nodeCache {
	c, err := ristretto.NewCache(&ristretto.Config[uint32, *node]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		// Config above is static and always valid; a failure here means the
		// ristretto build itself is broken, not a data condition callers
		// can recover from.
		panic(err)
	}
	return &nodeCache{c: c}
}

func (nc *nodeCache) get(id uint32) (*node, bool) {
	return nc.c.Get(id)
}

func (nc *nodeCache) put(n *node) {
	nc.c.Set(n.id, n, 1)
}

func (nc *nodeCache) invalidate(id uint32) {
	nc.c.Del(id)
}
