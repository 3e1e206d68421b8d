package ingest

import "github.com/lazypower/visarea/internal/store"

// ChunkByNode groups locations into chunks of roughly size locations without
// splitting a node across chunks. Nodes keep their first-seen order and each
// node's locations keep input order. A node with more than size locations
// gets a chunk of its own.
func ChunkByNode(locs []*store.Location, size int) [][]*store.Location {
	var order []string
	byNode := make(map[string][]*store.Location)
	for _, loc := range locs {
		if _, ok := byNode[loc.NodeID]; !ok {
			order = append(order, loc.NodeID)
		}
		byNode[loc.NodeID] = append(byNode[loc.NodeID], loc)
	}

	var chunks [][]*store.Location
	var cur []*store.Location
	for _, id := range order {
		group := byNode[id]
		if len(cur) > 0 && len(cur)+len(group) > size {
			chunks = append(chunks, cur)
			cur = nil
		}
		cur = append(cur, group...)
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// Nodes returns the distinct node ids in locs, in first-seen order.
func Nodes(locs []*store.Location) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, loc := range locs {
		if !seen[loc.NodeID] {
			seen[loc.NodeID] = true
			ids = append(ids, loc.NodeID)
		}
	}
	return ids
}
