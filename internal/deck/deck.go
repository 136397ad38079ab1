// Package deck is a pure read-side projection of the catalog's gradable,
// non-deleted cards into a tree keyed by shared source-path segments, with
// per-node total/active/due stats: the shared path prefix is stripped,
// chains of single-child directories collapse into one node, and internal
// node stats sum their descendants.
package deck

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/AM-Campbell/sr/internal/catalog"
	"github.com/AM-Campbell/sr/internal/clock"
)

// Node is one level of the deck tree. A leaf node's Path is the exact source
// path of the cards it summarizes; an internal node's Path is the directory
// path its children share.
type Node struct {
	Name     string
	Path     string
	Children []*Node
	Total    int
	Active   int
	Due      int
	IsLeaf   bool
}

type stats struct {
	total, active, due int
}

// Build projects store's current catalog state into a deck tree as of now.
func Build(store *catalog.Store, c clock.Clock) ([]*Node, error) {
	rows, err := store.DeckRows(clock.NowString(c))
	if err != nil {
		return nil, err
	}
	return FromRows(rows), nil
}

// FromRows runs the pure aggregation over rows already fetched from the
// catalog, split out so callers that already hold a row set (or a test) can
// skip the store round trip.
func FromRows(rows []catalog.DeckRow) []*Node {
	if len(rows) == 0 {
		return nil
	}

	pathStats := map[string]*stats{}
	var order []string
	for _, r := range rows {
		st, ok := pathStats[r.SourcePath]
		if !ok {
			st = &stats{}
			pathStats[r.SourcePath] = st
			order = append(order, r.SourcePath)
		}
		st.total++
		if r.Status == catalog.StatusActive {
			st.active++
			if r.IsDue {
				st.due++
			}
		}
	}

	common := commonBase(order)

	type leaf struct {
		parts    []string
		fullPath string
	}
	var leaves []leaf
	for _, sp := range order {
		rel, err := filepath.Rel(common, sp)
		if err != nil {
			rel = sp
		}
		rel = filepath.ToSlash(rel)
		leaves = append(leaves, leaf{parts: strings.Split(rel, "/"), fullPath: sp})
	}

	root := newTreeNode()
	for _, lf := range leaves {
		n := root
		for _, part := range lf.parts {
			child, ok := n.kids[part]
			if !ok {
				child = newTreeNode()
				n.kids[part] = child
				n.order = append(n.order, part)
			}
			n = child
		}
		st := pathStats[lf.fullPath]
		n.leafStats = st
		n.fullPath = lf.fullPath
	}

	collapse(root)
	return toNodes(root, common, "")
}

// treeNode is the intermediate shape the aggregation works in before
// collapsing and listing.
type treeNode struct {
	kids      map[string]*treeNode
	order     []string
	leafStats *stats
	fullPath  string
}

func newTreeNode() *treeNode {
	return &treeNode{kids: map[string]*treeNode{}}
}

// collapse folds a chain of single-child internal nodes into one combined
// path segment.
func collapse(n *treeNode) {
	if len(n.kids) == 1 && n.leafStats == nil {
		var onlyKey string
		var only *treeNode
		for k, v := range n.kids {
			onlyKey, only = k, v
		}
		if len(only.kids) != 0 || only.leafStats != nil {
			combinedKey := onlyKey
			inner := only
			for len(inner.kids) == 1 && inner.leafStats == nil {
				var nextKey string
				var next *treeNode
				for k, v := range inner.kids {
					nextKey, next = k, v
				}
				combinedKey = combinedKey + "/" + nextKey
				inner = next
			}
			delete(n.kids, onlyKey)
			for i, k := range n.order {
				if k == onlyKey {
					n.order = append(n.order[:i], n.order[i+1:]...)
					break
				}
			}
			n.kids[combinedKey] = inner
			n.order = append(n.order, combinedKey)
		}
	}
	for _, k := range n.order {
		collapse(n.kids[k])
	}
}

func toNodes(n *treeNode, common, prefix string) []*Node {
	keys := append([]string(nil), n.order...)
	sort.Strings(keys)

	var result []*Node
	for _, k := range keys {
		child := n.kids[k]
		isLeaf := child.leafStats != nil && len(child.kids) == 0
		var st stats
		if isLeaf {
			st = *child.leafStats
		} else {
			st = aggregate(child)
		}
		nodePath := k
		if prefix != "" {
			nodePath = prefix + "/" + k
		}
		path := child.fullPath
		if !isLeaf {
			path = filepath.Join(common, nodePath)
		}
		var children []*Node
		if !isLeaf {
			children = toNodes(child, common, nodePath)
		}
		result = append(result, &Node{
			Name:     k,
			Path:     path,
			Children: children,
			Total:    st.total,
			Active:   st.active,
			Due:      st.due,
			IsLeaf:   isLeaf,
		})
	}
	return result
}

func aggregate(n *treeNode) stats {
	var agg stats
	if n.leafStats != nil {
		agg.total += n.leafStats.total
		agg.active += n.leafStats.active
		agg.due += n.leafStats.due
	}
	for _, k := range n.order {
		sub := aggregate(n.kids[k])
		agg.total += sub.total
		agg.active += sub.active
		agg.due += sub.due
	}
	return agg
}

// commonBase finds the prefix to strip: the parent directory when all
// cards share a single source (the common path of one path is itself),
// and one level up when the common path equals one of the source paths.
func commonBase(paths []string) string {
	if len(paths) == 1 {
		return filepath.Dir(paths[0])
	}
	common := commonPath(paths)
	for _, p := range paths {
		if p == common {
			return filepath.Dir(common)
		}
	}
	return common
}

func commonPath(paths []string) string {
	split := make([][]string, len(paths))
	for i, p := range paths {
		split[i] = strings.Split(filepath.ToSlash(filepath.Clean(p)), "/")
	}
	shortest := split[0]
	for _, s := range split[1:] {
		if len(s) < len(shortest) {
			shortest = s
		}
	}
	var common []string
	for i := range shortest {
		seg := shortest[i]
		for _, s := range split {
			if s[i] != seg {
				goto done
			}
		}
		common = append(common, seg)
	}
done:
	if len(common) == 0 {
		return string(filepath.Separator)
	}
	joined := strings.Join(common, "/")
	if strings.HasPrefix(paths[0], "/") && !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return filepath.FromSlash(joined)
}
