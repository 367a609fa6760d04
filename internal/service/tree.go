package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/sakif/cardbox/internal/model"
	"github.com/sakif/cardbox/internal/repository"
	"github.com/sakif/cardbox/internal/storage"
)

// TreeBuilder assembles nested folder trees for the read APIs.
//
// HOW IT WORKS:
//  1. Load takes one snapshot of every folder and card inside a transaction,
//     so a tree never mixes rows from before and after a concurrent write.
//  2. The snapshot indexes children by parent and cards by folder, each
//     list sorted by (position, id).
//  3. Build walks down from one folder with an explicit stack. A visited set
//     guards against a corrupt parent chain: a folder reached twice is not
//     expanded again, so the walk always terminates.
//
// Building is a pure read.
type TreeBuilder struct {
	baseURL string
}

// NewTreeBuilder returns a builder that renders image URLs against baseURL
// (empty for root-relative URLs).
func NewTreeBuilder(baseURL string) *TreeBuilder {
	return &TreeBuilder{baseURL: baseURL}
}

// Snapshot is an indexed, read-only copy of the folder and card tables.
type Snapshot struct {
	folders  map[int64]model.Folder
	roots    []int64
	children map[int64][]int64
	cards    map[int64][]model.Card
}

// Load reads every folder and card through repos.
func (b *TreeBuilder) Load(ctx context.Context, repos repository.Repositories) (*Snapshot, error) {
	folders, err := repos.Folders().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading folders: %w", err)
	}
	cards, err := repos.Cards().List(ctx, repository.CardFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading cards: %w", err)
	}
	return newSnapshot(folders, cards), nil
}

func newSnapshot(folders []model.Folder, cards []model.Card) *Snapshot {
	slices.SortStableFunc(folders, func(a, b model.Folder) int {
		return byPosition(a.Position, a.ID, b.Position, b.ID)
	})
	slices.SortStableFunc(cards, func(a, b model.Card) int {
		return byPosition(a.Position, a.ID, b.Position, b.ID)
	})

	snap := &Snapshot{
		folders:  make(map[int64]model.Folder, len(folders)),
		children: make(map[int64][]int64),
		cards:    make(map[int64][]model.Card),
	}
	for _, f := range folders {
		snap.folders[f.ID] = f
		if f.ParentID == nil {
			snap.roots = append(snap.roots, f.ID)
		} else {
			snap.children[*f.ParentID] = append(snap.children[*f.ParentID], f.ID)
		}
	}
	for _, c := range cards {
		snap.cards[c.FolderID] = append(snap.cards[c.FolderID], c)
	}
	return snap
}

func byPosition(posA int, idA int64, posB int, idB int64) int {
	if c := cmp.Compare(posA, posB); c != 0 {
		return c
	}
	return cmp.Compare(idA, idB)
}

// Has reports whether the snapshot contains folder id.
func (s *Snapshot) Has(id int64) bool {
	_, ok := s.folders[id]
	return ok
}

// Build returns the tree rooted at id, or nil when id is not in the snapshot.
func (b *TreeBuilder) Build(snap *Snapshot, id int64) *model.FolderNode {
	if !snap.Has(id) {
		return nil
	}

	root := b.node(snap, id)
	visited := map[int64]bool{id: true}
	stack := []*model.FolderNode{root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, childID := range snap.children[n.ID] {
			if visited[childID] {
				continue
			}
			visited[childID] = true

			child := b.node(snap, childID)
			n.Children = append(n.Children, child)
			stack = append(stack, child)
		}
	}

	return root
}

// BuildRoots returns one tree per root folder, in position order.
func (b *TreeBuilder) BuildRoots(snap *Snapshot) []*model.FolderNode {
	trees := make([]*model.FolderNode, 0, len(snap.roots))
	for _, id := range snap.roots {
		trees = append(trees, b.Build(snap, id))
	}
	return trees
}

func (b *TreeBuilder) node(snap *Snapshot, id int64) *model.FolderNode {
	f := snap.folders[id]
	n := &model.FolderNode{
		ID:       f.ID,
		Name:     f.Name,
		Cards:    make([]model.CardNode, 0, len(snap.cards[id])),
		Children: make([]*model.FolderNode, 0, len(snap.children[id])),
	}
	for _, c := range snap.cards[id] {
		c.ImageURL = storage.URLFor(b.baseURL, c.ImageKey)
		n.Cards = append(n.Cards, c.Node())
	}
	return n
}
