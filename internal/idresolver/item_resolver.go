// Package idresolver maps short ID prefixes and item names to full item IDs.
package idresolver

import (
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/DaDevFox/task-systems/mhd-core/internal/domain"
)

type trieNode struct {
	children map[rune]*trieNode
	itemIDs  []string
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

// ItemResolver resolves user-typed identifiers to items
type ItemResolver struct {
	trie   *trieNode
	byID   map[string]domain.Item
	byName map[string][]string
}

// NewItemResolver creates an empty resolver
func NewItemResolver() *ItemResolver {
	return &ItemResolver{
		trie:   newTrieNode(),
		byID:   make(map[string]domain.Item),
		byName: make(map[string][]string),
	}
}

// Update rebuilds the index from the current items
func (r *ItemResolver) Update(items []domain.Item) {
	r.trie = newTrieNode()
	r.byID = make(map[string]domain.Item, len(items))
	r.byName = make(map[string][]string)

	for _, item := range items {
		if item.ID == "" {
			continue
		}
		r.byID[item.ID] = item
		name := strings.ToLower(strings.TrimSpace(item.Name))
		r.byName[name] = append(r.byName[name], item.ID)
		r.insert(item.ID)
	}
}

func (r *ItemResolver) insert(id string) {
	node := r.trie
	for _, ch := range strings.ToLower(id) {
		child, ok := node.children[ch]
		if !ok {
			child = newTrieNode()
			node.children[ch] = child
		}
		child.itemIDs = append(child.itemIDs, id)
		node = child
	}
}

// Resolve returns the full ID for an exact ID, a unique ID prefix or a unique item name
func (r *ItemResolver) Resolve(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", errors.New("empty item identifier provided")
	}
	if _, ok := r.byID[identifier]; ok {
		return identifier, nil
	}

	matches := r.prefixMatches(identifier)
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
	default:
		return "", errors.Errorf("ambiguous item ID '%s', matches: %s", identifier, strings.Join(matches, ", "))
	}

	named := r.byName[strings.ToLower(identifier)]
	switch len(named) {
	case 1:
		return named[0], nil
	case 0:
		return "", &domain.ItemNotFoundError{ID: identifier}
	default:
		ids := slices.Clone(named)
		slices.Sort(ids)
		return "", errors.Errorf("several items are named '%s': %s", identifier, strings.Join(ids, ", "))
	}
}

func (r *ItemResolver) prefixMatches(prefix string) []string {
	node := r.trie
	for _, ch := range strings.ToLower(prefix) {
		child, ok := node.children[ch]
		if !ok {
			return nil
		}
		node = child
	}
	ids := slices.Clone(node.itemIDs)
	slices.Sort(ids)
	return ids
}

// Item resolves identifier and returns the matching item
func (r *ItemResolver) Item(identifier string) (domain.Item, error) {
	id, err := r.Resolve(identifier)
	if err != nil {
		return domain.Item{}, err
	}
	return r.byID[id], nil
}

// MinimumUniquePrefix returns the shortest prefix that identifies id, or id itself
// when it is unknown.
func (r *ItemResolver) MinimumUniquePrefix(id string) string {
	if _, ok := r.byID[id]; !ok {
		return id
	}

	node := r.trie
	var prefix strings.Builder
	for _, ch := range strings.ToLower(id) {
		prefix.WriteRune(ch)
		child, ok := node.children[ch]
		if !ok {
			return id
		}
		node = child
		if len(node.itemIDs) == 1 {
			return prefix.String()
		}
	}
	return id
}
