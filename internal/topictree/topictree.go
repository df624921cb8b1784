// Package topictree implements the hierarchical topic tree that backs
// subscription matching: a trie over dot-separated topic levels with
// support for the "?" single-level and "*" multi-level wildcards.
package topictree

import (
	"fmt"
	"strings"
)

const (
	levelSeparator      = "."
	multiLevelWildcard  = "*"
	singleLevelWildcard = "?"
)

type node struct {
	subscribers map[string]uint32
	children    map[string]*node
}

func newNode() *node {
	return &node{
		subscribers: make(map[string]uint32),
		children:    make(map[string]*node),
	}
}

// TopicTree holds a set of subscription patterns, each tagged with the
// subscribers registered against it and a per-subscriber reference count.
// It is not safe for concurrent use; callers own their own synchronization
// (the hub owns its tree exclusively).
type TopicTree struct {
	root *node
}

// New returns an empty TopicTree.
func New() *TopicTree {
	return &TopicTree{root: newNode()}
}

// Add registers subscriber against pattern, incrementing its reference
// count if already present, and returns the resulting count. A multi-level
// wildcard may only appear as the last level of pattern.
func (t *TopicTree) Add(pattern, subscriber string) (uint32, error) {
	if pattern == "" {
		return 0, fmt.Errorf("topictree: pattern cannot be empty")
	}

	words := strings.Split(pattern, levelSeparator)
	for _, w := range words[:len(words)-1] {
		if w == multiLevelWildcard {
			return 0, fmt.Errorf("topictree: multi level wildcard must be last")
		}
	}

	n := t.root
	for _, word := range words {
		child, ok := n.children[word]
		if !ok {
			child = newNode()
			n.children[word] = child
		}
		n = child
	}

	n.subscribers[subscriber]++
	return n.subscribers[subscriber], nil
}

// Remove decrements subscriber's reference count against pattern, or zeroes
// it outright when forceAll is set. It reports the remaining count and
// whether the pattern/subscriber pair existed at all. A remaining count of
// zero means the subscriber was removed from the pattern entirely.
func (t *TopicTree) Remove(pattern, subscriber string, forceAll bool) (uint32, bool) {
	n := t.root
	for _, level := range strings.Split(pattern, levelSeparator) {
		child, ok := n.children[level]
		if !ok {
			return 0, false
		}
		n = child
	}

	count, ok := n.subscribers[subscriber]
	if !ok {
		return 0, false
	}

	if forceAll {
		count = 0
	} else {
		count--
	}

	if count > 0 {
		n.subscribers[subscriber] = count
		return count, true
	}

	delete(n.subscribers, subscriber)
	return 0, true
}

// Subscribers returns every subscriber matching topic, accounting for "?"
// and "*" wildcards registered along the path. Order is unspecified beyond
// the relative grouping the matching algorithm naturally produces; callers
// must treat the result as a set.
func (t *TopicTree) Subscribers(topic string) []string {
	frontier := []*node{t.root}
	var subscribers []string

	for _, level := range strings.Split(topic, levelSeparator) {
		var next []*node
		for _, n := range frontier {
			if child, ok := n.children[level]; ok {
				next = append(next, child)
			}
			if child, ok := n.children[singleLevelWildcard]; ok {
				next = append(next, child)
			}
			if child, ok := n.children[multiLevelWildcard]; ok {
				for sub := range child.subscribers {
					subscribers = append(subscribers, sub)
				}
			}
		}
		frontier = next
	}

	for _, n := range frontier {
		for sub := range n.subscribers {
			subscribers = append(subscribers, sub)
		}
	}

	return subscribers
}

// Topics returns the set of patterns that subscriber is currently
// registered against.
func (t *TopicTree) Topics(subscriber string) map[string]struct{} {
	result := make(map[string]struct{})

	type queued struct {
		n      *node
		levels []string
	}

	var queue []queued
	for key, child := range t.root.children {
		queue = append(queue, queued{n: child, levels: []string{key}})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if _, ok := cur.n.subscribers[subscriber]; ok {
			result[strings.Join(cur.levels, levelSeparator)] = struct{}{}
		}

		for key, child := range cur.n.children {
			levels := make([]string, len(cur.levels)+1)
			copy(levels, cur.levels)
			levels[len(cur.levels)] = key
			queue = append(queue, queued{n: child, levels: levels})
		}
	}

	return result
}
