// Locus - Live Location Streaming Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/locus

package cache

import "sync"

type keyNode struct {
	key  string
	prev *keyNode
	next *keyNode
}

// KeySet is a bounded, thread-safe set of recently observed keys.
//
// Entries never expire by time; the least recently observed key is evicted
// once capacity is reached. Lookups, inserts and evictions are O(1) using a
// hashmap plus a doubly-linked list with sentinel nodes.
type KeySet struct {
	mu sync.Mutex

	capacity int
	items    map[string]*keyNode

	// head.next is the most recently observed, tail.prev the least
	head *keyNode
	tail *keyNode

	hits      int64
	misses    int64
	evictions int64
}

// NewKeySet creates a set holding at most capacity keys.
func NewKeySet(capacity int) *KeySet {
	if capacity <= 0 {
		capacity = 10000
	}
	s := &KeySet{
		capacity: capacity,
		items:    make(map[string]*keyNode, capacity),
		head:     &keyNode{},
		tail:     &keyNode{},
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Observe records key and reports whether it had already been observed.
// A repeat observation refreshes the key's recency.
func (s *KeySet) Observe(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node, ok := s.items[key]; ok {
		s.moveToFront(node)
		s.hits++
		return true
	}

	node := &keyNode{key: key}
	s.addToFront(node)
	s.items[key] = node
	for len(s.items) > s.capacity {
		s.evictOldest()
	}

	s.misses++
	return false
}

// Contains reports whether key is present without updating recency.
func (s *KeySet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	return ok
}

// Forget removes key. Returns true if it was present.
func (s *KeySet) Forget(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node, ok := s.items[key]; ok {
		s.unlink(node)
		delete(s.items, key)
		return true
	}
	return false
}

// Len returns the number of keys held.
func (s *KeySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Capacity returns the configured bound.
func (s *KeySet) Capacity() int {
	return s.capacity
}

// Clear removes all keys. Statistics are retained.
func (s *KeySet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*keyNode, s.capacity)
	s.head.next = s.tail
	s.tail.prev = s.head
}

// Stats returns duplicate hits, first observations, and evictions.
func (s *KeySet) Stats() (hits, misses, evictions int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses, s.evictions
}

// Internal methods (must be called with lock held)

func (s *KeySet) addToFront(node *keyNode) {
	node.prev = s.head
	node.next = s.head.next
	s.head.next.prev = node
	s.head.next = node
}

func (s *KeySet) moveToFront(node *keyNode) {
	s.unlink(node)
	s.addToFront(node)
}

func (s *KeySet) unlink(node *keyNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

func (s *KeySet) evictOldest() {
	oldest := s.tail.prev
	if oldest == s.head {
		return
	}
	s.unlink(oldest)
	delete(s.items, oldest.key)
	s.evictions++
}
