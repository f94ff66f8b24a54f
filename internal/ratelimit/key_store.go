/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"

	"github.com/hashicorp/golang-lru/simplelru"
)

// keyStore keeps per-client state. It's not safe for concurrent use.
type keyStore[V any] interface {
	Get(key string) (V, bool)
	Put(key string, val V)
	Delete(key string)
	Range(fn func(key string, val V))
	Len() int
}

// newKeyStore returns an unbounded map-based store for maxKeys == 0 and
// a store evicting least recently used keys otherwise.
func newKeyStore[V any](maxKeys int) (keyStore[V], error) {
	if maxKeys < 0 {
		return nil, fmt.Errorf("max keys must be non-negative, got %d", maxKeys)
	}
	if maxKeys == 0 {
		return mapStore[V]{}, nil
	}
	lru, err := simplelru.NewLRU(maxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	return &lruStore[V]{lru}, nil
}

type mapStore[V any] map[string]V

func (s mapStore[V]) Get(key string) (V, bool) {
	v, ok := s[key]
	return v, ok
}

func (s mapStore[V]) Put(key string, val V) { s[key] = val }

func (s mapStore[V]) Delete(key string) { delete(s, key) }

func (s mapStore[V]) Range(fn func(key string, val V)) {
	for k, v := range s {
		fn(k, v)
	}
}

func (s mapStore[V]) Len() int { return len(s) }

type lruStore[V any] struct {
	lru *simplelru.LRU
}

func (s *lruStore[V]) Get(key string) (V, bool) {
	v, ok := s.lru.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (s *lruStore[V]) Put(key string, val V) { s.lru.Add(key, val) }

func (s *lruStore[V]) Delete(key string) { s.lru.Remove(key) }

func (s *lruStore[V]) Range(fn func(key string, val V)) {
	for _, k := range s.lru.Keys() {
		if v, ok := s.lru.Peek(k); ok {
			fn(k.(string), v.(V))
		}
	}
}

func (s *lruStore[V]) Len() int { return s.lru.Len() }
