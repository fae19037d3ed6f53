/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package memstore

import "time"

const nilHandle = -1

type node[V any] struct {
	key         string
	value       V
	lastTouched time.Time
	prev        int
	next        int
}

// lruList is a doubly linked list laid over an arena of nodes.
// Head is the most recently used node, tail is the least recently used one.
// Every handle stored in index is reachable exactly once by walking from head to tail.
type lruList[V any] struct {
	nodes []node[V]
	free  []int
	index map[string]int
	head  int
	tail  int
}

func newLRUList[V any]() *lruList[V] {
	return &lruList[V]{index: make(map[string]int), head: nilHandle, tail: nilHandle}
}

func (l *lruList[V]) len() int {
	return len(l.index)
}

func (l *lruList[V]) lookup(key string) (int, bool) {
	h, ok := l.index[key]
	return h, ok
}

func (l *lruList[V]) at(h int) *node[V] {
	return &l.nodes[h]
}

func (l *lruList[V]) insertAtHead(key string, value V, now time.Time) int {
	var h int
	if n := len(l.free); n > 0 {
		h = l.free[n-1]
		l.free = l.free[:n-1]
	} else {
		l.nodes = append(l.nodes, node[V]{})
		h = len(l.nodes) - 1
	}
	l.nodes[h] = node[V]{key: key, value: value, lastTouched: now, prev: nilHandle, next: l.head}
	if l.head != nilHandle {
		l.nodes[l.head].prev = h
	}
	l.head = h
	if l.tail == nilHandle {
		l.tail = h
	}
	l.index[key] = h
	return h
}

func (l *lruList[V]) bringToHead(h int) {
	if l.head == h {
		return
	}
	l.unlink(h)
	n := &l.nodes[h]
	n.prev = nilHandle
	n.next = l.head
	if l.head != nilHandle {
		l.nodes[l.head].prev = h
	}
	l.head = h
	if l.tail == nilHandle {
		l.tail = h
	}
}

func (l *lruList[V]) unlink(h int) {
	n := &l.nodes[h]
	if n.prev != nilHandle {
		l.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nilHandle {
		l.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nilHandle, nilHandle
}

func (l *lruList[V]) remove(h int) {
	l.unlink(h)
	delete(l.index, l.nodes[h].key)
	l.nodes[h] = node[V]{prev: nilHandle, next: nilHandle} // drop the value reference
	l.free = append(l.free, h)
}

// removeTail evicts the least recently used node and returns its key.
func (l *lruList[V]) removeTail() (string, bool) {
	if l.tail == nilHandle {
		return "", false
	}
	key := l.nodes[l.tail].key
	l.remove(l.tail)
	return key, true
}

// tailTouched returns the last access time of the least recently used node.
func (l *lruList[V]) tailTouched() (time.Time, bool) {
	if l.tail == nilHandle {
		return time.Time{}, false
	}
	return l.nodes[l.tail].lastTouched, true
}

// removeAll drops the whole arena at once, regardless of its size.
func (l *lruList[V]) removeAll() {
	l.nodes = nil
	l.free = nil
	l.index = make(map[string]int)
	l.head, l.tail = nilHandle, nilHandle
}

// keys returns keys from the most to the least recently used one.
func (l *lruList[V]) keys() []string {
	res := make([]string, 0, len(l.index))
	for h := l.head; h != nilHandle; h = l.nodes[h].next {
		res = append(res, l.nodes[h].key)
	}
	return res
}
