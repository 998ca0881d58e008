package local

import (
	"context"
	"sync"
)

type lockedList struct {
	mu   sync.Mutex
	data []string
}

// List is an in-process store with Redis list semantics.
type List struct {
	lists sync.Map // key → *lockedList
}

func NewList() *List { return &List{} }

func (c *List) getOrCreate(key string) *lockedList {
	v, _ := c.lists.LoadOrStore(key, &lockedList{})
	return v.(*lockedList)
}

func (c *List) LPush(_ context.Context, key string, values ...string) error {
	l := c.getOrCreate(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	// Prepend in order: the last value ends up at index 0.
	head := make([]string, 0, len(values)+len(l.data))
	for i := len(values) - 1; i >= 0; i-- {
		head = append(head, values[i])
	}
	l.data = append(head, l.data...)
	return nil
}

// LRange follows Redis index rules, including negative offsets from the end.
func (c *List) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	l := c.getOrCreate(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	lo, hi, ok := bounds(int64(len(l.data)), start, stop)
	if !ok {
		return nil, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, l.data[lo:hi+1])
	return out, nil
}

func (c *List) LTrim(_ context.Context, key string, start, stop int64) error {
	l := c.getOrCreate(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	lo, hi, ok := bounds(int64(len(l.data)), start, stop)
	if !ok {
		l.data = nil
		return nil
	}
	l.data = append([]string(nil), l.data[lo:hi+1]...)
	return nil
}

func (c *List) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.lists.Delete(k)
	}
	return nil
}

func (c *List) Close() error { return nil }

func bounds(n, start, stop int64) (lo, hi int64, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	start = max(start, 0)
	stop = min(stop, n-1)
	if n == 0 || start > stop {
		return 0, 0, false
	}
	return start, stop, true
}
