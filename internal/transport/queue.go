// ABOUTME: Client-side cache of the receiver queue
// ABOUTME: Tracks queue order and lazily fetches item content
package transport

import (
	"log"
	"sync"

	"github.com/Sendspin/sendspin-cast/internal/protocol"
	"github.com/Sendspin/sendspin-cast/pkg/cast"
)

// QueueCache mirrors the receiver queue and implements cast.Queue
type QueueCache struct {
	mu        sync.Mutex
	ids       []int
	items     map[int]cast.QueueItem
	requested map[int]bool
	fetch     func(itemIDs []int)

	events watchers[cast.QueueMutation]
}

var _ cast.Queue = (*QueueCache)(nil)

func newQueueCache(fetch func(itemIDs []int)) *QueueCache {
	return &QueueCache{
		items:     make(map[int]cast.QueueItem),
		requested: make(map[int]bool),
		fetch:     fetch,
	}
}

// ItemCount returns the queue length
func (q *QueueCache) ItemCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// IndexOfItemID returns the index of itemID or -1
func (q *QueueCache) IndexOfItemID(itemID int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return indexOf(q.ids, itemID)
}

// ItemAt returns the cached item at index or nil. With fetch set, a
// missing item is requested once and reported by an update mutation.
func (q *QueueCache) ItemAt(index int, fetch bool) *cast.QueueItem {
	q.mu.Lock()
	if index < 0 || index >= len(q.ids) {
		q.mu.Unlock()
		return nil
	}
	id := q.ids[index]
	if item, ok := q.items[id]; ok {
		q.mu.Unlock()
		return &item
	}
	request := fetch && !q.requested[id]
	if request {
		q.requested[id] = true
	}
	q.mu.Unlock()

	if request {
		go q.fetch([]int{id})
	}
	return nil
}

// Watch registers fn for queue mutations
func (q *QueueCache) Watch(fn func(cast.QueueMutation)) func() {
	return q.events.add(fn)
}

// apply updates the queue order from a receiver notification
func (q *QueueCache) apply(changed protocol.QueueChanged) {
	q.mu.Lock()
	var mutation cast.QueueMutation
	switch changed.Kind {
	case "reload":
		q.ids = changed.ItemIDs
		q.items = make(map[int]cast.QueueItem)
		q.requested = make(map[int]bool)
		mutation = cast.QueueMutation{Kind: cast.MutationReload}

	case "insert":
		q.ids = changed.ItemIDs
		mutation = cast.QueueMutation{Kind: cast.MutationInsert, Indices: indicesOf(q.ids, changed.Changed)}

	case "remove":
		mutation = cast.QueueMutation{Kind: cast.MutationRemove, Indices: indicesOf(q.ids, changed.Changed)}
		q.ids = changed.ItemIDs
		for _, id := range changed.Changed {
			delete(q.items, id)
			delete(q.requested, id)
		}

	case "update":
		q.ids = changed.ItemIDs
		for _, id := range changed.Changed {
			delete(q.items, id)
			delete(q.requested, id)
		}
		mutation = cast.QueueMutation{Kind: cast.MutationUpdate, Indices: indicesOf(q.ids, changed.Changed)}

	default:
		q.mu.Unlock()
		log.Printf("Unknown queue change: %s", changed.Kind)
		return
	}
	q.mu.Unlock()

	q.events.fire(mutation)
}

// store caches fetched items and reports them as an update
func (q *QueueCache) store(items []cast.QueueItem) {
	q.mu.Lock()
	ids := make([]int, 0, len(items))
	for _, item := range items {
		if indexOf(q.ids, item.ItemID) < 0 {
			continue
		}
		q.items[item.ItemID] = item
		delete(q.requested, item.ItemID)
		ids = append(ids, item.ItemID)
	}
	indices := indicesOf(q.ids, ids)
	q.mu.Unlock()

	if len(indices) > 0 {
		q.events.fire(cast.QueueMutation{Kind: cast.MutationUpdate, Indices: indices})
	}
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func indicesOf(ids []int, wanted []int) []int {
	indices := make([]int, 0, len(wanted))
	for _, id := range wanted {
		if i := indexOf(ids, id); i >= 0 {
			indices = append(indices, i)
		}
	}
	return indices
}
