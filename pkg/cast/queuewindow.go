// ABOUTME: Sliding window of queue items around the current item
// ABOUTME: Collects asynchronously fetched items into one consistent snapshot
package cast

import "sync"

// windowIndices returns {current-1, current, current+1} clipped to
// [0, length), in ascending order. A negative current yields no indices.
func windowIndices(current, length int) []int {
	if current < 0 || current >= length {
		return nil
	}
	indices := make([]int, 0, 3)
	for i := current - 1; i <= current+1; i++ {
		if i >= 0 && i < length {
			indices = append(indices, i)
		}
	}
	return indices
}

// queueWindow tracks which queue items are wanted and reports once all of
// them are resident. The mutex guards the queue handle because mutation
// notifications may originate outside the engine loop.
type queueWindow struct {
	mu        sync.Mutex
	queue     Queue
	currentID func() (int, bool)
	wanted    []int
	onReady   func([]QueueItem)
}

func newQueueWindow(queue Queue, currentID func() (int, bool), onReady func([]QueueItem)) *queueWindow {
	return &queueWindow{
		queue:     queue,
		currentID: currentID,
		onReady:   onReady,
	}
}

// currentIndex resolves the current item id to its queue index, or -1.
func (w *queueWindow) currentIndex() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentIndexLocked()
}

func (w *queueWindow) currentIndexLocked() int {
	id, ok := w.currentID()
	if !ok {
		return -1
	}
	return w.queue.IndexOfItemID(id)
}

func (w *queueWindow) itemCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queue.ItemCount()
}

// refresh recomputes the wanted indices and requests any missing items.
func (w *queueWindow) refresh() {
	w.mu.Lock()
	w.wanted = windowIndices(w.currentIndexLocked(), w.queue.ItemCount())
	items, ok := w.collectLocked()
	w.mu.Unlock()

	if ok {
		w.onReady(items)
	}
}

// check reports the window if every wanted item has become resident.
func (w *queueWindow) check() {
	w.mu.Lock()
	items, ok := w.collectLocked()
	w.mu.Unlock()

	if ok {
		w.onReady(items)
	}
}

// collectLocked fetches the wanted items. Once all are present the wanted
// set is cleared, so a later update of any index counts as structural.
func (w *queueWindow) collectLocked() ([]QueueItem, bool) {
	items := make([]QueueItem, 0, len(w.wanted))
	complete := true
	for _, index := range w.wanted {
		item := w.queue.ItemAt(index, true)
		if item == nil {
			complete = false
			continue
		}
		copied := *item
		copied.OrderID = index
		items = append(items, copied)
	}
	if !complete {
		return nil, false
	}
	w.wanted = nil
	return items, true
}

func (w *queueWindow) isWanted(index int) bool {
	for _, i := range w.wanted {
		if i == index {
			return true
		}
	}
	return false
}

// onMutation applies a queue change notification.
func (w *queueWindow) onMutation(m QueueMutation) {
	if m.Kind != MutationUpdate {
		w.refresh()
		return
	}

	w.mu.Lock()
	structural := false
	for _, index := range m.Indices {
		if !w.isWanted(index) {
			structural = true
			break
		}
	}
	w.mu.Unlock()

	if structural {
		w.refresh()
		return
	}
	w.check()
}
