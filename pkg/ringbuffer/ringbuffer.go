// Package ringbuffer contains a bounded, non-blocking ring buffer.
package ringbuffer

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// RingBuffer is a bounded ring buffer. Push never blocks; when the
// buffer is full, the oldest unread element is overwritten and Push
// reports the loss, so that callers can account for dropped elements.
type RingBuffer struct {
	size       uint64
	readIndex  uint64
	writeIndex uint64
	closed     int64
	buffer     []unsafe.Pointer
	event      *event
}

// New allocates a RingBuffer.
func New(size uint64) (*RingBuffer, error) {
	// when writeIndex overflows, if size is not a power of
	// two, only a portion of the buffer is used.
	if (size & (size - 1)) != 0 {
		return nil, fmt.Errorf("size must be a power of two")
	}

	return &RingBuffer{
		size:       size,
		readIndex:  1,
		writeIndex: 0,
		buffer:     make([]unsafe.Pointer, size),
		event:      newEvent(),
	}, nil
}

// Close makes Pull() return false.
func (r *RingBuffer) Close() {
	atomic.StoreInt64(&r.closed, 1)
	r.event.signal()
}

// Push pushes data at the end of the buffer.
// It returns false when an unread element was overwritten.
func (r *RingBuffer) Push(data interface{}) bool {
	writeIndex := atomic.AddUint64(&r.writeIndex, 1)
	i := writeIndex % r.size
	prev := atomic.SwapPointer(&r.buffer[i], unsafe.Pointer(&data))
	r.event.signal()
	return prev == nil
}

// Pull pulls data from the beginning of the buffer.
// It blocks until data is available or the buffer is closed.
func (r *RingBuffer) Pull() (interface{}, bool) {
	for {
		i := r.readIndex % r.size
		res := (*interface{})(atomic.SwapPointer(&r.buffer[i], nil))
		if res == nil {
			if atomic.LoadInt64(&r.closed) == 1 {
				return nil, false
			}
			r.event.wait()
			continue
		}

		r.readIndex++
		return *res, true
	}
}
