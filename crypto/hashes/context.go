package hashes

import (
	"encoding"
	"hash"
	"sync"
)

const finishedMsg = "hashes: use of finished context"

// snapshotContext copies marshalled state on fork. mu is held only while the
// state is read or written, never across calls.
type snapshotContext struct {
	p        *stdProvider
	mu       sync.Mutex
	h        hash.Hash
	finished bool
}

func (c *snapshotContext) Update(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		panic(finishedMsg)
	}
	_, _ = c.h.Write(data)
}

func (c *snapshotContext) Finish() Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		panic(finishedMsg)
	}
	c.finished = true
	out := NewOutput(c.h.Sum(nil))
	c.h = nil
	return out
}

func (c *snapshotContext) ForkFinish() Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		panic(finishedMsg)
	}
	// Sum appends to its argument and leaves the running state untouched.
	return NewOutput(c.h.Sum(nil))
}

func (c *snapshotContext) Fork() Context {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		panic(finishedMsg)
	}
	state, err := c.h.(encoding.BinaryMarshaler).MarshalBinary()
	c.mu.Unlock()
	if err != nil {
		panic("hashes: snapshot hash state: " + err.Error())
	}

	h := c.p.newFn()
	if err := h.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		panic("hashes: restore hash state: " + err.Error())
	}
	return &snapshotContext{p: c.p, h: h}
}

// replayContext serves hash cores whose state cannot be copied: it keeps the
// accumulated input so a fork can rebuild the state from scratch.
type replayContext struct {
	p        *stdProvider
	mu       sync.Mutex
	h        hash.Hash
	input    []byte
	finished bool
}

func (c *replayContext) Update(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		panic(finishedMsg)
	}
	_, _ = c.h.Write(data)
	c.input = append(c.input, data...)
}

func (c *replayContext) Finish() Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		panic(finishedMsg)
	}
	c.finished = true
	out := NewOutput(c.h.Sum(nil))
	c.h, c.input = nil, nil
	return out
}

func (c *replayContext) ForkFinish() Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		panic(finishedMsg)
	}
	return NewOutput(c.h.Sum(nil))
}

func (c *replayContext) Fork() Context {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		panic(finishedMsg)
	}
	input := append([]byte(nil), c.input...)
	c.mu.Unlock()

	h := c.p.newFn()
	_, _ = h.Write(input)
	return &replayContext{p: c.p, h: h, input: input}
}
