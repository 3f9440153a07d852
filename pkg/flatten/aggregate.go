package flatten

import (
	"contxt/pkg/entry"
)

// aggregator packs encoded blocks into chunks of at most maxOutput bytes and
// hands each chunk to sink once it is sealed. It is not safe for concurrent
// use; records must arrive in walk order.
type aggregator struct {
	maxOutput int64
	current   *OutputChunk
	nextIndex int
	sink      func(*OutputChunk) error
}

func newAggregator(maxOutput int64, sink func(*OutputChunk) error) *aggregator {
	return &aggregator{maxOutput: maxOutput, sink: sink}
}

// add appends rec's block to the current chunk, sealing it first when the
// block would not fit. It returns the index of the receiving chunk, or a skip
// reason when the block alone exceeds the output limit.
func (a *aggregator) add(rec *FileRecord) (int, entry.Reason, error) {
	block := encodeBlock(rec)
	size := int64(len(block))
	if a.maxOutput > 0 && size > a.maxOutput {
		return -1, entry.ReasonExceedsOutputSize, nil
	}
	if a.current != nil && a.maxOutput > 0 && a.current.Size+size > a.maxOutput {
		if err := a.seal(); err != nil {
			return -1, "", err
		}
	}
	if a.current == nil {
		a.current = &OutputChunk{Index: a.nextIndex}
		a.nextIndex++
	}
	a.current.append(rec, block)
	return a.current.Index, "", nil
}

// seal finalizes the open chunk, if any, and passes it to the sink.
func (a *aggregator) seal() error {
	if a.current == nil {
		return nil
	}
	c := a.current
	a.current = nil
	c.finalize()
	return a.sink(c)
}

// discard drops the open chunk without finalizing it.
func (a *aggregator) discard() {
	a.current = nil
}
