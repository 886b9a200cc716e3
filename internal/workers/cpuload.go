package workers

import (
	"context"
	"sync/atomic"
)

// spinsPerCheck bounds how long a cpu worker spins between cancellation checks.
const spinsPerCheck = 1 << 16

// sink keeps the loop result observable so the work is not optimised away.
var sink atomic.Uint64

func cpuLoad(ctx context.Context) {
	x := uint64(123)
	for {
		select {
		case <-ctx.Done():
			sink.Add(x)
			return
		default:
		}

		for i := 0; i < spinsPerCheck; i++ {
			x = x*x + uint64(i)
		}
	}
}
