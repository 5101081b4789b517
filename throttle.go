// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package rubic

import (
	"sync"
)

// throttle runs funcs on a bounded number of goroutines, retaining the
// first error reported. The zero value with Max == 0 runs everything
// on one worker.
type throttle struct {
	Max       int
	wg        sync.WaitGroup
	ch        chan bool
	mtx       sync.Mutex
	err       error
	setupOnce sync.Once
}

// Go waits for a worker slot, then runs f on a new goroutine. After
// the first error, remaining funcs still run but their errors are
// discarded.
func (t *throttle) Go(f func() error) {
	t.setupOnce.Do(func() {
		max := t.Max
		if max < 1 {
			max = 1
		}
		t.ch = make(chan bool, max)
	})
	t.ch <- true
	t.wg.Add(1)
	go func() {
		defer func() {
			<-t.ch
			t.wg.Done()
		}()
		if err := f(); err != nil {
			t.mtx.Lock()
			if t.err == nil {
				t.err = err
			}
			t.mtx.Unlock()
		}
	}()
}

// Wait blocks until every func started by Go has returned, and
// returns the first reported error.
func (t *throttle) Wait() error {
	t.wg.Wait()
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.err
}
