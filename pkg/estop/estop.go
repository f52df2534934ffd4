// Package estop turns a GPIO push button into a supervisory stop request.
package estop

import (
	"sync"

	"github.com/brian-armstrong/gpio"
)

// Stopper is anything that can be asked to stop.
type Stopper interface {
	RequestStop()
}

// Watcher is the subset of *gpio.Watcher used by Button.
type Watcher interface {
	Watch() (p uint, v uint)
	Close()
}

// Button requests a stop on the first debounced press.
type Button struct {
	watcher     Watcher
	pin         uint
	activeLevel uint
	debouncer   *Debouncer
	stopper     Stopper

	closeOnce sync.Once
	done      chan struct{}
}

// NewButton watches pin for an active-low press.
func NewButton(pin uint, stopper Stopper) *Button {
	w := gpio.NewWatcher()
	w.AddPin(pin)
	return newButton(w, pin, 0, stopper)
}

func newButton(w Watcher, pin, activeLevel uint, stopper Stopper) *Button {
	return &Button{
		watcher:     w,
		pin:         pin,
		activeLevel: activeLevel,
		debouncer:   &Debouncer{},
		stopper:     stopper,
		done:        make(chan struct{}),
	}
}

// Run blocks until the button is pressed or Close is called.
func (b *Button) Run() {
	notify := make(chan [2]uint)
	go func() {
		for {
			pin, value := b.watcher.Watch()
			select {
			case notify <- [2]uint{pin, value}:
			case <-b.done:
				return
			}
		}
	}()

	for {
		select {
		case <-b.done:
			return
		case n := <-notify:
			if n[0] != b.pin {
				continue
			}
			if b.debouncer.Push(n[1]) && n[1] == b.activeLevel {
				b.stopper.RequestStop()
				return
			}
		}
	}
}

// Close stops watching the pin. It is safe to call more than once.
func (b *Button) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.watcher.Close()
	})
}
