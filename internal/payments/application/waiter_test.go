package application

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaiterNotifyWakesRegistered(t *testing.T) {
	w := NewWaiter()
	ch, release := w.Register("ORDER1")
	defer release()

	w.Notify("ORDER1")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("registered waiter never woke")
	}
}

func TestWaiterNotifyIsScopedToOrder(t *testing.T) {
	w := NewWaiter()
	ch, release := w.Register("ORDER1")
	defer release()

	w.Notify("OTHER1")

	select {
	case <-ch:
		t.Fatal("waiter woke for another order")
	default:
	}
}

func TestWaiterNotifyBeforeWaitIsNotLost(t *testing.T) {
	w := NewWaiter()
	ch, release := w.Register("ORDER1")
	defer release()

	// The buffered channel keeps a notify that arrives before the
	// caller starts selecting.
	w.Notify("ORDER1")
	time.Sleep(10 * time.Millisecond)

	select {
	case <-ch:
	default:
		t.Fatal("early notify was dropped")
	}
}

func TestWaiterNotifyWithoutSubscribersIsSafe(t *testing.T) {
	w := NewWaiter()
	assert.NotPanics(t, func() { w.Notify("ORDER1") })
}

func TestWaiterReleaseUnsubscribes(t *testing.T) {
	w := NewWaiter()
	ch, release := w.Register("ORDER1")
	release()

	w.Notify("ORDER1")

	select {
	case <-ch:
		t.Fatal("released waiter still received a notify")
	default:
	}
}

func TestWaiterNotifyWakesAllSubscribers(t *testing.T) {
	w := NewWaiter()
	const n = 5

	var wg sync.WaitGroup
	woke := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		ch, release := w.Register("ORDER1")
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer release()
			select {
			case <-ch:
				woke <- struct{}{}
			case <-time.After(time.Second):
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	w.Notify("ORDER1")
	wg.Wait()

	assert.Len(t, woke, n)
}

func TestWaiterConcurrentRegisterAndNotify(t *testing.T) {
	w := NewWaiter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, release := w.Register("ORDER1")
			release()
		}()
		go func() {
			defer wg.Done()
			w.Notify("ORDER1")
		}()
	}
	wg.Wait()
}
