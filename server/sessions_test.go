package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chazu/sel/vm"
)

func TestVMWorkerSerializes(t *testing.T) {
	w := NewVMWorker(vm.NewVM())
	defer w.Stop()

	if _, err := w.Do(bg(), func(v *vm.VM) interface{} {
		v.EvalString("n = 0")
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Do(bg(), func(v *vm.VM) interface{} {
				v.EvalString("n = n + 1")
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := w.Do(bg(), func(v *vm.VM) interface{} {
		val, _ := v.Global("n")
		return val
	})
	if err != nil {
		t.Fatal(err)
	}
	if !got.(vm.Value).Equal(vm.Int(20)) {
		t.Errorf("n = %v, want 20", got)
	}
}

func TestVMWorkerRecoversPanics(t *testing.T) {
	w := NewVMWorker(vm.NewVM())
	defer w.Stop()

	_, err := w.Do(bg(), func(v *vm.VM) interface{} { panic("boom") })
	if err == nil {
		t.Fatal("panic not reported")
	}

	got, err := w.Do(bg(), func(v *vm.VM) interface{} { return 7 })
	if err != nil || got.(int) != 7 {
		t.Errorf("worker unusable after panic: %v, %v", got, err)
	}
}

func TestVMWorkerInterruptsOnCancel(t *testing.T) {
	w := NewVMWorker(vm.NewVM())
	defer w.Stop()

	ctx, cancel := context.WithTimeout(bg(), 30*time.Millisecond)
	defer cancel()
	got, err := w.Do(ctx, func(v *vm.VM) interface{} {
		val, _ := v.EvalStringContext(ctx, "loop { 0 }\n5")
		return val
	})
	if err != nil {
		t.Fatal(err)
	}
	if v := got.(vm.Value); !v.IsError() || v.Message() != "interrupted" {
		t.Errorf("got %v, want interrupted", v)
	}
}

func TestVMWorkerSkipsExpiredQueuedRequest(t *testing.T) {
	w := NewVMWorker(vm.NewVM())
	defer w.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	first := make(chan interface{}, 1)
	go func() {
		got, _ := w.Do(bg(), func(v *vm.VM) interface{} {
			close(started)
			<-release
			val, _ := v.EvalString("i = 0\nwhile i < 1000 { i = i + 1 }\ni")
			return val
		})
		first <- got
	}()

	<-started

	ctx, cancel := context.WithCancel(bg())
	var ran atomic.Bool
	second := make(chan error, 1)
	go func() {
		_, err := w.Do(ctx, func(v *vm.VM) interface{} {
			ran.Store(true)
			return nil
		})
		second <- err
	}()

	// Let the second request reach the queue, then give up on it.
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-second; !errors.Is(err, context.Canceled) {
		t.Errorf("queued Do = %v, want context.Canceled", err)
	}
	close(release)

	if got := (<-first).(vm.Value); !got.Equal(vm.Int(1000)) {
		t.Errorf("running evaluation = %v, want 1000", got)
	}
	// Drain the queue so the skipped request has been seen by the worker.
	if _, err := w.Do(bg(), func(v *vm.VM) interface{} { return nil }); err != nil {
		t.Fatal(err)
	}
	if ran.Load() {
		t.Error("expired request ran")
	}
}

func TestVMWorkerStopped(t *testing.T) {
	w := NewVMWorker(vm.NewVM())
	w.Stop()
	w.Stop()

	if _, err := w.Do(bg(), func(v *vm.VM) interface{} { return nil }); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Do after Stop = %v, want ErrWorkerStopped", err)
	}
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(vm.NewVM)
	defer store.StopAll()

	a := store.Create("a")
	b := store.Create("b")
	if a.ID == b.ID {
		t.Fatal("duplicate session ids")
	}

	got, err := store.Get(a.ID)
	if err != nil || got != a {
		t.Errorf("Get(%s) = %v, %v", a.ID, got, err)
	}
	if _, err := store.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(nope) = %v, want ErrSessionNotFound", err)
	}

	list := store.List()
	if len(list) != 2 || list[0] != a || list[1] != b {
		t.Errorf("List() order wrong: %v", list)
	}

	if err := store.Destroy(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.Destroy(a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Destroy = %v, want ErrSessionNotFound", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestSessionStoreSweep(t *testing.T) {
	store := NewSessionStore(vm.NewVM)
	defer store.StopAll()

	idle := store.Create("idle")
	busy := store.Create("busy")

	idle.mu.Lock()
	idle.lastUsed = time.Now().Add(-time.Hour)
	idle.mu.Unlock()
	busy.Worker()

	if n := store.Sweep(time.Minute); n != 1 {
		t.Errorf("Sweep removed %d sessions, want 1", n)
	}
	if _, err := store.Get(idle.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("idle session survived the sweep")
	}
	if _, err := store.Get(busy.ID); err != nil {
		t.Error("busy session was swept")
	}
}
