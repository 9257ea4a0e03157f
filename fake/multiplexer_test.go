package fake_test

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/fake"
)

func TestMultiplexerScriptedWait(t *testing.T) {
	m := fake.NewMultiplexer()
	if err := m.RegisterRead(7); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterRead(7); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("duplicate registration: got %v", err)
	}
	key := m.Key(7, api.InterestRead)
	m.Push(key)

	keys := make([]api.ReadinessKey, 4)
	n, err := m.Wait(keys)
	if err != nil || n != 1 || keys[0] != key {
		t.Fatalf("Wait = %d, %v, %+v", n, err, keys[:n])
	}
	if !m.Valid(key) {
		t.Error("key for live registration reported stale")
	}
	m.Deregister(7)
	m.RegisterRead(7)
	if m.Valid(key) {
		t.Error("key from previous registration reported valid")
	}
}

func TestMultiplexerWakeup(t *testing.T) {
	m := fake.NewMultiplexer()
	done := make(chan int)
	go func() {
		n, _ := m.Wait(make([]api.ReadinessKey, 1))
		done <- n
	}()
	m.Wakeup()
	select {
	case n := <-done:
		if n != 0 {
			t.Errorf("wakeup produced %d keys", n)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait not woken")
	}
	m.Close()
	if _, err := m.Wait(make([]api.ReadinessKey, 1)); !errors.Is(err, api.ErrInvalidState) {
		t.Errorf("Wait after Close: got %v", err)
	}
}

func TestBytePoolOutstanding(t *testing.T) {
	p := fake.NewBytePool()
	a, b := p.Acquire(16), p.Acquire(16)
	p.Release(a)
	if p.Outstanding() != 1 {
		t.Fatalf("outstanding = %d, want 1", p.Outstanding())
	}
	p.Release(b)
	if st := p.Stats(); st.InUse != 0 || st.TotalAlloc != 2 || st.TotalFree != 2 {
		t.Errorf("stats = %+v", st)
	}
}
