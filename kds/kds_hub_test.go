package kds

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/billiard-pos/models"
)

type fakeConn struct {
	mu        sync.Mutex
	messages  [][]byte
	deadlines []time.Time
	fail      bool
	closed    bool
	// stall, when set, blocks writes until the connection is closed.
	stall chan struct{}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	if f.stall != nil {
		<-f.stall
		return errors.New("use of closed connection")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	f.deadlines = append(f.deadlines, t)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed && f.stall != nil {
		close(f.stall)
	}
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeConn) events(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, raw := range f.messages {
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		out = append(out, msg.Event)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestBroadcastRoutesByRole(t *testing.T) {
	hub := NewHub()
	chef, staff, admin, customer := &fakeConn{}, &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register(chef, models.RoleChef)
	hub.Register(staff, models.RoleStaff)
	hub.Register(admin, models.RoleAdmin)
	hub.Register(customer, models.RoleCustomer)

	hub.BroadcastOrderUpdate(models.Order{ID: 1})
	hub.BroadcastKitchenUpdate([]string{})
	hub.BroadcastSessionUpdate(models.TableSession{ID: 2})
	hub.BroadcastTableUpdate(models.PoolTable{ID: 3})

	waitFor(t, func() bool { return staff.count() == 4 && admin.count() == 4 && chef.count() == 2 && customer.count() == 1 })
	assert.Equal(t, []string{EventOrderUpdate, EventKitchenUpdate}, chef.events(t))
	assert.Equal(t, []string{EventOrderUpdate, EventKitchenUpdate, EventSessionUpdate, EventTableUpdate}, staff.events(t))
	assert.Equal(t, []string{EventOrderUpdate, EventKitchenUpdate, EventSessionUpdate, EventTableUpdate}, admin.events(t))
	assert.Equal(t, []string{EventOrderUpdate}, customer.events(t))
}

func TestBroadcastDropsFailedClients(t *testing.T) {
	hub := NewHub()
	ok, broken := &fakeConn{}, &fakeConn{fail: true}
	hub.Register(ok, models.RoleStaff)
	hub.Register(broken, models.RoleStaff)
	require.Equal(t, 2, hub.Clients())

	hub.BroadcastTableUpdate(models.PoolTable{ID: 1})
	waitFor(t, func() bool { return hub.Clients() == 1 })
	assert.True(t, broken.isClosed())
	waitFor(t, func() bool { return ok.count() == 1 })

	hub.Unregister(ok)
	hub.Unregister(ok)
	assert.Zero(t, hub.Clients())
	assert.True(t, ok.isClosed())
}

func TestBroadcastSetsWriteDeadline(t *testing.T) {
	hub := newHub(4, 50*time.Millisecond)
	conn := &fakeConn{}
	hub.Register(conn, models.RoleChef)

	before := time.Now()
	hub.BroadcastKitchenUpdate(nil)
	waitFor(t, func() bool { return conn.count() == 1 })

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.deadlines, 1)
	assert.True(t, conn.deadlines[0].After(before))
	assert.True(t, conn.deadlines[0].Before(before.Add(time.Second)))
}

func TestStalledClientDoesNotBlockBroadcast(t *testing.T) {
	hub := newHub(2, time.Second)
	stalled := &fakeConn{stall: make(chan struct{})}
	healthy := &fakeConn{}
	hub.Register(stalled, models.RoleChef)
	hub.Register(healthy, models.RoleChef)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			hub.BroadcastOrderUpdate(models.Order{ID: uint(i + 1)})
			// let the healthy writer keep up with its two-slot queue
			time.Sleep(10 * time.Millisecond)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked behind a stalled client")
	}

	waitFor(t, func() bool { return hub.Clients() == 1 })
	assert.True(t, stalled.isClosed())
	waitFor(t, func() bool { return healthy.count() == 5 })
}
