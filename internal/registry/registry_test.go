package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipmibmc/bmccore/internal/bmcerr"
	"github.com/ipmibmc/bmccore/internal/interfaces"
	"github.com/ipmibmc/bmccore/internal/message"
)

type stubHandler struct {
	name string
}

func (s *stubHandler) Match(message.Message) bool                    { return true }
func (s *stubHandler) Handle(context.Context, message.Message) error { return nil }
func (s *stubHandler) SignalResponseOpen()                           {}

func TestHandlerRegistryRegisterOrderPreserved(t *testing.T) {
	r := NewHandlerRegistry()
	a := &stubHandler{name: "a"}
	b := &stubHandler{name: "b"}

	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	var seen []string
	r.WithHandlers(func(handlers []interfaces.Handler, def interfaces.Handler) {
		for _, h := range handlers {
			seen = append(seen, h.(*stubHandler).name)
		}
		assert.Nil(t, def)
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestHandlerRegistryRegisterRejectsDuplicate(t *testing.T) {
	r := NewHandlerRegistry()
	a := &stubHandler{name: "a"}
	require.NoError(t, r.Register(a))

	err := r.Register(a)
	require.Error(t, err)
	assert.True(t, bmcerr.Is(err, bmcerr.CodeAlreadyRegistered))
}

func TestHandlerRegistryUnregisterNotFound(t *testing.T) {
	r := NewHandlerRegistry()
	err := r.Unregister(&stubHandler{name: "ghost"})
	require.Error(t, err)
	assert.True(t, bmcerr.Is(err, bmcerr.CodeNotFound))
}

func TestHandlerRegistryUnregisterRemovesAndWaitsForDrain(t *testing.T) {
	r := NewHandlerRegistry()
	a := &stubHandler{name: "a"}
	require.NoError(t, r.Register(a))

	entered := make(chan struct{})
	release := make(chan struct{})
	var drained bool

	go r.WithHandlers(func(handlers []interfaces.Handler, _ interfaces.Handler) {
		close(entered)
		<-release
	})

	<-entered
	done := make(chan struct{})
	go func() {
		require.NoError(t, r.Unregister(a))
		drained = true
		close(done)
	}()

	// Unregister must not have returned while the reader is still inside
	// its critical section.
	select {
	case <-done:
		t.Fatal("Unregister returned before reader left its critical section")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done
	assert.True(t, drained)
}

func TestHandlerRegistryDefaultHandlerBusyAndNotFound(t *testing.T) {
	r := NewHandlerRegistry()
	d := &stubHandler{name: "default"}

	require.NoError(t, r.RegisterDefault(d))
	err := r.RegisterDefault(&stubHandler{name: "other"})
	require.Error(t, err)
	assert.True(t, bmcerr.Is(err, bmcerr.CodeBusy))

	err = r.UnregisterDefault(&stubHandler{name: "other"})
	require.Error(t, err)
	assert.True(t, bmcerr.Is(err, bmcerr.CodeNotFound))

	require.NoError(t, r.UnregisterDefault(d))
}

func TestHandlerRegistryConcurrentReadersDoNotBlockOnAppend(t *testing.T) {
	r := NewHandlerRegistry()
	require.NoError(t, r.Register(&stubHandler{name: "a"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.WithHandlers(func(handlers []interfaces.Handler, _ interfaces.Handler) {})
		}()
	}
	require.NoError(t, r.Register(&stubHandler{name: "b"}))
	wg.Wait()
}
