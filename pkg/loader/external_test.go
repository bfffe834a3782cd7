package loader

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withgalaxy/lazyload/pkg/config"
	"github.com/withgalaxy/lazyload/pkg/dom"
	"github.com/withgalaxy/lazyload/pkg/dom/domtest"
)

func runAsync(rt *Runtime, urls []string, cb func()) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- rt.LoadExternalDependencies(context.Background(), urls, cb) }()
	return errc
}

func waitForElement(t *testing.T, doc *domtest.Document, src string) *domtest.Element {
	t.Helper()
	var el *domtest.Element
	require.Eventually(t, func() bool {
		els := doc.FindBySrc(src)
		if len(els) == 0 {
			return false
		}
		el = els[0]
		return true
	}, time.Second, time.Millisecond)
	return el
}

func TestExternalDependenciesAllSucceed(t *testing.T) {
	rt, doc, _ := newRuntime(t, nil)
	var calls int32

	errc := runAsync(rt, []string{"a.js", "b.js", "c.js"}, func() { atomic.AddInt32(&calls, 1) })

	a := waitForElement(t, doc, "a.js")
	b := waitForElement(t, doc, "b.js")
	c := waitForElement(t, doc, "c.js")

	a.Fire(dom.EventLoad, "")
	c.Fire(dom.EventLoad, "")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "callback waits for every dependency")

	b.Fire(dom.EventLoad, "")
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("aggregate never settled")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExternalDependenciesFailureSkipsCallback(t *testing.T) {
	rt, doc, _ := newRuntime(t, nil)
	var calls int32

	errc := runAsync(rt, []string{"a.js", "b.js", "c.js"}, func() { atomic.AddInt32(&calls, 1) })

	a := waitForElement(t, doc, "a.js")
	b := waitForElement(t, doc, "b.js")
	c := waitForElement(t, doc, "c.js")

	a.Fire(dom.EventLoad, "")
	b.Fire(dom.EventError, "")

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrScriptLoad)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "b.js", le.URL)
	case <-time.After(time.Second):
		t.Fatal("aggregate never failed")
	}

	assert.Equal(t, 1, rt.Pending(), "sibling load is not cancelled")
	c.Fire(dom.EventLoad, "")
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.True(t, rt.LoadedScripts().Loaded("c.js"))
}

func TestExternalDependenciesTimeout(t *testing.T) {
	rt, doc, mock := newRuntime(t, nil)

	errc := runAsync(rt, []string{"a.js"}, func() { t.Error("callback must not run") })
	waitForElement(t, doc, "a.js")
	mock.Add(2 * time.Second)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrScriptTimeout)
	case <-time.After(time.Second):
		t.Fatal("aggregate never timed out")
	}
}

func TestExternalDependenciesSharesPendingLoads(t *testing.T) {
	rt, doc, _ := newRuntime(t, nil)
	var direct dom.Event
	rt.Load("shared.js", func(ev dom.Event) { direct = ev })

	done := make(chan struct{})
	errc := runAsync(rt, []string{"shared.js", "shared.js"}, func() { close(done) })
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, doc.Created())
	doc.FindBySrc("shared.js")[0].Fire(dom.EventLoad, "")

	require.NoError(t, <-errc)
	<-done
	assert.Equal(t, dom.EventLoad, direct.Type)
}

func TestExternalDependenciesEmpty(t *testing.T) {
	rt, _, _ := newRuntime(t, nil)
	called := false
	require.NoError(t, rt.LoadExternalDependencies(context.Background(), nil, func() { called = true }))
	assert.True(t, called)
}

func TestExternalDependenciesDisabled(t *testing.T) {
	rt, _, _ := newRuntime(t, func(c *config.Config) { c.Features.ExternalSupport = false })
	err := rt.LoadExternalDependencies(context.Background(), []string{"a.js"}, nil)
	assert.ErrorIs(t, err, ErrExternalUnsupported)
	assert.Equal(t, 0, rt.Pending())
}

func TestExternalDependenciesContextCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	rt := New(cfg, domtest.NewDocument(pageURL), WithClock(clock.NewMock()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rt.LoadExternalDependencies(ctx, []string{"a.js"}, func() { t.Error("callback must not run") })
	assert.ErrorIs(t, err, context.Canceled)
}
