package loadcontrol

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const segment = 64 * 1024

type loader struct{ name string }

func newControl(notified *[]bool) (*DefaultLoadControl, *DefaultAllocator, *PriorityLock) {
	allocator := NewDefaultAllocator(segment)
	lock := NewPriorityLock()
	opts := DefaultOptions()
	opts.Lock = lock
	opts.OnLoadingChanged = func(loading bool) {
		*notified = append(*notified, loading)
	}
	return NewDefault(allocator, opts), allocator, lock
}

func TestRegistration(t *testing.T) {
	Convey("Given a load control", t, func() {
		var notified []bool
		c, _, _ := newControl(&notified)
		a, b := &loader{"a"}, &loader{"b"}

		Convey("When two loaders register", func() {
			c.Register(a, 1_000_000)
			c.Register(b, 2_000_000)

			Convey("Then the target buffer size should be their sum", func() {
				So(c.TargetBufferSize(), ShouldEqual, 3_000_000)
			})

			Convey("Then unregistering one should subtract its contribution", func() {
				c.Unregister(a)
				So(c.TargetBufferSize(), ShouldEqual, 2_000_000)
			})

			Convey("Then registering the same loader again should panic", func() {
				So(func() { c.Register(a, 1) }, ShouldPanic)
			})
		})
	})
}

func TestWatermarks(t *testing.T) {
	Convey("Given watermarks of 15000ms and 30000ms", t, func() {
		opts := DefaultOptions()
		So(opts.LowWatermark, ShouldEqual, 15000*time.Millisecond)
		So(opts.HighWatermark, ShouldEqual, 30000*time.Millisecond)
		c := NewDefault(NewDefaultAllocator(segment), opts)
		playbackUs := int64(5_000_000)

		Convey("Then a loader 10000ms ahead should be below the low watermark", func() {
			So(c.LoaderWatermark(playbackUs, playbackUs+10_000_000), ShouldEqual, BelowLowWatermark)
		})

		Convey("Then a loader 35000ms ahead should be above the high watermark", func() {
			So(c.LoaderWatermark(playbackUs, playbackUs+35_000_000), ShouldEqual, AboveHighWatermark)
		})

		Convey("Then a loader 20000ms ahead should be between the watermarks", func() {
			So(c.LoaderWatermark(playbackUs, playbackUs+20_000_000), ShouldEqual, BetweenWatermarks)
		})

		Convey("Then a loader with nothing to load should be above the high watermark", func() {
			So(c.LoaderWatermark(playbackUs, -1), ShouldEqual, AboveHighWatermark)
		})
	})
}

func TestUpdate(t *testing.T) {
	Convey("Given a registered loader", t, func() {
		var notified []bool
		c, allocator, lock := newControl(&notified)
		l := &loader{"l"}
		c.Register(l, 10*segment)

		Convey("When it reports a load below the low watermark twice", func() {
			first := c.Update(l, 0, 10_000_000, false)
			second := c.Update(l, 0, 10_000_000, false)

			Convey("Then both decisions should admit it", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldEqual, first)
			})

			Convey("Then filling should have been notified once", func() {
				So(notified, ShouldResemble, []bool{true})
				So(c.Filling(), ShouldBeTrue)
				So(c.MaxLoadStartPositionUs(), ShouldEqual, 10_000_000)
			})

			Convey("Then the streaming priority should be held", func() {
				So(lock.ProceedNonBlocking(DownloadPriority), ShouldBeFalse)
				So(lock.ProceedNonBlocking(StreamingPriority), ShouldBeTrue)
			})
		})

		Convey("When it loads until admission is denied", func() {
			for c.Update(l, 0, 1_000_000, true) {
				allocator.Allocate()
			}

			Convey("Then the allocated size should not exceed the target", func() {
				So(allocator.TotalBytesAllocated(), ShouldEqual, c.TargetBufferSize())
				So(c.Update(l, 0, 1_000_000, false), ShouldBeFalse)
			})
		})

		Convey("When it has nothing left to load", func() {
			admitted := c.Update(l, 0, -1, false)

			Convey("Then it should not be admitted nor start filling", func() {
				So(admitted, ShouldBeFalse)
				So(c.Filling(), ShouldBeFalse)
				So(notified, ShouldBeEmpty)
			})
		})

		Convey("When the allocator is half full", func() {
			for range 5 {
				allocator.Allocate()
			}

			Convey("Then a loader between watermarks should not start filling", func() {
				So(c.Update(l, 0, 20_000_000, false), ShouldBeFalse)
				So(c.Filling(), ShouldBeFalse)
			})

			Convey("Then filling should persist between watermarks until everything is above them", func() {
				So(c.Update(l, 0, 10_000_000, false), ShouldBeTrue)
				So(c.Update(l, 0, 20_000_000, false), ShouldBeTrue)
				So(c.Update(l, 0, 35_000_000, false), ShouldBeTrue)
				So(c.Filling(), ShouldBeTrue)

				for range 4 {
					allocator.Allocate()
				}
				So(c.Update(l, 0, 35_000_000, false), ShouldBeFalse)
				So(c.Filling(), ShouldBeFalse)
				So(notified, ShouldResemble, []bool{true, false})
				So(lock.ProceedNonBlocking(DownloadPriority), ShouldBeTrue)
			})
		})

		Convey("When the only filling loader unregisters", func() {
			c.Update(l, 0, 10_000_000, false)
			c.Unregister(l)

			Convey("Then filling should stop", func() {
				So(c.Filling(), ShouldBeFalse)
				So(notified, ShouldResemble, []bool{true, false})
			})
		})

		Convey("When an unknown loader updates", func() {
			Convey("Then it should panic", func() {
				So(func() { c.Update(&loader{"x"}, 0, 0, false) }, ShouldPanic)
			})
		})
	})
}

func TestAllocator(t *testing.T) {
	Convey("Given an allocator", t, func() {
		a := NewDefaultAllocator(segment)

		Convey("When allocations are released", func() {
			allocations := []*Allocation{a.Allocate(), a.Allocate(), a.Allocate()}
			So(a.TotalBytesAllocated(), ShouldEqual, 3*segment)
			a.Release(allocations...)

			Convey("Then they should be pooled and reused", func() {
				So(a.TotalBytesAllocated(), ShouldEqual, 0)
				So(a.PooledCount(), ShouldEqual, 3)
				So(a.Allocate(), ShouldBeIn, allocations)
			})

			Convey("Then trimming should keep only the target", func() {
				a.Trim(segment + 1)
				So(a.PooledCount(), ShouldEqual, 2)
				a.Trim(0)
				So(a.PooledCount(), ShouldEqual, 0)
			})
		})

		Convey("When waiting for allocations to drain", func() {
			held := a.Allocate()
			done := make(chan error, 1)
			go func() {
				done <- a.BlockWhileTotalBytesAllocatedExceeds(context.Background(), 0)
			}()
			time.Sleep(10 * time.Millisecond)
			a.Release(held)

			Convey("Then the wait should end once they are released", func() {
				So(<-done, ShouldBeNil)
			})
		})

		Convey("When the context is cancelled while waiting", func() {
			a.Allocate()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			Convey("Then the wait should fail", func() {
				So(a.BlockWhileTotalBytesAllocatedExceeds(ctx, 0), ShouldEqual, context.DeadlineExceeded)
			})
		})
	})
}

func TestPriorityLock(t *testing.T) {
	Convey("Given a lock held at streaming priority", t, func() {
		l := NewPriorityLock()
		l.Add(StreamingPriority)

		Convey("Then downloads should not proceed", func() {
			err := l.ProceedOrError(DownloadPriority)
			So(errors.Is(err, ErrPriorityTooLow), ShouldBeTrue)
			So(l.ProceedOrError(StreamingPriority), ShouldBeNil)
		})

		Convey("When a download waits", func() {
			done := make(chan error, 1)
			go func() {
				done <- l.Proceed(context.Background(), DownloadPriority)
			}()
			time.Sleep(10 * time.Millisecond)
			l.Remove(StreamingPriority)

			Convey("Then it should proceed once streaming ends", func() {
				So(<-done, ShouldBeNil)
			})
		})

		Convey("Then removing an unregistered priority should panic", func() {
			So(func() { l.Remove(DownloadPriority) }, ShouldPanic)
		})
	})
}
