package flowpipe

import (
	"errors"
	"sync"
	"testing"
)

func TestGuardReadWrite(t *testing.T) {
	g := &Guard{}

	t.Run("ReadResult returns fn's value", func(t *testing.T) {
		v, err := ReadResult(g, func() (int, error) { return 42, nil })
		if err != nil || v != 42 {
			t.Fatalf("got (%d, %v), want (42, nil)", v, err)
		}
	})

	t.Run("WriteResult propagates fn's error", func(t *testing.T) {
		wantErr := errors.New("fail")
		_, err := WriteResult(g, func() (int, error) { return 0, wantErr })
		if !errors.Is(err, wantErr) {
			t.Fatalf("got %v, want %v", err, wantErr)
		}
	})

	t.Run("concurrent readers do not block each other", func(t *testing.T) {
		var wg sync.WaitGroup
		started := make(chan struct{}, 2)
		release := make(chan struct{})
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = g.ReadVoided(func() error {
					started <- struct{}{}
					<-release
					return nil
				})
			}()
		}
		<-started
		<-started
		close(release)
		wg.Wait()
	})
}
