package disposal

import (
	"testing"
	"time"

	"voicedriver/internal/interconnect"
)

func TestRunDrainsUntilClosed(t *testing.T) {
	ic := interconnect.New()
	done := make(chan struct{})
	go func() {
		Run(ic)
		close(done)
	}()

	for i := 0; i < 10; i++ {
		ic.Disposal <- interconnect.DisposalMessage{Value: i}
	}
	close(ic.Disposal)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return once Disposal closed")
	}
}

func TestSendDisposalNeverBlocksTheCaller(t *testing.T) {
	ic := interconnect.New()
	done := make(chan struct{})
	go func() {
		Run(ic)
		close(done)
	}()

	start := time.Now()
	for i := 0; i < 500; i++ {
		ic.SendDisposal(i)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("500 SendDisposal calls took %v, want well under 1s", elapsed)
	}

	close(ic.Disposal)
	<-done
}
