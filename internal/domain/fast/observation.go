package fast

import (
	"context"
	"sync"
)

// Observation is a live stream of reconciled states for one user.
//
// Updates holds at most one pending state: when the reader falls behind, the
// pending state is replaced by the newer one.
type Observation struct {
	svc    *Service
	userID string
	sub    Subscription
	cancel context.CancelFunc

	updates chan State
	done    chan struct{}
	writes  sync.WaitGroup

	stopOnce sync.Once
	stopErr  error
}

// UserID returns the observed user.
func (o *Observation) UserID() string {
	return o.userID
}

// Updates returns the reconciled states. The channel closes when the
// observation ends.
func (o *Observation) Updates() <-chan State {
	return o.updates
}

// Done is closed once the notification handler has exited.
func (o *Observation) Done() <-chan struct{} {
	return o.done
}

// Close detaches the handler and waits for it and any in-flight write-backs.
func (o *Observation) Close() error {
	o.stop()
	<-o.done
	o.writes.Wait()
	return o.stopErr
}

func (o *Observation) stop() {
	o.stopOnce.Do(func() {
		o.cancel()
		o.stopErr = o.sub.Close()
	})
}

func (o *Observation) run(ctx, writeCtx context.Context) {
	defer close(o.done)
	defer close(o.updates)
	defer o.svc.detach(o.userID)
	defer o.stop()

	snapshots := o.sub.Snapshots()
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			o.deliver(o.svc.reconcile(o, writeCtx, snapshot))
		}
	}
}

func (o *Observation) deliver(st State) {
	select {
	case <-o.updates:
	default:
	}
	o.updates <- st
}
