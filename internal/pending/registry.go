// Package pending implements the PendingCallRegistry: the rendezvous point
// that correlates an asynchronous frontend response (a dice result, a
// combat-state update, an actor sheet, an attribute-modification ack) with
// the tool-call handler awaiting it.
//
// The design note in spec.md §9 calls for a map from request_id to a
// single-shot completion cell guarded against double completion; buffered
// channels serve as the completion cells, generalized from a worker-pool
// result channel to a uuid-keyed rendezvous table.
package pending

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goldbox/relay/pkg/models"
)

// Result is whatever payload a resolver supplies for a request_id. It is
// opaque to the registry; only the tool handler that registered the call
// knows how to interpret it.
type Result struct {
	Data any
	Err  error
}

// call is one registered rendezvous. done is a buffered channel of size 1:
// exactly one send ever succeeds, guarded by completed (checked-and-set
// under the registry's lock) rather than by racing on channel send.
type call struct {
	requestID   models.RequestId
	clientID    models.ClientId
	awaitedType models.AwaitedType
	createdAt   time.Time
	done        chan Result
	completed   bool
}

// Registry is the PendingCallRegistry (C1). At most one entry exists per
// request_id at a time; resolve, reject, cancel, and timeout each mark the
// entry completed and delete it under the registry lock, so a result is
// delivered at most once.
type Registry struct {
	mu    sync.Mutex
	calls map[models.RequestId]*call

	logger *slog.Logger
}

// New constructs an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		calls:  make(map[models.RequestId]*call),
		logger: logger,
	}
}

// Handle is returned by Register; the caller awaits it with a
// tool-specific timeout via Await.
type Handle struct {
	requestID models.RequestId
	done      <-chan Result
	registry  *Registry
}

// RequestID returns the uuid this handle's caller must stamp into the
// outbound frontend frame. The frontend must echo it unchanged.
func (h Handle) RequestID() models.RequestId {
	return h.requestID
}

// Register allocates a request_id, stores a PendingCall for the given
// client and awaited type, and returns a Handle the caller can await.
func (r *Registry) Register(clientID models.ClientId, awaitedType models.AwaitedType) Handle {
	id := models.RequestId(uuid.NewString())
	c := &call{
		requestID:   id,
		clientID:    clientID,
		awaitedType: awaitedType,
		createdAt:   time.Now(),
		done:        make(chan Result, 1),
	}

	r.mu.Lock()
	r.calls[id] = c
	r.mu.Unlock()

	return Handle{requestID: id, done: c.done, registry: r}
}

// Await blocks until the handle's call resolves, the context is cancelled,
// or timeout elapses, whichever first. A timeout removes the entry and
// returns ErrTimeout; the caller (a tool handler) decides whether partial
// state observed elsewhere constitutes a recoverable success, per
// spec.md §4.5.
func (h Handle) Await(ctx context.Context, timeout time.Duration) (Result, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-h.done:
		return res, nil
	case <-timer.C:
		h.registry.expire(h.requestID)
		return Result{}, ErrTimeout
	case <-ctx.Done():
		h.registry.expire(h.requestID)
		return Result{}, ctx.Err()
	}
}

// Resolve fulfills the PendingCall for request_id with data, if it exists
// and has not already completed. A resolve for an unknown or already
// completed request_id is a discarded no-op, logged at debug level — this
// is the "late resolve after timeout" case spec.md §4.1 calls out.
func (r *Registry) Resolve(requestID models.RequestId, data any) {
	r.complete(requestID, Result{Data: data})
}

// Reject is the symmetric failure path to Resolve.
func (r *Registry) Reject(requestID models.RequestId, err error) {
	r.complete(requestID, Result{Err: err})
}

func (r *Registry) complete(requestID models.RequestId, res Result) {
	r.mu.Lock()
	c, ok := r.calls[requestID]
	if !ok || c.completed {
		r.mu.Unlock()
		r.logger.Debug("pending call resolve discarded", "request_id", requestID, "reason", "not_found_or_completed")
		return
	}
	c.completed = true
	delete(r.calls, requestID)
	r.mu.Unlock()

	// Buffered with capacity 1; this send never blocks because only one
	// completion path ever reaches here per call.
	c.done <- res
}

// Cancel removes a PendingCall without resolving it, used on link teardown
// so an awaiting handler fails fast with a transport error rather than
// waiting out its timeout.
func (r *Registry) Cancel(requestID models.RequestId) {
	r.mu.Lock()
	c, ok := r.calls[requestID]
	if ok {
		c.completed = true
		delete(r.calls, requestID)
	}
	r.mu.Unlock()
	if ok {
		c.done <- Result{Err: ErrCancelled}
	}
}

// CancelAllForClient cancels every PendingCall registered for the given
// client, invoked when its ClientLink closes.
func (r *Registry) CancelAllForClient(clientID models.ClientId) int {
	r.mu.Lock()
	var toCancel []*call
	for id, c := range r.calls {
		if c.clientID == clientID {
			c.completed = true
			delete(r.calls, id)
			toCancel = append(toCancel, c)
		}
	}
	r.mu.Unlock()

	for _, c := range toCancel {
		c.done <- Result{Err: ErrCancelled}
	}
	return len(toCancel)
}

// expire marks a call completed on timeout without sending, since Await's
// caller already observed the timer fire and is not reading from done.
func (r *Registry) expire(requestID models.RequestId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.calls[requestID]; ok {
		c.completed = true
		delete(r.calls, requestID)
	}
}

// ErrTimeout is returned by Await when no resolve/reject arrived in time.
var ErrTimeout = fmt.Errorf("pending call timed out")

// ErrCancelled is returned by Await when the call was cancelled (typically
// because the owning ClientLink closed).
var ErrCancelled = fmt.Errorf("pending call cancelled")
