// Package dispatch delivers the events of a committed operation. Delivery is
// asynchronous and best effort: failures are logged and counted, and never
// affect the saved application.
package dispatch

import (
	"context"
	"sync"
	"time"

	"dar-workers/internal/common/logger"
	"dar-workers/internal/common/metrics"
	"dar-workers/internal/models"
	"dar-workers/internal/service"
)

// ProcessClient sends workflow requests to the process engine.
type ProcessClient interface {
	Publish(ctx context.Context, req models.WorkflowEngineRequest) error
}

// Notifier delivers one notification event.
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent) error
}

type Dispatcher struct {
	process  ProcessClient
	notifier Notifier
	logger   logger.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// New returns a dispatcher. Either collaborator may be nil to drop that kind
// of event.
func New(process ProcessClient, notifier Notifier, timeout time.Duration, log logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		process:  process,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		timeout:  timeout,
	}
}

// Dispatch starts delivery of out's events and returns immediately.
// Workflow requests for one outcome are sent in order; notifications are
// independent of each other.
func (d *Dispatcher) Dispatch(out *service.Outcome) {
	if out == nil {
		return
	}

	if len(out.WorkflowRequests) > 0 {
		reqs := append([]models.WorkflowEngineRequest(nil), out.WorkflowRequests...)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for _, req := range reqs {
				d.publish(req)
			}
		}()
	}

	for _, ev := range out.Notifications {
		ev := ev
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.notify(ev)
		}()
	}
}

// Wait blocks until every started delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) publish(req models.WorkflowEngineRequest) {
	kind := string(req.Kind)
	if d.process == nil {
		metrics.RecordDispatch(kind, "dropped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.process.Publish(ctx, req); err != nil {
		metrics.RecordDispatch(kind, "failed")
		d.logger.Error("workflow request failed", map[string]interface{}{
			"error":         err,
			"kind":          kind,
			"applicationId": req.BusinessKey,
		})
		return
	}
	metrics.RecordDispatch(kind, "sent")
	d.logger.Debug("workflow request sent", map[string]interface{}{
		"kind":          kind,
		"applicationId": req.BusinessKey,
	})
}

func (d *Dispatcher) notify(ev models.NotificationEvent) {
	kind := string(ev.Category)
	if d.notifier == nil {
		metrics.RecordDispatch(kind, "dropped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, ev); err != nil {
		metrics.RecordDispatch(kind, "failed")
		d.logger.Error("notification failed", map[string]interface{}{
			"error":      err,
			"category":   kind,
			"relatedId":  ev.RelatedID,
			"recipients": len(ev.RecipientIDs),
		})
		return
	}
	metrics.RecordDispatch(kind, "sent")
}
