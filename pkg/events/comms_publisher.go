package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/quantdesk/command-registry/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// GlobalCompletedSubject overrides the global completion event subject.
	GlobalCompletedSubject string
}

// CommsPublisher publishes dispatch completion events to COMMS subjects.
type CommsPublisher struct {
	nc                     *comms.Conn
	globalCompletedSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	globalSubject := commsutil.SubjectDispatchCompleted
	if opts != nil && opts.GlobalCompletedSubject != "" {
		globalSubject = opts.GlobalCompletedSubject
	}
	return &CommsPublisher{nc: nc, globalCompletedSubject: globalSubject}
}

// PublishCompleted publishes a DispatchCompletedEvent to both the granular
// and global completion subjects.
func (p *CommsPublisher) PublishCompleted(_ context.Context, event *DispatchCompletedEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	granularSubject := commsutil.BuildCompletedSubject(event.Path)
	if err := p.nc.Publish(granularSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, granularSubject, err))
		return err
	}

	if err := p.nc.Publish(p.globalCompletedSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.globalCompletedSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published completion event for %s", commsPublisherLogPrefix, event.Path))
	return nil
}
