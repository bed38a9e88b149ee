// Package worker exposes helpers to register the appraisal workflow and
// activities with a Temporal worker.
package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	appraisalactivity "github.com/ahrav/go-appraise/internal/activity"
	"github.com/ahrav/go-appraise/internal/appraisal"
	"github.com/ahrav/go-appraise/internal/workflow"
	"github.com/ahrav/go-appraise/pkg/activity"
	"github.com/ahrav/go-appraise/pkg/events"
)

// RegisterAll registers the appraisal workflow and its activities. It must be
// called once, before the worker starts. A nil sink discards events.
func RegisterAll(w sdkworker.Worker, stages *appraisal.Stages, sink events.EventSink) {
	if sink == nil {
		sink = events.NewNoOpEventSink()
	}
	base := activity.NewBaseActivities(sink)

	w.RegisterWorkflow(workflow.AppraisalWorkflow)
	w.RegisterActivity(appraisalactivity.NewActivities(base, stages))
}
