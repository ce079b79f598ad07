package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kode4food/relay/pkg/api"
	"github.com/kode4food/relay/pkg/log"
)

// InitialStep returns the only step without an incoming NEXT edge
func (p *Pipeline) InitialStep(ctx context.Context) (*api.Step, error) {
	roots, err := p.graph.Roots(ctx)
	if err != nil {
		return nil, err
	}
	switch len(roots) {
	case 0:
		return nil, structureError(p.Name(), ErrNoEntryStep, "")
	case 1:
		return roots[0], nil
	default:
		return nil, structureError(p.Name(), ErrAmbiguousEntry,
			fmt.Sprintf("%d candidates, ids %v", len(roots), stepIDs(roots)),
		)
	}
}

// NextStep returns the successor of current, or nil at the end of the
// pipeline. When several successors exist the one with the lowest id wins
func (p *Pipeline) NextStep(
	ctx context.Context, current *api.Step,
) (*api.Step, error) {
	next, err := p.graph.Successors(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	switch len(next) {
	case 0:
		return nil, nil
	case 1:
		return next[0], nil
	default:
		slog.Warn("Step has several successors",
			log.Pipeline(p.Name()),
			log.StepID(current.ID),
			slog.Any("successors", stepIDs(next)),
			slog.Int64("chosen", int64(next[0].ID)))
		return next[0], nil
	}
}

// RunStep executes the step's command and records the result on this
// pipeline's graph. A non-zero exit is returned as a result, not an error
func (p *Pipeline) RunStep(
	ctx context.Context, st *api.Step,
) (api.Result, error) {
	e := p.engine
	e.events.Publish(api.EventTypeStepStarted, api.StepStartedEvent{
		Pipeline: p.Origin(),
		Snapshot: p.Name(),
		StepID:   st.ID,
		Command:  st.Command,
	})

	res, err := e.exec.Execute(ctx, st.Command)
	if err != nil {
		return api.Result{}, fmt.Errorf("step %d: %w", st.ID, err)
	}
	if err := p.graph.SetResult(ctx, st.ID, res); err != nil {
		return api.Result{}, err
	}

	e.events.Publish(api.EventTypeStepCompleted, api.StepCompletedEvent{
		Pipeline: p.Origin(),
		Snapshot: p.Name(),
		StepID:   st.ID,
		ExitCode: res.ExitCode,
	})
	slog.Info("Step executed",
		log.Snapshot(p.Name()),
		log.StepID(st.ID),
		log.Command(st.Command),
		log.ExitCode(res.ExitCode))
	return res, nil
}

// Run clones the pipeline and executes the snapshot from its entry step to
// the end of its NEXT chain. Once the snapshot exists it is returned even
// when the run fails, so the recorded results can be inspected
func (p *Pipeline) Run(ctx context.Context) (*Pipeline, error) {
	snap, _, err := p.run(ctx)
	return snap, err
}

// RunWithReport behaves like Run but returns a report of the executed steps
// in execution order. The report is nil only if no snapshot was created
func (p *Pipeline) RunWithReport(
	ctx context.Context,
) (*api.RunReport, error) {
	_, rep, err := p.run(ctx)
	return rep, err
}

func (p *Pipeline) run(
	ctx context.Context,
) (*Pipeline, *api.RunReport, error) {
	e := p.engine
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	started := time.Now()
	snap, err := p.Clone(ctx)
	if err != nil {
		e.runFailed(p.Name(), "", err)
		return nil, nil, err
	}

	slog.Info("Run started",
		log.Pipeline(p.Name()),
		log.Snapshot(snap.Name()))
	e.events.Publish(api.EventTypeRunStarted, api.RunStartedEvent{
		Pipeline: p.Name(),
		Snapshot: snap.Name(),
	})

	rep := &api.RunReport{
		Pipeline:  p.Name(),
		Snapshot:  snap.Name(),
		StartedAt: started,
		Steps:     []*api.Step{},
	}
	err = snap.execute(ctx, rep)
	rep.FinishedAt = time.Now()

	if err != nil {
		rep.Error = err.Error()
		e.runFailed(p.Name(), snap.Name(), err)
	} else {
		slog.Info("Run completed",
			log.Pipeline(p.Name()),
			log.Snapshot(snap.Name()),
			slog.Int("steps", len(rep.Steps)))
		e.events.Publish(api.EventTypeRunCompleted, api.RunCompletedEvent{
			Pipeline: p.Name(),
			Snapshot: snap.Name(),
			Steps:    len(rep.Steps),
		})
	}
	e.archiveReport(context.WithoutCancel(ctx), rep)
	return snap, rep, err
}

func (p *Pipeline) execute(ctx context.Context, rep *api.RunReport) error {
	st, err := p.InitialStep(ctx)
	if err != nil {
		return err
	}

	visited := map[api.StepID]bool{}
	for st != nil {
		if visited[st.ID] {
			return structureError(p.Name(), ErrCycle,
				fmt.Sprintf("step %d", st.ID),
			)
		}
		visited[st.ID] = true

		res, err := p.RunStep(ctx, st)
		if err != nil {
			return err
		}
		rep.Steps = append(rep.Steps, st.WithResult(res))

		if !res.Succeeded() && p.engine.policy == PolicyAbort {
			return fmt.Errorf("%w: step %d exited with %d",
				ErrStepFailed, st.ID, res.ExitCode)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if st, err = p.NextStep(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runFailed(pipeline, snapshot string, err error) {
	slog.Error("Run failed",
		log.Pipeline(pipeline),
		log.Snapshot(snapshot),
		log.Error(err))
	e.events.Publish(api.EventTypeRunFailed, api.RunFailedEvent{
		Pipeline: pipeline,
		Snapshot: snapshot,
		Error:    err.Error(),
	})
}

func (e *Engine) archiveReport(ctx context.Context, rep *api.RunReport) {
	if e.archive == nil {
		return
	}
	if err := e.archive.Put(ctx, rep); err != nil {
		slog.Error("Failed to archive run report",
			log.Snapshot(rep.Snapshot),
			log.Error(err))
	}
}

func stepIDs(steps []*api.Step) []api.StepID {
	res := make([]api.StepID, len(steps))
	for i, s := range steps {
		res[i] = s.ID
	}
	return res
}
