package backup

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"
)

const maxBackoff = 30 * time.Second

// Orchestrator runs the snapshot → upload → cleanup → report cycle.
// It never returns an error: every failure mode is encoded in the Outcome.
type Orchestrator struct {
	snapshotter Snapshotter
	s3          Sink
	github      Sink
	notifier    Notifier
	logger      *slog.Logger

	// sleep is swapped out in tests to observe backoff timing.
	sleep func(context.Context, time.Duration)
}

// NewOrchestrator constructs an Orchestrator. Either sink may be nil when the
// deployment only configures one target; requesting a nil sink records a
// failed SinkResult rather than panicking.
func NewOrchestrator(snapshotter Snapshotter, s3, github Sink, notifier Notifier, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		snapshotter: snapshotter,
		s3:          s3,
		github:      github,
		notifier:    notifier,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// Perform runs one full backup attempt. The local artifact is removed on
// every exit path, including sink panics. Overall success requires at least
// one requested sink to succeed; a failure notification is sent whenever any
// requested sink failed, a success notification only when none did.
func (o *Orchestrator) Perform(ctx context.Context, method Method) (outcome Outcome) {
	start := time.Now()
	outcome = Outcome{Method: method, Timestamp: start.UTC()}
	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Error = fmt.Sprintf("panic: %v", r)
			outcome.Duration = time.Since(start)
			o.notify(ctx, KindFailure, outcome)
		}
	}()

	if !method.Valid() {
		outcome.Error = fmt.Sprintf("unknown backup method %q", method)
		outcome.Duration = time.Since(start)
		o.notify(ctx, KindFailure, outcome)
		return outcome
	}

	artifact, err := o.snapshotter.Snapshot(ctx)
	if err != nil {
		outcome.Error = err.Error()
		outcome.Duration = time.Since(start)
		o.notify(ctx, KindFailure, outcome)
		return outcome
	}
	defer func() {
		if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) && o.logger != nil {
			o.logger.Warn("remove backup artifact", slog.Any("error", err))
		}
	}()

	outcome.SinkResults = o.deliver(ctx, method, artifact)

	anyFailed := false
	for _, result := range outcome.SinkResults {
		if result.Success {
			outcome.Success = true
		} else {
			anyFailed = true
		}
	}
	outcome.Duration = time.Since(start)

	if anyFailed {
		o.notify(ctx, KindFailure, outcome)
	} else {
		o.notify(ctx, KindSuccess, outcome)
	}
	return outcome
}

// PerformWithRetry calls Perform up to maxRetries times, returning the first
// successful outcome. Waits between attempts grow as 1s, 2s, 4s, ... capped
// at 30s. After exhaustion the last failing outcome is returned.
func (o *Orchestrator) PerformWithRetry(ctx context.Context, method Method, maxRetries int) Outcome {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var outcome Outcome
	for attempt := 1; attempt <= maxRetries; attempt++ {
		outcome = o.Perform(ctx, method)
		outcome.Attempts = attempt
		if outcome.Success {
			return outcome
		}
		if attempt == maxRetries || ctx.Err() != nil {
			break
		}
		delay := backoff(attempt)
		if o.logger != nil {
			o.logger.Warn("backup attempt failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
		}
		o.sleep(ctx, delay)
	}
	return outcome
}

// deliver attempts every requested sink. The uploads run concurrently and
// both always settle: one sink's failure or panic never blocks the other.
func (o *Orchestrator) deliver(ctx context.Context, method Method, artifact *Artifact) []SinkResult {
	var requested []Sink
	var names []string
	switch method {
	case MethodS3:
		requested, names = []Sink{o.s3}, []string{string(MethodS3)}
	case MethodGitHub:
		requested, names = []Sink{o.github}, []string{string(MethodGitHub)}
	case MethodBoth:
		requested, names = []Sink{o.s3, o.github}, []string{string(MethodS3), string(MethodGitHub)}
	}

	results := make([]SinkResult, len(requested))
	var group errgroup.Group
	for i, sink := range requested {
		group.Go(func() error {
			name := names[i]
			if sink != nil {
				name = sink.Name()
			}
			results[i] = o.storeOne(ctx, sink, name, artifact)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// storeOne isolates a single sink call, converting errors and panics into a
// recorded result.
func (o *Orchestrator) storeOne(ctx context.Context, sink Sink, name string, artifact *Artifact) (result SinkResult) {
	result = SinkResult{Sink: name}
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
		}
	}()
	if sink == nil {
		result.Error = "sink not configured"
		return result
	}
	ref, err := sink.Store(ctx, artifact)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	result.Ref = ref
	return result
}

func (o *Orchestrator) notify(ctx context.Context, kind Kind, outcome Outcome) {
	if o.notifier == nil {
		return
	}
	o.notifier.Notify(ctx, kind, summarize(outcome))
}

// summarize renders a short operator-facing description of an outcome.
func summarize(outcome Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "backup method=%s success=%t duration=%s", outcome.Method, outcome.Success, outcome.Duration.Round(time.Millisecond))
	if outcome.Error != "" {
		fmt.Fprintf(&b, " error=%q", outcome.Error)
	}
	for _, result := range outcome.SinkResults {
		if result.Success {
			fmt.Fprintf(&b, " %s=ok(%s)", result.Sink, result.Ref)
		} else {
			fmt.Fprintf(&b, " %s=failed(%s)", result.Sink, result.Error)
		}
	}
	return b.String()
}

// backoff returns the wait before the next attempt: 1s doubled per attempt,
// capped at 30s.
func backoff(attempt int) time.Duration {
	delay := time.Second << (attempt - 1)
	if delay > maxBackoff || delay <= 0 {
		return maxBackoff
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
