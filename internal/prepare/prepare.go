// Package prepare drives requirement resolution for a project.
//
// Run walks the requirements in order. Each one is checked, fixed through
// its provider when unmet, and rechecked. Every requirement is processed and
// reported even when an earlier one failed; only a cancellation stops the
// pass early.
package prepare

import (
	"context"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/logging"
	"github.com/systmms/kapsel/pkg/requirement"
)

// Options configures a pass.
type Options struct {
	Mode         UIMode
	Prompter     requirement.Prompter
	Logger       *logging.Logger
	Metrics      *Metrics
	CheckTimeout time.Duration
}

// Result is the outcome of a pass.
type Result struct {
	// Statuses holds one final status per requirement, in input order.
	Statuses []*requirement.Status

	// Steps records how each requirement moved through the states.
	Steps []*Step

	// Environ is the working environment with every fix and export applied.
	Environ requirement.Environ
}

// Failed reports whether any requirement is unmet.
func (r *Result) Failed() bool {
	return len(r.Failures()) > 0
}

// Failures returns the unsatisfied statuses.
func (r *Result) Failures() []*requirement.Status {
	var failed []*requirement.Status
	for _, s := range r.Statuses {
		if !s.Satisfied() {
			failed = append(failed, s)
		}
	}
	return failed
}

// Errors flattens the errors of all statuses.
func (r *Result) Errors() []string {
	var errs []string
	for _, s := range r.Statuses {
		errs = append(errs, s.Errors()...)
	}
	return errs
}

// Run resolves reqs against in.
//
// in.Environ is not modified; the pass works on a copy that is returned in
// Result.Environ. When a prompt is canceled, or ctx is canceled while a
// download or external process runs, the partial result is returned together
// with errors.ErrCanceled.
func Run(ctx context.Context, reqs []*requirement.Requirement, in requirement.CheckInput, opts Options) (*Result, error) {
	r := newRunner(opts)
	in.Environ = in.Environ.Clone()
	result := &Result{Environ: in.Environ}

	var runErr error
	for _, req := range reqs {
		if err := canceled(ctx); err != nil {
			runErr = err
			break
		}
		step := newStep(req)
		result.Steps = append(result.Steps, step)

		err := r.resolve(ctx, step, in)
		if cerr := canceled(ctx); cerr != nil {
			runErr = cerr
			break
		}
		if err != nil {
			if kerrors.IsCanceled(err) {
				runErr = err
				break
			}
			r.logger.Error("%s: %v", req.Title(), err)
			step.Status = r.lastStatus(step).WithErrors(err.Error())
		}
		result.Statuses = append(result.Statuses, step.Status)
		if step.Status.Satisfied() {
			for k, v := range step.Status.Exports() {
				in.Environ[k] = v
			}
		}
	}

	r.metrics.RecordRun(r.mode, len(result.Failures()))
	return result, runErr
}

// canceled turns a canceled ctx into errors.ErrCanceled. A deadline is not a
// cancellation; per-check timeouts stay ordinary failures.
func canceled(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %v", kerrors.ErrCanceled, ctx.Err())
	}
	return nil
}

type runner struct {
	mode     UIMode
	prompter requirement.Prompter
	logger   *logging.Logger
	metrics  *Metrics
	timeout  time.Duration
}

func newRunner(opts Options) *runner {
	r := &runner{
		mode:     opts.Mode,
		prompter: opts.Prompter,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		timeout:  opts.CheckTimeout,
	}
	if r.mode == "" {
		r.mode = DefaultUIMode
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	return r
}

func (r *runner) lastStatus(step *Step) *requirement.Status {
	if step.Status != nil {
		return step.Status
	}
	return requirement.NewStatus(step.Requirement, false, fmt.Sprintf("%s could not be checked.", step.Requirement.Title()))
}

func (r *runner) check(ctx context.Context, step *Step, in requirement.CheckInput) (*requirement.Status, error) {
	if err := step.transition(StateChecking, "check"); err != nil {
		return nil, err
	}

	cctx, cancel := withCheckTimeout(ctx, r.timeout)
	defer cancel()
	status := step.Requirement.CheckStatus(cctx, in)
	if !status.Satisfied() {
		if msg := timeoutError(cctx, step.Requirement, r.timeout); msg != "" {
			status = status.WithErrors(msg)
		}
	}

	r.metrics.RecordCheck(string(step.Requirement.Kind()), status.Satisfied())
	r.logger.Debug("%s", status)
	step.Status = status
	return status, nil
}

func (r *runner) resolve(ctx context.Context, step *Step, in requirement.CheckInput) error {
	req := step.Requirement

	status, err := r.check(ctx, step, in)
	if err != nil {
		return err
	}
	if status.Satisfied() {
		return step.transition(StateSatisfied, status.Description())
	}
	if len(status.Errors()) > 0 && r.mode == UIModeCheck {
		return step.transition(StateFailed, status.Description())
	}
	if err := step.transition(StateNeedsFix, status.Description()); err != nil {
		return err
	}

	provider, err := req.Provider()
	if err != nil {
		return err
	}
	if err := step.transition(StateFixing, "fix"); err != nil {
		return err
	}

	started := time.Now()
	result, err := r.fix(ctx, provider, req, in, status)
	if cerr := canceled(ctx); cerr != nil {
		return cerr
	}
	if err != nil {
		if kerrors.IsCanceled(err) {
			return err
		}
		result = &requirement.FixResult{}
		result.Errorf("%s", err.Error())
	}
	step.Fixed = true

	var extra []string
	if result.NeedsInput {
		extra = append(extra, fmt.Sprintf("%s: no value available and not allowed to ask", req.Title()))
	}
	if r.mode != UIModeCheck {
		if err := in.State.Save(); err != nil {
			extra = append(extra, fmt.Sprintf("Failed to save local state: %v", err))
		}
	}
	r.metrics.RecordFix(string(req.Kind()), !result.Failed() && len(extra) == 0, time.Since(started).Seconds())

	if err := step.transition(StateChecking, "recheck"); err != nil {
		return err
	}
	cctx, cancel := withCheckTimeout(ctx, r.timeout)
	defer cancel()
	status = req.CheckStatus(cctx, in).WithFixResult(result).WithErrors(extra...)
	if !status.Satisfied() {
		if msg := timeoutError(cctx, req, r.timeout); msg != "" {
			status = status.WithErrors(msg)
		}
	}
	r.metrics.RecordCheck(string(req.Kind()), status.Satisfied())
	step.Status = status

	if status.Satisfied() {
		return step.transition(StateSatisfied, status.Description())
	}
	return step.transition(StateFailed, status.Description())
}

// fix runs the provider fix for the mode, asking when the automatic attempt
// needs input and the mode allows it.
func (r *runner) fix(ctx context.Context, provider requirement.Provider, req *requirement.Requirement, in requirement.CheckInput, status *requirement.Status) (*requirement.FixResult, error) {
	fc := &requirement.FixContext{
		Input:    in,
		Mode:     r.mode.ProvideMode(),
		Prompter: r.prompter,
		Status:   status,
	}

	interactive := r.prompter != nil && r.prompter.IsInteractive()
	if r.mode.asksFirst() && interactive {
		fc.Interactive = true
		return provider.Fix(ctx, req, fc)
	}

	result, err := provider.Fix(ctx, req, fc)
	if err != nil || !result.NeedsInput || !r.mode.mayAsk() || !interactive {
		return result, err
	}

	r.logger.Debug("%s needs input, asking", req.Title())
	fc.Interactive = true
	again, err := provider.Fix(ctx, req, fc)
	if err != nil {
		return nil, err
	}
	again.Logs = append(append([]string(nil), result.Logs...), again.Logs...)
	return again, nil
}

// CleanResult reports what Clean removed.
type CleanResult struct {
	Logs   []string
	Errors []string
}

// Failed reports whether anything could not be cleaned.
func (c *CleanResult) Failed() bool {
	return len(c.Errors) > 0
}

// Clean asks every provider that leaves state behind to remove it, in
// reverse requirement order, then saves the local state.
func Clean(ctx context.Context, reqs []*requirement.Requirement, in requirement.CheckInput, logger *logging.Logger) *CleanResult {
	if logger == nil {
		logger = logging.Discard()
	}
	out := &CleanResult{}
	fc := &requirement.FixContext{Input: in, Mode: requirement.ProvideDevelopment}

	for i := len(reqs) - 1; i >= 0; i-- {
		req := reqs[i]
		provider, err := req.Provider()
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
			continue
		}
		cleaner, ok := provider.(requirement.Cleaner)
		if !ok {
			continue
		}
		logger.Debug("Cleaning %s", req)
		result := cleaner.Clean(ctx, req, fc)
		out.Logs = append(out.Logs, result.Logs...)
		out.Errors = append(out.Errors, result.Errors...)
	}

	if err := in.State.Save(); err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("Failed to save local state: %v", err))
	}
	return out
}
