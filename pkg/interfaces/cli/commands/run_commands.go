package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/interfaces/cli/output"
)

// ErrMaterialShort is returned by check when the gate refuses the operation
var ErrMaterialShort = errors.New("material short")

func (a *App) runCheck(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("check")
	runRef := fs.String("run", "", "Run number or ID")
	opRef := fs.String("op", "", "Operation code, sequence or ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.withEngine(ctx, opts, func(e *engine) error {
		run, err := e.run(ctx, *runRef)
		if err != nil {
			return err
		}
		op, err := e.operation(ctx, run, *opRef)
		if err != nil {
			return err
		}

		result, err := e.gate.CanStart(ctx, run.ID, op.ID)
		if err != nil {
			return err
		}
		if err := a.render(opts, "check", output.GateTable(op, result)); err != nil {
			return err
		}
		if !result.OK {
			return ErrMaterialShort
		}
		return nil
	})
}

func (a *App) runShow(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("show")
	runRef := fs.String("run", "", "Run number or ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.withEngine(ctx, opts, func(e *engine) error {
		run, err := e.run(ctx, *runRef)
		if err != nil {
			return err
		}
		return a.showRun(ctx, e, opts, run)
	})
}

func (a *App) showRun(ctx context.Context, e *engine, opts *Config, run *entities.ProductionRun, extra ...output.Table) error {
	ops, err := e.production.ListOperations(ctx, run.ID)
	if err != nil {
		return err
	}
	labels, err := e.labels(ctx, run)
	if err != nil {
		return err
	}
	tables := append(extra, output.RunTable(run, ops, labels))
	return a.render(opts, "run-"+run.RunNumber, tables...)
}

func (a *App) runRelease(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("release")
	runRef := fs.String("run", "", "Run number or ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.withEngine(ctx, opts, func(e *engine) error {
		run, err := e.run(ctx, *runRef)
		if err != nil {
			return err
		}

		result, err := e.lifecycle.Release(ctx, run.ID)
		if err != nil && (result == nil || !errors.Is(err, apperr.ErrInvalidState)) {
			return err
		}
		message := result.Message
		if message == "" {
			message = "released"
		}

		run, err = e.production.GetRun(ctx, run.ID)
		if err != nil {
			return err
		}
		return a.showRun(ctx, e, opts, run, output.MessageTable("Release",
			"Run", run.RunNumber,
			"Result", message,
			"Operations created", fmt.Sprint(result.OperationsCreated),
		))
	})
}

func (a *App) runGenerate(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("generate")
	runRef := fs.String("run", "", "Run number or ID")
	force := fs.Bool("force", false, "Replace existing operations")
	destructive := fs.Bool("destructive", false, "Allow replacing running or complete operations")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.withEngine(ctx, opts, func(e *engine) error {
		run, err := e.run(ctx, *runRef)
		if err != nil {
			return err
		}

		result, err := e.lifecycle.GenerateOperations(ctx, run.ID, dto.GenerateOptions{
			Force:            *force,
			AllowDestructive: *destructive,
		})
		if err != nil {
			return err
		}

		run, err = e.production.GetRun(ctx, run.ID)
		if err != nil {
			return err
		}
		return a.showRun(ctx, e, opts, run, output.MessageTable("Generate",
			"Run", run.RunNumber,
			"Result", result.Message,
			"Operations deleted", fmt.Sprint(result.OperationsDeleted),
			"Operations created", fmt.Sprint(result.OperationsCreated),
		))
	})
}

func (a *App) runStart(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("start")
	runRef := fs.String("run", "", "Run number or ID")
	opRef := fs.String("op", "", "Operation code, sequence or ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.transition(ctx, opts, *runRef, *opRef, func(e *engine, run *entities.ProductionRun, op *entities.Operation) (*dto.TransitionResult, error) {
		return e.lifecycle.StartOperation(ctx, run.ID, op.ID)
	})
}

func (a *App) runComplete(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("complete")
	runRef := fs.String("run", "", "Run number or ID")
	opRef := fs.String("op", "", "Operation code, sequence or ID")
	qty := fs.String("qty", "0", "Good quantity (0 means everything not scrapped)")
	scrap := fs.String("scrap", "0", "Scrapped quantity")
	notes := fs.String("notes", "", "Completion notes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	completed, err := decimal.NewFromString(*qty)
	if err != nil {
		return fmt.Errorf("invalid qty %q: %w", *qty, err)
	}
	scrapped, err := decimal.NewFromString(*scrap)
	if err != nil {
		return fmt.Errorf("invalid scrap %q: %w", *scrap, err)
	}

	return a.transition(ctx, opts, *runRef, *opRef, func(e *engine, run *entities.ProductionRun, op *entities.Operation) (*dto.TransitionResult, error) {
		return e.lifecycle.CompleteOperation(ctx, run.ID, op.ID, dto.CompleteInput{
			QuantityCompleted: completed,
			QuantityScrapped:  scrapped,
			Notes:             *notes,
		})
	})
}

func (a *App) runSkip(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("skip")
	runRef := fs.String("run", "", "Run number or ID")
	opRef := fs.String("op", "", "Operation code, sequence or ID")
	reason := fs.String("reason", "", "Why the operation is skipped")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.transition(ctx, opts, *runRef, *opRef, func(e *engine, run *entities.ProductionRun, op *entities.Operation) (*dto.TransitionResult, error) {
		return e.lifecycle.SkipOperation(ctx, run.ID, op.ID, *reason)
	})
}

type transitionFunc func(e *engine, run *entities.ProductionRun, op *entities.Operation) (*dto.TransitionResult, error)

// transition resolves the run and operation, applies fn and prints the run.
// A material block prints the shortages before returning the error.
func (a *App) transition(ctx context.Context, opts *Config, runRef, opRef string, fn transitionFunc) error {
	return a.withEngine(ctx, opts, func(e *engine) error {
		run, err := e.run(ctx, runRef)
		if err != nil {
			return err
		}
		op, err := e.operation(ctx, run, opRef)
		if err != nil {
			return err
		}

		result, err := fn(e, run, op)
		if err != nil {
			var blocked *apperr.BlockedError
			if errors.As(err, &blocked) && len(blocked.Issues) > 0 {
				gateTable := output.GateTable(op, &dto.GateResult{OperationID: op.ID, Issues: blocked.Issues})
				if renderErr := a.render(opts, "blocked", gateTable); renderErr != nil {
					return renderErr
				}
			}
			return err
		}
		return a.showRun(ctx, e, opts, result.Run)
	})
}
