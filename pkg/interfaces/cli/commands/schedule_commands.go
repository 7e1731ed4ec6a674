package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/application/services/scheduling"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/interfaces/cli/output"
)

func (a *App) runSchedule(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("schedule")
	runRef := fs.String("run", "", "Run number or ID")
	opRef := fs.String("op", "", "Operation code, sequence or ID")
	resRef := fs.String("resource", "", "Resource code or ID")
	startFlag := fs.String("start", "", "Window start; empty picks the next free slot")
	endFlag := fs.String("end", "", "Window end; empty uses the planned setup plus run minutes")
	afterFlag := fs.String("after", "", "Earliest start when searching for a free slot (default now)")
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
		resource, err := e.resource(ctx, *resRef)
		if err != nil {
			return err
		}

		start, end, err := a.scheduleWindow(ctx, e, op, resource.ID, *startFlag, *endFlag, *afterFlag)
		if err != nil {
			return err
		}

		result, err := e.scheduler.Schedule(ctx, scheduling.ScheduleRequest{
			RunID:       run.ID,
			OperationID: op.ID,
			ResourceID:  resource.ID,
			Start:       start,
			End:         end,
		})
		if err != nil {
			return err
		}
		return a.showRun(ctx, e, opts, run, output.MessageTable("Scheduled",
			"Operation", fmt.Sprintf("%s #%d", result.Operation.OperationCode, result.Operation.Sequence),
			"Resource", resource.Code,
			"Start", result.Start.UTC().Format(time.RFC3339),
			"End", result.End.UTC().Format(time.RFC3339),
		))
	})
}

// scheduleWindow resolves the requested window, deriving the end from planned
// minutes and the start from the next free slot when they are omitted
func (a *App) scheduleWindow(
	ctx context.Context,
	e *engine,
	op *entities.Operation,
	resourceID uuid.UUID,
	startFlag, endFlag, afterFlag string,
) (time.Time, time.Time, error) {
	planned := plannedDuration(op)

	var end time.Time
	var err error
	if endFlag != "" {
		if end, err = parseTime("end", endFlag); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	var start time.Time
	switch {
	case startFlag != "":
		if start, err = parseTime("start", startFlag); err != nil {
			return time.Time{}, time.Time{}, err
		}
	case planned > 0:
		after := time.Now().UTC().Truncate(time.Minute)
		if afterFlag != "" {
			if after, err = parseTime("after", afterFlag); err != nil {
				return time.Time{}, time.Time{}, err
			}
		}
		if start, err = e.scheduler.FindNextAvailableSlot(ctx, resourceID, planned, after); err != nil {
			return time.Time{}, time.Time{}, err
		}
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("operation %s has no planned time: give -start and -end", op.OperationCode)
	}

	if end.IsZero() {
		if planned <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("operation %s has no planned time: give -end", op.OperationCode)
		}
		end = start.Add(planned)
	}
	return start, end, nil
}

func plannedDuration(op *entities.Operation) time.Duration {
	minutes := op.PlannedSetupMinutes.Add(op.PlannedRunMinutes).Ceil().IntPart()
	return time.Duration(minutes) * time.Minute
}

func (a *App) runTimeline(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("timeline")
	resRef := fs.String("resource", "", "Resource code or ID (default all)")
	fromFlag := fs.String("from", "", "Only windows ending after this time")
	toFlag := fs.String("to", "", "Only windows starting before this time")
	svgPath := fs.String("svg", "", "Also write an SVG chart to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var from, to *time.Time
	if *fromFlag != "" {
		t, err := parseTime("from", *fromFlag)
		if err != nil {
			return err
		}
		from = &t
	}
	if *toFlag != "" {
		t, err := parseTime("to", *toFlag)
		if err != nil {
			return err
		}
		to = &t
	}

	return a.withEngine(ctx, opts, func(e *engine) error {
		var resources []*entities.Resource
		if *resRef != "" {
			res, err := e.resource(ctx, *resRef)
			if err != nil {
				return err
			}
			resources = append(resources, res)
		} else {
			all, err := e.production.ListResources(ctx)
			if err != nil {
				return err
			}
			resources = all
		}

		schedules := make([]*dto.ResourceSchedule, 0, len(resources))
		for _, res := range resources {
			schedule, err := e.scheduler.GetResourceSchedule(ctx, res.ID, from, to)
			if err != nil {
				return err
			}
			schedules = append(schedules, schedule)
		}

		labels, err := e.labels(ctx)
		if err != nil {
			return err
		}
		for _, schedule := range schedules {
			for _, op := range schedule.Operations {
				if _, known := labels.Runs[op.RunID]; known {
					continue
				}
				run, err := e.production.GetRun(ctx, op.RunID)
				if err != nil {
					return err
				}
				labels.Runs[run.ID] = run.RunNumber
			}
		}

		if *svgPath != "" {
			svg := output.NewGanttChart(schedules).GenerateSVG(schedules, labels)
			if err := os.WriteFile(*svgPath, []byte(svg), 0644); err != nil {
				return fmt.Errorf("failed to write SVG chart: %w", err)
			}
			if opts.Verbose {
				fmt.Fprintf(a.stdout, "Timeline chart saved to: %s\n", *svgPath)
			}
		}

		return a.render(opts, "timeline", output.TimelineTable(schedules, labels))
	})
}

func (a *App) runNextSlot(ctx context.Context, args []string) error {
	fs, opts := a.newFlagSet("next-slot")
	resRef := fs.String("resource", "", "Resource code or ID")
	duration := fs.Duration("duration", time.Hour, "Length of the window needed")
	afterFlag := fs.String("after", "", "Earliest start (default now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	after := time.Now().UTC().Truncate(time.Minute)
	if *afterFlag != "" {
		t, err := parseTime("after", *afterFlag)
		if err != nil {
			return err
		}
		after = t
	}

	return a.withEngine(ctx, opts, func(e *engine) error {
		resource, err := e.resource(ctx, *resRef)
		if err != nil {
			return err
		}
		slot, err := e.scheduler.FindNextAvailableSlot(ctx, resource.ID, *duration, after)
		if err != nil {
			return err
		}
		return a.render(opts, "next-slot", output.MessageTable("Next free slot",
			"Resource", resource.Code,
			"Start", slot.UTC().Format(time.RFC3339),
			"End", slot.Add(*duration).UTC().Format(time.RFC3339),
		))
	})
}
