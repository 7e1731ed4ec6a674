package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/application/dto"
	"github.com/vsinha/prodplan/pkg/domain/entities"
)

const timeLayout = "2006-01-02 15:04"

// Labels resolves IDs to the codes printed in reports
type Labels struct {
	Runs      map[uuid.UUID]string
	Resources map[uuid.UUID]string
}

func (l Labels) run(id uuid.UUID) string {
	if code, ok := l.Runs[id]; ok {
		return code
	}
	return id.String()
}

func (l Labels) resource(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	if code, ok := l.Resources[*id]; ok {
		return code
	}
	return id.String()
}

// ExplosionTables renders netted requirements and suggested orders
func ExplosionTables(result *dto.ExplosionResult) []Table {
	reqs := Table{
		Title:   fmt.Sprintf("Requirements for %s x %s", result.Quantity, result.SKU),
		Headers: []string{"Level", "SKU", "Name", "Unit", "Gross", "Available", "Short", "Type"},
	}
	for _, req := range result.Requirements {
		kind := "buy"
		if req.IsMake {
			kind = "make"
		}
		reqs.Rows = append(reqs.Rows, []string{
			fmt.Sprint(req.Level),
			req.SKU,
			req.Name,
			req.Unit,
			req.GrossQty.String(),
			req.AvailableQty.String(),
			req.ShortQty.String(),
			kind,
		})
	}

	tables := []Table{reqs}
	if len(result.SuggestedOrders) > 0 {
		orders := Table{
			Title:   "Suggested Orders",
			Headers: []string{"SKU", "Quantity", "Type", "Need Date"},
		}
		for _, order := range result.SuggestedOrders {
			orders.Rows = append(orders.Rows, []string{
				order.SKU,
				order.Quantity.String(),
				order.OrderType.String(),
				order.NeedDate.Format("2006-01-02"),
			})
		}
		tables = append(tables, orders)
	}
	return tables
}

// GateTable renders the material gate decision for one operation, listing every
// eligible line when the result carries them and the short lines otherwise
func GateTable(op *entities.Operation, result *dto.GateResult) Table {
	status := "OK"
	if !result.OK {
		status = "BLOCKED"
	}
	stages := make([]string, len(result.Stages))
	for i, s := range result.Stages {
		stages[i] = s.String()
	}

	table := Table{
		Title: fmt.Sprintf("Material check %s %s [%s] stages: %s",
			op.OperationCode, status, op.Status, strings.Join(stages, ", ")),
		Headers: []string{"SKU", "Name", "Stage", "Required", "Available", "Short", "Unit", "Incoming", "Status"},
	}
	lines := result.Materials
	if len(lines) == 0 {
		lines = result.Issues
	}
	for _, issue := range lines {
		incoming := ""
		if s := issue.IncomingSupply; s != nil {
			incoming = fmt.Sprintf("%s %s", s.Quantity, s.SourceRef)
			if s.ExpectedDate != nil {
				incoming += " due " + s.ExpectedDate.Format("2006-01-02")
			}
		}
		table.Rows = append(table.Rows, []string{
			issue.SKU,
			issue.Name,
			issue.ConsumeStage.String(),
			issue.Required.String(),
			issue.Available.String(),
			issue.Short.String(),
			issue.Unit,
			incoming,
			lineStatus(issue),
		})
	}
	return table
}

// RunTable renders a run header followed by its operations
func RunTable(run *entities.ProductionRun, ops []*entities.Operation, labels Labels) Table {
	table := Table{
		Title: fmt.Sprintf("Run %s [%s] ordered %s completed %s scrapped %s",
			run.RunNumber, run.Status, run.QuantityOrdered, run.QuantityCompleted, run.QuantityScrapped),
		Headers: []string{"Seq", "Code", "Name", "Status", "Resource", "Start", "End", "Setup", "Run", "Done", "Scrap", "Current"},
	}
	for _, op := range ops {
		current := ""
		if run.CurrentOperationID != nil && *run.CurrentOperationID == op.ID {
			current = "*"
		}
		table.Rows = append(table.Rows, []string{
			fmt.Sprint(op.Sequence),
			op.OperationCode,
			op.Name,
			op.Status.String(),
			labels.resource(op.ResourceID),
			formatTime(op.ScheduledStart),
			formatTime(op.ScheduledEnd),
			op.PlannedSetupMinutes.String(),
			op.PlannedRunMinutes.String(),
			op.QuantityCompleted.String(),
			op.QuantityScrapped.String(),
			current,
		})
	}
	return table
}

// TimelineTable renders resource schedules ordered by resource then start
func TimelineTable(schedules []*dto.ResourceSchedule, labels Labels) Table {
	table := Table{
		Title:   "Resource Timeline",
		Headers: []string{"Resource", "Run", "Seq", "Code", "Status", "Start", "End", "Minutes"},
	}
	for _, schedule := range schedules {
		for _, op := range schedule.Operations {
			window, _ := op.Interval()
			table.Rows = append(table.Rows, []string{
				schedule.Resource.Code,
				labels.run(op.RunID),
				fmt.Sprint(op.Sequence),
				op.OperationCode,
				op.Status.String(),
				window.Start.UTC().Format(timeLayout),
				window.End.UTC().Format(timeLayout),
				fmt.Sprintf("%.0f", window.Duration().Minutes()),
			})
		}
	}
	return table
}

// ValidationTable lists catalog validation errors
func ValidationTable(errs []string) Table {
	table := Table{Title: "Validation", Headers: []string{"#", "Error"}}
	for i, e := range errs {
		table.Rows = append(table.Rows, []string{fmt.Sprint(i + 1), e})
	}
	return table
}

// MessageTable wraps key/value facts such as a release outcome
func MessageTable(title string, pairs ...string) Table {
	table := Table{Title: title, Headers: []string{"Field", "Value"}}
	for i := 0; i+1 < len(pairs); i += 2 {
		table.Rows = append(table.Rows, []string{pairs[i], pairs[i+1]})
	}
	return table
}

func lineStatus(d entities.ShortageDetail) string {
	if d.Short.IsPositive() {
		return "short"
	}
	return "ok"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
