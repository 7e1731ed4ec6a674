package gormstore

import (
	"sort"

	"github.com/vsinha/prodplan/pkg/domain/entities"
)

func productToModel(p *entities.Product) ProductModel {
	return ProductModel{
		ID:           p.ID,
		SKU:          p.SKU,
		Name:         p.Name,
		HasBOM:       p.HasBOM,
		StorageUnit:  p.StorageUnit,
		PurchaseUnit: p.PurchaseUnit,
		LeadTimeDays: p.LeadTimeDays,
	}
}

func productFromModel(m *ProductModel) *entities.Product {
	return &entities.Product{
		ID:           m.ID,
		SKU:          m.SKU,
		Name:         m.Name,
		HasBOM:       m.HasBOM,
		StorageUnit:  m.StorageUnit,
		PurchaseUnit: m.PurchaseUnit,
		LeadTimeDays: m.LeadTimeDays,
	}
}

func bomToModel(b *entities.BOM) BOMModel {
	m := BOMModel{ID: b.ID, ProductID: b.ProductID, Version: b.Version, IsActive: b.IsActive}
	for _, l := range b.Lines {
		m.Lines = append(m.Lines, BOMLineModel{
			ID:           l.ID,
			BOMID:        b.ID,
			ComponentID:  l.ComponentID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			ConsumeStage: string(l.ConsumeStage),
			ScrapFactor:  l.ScrapFactor,
			IsCostOnly:   l.IsCostOnly,
			Sequence:     l.Sequence,
		})
	}
	return m
}

func bomFromModel(m *BOMModel) *entities.BOM {
	b := &entities.BOM{ID: m.ID, ProductID: m.ProductID, Version: m.Version, IsActive: m.IsActive}
	for _, l := range m.Lines {
		stage, err := entities.ParseConsumeStage(l.ConsumeStage)
		if err != nil {
			stage = entities.StageProduction
		}
		b.Lines = append(b.Lines, &entities.BOMLine{
			ID:           l.ID,
			BOMID:        m.ID,
			ComponentID:  l.ComponentID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			ConsumeStage: stage,
			ScrapFactor:  l.ScrapFactor,
			IsCostOnly:   l.IsCostOnly,
			Sequence:     l.Sequence,
		})
	}
	sort.SliceStable(b.Lines, func(i, j int) bool { return b.Lines[i].Sequence < b.Lines[j].Sequence })
	return b
}

func routingToModel(r *entities.Routing) RoutingModel {
	m := RoutingModel{ID: r.ID, ProductID: r.ProductID, Version: r.Version, IsActive: r.IsActive}
	for _, op := range r.Operations {
		m.Operations = append(m.Operations, RoutingOperationModel{
			ID:                op.ID,
			RoutingID:         r.ID,
			Sequence:          op.Sequence,
			OperationCode:     op.OperationCode,
			Name:              op.Name,
			WorkCenterID:      op.WorkCenterID,
			SetupMinutes:      op.SetupMinutes,
			RunMinutesPerUnit: op.RunMinutesPerUnit,
		})
	}
	return m
}

func routingFromModel(m *RoutingModel) *entities.Routing {
	r := &entities.Routing{ID: m.ID, ProductID: m.ProductID, Version: m.Version, IsActive: m.IsActive}
	for _, op := range m.Operations {
		r.Operations = append(r.Operations, &entities.RoutingOperation{
			ID:                op.ID,
			RoutingID:         m.ID,
			Sequence:          op.Sequence,
			OperationCode:     op.OperationCode,
			Name:              op.Name,
			WorkCenterID:      op.WorkCenterID,
			SetupMinutes:      op.SetupMinutes,
			RunMinutesPerUnit: op.RunMinutesPerUnit,
		})
	}
	r.Operations = r.Ordered()
	return r
}

func resourceToModel(r *entities.Resource) ResourceModel {
	return ResourceModel{ID: r.ID, Code: r.Code, Name: r.Name, WorkCenterID: r.WorkCenterID, IsActive: r.IsActive}
}

func resourceFromModel(m *ResourceModel) *entities.Resource {
	return &entities.Resource{ID: m.ID, Code: m.Code, Name: m.Name, WorkCenterID: m.WorkCenterID, IsActive: m.IsActive}
}

func runToModel(r *entities.ProductionRun) RunModel {
	return RunModel{
		ID:                 r.ID,
		RunNumber:          r.RunNumber,
		ProductID:          r.ProductID,
		QuantityOrdered:    r.QuantityOrdered,
		QuantityCompleted:  r.QuantityCompleted,
		QuantityScrapped:   r.QuantityScrapped,
		Status:             string(r.Status),
		BOMID:              r.BOMID,
		RoutingID:          r.RoutingID,
		CurrentOperationID: r.CurrentOperationID,
		DueDate:            r.DueDate,
		ReleasedAt:         r.ReleasedAt,
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
	}
}

func runFromModel(m *RunModel) *entities.ProductionRun {
	return &entities.ProductionRun{
		ID:                 m.ID,
		RunNumber:          m.RunNumber,
		ProductID:          m.ProductID,
		QuantityOrdered:    m.QuantityOrdered,
		QuantityCompleted:  m.QuantityCompleted,
		QuantityScrapped:   m.QuantityScrapped,
		Status:             entities.RunStatus(m.Status),
		BOMID:              m.BOMID,
		RoutingID:          m.RoutingID,
		CurrentOperationID: m.CurrentOperationID,
		DueDate:            m.DueDate,
		ReleasedAt:         m.ReleasedAt,
		StartedAt:          m.StartedAt,
		CompletedAt:        m.CompletedAt,
	}
}

func operationToModel(o *entities.Operation) OperationModel {
	return OperationModel{
		ID:                  o.ID,
		RunID:               o.RunID,
		RoutingOperationID:  o.RoutingOperationID,
		Sequence:            o.Sequence,
		OperationCode:       o.OperationCode,
		Name:                o.Name,
		WorkCenterID:        o.WorkCenterID,
		ResourceID:          o.ResourceID,
		Status:              string(o.Status),
		ScheduledStart:      o.ScheduledStart,
		ScheduledEnd:        o.ScheduledEnd,
		ActualStart:         o.ActualStart,
		ActualEnd:           o.ActualEnd,
		PlannedSetupMinutes: o.PlannedSetupMinutes,
		PlannedRunMinutes:   o.PlannedRunMinutes,
		QuantityCompleted:   o.QuantityCompleted,
		QuantityScrapped:    o.QuantityScrapped,
		Notes:               o.Notes,
	}
}

func operationFromModel(m *OperationModel) *entities.Operation {
	return &entities.Operation{
		ID:                  m.ID,
		RunID:               m.RunID,
		RoutingOperationID:  m.RoutingOperationID,
		Sequence:            m.Sequence,
		OperationCode:       m.OperationCode,
		Name:                m.Name,
		WorkCenterID:        m.WorkCenterID,
		ResourceID:          m.ResourceID,
		Status:              entities.OperationStatus(m.Status),
		ScheduledStart:      m.ScheduledStart,
		ScheduledEnd:        m.ScheduledEnd,
		ActualStart:         m.ActualStart,
		ActualEnd:           m.ActualEnd,
		PlannedSetupMinutes: m.PlannedSetupMinutes,
		PlannedRunMinutes:   m.PlannedRunMinutes,
		QuantityCompleted:   m.QuantityCompleted,
		QuantityScrapped:    m.QuantityScrapped,
		Notes:               m.Notes,
	}
}

func operationsFromModels(models []OperationModel) []*entities.Operation {
	ops := make([]*entities.Operation, 0, len(models))
	for i := range models {
		ops = append(ops, operationFromModel(&models[i]))
	}
	return ops
}
