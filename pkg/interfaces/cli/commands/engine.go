package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vsinha/prodplan/pkg/application/services/gate"
	"github.com/vsinha/prodplan/pkg/application/services/lifecycle"
	"github.com/vsinha/prodplan/pkg/application/services/mrp"
	"github.com/vsinha/prodplan/pkg/application/services/scheduling"
	"github.com/vsinha/prodplan/pkg/application/services/shared"
	"github.com/vsinha/prodplan/pkg/domain/apperr"
	"github.com/vsinha/prodplan/pkg/domain/entities"
	"github.com/vsinha/prodplan/pkg/domain/repositories"
	"github.com/vsinha/prodplan/pkg/domain/services"
	"github.com/vsinha/prodplan/pkg/infrastructure/config"
	"github.com/vsinha/prodplan/pkg/infrastructure/events"
	"github.com/vsinha/prodplan/pkg/infrastructure/locking"
	"github.com/vsinha/prodplan/pkg/infrastructure/logging"
	scenario "github.com/vsinha/prodplan/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/prodplan/pkg/infrastructure/repositories/gormstore"
	"github.com/vsinha/prodplan/pkg/infrastructure/repositories/sqlxstore"
	"github.com/vsinha/prodplan/pkg/interfaces/cli/output"
)

type catalogStore interface {
	repositories.ProductRepository
	repositories.BOMRepository
	repositories.RoutingRepository
}

type productionStore interface {
	repositories.RunRepository
	repositories.OperationRepository
	repositories.ResourceRepository
}

// engine is the set of stores and services one command runs against
type engine struct {
	catalog    catalogStore
	inventory  repositories.InventoryRepository
	supply     repositories.SupplyRepository
	production productionStore

	explosion *mrp.EventDrivenExplosionService
	gate      *gate.MaterialGate
	scheduler *scheduling.Scheduler
	lifecycle *lifecycle.Service
	events    *events.InMemoryEventStore

	closers []func() error
}

// openEngine wires services over the scenario directory when one is given,
// otherwise over the configured database
func openEngine(ctx context.Context, cfg *config.Config, opts Config, logger *logging.Logger) (*engine, error) {
	e := &engine{}

	if opts.ScenarioDir != "" {
		ds, err := scenario.NewLoader().LoadDir(opts.ScenarioDir)
		if err != nil {
			return nil, err
		}
		stores, err := ds.IntoMemory(ctx)
		if err != nil {
			return nil, err
		}
		e.catalog = stores.Catalog
		e.inventory = stores.Inventory
		e.supply = stores.Inventory
		e.production = stores.Production
		logger.Debug("scenario loaded", "dir", opts.ScenarioDir, "summary", ds.Summary())
	} else {
		db, err := gormstore.Open(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle: %w", err)
		}
		e.closers = append(e.closers, sqlDB.Close)

		inventory := sqlxstore.NewInventoryRepository(sqlxstore.NewDB(sqlDB, cfg.Database.Driver))
		e.catalog = gormstore.NewCatalogRepository(db)
		e.inventory = inventory
		e.supply = inventory
		e.production = gormstore.NewProductionRepository(db)
	}

	var locker shared.Locker = locking.NewKeyedMutex()
	if cfg.UsesRedisLock() {
		rdb, err := locking.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.closers = append(e.closers, rdb.Close)
		locker = locking.NewRedisLocker(rdb, cfg.Lock, logger)
	}

	table, err := config.LoadStageTable(cfg.Planning.StageTablePath)
	if err != nil {
		e.Close()
		return nil, err
	}
	classifier := services.NewStageClassifier(table)

	e.events = events.NewInMemoryEventStore(logger)
	if opts.Verbose {
		err := e.events.Subscribe(allEventTypes, &events.HandlerFunc{
			Types: allEventTypes,
			Fn: func(ev events.Event) error {
				logger.Info("event", "type", ev.Type(), "stream", ev.StreamID())
				return nil
			},
		})
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
		}
	}

	explosion := mrp.NewExplosionService(mrp.Repositories{
		Products:  e.catalog,
		BOMs:      e.catalog,
		Inventory: e.inventory,
		Supply:    e.supply,
	}, mrp.EngineConfig{
		MaxCacheEntries: cfg.Planning.ExplosionCacheSize,
		MaxDepth:        cfg.Planning.ExplosionMaxDepth,
		Concurrency:     cfg.Planning.NettingConcurrency,
	}, logger)
	e.explosion = mrp.NewEventDrivenExplosionService(explosion, e.events, logger)

	e.gate = gate.NewMaterialGate(classifier, gate.Repositories{
		Runs:       e.production,
		Operations: e.production,
		Products:   e.catalog,
		BOMs:       e.catalog,
		Inventory:  e.inventory,
		Supply:     e.supply,
	}, logger)

	e.scheduler = scheduling.NewScheduler(scheduling.Repositories{
		Runs:       e.production,
		Operations: e.production,
		Resources:  e.production,
	}, locker, e.events, logger)

	e.lifecycle = lifecycle.NewService(lifecycle.Repositories{
		Runs:       e.production,
		Operations: e.production,
		BOMs:       e.catalog,
		Routings:   e.catalog,
	}, e.gate, e.scheduler, locker, e.events, lifecycle.Config{
		AllowDestructiveRegenerate: cfg.Planning.AllowDestructiveRegenerate,
	}, logger)

	return e, nil
}

var allEventTypes = []string{
	events.RequirementsExplodedEvent,
	events.ShortageIdentifiedEvent,
	events.RunReleasedEvent,
	events.OperationsGeneratedEvent,
	events.OperationScheduledEvent,
	events.OperationStartedEvent,
	events.OperationCompletedEvent,
	events.OperationSkippedEvent,
}

// Close waits for event handlers and releases connections
func (e *engine) Close() {
	if e.events != nil {
		e.events.Wait()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
	e.closers = nil
}

// parseRef returns the UUID in ref, if it is one
func parseRef(ref string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(ref))
	return id, err == nil
}

func (e *engine) product(ctx context.Context, ref string) (*entities.Product, error) {
	if id, ok := parseRef(ref); ok {
		return e.catalog.GetProduct(ctx, id)
	}
	return e.catalog.GetProductBySKU(ctx, ref)
}

func (e *engine) run(ctx context.Context, ref string) (*entities.ProductionRun, error) {
	if ref == "" {
		return nil, apperr.Invalid("run", "is required")
	}
	if id, ok := parseRef(ref); ok {
		return e.production.GetRun(ctx, id)
	}
	return e.production.GetRunByNumber(ctx, ref)
}

func (e *engine) resource(ctx context.Context, ref string) (*entities.Resource, error) {
	if ref == "" {
		return nil, apperr.Invalid("resource", "is required")
	}
	if id, ok := parseRef(ref); ok {
		return e.production.GetResource(ctx, id)
	}
	return e.production.GetResourceByCode(ctx, ref)
}

// operation finds a run's operation by ID, sequence number or operation code.
// A code shared by several steps resolves to the first non-terminal one.
func (e *engine) operation(ctx context.Context, run *entities.ProductionRun, ref string) (*entities.Operation, error) {
	if ref == "" {
		return nil, apperr.Invalid("operation", "is required")
	}
	if id, ok := parseRef(ref); ok {
		return e.production.GetOperation(ctx, run.ID, id)
	}

	ops, err := e.production.ListOperations(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if seq, err := strconv.Atoi(ref); err == nil {
		for _, op := range ops {
			if op.Sequence == seq {
				return op, nil
			}
		}
		return nil, &apperr.NotFoundError{Entity: "operation", ID: ref}
	}

	var match *entities.Operation
	for _, op := range ops {
		if !strings.EqualFold(op.OperationCode, ref) {
			continue
		}
		if !op.Status.IsTerminal() {
			return op, nil
		}
		if match == nil {
			match = op
		}
	}
	if match == nil {
		return nil, &apperr.NotFoundError{Entity: "operation", ID: ref}
	}
	return match, nil
}

// labels maps run and resource IDs to their codes for reports
func (e *engine) labels(ctx context.Context, runs ...*entities.ProductionRun) (output.Labels, error) {
	labels := output.Labels{
		Runs:      make(map[uuid.UUID]string),
		Resources: make(map[uuid.UUID]string),
	}
	for _, run := range runs {
		labels.Runs[run.ID] = run.RunNumber
	}
	resources, err := e.production.ListResources(ctx)
	if err != nil {
		return labels, err
	}
	for _, res := range resources {
		labels.Resources[res.ID] = res.Code
	}
	return labels, nil
}
