// Package store holds loaded tables in memory and answers filtered,
// aggregated queries over them.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-scoss/core/query"
	"github.com/asaidimu/go-scoss/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// hub is the event bus and subscription registry shared by a table and its clones.
type hub struct {
	bus           *events.TypedEventBus[TableEvent]
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

// Table is an ordered, immutable set of records plus a mutable set of active
// filters. Filters never modify records; they only narrow the views a table
// produces.
type Table struct {
	name      string
	schema    *schema.SchemaDefinition
	records   []schema.Document
	processor *query.DataProcessor
	logger    *zap.Logger
	hub       *hub

	mu      sync.RWMutex
	filters []query.Filter
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the table's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithProcessor sets the processor used to evaluate filters and aggregations.
func WithProcessor(p *query.DataProcessor) Option {
	return func(t *Table) {
		if p != nil {
			t.processor = p
		}
	}
}

// NewTable validates records against sc and returns a table holding them.
// Every record must carry exactly the schema's columns; a violation returns
// a *SchemaError wrapping ErrSchemaMismatch. Number-typed columns that do not
// parse are logged as warnings and later count as zero.
func NewTable(name string, sc *schema.SchemaDefinition, records []schema.Document, opts ...Option) (*Table, error) {
	if sc == nil {
		return nil, fmt.Errorf("table %s: schema is required", name)
	}
	if name == "" {
		name = sc.Name
	}

	t := &Table{
		name:    name,
		schema:  sc,
		records: append([]schema.Document(nil), records...),
		logger:  zap.NewNop(),
		filters: []query.Filter{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.processor == nil {
		t.processor = query.NewDataProcessor(t.logger)
	}

	validator := schema.NewValidator(sc, query.ParseNumber)
	valid, issues := validator.ValidateAll(t.records, false)
	if !valid {
		return nil, &SchemaError{Table: name, Issues: issues}
	}
	for _, issue := range issues {
		t.logger.Warn("Record value issue", zap.String("table", name), zap.String("path", issue.Path), zap.String("code", issue.Code), zap.String("message", issue.Message))
	}

	bus, err := events.NewTypedEventBus[TableEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}
	t.hub = &hub{bus: bus, subscriptions: map[string]*SubscriptionInfo{}}

	t.logger.Debug("Table loaded", zap.String("table", name), zap.Int("records", len(t.records)))
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Schema returns the table schema.
func (t *Table) Schema() *schema.SchemaDefinition { return t.schema }

// Len returns the number of records regardless of filters.
func (t *Table) Len() int { return len(t.records) }

// AddFilter activates an exact-match filter. The field must be a column of
// the table.
func (t *Table) AddFilter(filter query.Filter) error {
	if filter.Type == "" {
		filter.Type = query.FilterTypeExact
	}
	if err := query.ValidateFilters(t.schema, []query.Filter{filter}); err != nil {
		return fmt.Errorf("table %s: %w", t.name, err)
	}

	t.mu.Lock()
	t.filters = append(t.filters, filter)
	t.mu.Unlock()

	t.logger.Debug("Filter added", zap.String("table", t.name), zap.String("field", filter.Field), zap.Any("value", filter.Value))
	t.emitEvent(createEvent(FilterAdd, "filter", t.name, filter, nil, nil, time.Time{}))
	return nil
}

// Filters returns a copy of the active filters.
func (t *Table) Filters() []query.Filter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]query.Filter(nil), t.filters...)
}

// ClearFilters removes all active filters.
func (t *Table) ClearFilters() {
	t.mu.Lock()
	t.filters = []query.Filter{}
	t.mu.Unlock()
	t.emitEvent(createEvent(FilterClear, "filter", t.name, nil, nil, nil, time.Time{}))
}

// Clone returns an independent handle on the same records with a copy of the
// active filters. Clones share the event bus and subscriptions.
func (t *Table) Clone() *Table {
	return &Table{
		name:      t.name,
		schema:    t.schema,
		records:   t.records,
		processor: t.processor,
		logger:    t.logger,
		hub:       t.hub,
		filters:   t.Filters(),
	}
}

// View returns the records passing every active filter.
func (t *Table) View() (*View, error) {
	return t.view(t.Filters())
}

// All returns a view of every record, ignoring the active filters.
func (t *Table) All() *View {
	return &View{rows: t.records}
}

// Apply returns the view of the active filters plus filter, without
// activating it on the table.
func (t *Table) Apply(filter query.Filter) (*View, error) {
	if filter.Type == "" {
		filter.Type = query.FilterTypeExact
	}
	if err := query.ValidateFilters(t.schema, []query.Filter{filter}); err != nil {
		return nil, fmt.Errorf("table %s: %w", t.name, err)
	}
	return t.view(append(t.Filters(), filter))
}

func (t *Table) view(filters []query.Filter) (*View, error) {
	rows, err := t.processor.FilterRows(t.records, query.AllOf(filters...))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.name, err)
	}
	return &View{rows: rows}, nil
}

// Aggregate evaluates aggs over the current view.
func (t *Table) Aggregate(aggs []query.AggregationConfiguration) (query.AggregationResults, error) {
	startTime := time.Now()
	t.emitEvent(createEvent(AggregateStart, "aggregate", t.name, aggs, nil, nil, startTime))

	results, err := t.aggregate(aggs)
	if err != nil {
		errStr := err.Error()
		t.emitEvent(createEvent(AggregateFailed, "aggregate", t.name, aggs, nil, &errStr, startTime))
		return nil, err
	}

	t.emitEvent(createEvent(AggregateSuccess, "aggregate", t.name, aggs, results, nil, startTime))
	return results, nil
}

func (t *Table) aggregate(aggs []query.AggregationConfiguration) (query.AggregationResults, error) {
	if err := query.ValidateAggregations(t.schema, aggs); err != nil {
		return nil, fmt.Errorf("table %s: %w", t.name, err)
	}
	view, err := t.View()
	if err != nil {
		return nil, err
	}
	return t.processor.Aggregate(view.rows, aggs)
}

// AggregateMap is Aggregate keyed by aggregation name.
func (t *Table) AggregateMap(aggs []query.AggregationConfiguration) (map[string]query.AggregationResult, error) {
	results, err := t.Aggregate(aggs)
	if err != nil {
		return nil, err
	}
	return results.ByName(), nil
}

func (t *Table) emitEvent(event TableEvent) {
	if t.hub != nil && t.hub.bus != nil {
		t.hub.bus.Emit(string(event.Type), event)
	}
}

// RegisterSubscription registers a callback for a table event. It returns a
// unique ID that can be used to unregister the subscription later.
func (t *Table) RegisterSubscription(options RegisterSubscriptionOptions) string {
	t.hub.subMu.Lock()
	defer t.hub.subMu.Unlock()

	unsubscribe := t.hub.bus.Subscribe(string(options.Event), func(ctx context.Context, event TableEvent) error {
		return options.Callback(ctx, event)
	})
	id := uuid.New().String()

	t.hub.subscriptions[id] = &SubscriptionInfo{
		Id:          &id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: unsubscribe,
	}
	t.logger.Info("Subscription registered", zap.String("table", t.name), zap.String("event", string(options.Event)), zap.String("id", id))
	return id
}

// UnregisterSubscription removes a subscription by its ID.
func (t *Table) UnregisterSubscription(id string) {
	t.hub.subMu.Lock()
	defer t.hub.subMu.Unlock()

	if info, ok := t.hub.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(t.hub.subscriptions, id)
	}
}

// Subscriptions returns all currently active subscriptions.
func (t *Table) Subscriptions() []SubscriptionInfo {
	t.hub.subMu.RLock()
	defer t.hub.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(t.hub.subscriptions))
	for _, sub := range t.hub.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}
