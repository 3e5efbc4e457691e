package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/venue-scheduler/internal/application"
)

// ServiceFactory assists tests with constructing application services over a
// Harness using deterministic identifiers and clocks.
type ServiceFactory struct {
	Harness     *Harness
	IDGenerator *IDGenerator
	Audit       *AuditRecorder
	Publisher   *PublisherRecorder
	Location    *time.Location
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory over harness with recording
// audit and publisher collaborators.
func NewServiceFactory(harness *Harness, opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Harness:     harness,
		IDGenerator: NewIDGenerator("conflict"),
		Audit:       &AuditRecorder{},
		Publisher:   &PublisherRecorder{},
		Location:    time.UTC,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("conflict")
	}
	return factory
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLogger sets the logger handed to every service.
func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Logger = logger
	}
}

// WithLocation sets the zone used for the "today" fallback of conflict codes.
func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Location = loc
	}
}

// Availability builds an availability service reading the harness events.
func (f *ServiceFactory) Availability() *application.AvailabilityService {
	return application.NewAvailabilityServiceWithLogger(f.Harness.Repos.Events, f.Logger)
}

// TechCapacity builds a technical capacity service over the harness.
func (f *ServiceFactory) TechCapacity() *application.TechCapacityService {
	return application.NewTechCapacityServiceWithLogger(f.Harness.Repos.Events, f.Harness.Repos.TechCapacity, f.Logger)
}

// PriorityConflicts builds the conflict workflow service. A nil locker leaves
// rebooking unserialised.
func (f *ServiceFactory) PriorityConflicts(locker application.Locker) *application.PriorityConflictService {
	return application.NewPriorityConflictService(application.PriorityConflictDeps{
		Transactor:   f.Harness.Store,
		Repositories: f.Harness.Repos,
		Audit:        f.Audit,
		Publisher:    f.Publisher,
		Locker:       locker,
		IDGenerator:  f.IDGenerator.NextFunc(),
		Now:          f.Harness.Clock.NowFunc(),
		Location:     f.Location,
		Logger:       f.Logger,
	})
}

// AuditRecorder is an application.AuditSink that keeps every record in memory.
type AuditRecorder struct {
	mu      sync.Mutex
	Err     error
	Changes []application.ScheduleChange
	Spaces  []application.SpaceConflictRejection
	Tech    []application.TechCapacityRejection
}

// RecordScheduleChange records change and returns Err.
func (a *AuditRecorder) RecordScheduleChange(_ context.Context, change application.ScheduleChange) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Changes = append(a.Changes, change)
	return a.Err
}

// RecordSpaceConflict records rejection and returns Err.
func (a *AuditRecorder) RecordSpaceConflict(_ context.Context, rejection application.SpaceConflictRejection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Spaces = append(a.Spaces, rejection)
	return a.Err
}

// RecordTechCapacityReject records rejection and returns Err.
func (a *AuditRecorder) RecordTechCapacityReject(_ context.Context, rejection application.TechCapacityRejection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Tech = append(a.Tech, rejection)
	return a.Err
}

// PublisherRecorder is an application.ConflictPublisher that keeps every event.
type PublisherRecorder struct {
	mu     sync.Mutex
	Events []application.ConflictCreated
}

// PublishConflictCreated records event.
func (p *PublisherRecorder) PublishConflictCreated(_ context.Context, event application.ConflictCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	return nil
}

// Codes returns the codes of the published conflicts in publish order.
func (p *PublisherRecorder) Codes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	codes := make([]string, 0, len(p.Events))
	for _, event := range p.Events {
		codes = append(codes, event.Conflict.Code)
	}
	return codes
}
