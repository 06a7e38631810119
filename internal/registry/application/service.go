// Package application coordinates deployment, persistence, access control,
// and event publication for the instance registry. All mutations are
// serialized so that identifier allocation and address occupancy stay
// consistent even under concurrent callers.
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/registrar/internal/accesscontrol"
	"github.com/zjrosen/registrar/internal/cachemanager"
	"github.com/zjrosen/registrar/internal/deployer"
	"github.com/zjrosen/registrar/internal/log"
	"github.com/zjrosen/registrar/internal/pubsub"
	"github.com/zjrosen/registrar/internal/registry/domain"
)

// Service is the registry facade. It owns the single mutation lock: every
// create, update, and destroy runs under it, so a failed deployment or a
// failed insert never leaks a partially-registered instance.
type Service struct {
	mu sync.Mutex

	repo   domain.EntryRepository
	dep    deployer.Deployer
	gate   *accesscontrol.Gate
	broker *pubsub.Broker[RegistryEvent]
	tracer trace.Tracer

	metadataCache cachemanager.CacheManager[string, string]
	metadataRead  *cachemanager.ReadThroughCache[string, string, uint64]
	cacheTTL      time.Duration
	skipCache     bool
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithCache replaces the default metadata cache.
func WithCache(cache cachemanager.CacheManager[string, string], ttl time.Duration) Option {
	return func(s *Service) {
		s.metadataCache = cache
		s.cacheTTL = ttl
	}
}

// WithCacheDisabled makes every metadata read go to the repository.
func WithCacheDisabled() Option {
	return func(s *Service) {
		s.skipCache = true
	}
}

// WithTracer replaces the default (global) tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService wires the registry together. The deployer's template and
// identity are fixed for the life of the service.
func NewService(repo domain.EntryRepository, dep deployer.Deployer, gate *accesscontrol.Gate, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		dep:    dep,
		gate:   gate,
		broker: pubsub.NewBroker[RegistryEvent](),
		tracer: otel.Tracer("registrar/registry"),
		metadataCache: cachemanager.NewInMemoryCacheManager[string, string](
			"entry-metadata",
			cachemanager.DefaultExpiration,
			cachemanager.DefaultCleanupInterval,
		),
		cacheTTL: cachemanager.DefaultExpiration,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.metadataRead = cachemanager.NewReadThroughCache[string, string, uint64](
		s.metadataCache,
		s.loadMetadata,
		s.skipCache,
	)

	return s
}

func metadataKey(id uint64) string {
	return fmt.Sprintf("entry:%d:metadata", id)
}

// RestoreOccupancy marks every live entry's address as occupied on the
// deployer. A service built over a durable store must call this before
// serving creations: the local factory's occupancy map is process-scoped,
// and without rehydration a restart would let a previously used salt deploy
// a second live instance at the same address.
func (s *Service) RestoreOccupancy(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "registry.restore_occupancy")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.repo.List(domain.ListFilter{})
	if err != nil {
		return fmt.Errorf("list live entries: %w", err)
	}
	for _, entry := range entries {
		s.dep.Occupy(entry.Address())
	}

	log.Info(log.CatRegistry, "occupancy restored", "live", len(entries))
	return nil
}

// CreateDirect deploys an instance at a nonce-derived address and registers
// it under the next sequential identifier. Metadata may be empty.
func (s *Service) CreateDirect(ctx context.Context, metadataURI string) (*domain.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "registry.create_direct")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	address, err := s.dep.Deploy(ctx)
	if err != nil {
		return nil, fmt.Errorf("deploy instance: %w", err)
	}

	entry := domain.NewEntry(address, metadataURI)
	if err := s.repo.Register(entry); err != nil {
		s.dep.Release(address)
		return nil, fmt.Errorf("register instance: %w", err)
	}

	span.SetAttributes(attribute.Int64("entry.id", int64(entry.ID())))
	log.Info(log.CatRegistry, "instance created", "id", entry.ID(), "address", address.Hex())
	s.broker.Publish(newEvent(EventInstanceCreated, entry.ID(), address, metadataURI))

	return entry, nil
}

// CreateDeterministic deploys an instance at the salt-derived address and
// registers it. Empty metadata is rejected before anything is deployed, and
// a salt whose address is still held by a live instance fails with
// ErrAddressOccupied without consuming an identifier.
func (s *Service) CreateDeterministic(ctx context.Context, salt deployer.Salt, metadataURI string) (*domain.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "registry.create_deterministic")
	defer span.End()

	if metadataURI == "" {
		return nil, fmt.Errorf("%w: metadata must not be empty", domain.ErrInvalidMetadata)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	address, err := s.dep.DeployDeterministic(ctx, salt)
	if err != nil {
		return nil, fmt.Errorf("deploy instance with salt %s: %w", salt.Hex(), err)
	}

	entry := domain.NewEntry(address, metadataURI)
	entry.SetSaltHex(salt.Hex())
	if err := s.repo.Register(entry); err != nil {
		s.dep.Release(address)
		return nil, fmt.Errorf("register instance: %w", err)
	}

	span.SetAttributes(attribute.Int64("entry.id", int64(entry.ID())))
	log.Info(log.CatRegistry, "instance created", "id", entry.ID(), "address", address.Hex(), "salt", salt.Hex())
	s.broker.Publish(newEvent(EventInstanceCreated, entry.ID(), address, metadataURI))

	return entry, nil
}

// PredictAddress returns the address a deterministic creation with the given
// salt would land on. Pure; consults no registry state.
func (s *Service) PredictAddress(salt deployer.Salt) common.Address {
	return s.dep.PredictAddress(salt)
}

func (s *Service) loadMetadata(ctx context.Context, id uint64) (string, error) {
	entry, err := s.repo.FindByID(id)
	if err != nil {
		return "", err
	}
	if !entry.Alive() {
		return "", fmt.Errorf("%w: id %d", domain.ErrEntryDestroyed, id)
	}
	return entry.MetadataURI(), nil
}

// Metadata returns the metadata URI for a live entry. Destroyed entries
// report ErrEntryDestroyed; identifiers never allocated report
// ErrEntryNotFound.
func (s *Service) Metadata(ctx context.Context, id uint64) (string, error) {
	ctx, span := s.tracer.Start(ctx, "registry.metadata")
	defer span.End()

	return s.metadataRead.Get(ctx, metadataKey(id), id, s.cacheTTL)
}

// AddressOf returns the address of an entry. A destroyed entry yields the
// zero address with no error; only a never-allocated identifier fails.
func (s *Service) AddressOf(ctx context.Context, id uint64) (common.Address, error) {
	entry, err := s.repo.FindByID(id)
	if err != nil {
		return common.Address{}, err
	}
	return entry.Address(), nil
}

// Get returns the full entry, tombstoned or live.
func (s *Service) Get(ctx context.Context, id uint64) (*domain.Entry, error) {
	return s.repo.FindByID(id)
}

// List returns entries ordered by identifier.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Entry, error) {
	return s.repo.List(filter)
}

// NextID returns the identifier the next successful creation will receive.
func (s *Service) NextID(ctx context.Context) (uint64, error) {
	return s.repo.NextID()
}

// UpdateMetadata replaces an entry's metadata unconditionally, empty values
// included. Owner only. Liveness is not checked: a tombstoned entry's
// metadata field can be rewritten, though Metadata keeps reporting it
// destroyed.
func (s *Service) UpdateMetadata(ctx context.Context, caller common.Address, id uint64, metadataURI string) error {
	ctx, span := s.tracer.Start(ctx, "registry.update_metadata")
	defer span.End()

	if err := s.gate.Authorize(caller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.repo.FindByID(id)
	if err != nil {
		return err
	}

	entry.SetMetadataURI(metadataURI)
	if err := s.repo.Save(entry); err != nil {
		return fmt.Errorf("save entry %d: %w", id, err)
	}

	if err := s.metadataCache.Delete(ctx, metadataKey(id)); err != nil {
		log.Warn(log.CatCache, "failed to invalidate metadata", "id", id, "error", err)
	}

	span.SetAttributes(attribute.Int64("entry.id", int64(id)))
	log.Info(log.CatRegistry, "metadata updated", "id", id)
	s.broker.Publish(newEvent(EventMetadataUpdated, id, entry.Address(), metadataURI))

	return nil
}

// Destroy tombstones a live entry: its address and metadata are cleared,
// the address becomes reoccupiable, and the identifier stays reserved
// forever. Owner only. Destroying a tombstone reports ErrEntryDestroyed.
func (s *Service) Destroy(ctx context.Context, caller common.Address, id uint64) error {
	ctx, span := s.tracer.Start(ctx, "registry.destroy")
	defer span.End()

	if err := s.gate.Authorize(caller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.repo.FindByID(id)
	if err != nil {
		return err
	}
	if !entry.Alive() {
		return fmt.Errorf("%w: id %d", domain.ErrEntryDestroyed, id)
	}

	address := entry.Address()
	entry.Destroy()
	if err := s.repo.Save(entry); err != nil {
		return fmt.Errorf("save entry %d: %w", id, err)
	}

	s.dep.Release(address)

	if err := s.metadataCache.Delete(ctx, metadataKey(id)); err != nil {
		log.Warn(log.CatCache, "failed to invalidate metadata", "id", id, "error", err)
	}

	span.SetAttributes(attribute.Int64("entry.id", int64(id)))
	log.Info(log.CatRegistry, "instance destroyed", "id", id, "address", address.Hex())
	s.broker.Publish(newEvent(EventInstanceDestroyed, id, common.Address{}, ""))

	return nil
}

// Owner returns the current registry owner.
func (s *Service) Owner() common.Address {
	return s.gate.Owner()
}

// TransferOwnership hands the registry to a new owner. Current owner only.
func (s *Service) TransferOwnership(caller, newOwner common.Address) error {
	if err := s.gate.Transfer(caller, newOwner); err != nil {
		return err
	}
	log.Info(log.CatRegistry, "ownership transferred", "from", caller.Hex(), "to", newOwner.Hex())
	return nil
}

// RenounceOwnership sets the owner to the zero address, after which no
// caller can mutate existing entries.
func (s *Service) RenounceOwnership(caller common.Address) error {
	if err := s.gate.Renounce(caller); err != nil {
		return err
	}
	log.Info(log.CatRegistry, "ownership renounced", "by", caller.Hex())
	return nil
}

// FlushCache drops every cached metadata value. Called when the database
// changes underneath us (another process writing the same file).
func (s *Service) FlushCache(ctx context.Context) error {
	return s.metadataCache.Flush(ctx)
}

// Subscribe returns a channel of registry events. The channel closes when
// ctx is cancelled or the service shuts down.
func (s *Service) Subscribe(ctx context.Context) <-chan pubsub.Event[RegistryEvent] {
	return s.broker.Subscribe(ctx)
}

// Close shuts down the event broker and the underlying repository.
func (s *Service) Close() error {
	s.broker.Close()
	return s.repo.Close()
}
