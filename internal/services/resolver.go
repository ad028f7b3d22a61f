package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/orderfield/ordersync/internal/domain"
	"github.com/orderfield/ordersync/internal/repositories"
)

const (
	stateTypeID   = "state"
	channelTypeID = "channel"

	statesCollection   = "states"
	channelsCollection = "channels"
)

// ErrReferenceNotFound indicates a business key did not resolve to exactly one
// remote object.
var ErrReferenceNotFound = errors.New("resolver: reference not found")

// ReferenceNotFoundError names the key and lookup collection that failed to
// resolve.
type ReferenceNotFoundError struct {
	Key        string
	Collection string
}

// Error implements the error interface.
func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("resolver: no %s found for key %q", e.Collection, e.Key)
}

// Unwrap ties the typed error to the ErrReferenceNotFound sentinel.
func (e *ReferenceNotFoundError) Unwrap() error { return ErrReferenceNotFound }

// ReferenceResolverDeps bundles the lookup collections the resolver queries.
type ReferenceResolverDeps struct {
	States   repositories.StateRepository
	Channels repositories.ChannelRepository
}

// ReferenceResolver turns symbolic business keys into remote references. Full
// references pass through untouched.
type ReferenceResolver struct {
	lookups map[string]resolverLookup
}

type resolverLookup struct {
	collection string
	lookup     repositories.KeyLookup
}

// NewReferenceResolver wires the lookup repositories into a resolver.
func NewReferenceResolver(deps ReferenceResolverDeps) (*ReferenceResolver, error) {
	if deps.States == nil {
		return nil, errors.New("reference resolver: state repository is required")
	}
	if deps.Channels == nil {
		return nil, errors.New("reference resolver: channel repository is required")
	}
	return &ReferenceResolver{
		lookups: map[string]resolverLookup{
			stateTypeID:   {collection: statesCollection, lookup: deps.States},
			channelTypeID: {collection: channelsCollection, lookup: deps.Channels},
		},
	}, nil
}

// Resolve returns the reference for the given value. Values already shaped as
// a reference of the requested type return without a lookup; plain keys are
// queried against the type's collection and must match exactly one object.
func (r *ReferenceResolver) Resolve(ctx context.Context, ref *domain.ResolvableReference, typeID string) (domain.Reference, error) {
	if ref == nil {
		return domain.Reference{}, fmt.Errorf("resolver: nil reference for type %q", typeID)
	}
	if ref.IsResolved() && ref.TypeID == typeID {
		return ref.Reference, nil
	}

	entry, ok := r.lookups[typeID]
	if !ok {
		return domain.Reference{}, fmt.Errorf("resolver: no lookup collection for type %q", typeID)
	}
	if ref.Key == "" {
		return domain.Reference{}, fmt.Errorf("resolver: reference %s is not resolvable as %q", ref, typeID)
	}

	reference, err := entry.lookup.FindByKey(ctx, ref.Key)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Reference{}, &ReferenceNotFoundError{Key: ref.Key, Collection: entry.collection}
		}
		return domain.Reference{}, fmt.Errorf("resolver: lookup %s by key %q: %w", entry.collection, ref.Key, err)
	}
	return reference, nil
}

type resolutionTask struct {
	typeID string
	ref    *domain.ResolvableReference
}

// ResolveOrderReferences resolves every state and channel key of the order and
// returns a resolved copy; the input order is never mutated. Unresolved
// references are looked up concurrently and the first failure rejects the
// whole resolution.
func (r *ReferenceResolver) ResolveOrderReferences(ctx context.Context, order domain.Order) (domain.Order, error) {
	resolved := order.Clone()

	var tasks []resolutionTask
	collectStateTasks := func(items []domain.LineItem) {
		for i := range items {
			for j := range items[i].State {
				state := &items[i].State[j]
				if state.FromState != nil && !state.FromState.IsResolved() {
					tasks = append(tasks, resolutionTask{typeID: stateTypeID, ref: state.FromState})
				}
				if state.ToState != nil && !state.ToState.IsResolved() {
					tasks = append(tasks, resolutionTask{typeID: stateTypeID, ref: state.ToState})
				}
			}
		}
	}
	collectStateTasks(resolved.LineItems)
	collectStateTasks(resolved.CustomLineItems)
	for i := range resolved.SyncInfo {
		channel := resolved.SyncInfo[i].Channel
		if channel != nil && !channel.IsResolved() {
			tasks = append(tasks, resolutionTask{typeID: channelTypeID, ref: channel})
		}
	}

	if len(tasks) == 0 {
		return resolved, nil
	}

	// Each task writes to a distinct reference inside the clone, so the only
	// shared state is the error channel.
	var wg sync.WaitGroup
	errCh := make(chan error, len(tasks))
	for _, task := range tasks {
		wg.Add(1)
		go func(task resolutionTask) {
			defer wg.Done()
			reference, err := r.Resolve(ctx, task.ref, task.typeID)
			if err != nil {
				errCh <- err
				return
			}
			task.ref.Reference = reference
		}(task)
	}
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return domain.Order{}, err
	}
	return resolved, nil
}
