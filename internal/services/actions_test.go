package services

import (
	"reflect"
	"testing"

	domain "github.com/orderfield/ordersync/internal/domain"
)

func stateRef(id string) *domain.ResolvableReference {
	return &domain.ResolvableReference{Reference: domain.Reference{TypeID: "state", ID: id}}
}

func channelRef(id string) *domain.ResolvableReference {
	return &domain.ResolvableReference{Reference: domain.Reference{TypeID: "channel", ID: id}}
}

func int64Ptr(v int64) *int64 { return &v }

func TestBuildUpdateActionsEmptyWhenNothingToDiff(t *testing.T) {
	desired := domain.Order{OrderNumber: "1000"}
	persisted := domain.Order{ID: "order-1", Version: 3, OrderNumber: "1000"}

	actions := BuildUpdateActions(desired, &persisted)
	if len(actions) != 0 {
		t.Fatalf("expected no actions, got %d", len(actions))
	}
}

func TestBuildUpdateActionsSelfDiffIsNoop(t *testing.T) {
	persisted := domain.Order{
		ID:          "order-1",
		Version:     3,
		OrderNumber: "1000",
		LineItems: []domain.LineItem{{
			ID:    "li-1",
			State: []domain.ItemState{{Quantity: 5, State: &domain.Reference{TypeID: "state", ID: "state-a"}}},
		}},
		ReturnInfo: []domain.ReturnInfo{{
			ReturnTrackingID: "track-1",
			ReturnDate:       "2024-05-01T10:00:00.000Z",
			Items:            []domain.ReturnItem{{ID: "ri-1", ShipmentState: "Returned"}},
		}},
		ShippingInfo: &domain.ShippingInfo{
			Deliveries: []domain.Delivery{{
				ID:      "delivery-1",
				Items:   []domain.DeliveryItem{{ID: "li-1", Quantity: 5}},
				Parcels: []domain.Parcel{{ID: "parcel-1"}},
			}},
		},
	}

	desired := persisted.Clone()
	if actions := BuildUpdateActions(desired, &persisted); len(actions) != 0 {
		t.Fatalf("diffing an order against itself must be a no-op, got %d actions", len(actions))
	}
}

func TestBuildUpdateActionsLineItemTransition(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		LineItems: []domain.LineItem{{
			ID: "li-1",
			State: []domain.ItemState{{
				Quantity:             10,
				FromState:            stateRef("state-a"),
				ToState:              stateRef("state-b"),
				ActualTransitionDate: "2024-05-01T10:00:00.000Z",
			}},
		}},
	}
	persisted := domain.Order{ID: "order-1", OrderNumber: "1000"}

	actions := BuildUpdateActions(desired, &persisted)
	want := []domain.UpdateAction{domain.TransitionLineItemState{
		LineItemID:           "li-1",
		Quantity:             10,
		FromState:            domain.Reference{TypeID: "state", ID: "state-a"},
		ToState:              domain.Reference{TypeID: "state", ID: "state-b"},
		ActualTransitionDate: "2024-05-01T10:00:00.000Z",
	}}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("unexpected actions\ngot  %#v\nwant %#v", actions, want)
	}
}

func TestBuildUpdateActionsSkipsIncompleteTransitions(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		LineItems: []domain.LineItem{{
			ID: "li-1",
			State: []domain.ItemState{
				{Quantity: 5, FromState: stateRef("state-a")},
				{Quantity: 5, ToState: stateRef("state-b")},
				{Quantity: 5, FromState: &domain.ResolvableReference{Key: "picking"}, ToState: stateRef("state-b")},
			},
		}},
	}
	persisted := domain.Order{ID: "order-1", OrderNumber: "1000"}

	if actions := BuildUpdateActions(desired, &persisted); len(actions) != 0 {
		t.Fatalf("expected incomplete transitions to be skipped, got %d actions", len(actions))
	}
}

func TestBuildUpdateActionsQuantityGuard(t *testing.T) {
	buildDesired := func(fromStateQty int64) domain.Order {
		return domain.Order{
			OrderNumber: "1000",
			LineItems: []domain.LineItem{{
				ID: "li-1",
				State: []domain.ItemState{{
					Quantity:     100,
					FromState:    stateRef("state-a"),
					ToState:      stateRef("state-b"),
					FromStateQty: int64Ptr(fromStateQty),
				}},
			}},
		}
	}
	persisted := domain.Order{
		ID:          "order-1",
		OrderNumber: "1000",
		LineItems: []domain.LineItem{{
			ID: "li-1",
			State: []domain.ItemState{{
				Quantity: 9000,
				State:    &domain.Reference{TypeID: "state", ID: "state-a"},
			}},
		}},
	}

	if actions := BuildUpdateActions(buildDesired(9000), &persisted); len(actions) != 1 {
		t.Fatalf("expected transition when persisted quantity tallies, got %d actions", len(actions))
	}
	if actions := BuildUpdateActions(buildDesired(7000), &persisted); len(actions) != 0 {
		t.Fatalf("expected transition to be withheld on quantity mismatch, got %d actions", len(actions))
	}
}

func TestBuildUpdateActionsGuardSkippedWithoutExpectedQuantity(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		LineItems: []domain.LineItem{{
			ID: "li-1",
			State: []domain.ItemState{{
				Quantity:  1,
				FromState: stateRef("state-a"),
				ToState:   stateRef("state-b"),
			}},
		}},
	}
	// The persisted order holds no matching state entry at all; without
	// _fromStateQty the transition is emitted regardless.
	persisted := domain.Order{ID: "order-1", OrderNumber: "1000"}

	if actions := BuildUpdateActions(desired, &persisted); len(actions) != 1 {
		t.Fatalf("expected unguarded transition, got %d actions", len(actions))
	}
}

func TestBuildUpdateActionsFirstImportSkipsGuard(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		LineItems: []domain.LineItem{{
			ID: "li-1",
			State: []domain.ItemState{{
				Quantity:     100,
				FromState:    stateRef("state-a"),
				ToState:      stateRef("state-b"),
				FromStateQty: int64Ptr(7000),
			}},
		}},
	}

	if actions := BuildUpdateActions(desired, nil); len(actions) != 1 {
		t.Fatalf("expected transition without a persisted order, got %d actions", len(actions))
	}
}

func TestBuildUpdateActionsCustomLineItemTransition(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		CustomLineItems: []domain.LineItem{{
			ID: "cli-1",
			State: []domain.ItemState{{
				Quantity:  3,
				FromState: stateRef("state-a"),
				ToState:   stateRef("state-b"),
			}},
		}},
	}
	persisted := domain.Order{ID: "order-1", OrderNumber: "1000"}

	actions := BuildUpdateActions(desired, &persisted)
	if len(actions) != 1 {
		t.Fatalf("expected one action, got %d", len(actions))
	}
	action, ok := actions[0].(domain.TransitionCustomLineItemState)
	if !ok {
		t.Fatalf("expected TransitionCustomLineItemState, got %T", actions[0])
	}
	if action.CustomLineItemID != "cli-1" || action.Quantity != 3 {
		t.Fatalf("unexpected action payload: %#v", action)
	}
}

func TestBuildUpdateActionsSyncInfoAlwaysResent(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		SyncInfo: []domain.SyncInfo{{
			Channel:    channelRef("channel-1"),
			SyncedAt:   "2024-05-01T10:00:00.000Z",
			ExternalID: "ext-1",
		}},
	}
	persisted := domain.Order{
		ID:          "order-1",
		OrderNumber: "1000",
		SyncInfo: []domain.SyncInfo{{
			Channel:    channelRef("channel-1"),
			SyncedAt:   "2024-05-01T10:00:00.000Z",
			ExternalID: "ext-1",
		}},
	}

	actions := BuildUpdateActions(desired, &persisted)
	want := []domain.UpdateAction{domain.UpdateSyncInfo{
		Channel:    domain.Reference{TypeID: "channel", ID: "channel-1"},
		SyncedAt:   "2024-05-01T10:00:00.000Z",
		ExternalID: "ext-1",
	}}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("unexpected actions\ngot  %#v\nwant %#v", actions, want)
	}
}

func TestBuildUpdateActionsAddReturnInfo(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		ReturnInfo: []domain.ReturnInfo{{
			ReturnTrackingID: "track-1",
			ReturnDate:       "2024-05-01T10:00:00.000Z",
			Items: []domain.ReturnItem{{
				ID:            "li-1",
				Quantity:      1,
				ShipmentState: "Returned",
			}},
		}},
	}
	persisted := domain.Order{ID: "order-1", OrderNumber: "1000"}

	actions := BuildUpdateActions(desired, &persisted)
	want := []domain.UpdateAction{domain.AddReturnInfo{
		ReturnTrackingID: "track-1",
		ReturnDate:       "2024-05-01T10:00:00.000Z",
		Items: []domain.ReturnItem{{
			ID:            "li-1",
			Quantity:      1,
			ShipmentState: "Returned",
		}},
	}}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("unexpected actions\ngot  %#v\nwant %#v", actions, want)
	}
}

func TestBuildUpdateActionsReturnItemStateChanges(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		ReturnInfo: []domain.ReturnInfo{{
			ReturnTrackingID: "track-1",
			ReturnDate:       "2024-05-01T10:00:00.000Z",
			Items: []domain.ReturnItem{
				{ID: "ri-1", ShipmentState: "BackInStock", PaymentState: "Refunded"},
				{ID: "ri-2", ShipmentState: "Returned"},
			},
		}},
	}
	persisted := domain.Order{
		ID:          "order-1",
		OrderNumber: "1000",
		ReturnInfo: []domain.ReturnInfo{{
			ReturnTrackingID: "track-1",
			ReturnDate:       "2024-05-01T10:00:00.000Z",
			Items: []domain.ReturnItem{
				{ID: "ri-1", ShipmentState: "Returned", PaymentState: "Initial"},
				{ID: "ri-2", ShipmentState: "Returned"},
			},
		}},
	}

	actions := BuildUpdateActions(desired, &persisted)
	want := []domain.UpdateAction{
		domain.SetReturnShipmentState{ReturnItemID: "ri-1", ShipmentState: "BackInStock"},
		domain.SetReturnPaymentState{ReturnItemID: "ri-1", PaymentState: "Refunded"},
	}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("unexpected actions\ngot  %#v\nwant %#v", actions, want)
	}
}

func TestBuildUpdateActionsReturnItemMissingFromPersistedRecord(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		ReturnInfo: []domain.ReturnInfo{{
			ReturnTrackingID: "track-1",
			ReturnDate:       "2024-05-01T10:00:00.000Z",
			Items:            []domain.ReturnItem{{ID: "ri-9", ShipmentState: "Returned"}},
		}},
	}
	persisted := domain.Order{
		ID:          "order-1",
		OrderNumber: "1000",
		ReturnInfo: []domain.ReturnInfo{{
			ReturnTrackingID: "track-1",
			ReturnDate:       "2024-05-01T10:00:00.000Z",
			Items:            []domain.ReturnItem{{ID: "ri-1", ShipmentState: "Returned"}},
		}},
	}

	if actions := BuildUpdateActions(desired, &persisted); len(actions) != 0 {
		t.Fatalf("expected unknown return item to be dropped, got %d actions", len(actions))
	}
}

func TestBuildUpdateActionsAddDelivery(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		ShippingInfo: &domain.ShippingInfo{
			Deliveries: []domain.Delivery{{
				Items: []domain.DeliveryItem{{ID: "li-1", Quantity: 2}},
				Parcels: []domain.Parcel{{
					TrackingData: &domain.TrackingData{TrackingID: "track-1", Carrier: "DHL"},
				}},
			}},
		},
	}
	persisted := domain.Order{ID: "order-1", OrderNumber: "1000"}

	actions := BuildUpdateActions(desired, &persisted)
	want := []domain.UpdateAction{domain.AddDelivery{
		Items: []domain.DeliveryItem{{ID: "li-1", Quantity: 2}},
		Parcels: []domain.Parcel{{
			TrackingData: &domain.TrackingData{TrackingID: "track-1", Carrier: "DHL"},
		}},
	}}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("unexpected actions\ngot  %#v\nwant %#v", actions, want)
	}
}

func TestBuildUpdateActionsAddParcelToExistingDelivery(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		ShippingInfo: &domain.ShippingInfo{
			Deliveries: []domain.Delivery{{
				ID: "delivery-1",
				Parcels: []domain.Parcel{
					{ID: "parcel-1"},
					{
						ID:           "parcel-2",
						TrackingData: &domain.TrackingData{TrackingID: "track-2"},
						Measurements: &domain.ParcelMeasurements{WeightInGram: 300},
					},
				},
			}},
		},
	}
	persisted := domain.Order{
		ID:          "order-1",
		OrderNumber: "1000",
		ShippingInfo: &domain.ShippingInfo{
			Deliveries: []domain.Delivery{{
				ID:      "delivery-1",
				Parcels: []domain.Parcel{{ID: "parcel-1"}},
			}},
		},
	}

	actions := BuildUpdateActions(desired, &persisted)
	want := []domain.UpdateAction{domain.AddParcelToDelivery{
		DeliveryID:   "delivery-1",
		ID:           "parcel-2",
		TrackingData: &domain.TrackingData{TrackingID: "track-2"},
		Measurements: &domain.ParcelMeasurements{WeightInGram: 300},
	}}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("unexpected actions\ngot  %#v\nwant %#v", actions, want)
	}
}

func TestBuildUpdateActionsDeliveryWithoutIDIsAlwaysNew(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		ShippingInfo: &domain.ShippingInfo{
			Deliveries: []domain.Delivery{{
				Items: []domain.DeliveryItem{{ID: "li-1", Quantity: 1}},
			}},
		},
	}
	persisted := domain.Order{
		ID:          "order-1",
		OrderNumber: "1000",
		ShippingInfo: &domain.ShippingInfo{
			Deliveries: []domain.Delivery{{
				Items: []domain.DeliveryItem{{ID: "li-1", Quantity: 1}},
			}},
		},
	}

	actions := BuildUpdateActions(desired, &persisted)
	if len(actions) != 1 {
		t.Fatalf("expected one addDelivery action, got %d", len(actions))
	}
	if _, ok := actions[0].(domain.AddDelivery); !ok {
		t.Fatalf("expected AddDelivery, got %T", actions[0])
	}
}

func TestBuildUpdateActionsFieldOrderIsStable(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		LineItems: []domain.LineItem{{
			ID:    "li-1",
			State: []domain.ItemState{{Quantity: 1, FromState: stateRef("s-a"), ToState: stateRef("s-b")}},
		}},
		SyncInfo: []domain.SyncInfo{{Channel: channelRef("channel-1")}},
		ReturnInfo: []domain.ReturnInfo{{
			ReturnTrackingID: "track-1",
			ReturnDate:       "2024-05-01T10:00:00.000Z",
		}},
		ShippingInfo: &domain.ShippingInfo{
			Deliveries: []domain.Delivery{{Items: []domain.DeliveryItem{{ID: "li-1", Quantity: 1}}}},
		},
	}
	persisted := domain.Order{ID: "order-1", OrderNumber: "1000"}

	wantOrder := []string{
		"transitionLineItemState",
		"updateSyncInfo",
		"addReturnInfo",
		"addDelivery",
	}

	first := BuildUpdateActions(desired, &persisted)
	for run := 0; run < 5; run++ {
		actions := BuildUpdateActions(desired, &persisted)
		if len(actions) != len(wantOrder) {
			t.Fatalf("expected %d actions, got %d", len(wantOrder), len(actions))
		}
		for i, action := range actions {
			if action.ActionName() != wantOrder[i] {
				t.Fatalf("action %d: expected %s, got %s", i, wantOrder[i], action.ActionName())
			}
		}
		if !reflect.DeepEqual(actions, first) {
			t.Fatalf("repeated diff produced different output")
		}
	}
}

func TestBuildUpdateActionsDoesNotMutateInputs(t *testing.T) {
	desired := domain.Order{
		OrderNumber: "1000",
		LineItems: []domain.LineItem{{
			ID: "li-1",
			State: []domain.ItemState{{
				Quantity:     1,
				FromState:    stateRef("s-a"),
				ToState:      stateRef("s-b"),
				FromStateQty: int64Ptr(1),
			}},
		}},
	}
	persisted := domain.Order{
		ID:          "order-1",
		OrderNumber: "1000",
		LineItems: []domain.LineItem{{
			ID:    "li-1",
			State: []domain.ItemState{{Quantity: 1, State: &domain.Reference{TypeID: "state", ID: "s-a"}}},
		}},
	}

	desiredSnapshot := desired.Clone()
	persistedSnapshot := persisted.Clone()

	BuildUpdateActions(desired, &persisted)

	if !reflect.DeepEqual(desired, desiredSnapshot) {
		t.Fatalf("desired order was mutated")
	}
	if !reflect.DeepEqual(persisted, persistedSnapshot) {
		t.Fatalf("persisted order was mutated")
	}
}
