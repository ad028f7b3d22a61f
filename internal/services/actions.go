package services

import (
	domain "github.com/orderfield/ordersync/internal/domain"
)

// orderDiffer computes update actions for one top-level order field by
// comparing the desired order against the persisted one. Differs are pure:
// they never touch their inputs and identical inputs yield identical output.
// A nil persisted order means first-import mode; idempotency guards that need
// the persisted record are skipped then.
type orderDiffer struct {
	field   string
	present func(domain.Order) bool
	diff    func(desired domain.Order, persisted *domain.Order) []domain.UpdateAction
}

// orderDiffers is the closed registry of diffable fields, in the fixed order
// actions are emitted. Fields the registry does not know are ignored by
// construction.
var orderDiffers = []orderDiffer{
	{
		field:   "lineItems",
		present: func(o domain.Order) bool { return o.LineItems != nil },
		diff:    lineItemStateActions,
	},
	{
		field:   "customLineItems",
		present: func(o domain.Order) bool { return o.CustomLineItems != nil },
		diff:    customLineItemStateActions,
	},
	{
		field:   "syncInfo",
		present: func(o domain.Order) bool { return o.SyncInfo != nil },
		diff:    syncInfoActions,
	},
	{
		field:   "returnInfo",
		present: func(o domain.Order) bool { return o.ReturnInfo != nil },
		diff:    returnInfoActions,
	},
	{
		field:   "shippingInfo",
		present: func(o domain.Order) bool { return o.ShippingInfo != nil },
		diff:    shippingInfoActions,
	},
}

// BuildUpdateActions aggregates the actions of every registered differ whose
// field is present on the desired order. An empty result is the caller's
// signal that the persisted order already matches the desired state.
func BuildUpdateActions(desired domain.Order, persisted *domain.Order) []domain.UpdateAction {
	var actions []domain.UpdateAction
	for _, differ := range orderDiffers {
		if !differ.present(desired) {
			continue
		}
		actions = append(actions, differ.diff(desired, persisted)...)
	}
	return actions
}

func lineItemStateActions(desired domain.Order, persisted *domain.Order) []domain.UpdateAction {
	var persistedItems []domain.LineItem
	if persisted != nil {
		persistedItems = persisted.LineItems
	}
	return transitionActions(desired.LineItems, persistedItems, persisted != nil,
		func(itemID string, state domain.ItemState) domain.UpdateAction {
			return domain.TransitionLineItemState{
				LineItemID:           itemID,
				Quantity:             state.Quantity,
				FromState:            state.FromState.Reference,
				ToState:              state.ToState.Reference,
				ActualTransitionDate: state.ActualTransitionDate,
			}
		})
}

func customLineItemStateActions(desired domain.Order, persisted *domain.Order) []domain.UpdateAction {
	var persistedItems []domain.LineItem
	if persisted != nil {
		persistedItems = persisted.CustomLineItems
	}
	return transitionActions(desired.CustomLineItems, persistedItems, persisted != nil,
		func(itemID string, state domain.ItemState) domain.UpdateAction {
			return domain.TransitionCustomLineItemState{
				CustomLineItemID:     itemID,
				Quantity:             state.Quantity,
				FromState:            state.FromState.Reference,
				ToState:              state.ToState.Reference,
				ActualTransitionDate: state.ActualTransitionDate,
			}
		})
}

// transitionActions emits one transition per state entry that names both
// endpoints and passes the quantity-tally guard. Entries without both
// endpoints, and items without state entries, contribute nothing.
func transitionActions(
	items []domain.LineItem,
	persistedItems []domain.LineItem,
	guarded bool,
	build func(itemID string, state domain.ItemState) domain.UpdateAction,
) []domain.UpdateAction {
	var actions []domain.UpdateAction
	for _, item := range items {
		for _, state := range item.State {
			if !state.FromState.IsResolved() || !state.ToState.IsResolved() {
				continue
			}
			if guarded && state.FromStateQty != nil &&
				!stateQuantityTallies(persistedItems, state.FromState.ID, *state.FromStateQty) {
				continue
			}
			actions = append(actions, build(item.ID, state))
		}
	}
	return actions
}

// stateQuantityTallies reports whether some persisted item still holds
// expectedQty in the given state. It guards transitions against re-applying a
// delta the persisted order has already absorbed.
func stateQuantityTallies(items []domain.LineItem, fromStateID string, expectedQty int64) bool {
	for _, item := range items {
		for _, state := range item.State {
			if state.State != nil && state.State.ID == fromStateID && state.Quantity == expectedQty {
				return true
			}
		}
	}
	return false
}

// syncInfoActions resubmits every desired sync entry unconditionally. Sync
// markers are not diffed against the persisted order; every run re-sends all
// of them.
func syncInfoActions(desired domain.Order, _ *domain.Order) []domain.UpdateAction {
	var actions []domain.UpdateAction
	for _, info := range desired.SyncInfo {
		action := domain.UpdateSyncInfo{
			SyncedAt:   info.SyncedAt,
			ExternalID: info.ExternalID,
		}
		if info.Channel != nil {
			action.Channel = info.Channel.Reference
		}
		actions = append(actions, action)
	}
	return actions
}

func returnInfoActions(desired domain.Order, persisted *domain.Order) []domain.UpdateAction {
	var persistedInfos []domain.ReturnInfo
	if persisted != nil {
		persistedInfos = persisted.ReturnInfo
	}

	var actions []domain.UpdateAction
	for _, info := range desired.ReturnInfo {
		match := findReturnInfo(persistedInfos, info.ReturnTrackingID, info.ReturnDate)
		if match == nil {
			actions = append(actions, domain.AddReturnInfo{
				ReturnTrackingID: info.ReturnTrackingID,
				ReturnDate:       info.ReturnDate,
				Items:            info.Items,
			})
			continue
		}
		for _, item := range info.Items {
			existing := findReturnItem(match.Items, item.ID)
			if existing == nil {
				// Items absent from an already persisted return record are
				// only ever added through a wholly new record.
				continue
			}
			if item.ShipmentState != "" && item.ShipmentState != existing.ShipmentState {
				actions = append(actions, domain.SetReturnShipmentState{
					ReturnItemID:  item.ID,
					ShipmentState: item.ShipmentState,
				})
			}
			if item.PaymentState != "" && item.PaymentState != existing.PaymentState {
				actions = append(actions, domain.SetReturnPaymentState{
					ReturnItemID: item.ID,
					PaymentState: item.PaymentState,
				})
			}
		}
	}
	return actions
}

func findReturnInfo(infos []domain.ReturnInfo, trackingID, returnDate string) *domain.ReturnInfo {
	for i := range infos {
		if infos[i].ReturnTrackingID == trackingID && infos[i].ReturnDate == returnDate {
			return &infos[i]
		}
	}
	return nil
}

func findReturnItem(items []domain.ReturnItem, id string) *domain.ReturnItem {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func shippingInfoActions(desired domain.Order, persisted *domain.Order) []domain.UpdateAction {
	var desiredDeliveries, persistedDeliveries []domain.Delivery
	if desired.ShippingInfo != nil {
		desiredDeliveries = desired.ShippingInfo.Deliveries
	}
	if persisted != nil && persisted.ShippingInfo != nil {
		persistedDeliveries = persisted.ShippingInfo.Deliveries
	}

	var actions []domain.UpdateAction
	for _, delivery := range desiredDeliveries {
		match := findDelivery(persistedDeliveries, delivery.ID)
		if match == nil {
			actions = append(actions, domain.AddDelivery{
				Items:   delivery.Items,
				Parcels: delivery.Parcels,
			})
			continue
		}
		for _, parcel := range delivery.Parcels {
			if hasParcel(match.Parcels, parcel.ID) {
				continue
			}
			actions = append(actions, domain.AddParcelToDelivery{
				DeliveryID:   match.ID,
				ID:           parcel.ID,
				TrackingData: parcel.TrackingData,
				Measurements: parcel.Measurements,
				Items:        parcel.Items,
			})
		}
	}
	return actions
}

func findDelivery(deliveries []domain.Delivery, id string) *domain.Delivery {
	if id == "" {
		return nil
	}
	for i := range deliveries {
		if deliveries[i].ID == id {
			return &deliveries[i]
		}
	}
	return nil
}

func hasParcel(parcels []domain.Parcel, id string) bool {
	if id == "" {
		return false
	}
	for _, parcel := range parcels {
		if parcel.ID == id {
			return true
		}
	}
	return false
}
