package domain

import "encoding/json"

// UpdateAction is one atomic change submitted to the remote order endpoint.
// Actions marshal to a JSON object whose first member is the "action"
// discriminator, matching the remote wire format.
type UpdateAction interface {
	ActionName() string
}

// TransitionLineItemState moves quantity of a line item from one workflow
// state to another.
type TransitionLineItemState struct {
	LineItemID           string    `json:"lineItemId"`
	Quantity             int64     `json:"quantity"`
	FromState            Reference `json:"fromState"`
	ToState              Reference `json:"toState"`
	ActualTransitionDate string    `json:"actualTransitionDate,omitempty"`
}

// ActionName implements UpdateAction.
func (TransitionLineItemState) ActionName() string { return "transitionLineItemState" }

// MarshalJSON implements json.Marshaler.
func (a TransitionLineItemState) MarshalJSON() ([]byte, error) {
	type payload TransitionLineItemState
	return marshalAction(a.ActionName(), payload(a))
}

// TransitionCustomLineItemState moves quantity of a custom line item from one
// workflow state to another.
type TransitionCustomLineItemState struct {
	CustomLineItemID     string    `json:"customLineItemId"`
	Quantity             int64     `json:"quantity"`
	FromState            Reference `json:"fromState"`
	ToState              Reference `json:"toState"`
	ActualTransitionDate string    `json:"actualTransitionDate,omitempty"`
}

// ActionName implements UpdateAction.
func (TransitionCustomLineItemState) ActionName() string { return "transitionCustomLineItemState" }

// MarshalJSON implements json.Marshaler.
func (a TransitionCustomLineItemState) MarshalJSON() ([]byte, error) {
	type payload TransitionCustomLineItemState
	return marshalAction(a.ActionName(), payload(a))
}

// UpdateSyncInfo records that the order was synchronised with an external
// channel.
type UpdateSyncInfo struct {
	Channel    Reference `json:"channel"`
	SyncedAt   string    `json:"syncedAt,omitempty"`
	ExternalID string    `json:"externalId,omitempty"`
}

// ActionName implements UpdateAction.
func (UpdateSyncInfo) ActionName() string { return "updateSyncInfo" }

// MarshalJSON implements json.Marshaler.
func (a UpdateSyncInfo) MarshalJSON() ([]byte, error) {
	type payload UpdateSyncInfo
	return marshalAction(a.ActionName(), payload(a))
}

// AddReturnInfo appends a whole new return-info record including its items.
type AddReturnInfo struct {
	ReturnTrackingID string       `json:"returnTrackingId,omitempty"`
	ReturnDate       string       `json:"returnDate,omitempty"`
	Items            []ReturnItem `json:"items"`
}

// ActionName implements UpdateAction.
func (AddReturnInfo) ActionName() string { return "addReturnInfo" }

// MarshalJSON implements json.Marshaler.
func (a AddReturnInfo) MarshalJSON() ([]byte, error) {
	type payload AddReturnInfo
	return marshalAction(a.ActionName(), payload(a))
}

// SetReturnShipmentState updates the shipment state of a single return item.
type SetReturnShipmentState struct {
	ReturnItemID  string `json:"returnItemId"`
	ShipmentState string `json:"shipmentState"`
}

// ActionName implements UpdateAction.
func (SetReturnShipmentState) ActionName() string { return "setReturnShipmentState" }

// MarshalJSON implements json.Marshaler.
func (a SetReturnShipmentState) MarshalJSON() ([]byte, error) {
	type payload SetReturnShipmentState
	return marshalAction(a.ActionName(), payload(a))
}

// SetReturnPaymentState updates the payment state of a single return item.
type SetReturnPaymentState struct {
	ReturnItemID string `json:"returnItemId"`
	PaymentState string `json:"paymentState"`
}

// ActionName implements UpdateAction.
func (SetReturnPaymentState) ActionName() string { return "setReturnPaymentState" }

// MarshalJSON implements json.Marshaler.
func (a SetReturnPaymentState) MarshalJSON() ([]byte, error) {
	type payload SetReturnPaymentState
	return marshalAction(a.ActionName(), payload(a))
}

// AddDelivery creates a new delivery with its items and parcels.
type AddDelivery struct {
	Items   []DeliveryItem `json:"items,omitempty"`
	Parcels []Parcel       `json:"parcels,omitempty"`
}

// ActionName implements UpdateAction.
func (AddDelivery) ActionName() string { return "addDelivery" }

// MarshalJSON implements json.Marshaler.
func (a AddDelivery) MarshalJSON() ([]byte, error) {
	type payload AddDelivery
	return marshalAction(a.ActionName(), payload(a))
}

// AddParcelToDelivery attaches a new parcel to an existing delivery. The
// parcel payload is forwarded as given.
type AddParcelToDelivery struct {
	DeliveryID   string              `json:"deliveryId"`
	ID           string              `json:"id,omitempty"`
	TrackingData *TrackingData       `json:"trackingData,omitempty"`
	Measurements *ParcelMeasurements `json:"measurements,omitempty"`
	Items        []DeliveryItem      `json:"items,omitempty"`
}

// ActionName implements UpdateAction.
func (AddParcelToDelivery) ActionName() string { return "addParcelToDelivery" }

// MarshalJSON implements json.Marshaler.
func (a AddParcelToDelivery) MarshalJSON() ([]byte, error) {
	type payload AddParcelToDelivery
	return marshalAction(a.ActionName(), payload(a))
}

// marshalAction prefixes the encoded payload with the action discriminator so
// the discriminator is always the first member of the emitted object.
func marshalAction(name string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	prefix, err := json.Marshal(name)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+len(prefix)+11)
	out = append(out, `{"action":`...)
	out = append(out, prefix...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
		return out, nil
	}
	out = append(out, '}')
	return out, nil
}
