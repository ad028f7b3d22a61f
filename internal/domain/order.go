package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Reference is an opaque pointer to another remote resource, e.g. a state or a
// channel. The remote API returns and accepts references in this shape.
type Reference struct {
	TypeID string `json:"typeId"`
	ID     string `json:"id"`
}

// IsZero reports whether the reference carries no target.
func (r Reference) IsZero() bool {
	return r.TypeID == "" && r.ID == ""
}

// ResolvableReference is a reference that may arrive as a plain business key
// instead of a {typeId, id} object. Keys must be resolved against the remote
// lookup collection before the order can be diffed.
type ResolvableReference struct {
	Reference
	Key string `json:"-"`
}

// IsResolved reports whether the reference already points at a remote id.
func (r *ResolvableReference) IsResolved() bool {
	return r != nil && r.TypeID != "" && r.ID != ""
}

// UnmarshalJSON accepts either a JSON string (business key) or a full
// reference object.
func (r *ResolvableReference) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Key)
	}
	return json.Unmarshal(data, &r.Reference)
}

// MarshalJSON emits the resolved reference object, or the raw key when the
// reference has not been resolved yet.
func (r ResolvableReference) MarshalJSON() ([]byte, error) {
	if r.TypeID != "" || r.ID != "" {
		return json.Marshal(r.Reference)
	}
	return json.Marshal(r.Key)
}

// String renders the reference for error messages and log fields.
func (r *ResolvableReference) String() string {
	if r == nil {
		return "<nil>"
	}
	if r.IsResolved() {
		return fmt.Sprintf("%s:%s", r.TypeID, r.ID)
	}
	return r.Key
}

// Order is the engine's view of an order record. Desired orders are decoded
// from upstream input; persisted orders are fetched from the remote system.
// Fields the diff engine does not inspect are intentionally absent and are
// dropped on decode.
type Order struct {
	ID              string        `json:"id,omitempty"`
	Version         int64         `json:"version,omitempty"`
	OrderNumber     string        `json:"orderNumber" validate:"required"`
	LineItems       []LineItem    `json:"lineItems,omitempty" validate:"dive"`
	CustomLineItems []LineItem    `json:"customLineItems,omitempty" validate:"dive"`
	ReturnInfo      []ReturnInfo  `json:"returnInfo,omitempty" validate:"dive"`
	SyncInfo        []SyncInfo    `json:"syncInfo,omitempty" validate:"dive"`
	ShippingInfo    *ShippingInfo `json:"shippingInfo,omitempty"`
}

// LineItem covers both regular and custom line items; the engine only needs
// the remote-assigned id and the ordered state entries.
type LineItem struct {
	ID    string      `json:"id" validate:"required"`
	State []ItemState `json:"state,omitempty" validate:"dive"`
}

// ItemState is a single entry of a line item's state array. Persisted entries
// carry {quantity, state}; desired transition entries carry
// {quantity, fromState, toState} plus optional fields. FromStateQty, when
// present, is the quantity expected to still sit in fromState on the persisted
// side and guards the transition against duplicate submission.
type ItemState struct {
	Quantity             int64                `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	State                *Reference           `json:"state,omitempty"`
	FromState            *ResolvableReference `json:"fromState,omitempty"`
	ToState              *ResolvableReference `json:"toState,omitempty"`
	ActualTransitionDate string               `json:"actualTransitionDate,omitempty"`
	FromStateQty         *int64               `json:"_fromStateQty,omitempty"`
}

// SyncInfo records a synchronisation marker for an external channel. Entries
// have no identity beyond their contents.
type SyncInfo struct {
	Channel    *ResolvableReference `json:"channel" validate:"required"`
	SyncedAt   string               `json:"syncedAt,omitempty"`
	ExternalID string               `json:"externalId,omitempty"`
}

// ReturnInfo groups returned items under a composite business key of
// (returnTrackingId, returnDate).
type ReturnInfo struct {
	ReturnTrackingID string       `json:"returnTrackingId,omitempty"`
	ReturnDate       string       `json:"returnDate,omitempty"`
	Items            []ReturnItem `json:"items,omitempty" validate:"dive"`
}

// ReturnItem tracks the shipment and payment progress of one returned line
// item. ID is the remote line item id.
type ReturnItem struct {
	ID             string `json:"id" validate:"required"`
	Quantity       int64  `json:"quantity,omitempty"`
	ShipmentState  string `json:"shipmentState,omitempty"`
	PaymentState   string `json:"paymentState,omitempty"`
	Comment        string `json:"comment,omitempty"`
	LastModifiedAt string `json:"lastModifiedAt,omitempty"`
}

// ShippingInfo holds the ordered deliveries of an order.
type ShippingInfo struct {
	ShippingMethodName string     `json:"shippingMethodName,omitempty"`
	Deliveries         []Delivery `json:"deliveries,omitempty"`
}

// Delivery is identified by its remote id once persisted; desired deliveries
// without an id are treated as new.
type Delivery struct {
	ID      string         `json:"id,omitempty"`
	Items   []DeliveryItem `json:"items,omitempty"`
	Parcels []Parcel       `json:"parcels,omitempty"`
}

// DeliveryItem pairs a line item id with the delivered quantity.
type DeliveryItem struct {
	ID       string `json:"id"`
	Quantity int64  `json:"quantity"`
}

// Parcel carries tracking and measurement payload. The engine compares parcels
// by id only; the payload passes through untouched.
type Parcel struct {
	ID           string              `json:"id,omitempty"`
	TrackingData *TrackingData       `json:"trackingData,omitempty"`
	Measurements *ParcelMeasurements `json:"measurements,omitempty"`
	Items        []DeliveryItem      `json:"items,omitempty"`
}

// TrackingData describes the carrier-side tracking record of a parcel.
type TrackingData struct {
	TrackingID          string `json:"trackingId,omitempty"`
	Carrier             string `json:"carrier,omitempty"`
	Provider            string `json:"provider,omitempty"`
	ProviderTransaction string `json:"providerTransaction,omitempty"`
	IsReturn            bool   `json:"isReturn"`
}

// ParcelMeasurements captures the physical dimensions of a parcel.
type ParcelMeasurements struct {
	HeightInMillimeter int64 `json:"heightInMillimeter,omitempty"`
	LengthInMillimeter int64 `json:"lengthInMillimeter,omitempty"`
	WidthInMillimeter  int64 `json:"widthInMillimeter,omitempty"`
	WeightInGram       int64 `json:"weightInGram,omitempty"`
}

// Clone returns a deep copy of the order. Reference resolution works on a
// clone so the caller's input is never mutated.
func (o Order) Clone() Order {
	cloned := o
	cloned.LineItems = cloneLineItems(o.LineItems)
	cloned.CustomLineItems = cloneLineItems(o.CustomLineItems)
	cloned.ReturnInfo = cloneReturnInfo(o.ReturnInfo)
	cloned.SyncInfo = cloneSyncInfo(o.SyncInfo)
	cloned.ShippingInfo = cloneShippingInfo(o.ShippingInfo)
	return cloned
}

func cloneLineItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	cloned := make([]LineItem, len(items))
	for i, item := range items {
		cloned[i] = item
		if item.State != nil {
			states := make([]ItemState, len(item.State))
			for j, state := range item.State {
				states[j] = state
				states[j].State = cloneReference(state.State)
				states[j].FromState = cloneResolvable(state.FromState)
				states[j].ToState = cloneResolvable(state.ToState)
				states[j].FromStateQty = cloneInt64(state.FromStateQty)
			}
			cloned[i].State = states
		}
	}
	return cloned
}

func cloneReturnInfo(infos []ReturnInfo) []ReturnInfo {
	if infos == nil {
		return nil
	}
	cloned := make([]ReturnInfo, len(infos))
	for i, info := range infos {
		cloned[i] = info
		if info.Items != nil {
			cloned[i].Items = append([]ReturnItem(nil), info.Items...)
		}
	}
	return cloned
}

func cloneSyncInfo(infos []SyncInfo) []SyncInfo {
	if infos == nil {
		return nil
	}
	cloned := make([]SyncInfo, len(infos))
	for i, info := range infos {
		cloned[i] = info
		cloned[i].Channel = cloneResolvable(info.Channel)
	}
	return cloned
}

func cloneShippingInfo(info *ShippingInfo) *ShippingInfo {
	if info == nil {
		return nil
	}
	cloned := *info
	if info.Deliveries != nil {
		cloned.Deliveries = make([]Delivery, len(info.Deliveries))
		for i, delivery := range info.Deliveries {
			cloned.Deliveries[i] = delivery
			if delivery.Items != nil {
				cloned.Deliveries[i].Items = append([]DeliveryItem(nil), delivery.Items...)
			}
			if delivery.Parcels != nil {
				parcels := make([]Parcel, len(delivery.Parcels))
				for j, parcel := range delivery.Parcels {
					parcels[j] = parcel
					if parcel.TrackingData != nil {
						tracking := *parcel.TrackingData
						parcels[j].TrackingData = &tracking
					}
					if parcel.Measurements != nil {
						measurements := *parcel.Measurements
						parcels[j].Measurements = &measurements
					}
					if parcel.Items != nil {
						parcels[j].Items = append([]DeliveryItem(nil), parcel.Items...)
					}
				}
				cloned.Deliveries[i].Parcels = parcels
			}
		}
	}
	return &cloned
}

func cloneReference(ref *Reference) *Reference {
	if ref == nil {
		return nil
	}
	cloned := *ref
	return &cloned
}

func cloneResolvable(ref *ResolvableReference) *ResolvableReference {
	if ref == nil {
		return nil
	}
	cloned := *ref
	return &cloned
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
