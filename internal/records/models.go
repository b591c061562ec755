package records

import "time"

// Order is a restaurant order (pedido), created by hand or derived from a call.
type Order struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	// CallID links to an inbound call; CampaignCallID to an outbound one.
	CallID         string `json:"call_id,omitempty" db:"call_id"`
	CampaignCallID string `json:"campaign_call_id,omitempty" db:"campaign_call_id"`

	ClienteNombre    string      `json:"cliente_nombre" db:"cliente_nombre"`
	ClienteTelefono  string      `json:"cliente_telefono,omitempty" db:"cliente_telefono"`
	Items            []OrderItem `json:"items" db:"items"`
	Total            float64     `json:"total" db:"total"`
	Estado           OrderEstado `json:"estado" db:"estado"`
	TipoEntrega      string      `json:"tipo_entrega,omitempty" db:"tipo_entrega"`
	DireccionEntrega string      `json:"direccion_entrega,omitempty" db:"direccion_entrega"`
	Notas            string      `json:"notas,omitempty" db:"notas"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type OrderItem struct {
	Nombre         string  `json:"nombre" validate:"required"`
	Cantidad       float64 `json:"cantidad" validate:"gte=0"`
	PrecioUnitario float64 `json:"precio_unitario" validate:"gte=0"`
}

type OrderEstado string

const (
	OrderRecibido      OrderEstado = "recibido"
	OrderEnPreparacion OrderEstado = "en_preparacion"
	OrderListo         OrderEstado = "listo"
	OrderEntregado     OrderEstado = "entregado"
	OrderCancelado     OrderEstado = "cancelado"
)

// Reservation is a restaurant table reservation (reservacion).
type Reservation struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	CallID         string `json:"call_id,omitempty" db:"call_id"`
	CampaignCallID string `json:"campaign_call_id,omitempty" db:"campaign_call_id"`

	NombreCliente  string            `json:"nombre_cliente" db:"nombre_cliente"`
	Telefono       string            `json:"telefono,omitempty" db:"telefono"`
	Fecha          string            `json:"fecha" db:"fecha"` // YYYY-MM-DD
	Hora           string            `json:"hora" db:"hora"`   // HH:MM
	NumeroPersonas int               `json:"numero_personas" db:"numero_personas"`
	Estado         ReservationEstado `json:"estado" db:"estado"`
	Notas          string            `json:"notas,omitempty" db:"notas"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ReservationEstado string

const (
	ReservationPendiente  ReservationEstado = "pendiente"
	ReservationConfirmada ReservationEstado = "confirmada"
	ReservationCompletada ReservationEstado = "completada"
	ReservationNoShow     ReservationEstado = "no_show"
	ReservationCancelada  ReservationEstado = "cancelada"
)

const defaultNumeroPersonas = 2

// ListFilter narrows list queries. From and To are inclusive calendar days.
type ListFilter struct {
	Estado string
	From   *time.Time
	To     *time.Time
}

// CreateOrderRequest is the manual create payload.
type CreateOrderRequest struct {
	ClienteNombre    string      `json:"cliente_nombre" validate:"required"`
	ClienteTelefono  string      `json:"cliente_telefono"`
	Items            []OrderItem `json:"items" validate:"required,min=1,dive"`
	Total            float64     `json:"total" validate:"gte=0"`
	Estado           string      `json:"estado" validate:"omitempty,oneof=recibido en_preparacion listo entregado cancelado"`
	TipoEntrega      string      `json:"tipo_entrega"`
	DireccionEntrega string      `json:"direccion_entrega"`
	Notas            string      `json:"notas"`
}

// OrderPatch lists the fields a tenant may change. Nil means unchanged.
type OrderPatch struct {
	ClienteNombre    *string      `json:"cliente_nombre" validate:"omitempty,min=1"`
	ClienteTelefono  *string      `json:"cliente_telefono"`
	Items            *[]OrderItem `json:"items" validate:"omitempty,min=1,dive"`
	Total            *float64     `json:"total" validate:"omitempty,gte=0"`
	Estado           *string      `json:"estado" validate:"omitempty,oneof=recibido en_preparacion listo entregado cancelado"`
	TipoEntrega      *string      `json:"tipo_entrega"`
	DireccionEntrega *string      `json:"direccion_entrega"`
	Notas            *string      `json:"notas"`
}

type CreateReservationRequest struct {
	NombreCliente  string `json:"nombre_cliente" validate:"required"`
	Telefono       string `json:"telefono"`
	Fecha          string `json:"fecha" validate:"required,datetime=2006-01-02"`
	Hora           string `json:"hora" validate:"required"`
	NumeroPersonas int    `json:"numero_personas" validate:"gte=0"`
	Estado         string `json:"estado" validate:"omitempty,oneof=pendiente confirmada completada no_show cancelada"`
	Notas          string `json:"notas"`
}

type ReservationPatch struct {
	NombreCliente  *string `json:"nombre_cliente" validate:"omitempty,min=1"`
	Telefono       *string `json:"telefono"`
	Fecha          *string `json:"fecha" validate:"omitempty,datetime=2006-01-02"`
	Hora           *string `json:"hora"`
	NumeroPersonas *int    `json:"numero_personas" validate:"omitempty,gte=1"`
	Estado         *string `json:"estado" validate:"omitempty,oneof=pendiente confirmada completada no_show cancelada"`
	Notas          *string `json:"notas"`
}

// Link ties a derived record to the call it came from.
type Link struct {
	CallID         string
	CampaignCallID string
}

func (l Link) empty() bool { return l.CallID == "" && l.CampaignCallID == "" }
