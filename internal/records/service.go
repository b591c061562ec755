package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicedesk/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Repository persists orders and reservations.
//
// Tenancy: every method filters on userID. A row owned by another tenant is
// reported as apperr.ErrNotFound and left untouched.
type Repository interface {
	InsertOrder(ctx context.Context, o Order) error
	ListOrders(ctx context.Context, userID string, f ListFilter) ([]Order, error)
	GetOrder(ctx context.Context, userID, id string) (Order, error)
	UpdateOrder(ctx context.Context, userID, id string, p OrderPatch, now time.Time) (Order, error)
	DeleteOrder(ctx context.Context, userID, id string) error

	InsertReservation(ctx context.Context, r Reservation) error
	ListReservations(ctx context.Context, userID string, f ListFilter) ([]Reservation, error)
	GetReservation(ctx context.Context, userID, id string) (Reservation, error)
	UpdateReservation(ctx context.Context, userID, id string, p ReservationPatch, now time.Time) (Reservation, error)
	DeleteReservation(ctx context.Context, userID, id string) error

	// DerivedKind reports which record kind already links to the call in
	// link, or "" when none does.
	DerivedKind(ctx context.Context, userID string, link Link) (string, error)
}

type Service struct {
	repo     Repository
	validate *validator.Validate
	clock    func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: apperr.NewValidator(), clock: time.Now}
}

var errTenantRequired = errors.New("records: user_id required")

// --- Orders ---

func (s *Service) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (Order, error) {
	if userID == "" {
		return Order{}, errTenantRequired
	}
	req.ClienteNombre = strings.TrimSpace(req.ClienteNombre)
	if err := s.validate.Struct(req); err != nil {
		return Order{}, apperr.Validation(err)
	}

	estado := OrderEstado(req.Estado)
	if estado == "" {
		estado = OrderRecibido
	}
	total := req.Total
	if total <= 0 {
		total = ItemsTotal(req.Items)
	}
	now := s.clock().UTC()
	o := Order{
		ID:               uuid.NewString(),
		UserID:           userID,
		ClienteNombre:    req.ClienteNombre,
		ClienteTelefono:  strings.TrimSpace(req.ClienteTelefono),
		Items:            req.Items,
		Total:            total,
		Estado:           estado,
		TipoEntrega:      req.TipoEntrega,
		DireccionEntrega: req.DireccionEntrega,
		Notas:            req.Notas,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertOrder(ctx, o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, userID string, f ListFilter) ([]Order, error) {
	if userID == "" {
		return nil, errTenantRequired
	}
	if f.Estado != "" && !validOrderEstado(f.Estado) {
		return nil, fmt.Errorf("%w: unknown estado %q", apperr.ErrInvalidArgument, f.Estado)
	}
	if err := checkRange(f); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, userID, f)
}

func (s *Service) GetOrder(ctx context.Context, userID, id string) (Order, error) {
	if userID == "" {
		return Order{}, errTenantRequired
	}
	return s.repo.GetOrder(ctx, userID, id)
}

// PatchOrder applies the allow-listed fields. Replacing items without an
// explicit total recomputes the total from the new items.
func (s *Service) PatchOrder(ctx context.Context, userID, id string, p OrderPatch) (Order, error) {
	if userID == "" {
		return Order{}, errTenantRequired
	}
	if err := s.validate.Struct(p); err != nil {
		return Order{}, apperr.Validation(err)
	}
	if p.ClienteNombre != nil && strings.TrimSpace(*p.ClienteNombre) == "" {
		return Order{}, fmt.Errorf("%w: cliente_nombre cannot be empty", apperr.ErrInvalidArgument)
	}
	if p.Items != nil && p.Total == nil {
		t := ItemsTotal(*p.Items)
		p.Total = &t
	}
	return s.repo.UpdateOrder(ctx, userID, id, p, s.clock().UTC())
}

func (s *Service) DeleteOrder(ctx context.Context, userID, id string) error {
	if userID == "" {
		return errTenantRequired
	}
	return s.repo.DeleteOrder(ctx, userID, id)
}

// --- Reservations ---

func (s *Service) CreateReservation(ctx context.Context, userID string, req CreateReservationRequest) (Reservation, error) {
	if userID == "" {
		return Reservation{}, errTenantRequired
	}
	req.NombreCliente = strings.TrimSpace(req.NombreCliente)
	if err := s.validate.Struct(req); err != nil {
		return Reservation{}, apperr.Validation(err)
	}
	hora := normalizeHora(req.Hora)
	if hora == "" {
		return Reservation{}, fmt.Errorf("%w: hora must be HH:MM", apperr.ErrInvalidArgument)
	}
	estado := ReservationEstado(req.Estado)
	if estado == "" {
		estado = ReservationPendiente
	}
	personas := req.NumeroPersonas
	if personas <= 0 {
		personas = defaultNumeroPersonas
	}
	now := s.clock().UTC()
	r := Reservation{
		ID:             uuid.NewString(),
		UserID:         userID,
		NombreCliente:  req.NombreCliente,
		Telefono:       strings.TrimSpace(req.Telefono),
		Fecha:          req.Fecha,
		Hora:           hora,
		NumeroPersonas: personas,
		Estado:         estado,
		Notas:          req.Notas,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertReservation(ctx, r); err != nil {
		return Reservation{}, err
	}
	return r, nil
}

func (s *Service) ListReservations(ctx context.Context, userID string, f ListFilter) ([]Reservation, error) {
	if userID == "" {
		return nil, errTenantRequired
	}
	if f.Estado != "" && !validReservationEstado(f.Estado) {
		return nil, fmt.Errorf("%w: unknown estado %q", apperr.ErrInvalidArgument, f.Estado)
	}
	if err := checkRange(f); err != nil {
		return nil, err
	}
	return s.repo.ListReservations(ctx, userID, f)
}

func (s *Service) GetReservation(ctx context.Context, userID, id string) (Reservation, error) {
	if userID == "" {
		return Reservation{}, errTenantRequired
	}
	return s.repo.GetReservation(ctx, userID, id)
}

func (s *Service) PatchReservation(ctx context.Context, userID, id string, p ReservationPatch) (Reservation, error) {
	if userID == "" {
		return Reservation{}, errTenantRequired
	}
	if err := s.validate.Struct(p); err != nil {
		return Reservation{}, apperr.Validation(err)
	}
	if p.NombreCliente != nil && strings.TrimSpace(*p.NombreCliente) == "" {
		return Reservation{}, fmt.Errorf("%w: nombre_cliente cannot be empty", apperr.ErrInvalidArgument)
	}
	if p.NumeroPersonas != nil && *p.NumeroPersonas < 1 {
		return Reservation{}, fmt.Errorf("%w: numero_personas must be at least 1", apperr.ErrInvalidArgument)
	}
	if p.Hora != nil {
		h := normalizeHora(*p.Hora)
		if h == "" {
			return Reservation{}, fmt.Errorf("%w: hora must be HH:MM", apperr.ErrInvalidArgument)
		}
		p.Hora = &h
	}
	return s.repo.UpdateReservation(ctx, userID, id, p, s.clock().UTC())
}

func (s *Service) DeleteReservation(ctx context.Context, userID, id string) error {
	if userID == "" {
		return errTenantRequired
	}
	return s.repo.DeleteReservation(ctx, userID, id)
}

// --- Derived records ---

// SaveDerived persists the record Derive produced for a tenant's call.
// It returns the kind written, or "" when d is empty. A call yields at most one
// derived record; a second one fails with apperr.ErrConflict.
func (s *Service) SaveDerived(ctx context.Context, userID string, link Link, d Derived) (string, error) {
	if userID == "" {
		return "", errTenantRequired
	}
	if d.Kind() == "" {
		return "", nil
	}
	if !link.empty() {
		existing, err := s.repo.DerivedKind(ctx, userID, link)
		if err != nil {
			return "", fmt.Errorf("records: derived lookup: %w", err)
		}
		if existing != "" {
			return "", fmt.Errorf("%w: call already produced a %s", apperr.ErrConflict, existing)
		}
	}
	now := s.clock().UTC()
	switch {
	case d.Order != nil:
		o := *d.Order
		o.ID = uuid.NewString()
		o.UserID = userID
		o.CallID = link.CallID
		o.CampaignCallID = link.CampaignCallID
		o.CreatedAt, o.UpdatedAt = now, now
		if err := s.repo.InsertOrder(ctx, o); err != nil {
			return "", fmt.Errorf("records: insert derived order: %w", err)
		}
		return KindOrder, nil
	case d.Reservation != nil:
		r := *d.Reservation
		r.ID = uuid.NewString()
		r.UserID = userID
		r.CallID = link.CallID
		r.CampaignCallID = link.CampaignCallID
		r.CreatedAt, r.UpdatedAt = now, now
		if err := s.repo.InsertReservation(ctx, r); err != nil {
			return "", fmt.Errorf("records: insert derived reservation: %w", err)
		}
		return KindReservation, nil
	}
	return "", nil
}

// ParseDay parses a YYYY-MM-DD query parameter. Empty input yields nil.
func ParseDay(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("%w: dates must be YYYY-MM-DD", apperr.ErrInvalidArgument)
	}
	return &t, nil
}

func checkRange(f ListFilter) error {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return fmt.Errorf("%w: to must not be before from", apperr.ErrInvalidArgument)
	}
	return nil
}

func validOrderEstado(s string) bool {
	switch OrderEstado(s) {
	case OrderRecibido, OrderEnPreparacion, OrderListo, OrderEntregado, OrderCancelado:
		return true
	}
	return false
}

func validReservationEstado(s string) bool {
	switch ReservationEstado(s) {
	case ReservationPendiente, ReservationConfirmada, ReservationCompletada, ReservationNoShow, ReservationCancelada:
		return true
	}
	return false
}
