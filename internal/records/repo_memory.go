package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"voicedesk/internal/apperr"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu           sync.Mutex
	orders       map[string]Order
	reservations map[string]Reservation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orders: map[string]Order{}, reservations: map[string]Reservation{}}
}

func (r *MemoryRepo) InsertOrder(_ context.Context, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.orders {
		if sameSource(x.CallID, x.CampaignCallID, Link{CallID: o.CallID, CampaignCallID: o.CampaignCallID}) {
			return apperr.ErrConflict
		}
	}
	r.orders[o.ID] = o
	return nil
}

func (r *MemoryRepo) ListOrders(_ context.Context, userID string, f ListFilter) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.UserID != userID {
			continue
		}
		if f.Estado != "" && string(o.Estado) != f.Estado {
			continue
		}
		if !inDays(o.CreatedAt, f) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) GetOrder(_ context.Context, userID, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.UserID != userID {
		return Order{}, apperr.ErrNotFound
	}
	return o, nil
}

func (r *MemoryRepo) UpdateOrder(_ context.Context, userID, id string, p OrderPatch, now time.Time) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.UserID != userID {
		return Order{}, apperr.ErrNotFound
	}
	setStr(&o.ClienteNombre, p.ClienteNombre)
	setStr(&o.ClienteTelefono, p.ClienteTelefono)
	setStr(&o.TipoEntrega, p.TipoEntrega)
	setStr(&o.DireccionEntrega, p.DireccionEntrega)
	setStr(&o.Notas, p.Notas)
	if p.Items != nil {
		o.Items = *p.Items
	}
	if p.Total != nil {
		o.Total = *p.Total
	}
	if p.Estado != nil {
		o.Estado = OrderEstado(*p.Estado)
	}
	o.UpdatedAt = now
	r.orders[id] = o
	return o, nil
}

func (r *MemoryRepo) DeleteOrder(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.UserID != userID {
		return apperr.ErrNotFound
	}
	delete(r.orders, id)
	return nil
}

func (r *MemoryRepo) InsertReservation(_ context.Context, res Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.reservations {
		if sameSource(x.CallID, x.CampaignCallID, Link{CallID: res.CallID, CampaignCallID: res.CampaignCallID}) {
			return apperr.ErrConflict
		}
	}
	r.reservations[res.ID] = res
	return nil
}

func (r *MemoryRepo) ListReservations(_ context.Context, userID string, f ListFilter) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reservation, 0)
	for _, res := range r.reservations {
		if res.UserID != userID {
			continue
		}
		if f.Estado != "" && string(res.Estado) != f.Estado {
			continue
		}
		day, err := time.Parse("2006-01-02", res.Fecha)
		if err != nil || !inDays(day, f) {
			continue
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Fecha != out[j].Fecha {
			return out[i].Fecha > out[j].Fecha
		}
		return out[i].Hora > out[j].Hora
	})
	return out, nil
}

func (r *MemoryRepo) GetReservation(_ context.Context, userID, id string) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok || res.UserID != userID {
		return Reservation{}, apperr.ErrNotFound
	}
	return res, nil
}

func (r *MemoryRepo) UpdateReservation(_ context.Context, userID, id string, p ReservationPatch, now time.Time) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok || res.UserID != userID {
		return Reservation{}, apperr.ErrNotFound
	}
	setStr(&res.NombreCliente, p.NombreCliente)
	setStr(&res.Telefono, p.Telefono)
	setStr(&res.Fecha, p.Fecha)
	setStr(&res.Hora, p.Hora)
	setStr(&res.Notas, p.Notas)
	if p.NumeroPersonas != nil {
		res.NumeroPersonas = *p.NumeroPersonas
	}
	if p.Estado != nil {
		res.Estado = ReservationEstado(*p.Estado)
	}
	res.UpdatedAt = now
	r.reservations[id] = res
	return res, nil
}

func (r *MemoryRepo) DeleteReservation(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok || res.UserID != userID {
		return apperr.ErrNotFound
	}
	delete(r.reservations, id)
	return nil
}

// Orders returns every stored order regardless of tenant.
func (r *MemoryRepo) Orders() []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out
}

// Reservations returns every stored reservation regardless of tenant.
func (r *MemoryRepo) Reservations() []Reservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reservation, 0, len(r.reservations))
	for _, res := range r.reservations {
		out = append(out, res)
	}
	return out
}

func (r *MemoryRepo) DerivedKind(_ context.Context, userID string, link Link) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.UserID == userID && sameSource(o.CallID, o.CampaignCallID, link) {
			return KindOrder, nil
		}
	}
	for _, res := range r.reservations {
		if res.UserID == userID && sameSource(res.CallID, res.CampaignCallID, link) {
			return KindReservation, nil
		}
	}
	return "", nil
}

// sameSource mirrors the partial unique indexes on call_id and campaign_call_id.
func sameSource(callID, campaignCallID string, link Link) bool {
	return (link.CallID != "" && callID == link.CallID) ||
		(link.CampaignCallID != "" && campaignCallID == link.CampaignCallID)
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// inDays reports whether t falls within the filter's inclusive day range.
func inDays(t time.Time, f ListFilter) bool {
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	if f.To != nil && !t.Before(f.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}
