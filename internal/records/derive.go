package records

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record kinds produced by Derive.
const (
	KindOrder       = "pedido"
	KindReservation = "reserva"
)

// Derived is the outcome of inspecting a call's structured data.
// At most one of Order and Reservation is set.
type Derived struct {
	Order       *Order
	Reservation *Reservation
}

func (d Derived) Kind() string {
	switch {
	case d.Order != nil:
		return KindOrder
	case d.Reservation != nil:
		return KindReservation
	}
	return ""
}

// Derive builds an order or reservation from structured data extracted by the
// voice provider. An explicit tipo decides the kind, and yields nothing when
// its required fields are missing. Without a known tipo, line items beat a
// date and time. callerNumber fills in a missing
// customer phone. The returned rows carry no id, tenant or timestamps.
func Derive(data map[string]any, callerNumber string) Derived {
	if len(data) == 0 {
		return Derived{}
	}
	tipo := strings.ToLower(str(data["tipo"]))
	items := parseItems(data["items"])
	fecha, hora := normalizeFecha(str(data["fecha"])), normalizeHora(str(data["hora"]))
	hasOrder := len(items) > 0
	hasReservation := fecha != "" && hora != ""

	switch {
	case tipo == KindOrder:
		if !hasOrder {
			return Derived{}
		}
		return Derived{Order: orderFrom(data, items, callerNumber)}
	case tipo == KindReservation:
		if !hasReservation {
			return Derived{}
		}
		return Derived{Reservation: reservationFrom(data, fecha, hora, callerNumber)}
	case hasOrder:
		return Derived{Order: orderFrom(data, items, callerNumber)}
	case hasReservation:
		return Derived{Reservation: reservationFrom(data, fecha, hora, callerNumber)}
	}
	return Derived{}
}

func orderFrom(data map[string]any, items []OrderItem, callerNumber string) *Order {
	total, ok := number(data["total"])
	if !ok || total <= 0 {
		total = ItemsTotal(items)
	}
	return &Order{
		ClienteNombre:    customerName(data),
		ClienteTelefono:  firstNonEmpty(str(data["telefono"]), str(data["cliente_telefono"]), callerNumber),
		Items:            items,
		Total:            total,
		Estado:           OrderRecibido,
		TipoEntrega:      firstNonEmpty(str(data["tipo_entrega"]), str(data["entrega"])),
		DireccionEntrega: firstNonEmpty(str(data["direccion_entrega"]), str(data["direccion"])),
		Notas:            str(data["notas"]),
	}
}

func reservationFrom(data map[string]any, fecha, hora, callerNumber string) *Reservation {
	personas := defaultNumeroPersonas
	if n, ok := number(firstPresent(data, "numero_personas", "personas")); ok && n >= 1 {
		personas = int(math.Round(n))
	}
	return &Reservation{
		NombreCliente:  customerName(data),
		Telefono:       firstNonEmpty(str(data["telefono"]), callerNumber),
		Fecha:          fecha,
		Hora:           hora,
		NumeroPersonas: personas,
		Estado:         ReservationPendiente,
		Notas:          str(data["notas"]),
	}
}

// ItemsTotal is the sum of quantity times unit price, rounded to cents.
func ItemsTotal(items []OrderItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Cantidad * it.PrecioUnitario
	}
	return RoundCents(sum)
}

func RoundCents(v float64) float64 { return math.Round(v*100) / 100 }

func parseItems(v any) []OrderItem {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]OrderItem, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := firstNonEmpty(str(m["nombre"]), str(m["producto"]))
		if name == "" {
			continue
		}
		qty, ok := number(m["cantidad"])
		if !ok || qty <= 0 {
			qty = 1
		}
		price, _ := number(firstPresent(m, "precio_unitario", "precio"))
		if price < 0 {
			price = 0
		}
		out = append(out, OrderItem{Nombre: name, Cantidad: qty, PrecioUnitario: price})
	}
	return out
}

func customerName(data map[string]any) string {
	return firstNonEmpty(str(data["nombre_cliente"]), str(data["cliente_nombre"]), str(data["cliente"]), str(data["nombre"]))
}

// number accepts JSON numbers and numeric strings such as "50", "$1,250.50".
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// normalizeFecha returns YYYY-MM-DD or "" when s is not a calendar date.
func normalizeFecha(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02")
	}
	return ""
}

// normalizeHora returns HH:MM or "" when s is not a time of day.
func normalizeHora(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range []string{"15:04", "15:04:05", "3:04pm", "3:04 pm", "3pm", "3 pm"} {
		if t, err := time.Parse(layout, strings.ToLower(s)); err == nil {
			return t.Format("15:04")
		}
	}
	return ""
}
