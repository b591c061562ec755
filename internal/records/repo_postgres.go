package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicedesk/internal/apperr"
	"voicedesk/pkg/utils"
)

// PostgresRepo implements Repository over the pedidos and reservaciones tables.
//
// Every statement carries "user_id = $1"; patch and delete on another tenant's
// row match zero rows and surface as apperr.ErrNotFound.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const orderColumns = `
id, user_id, COALESCE(call_id::text, ''), COALESCE(campaign_call_id::text, ''),
cliente_nombre, COALESCE(cliente_telefono, ''), items, total, estado,
COALESCE(tipo_entrega, ''), COALESCE(direccion_entrega, ''), COALESCE(notas, ''),
created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	var items []byte
	if err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.CallID,
		&o.CampaignCallID,
		&o.ClienteNombre,
		&o.ClienteTelefono,
		&items,
		&o.Total,
		&o.Estado,
		&o.TipoEntrega,
		&o.DireccionEntrega,
		&o.Notas,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return Order{}, err
	}
	if err := utils.ScanJSONB(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("records: decode items: %w", err)
	}
	if o.Items == nil {
		o.Items = []OrderItem{}
	}
	return o, nil
}

func (r *PostgresRepo) InsertOrder(ctx context.Context, o Order) error {
	const q = `
INSERT INTO pedidos (
  id, user_id, call_id, campaign_call_id, cliente_nombre, cliente_telefono, items, total,
  estado, tipo_entrega, direccion_entrega, notas, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
`
	items, err := utils.JSONB(o.Items)
	if err != nil {
		return err
	}
	if items == nil {
		items = "[]"
	}
	_, err = r.db.ExecContext(ctx, q,
		o.ID,
		o.UserID,
		utils.NullString(o.CallID),
		utils.NullString(o.CampaignCallID),
		o.ClienteNombre,
		utils.NullString(o.ClienteTelefono),
		items,
		o.Total,
		o.Estado,
		utils.NullString(o.TipoEntrega),
		utils.NullString(o.DireccionEntrega),
		utils.NullString(o.Notas),
		o.CreatedAt,
		o.UpdatedAt,
	)
	if utils.IsUniqueViolation(err) {
		return fmt.Errorf("%w: call already has an order", apperr.ErrConflict)
	}
	return err
}

func (r *PostgresRepo) ListOrders(ctx context.Context, userID string, f ListFilter) ([]Order, error) {
	var b strings.Builder
	b.WriteString("SELECT" + orderColumns + "\nFROM pedidos\nWHERE user_id = $1")
	args := []any{userID}
	if f.Estado != "" {
		args = append(args, f.Estado)
		fmt.Fprintf(&b, " AND estado = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		fmt.Fprintf(&b, " AND created_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, f.To.AddDate(0, 0, 1))
		fmt.Fprintf(&b, " AND created_at < $%d", len(args))
	}
	b.WriteString("\nORDER BY created_at DESC")

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetOrder(ctx context.Context, userID, id string) (Order, error) {
	q := "SELECT" + orderColumns + "\nFROM pedidos\nWHERE user_id = $1 AND id = $2"
	o, err := scanOrder(r.db.QueryRowContext(ctx, q, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, apperr.ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepo) UpdateOrder(ctx context.Context, userID, id string, p OrderPatch, now time.Time) (Order, error) {
	q := `
UPDATE pedidos SET
  cliente_nombre    = COALESCE($3, cliente_nombre),
  cliente_telefono  = COALESCE($4, cliente_telefono),
  items             = COALESCE($5::jsonb, items),
  total             = COALESCE($6, total),
  estado            = COALESCE($7, estado),
  tipo_entrega      = COALESCE($8, tipo_entrega),
  direccion_entrega = COALESCE($9, direccion_entrega),
  notas             = COALESCE($10, notas),
  updated_at        = $11
WHERE user_id = $1 AND id = $2
RETURNING` + orderColumns

	var items any
	if p.Items != nil {
		v, err := utils.JSONB(*p.Items)
		if err != nil {
			return Order{}, err
		}
		items = v
	}
	o, err := scanOrder(r.db.QueryRowContext(ctx, q,
		userID,
		id,
		optString(p.ClienteNombre),
		optString(p.ClienteTelefono),
		items,
		optFloat(p.Total),
		optString(p.Estado),
		optString(p.TipoEntrega),
		optString(p.DireccionEntrega),
		optString(p.Notas),
		now,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, apperr.ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepo) DeleteOrder(ctx context.Context, userID, id string) error {
	return execOne(ctx, r.db, `DELETE FROM pedidos WHERE user_id = $1 AND id = $2`, userID, id)
}

const reservationColumns = `
id, user_id, COALESCE(call_id::text, ''), COALESCE(campaign_call_id::text, ''),
nombre_cliente, COALESCE(telefono, ''), to_char(fecha, 'YYYY-MM-DD'), to_char(hora, 'HH24:MI'),
numero_personas, estado, COALESCE(notas, ''), created_at, updated_at`

func scanReservation(row rowScanner) (Reservation, error) {
	var res Reservation
	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.CallID,
		&res.CampaignCallID,
		&res.NombreCliente,
		&res.Telefono,
		&res.Fecha,
		&res.Hora,
		&res.NumeroPersonas,
		&res.Estado,
		&res.Notas,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	return res, err
}

func (r *PostgresRepo) InsertReservation(ctx context.Context, res Reservation) error {
	const q = `
INSERT INTO reservaciones (
  id, user_id, call_id, campaign_call_id, nombre_cliente, telefono, fecha, hora,
  numero_personas, estado, notas, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7::date,$8::time,$9,$10,$11,$12,$13
)
`
	_, err := r.db.ExecContext(ctx, q,
		res.ID,
		res.UserID,
		utils.NullString(res.CallID),
		utils.NullString(res.CampaignCallID),
		res.NombreCliente,
		utils.NullString(res.Telefono),
		res.Fecha,
		res.Hora,
		res.NumeroPersonas,
		res.Estado,
		utils.NullString(res.Notas),
		res.CreatedAt,
		res.UpdatedAt,
	)
	if utils.IsUniqueViolation(err) {
		return fmt.Errorf("%w: call already has a reservation", apperr.ErrConflict)
	}
	return err
}

// DerivedKind looks for a record of either kind linked to the same call.
func (r *PostgresRepo) DerivedKind(ctx context.Context, userID string, link Link) (string, error) {
	const q = `
SELECT kind FROM (
  SELECT 'pedido' AS kind FROM pedidos
  WHERE user_id = $1 AND (call_id::text = $2 OR campaign_call_id::text = $3)
  UNION ALL
  SELECT 'reserva' FROM reservaciones
  WHERE user_id = $1 AND (call_id::text = $2 OR campaign_call_id::text = $3)
) linked
LIMIT 1
`
	var kind string
	err := r.db.QueryRowContext(ctx, q, userID, link.CallID, link.CampaignCallID).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return kind, err
}

func (r *PostgresRepo) ListReservations(ctx context.Context, userID string, f ListFilter) ([]Reservation, error) {
	var b strings.Builder
	b.WriteString("SELECT" + reservationColumns + "\nFROM reservaciones\nWHERE user_id = $1")
	args := []any{userID}
	if f.Estado != "" {
		args = append(args, f.Estado)
		fmt.Fprintf(&b, " AND estado = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, f.From.Format("2006-01-02"))
		fmt.Fprintf(&b, " AND fecha >= $%d::date", len(args))
	}
	if f.To != nil {
		args = append(args, f.To.Format("2006-01-02"))
		fmt.Fprintf(&b, " AND fecha <= $%d::date", len(args))
	}
	b.WriteString("\nORDER BY fecha DESC, hora DESC")

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetReservation(ctx context.Context, userID, id string) (Reservation, error) {
	q := "SELECT" + reservationColumns + "\nFROM reservaciones\nWHERE user_id = $1 AND id = $2"
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reservation{}, apperr.ErrNotFound
		}
		return Reservation{}, err
	}
	return res, nil
}

func (r *PostgresRepo) UpdateReservation(ctx context.Context, userID, id string, p ReservationPatch, now time.Time) (Reservation, error) {
	q := `
UPDATE reservaciones SET
  nombre_cliente  = COALESCE($3, nombre_cliente),
  telefono        = COALESCE($4, telefono),
  fecha           = COALESCE($5::date, fecha),
  hora            = COALESCE($6::time, hora),
  numero_personas = COALESCE($7, numero_personas),
  estado          = COALESCE($8, estado),
  notas           = COALESCE($9, notas),
  updated_at      = $10
WHERE user_id = $1 AND id = $2
RETURNING` + reservationColumns

	var personas sql.NullInt64
	if p.NumeroPersonas != nil {
		personas = sql.NullInt64{Int64: int64(*p.NumeroPersonas), Valid: true}
	}
	res, err := scanReservation(r.db.QueryRowContext(ctx, q,
		userID,
		id,
		optString(p.NombreCliente),
		optString(p.Telefono),
		optString(p.Fecha),
		optString(p.Hora),
		personas,
		optString(p.Estado),
		optString(p.Notas),
		now,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reservation{}, apperr.ErrNotFound
		}
		return Reservation{}, err
	}
	return res, nil
}

func (r *PostgresRepo) DeleteReservation(ctx context.Context, userID, id string) error {
	return execOne(ctx, r.db, `DELETE FROM reservaciones WHERE user_id = $1 AND id = $2`, userID, id)
}

func execOne(ctx context.Context, db *sql.DB, q string, args ...any) error {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func optString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func optFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
