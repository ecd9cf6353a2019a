package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/iliyamo/campus-reservation/internal/model"
)

// SQLStore is the Ledger backed by MySQL or PostgreSQL.  Queries are written
// with ? placeholders and rebound for the driver in use.  Every status flip
// is a guarded UPDATE whose affected-row count decides the outcome, so two
// concurrent callers can never both win the same unit.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore returns a SQLStore bound to db.
func NewSQLStore(db *sqlx.DB) *SQLStore { return &SQLStore{db: db} }

var _ Ledger = (*SQLStore)(nil)

const unitColumns = `id, kind, resource_id, label, status, start_time, end_time,
	min_participants, max_participants, hold_token, held_by, hold_expires_at, updated_at`

type unitRow struct {
	ID              string         `db:"id"`
	Kind            string         `db:"kind"`
	ResourceID      string         `db:"resource_id"`
	Label           string         `db:"label"`
	Status          string         `db:"status"`
	StartTime       sql.NullTime   `db:"start_time"`
	EndTime         sql.NullTime   `db:"end_time"`
	MinParticipants sql.NullInt64  `db:"min_participants"`
	MaxParticipants sql.NullInt64  `db:"max_participants"`
	HoldToken       sql.NullString `db:"hold_token"`
	HeldBy          sql.NullString `db:"held_by"`
	HoldExpiresAt   sql.NullTime   `db:"hold_expires_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func (r unitRow) toModel() model.BookableUnit {
	u := model.BookableUnit{
		ID:              r.ID,
		Kind:            model.UnitKind(r.Kind),
		OwnerResourceID: r.ResourceID,
		Label:           r.Label,
		Status:          model.UnitStatus(r.Status),
		StartTime:       nullTime(r.StartTime),
		EndTime:         nullTime(r.EndTime),
		HoldToken:       r.HoldToken.String,
		HeldBy:          r.HeldBy.String,
		HoldExpiresAt:   nullTime(r.HoldExpiresAt),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if r.MinParticipants.Valid || r.MaxParticipants.Valid {
		u.Capacity = &model.CapacityConstraints{
			MinParticipants: int(r.MinParticipants.Int64),
			MaxParticipants: int(r.MaxParticipants.Int64),
		}
	}
	return u
}

type bookingRow struct {
	ID           string       `db:"id"`
	RequesterID  string       `db:"requester_id"`
	Participants []byte       `db:"participants"`
	Metadata     []byte       `db:"metadata"`
	Attachments  []byte       `db:"attachments"`
	Status       string       `db:"status"`
	CreatedAt    time.Time    `db:"created_at"`
	CancelledAt  sql.NullTime `db:"cancelled_at"`
}

const bookingColumns = `b.id, b.requester_id, b.participants, b.metadata, b.attachments, b.status, b.created_at, b.cancelled_at`

func (r bookingRow) toModel() (model.Booking, error) {
	b := model.Booking{
		ID:          r.ID,
		RequesterID: r.RequesterID,
		Status:      model.BookingStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		CancelledAt: nullTime(r.CancelledAt),
	}
	if err := unmarshalColumn(r.Participants, &b.Participants); err != nil {
		return b, errors.Wrapf(err, "booking %s participants", r.ID)
	}
	if err := unmarshalColumn(r.Metadata, &b.Metadata); err != nil {
		return b, errors.Wrapf(err, "booking %s metadata", r.ID)
	}
	if err := unmarshalColumn(r.Attachments, &b.Attachments); err != nil {
		return b, errors.Wrapf(err, "booking %s attachments", r.ID)
	}
	return b, nil
}

func unmarshalColumn(raw []byte, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// isDuplicateKey recognises unique-constraint violations from either driver.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// withTx runs fn inside a transaction, rolling back unless fn succeeds and
// the commit goes through.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	committed = true
	return nil
}

func (s *SQLStore) CreateResource(ctx context.Context, res model.Resource, units []model.BookableUnit) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO resources
			(id, kind, name, venue, start_time, end_time, seat_rows, seat_cols, slot_minutes, min_participants, max_participants, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			res.ID, string(res.Kind), res.Name, res.Venue, res.StartTime.UTC(), res.EndTime.UTC(),
			res.SeatRows, res.SeatCols, res.SlotMinutes, res.MinParticipants, res.MaxParticipants, res.CreatedAt.UTC())
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return nil
		}
		query := `INSERT INTO units (id, kind, resource_id, label, status, start_time, end_time, min_participants, max_participants, updated_at) VALUES `
		args := make([]interface{}, 0, len(units)*10)
		for i, u := range units {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
			var minP, maxP sql.NullInt64
			if u.Capacity != nil {
				minP = sql.NullInt64{Int64: int64(u.Capacity.MinParticipants), Valid: true}
				maxP = sql.NullInt64{Int64: int64(u.Capacity.MaxParticipants), Valid: true}
			}
			args = append(args, u.ID, string(u.Kind), res.ID, u.Label, string(u.Status),
				timeArg(u.StartTime), timeArg(u.EndTime), minP, maxP, u.UpdatedAt.UTC())
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
		return err
	})
	if isDuplicateKey(err) {
		return ErrConflict
	}
	return errors.Wrap(err, "create resource")
}

func timeArg(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

type resourceRow struct {
	ID              string    `db:"id"`
	Kind            string    `db:"kind"`
	Name            string    `db:"name"`
	Venue           string    `db:"venue"`
	StartTime       time.Time `db:"start_time"`
	EndTime         time.Time `db:"end_time"`
	SeatRows        int       `db:"seat_rows"`
	SeatCols        int       `db:"seat_cols"`
	SlotMinutes     int       `db:"slot_minutes"`
	MinParticipants int       `db:"min_participants"`
	MaxParticipants int       `db:"max_participants"`
	CreatedAt       time.Time `db:"created_at"`
}

func (s *SQLStore) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	var r resourceRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT id, kind, name, venue, start_time, end_time,
		seat_rows, seat_cols, slot_minutes, min_participants, max_participants, created_at
		FROM resources WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get resource")
	}
	return &model.Resource{
		ID: r.ID, Kind: model.ResourceKind(r.Kind), Name: r.Name, Venue: r.Venue,
		StartTime: r.StartTime.UTC(), EndTime: r.EndTime.UTC(),
		SeatRows: r.SeatRows, SeatCols: r.SeatCols, SlotMinutes: r.SlotMinutes,
		MinParticipants: r.MinParticipants, MaxParticipants: r.MaxParticipants,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

func (s *SQLStore) GetUnit(ctx context.Context, id string) (*model.BookableUnit, error) {
	var r unitRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+unitColumns+` FROM units WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get unit")
	}
	u := r.toModel()
	return &u, nil
}

func (s *SQLStore) ListUnits(ctx context.Context, resourceID string, f UnitFilter) ([]model.BookableUnit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE resource_id = ?`
	args := []interface{}{resourceID}
	if f.From != nil {
		query += ` AND start_time >= ?`
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		query += ` AND start_time < ?`
		args = append(args, f.To.UTC())
	}
	query += ` ORDER BY start_time, id`
	var rows []unitRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "list units")
	}
	out := make([]model.BookableUnit, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	SortUnits(out)
	return out, nil
}

func (s *SQLStore) HoldUnit(ctx context.Context, unitID, token, requesterID string, expiresAt, now time.Time) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE units
		SET status = 'held', hold_token = ?, held_by = ?, hold_expires_at = ?, updated_at = ?
		WHERE id = ? AND (status = 'available' OR (status = 'held' AND (hold_expires_at <= ? OR hold_token = ?)))`),
		token, requesterID, expiresAt.UTC(), now.UTC(), unitID, now.UTC(), token)
	if err != nil {
		return errors.Wrap(err, "hold unit")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "hold unit")
	}
	if n == 1 {
		return nil
	}
	// MySQL reports zero rows for an update that changes nothing, which is
	// what a repeated hold under the same token looks like.
	var cur struct {
		Status    string         `db:"status"`
		HoldToken sql.NullString `db:"hold_token"`
	}
	err = s.db.GetContext(ctx, &cur, s.db.Rebind(`SELECT status, hold_token FROM units WHERE id = ?`), unitID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "hold unit")
	}
	if cur.Status == string(model.StatusHeld) && cur.HoldToken.String == token {
		return nil
	}
	return ErrUnitUnavailable
}

func (s *SQLStore) ReleaseHold(ctx context.Context, unitID, token string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE units
		SET status = 'available', hold_token = NULL, held_by = NULL, hold_expires_at = NULL
		WHERE id = ? AND status = 'held' AND hold_token = ?`), unitID, token)
	return errors.Wrap(err, "release hold")
}

func (s *SQLStore) HeldUnits(ctx context.Context, token string) ([]model.BookableUnit, error) {
	var rows []unitRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+unitColumns+`
		FROM units WHERE status = 'held' AND hold_token = ? ORDER BY id`), token)
	if err != nil {
		return nil, errors.Wrap(err, "held units")
	}
	out := make([]model.BookableUnit, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) ExpireHolds(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &ids, tx.Rebind(`SELECT id FROM units
			WHERE status = 'held' AND hold_expires_at <= ? ORDER BY id`), now.UTC()); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE units
			SET status = 'available', hold_token = NULL, held_by = NULL, hold_expires_at = NULL, updated_at = ?
			WHERE status = 'held' AND hold_expires_at <= ?`), now.UTC(), now.UTC())
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "expire holds")
	}
	return ids, nil
}

func (s *SQLStore) Create(ctx context.Context, b *model.Booking, holdToken string, now time.Time) error {
	participants, err := json.Marshal(b.Participants)
	if err != nil {
		return errors.Wrap(err, "encode participants")
	}
	metadata, err := json.Marshal(b.Metadata)
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	attachments, err := json.Marshal(b.Attachments)
	if err != nil {
		return errors.Wrap(err, "encode attachments")
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, id := range b.UnitIDs {
			var n int
			if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM booking_units bu
				JOIN bookings b ON b.id = bu.booking_id
				WHERE bu.unit_id = ? AND b.status = 'confirmed'`), id); err != nil {
				return errors.Wrap(err, "check unit bookings")
			}
			if n > 0 {
				return ErrDuplicateBooking
			}
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO bookings
			(id, requester_id, participants, metadata, attachments, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			b.ID, b.RequesterID, string(participants), string(metadata), string(attachments), string(b.Status), b.CreatedAt.UTC()); err != nil {
			return errors.Wrap(err, "insert booking")
		}
		query := `INSERT INTO booking_units (booking_id, unit_id) VALUES `
		args := make([]interface{}, 0, len(b.UnitIDs)*2)
		for i, id := range b.UnitIDs {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, b.ID, id)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return errors.Wrap(err, "insert booking units")
		}
		for _, id := range b.UnitIDs {
			res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE units
				SET status = 'booked', hold_token = NULL, held_by = NULL, hold_expires_at = NULL, updated_at = ?
				WHERE id = ? AND status = 'held' AND hold_token = ? AND hold_expires_at > ?`),
				now.UTC(), id, holdToken, now.UTC())
			if err != nil {
				return errors.Wrap(err, "book unit")
			}
			if n, err := res.RowsAffected(); err != nil {
				return errors.Wrap(err, "book unit")
			} else if n != 1 {
				return ErrHoldLost
			}
		}
		return nil
	})
}

func (s *SQLStore) loadUnitIDs(ctx context.Context, q sqlx.QueryerContext, bookings []model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	ids := make([]string, len(bookings))
	index := make(map[string]int, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
		index[b.ID] = i
	}
	query, args, err := sqlx.In(`SELECT booking_id, unit_id FROM booking_units WHERE booking_id IN (?) ORDER BY booking_id, unit_id`, ids)
	if err != nil {
		return err
	}
	var links []struct {
		BookingID string `db:"booking_id"`
		UnitID    string `db:"unit_id"`
	}
	if err := sqlx.SelectContext(ctx, q, &links, s.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, l := range links {
		i := index[l.BookingID]
		bookings[i].UnitIDs = append(bookings[i].UnitIDs, l.UnitID)
	}
	return nil
}

func (s *SQLStore) getBooking(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*model.Booking, error) {
	var r bookingRow
	err := sqlx.GetContext(ctx, q, &r, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get booking")
	}
	b, err := r.toModel()
	if err != nil {
		return nil, err
	}
	list := []model.Booking{b}
	if err := s.loadUnitIDs(ctx, q, list); err != nil {
		return nil, errors.Wrap(err, "load booking units")
	}
	return &list[0], nil
}

func (s *SQLStore) Get(ctx context.Context, bookingID string) (*model.Booking, error) {
	return s.getBooking(ctx, s.db, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, bookingID)
}

func (s *SQLStore) FindByUnit(ctx context.Context, unitID string) (*model.Booking, error) {
	return s.getBooking(ctx, s.db, `SELECT `+bookingColumns+` FROM bookings b
		JOIN booking_units bu ON bu.booking_id = b.id
		WHERE bu.unit_id = ? AND b.status = 'confirmed'`, unitID)
}

func (s *SQLStore) FindByRequester(ctx context.Context, requesterID string) ([]model.Booking, error) {
	var rows []bookingRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+bookingColumns+` FROM bookings b
		WHERE b.requester_id = ? ORDER BY b.created_at DESC, b.id`), requesterID)
	if err != nil {
		return nil, errors.Wrap(err, "find bookings by requester")
	}
	out := make([]model.Booking, 0, len(rows))
	for _, r := range rows {
		b, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := s.loadUnitIDs(ctx, s.db, out); err != nil {
		return nil, errors.Wrap(err, "load booking units")
	}
	return out, nil
}

func (s *SQLStore) Cancel(ctx context.Context, bookingID string, now time.Time) (*model.Booking, error) {
	var out *model.Booking
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE bookings SET status = 'cancelled', cancelled_at = ?
			WHERE id = ? AND status = 'confirmed'`), now.UTC(), bookingID)
		if err != nil {
			return errors.Wrap(err, "cancel booking")
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "cancel booking")
		} else if n == 0 {
			return ErrNotFound
		}
		b, err := s.getBooking(ctx, tx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, bookingID)
		if err != nil {
			return err
		}
		if len(b.UnitIDs) > 0 {
			// Units whose time has not come yet go back on offer; the rest
			// are parked as cancelled.
			query, args, err := sqlx.In(`UPDATE units SET status = 'available', updated_at = ?
				WHERE id IN (?) AND status = 'booked' AND (start_time IS NULL OR start_time > ?)`,
				now.UTC(), b.UnitIDs, now.UTC())
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
				return errors.Wrap(err, "release units")
			}
			query, args, err = sqlx.In(`UPDATE units SET status = 'cancelled', updated_at = ?
				WHERE id IN (?) AND status = 'booked'`, now.UTC(), b.UnitIDs)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
				return errors.Wrap(err, "park elapsed units")
			}
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
