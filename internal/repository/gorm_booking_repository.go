package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/iliyamo/gym-booking/internal/model"
)

// Postgres error codes the repository maps onto ErrConflict.
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// BookingRow is the gorm mapping of the bookings table in Postgres.
type BookingRow struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	SeriesID    *string   `gorm:"type:varchar(64);index"`
	Title       string    `gorm:"type:varchar(255);not null"`
	Description string    `gorm:"type:text;not null;default:''"`
	StartTime   time.Time `gorm:"type:timestamptz;not null;index:idx_bookings_resource_start,priority:2"`
	EndTime     time.Time `gorm:"type:timestamptz;not null"`
	ResourceID  string    `gorm:"type:varchar(64);not null;index:idx_bookings_resource_start,priority:1"`
	MemberID    *string   `gorm:"type:varchar(64);index"`
	Type        string    `gorm:"type:varchar(32);not null;default:'session'"`
	Status      string    `gorm:"type:varchar(16);not null;default:'confirmed'"`
	Color       string    `gorm:"type:varchar(32);not null"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;autoUpdateTime:false"`
}

// TableName pins the table name regardless of naming strategy.
func (BookingRow) TableName() string { return "bookings" }

// GormBookingRepo stores bookings in Postgres through gorm.  Unlike the
// other engines it is backed by an exclusion constraint (installed by
// database.NewPostgresDB), so an overlapping write that slips past the
// service's lock is still rejected with ErrConflict.
type GormBookingRepo struct {
	db *gorm.DB
}

func NewGormBookingRepo(db *gorm.DB) *GormBookingRepo {
	return &GormBookingRepo{db: db}
}

func (r *GormBookingRepo) List(ctx context.Context) ([]model.Booking, error) {
	var rows []BookingRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *GormBookingRepo) Get(ctx context.Context, id string) (model.Booking, error) {
	var row BookingRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Booking{}, ErrNotFound
		}
		return model.Booking{}, err
	}
	return row.toModel(), nil
}

func (r *GormBookingRepo) Insert(ctx context.Context, b model.Booking) error {
	row := fromModel(b)
	return translatePgError(r.db.WithContext(ctx).Create(&row).Error)
}

// Update saves every column.  Zero-valued fields are written too, which is
// why Select("*") is used instead of Updates with a struct.
func (r *GormBookingRepo) Update(ctx context.Context, b model.Booking) error {
	row := fromModel(b)
	res := r.db.WithContext(ctx).Model(&BookingRow{}).Where("id = ?", b.ID).Select("*").Omit("id", "created_at").Updates(&row)
	if err := translatePgError(res.Error); err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func translatePgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgExclusionViolation:
			return ErrConflict
		}
	}
	return err
}

func fromModel(b model.Booking) BookingRow {
	return BookingRow{
		ID:          b.ID,
		SeriesID:    b.SeriesID,
		Title:       b.Title,
		Description: b.Description,
		StartTime:   b.StartTime.UTC(),
		EndTime:     b.EndTime.UTC(),
		ResourceID:  b.ResourceID,
		MemberID:    b.MemberID,
		Type:        b.Type,
		Status:      string(b.Status),
		Color:       b.Color,
		CreatedAt:   b.CreatedAt.UTC(),
		UpdatedAt:   b.UpdatedAt.UTC(),
	}
}

func (row BookingRow) toModel() model.Booking {
	return model.Booking{
		ID:          row.ID,
		SeriesID:    row.SeriesID,
		Title:       row.Title,
		Description: row.Description,
		StartTime:   row.StartTime.UTC(),
		EndTime:     row.EndTime.UTC(),
		ResourceID:  row.ResourceID,
		MemberID:    row.MemberID,
		Type:        row.Type,
		Status:      model.BookingStatus(row.Status),
		Color:       row.Color,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}
