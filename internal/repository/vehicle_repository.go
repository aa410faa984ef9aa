package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"safewheels-anpr/internal/domain/detection"
)

type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// VehicleRecord is the persisted shape of a detection. Rows are append-only:
// nothing ever updates or deletes them, and the serial id is the ordering
// contract the delivery worker depends on.
type VehicleRecord struct {
	ID int64 `gorm:"primaryKey"`

	PlateNumber     string `gorm:"not null"`
	PlateRegion     *string
	PlateType       *string
	PlateColor      *string
	PlateBBox       datatypes.JSONSlice[int] `gorm:"column:plate_bbox;type:jsonb"`
	PlateChannel    *int
	PlateConfidence *int
	PlateIsExist    *bool
	PlateUploadNum  *int

	VehicleType   *string
	VehicleColor  *string
	VehicleSign   *string
	VehicleSeries *string
	VehicleBBox   datatypes.JSONSlice[int] `gorm:"column:vehicle_bbox;type:jsonb"`

	DetectionTime    time.Time `gorm:"not null"`
	Direction        *string
	AllowUser        *bool
	AllowUserEndTime *string
	BlockUser        *bool
	BlockUserEndTime *string
	Timezone         *int

	ImagePath string `gorm:"not null"`
	CreatedAt time.Time
}

func (VehicleRecord) TableName() string {
	return "vehicles"
}

// Insert stores a new detection and fills in the assigned id and creation
// time. The id comes from the table's serial column, so concurrent inserts
// serialize through the storage engine.
func (r *VehicleRepository) Insert(ctx context.Context, rec *detection.Record) error {
	row := toRow(rec)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}

	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return nil
}

// ListAfter returns every record with id > minID, ascending by id, with no
// limit: the delivery loop drains whatever accumulated between polls.
func (r *VehicleRepository) ListAfter(ctx context.Context, minID int64) ([]detection.Record, error) {
	var rows []VehicleRecord
	err := r.db.WithContext(ctx).
		Where("id > ?", minID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]detection.Record, 0, len(rows))
	for i := range rows {
		records = append(records, fromRow(&rows[i]))
	}
	return records, nil
}

func (r *VehicleRepository) GetByID(ctx context.Context, id int64) (*detection.Record, error) {
	var row VehicleRecord
	err := r.db.WithContext(ctx).First(&row, id).Error
	if err != nil {
		return nil, err
	}
	rec := fromRow(&row)
	return &rec, nil
}

// FindRecords serves the operator audit API. Filters are optional; results
// come newest first and are capped at 100 per page.
func (r *VehicleRepository) FindRecords(ctx context.Context, plate *string, from, to *time.Time, limit, offset int) ([]detection.Record, error) {
	query := r.db.WithContext(ctx).Model(&VehicleRecord{})

	if plate != nil {
		query = query.Where("plate_number = ?", *plate)
	}
	if from != nil {
		query = query.Where("detection_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("detection_time <= ?", *to)
	}

	query = query.Order("detection_time DESC")

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	query = query.Limit(limit)
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []VehicleRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]detection.Record, 0, len(rows))
	for i := range rows {
		records = append(records, fromRow(&rows[i]))
	}
	return records, nil
}

func toRow(rec *detection.Record) VehicleRecord {
	row := VehicleRecord{
		PlateNumber:   rec.Plate.Number,
		DetectionTime: rec.Snap.Time,
		ImagePath:     rec.ImagePath,
		CreatedAt:     time.Now(),
	}

	if rec.Plate.Region != "" {
		row.PlateRegion = &rec.Plate.Region
	}
	if rec.Plate.Type != "" {
		row.PlateType = &rec.Plate.Type
	}
	if rec.Plate.Color != "" {
		row.PlateColor = &rec.Plate.Color
	}
	if rec.Plate.BBox.Valid() {
		row.PlateBBox = datatypes.JSONSlice[int](rec.Plate.BBox)
	}
	if rec.Plate.Channel != 0 {
		row.PlateChannel = &rec.Plate.Channel
	}
	if rec.Plate.Confidence != 0 {
		row.PlateConfidence = &rec.Plate.Confidence
	}
	if rec.Plate.IsExist {
		row.PlateIsExist = &rec.Plate.IsExist
	}
	if rec.Plate.UploadNum != 0 {
		row.PlateUploadNum = &rec.Plate.UploadNum
	}

	if rec.Vehicle.Type != "" {
		row.VehicleType = &rec.Vehicle.Type
	}
	if rec.Vehicle.Color != "" {
		row.VehicleColor = &rec.Vehicle.Color
	}
	if rec.Vehicle.Sign != "" {
		row.VehicleSign = &rec.Vehicle.Sign
	}
	if rec.Vehicle.Series != "" {
		row.VehicleSeries = &rec.Vehicle.Series
	}
	if rec.Vehicle.BBox.Valid() {
		row.VehicleBBox = datatypes.JSONSlice[int](rec.Vehicle.BBox)
	}

	if rec.Snap.Direction != "" {
		row.Direction = &rec.Snap.Direction
	}
	if rec.Snap.AllowUser {
		row.AllowUser = &rec.Snap.AllowUser
	}
	if rec.Snap.AllowUserEndTime != "" {
		row.AllowUserEndTime = &rec.Snap.AllowUserEndTime
	}
	if rec.Snap.BlockUser {
		row.BlockUser = &rec.Snap.BlockUser
	}
	if rec.Snap.BlockUserEndTime != "" {
		row.BlockUserEndTime = &rec.Snap.BlockUserEndTime
	}
	if rec.Snap.TimeZone != 0 {
		row.Timezone = &rec.Snap.TimeZone
	}

	return row
}

func fromRow(row *VehicleRecord) detection.Record {
	rec := detection.Record{
		ID: row.ID,
		Plate: detection.Plate{
			Number: row.PlateNumber,
			BBox:   detection.BoundingBox(row.PlateBBox),
		},
		Vehicle: detection.Vehicle{
			BBox: detection.BoundingBox(row.VehicleBBox),
		},
		Snap: detection.Snap{
			Time: row.DetectionTime,
		},
		ImagePath: row.ImagePath,
		CreatedAt: row.CreatedAt,
	}

	if row.PlateRegion != nil {
		rec.Plate.Region = *row.PlateRegion
	}
	if row.PlateType != nil {
		rec.Plate.Type = *row.PlateType
	}
	if row.PlateColor != nil {
		rec.Plate.Color = *row.PlateColor
	}
	if row.PlateChannel != nil {
		rec.Plate.Channel = *row.PlateChannel
	}
	if row.PlateConfidence != nil {
		rec.Plate.Confidence = *row.PlateConfidence
	}
	if row.PlateIsExist != nil {
		rec.Plate.IsExist = *row.PlateIsExist
	}
	if row.PlateUploadNum != nil {
		rec.Plate.UploadNum = *row.PlateUploadNum
	}

	if row.VehicleType != nil {
		rec.Vehicle.Type = *row.VehicleType
	}
	if row.VehicleColor != nil {
		rec.Vehicle.Color = *row.VehicleColor
	}
	if row.VehicleSign != nil {
		rec.Vehicle.Sign = *row.VehicleSign
	}
	if row.VehicleSeries != nil {
		rec.Vehicle.Series = *row.VehicleSeries
	}

	if row.Direction != nil {
		rec.Snap.Direction = *row.Direction
	}
	if row.AllowUser != nil {
		rec.Snap.AllowUser = *row.AllowUser
	}
	if row.AllowUserEndTime != nil {
		rec.Snap.AllowUserEndTime = *row.AllowUserEndTime
	}
	if row.BlockUser != nil {
		rec.Snap.BlockUser = *row.BlockUser
	}
	if row.BlockUserEndTime != nil {
		rec.Snap.BlockUserEndTime = *row.BlockUserEndTime
	}
	if row.Timezone != nil {
		rec.Snap.TimeZone = *row.Timezone
	}

	return rec
}
