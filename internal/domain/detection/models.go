package detection

import (
	"time"
)

// VehicleTypeMotorcycle is excluded from alert delivery.
const VehicleTypeMotorcycle = "Motorcycle"

// BoundingBox is an ordered (x1, y1, x2, y2) tuple in pixel coordinates of
// the source frame, top-left then bottom-right.
type BoundingBox []int

func (b BoundingBox) Valid() bool {
	return len(b) == 4
}

type Plate struct {
	BBox       BoundingBox `json:"bbox,omitempty"`
	Channel    int         `json:"channel,omitempty"`
	Confidence int         `json:"confidence,omitempty"`
	IsExist    bool        `json:"is_exist,omitempty"`
	Color      string      `json:"color,omitempty"`
	Number     string      `json:"number,omitempty"`
	Type       string      `json:"type,omitempty"`
	Region     string      `json:"region,omitempty"`
	UploadNum  int         `json:"upload_num,omitempty"`
}

type Vehicle struct {
	BBox   BoundingBox `json:"bbox,omitempty"`
	Color  string      `json:"color,omitempty"`
	Series string      `json:"series,omitempty"`
	Sign   string      `json:"sign,omitempty"`
	Type   string      `json:"type,omitempty"`
}

type Snap struct {
	Time             time.Time `json:"time"`
	Direction        string    `json:"direction,omitempty"`
	AllowUser        bool      `json:"allow_user,omitempty"`
	AllowUserEndTime string    `json:"allow_user_end_time,omitempty"`
	BlockUser        bool      `json:"block_user,omitempty"`
	BlockUserEndTime string    `json:"block_user_end_time,omitempty"`
	TimeZone         int       `json:"timezone,omitempty"`
}

type Image struct {
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Event is the normalized form of a camera notification, before persistence.
type Event struct {
	Plate   Plate   `json:"plate"`
	Vehicle Vehicle `json:"vehicle"`
	Snap    Snap    `json:"snap"`
	Image   Image   `json:"image"`
}

// Record is a stored detection. Records are immutable after insert; ID is
// assigned by the store and strictly increasing, which is the only ordering
// contract between ingestion and delivery.
type Record struct {
	ID        int64     `json:"id"`
	Plate     Plate     `json:"plate"`
	Vehicle   Vehicle   `json:"vehicle"`
	Snap      Snap      `json:"snap"`
	ImagePath string    `json:"image_path"`
	CreatedAt time.Time `json:"created_at"`
}
