package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrMissingField       = errors.New("missing required field")
)

// snapTimeLayout matches Dahua's AccurateTime, e.g. "2024-03-01 14:05:09.123456".
const snapTimeLayout = "2006-01-02 15:04:05.000000"

// Wire types for the Dahua ITSAPI TollgateInfo notification. Only the
// Picture envelope is consumed; everything else in the body is ignored.
type notification struct {
	Picture pictureData `json:"Picture"`
}

type pictureData struct {
	NormalPic normalPicData `json:"NormalPic"`
	Plate     plateData     `json:"Plate"`
	Vehicle   vehicleData   `json:"Vehicle"`
	SnapInfo  snapInfoData  `json:"SnapInfo"`
}

type normalPicData struct {
	Content string `json:"Content"`
	PicName string `json:"PicName"`
}

type plateData struct {
	BoundingBox []int  `json:"BoundingBox"`
	Channel     int    `json:"Channel"`
	Confidence  int    `json:"Confidence"`
	IsExist     bool   `json:"IsExist"`
	PlateColor  string `json:"PlateColor"`
	PlateNumber string `json:"PlateNumber"`
	PlateType   string `json:"PlateType"`
	Region      string `json:"Region"`
	UploadNum   int    `json:"UploadNum"`
}

type vehicleData struct {
	VehicleBoundingBox []int  `json:"VehicleBoundingBox"`
	VehicleColor       string `json:"VehicleColor"`
	VehicleSeries      string `json:"VehicleSeries"`
	VehicleSign        string `json:"VehicleSign"`
	VehicleType        string `json:"VehicleType"`
}

type snapInfoData struct {
	AccurateTime     string `json:"AccurateTime"`
	AllowUser        bool   `json:"AllowUser"`
	AllowUserEndTime string `json:"AllowUserEndTime"`
	BlockUser        bool   `json:"BlockUser"`
	BlockUserEndTime string `json:"BlockUserEndTime"`
	Direction        string `json:"Direction"`
	TimeZone         int    `json:"TimeZone"`
}

// Parse normalizes a raw TollgateInfo body into an Event. Missing nested
// sections yield zero-value substructures, not errors; the only hard
// requirements are the image content, the snapshot time and the plate
// number, which storage and delivery depend on.
func Parse(raw []byte) (Event, error) {
	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	pic := n.Picture
	event := Event{
		Plate: Plate{
			BBox:       BoundingBox(pic.Plate.BoundingBox),
			Channel:    pic.Plate.Channel,
			Confidence: pic.Plate.Confidence,
			IsExist:    pic.Plate.IsExist,
			Color:      pic.Plate.PlateColor,
			Number:     pic.Plate.PlateNumber,
			Type:       pic.Plate.PlateType,
			Region:     pic.Plate.Region,
			UploadNum:  pic.Plate.UploadNum,
		},
		Vehicle: Vehicle{
			BBox:   BoundingBox(pic.Vehicle.VehicleBoundingBox),
			Color:  pic.Vehicle.VehicleColor,
			Series: pic.Vehicle.VehicleSeries,
			Sign:   pic.Vehicle.VehicleSign,
			Type:   pic.Vehicle.VehicleType,
		},
		Snap: Snap{
			Direction:        pic.SnapInfo.Direction,
			AllowUser:        pic.SnapInfo.AllowUser,
			AllowUserEndTime: pic.SnapInfo.AllowUserEndTime,
			BlockUser:        pic.SnapInfo.BlockUser,
			BlockUserEndTime: pic.SnapInfo.BlockUserEndTime,
			TimeZone:         pic.SnapInfo.TimeZone,
		},
		Image: Image{
			Content: pic.NormalPic.Content,
			Name:    pic.NormalPic.PicName,
		},
	}

	if ts := pic.SnapInfo.AccurateTime; ts != "" {
		t, err := time.Parse(snapTimeLayout, ts)
		if err != nil {
			return Event{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, ts)
		}
		event.Snap.Time = t
	}

	if event.Image.Content == "" {
		return Event{}, fmt.Errorf("%w: image content", ErrMissingField)
	}
	if event.Snap.Time.IsZero() {
		return Event{}, fmt.Errorf("%w: snap time", ErrMissingField)
	}
	if event.Plate.Number == "" {
		return Event{}, fmt.Errorf("%w: plate number", ErrMissingField)
	}

	return event, nil
}
