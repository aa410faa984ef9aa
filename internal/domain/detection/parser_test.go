package detection

import (
	"errors"
	"testing"
	"time"
)

const fullNotification = `{
	"Picture": {
		"NormalPic": {"Content": "aGVsbG8=", "PicName": "snap_001.jpg"},
		"Plate": {
			"BoundingBox": [100, 200, 300, 260],
			"Channel": 1,
			"Confidence": 92,
			"IsExist": true,
			"PlateColor": "Blue",
			"PlateNumber": "AB123CD",
			"PlateType": "Normal",
			"Region": "EU",
			"UploadNum": 3
		},
		"Vehicle": {
			"VehicleBoundingBox": [50, 80, 700, 500],
			"VehicleColor": "White",
			"VehicleSeries": "Unknown",
			"VehicleSign": "Toyota",
			"VehicleType": "LightTruck"
		},
		"SnapInfo": {
			"AccurateTime": "2024-03-01 14:05:09.123456",
			"AllowUser": false,
			"BlockUser": true,
			"BlockUserEndTime": "2025-01-01 00:00:00",
			"Direction": "Obverse",
			"TimeZone": 3
		}
	}
}`

func TestParse_FullNotification(t *testing.T) {
	event, err := Parse([]byte(fullNotification))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if event.Plate.Number != "AB123CD" {
		t.Errorf("plate number = %q, want AB123CD", event.Plate.Number)
	}
	if event.Plate.Confidence != 92 {
		t.Errorf("plate confidence = %d, want 92", event.Plate.Confidence)
	}
	if got, want := event.Plate.BBox, (BoundingBox{100, 200, 300, 260}); !equalBox(got, want) {
		t.Errorf("plate bbox = %v, want %v", got, want)
	}
	if got, want := event.Vehicle.BBox, (BoundingBox{50, 80, 700, 500}); !equalBox(got, want) {
		t.Errorf("vehicle bbox = %v, want %v", got, want)
	}
	if event.Vehicle.Type != "LightTruck" {
		t.Errorf("vehicle type = %q, want LightTruck", event.Vehicle.Type)
	}
	if event.Snap.Direction != "Obverse" {
		t.Errorf("direction = %q, want Obverse", event.Snap.Direction)
	}
	if !event.Snap.BlockUser {
		t.Error("block user should be true")
	}

	want := time.Date(2024, 3, 1, 14, 5, 9, 123456000, time.UTC)
	if !event.Snap.Time.Equal(want) {
		t.Errorf("snap time = %v, want %v", event.Snap.Time, want)
	}
	if event.Image.Content != "aGVsbG8=" {
		t.Errorf("image content = %q", event.Image.Content)
	}
}

// Missing optional nested sections must parse into zero-value substructures,
// never fail, as long as the three required fields are present.
func TestParse_Totality(t *testing.T) {
	minimal := `{
		"Picture": {
			"NormalPic": {"Content": "aGVsbG8="},
			"Plate": {"PlateNumber": "AB123CD"},
			"SnapInfo": {"AccurateTime": "2024-03-01 14:05:09.000001"}
		}
	}`

	event, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if event.Vehicle.Type != "" || event.Vehicle.BBox.Valid() {
		t.Errorf("vehicle section should be empty, got %+v", event.Vehicle)
	}
	if event.Plate.BBox.Valid() {
		t.Errorf("plate bbox should be absent, got %v", event.Plate.BBox)
	}
	if event.Snap.Direction != "" {
		t.Errorf("direction should be empty, got %q", event.Snap.Direction)
	}
}

func TestParse_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "no image content",
			body: `{"Picture": {
				"Plate": {"PlateNumber": "AB123CD"},
				"SnapInfo": {"AccurateTime": "2024-03-01 14:05:09.000001"}
			}}`,
		},
		{
			name: "no snap time",
			body: `{"Picture": {
				"NormalPic": {"Content": "aGVsbG8="},
				"Plate": {"PlateNumber": "AB123CD"}
			}}`,
		},
		{
			name: "no plate number",
			body: `{"Picture": {
				"NormalPic": {"Content": "aGVsbG8="},
				"SnapInfo": {"AccurateTime": "2024-03-01 14:05:09.000001"}
			}}`,
		},
		{
			name: "empty body",
			body: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			if !errors.Is(err, ErrMissingField) {
				t.Errorf("err = %v, want ErrMissingField", err)
			}
		})
	}
}

func TestParse_MalformedTimestamp(t *testing.T) {
	body := `{"Picture": {
		"NormalPic": {"Content": "aGVsbG8="},
		"Plate": {"PlateNumber": "AB123CD"},
		"SnapInfo": {"AccurateTime": "01/03/2024 14:05:09"}
	}}`

	_, err := Parse([]byte(body))
	if !errors.Is(err, ErrMalformedTimestamp) {
		t.Errorf("err = %v, want ErrMalformedTimestamp", err)
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"Picture": `))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("err = %v, want ErrMalformedPayload", err)
	}
}

func equalBox(a, b BoundingBox) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
