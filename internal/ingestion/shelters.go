package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

const defaultSource = "import"

var requiredHeaders = []string{"name", "address", "lat", "lon", "is_verified", "capacity", "is_open_now", "source"}

// errSkip marks a row without the identifying name and address.
var errSkip = errors.New("name and address are required")

// RowError is a rejected CSV row. Row numbers count the header as row 1.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Batch is the outcome of parsing one shelter CSV.
type Batch struct {
	Shelters []models.Shelter
	Skipped  int
	Errors   []RowError
}

// ParseShelters reads a shelter CSV. Bad rows are collected in the batch;
// only an unreadable file or missing headers fail the whole parse.
func ParseShelters(r io.Reader, now time.Time) (*Batch, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("shelter file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required headers: %s", strings.Join(missing, ", "))
	}

	reader.FieldsPerRecord = len(header)
	batch := &Batch{}
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			batch.Errors = append(batch.Errors, RowError{Row: row, Err: err})
			continue
		}

		field := func(name string) string {
			if i, ok := index[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		sh, err := parseRow(field, now)
		switch {
		case errors.Is(err, errSkip):
			batch.Skipped++
		case err != nil:
			batch.Errors = append(batch.Errors, RowError{Row: row, Err: err})
		default:
			batch.Shelters = append(batch.Shelters, sh)
		}
	}
	return batch, nil
}

func parseRow(field func(string) string, now time.Time) (models.Shelter, error) {
	name, address := field("name"), field("address")
	if name == "" || address == "" {
		return models.Shelter{}, errSkip
	}

	lat, err := strconv.ParseFloat(field("lat"), 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return models.Shelter{}, fmt.Errorf("invalid latitude %q", field("lat"))
	}
	lon, err := strconv.ParseFloat(field("lon"), 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return models.Shelter{}, fmt.Errorf("invalid longitude %q", field("lon"))
	}

	verified, err := parseBool(field("is_verified"), false)
	if err != nil {
		return models.Shelter{}, err
	}
	open, err := parseBool(field("is_open_now"), true)
	if err != nil {
		return models.Shelter{}, err
	}

	var capacity *int
	if c := field("capacity"); c != "" && !strings.EqualFold(c, "null") {
		n, err := strconv.Atoi(c)
		if err != nil || n < 0 {
			return models.Shelter{}, fmt.Errorf("invalid capacity %q", c)
		}
		capacity = &n
	}

	shelterType := models.ShelterPublic
	if t := strings.ToUpper(field("shelter_type")); t != "" {
		switch models.ShelterType(t) {
		case models.ShelterPublic, models.ShelterPrivate, models.ShelterAdhoc:
			shelterType = models.ShelterType(t)
		default:
			return models.Shelter{}, fmt.Errorf("unknown shelter type %q", t)
		}
	}

	source := field("source")
	if source == "" {
		source = defaultSource
	}

	return models.Shelter{
		Name:       name,
		Type:       shelterType,
		Address:    address,
		Latitude:   lat,
		Longitude:  lon,
		Capacity:   capacity,
		IsVerified: verified,
		IsOpen:     open,
		Source:     source,
		CreatedAt:  now,
	}, nil
}

func parseBool(s string, def bool) (bool, error) {
	switch strings.ToLower(s) {
	case "":
		return def, nil
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}
