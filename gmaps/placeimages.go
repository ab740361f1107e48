package gmaps

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

// PlaceImages is the result row of one searched address.
type PlaceImages struct {
	InputID          string   `json:"input_id"`
	Address          string   `json:"address"`
	Link             string   `json:"link"`
	Mode             string   `json:"mode"`
	LocationsVisited int      `json:"locations_visited"`
	Images           []string `json:"images"`
	ElapsedMS        int64    `json:"elapsed_ms"`
	Error            string   `json:"error,omitempty"`
}

func NewPlaceImages(inputID, address string, resp harvest.Response, err error) *PlaceImages {
	ans := PlaceImages{
		InputID:          inputID,
		Address:          address,
		Link:             harvest.SearchURL(address),
		Mode:             string(resp.Mode),
		LocationsVisited: resp.LocationsVisited,
		Images:           resp.ImageURLs,
		ElapsedMS:        resp.Elapsed.Milliseconds(),
	}

	if ans.Images == nil {
		ans.Images = []string{}
	}

	if err != nil {
		ans.Error = err.Error()
	}

	return &ans
}

func (p *PlaceImages) Elapsed() time.Duration {
	return time.Duration(p.ElapsedMS) * time.Millisecond
}

func (p *PlaceImages) CsvHeaders() []string {
	return []string{
		"input_id",
		"address",
		"link",
		"mode",
		"locations_visited",
		"image_count",
		"images",
		"error",
	}
}

func (p *PlaceImages) CsvRow() []string {
	return []string{
		p.InputID,
		p.Address,
		p.Link,
		p.Mode,
		strconv.Itoa(p.LocationsVisited),
		strconv.Itoa(len(p.Images)),
		stringify(p.Images),
		p.Error,
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		d, _ := json.Marshal(v)
		return string(d)
	}
}
