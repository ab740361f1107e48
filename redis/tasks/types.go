package tasks

import (
	"errors"

	"github.com/hoanhv-vvt/thamdinh-extensions/harvest"
)

// Task types
const (
	TypeHarvestImages = "harvest:images"
	TypeHealthCheck   = "health:check"
)

var ErrInvalidPayload = errors.New("invalid payload")

// HarvestPayload asks for the images of one address.
type HarvestPayload struct {
	JobID     string `json:"job_id"`
	Address   string `json:"address"`
	MaxImages int    `json:"max_images"`
}

func (p *HarvestPayload) Validate() error {
	switch {
	case p.JobID == "":
		return errors.New("missing job id")
	case p.Address == "":
		return errors.New("missing address")
	case p.MaxImages < 0:
		return errors.New("max images must not be negative")
	}

	return nil
}

// Normalize caps MaxImages at harvest.MaxImagesLimit.
func (p *HarvestPayload) Normalize() {
	p.MaxImages = harvest.ClampMaxImages(p.MaxImages)
}
