package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gosom/scrapemate"

	"github.com/hoanhv-vvt/thamdinh-extensions/deduper"
	"github.com/hoanhv-vvt/thamdinh-extensions/exiter"
	"github.com/hoanhv-vvt/thamdinh-extensions/gmaps"
)

const idSeparator = "#!#"

// Seed is one input line: an address and an optional caller id.
type Seed struct {
	ID      string
	Address string
}

// ParseSeeds reads one address per line. Blank lines and lines starting
// with '#' are ignored, an id may follow the address after "#!#".
// Repeated addresses are dropped when dedup is not nil.
func ParseSeeds(r io.Reader, dedup deduper.Deduper) ([]Seed, error) {
	var seeds []Seed

	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || (strings.HasPrefix(text, "#") && !strings.HasPrefix(text, idSeparator)) {
			continue
		}

		var seed Seed

		if before, after, ok := strings.Cut(text, idSeparator); ok {
			seed.Address = strings.TrimSpace(before)
			seed.ID = strings.TrimSpace(after)
		} else {
			seed.Address = text
		}

		if seed.Address == "" {
			return nil, fmt.Errorf("line %d: empty address", line)
		}

		if dedup != nil && !dedup.AddIfNotExists(context.Background(), strings.ToLower(seed.Address)) {
			continue
		}

		seeds = append(seeds, seed)
	}

	return seeds, scanner.Err()
}

func CreateSeedJobs(
	r io.Reader,
	maxImages int,
	dedup deduper.Deduper,
	exitMonitor exiter.Exiter,
	opts ...gmaps.ImageJobOptions,
) (jobs []scrapemate.IJob, err error) {
	seeds, err := ParseSeeds(r, dedup)
	if err != nil {
		return nil, err
	}

	for _, seed := range seeds {
		jobOpts := append([]gmaps.ImageJobOptions{}, opts...)

		if exitMonitor != nil {
			jobOpts = append(jobOpts, gmaps.WithExitMonitor(exitMonitor))
		}

		jobs = append(jobs, gmaps.NewImageJob(seed.ID, seed.Address, maxImages, jobOpts...))
	}

	return jobs, nil
}
