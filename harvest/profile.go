package harvest

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidProfile = errors.New("invalid site profile")

// Role is the meaning of a selector or pattern inside a site profile.
type Role string

const (
	// RoleResult selects clickable entries of a multi-result listing.
	RoleResult Role = "result"
	// RolePanel selects an element that is present once a detail panel loaded.
	RolePanel Role = "panel"
	// RoleImage selects candidate image elements.
	RoleImage Role = "image"
	// RoleReject is a regexp matched against image URLs that are not content.
	RoleReject Role = "reject"
	// RoleWide is a regexp matched against panorama and thumbnail URLs.
	RoleWide Role = "wide"
)

type Rule struct {
	Pattern string `yaml:"pattern"`
	Role    Role   `yaml:"role"`
}

// Profile is the site specific table of selectors and URL patterns.
// Rules of the same role keep their order, which is the priority order.
type Profile struct {
	Name  string `yaml:"name"`
	Rules []Rule `yaml:"rules"`
}

func DefaultProfile() Profile {
	return Profile{
		Name: "google-maps",
		Rules: []Rule{
			{Pattern: `div[role="article"] a[href*="/maps/place/"]`, Role: RoleResult},
			{Pattern: `a[aria-label][href*="/maps/place/"]`, Role: RoleResult},
			{Pattern: `div.Nv2PK a[href*="/maps/place/"]`, Role: RoleResult},

			{Pattern: `[role="main"]`, Role: RolePanel},
			{Pattern: `.m6QErb`, Role: RolePanel},
			{Pattern: `[aria-label*="Photos"]`, Role: RolePanel},

			{Pattern: `img[src*="googleusercontent"]`, Role: RoleImage},
			{Pattern: `img[src*="ggpht"]`, Role: RoleImage},
			{Pattern: `img[src*="googleapis"]`, Role: RoleImage},
			{Pattern: `img[src*="streetviewpixels"]`, Role: RoleImage},

			{Pattern: `logo|icon|marker|branding|/maps/vt/|=s0|=w48|=h48`, Role: RoleReject},
			{Pattern: `streetview|thumbnail`, Role: RoleWide},
		},
	}
}

// LoadProfile reads a profile from a yaml file. The file replaces the
// default table completely.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	if _, err := p.Compile(); err != nil {
		return Profile{}, err
	}

	return p, nil
}

func (p Profile) Patterns(role Role) []string {
	var ans []string

	for _, r := range p.Rules {
		if r.Role == role {
			ans = append(ans, r.Pattern)
		}
	}

	return ans
}

// CompiledProfile is a validated profile ready for extraction.
type CompiledProfile struct {
	Name          string
	ResultSelects []string
	PanelSelects  []string
	// ImageSelector is the union of all image selectors.
	ImageSelector string
	Reject        *regexp.Regexp
	Wide          *regexp.Regexp
}

func (p Profile) Compile() (*CompiledProfile, error) {
	for i, r := range p.Rules {
		switch r.Role {
		case RoleResult, RolePanel, RoleImage, RoleReject, RoleWide:
		default:
			return nil, fmt.Errorf("%w: rule %d has unknown role %q", ErrInvalidProfile, i, r.Role)
		}

		if strings.TrimSpace(r.Pattern) == "" {
			return nil, fmt.Errorf("%w: rule %d has an empty pattern", ErrInvalidProfile, i)
		}
	}

	ans := CompiledProfile{
		Name:          p.Name,
		ResultSelects: p.Patterns(RoleResult),
		PanelSelects:  p.Patterns(RolePanel),
		ImageSelector: strings.Join(p.Patterns(RoleImage), ", "),
	}

	if ans.ImageSelector == "" {
		return nil, fmt.Errorf("%w: no image selectors", ErrInvalidProfile)
	}

	var err error

	ans.Reject, err = compileAlternation(p.Patterns(RoleReject))
	if err != nil {
		return nil, err
	}

	ans.Wide, err = compileAlternation(p.Patterns(RoleWide))
	if err != nil {
		return nil, err
	}

	return &ans, nil
}

// compileAlternation joins patterns into one case-insensitive regexp.
// A nil regexp never matches.
func compileAlternation(patterns []string) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	expr := "(?i)(?:" + strings.Join(patterns, ")|(?:") + ")"

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	return re, nil
}
