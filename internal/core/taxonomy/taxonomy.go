package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Channel is a canonical acquisition bucket.
type Channel string

const (
	ChannelOrganic  Channel = "organic"
	ChannelPaid     Channel = "paid"
	ChannelDirect   Channel = "direct"
	ChannelEmail    Channel = "email"
	ChannelReferral Channel = "referral"
	ChannelOther    Channel = "other"
)

// Channels lists every bucket in display order.
var Channels = []Channel{ChannelOrganic, ChannelPaid, ChannelDirect, ChannelEmail, ChannelReferral, ChannelOther}

// ValidChannel reports whether c is one of the canonical buckets.
func ValidChannel(c Channel) bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Classifier maps a free-text source label to its canonical channel.
type Classifier interface {
	Classify(raw string) Channel
}

var defaultTable = map[string]Channel{
	"google":     ChannelOrganic,
	"bing":       ChannelOrganic,
	"duckduckgo": ChannelOrganic,
	"yahoo":      ChannelOrganic,
	"facebook":   ChannelPaid,
	"instagram":  ChannelPaid,
	"linkedin":   ChannelPaid,
	"twitter":    ChannelPaid,
	"tiktok":     ChannelPaid,
	"direct":     ChannelDirect,
	"email":      ChannelEmail,
	"newsletter": ChannelEmail,
	"referral":   ChannelReferral,
}

// StaticClassifier is an immutable lookup table. The zero value classifies
// everything as ChannelOther; use NewStaticClassifier for the default table.
type StaticClassifier struct {
	table map[string]Channel
}

// NewStaticClassifier returns a classifier over the built-in table merged
// with overrides. Override keys are normalized the same way lookups are.
func NewStaticClassifier(overrides map[string]Channel) *StaticClassifier {
	table := make(map[string]Channel, len(defaultTable)+len(overrides))
	for label, ch := range defaultTable {
		table[label] = ch
	}
	for label, ch := range overrides {
		table[normalizeLabel(label)] = ch
	}
	return &StaticClassifier{table: table}
}

// Classify is case-insensitive and ignores surrounding whitespace. Unknown or
// empty labels are ChannelOther.
func (c *StaticClassifier) Classify(raw string) Channel {
	if c == nil {
		return ChannelOther
	}
	if ch, ok := c.table[normalizeLabel(raw)]; ok {
		return ch
	}
	return ChannelOther
}

// overrideFile is the on-disk YAML shape:
//
//	channels:
//	  organic: [ecosia, brave]
//	  paid: [reddit_ads]
type overrideFile struct {
	Channels map[string][]string `yaml:"channels"`
}

// LoadFile builds a classifier from the default table plus the overrides in
// path. An empty path yields the default table.
func LoadFile(path string) (*StaticClassifier, error) {
	if path == "" {
		return NewStaticClassifier(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy file %s: %w", path, err)
	}
	overrides, err := parseOverrides(data)
	if err != nil {
		return nil, fmt.Errorf("parsing taxonomy file %s: %w", path, err)
	}
	return NewStaticClassifier(overrides), nil
}

func parseOverrides(data []byte) (map[string]Channel, error) {
	var raw overrideFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	overrides := make(map[string]Channel)
	for name, labels := range raw.Channels {
		ch := Channel(strings.ToLower(strings.TrimSpace(name)))
		if !ValidChannel(ch) {
			return nil, fmt.Errorf("unknown channel %q", name)
		}
		for _, label := range labels {
			key := normalizeLabel(label)
			if key == "" {
				continue
			}
			if prev, dup := overrides[key]; dup && prev != ch {
				return nil, fmt.Errorf("label %q mapped to both %s and %s", label, prev, ch)
			}
			overrides[key] = ch
		}
	}
	return overrides, nil
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
