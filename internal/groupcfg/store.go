// Package groupcfg provides the flat per-group moderation configuration.
// One JSON document per group, re-read on every event so external edits
// take effect immediately.
package groupcfg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GroupConfig is the moderation policy for one group.
type GroupConfig struct {
	X9           bool                      `json:"x9"`
	AntiFake     bool                      `json:"antifake"`
	AntiPT       bool                      `json:"antipt"`
	Blacklist    map[string]BlacklistEntry `json:"blacklist,omitempty"`
	Welcome      bool                      `json:"bemvindo"`
	WelcomeText  string                    `json:"textbv,omitempty"`
	WelcomeMedia MediaConfig               `json:"welcome,omitempty"`
	Exit         ExitConfig                `json:"exit,omitempty"`
}

// BlacklistEntry records why a participant is banned from the group.
type BlacklistEntry struct {
	Reason string `json:"reason"`
}

// MediaConfig holds the welcome image setting: a direct URL, or the
// sentinel "banner" for a generated banner image.
type MediaConfig struct {
	Image string `json:"image,omitempty"`
}

// ExitConfig holds the leave-message settings. Exit images are direct URLs
// only; there is no generated banner for exits.
type ExitConfig struct {
	Enabled bool   `json:"enabled"`
	Text    string `json:"text,omitempty"`
	Image   string `json:"image,omitempty"`
}

// BannerSentinel marks a welcome image that should be generated instead of
// fetched from a URL.
const BannerSentinel = "banner"

// Store reads and writes per-group config documents in a directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create group config dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load reads the config for a group fresh from disk. A missing or
// unparseable document returns false: no policy is configured.
func (s *Store) Load(groupID string) (*GroupConfig, bool) {
	data, err := os.ReadFile(s.path(groupID))
	if err != nil {
		return nil, false
	}
	var cfg GroupConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, false
	}
	return &cfg, true
}

// Save writes the config for a group.
func (s *Store) Save(groupID string, cfg *GroupConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(groupID), data, 0644)
}

// Delete removes the config for a group. Deleting a missing config is not
// an error.
func (s *Store) Delete(groupID string) error {
	err := os.Remove(s.path(groupID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) path(groupID string) string {
	safe := strings.ReplaceAll(groupID, "@", "_")
	safe = strings.ReplaceAll(safe, ":", "_")
	// Strip path separators and traversal components to prevent path injection.
	safe = strings.ReplaceAll(safe, "/", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	safe = strings.ReplaceAll(safe, "..", "_")
	return filepath.Join(s.dir, filepath.Base(safe)+".json")
}
