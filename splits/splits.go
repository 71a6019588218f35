// Package splits implements the rule engine that sorts the inbox
// into user-defined tabs, plus the persistence of the rule set.
package splits

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"splitmail/models"
	"splitmail/utils"
)

// EnvOverride names the environment variable that, when set,
// supplies the whole rule set as a JSON document and makes it
// read-only.
const EnvOverride = "SPLITMAIL_SPLITS"

// ReadOnly reports whether the rule set comes from the environment
func ReadOnly() bool {
	return os.Getenv(EnvOverride) != ""
}

// Load reads the rule set. The environment override wins over the
// file; a missing file is an empty rule set, not an error.
func Load(path string) (models.SplitsConfig, error) {
	var cfg models.SplitsConfig

	if raw := os.Getenv(EnvOverride); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %v", EnvOverride, err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading splits file: %v", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing splits file: %v", err)
	}
	return cfg, nil
}

// Save writes the rule set to disk. Refused when the environment
// override is active.
func Save(path string, cfg models.SplitsConfig) error {
	if ReadOnly() {
		return fmt.Errorf("splits are read-only while %s is set", EnvOverride)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding splits: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing splits file: %v", err)
	}
	return nil
}

// MatchesFilter tests one filter against one message
func MatchesFilter(f models.SplitFilter, email *models.Email) bool {
	switch f.Kind {
	case models.FilterFrom:
		for _, addr := range email.From {
			if utils.GlobMatch(f.Pattern, addr.Email) {
				return true
			}
		}
		return false
	case models.FilterTo:
		for _, addr := range email.RecipientAddresses() {
			if utils.GlobMatch(f.Pattern, addr) {
				return true
			}
		}
		return false
	case models.FilterSubject:
		re, err := regexp.Compile("(?i)" + f.Pattern)
		if err != nil {
			// Bad pattern degrades to a substring test.
			return strings.Contains(strings.ToLower(email.Subject), strings.ToLower(f.Pattern))
		}
		return re.MatchString(email.Subject)
	case models.FilterCalendar, models.FilterHeader:
		return email.HasCalendar()
	}
	return false
}

// MatchesSplit tests a whole split. A split with no filters never
// matches anything.
func MatchesSplit(s models.SplitInbox, email *models.Email) bool {
	if len(s.Filters) == 0 {
		return false
	}
	if s.MatchAll {
		for _, f := range s.Filters {
			if !MatchesFilter(f, email) {
				return false
			}
		}
		return true
	}
	for _, f := range s.Filters {
		if MatchesFilter(f, email) {
			return true
		}
	}
	return false
}

// MatchesAny reports whether any split claims the message
func MatchesAny(splits []models.SplitInbox, email *models.Email) bool {
	for _, s := range splits {
		if MatchesSplit(s, email) {
			return true
		}
	}
	return false
}

// FilterBySplit keeps the messages belonging to the given split id.
// The reserved primary id selects messages no split claims; an
// unknown id selects nothing.
func FilterBySplit(emails []models.Email, splitID string, splits []models.SplitInbox) []models.Email {
	out := make([]models.Email, 0, len(emails))

	if splitID == models.PrimarySplitID {
		for i := range emails {
			if !MatchesAny(splits, &emails[i]) {
				out = append(out, emails[i])
			}
		}
		return out
	}

	for _, s := range splits {
		if s.ID != splitID {
			continue
		}
		for i := range emails {
			if MatchesSplit(s, &emails[i]) {
				out = append(out, emails[i])
			}
		}
		return out
	}
	return out
}

// FromIdentities derives a starter rule set from the account's
// sending identities: every secondary address becomes a split
// collecting mail delivered to it. Used on first start when no
// rule set exists yet.
func FromIdentities(identities []models.Identity, primaryEmail string) []models.SplitInbox {
	var out []models.SplitInbox
	for _, id := range identities {
		if id.Email == "" || strings.EqualFold(id.Email, primaryEmail) {
			continue
		}
		out = append(out, models.SplitInbox{
			ID:   uuid.New().String(),
			Name: splitNameFor(id),
			Filters: []models.SplitFilter{
				{Kind: models.FilterTo, Pattern: id.Email},
			},
		})
	}
	return out
}

func splitNameFor(id models.Identity) string {
	if id.Name != "" {
		return id.Name
	}
	local, _, _ := strings.Cut(id.Email, "@")
	if _, tag, ok := strings.Cut(local, "+"); ok && tag != "" {
		return tag
	}
	return local
}
