package matches

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	minNameLen        = 2
	maxNameLen        = 50
	maxTitleLen       = 100
	maxDescriptionLen = 500
	maxLocationLen    = 200
	maxCommentLen     = 500
	minPlayers        = 2
	maxPlayers        = 22
	maxPrice          = 1000
)

var (
	nameCharset = regexp.MustCompile(`^[a-zA-Z0-9\s\-_]+$`)
	scriptTags  = regexp.MustCompile(`(?is)<script\b.*?</script>`)
)

// Positions is the fixed position vocabulary.
var Positions = []string{"goalkeeper", "defense", "midfield", "attack"}

// Sanitize trims whitespace and strips script tags from user input.
func Sanitize(input string) string {
	return strings.TrimSpace(scriptTags.ReplaceAllString(input, ""))
}

// ValidatePlayerName checks the 2-50 character restricted-charset rule and
// returns the sanitized name.
func ValidatePlayerName(name string) (string, error) {
	clean := Sanitize(name)
	if len(clean) < minNameLen || len(clean) > maxNameLen {
		return "", fmt.Errorf("name must be between %d and %d characters", minNameLen, maxNameLen)
	}
	if !nameCharset.MatchString(clean) {
		return "", fmt.Errorf("name contains invalid characters")
	}
	return clean, nil
}

func ValidTeam(team string) bool {
	return team == TeamA || team == TeamB
}

func ValidPosition(position string) bool {
	for _, p := range Positions {
		if p == position {
			return true
		}
	}
	return false
}

func ValidTitle(title string) bool {
	return len(Sanitize(title)) <= maxTitleLen
}

func ValidDescription(description string) bool {
	return len(Sanitize(description)) <= maxDescriptionLen
}

func ValidLocation(location string) bool {
	return len(Sanitize(location)) <= maxLocationLen
}

func ValidCommentText(text string) bool {
	clean := Sanitize(text)
	return len(clean) >= 1 && len(clean) <= maxCommentLen
}

func ValidPrice(price float64) bool {
	return price >= 0 && price <= maxPrice
}

func ValidMaxPlayers(n int64) bool {
	return n >= minPlayers && n <= maxPlayers
}

func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
