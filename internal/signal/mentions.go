package signal

import "regexp"

// Discord role IDs are snowflakes; anything shorter than six digits in
// free-form text is treated as ordinary prose.
var roleIDPattern = regexp.MustCompile(`\d{6,}`)

// ResolveMentionRoles builds the allow-list of mentionable role IDs for a
// signal message: the default role first (when configured), then every run
// of six or more digits found in the operator's free-form mention text, in
// order of appearance with duplicates removed. The messaging layer mentions
// exactly this list, never everyone.
func ResolveMentionRoles(defaultRole, text string) []string {
	var roles []string
	seen := make(map[string]bool)

	if defaultRole != "" {
		roles = append(roles, defaultRole)
		seen[defaultRole] = true
	}
	for _, id := range roleIDPattern.FindAllString(text, -1) {
		if seen[id] {
			continue
		}
		seen[id] = true
		roles = append(roles, id)
	}
	return roles
}
