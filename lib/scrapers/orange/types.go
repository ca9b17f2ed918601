package orange

import "strings"

// Record is one call detail row as displayed by the portal. All fields are
// kept verbatim as strings since the portal's formats are an undocumented
// third-party contract.
type Record struct {
	Cli      string
	To       string
	Time     string
	Duration string
	Type     string
}

// Key derives a deterministic identity for the record from its visible
// fields. The portal exposes no stable row id, so the field tuple is the
// identity; repeated fetches of the same underlying call must produce the
// same key.
func (r Record) Key() string {
	return strings.Join([]string{r.Cli, r.To, r.Time, r.Duration, r.Type}, "|")
}
