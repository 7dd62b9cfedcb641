package stats

import "strings"

// Stat names look like "requests" or "requests#req_type:f1", with
// multiple tags comma-separated. Names and tag parts may not contain
// space, colon, bar or @ — those collide with downstream line
// protocols.

// splitTag separates "base#tags" into its halves. tag is "" when the
// name carries none.
func splitTag(name string) (base, tag string) {
	if i := strings.IndexByte(name, '#'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}

func badNamePart(s string) bool {
	return strings.ContainsAny(s, " :|@")
}

// validate aborts via the registry's fatal handler on a malformed
// name. Malformed names are programming errors, not runtime input.
func (r *Registry) validate(name string) {
	base, tags := splitTag(name)
	if badNamePart(base) {
		r.fatal("stats: %q cannot contain space/colon/bar/@", base)
		return
	}
	for tags != "" {
		var tag string
		if i := strings.IndexByte(tags, ','); i >= 0 {
			tag, tags = tags[:i], tags[i+1:]
		} else {
			tag, tags = tags, ""
		}
		k, v, ok := strings.Cut(tag, ":")
		if !ok {
			r.fatal("stats: improperly formatted tag %q, expect name:value", tag)
			return
		}
		if badNamePart(k) || badNamePart(v) {
			r.fatal("stats: tag %q cannot contain space/colon/bar/@", tag)
			return
		}
	}
}
