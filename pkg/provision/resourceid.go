package provision

import (
	"strings"
)

// ResourceLocation holds the components derived from an ARM resource ID.
// Empty fields mean the corresponding component could not be resolved.
type ResourceLocation struct {
	Subscription  string
	ResourceGroup string
}

// ParseResourceID extracts the subscription ID and resource group name from
// a hierarchical ARM resource ID of the form
// /subscriptions/{sub}/resourceGroups/{rg}[/...].
//
// The parser is deliberately lenient: the remote system's ID format is not
// validated here. When the expected delimiters are absent both fields come
// back empty, and callers must treat empty strings as unresolvable rather
// than as valid identifiers.
func ParseResourceID(resourceID string) ResourceLocation {
	var loc ResourceLocation

	segments := strings.Split(strings.Trim(resourceID, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		switch {
		case strings.EqualFold(segments[i], "subscriptions") && loc.Subscription == "":
			loc.Subscription = segments[i+1]
		case strings.EqualFold(segments[i], "resourceGroups") && loc.ResourceGroup == "":
			loc.ResourceGroup = segments[i+1]
		}
	}
	return loc
}
