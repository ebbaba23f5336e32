package extract

import "github.com/logminer/logminer-go/pkg/logminer"

// ResolveOwner returns the class a call site's statement belongs to.
//
// The receiver must be a plain identifier. The enclosing type declarations
// are searched from the innermost outwards for one declaring a field of
// that name. This is a heuristic: locals, parameters and inherited fields
// are not considered. When no declaration is found the result is
// logminer.DefaultClass and resolved is false.
func ResolveOwner(site CallSite) (class string, resolved bool) {
	if !site.SimpleReceiver() {
		return logminer.DefaultClass, false
	}
	for _, sc := range site.Scopes {
		if sc.HasField(site.Receiver) {
			return sc.Name, true
		}
	}
	return logminer.DefaultClass, false
}
