package util

import "strings"

// Redis key layout. The namespace is wrapped in a hash tag so a record and
// the expiry index always land in the same cluster slot, which the sweep and
// extend scripts rely on.
//
//	{<ns>}:rec:<key>  - framed record
//	{<ns>}:exp        - sorted set of keys scored by expiresAt (unix micros)

func hashTag(ns string) string { return "{" + ns + "}" }

// RecordPrefix is prepended to user keys to form record keys.
func RecordPrefix(ns string) string { return hashTag(ns) + ":rec:" }

func RecordKey(ns, key string) string { return RecordPrefix(ns) + key }

func IndexKey(ns string) string { return hashTag(ns) + ":exp" }

// ValidNamespace rejects namespaces that would break the hash tag.
func ValidNamespace(ns string) bool {
	return ns != "" && !strings.ContainsAny(ns, "{}")
}
