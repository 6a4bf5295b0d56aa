package badgerstore

import "strings"

// Key layout. \x00 separates components; it cannot appear in ids or trimmed names.
//
//	g:<graph>                   -> graph JSON
//	p:<profile>                 -> profile JSON
//	pn:<graph>\x00<first|||last> -> profile id
//	c:<graph>\x00<a>\x00<b>      -> connection JSON, a < b
const (
	prefixGraph      = "g:"
	prefixProfile    = "p:"
	prefixName       = "pn:"
	prefixConnection = "c:"
	sep              = "\x00"
)

func graphKey(id string) []byte {
	return []byte(prefixGraph + id)
}

func profileKey(id string) []byte {
	return []byte(prefixProfile + id)
}

func nameKey(graphID, identity string) []byte {
	return []byte(prefixName + graphID + sep + identity)
}

func namePrefix(graphID string) []byte {
	return []byte(prefixName + graphID + sep)
}

func connectionKey(graphID, a, b string) []byte {
	return []byte(strings.Join([]string{prefixConnection + graphID, a, b}, sep))
}

func connectionPrefix(graphID string) []byte {
	if graphID == "" {
		return []byte(prefixConnection)
	}
	return []byte(prefixConnection + graphID + sep)
}
