package rediskey

import "fmt"

// Key namespaces shared across binaries.
const (
	AccessLockPrefix = "access:lock"
	SequencePrefix   = "seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildAccessLockKey returns "access:lock:{memberID}:{dayKey}". The lock
// serializes the admitted-today check and the ledger insert for one member
// on one organizational calendar day.
func BuildAccessLockKey(memberID, dayKey string) string {
	return NamespaceKey(AccessLockPrefix, fmt.Sprintf("%s:%s", memberID, dayKey))
}
