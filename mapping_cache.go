package relstore

import (
	"fmt"
	"reflect"
	"sync"
)

// mappingCache is the process-wide, one-time-initialized EntityMapping
// cache (spec §3 "Ownership": "cache of EntityMapping per type is
// process-wide with one-time initialization"). Keyed by the schema type's
// reflect.Type so distinct Go types never collide even if they share a
// short name.
var mappingCache sync.Map // reflect.Type -> *EntityMapping

// MappingFor returns the cached EntityMapping for s's type, building and
// caching it on first use. s must be the zero value of a schema
// declaration (e.g. Task{}), not the runtime entity struct.
func MappingFor(s any) (*EntityMapping, error) {
	t := reflect.TypeOf(s)
	if t == nil {
		return nil, fmt.Errorf("relstore: MappingFor called with a nil schema value")
	}
	if v, ok := mappingCache.Load(t); ok {
		return v.(*EntityMapping), nil
	}
	m, err := Build(t.Name(), s)
	if err != nil {
		return nil, err
	}
	actual, _ := mappingCache.LoadOrStore(t, m)
	return actual.(*EntityMapping), nil
}

// ResetMappingCache clears the process-wide mapping cache. Exposed only for
// test harnesses that need a clean registry between runs (Design Notes:
// "the one permitted process-wide item is a reset-for-tests registry that
// must be cleared between tests").
func ResetMappingCache() {
	mappingCache.Range(func(k, _ any) bool {
		mappingCache.Delete(k)
		return true
	})
}
