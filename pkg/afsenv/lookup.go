package afsenv

import (
	"github.com/serverlessresearch/afs/pkg/afs"
	"github.com/spf13/viper"
)

// Lookup is the environment capability a session reads its settings from.
// Empty values are treated as absent.
type Lookup interface {
	LookupEnv(key string) (string, bool)
}

// MapLookup serves values from a map.
type MapLookup map[string]string

func (m MapLookup) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok && v != ""
}

// ViperLookup serves values from a viper instance. Keys are the environment
// variable names, so a config file may carry the same keys.
type ViperLookup struct {
	V *viper.Viper
}

func (l ViperLookup) LookupEnv(key string) (string, bool) {
	v := l.V.GetString(key)
	return v, v != ""
}

// DefaultLookup returns a lookup bound to the process environment. Each
// variable is bound under its exact name.
func DefaultLookup() ViperLookup {
	v := viper.New()
	BindEnv(v)
	return ViperLookup{V: v}
}

// BindEnv binds every AFS variable name on v to the environment variable of
// the same name.
func BindEnv(v *viper.Viper) {
	for _, name := range afs.EnvNames {
		v.BindEnv(name, name)
	}
}

func lookupString(l Lookup, key string) string {
	v, _ := l.LookupEnv(key)
	return v
}
