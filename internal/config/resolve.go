package config

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Resolution is the outcome of resolving a setting that has a preferred and a
// legacy variable name.
type Resolution struct {
	Value string
	// Key is the variable the value came from; empty when neither was set.
	Key string
	// Conflict is true when both names are set to different values.
	Conflict bool
}

// Resolve returns the value of preferredKey, falling back to legacyKey.
// Empty values count as unset.
func Resolve(lookup LookupFunc, preferredKey, legacyKey string) Resolution {
	preferred, hasPreferred := lookup(preferredKey)
	legacy, hasLegacy := lookup(legacyKey)
	hasPreferred = hasPreferred && preferred != ""
	hasLegacy = hasLegacy && legacy != ""

	switch {
	case hasPreferred:
		return Resolution{
			Value:    preferred,
			Key:      preferredKey,
			Conflict: hasLegacy && legacy != preferred,
		}
	case hasLegacy:
		return Resolution{Value: legacy, Key: legacyKey}
	default:
		return Resolution{}
	}
}
