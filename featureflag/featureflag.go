package featureflag

// FeatureFlag holds the set of enabled flags.
type FeatureFlag map[Flag]struct{}

// New builds the flag set from the raw flag names given in configuration.
// Unknown names are kept so flags can be set before the code that reads
// them ships.
func New(names []string) FeatureFlag {
	ff := make(FeatureFlag, len(names))
	for _, n := range names {
		ff[Flag(n)] = struct{}{}
	}
	return ff
}

// IfSet runs do when the flag is enabled.
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if _, ok := f[flag]; ok {
		do()
	}
}

// IfNotSet runs do when the flag is not enabled.
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if _, ok := f[flag]; !ok {
		do()
	}
}
