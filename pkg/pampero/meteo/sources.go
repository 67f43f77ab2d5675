package meteo

import (
	"strings"

	"k8s.io/klog/v2"
)

type sourceAlias struct {
	label string
	id    SourceID
}

// sourceAliases maps canonical labels to their SourceID, most specific
// first. Lookup is case-insensitive exact, then substring in either
// direction for provider labels like "windy-ecmwf" or "ECMWF 0.4°".
// Order matters for the substring pass, so this is a slice, not a map.
var sourceAliases = []sourceAlias{
	{"windy_ecmwf", SourceWindyECMWF},
	{"windy_gfs", SourceWindyGFS},
	{"windy_icon", SourceWindyICON},
	{"wrf_smn", SourceWRFSMN},
	{"fused", SourceFused},
	{"ecmwf", SourceWindyECMWF},
	{"gfs", SourceWindyGFS},
	{"iconeu", SourceWindyICON},
	{"icon", SourceWindyICON},
	{"wrf", SourceWRFSMN},
	{"smn", SourceWRFSMN},
}

// ParseSource maps an arbitrary provider label to a SourceID. Unmapped
// labels fall back to def and are logged.
func ParseSource(label string, def SourceID) SourceID {
	norm := strings.ToLower(strings.TrimSpace(label))
	if norm == "" {
		klog.V(2).InfoS("Empty source label, using default", "default", def)
		return def
	}

	for _, a := range sourceAliases {
		if a.label == norm {
			return a.id
		}
	}

	for _, a := range sourceAliases {
		if strings.Contains(norm, a.label) || strings.Contains(a.label, norm) {
			return a.id
		}
	}

	klog.InfoS("Unmapped source label, using default", "label", label, "default", def)
	return def
}

// AllProviderSources lists every real provider (excludes the synthetic
// fused tag).
func AllProviderSources() []SourceID {
	return []SourceID{SourceWindyECMWF, SourceWindyGFS, SourceWindyICON, SourceWRFSMN}
}

// IsProvider reports whether id names a real provider model.
func IsProvider(id SourceID) bool {
	switch id {
	case SourceWindyECMWF, SourceWindyGFS, SourceWindyICON, SourceWRFSMN:
		return true
	}
	return false
}
