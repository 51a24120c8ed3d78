// Package models maps model tiers to whisper.cpp ggml weight files and
// keeps a local cache of downloaded weights.
package models

import (
	"fmt"
	"strings"
)

// Spec identifies a model configuration: tier, device and precision.
type Spec struct {
	Tier        string
	Device      string
	ComputeType string
}

func (s Spec) String() string {
	return fmt.Sprintf("%s (%s, %s)", s.Tier, s.Device, s.ComputeType)
}

// known tiers, smallest first. Informational only: tiers are never
// rejected locally.
var known = []string{
	"tiny", "tiny.en",
	"base", "base.en",
	"small", "small.en",
	"medium", "medium.en",
	"large-v1", "large-v2", "large-v3", "large-v3-turbo",
}

// published lists the file suffixes upstream ships per tier; "" is the
// unquantized f16 file.
var published = map[string][]string{
	"tiny":           {"", "-q5_1", "-q8_0"},
	"tiny.en":        {"", "-q5_1", "-q8_0"},
	"base":           {"", "-q5_1", "-q8_0"},
	"base.en":        {"", "-q5_1", "-q8_0"},
	"small":          {"", "-q5_1", "-q8_0"},
	"small.en":       {"", "-q5_1", "-q8_0"},
	"medium":         {"", "-q5_0", "-q8_0"},
	"medium.en":      {"", "-q5_0", "-q8_0"},
	"large-v1":       {""},
	"large-v2":       {"", "-q5_0", "-q8_0"},
	"large-v3":       {"", "-q5_0"},
	"large-v3-turbo": {"", "-q5_0", "-q8_0"},
}

// Known returns the tiers published upstream.
func Known() []string {
	out := make([]string, len(known))
	copy(out, known)
	return out
}

// Published reports whether upstream ships weights for spec. Paths and
// unknown tiers report true: they are left to the loader.
func Published(spec Spec) bool {
	if IsPath(spec.Tier) {
		return true
	}
	suffixes, ok := published[spec.Tier]
	if !ok {
		return true
	}
	want := suffix(spec.ComputeType)
	for _, s := range suffixes {
		if s == want {
			return true
		}
	}
	return false
}

// Alternatives returns the compute types with published weights for tier.
func Alternatives(tier string) []string {
	var out []string
	for _, s := range published[tier] {
		switch s {
		case "":
			out = append(out, "float16")
		case "-q8_0":
			out = append(out, "int8")
		default:
			out = append(out, strings.TrimPrefix(s, "-"))
		}
	}
	return out
}

// suffix maps a compute type to the ggml quantization suffix.
func suffix(computeType string) string {
	switch strings.ToLower(computeType) {
	case "int8", "q8_0":
		return "-q8_0"
	case "q5_0":
		return "-q5_0"
	case "q5_1":
		return "-q5_1"
	default: // float16, float32, default: unquantized f16 weights
		return ""
	}
}

// FileName returns the ggml file name for spec, e.g. ggml-base-q8_0.bin.
func FileName(spec Spec) string {
	return fmt.Sprintf("ggml-%s%s.bin", spec.Tier, suffix(spec.ComputeType))
}

// IsPath reports whether a tier argument names a weight file rather than
// a tier.
func IsPath(tier string) bool {
	return strings.ContainsAny(tier, `/\`) || strings.HasSuffix(tier, ".bin")
}
