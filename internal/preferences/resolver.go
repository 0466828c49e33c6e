// Package preferences resolves a recipient's effective reminder settings
// from personal and organization-level preference blobs.
//
// Both blobs are loosely structured JSON owned by other parts of the
// product. Reminder settings are read from notifications.reminders, or
// from the top level when a blob carries channels/offsets directly:
//
//	{"notifications":{"reminders":{"channels":{"email":true,"sms":false},"offsets":[60,1440]}}}
//
// Each field is taken whole from the first level that supplies a usable
// value (recipient, then organization, then system default). Fields are
// never merged across levels.
package preferences

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"

	"carereminders/internal/types"
)

// Level identifies where a resolved field came from.
type Level string

const (
	LevelRecipient    Level = "recipient"
	LevelOrganization Level = "organization"
	LevelDefault      Level = "default"
)

// DefaultPreference is used when neither blob supplies a field.
var DefaultPreference = types.EffectivePreference{
	Channels: []types.NotificationMethod{types.MethodEmail},
	Offsets:  []int{60},
}

// channelKeys maps accepted JSON keys onto channels. Both camelCase and
// snake_case spellings of in-app occur in stored data.
var channelKeys = map[string]types.NotificationMethod{
	"email":  types.MethodEmail,
	"sms":    types.MethodSMS,
	"push":   types.MethodPush,
	"inApp":  types.MethodInApp,
	"in_app": types.MethodInApp,
}

// Resolution is an effective preference plus the provenance of each field.
type Resolution struct {
	types.EffectivePreference
	ChannelsFrom Level
	OffsetsFrom  Level
}

// Resolver computes effective preferences. The zero value is not usable;
// construct with NewResolver.
type Resolver struct {
	defaults types.EffectivePreference
}

// NewResolver returns a Resolver that falls back to defaults. An empty
// defaults field is replaced by the matching DefaultPreference field.
func NewResolver(defaults types.EffectivePreference) *Resolver {
	if len(defaults.Channels) == 0 {
		defaults.Channels = DefaultPreference.Channels
	}
	if len(defaults.Offsets) == 0 {
		defaults.Offsets = DefaultPreference.Offsets
	}
	return &Resolver{defaults: types.EffectivePreference{
		Channels: canonicalChannels(defaults.Channels),
		Offsets:  normalizeOffsets(defaults.Offsets),
	}}
}

// Resolve is the package-level form using DefaultPreference.
func Resolve(recipient, organization json.RawMessage) types.EffectivePreference {
	return defaultResolver.Resolve(recipient, organization).EffectivePreference
}

var defaultResolver = NewResolver(DefaultPreference)

// Resolve merges the two blobs. Either may be nil or malformed; malformed
// input only ever causes a fall-through to the next level. Resolve is pure
// and always returns at least one channel and one offset.
func (r *Resolver) Resolve(recipient, organization json.RawMessage) Resolution {
	personal := parseSettings(recipient)
	org := parseSettings(organization)

	res := Resolution{
		EffectivePreference: types.EffectivePreference{
			Channels: slices.Clone(r.defaults.Channels),
			Offsets:  slices.Clone(r.defaults.Offsets),
		},
		ChannelsFrom: LevelDefault,
		OffsetsFrom:  LevelDefault,
	}

	switch {
	case personal.channels != nil:
		res.Channels, res.ChannelsFrom = personal.channels, LevelRecipient
	case org.channels != nil:
		res.Channels, res.ChannelsFrom = org.channels, LevelOrganization
	}

	switch {
	case personal.offsets != nil:
		res.Offsets, res.OffsetsFrom = personal.offsets, LevelRecipient
	case org.offsets != nil:
		res.Offsets, res.OffsetsFrom = org.offsets, LevelOrganization
	}

	return res
}

// settings holds what a single blob supplied. A nil slice means the field
// was absent or unusable at this level.
type settings struct {
	channels []types.NotificationMethod
	offsets  []int
}

func parseSettings(blob json.RawMessage) settings {
	obj := reminderObject(blob)
	if obj == nil {
		return settings{}
	}
	return settings{
		channels: parseChannels(obj["channels"]),
		offsets:  parseOffsets(obj["offsets"]),
	}
}

// reminderObject locates the object holding channels/offsets.
func reminderObject(blob json.RawMessage) map[string]json.RawMessage {
	blob = bytes.TrimSpace(blob)
	if len(blob) == 0 || bytes.Equal(blob, []byte("null")) {
		return nil
	}

	// Some writers store the preferences document as a JSON string.
	if blob[0] == '"' {
		var inner string
		if err := json.Unmarshal(blob, &inner); err != nil {
			return nil
		}
		return reminderObject(json.RawMessage(inner))
	}

	root := asObject(blob)
	if root == nil {
		return nil
	}
	if reminders := asObject(asObject(root["notifications"])["reminders"]); reminders != nil {
		return reminders
	}
	if _, ok := root["channels"]; ok {
		return root
	}
	if _, ok := root["offsets"]; ok {
		return root
	}
	return nil
}

func asObject(raw json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

// parseChannels reads a map of booleans. Unknown keys and non-boolean
// values are ignored. A map that enables nothing counts as absent.
func parseChannels(raw json.RawMessage) []types.NotificationMethod {
	obj := asObject(raw)
	if obj == nil {
		return nil
	}
	enabled := make(map[types.NotificationMethod]bool, len(channelKeys))
	for key, val := range obj {
		method, ok := channelKeys[key]
		if !ok {
			continue
		}
		var on bool
		if err := json.Unmarshal(val, &on); err != nil {
			continue
		}
		if on {
			enabled[method] = true
		}
	}
	if len(enabled) == 0 {
		return nil
	}
	out := make([]types.NotificationMethod, 0, len(enabled))
	for _, m := range types.AllMethods {
		if enabled[m] {
			out = append(out, m)
		}
	}
	return out
}

// parseOffsets reads an array of minute counts, keeping positive integers.
// An array with no usable entries counts as absent.
func parseOffsets(raw json.RawMessage) []int {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	offsets := make([]int, 0, len(items))
	for _, item := range items {
		var f float64
		if err := json.Unmarshal(item, &f); err != nil {
			continue
		}
		if f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
			continue
		}
		offsets = append(offsets, int(f))
	}
	offsets = normalizeOffsets(offsets)
	if len(offsets) == 0 {
		return nil
	}
	return offsets
}

func normalizeOffsets(in []int) []int {
	out := make([]int, 0, len(in))
	for _, v := range in {
		if v > 0 {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func canonicalChannels(in []types.NotificationMethod) []types.NotificationMethod {
	out := make([]types.NotificationMethod, 0, len(in))
	for _, m := range types.AllMethods {
		if slices.Contains(in, m) {
			out = append(out, m)
		}
	}
	return out
}
