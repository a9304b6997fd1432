package services

import "strings"

// VoiceProfile maps a content style to a concrete Gemini voice.
type VoiceProfile struct {
	Key       string
	VoiceName string
	Language  string
}

// voiceProfiles is keyed by normalized style. Voice names are Gemini
// prebuilt speech voices.
var voiceProfiles = map[string]VoiceProfile{
	"documentary":   {Key: "documentary", VoiceName: "Charon", Language: "en-US"},
	"news":          {Key: "news", VoiceName: "Kore", Language: "en-US"},
	"entertainment": {Key: "entertainment", VoiceName: "Puck", Language: "en-US"},
	"satire":        {Key: "satire", VoiceName: "Fenrir", Language: "en-US"},
	"serious":       {Key: "serious", VoiceName: "Orus", Language: "en-US"},
	"corporate":     {Key: "corporate", VoiceName: "Iapetus", Language: "en-US"},
	"kids":          {Key: "kids", VoiceName: "Leda", Language: "en-US"},
	"tech":          {Key: "tech", VoiceName: "Zephyr", Language: "en-US"},
	"motivational":  {Key: "motivational", VoiceName: "Aoede", Language: "en-US"},
}

const defaultVoiceKey = "documentary"

// normalizeVoiceKey collapses a free-form style string onto a known
// profile key. Unknown styles fall back to the default profile.
func normalizeVoiceKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "-", "")
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, " ", "")
	if _, ok := voiceProfiles[key]; ok {
		return key
	}
	// Accept partial matches like "documentarystyle" or "technews".
	for k := range voiceProfiles {
		if strings.Contains(key, k) {
			return k
		}
	}
	return defaultVoiceKey
}

// ResolveVoice returns the profile for a style key, falling back to the
// default profile for unknown keys.
func ResolveVoice(key string) VoiceProfile {
	return voiceProfiles[normalizeVoiceKey(key)]
}

// ListVoices returns all profiles in stable key order.
func ListVoices() []VoiceProfile {
	keys := []string{
		"documentary", "news", "entertainment", "satire", "serious",
		"corporate", "kids", "tech", "motivational",
	}
	out := make([]VoiceProfile, 0, len(keys))
	for _, k := range keys {
		out = append(out, voiceProfiles[k])
	}
	return out
}
