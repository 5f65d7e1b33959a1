package a2a

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"

	"github.com/BerylCAtieno/nutrition-advisor-agent/internal/models"
)

// extractProfile looks for a UserProfile in the message parts. A data part
// may hold the profile object itself or a conversation history whose most
// recent text item carries the profile as JSON. A text part is accepted when
// it contains a JSON object. The last matching part wins.
func extractProfile(msg A2AMessage) (models.UserProfile, bool) {
	var (
		profile models.UserProfile
		found   bool
	)
	for _, part := range msg.Parts {
		switch part.Kind {
		case "text":
			if p, ok := profileFromText(part.Text); ok {
				profile, found = p, true
			}
		case "data":
			if p, ok := profileFromData(part.Data); ok {
				profile, found = p, true
			}
		}
	}
	return profile, found
}

func profileFromData(data interface{}) (models.UserProfile, bool) {
	if data == nil {
		return models.UserProfile{}, false
	}
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("WARN: Failed to marshal data part: %v", err)
		return models.UserProfile{}, false
	}
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 && raw[0] == '[' {
		var history []map[string]interface{}
		if err := json.Unmarshal(raw, &history); err != nil {
			log.Printf("WARN: Failed to unmarshal data part: %v", err)
			return models.UserProfile{}, false
		}
		// Most recent message first.
		for i := len(history) - 1; i >= 0; i-- {
			if kind, _ := history[i]["kind"].(string); kind != "text" {
				continue
			}
			if text, _ := history[i]["text"].(string); text != "" {
				if p, ok := profileFromText(text); ok {
					return p, true
				}
			}
		}
		return models.UserProfile{}, false
	}
	return decodeProfile(raw)
}

func profileFromText(text string) (models.UserProfile, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "<p>")
	text = strings.TrimSuffix(text, "</p>")
	text = strings.TrimSpace(text)

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return models.UserProfile{}, false
	}
	return decodeProfile([]byte(text[start : end+1]))
}

// decodeProfile accepts a JSON object only if it names at least one profile
// field, so unrelated data parts are ignored.
func decodeProfile(raw []byte) (models.UserProfile, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return models.UserProfile{}, false
	}
	known := false
	for _, key := range models.FieldKeys {
		if _, ok := keys[key]; ok {
			known = true
			break
		}
	}
	if !known {
		return models.UserProfile{}, false
	}

	// goals may arrive as a comma separated string
	if goals, ok := keys[models.FieldGoals]; ok {
		var s string
		if json.Unmarshal(goals, &s) == nil {
			list := []string{}
			for _, g := range strings.Split(s, ",") {
				if g = strings.TrimSpace(g); g != "" {
					list = append(list, g)
				}
			}
			keys[models.FieldGoals], _ = json.Marshal(list)
			raw, _ = json.Marshal(keys)
		}
	}

	var profile models.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		log.Printf("WARN: Failed to decode profile: %v", err)
		return models.UserProfile{}, false
	}
	return profile, true
}
