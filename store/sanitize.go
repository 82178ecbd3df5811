package store

import (
	"strings"

	"github.com/hazyhaar/cardgen/validate"
)

// Blob layout, matching what the web UI reads back:
//
//	{
//	  "colors": {"accentColor": "#...", "borderColor": "#...", "backgroundColor": "#..."},
//	  "card":   {"handle": "...", "repoLabel": "...", "title": "...", "description": "..."},
//	  "images": {"logo": {"dataUrl": "...", "name": "..."}, "background": {...}},
//	  "overlayOpacity": 0.6
//	}

var colorKeys = []string{"accentColor", "borderColor", "backgroundColor"}

// cardKeys maps field name to its validator. Description is the only field
// allowed to be empty-but-present.
var cardKeys = map[string]func(string) validate.Result{
	"handle":      validate.GitHubUsername,
	"repoLabel":   validate.RepoName,
	"title":       validate.ProjectName,
	"description": validate.Description,
}

// sanitize keeps only fields the validators accept. It never errors: an
// invalid or malformed field is simply dropped from the result.
func sanitize(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	clean := map[string]any{}

	if colors, ok := data["colors"].(map[string]any); ok {
		cleanColors := map[string]any{}
		for _, k := range colorKeys {
			if v, ok := colors[k].(string); ok && validate.HexColor(v).OK {
				cleanColors[k] = v
			}
		}
		if len(cleanColors) > 0 {
			clean["colors"] = cleanColors
		}
	}

	if cardData, ok := data["card"].(map[string]any); ok {
		cleanCard := map[string]any{}
		for k, check := range cardKeys {
			v, ok := cardData[k].(string)
			if !ok || v == "" {
				continue
			}
			if check(v).OK {
				cleanCard[k] = v
			}
		}
		if len(cleanCard) > 0 {
			clean["card"] = cleanCard
		}
	}

	if images, ok := data["images"].(map[string]any); ok {
		cleanImages := map[string]any{}
		for _, slot := range []string{"logo", "background"} {
			img, ok := images[slot].(map[string]any)
			if !ok {
				continue
			}
			dataURL, _ := img["dataUrl"].(string)
			name, _ := img["name"].(string)
			if strings.HasPrefix(dataURL, "data:image/") {
				cleanImages[slot] = map[string]any{"dataUrl": dataURL, "name": name}
			}
		}
		if len(cleanImages) > 0 {
			clean["images"] = cleanImages
		}
	}

	if opacity, ok := data["overlayOpacity"].(float64); ok && validate.OverlayOpacity(opacity).OK {
		clean["overlayOpacity"] = opacity
	}

	if len(clean) == 0 {
		return nil
	}
	return clean
}

// legacyFieldMap maps the pre-rewrite flat schema onto the nested layout.
var legacyFieldMap = map[string][2]string{
	"projectColor":       {"colors", "accentColor"},
	"accentColor":        {"colors", "borderColor"},
	"bgColor":            {"colors", "backgroundColor"},
	"username":           {"card", "handle"},
	"repoName":           {"card", "repoLabel"},
	"projectName":        {"card", "title"},
	"projectDescription": {"card", "description"},
}

// migrateLegacy maps known keys from the old flat schema field-by-field into
// the nested layout. Unknown keys are dropped; migration never fails.
func migrateLegacy(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	// Already nested: nothing to do.
	if _, hasColors := data["colors"]; hasColors {
		return data
	}
	if _, hasCard := data["card"]; hasCard {
		return data
	}

	migrated := map[string]any{}
	touched := false
	for legacyKey, target := range legacyFieldMap {
		v, ok := data[legacyKey].(string)
		if !ok {
			continue
		}
		section, key := target[0], target[1]
		sec, _ := migrated[section].(map[string]any)
		if sec == nil {
			sec = map[string]any{}
			migrated[section] = sec
		}
		sec[key] = v
		touched = true
	}
	if !touched {
		return data
	}
	if opacity, ok := data["overlayOpacity"].(float64); ok {
		migrated["overlayOpacity"] = opacity
	}
	return migrated
}
