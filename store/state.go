package store

import "github.com/hazyhaar/cardgen/card"

// FromState flattens a card state into the blob layout for Save.
func FromState(s card.State) map[string]any {
	data := map[string]any{
		"colors": map[string]any{
			"accentColor":     s.Theme.Accent,
			"borderColor":     s.Theme.Border,
			"backgroundColor": s.Theme.Background,
		},
	}

	cardData := map[string]any{}
	if s.Handle != "" {
		cardData["handle"] = s.Handle
	}
	if s.RepoLabel != "" {
		cardData["repoLabel"] = s.RepoLabel
	}
	if s.Title != "" {
		cardData["title"] = s.Title
	}
	if s.Description != "" {
		cardData["description"] = s.Description
	}
	if len(cardData) > 0 {
		data["card"] = cardData
	}

	images := map[string]any{}
	if s.Logo != nil {
		images["logo"] = map[string]any{"dataUrl": s.Logo.DataURL, "name": s.Logo.Name}
	}
	if s.Background != nil {
		images["background"] = map[string]any{"dataUrl": s.Background.DataURL, "name": s.Background.Name}
	}
	if len(images) > 0 {
		data["images"] = images
	}

	data["overlayOpacity"] = s.OverlayOpacity
	return data
}

// HydratePatch converts a loaded blob into a card patch for startup
// hydration. Fields absent from the blob are left untouched in the patch,
// so defaults survive.
func HydratePatch(data map[string]any) card.Patch {
	var p card.Patch
	if data == nil {
		return p
	}

	strField := func(section map[string]any, key string) *string {
		if v, ok := section[key].(string); ok && v != "" {
			return &v
		}
		return nil
	}

	if colors, ok := data["colors"].(map[string]any); ok {
		p.Accent = strField(colors, "accentColor")
		p.Border = strField(colors, "borderColor")
		p.Background = strField(colors, "backgroundColor")
	}
	if cardData, ok := data["card"].(map[string]any); ok {
		p.Handle = strField(cardData, "handle")
		p.RepoLabel = strField(cardData, "repoLabel")
		p.Title = strField(cardData, "title")
		p.Description = strField(cardData, "description")
	}
	if images, ok := data["images"].(map[string]any); ok {
		if img, ok := images["logo"].(map[string]any); ok {
			dataURL, _ := img["dataUrl"].(string)
			name, _ := img["name"].(string)
			if dataURL != "" {
				p.Logo = &card.ImagePatch{Image: card.Image{DataURL: dataURL, Name: name}}
			}
		}
		if img, ok := images["background"].(map[string]any); ok {
			dataURL, _ := img["dataUrl"].(string)
			name, _ := img["name"].(string)
			if dataURL != "" {
				p.BackgroundImage = &card.ImagePatch{Image: card.Image{DataURL: dataURL, Name: name}}
			}
		}
	}
	if opacity, ok := data["overlayOpacity"].(float64); ok {
		p.OverlayOpacity = &opacity
	}
	return p
}
