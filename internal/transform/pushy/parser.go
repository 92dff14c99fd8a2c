package pushy

import (
	"encoding/json"
	"fmt"
	"strings"

	"alertrelay/pkg/models"
)

// Parse decodes a push payload into an AlertMessage. Numeric fields are
// accepted and rendered as strings.
func Parse(data []byte) (*models.AlertMessage, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("payload is not a JSON object")
	}

	return &models.AlertMessage{
		ID:         getString(raw, "id"),
		AlertTitle: getString(raw, "alertTitle"),
		Title:      getString(raw, "title"),
		Time:       getString(raw, "time"),
		CitiesIDs:  getCities(raw, "citiesIds"),
		ThreatID:   getString(raw, "threatId"),
		Desc:       getString(raw, "desc"),
		Raw:        raw,
	}, nil
}

func getString(root map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		v, ok := root[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			return val
		case float64:
			if val == float64(int64(val)) {
				return fmt.Sprintf("%d", int64(val))
			}
			return fmt.Sprintf("%f", val)
		case bool:
			return fmt.Sprintf("%t", val)
		}
	}
	return ""
}

// getCities accepts the usual comma separated string as well as a JSON list.
func getCities(root map[string]interface{}, key string) string {
	if list, ok := root[key].([]interface{}); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if s := getString(map[string]interface{}{"v": item}, "v"); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	}
	return getString(root, key)
}
