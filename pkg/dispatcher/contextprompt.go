package dispatcher

import (
	"encoding/json"
	"fmt"
	"time"
)

// UserContext carries caller-supplied situational data: where the user is
// and who they are. When present, a JSON context block is prepended to the
// model-visible query so specialists can resolve "near me" and "tomorrow"
// without extra tool calls. The stored transcript keeps the raw query.
type UserContext struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	UserID    string  `json:"user_id,omitempty"`
	Name      string  `json:"name,omitempty"`
}

type contextBlock struct {
	UserLocation struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"user_location"`
	UserInfo *struct {
		UserID string `json:"user_id,omitempty"`
		Name   string `json:"name,omitempty"`
	} `json:"user_info,omitempty"`
	DateTime struct {
		ISO       string `json:"iso"`
		DayOfWeek string `json:"day_of_week"`
	} `json:"date_time"`
}

// buildContextPrompt assembles the model-visible user message. Without a
// user context the query passes through untouched.
func buildContextPrompt(query string, uc *UserContext, now time.Time) string {
	if uc == nil {
		return query
	}

	var block contextBlock
	block.UserLocation.Latitude = uc.Latitude
	block.UserLocation.Longitude = uc.Longitude
	if uc.UserID != "" || uc.Name != "" {
		block.UserInfo = &struct {
			UserID string `json:"user_id,omitempty"`
			Name   string `json:"name,omitempty"`
		}{UserID: uc.UserID, Name: uc.Name}
	}
	block.DateTime.ISO = now.Format("2006-01-02T15:04:05")
	block.DateTime.DayOfWeek = now.Weekday().String()

	encoded, err := json.MarshalIndent(block, "", "  ")
	if err != nil {
		return query
	}
	return fmt.Sprintf("Context:\n%s\n\nUser Query:\n%s", string(encoded), query)
}
