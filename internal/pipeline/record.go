package pipeline

import (
	"encoding/json"
	"fmt"
)

// StringList accepts either a single JSON string or an array of strings.
// The record-management API returns multi-select fields both ways depending
// on how many values are set.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*s = nil
		return nil
	}

	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("string or string array expected: %w", err)
	}
	*s = many
	return nil
}

// RawRecord is one incident report as returned by the record-management
// system. Multi-select category fields keep every value; free-text fields
// may contain HTML markup.
type RawRecord struct {
	IncidentID      int64      `json:"incidentId"`
	StatusID        string     `json:"statusId"`
	Status          string     `json:"status"`
	TypeOfSIR       StringList `json:"Type_of_SIR"`
	CategoryType    StringList `json:"Category_Type"`
	SubCategoryType StringList `json:"Sub_Category_Type"`
	Detail          string     `json:"detail"`
	ActionTaken     string     `json:"actionTaken"`
	DateReported    string     `json:"dateReported"`
	DateProcessed   string     `json:"dateProcessed"`
}

// TransformedRecord is one incident in the destination portal's item schema.
// IncidentID is kept for cursor bookkeeping only and never serialized.
type TransformedRecord struct {
	TenantItemID  string `json:"tenantItemId"`
	OpenDate      string `json:"openDate"`
	ProcessedDate string `json:"processedDate"`
	Title         string `json:"title"`
	Narrative     string `json:"narrative"`
	Type          string `json:"type"`
	Subtype       string `json:"subtype"`
	Sharing       string `json:"sharing"`
	SeverityID    int    `json:"severityId"`
	PriorityID    int    `json:"priorityId"`
	Actionable    bool   `json:"actionable"`
	PIIPresent    bool   `json:"piiPresent"`

	IncidentID int64 `json:"-"`
}

// Columns is the destination schema's field set, in serialization order.
// Returned alongside empty outputs so downstream code can rely on a
// consistent shape even with zero records.
func Columns() []string {
	return []string{
		"tenantItemId",
		"openDate",
		"processedDate",
		"title",
		"narrative",
		"type",
		"subtype",
		"sharing",
		"severityId",
		"priorityId",
		"actionable",
		"piiPresent",
	}
}

// Defaults are the destination-only field values applied to every record
// that the source has no equivalent for.
type Defaults struct {
	SeverityID int
	PriorityID int
	Actionable bool
	PIIPresent bool
}

// DestinationDefaults returns the static default-value table agreed with the
// portal owners.
func DestinationDefaults() Defaults {
	return Defaults{
		SeverityID: 3,
		PriorityID: 3,
		Actionable: true,
		PIIPresent: false,
	}
}
