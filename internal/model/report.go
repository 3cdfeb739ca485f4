// Package model contains the records shared by the pipeline, the HTTP layer and
// the run ledger.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// ReportRequest is an inspection record submitted for rendering. Known fields
// are typed; everything else the client sent is kept in Extra and written back
// out untouched so the report front-end sees the whole record.
type ReportRequest struct {
	Type               string
	Report             string
	ClientID           string
	ID                 string
	ModifiedAt         string
	LogoDir            string
	ImgAddDir          string
	OwnerSignature     string
	InspectorSignature string
	// Pictures is the flat list as submitted or as returned by the asset store.
	Pictures []json.RawMessage
	// PictureGroups is Pictures chunked for display; it is what gets serialized
	// under "pictures" once set.
	PictureGroups [][]json.RawMessage
	Extra         map[string]json.RawMessage
}

// Kind returns the report category, preferring "type" over "report".
func (r *ReportRequest) Kind() string {
	if r.Type != "" {
		return r.Type
	}
	return r.Report
}

const (
	submittedDateLayout = "2006-1-2"
	displayDateLayout   = "01/02/2006"
)

// submittedDate matches the leading date of ModifiedAt; month and day may be
// unpadded.
var submittedDate = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}`)

// FormatModifiedAt rewrites ModifiedAt from YYYY-MM-DD to MM/DD/YYYY. Only the
// leading date is read, so full timestamps are accepted. Values that do not
// parse are left as they are.
func (r *ReportRequest) FormatModifiedAt() {
	date := submittedDate.FindString(r.ModifiedAt)
	if date == "" {
		return
	}
	t, err := time.Parse(submittedDateLayout, date)
	if err != nil {
		return
	}
	r.ModifiedAt = t.Format(displayDateLayout)
}

// UnmarshalJSON splits the submission into typed fields and Extra.
func (r *ReportRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	strs := map[string]*string{
		"type":               &r.Type,
		"report":             &r.Report,
		"clientId":           &r.ClientID,
		"id":                 &r.ID,
		"modifiedAt":         &r.ModifiedAt,
		"logoDir":            &r.LogoDir,
		"imgAddDir":          &r.ImgAddDir,
		"ownerSignature":     &r.OwnerSignature,
		"inspectorSignature": &r.InspectorSignature,
	}
	for key, dst := range strs {
		v, ok := raw[key]
		if !ok {
			continue
		}
		delete(raw, key)
		if isNull(v) {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	if v, ok := raw["$id"]; ok {
		delete(raw, "$id")
		if r.ID == "" && !isNull(v) {
			if err := json.Unmarshal(v, &r.ID); err != nil {
				return fmt.Errorf("field $id: %w", err)
			}
		}
	}
	if v, ok := raw["pictures"]; ok {
		delete(raw, "pictures")
		if !isNull(v) {
			if err := json.Unmarshal(v, &r.Pictures); err != nil {
				return fmt.Errorf("field pictures: %w", err)
			}
		}
	}
	r.Extra = raw
	return nil
}

// MarshalJSON writes Extra plus the typed fields. Asset fields are always
// present, even when empty.
func (r ReportRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+10)
	for k, v := range r.Extra {
		out[k] = v
	}
	setIf := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	setIf("type", r.Type)
	setIf("report", r.Report)
	setIf("clientId", r.ClientID)
	setIf("id", r.ID)
	setIf("modifiedAt", r.ModifiedAt)
	out["logoDir"] = r.LogoDir
	out["imgAddDir"] = r.ImgAddDir
	out["ownerSignature"] = r.OwnerSignature
	out["inspectorSignature"] = r.InspectorSignature
	switch {
	case r.PictureGroups != nil:
		out["pictures"] = r.PictureGroups
	case r.Pictures != nil:
		out["pictures"] = r.Pictures
	default:
		out["pictures"] = []json.RawMessage{}
	}
	return json.Marshal(out)
}

// Fields returns the record as a generic JSON-shaped map, the form template
// lookups expect.
func (r *ReportRequest) Fields() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return fields, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
