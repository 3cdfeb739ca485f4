package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRequestDecode(t *testing.T) {
	body := `{"type":"Alarm","clientId":"c1","$id":"r9","modifiedAt":"2016-05-03",
		"pictures":["a","b","c"],"deviceInfo":[{"zone":1}],"owner":null}`
	var req ReportRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, "Alarm", req.Kind())
	assert.Equal(t, "c1", req.ClientID)
	assert.Equal(t, "r9", req.ID)
	assert.Len(t, req.Pictures, 3)
	assert.Contains(t, req.Extra, "deviceInfo")
	assert.Contains(t, req.Extra, "owner")
	assert.NotContains(t, req.Extra, "$id")
}

func TestReportRequestKindFallback(t *testing.T) {
	req := ReportRequest{Report: "Sprinkler"}
	assert.Equal(t, "Sprinkler", req.Kind())
	req.Type = "Alarm"
	assert.Equal(t, "Alarm", req.Kind())
}

func TestReportRequestEncodeKeepsAssetFields(t *testing.T) {
	req := ReportRequest{
		Type:  "Alarm",
		Extra: map[string]json.RawMessage{"notes": json.RawMessage(`"ok"`)},
	}
	fields, err := req.Fields()
	require.NoError(t, err)

	for _, key := range []string{"logoDir", "imgAddDir", "ownerSignature", "inspectorSignature"} {
		assert.Equal(t, "", fields[key], key)
	}
	assert.Equal(t, []any{}, fields["pictures"])
	assert.Equal(t, "ok", fields["notes"])
	assert.NotContains(t, fields, "report")
}

func TestReportRequestEncodesPictureGroups(t *testing.T) {
	req := ReportRequest{
		Pictures: []json.RawMessage{json.RawMessage(`"a"`)},
		PictureGroups: [][]json.RawMessage{
			{json.RawMessage(`"a"`)},
		},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pictures":[["a"]]`)
}

func TestFormatModifiedAt(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2016-05-03", "05/03/2016"},
		{"2016-05-03T10:30:00Z", "05/03/2016"},
		{"2020-1-5", "01/05/2020"},
		{"2020-12-5 08:00", "12/05/2020"},
		{"2020-13-40", "2020-13-40"},
		{"", ""},
		{"yesterday", "yesterday"},
		{"05/03/2016", "05/03/2016"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			req := ReportRequest{ModifiedAt: tt.in}
			req.FormatModifiedAt()
			assert.Equal(t, tt.want, req.ModifiedAt)
		})
	}
}
