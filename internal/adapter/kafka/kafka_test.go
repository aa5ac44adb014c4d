package kafka

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanluwen/dataRetrieval/internal/frame"
	"github.com/wanluwen/dataRetrieval/internal/waterml"
)

func TestSerializeRow(t *testing.T) {
	retrieved := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tbl := frame.New("agency_cd", "site_no", "datetime", "tz_cd", "X_00060_00003")
	tbl.Append(frame.Row{
		"agency_cd":     "USGS",
		"site_no":       "01491000",
		"datetime":      time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC),
		"tz_cd":         "UTC",
		"X_00060_00003": 310.0,
	})
	res := &waterml.Result{
		Table:       tbl,
		Source:      "https://waterservices.usgs.gov/nwis/dv/?sites=01491000",
		RetrievedAt: retrieved,
	}

	msg, err := serializeRow(res, 0)
	require.NoError(t, err)

	assert.Equal(t, []byte("01491000"), msg.Key)
	assert.Contains(t, string(msg.Value), `"X_00060_00003":310`)
	assert.Contains(t, string(msg.Value), `"datetime":"2023-08-01T00:00:00Z"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "source", msg.Headers[0].Key)
	assert.Equal(t, []byte(res.Source), msg.Headers[0].Value)
	assert.Equal(t, "retrieved_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-03-01T12:00:00Z"), msg.Headers[1].Value)
}

func TestSerializeRow_NaNBecomesNull(t *testing.T) {
	tbl := frame.New("site_no", "X_00060_00003")
	tbl.Append(frame.Row{"site_no": "01491000", "X_00060_00003": math.NaN()})
	res := &waterml.Result{Table: tbl}

	msg, err := serializeRow(res, 0)
	require.NoError(t, err)
	assert.Contains(t, string(msg.Value), `"X_00060_00003":null`)
}
