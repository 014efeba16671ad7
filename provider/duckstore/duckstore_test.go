package duckstore

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	studio "github.com/goliatone/go-auth-studio"
)

// The driver is CGO-backed, so these tests stay on the row translation
// helpers instead of a live database.

func TestRowValues(t *testing.T) {
	ts := time.Now().UTC()
	event := &studio.AuthEvent{
		ID:             "evt_1",
		Kind:           studio.EventUserSignIn,
		Timestamp:      ts,
		Status:         studio.EventStatusSuccess,
		UserID:         "usr_1",
		SessionID:      "ses_1",
		OrganizationID: "org_1",
		Metadata:       map[string]any{"name": "Ada"},
		IPAddress:      "203.0.113.9",
		UserAgent:      "studio-test",
		Source:         studio.EventSourceApp,
		Display:        &studio.EventDisplay{Message: "Ada signed in", Severity: studio.SeveritySuccess},
	}

	row, err := rowValues(event)
	require.NoError(t, err)
	require.Len(t, row, 13)

	assert.Equal(t, "evt_1", row[0])
	assert.Equal(t, string(studio.EventUserSignIn), row[1])
	assert.Equal(t, ts, row[2])
	assert.Equal(t, string(studio.EventStatusSuccess), row[3])
	assert.Equal(t, "usr_1", row[4])
	assert.Equal(t, "ses_1", row[5])
	assert.Equal(t, "org_1", row[6])
	assert.Equal(t, "203.0.113.9", row[8])
	assert.Equal(t, "studio-test", row[9])
	assert.Equal(t, string(studio.EventSourceApp), row[10])
	assert.Equal(t, "Ada signed in", row[11])
	assert.Equal(t, string(studio.SeveritySuccess), row[12])

	metadata, ok := row[7].(string)
	require.True(t, ok)
	decoded := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(metadata), &decoded))
	assert.Equal(t, map[string]any{"name": "Ada"}, decoded)
}

func TestRowValuesOmitsEmptyOptionalColumns(t *testing.T) {
	row, err := rowValues(&studio.AuthEvent{
		ID:        "evt_1",
		Kind:      studio.EventUserSignOut,
		Timestamp: time.Now().UTC(),
		Status:    studio.EventStatusSuccess,
	})
	require.NoError(t, err)

	// No metadata serializes to a NULL column, not "{}".
	assert.Nil(t, row[7])
	assert.Equal(t, "", row[11])
	assert.Equal(t, "", row[12])
}

func TestRowValuesNilEvent(t *testing.T) {
	_, err := rowValues(nil)
	assert.Error(t, err)
}

func TestNewRequiresDB(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestWithTable(t *testing.T) {
	s := &Store{table: DefaultTable}
	WithTable("custom_events")(s)
	assert.Equal(t, "custom_events", s.table)

	WithTable("")(s)
	assert.Equal(t, "custom_events", s.table)
}
