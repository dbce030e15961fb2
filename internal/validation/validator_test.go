package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tagscope/models"
)

func TestNew(t *testing.T) {
	v := New()
	assert.NotNil(t, v)
	assert.NotNil(t, v.structValidator)
}

func TestValidateContainer_Valid(t *testing.T) {
	v := New()

	data := []byte(`{
		"tag": [{"tagId": "1", "name": "ga4_config", "type": "googtag", "firingTriggerId": ["2"]}],
		"trigger": [{"triggerId": "2", "name": "all_pages", "type": "PAGEVIEW"}],
		"variable": [{"variableId": "3", "name": "dlv_user", "type": "v"}]
	}`)

	result, err := v.ValidateContainer(data)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateContainer_Envelope(t *testing.T) {
	v := New()

	data := []byte(`{"exportFormatVersion": 2, "containerVersion": {
		"tag": [{"tagId": "1", "name": "t", "type": "html"}]
	}}`)

	result, err := v.ValidateContainer(data)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateContainer_NotAContainer(t *testing.T) {
	v := New()

	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", "   ", models.ErrEmptyInput},
		{"array", "[1,2]", models.ErrNotAContainer},
		{"garbage", "not json", models.ErrNotAContainer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.ValidateContainer([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			require.NotNil(t, result)
			assert.False(t, result.Valid)
			assert.Equal(t, "document", result.Errors[0].Field)
		})
	}
}

func TestValidate_MissingFields(t *testing.T) {
	v := New()

	c := &models.Container{
		Tags:      []models.Tag{{Name: "no_id", Type: "html"}},
		Triggers:  []models.Trigger{{TriggerID: "5", Type: "PAGEVIEW"}},
		Variables: []models.Variable{{VariableID: "9", Name: "x"}},
	}

	result := v.Validate(c)
	assert.False(t, result.Valid)

	fields := make(map[string]string)
	for _, e := range result.Errors {
		fields[e.Field] = e.Message
	}
	assert.Equal(t, "This field is required", fields["tag[0].tagId"])
	assert.Equal(t, "This field is required", fields["trigger[0].name"])
	assert.Equal(t, "This field is required", fields["variable[0].type"])
	assert.Len(t, result.Errors, 3)
}

func TestValidate_DuplicateIDs(t *testing.T) {
	v := New()

	c := &models.Container{
		Tags: []models.Tag{
			{TagID: "1", Name: "a", Type: "html"},
			{TagID: "1", Name: "b", Type: "html"},
			{TagID: "1", Name: "c", Type: "html"},
		},
		// same ID in another kind is not a duplicate
		Triggers: []models.Trigger{{TriggerID: "1", Name: "t", Type: "PAGEVIEW"}},
	}

	result := v.Validate(c)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "tag[1].tagId", result.Errors[0].Field)
	assert.Equal(t, "duplicate ID", result.Errors[0].Message)
	assert.Equal(t, "1", result.Errors[0].Value)
}

func TestValidate_DecodeWarnings(t *testing.T) {
	v := New()

	result, err := v.ValidateContainer([]byte(`{"tag": [42, {"tagId": "1", "name": "ok", "type": "html"}]}`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "document", result.Errors[0].Field)
	assert.Contains(t, result.Errors[0].Message, "tag[0]")

	msgs := result.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "document: skipped undecodable entity")
}
