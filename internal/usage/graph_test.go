package usage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tagscope/models"
)

func mustParse(t *testing.T, in string) *models.Container {
	t.Helper()
	c, err := models.ParseContainer([]byte(in))
	require.NoError(t, err)
	return c
}

func TestExtractPlaceholders(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"plain", nil},
		{"{{Page URL}}", []string{"Page URL"}},
		{"a {{ x }} b {{y}}", []string{"x", "y"}},
		{"{{}} {{  }}", nil},
		{"{{unterminated", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPlaceholders(tt.in))
		})
	}
}

func TestBuild_CollectsEverywhere(t *testing.T) {
	c := mustParse(t, `{
		"tag": [{
			"tagId": "1", "name": "t", "type": "html",
			"html": "<script>var a = {{From Html}};</script>",
			"firingTriggerId": ["10"], "blockingTriggerId": ["11"],
			"parameter": [{"type": "MAP", "key": "m", "map": [
				{"type": "LIST", "key": "l", "list": [{"type": "TEMPLATE", "value": "{{Deep}}"}]}
			]}]
		}],
		"trigger": [{
			"triggerId": "10", "name": "trig", "type": "CUSTOM_EVENT",
			"customEventFilter": [{"type": "EQUALS", "parameter": [{"key": "arg0", "value": "{{_event}}"}]}],
			"filter": [{"type": "CONTAINS", "parameter": [{"key": "arg0", "value": "{{Page Path}}"}]}],
			"parameter": [{"type": "LIST", "key": "triggerIds", "list": [{"type": "TRIGGER_REFERENCE", "value": "12"}]}]
		}],
		"variable": [{
			"variableId": "5", "name": "v", "type": "jsm",
			"parameter": [{"type": "TEMPLATE", "key": "javascript", "value": "function(){return {{ Other }};}"}]
		}]
	}`)

	g := Build(c, 0)

	for _, n := range []string{"From Html", "Deep", "_event", "Page Path", "Other"} {
		assert.True(t, g.HasName(n), n)
	}
	for _, id := range []string{"10", "11", "12"} {
		assert.True(t, g.HasTriggerID(id), id)
	}
	assert.Equal(t, []string{"Deep", "From Html"}, g.References["tag:1"])
	assert.Equal(t, []string{"Page Path", "_event"}, g.References["trigger:10"])
	assert.Equal(t, []string{"Other"}, g.References["variable:5"])
}

func TestBuild_DepthBound(t *testing.T) {
	// build a parameter nested deeper than the bound
	p := models.Parameter{Type: models.ParamTemplate, Value: "{{Bottom}}"}
	for i := 0; i < 10; i++ {
		p = models.Parameter{Type: models.ParamList, List: []models.Parameter{p}}
	}
	c := &models.Container{Variables: []models.Variable{{VariableID: "1", Name: "v", Type: "c", Parameters: []models.Parameter{p}}}}

	assert.False(t, Build(c, 5).HasName("Bottom"))
	assert.True(t, Build(c, 50).HasName("Bottom"))
}

func TestBuild_NilAndEmpty(t *testing.T) {
	g := Build(nil, 0)
	assert.Empty(t, g.Names)

	g = Build(&models.Container{}, 0)
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"referenced_names": [], "referenced_trigger_ids": []}`, string(data))
}

func TestBuild_DoesNotMutate(t *testing.T) {
	in := `{"tag": [{"tagId": "1", "name": "t", "type": "html", "parameter": [{"key": "html", "value": "{{X}}"}]}]}`
	c := mustParse(t, in)
	before, err := json.Marshal(c)
	require.NoError(t, err)

	Build(c, 0)

	after, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestSortedTriggerIDs(t *testing.T) {
	c := &models.Container{Tags: []models.Tag{{FiringTriggerIDs: []string{"10", "9", "100"}}}}
	assert.Equal(t, []string{"9", "10", "100"}, Build(c, 0).SortedTriggerIDs())
}

func TestDanglingIssues(t *testing.T) {
	c := mustParse(t, `{
		"tag": [
			{"tagId": "1", "name": "a", "type": "html", "firingTriggerId": ["2147479553", "7", "99", "99"],
			 "parameter": [{"key": "html", "value": "{{Known}} {{Page URL}} {{trig}} {{Ghost}}"}]}
		],
		"trigger": [{"triggerId": "7", "name": "trig", "type": "CLICK"}],
		"variable": [{"variableId": "3", "name": "Known", "type": "c", "parameter": [{"key": "value", "value": "{{Missing}}"}]}]
	}`)

	issues := DanglingIssues(c, Build(c, 0))
	models.SortIssues(issues)

	require.Len(t, issues, 3)
	assert.Equal(t, models.CategoryDanglingTrigger, issues[0].Category())
	assert.Equal(t, "tag:1", issues[0].Key())
	assert.Contains(t, issues[0].Reason, "99")
	assert.Equal(t, models.SeverityMajor, issues[0].Severity)

	assert.Equal(t, models.CategoryDanglingVar, issues[1].Category())
	assert.Contains(t, issues[1].Reason, "{{Ghost}}")
	assert.Equal(t, models.SeverityMinor, issues[1].Severity)

	assert.Equal(t, "variable:3", issues[2].Key())
	assert.Contains(t, issues[2].Reason, "{{Missing}}")
}

func TestDanglingIssues_DuplicateIDs(t *testing.T) {
	c := mustParse(t, `{
		"tag": [
			{"tagId": "5", "name": "a", "type": "html", "parameter": [{"key": "html", "value": "{{Ghost}}"}]},
			{"tagId": "5", "name": "b", "type": "html", "parameter": [{"key": "html", "value": "{{Ghost}}"}]}
		]
	}`)

	issues := DanglingIssues(c, Build(c, 0))

	require.Len(t, issues, 1)
	assert.Equal(t, "tag:5", issues[0].Key())
	assert.Contains(t, issues[0].Reason, "{{Ghost}}")
}

func TestResolver_ExplicitBuiltIns(t *testing.T) {
	c := &models.Container{BuiltInVariables: []models.BuiltInVariable{{Name: "Page URL", Type: "PAGE_URL"}}}
	r := NewResolver(c)
	assert.True(t, r.ResolvesName("Page URL"))
	assert.True(t, r.ResolvesName("Event"))
	assert.False(t, r.ResolvesName("Click Text"))
	assert.True(t, r.ResolvesTrigger(models.BuiltInConsentInitTriggerID))
	assert.False(t, r.ResolvesTrigger("1"))
}

func TestGraph_JSONRoundTrip(t *testing.T) {
	c := mustParse(t, `{
		"tag": [{"tagId": "1", "name": "t", "type": "html", "html": "{{B}} {{A}}", "firingTriggerId": ["12", "3"]}]
	}`)
	g := Build(c, 0)

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"referenced_names": ["A", "B"], "referenced_trigger_ids": ["3", "12"]}`, string(data))

	var back Graph
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g.SortedNames(), back.SortedNames())
	assert.Equal(t, g.SortedTriggerIDs(), back.SortedTriggerIDs())
	assert.True(t, back.HasName("A"))
}
