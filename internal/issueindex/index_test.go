package issueindex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tagscope/models"
)

func TestBuild(t *testing.T) {
	issues := []models.Issue{
		{EntityKind: models.KindTag, EntityID: "10", Categories: []string{models.CategoryPaused}, Severity: models.SeverityMinor},
		{EntityKind: models.KindTag, EntityID: "2", Categories: []string{models.CategoryPaused}, Severity: models.SeverityMinor},
		{EntityKind: models.KindTag, EntityID: "2", Categories: []string{models.CategoryNaming}, Severity: models.SeverityMinor},
		{EntityKind: models.KindTrigger, EntityID: "2", Categories: []string{models.CategoryTriggerUnused}, Severity: models.SeverityMinor},
		{EntityKind: models.KindTag, EntityID: "5", Categories: []string{models.CategoryHTMLSecurity, models.CategoryHTMLXSS}, Severity: models.SeverityCritical},
	}

	idx := Build(issues)

	assert.Equal(t, []string{"tag:2", "tag:10"}, idx.ByCategory[models.CategoryPaused])
	assert.Equal(t, []string{"tag:5"}, idx.ByCategory[models.CategoryHTMLSecurity])
	assert.Equal(t, []string{"tag:5"}, idx.ByCategory[models.CategoryHTMLXSS])
	assert.Len(t, idx.ByID["tag:2"], 2)
	assert.Len(t, idx.IssuesFor("trigger:2"), 1)

	assert.True(t, idx.Has(models.CategoryPaused, "tag:10"))
	assert.False(t, idx.Has(models.CategoryPaused, "trigger:2"))
	assert.False(t, idx.Has("missing", "tag:10"))

	assert.Equal(t, []string{
		models.CategoryHTMLSecurity, models.CategoryHTMLXSS, models.CategoryNaming,
		models.CategoryPaused, models.CategoryTriggerUnused,
	}, idx.Categories())
}

func TestBuild_Empty(t *testing.T) {
	idx := Build(nil)
	assert.Empty(t, idx.ByCategory)
	assert.Empty(t, idx.ByID)

	data, err := json.Marshal(idx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"byCategory":{},"byId":{}}`, string(data))
}

func TestHas_AfterDecode(t *testing.T) {
	data, err := json.Marshal(Build([]models.Issue{
		{EntityKind: models.KindVariable, EntityID: "3", Categories: []string{models.CategoryUnused}},
	}))
	require.NoError(t, err)

	var idx Index
	require.NoError(t, json.Unmarshal(data, &idx))
	assert.True(t, idx.Has(models.CategoryUnused, "variable:3"))
}

func TestNilIndex(t *testing.T) {
	var idx *Index
	assert.False(t, idx.Has("x", "tag:1"))
	assert.Nil(t, idx.IssuesFor("tag:1"))
	assert.Nil(t, idx.Categories())
}
