package azure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFullItem(t *testing.T) {
	raw := RawWorkItem{
		ID:  42,
		URL: "https://dev.azure.com/org/_apis/wit/workItems/42",
		Fields: map[string]interface{}{
			FieldTitle:       "Fix login",
			FieldDescription: "Broken since Tuesday",
			FieldState:       "Active",
			FieldCreated:     "2024-05-01T10:00:00Z",
			FieldAssignedTo: map[string]interface{}{
				"displayName": "Jo Bloggs",
				"uniqueName":  "jo@example.com",
				"_links": map[string]interface{}{
					"avatar": map[string]interface{}{
						"href": "https://dev.azure.com/avatar/jo",
					},
				},
			},
		},
	}

	item := Normalize(raw)
	assert.Equal(t, 42, item.ID)
	require.NotNil(t, item.Title)
	assert.Equal(t, "Fix login", *item.Title)
	require.NotNil(t, item.State)
	assert.Equal(t, "Active", *item.State)
	require.NotNil(t, item.AssignedTo.DisplayName)
	assert.Equal(t, "Jo Bloggs", *item.AssignedTo.DisplayName)
	require.NotNil(t, item.AssignedTo.AvatarURL)
	assert.Equal(t, "https://dev.azure.com/avatar/jo", *item.AssignedTo.AvatarURL)
	assert.Equal(t, raw.URL, item.URL)
}

func TestNormalizeNoAssignee(t *testing.T) {
	raw := RawWorkItem{
		ID: 7,
		Fields: map[string]interface{}{
			FieldTitle: "Unassigned",
		},
	}

	item := Normalize(raw)
	assert.Nil(t, item.AssignedTo.DisplayName)
	assert.Nil(t, item.AssignedTo.UniqueName)
	assert.Nil(t, item.AssignedTo.AvatarURL)
	assert.Nil(t, item.Description)
	assert.Nil(t, item.State)
	assert.Nil(t, item.CreatedDate)
}

func TestNormalizePartialAssignee(t *testing.T) {
	// Assignee present but the avatar link chain is truncated.
	raw := RawWorkItem{
		ID: 8,
		Fields: map[string]interface{}{
			FieldAssignedTo: map[string]interface{}{
				"displayName": "Sam",
				"_links":      map[string]interface{}{},
			},
		},
	}

	item := Normalize(raw)
	require.NotNil(t, item.AssignedTo.DisplayName)
	assert.Equal(t, "Sam", *item.AssignedTo.DisplayName)
	assert.Nil(t, item.AssignedTo.UniqueName)
	assert.Nil(t, item.AssignedTo.AvatarURL)
}

func TestNormalizeEmptyFieldBag(t *testing.T) {
	item := Normalize(RawWorkItem{ID: 1})
	assert.Equal(t, 1, item.ID)
	assert.Nil(t, item.Title)
	assert.Nil(t, item.AssignedTo.DisplayName)
}
