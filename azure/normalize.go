package azure

// Field paths in the upstream field bag.
const (
	FieldTitle       = "System.Title"
	FieldDescription = "System.Description"
	FieldState       = "System.State"
	FieldCreated     = "System.CreatedDate"
	FieldAssignedTo  = "System.AssignedTo"
	FieldTags        = "System.Tags"
)

// Assignee is the flattened assignee projection. Pointer fields serialize as
// null when the upstream structure is absent at any level.
type Assignee struct {
	DisplayName *string `json:"displayName"`
	UniqueName  *string `json:"uniqueName"`
	AvatarURL   *string `json:"avatarUrl"`
}

// WorkItem is the gateway's stable output shape for a work item.
// WebURL is only populated on single and batch fetches.
type WorkItem struct {
	ID          int      `json:"id"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	State       *string  `json:"state"`
	CreatedDate *string  `json:"createdDate"`
	AssignedTo  Assignee `json:"assignedTo"`
	URL         string   `json:"url"`
	WebURL      string   `json:"webUrl,omitempty"`
}

// Normalize projects an upstream work item into the gateway shape. Missing
// fields at any nesting level come out as null rather than an error, and the
// same projection applies whether one item or many are being converted.
func Normalize(raw RawWorkItem) WorkItem {
	item := WorkItem{
		ID:          raw.ID,
		Title:       stringField(raw.Fields, FieldTitle),
		Description: stringField(raw.Fields, FieldDescription),
		State:       stringField(raw.Fields, FieldState),
		CreatedDate: stringField(raw.Fields, FieldCreated),
		URL:         raw.URL,
	}

	if assigned, ok := raw.Fields[FieldAssignedTo].(map[string]interface{}); ok {
		item.AssignedTo.DisplayName = stringField(assigned, "displayName")
		item.AssignedTo.UniqueName = stringField(assigned, "uniqueName")
		if links, ok := assigned["_links"].(map[string]interface{}); ok {
			if avatar, ok := links["avatar"].(map[string]interface{}); ok {
				item.AssignedTo.AvatarURL = stringField(avatar, "href")
			}
		}
	}

	return item
}

func stringField(fields map[string]interface{}, key string) *string {
	if s, ok := fields[key].(string); ok {
		return &s
	}
	return nil
}
