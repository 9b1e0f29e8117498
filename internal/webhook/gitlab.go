package webhook

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/trackwire/trackwire/internal/types"
)

// gitlabEventHeader carries the event discriminator for GitLab-style hooks.
const gitlabEventHeader = "X-Gitlab-Event"

func init() {
	Register("gitlab", func() Normalizer {
		return &gitlabNormalizer{}
	})
}

// gitlabNormalizer handles GitLab-style deliveries: discriminator in the
// X-Gitlab-Event header, sub-action in object_attributes.action, diffs in
// the top-level changes block.
type gitlabNormalizer struct{}

func (n *gitlabNormalizer) Name() string { return "gitlab" }

type gitlabPayload struct {
	User *struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
	} `json:"user"`
	Project *struct {
		ID                int64  `json:"id"`
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	ObjectAttributes *struct {
		ID     int64  `json:"id"`
		IID    int    `json:"iid"`
		Action string `json:"action"`
	} `json:"object_attributes"`
	Changes map[string]struct {
		Previous any `json:"previous"`
		Current  any `json:"current"`
	} `json:"changes"`
}

func (n *gitlabNormalizer) Parse(rawBody []byte, header http.Header) (*Event, error) {
	var payload gitlabPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, nil
	}
	if payload.ObjectAttributes == nil {
		return nil, nil
	}

	var kind EventKind
	var resource ResourceKind
	var resourceID string
	switch header.Get(gitlabEventHeader) {
	case "Issue Hook":
		resource = ResourceIssue
		resourceID = strconv.Itoa(payload.ObjectAttributes.IID)
		switch payload.ObjectAttributes.Action {
		case "open":
			kind = IssueCreated
		case "close":
			kind = IssueClosed
		case "update", "reopen":
			kind = IssueUpdated
		default:
			return nil, nil
		}
	case "Note Hook":
		// GitLab only delivers note creation.
		resource = ResourceComment
		resourceID = strconv.FormatInt(payload.ObjectAttributes.ID, 10)
		kind = CommentAdded
	default:
		return nil, nil
	}

	event := &Event{
		Kind:       kind,
		Resource:   resource,
		ResourceID: resourceID,
		Raw:        rawBody,
	}

	if payload.Project != nil {
		event.ProjectID = payload.Project.PathWithNamespace
	}
	if payload.User != nil {
		event.Actor = types.User{
			ID:       strconv.FormatInt(payload.User.ID, 10),
			Username: payload.User.Username,
			Name:     payload.User.Name,
		}
	}

	if len(payload.Changes) > 0 {
		event.Changes = make(map[string]FieldChange, len(payload.Changes))
		for field, change := range payload.Changes {
			// updated_at churn is noise, not a field change.
			if field == "updated_at" {
				continue
			}
			event.Changes[field] = FieldChange{Old: change.Previous, New: change.Current}
		}
		if len(event.Changes) == 0 {
			event.Changes = nil
		}
	}

	return event, nil
}
