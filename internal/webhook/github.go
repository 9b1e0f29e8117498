package webhook

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/trackwire/trackwire/internal/types"
)

// githubEventHeader carries the event discriminator for GitHub-style hooks.
const githubEventHeader = "X-GitHub-Event"

func init() {
	Register("github", func() Normalizer {
		return &githubNormalizer{}
	})
}

// githubNormalizer handles GitHub-style deliveries: the event name arrives
// in a header, the sub-action in the payload's "action" field.
type githubNormalizer struct{}

func (n *githubNormalizer) Name() string { return "github" }

type githubPayload struct {
	Action string `json:"action"`
	Issue  *struct {
		ID        int64  `json:"id"`
		Number    int    `json:"number"`
		Title     string `json:"title"`
		Body      string `json:"body"`
		UpdatedAt string `json:"updated_at"`
	} `json:"issue"`
	Comment *struct {
		ID        int64  `json:"id"`
		Body      string `json:"body"`
		UpdatedAt string `json:"updated_at"`
	} `json:"comment"`
	Repository *struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Sender *struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
	} `json:"sender"`
	Changes map[string]struct {
		From any `json:"from"`
	} `json:"changes"`
}

func (n *githubNormalizer) Parse(rawBody []byte, header http.Header) (*Event, error) {
	var payload githubPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, nil
	}

	var kind EventKind
	var resource ResourceKind
	switch header.Get(githubEventHeader) {
	case "issues":
		resource = ResourceIssue
		switch payload.Action {
		case "opened":
			kind = IssueCreated
		case "closed":
			kind = IssueClosed
		case "edited", "reopened", "assigned", "unassigned", "labeled", "unlabeled":
			kind = IssueUpdated
		default:
			return nil, nil
		}
	case "issue_comment":
		resource = ResourceComment
		switch payload.Action {
		case "created":
			kind = CommentAdded
		case "edited":
			kind = CommentUpdated
		case "deleted":
			kind = CommentDeleted
		default:
			return nil, nil
		}
	default:
		return nil, nil
	}

	event := &Event{
		Kind:     kind,
		Resource: resource,
		Raw:      rawBody,
	}

	if payload.Repository != nil {
		event.ProjectID = payload.Repository.FullName
	}
	if payload.Sender != nil {
		event.Actor = types.User{
			ID:       strconv.FormatInt(payload.Sender.ID, 10),
			Username: payload.Sender.Login,
		}
	}

	var updatedAt string
	switch resource {
	case ResourceIssue:
		if payload.Issue == nil {
			return nil, nil
		}
		event.ResourceID = strconv.Itoa(payload.Issue.Number)
		updatedAt = payload.Issue.UpdatedAt
	case ResourceComment:
		if payload.Comment == nil {
			return nil, nil
		}
		event.ResourceID = strconv.FormatInt(payload.Comment.ID, 10)
		updatedAt = payload.Comment.UpdatedAt
	}
	if ts, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		event.Timestamp = ts
	}

	// GitHub's changes block carries only the previous value; the current
	// value comes from the resource itself.
	if len(payload.Changes) > 0 {
		event.Changes = make(map[string]FieldChange, len(payload.Changes))
		for field, change := range payload.Changes {
			fc := FieldChange{Old: change.From}
			switch {
			case field == "title" && payload.Issue != nil:
				fc.New = payload.Issue.Title
			case field == "body" && payload.Issue != nil && resource == ResourceIssue:
				fc.New = payload.Issue.Body
			case field == "body" && payload.Comment != nil && resource == ResourceComment:
				fc.New = payload.Comment.Body
			}
			event.Changes[field] = fc
		}
	}

	return event, nil
}
