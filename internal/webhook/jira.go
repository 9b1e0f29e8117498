package webhook

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/trackwire/trackwire/internal/status"
	"github.com/trackwire/trackwire/internal/types"
)

func init() {
	Register("jira", func() Normalizer {
		return &jiraNormalizer{mapper: status.NewMapper(nil)}
	})
}

// jiraNormalizer handles Jira-style deliveries: the discriminator is the
// payload's webhookEvent field, field diffs arrive in changelog.items.
type jiraNormalizer struct {
	mapper *status.Mapper
}

func (n *jiraNormalizer) Name() string { return "jira" }

type jiraPayload struct {
	WebhookEvent string `json:"webhookEvent"`
	Timestamp    int64  `json:"timestamp"`
	User         *struct {
		AccountID    string `json:"accountId"`
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"user"`
	Issue *struct {
		ID     string `json:"id"`
		Key    string `json:"key"`
		Fields struct {
			Project *struct {
				Key string `json:"key"`
			} `json:"project"`
		} `json:"fields"`
	} `json:"issue"`
	Comment *struct {
		ID string `json:"id"`
	} `json:"comment"`
	Changelog *struct {
		Items []struct {
			Field      string `json:"field"`
			FromString string `json:"fromString"`
			ToString   string `json:"toString"`
		} `json:"items"`
	} `json:"changelog"`
}

func (n *jiraNormalizer) Parse(rawBody []byte, header http.Header) (*Event, error) {
	var payload jiraPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, nil
	}

	var kind EventKind
	var resource ResourceKind
	switch payload.WebhookEvent {
	case "jira:issue_created":
		kind, resource = IssueCreated, ResourceIssue
	case "jira:issue_updated":
		kind, resource = IssueUpdated, ResourceIssue
	case "comment_created":
		kind, resource = CommentAdded, ResourceComment
	case "comment_updated":
		kind, resource = CommentUpdated, ResourceComment
	case "comment_deleted":
		kind, resource = CommentDeleted, ResourceComment
	default:
		return nil, nil
	}

	event := &Event{
		Kind:     kind,
		Resource: resource,
		Raw:      rawBody,
	}

	switch resource {
	case ResourceIssue:
		if payload.Issue == nil {
			return nil, nil
		}
		event.ResourceID = payload.Issue.Key
	case ResourceComment:
		if payload.Comment == nil {
			return nil, nil
		}
		event.ResourceID = payload.Comment.ID
	}

	if payload.Issue != nil && payload.Issue.Fields.Project != nil {
		event.ProjectID = payload.Issue.Fields.Project.Key
	}
	if payload.User != nil {
		event.Actor = types.User{
			ID:    payload.User.AccountID,
			Name:  payload.User.DisplayName,
			Email: payload.User.EmailAddress,
		}
	}
	if payload.Timestamp > 0 {
		event.Timestamp = time.UnixMilli(payload.Timestamp).UTC()
	}

	if payload.Changelog != nil && len(payload.Changelog.Items) > 0 {
		event.Changes = make(map[string]FieldChange, len(payload.Changelog.Items))
		for _, item := range payload.Changelog.Items {
			event.Changes[item.Field] = FieldChange{Old: item.FromString, New: item.ToString}

			// Jira reports closure as an issue_updated whose status moved
			// into closed vocabulary.
			if kind == IssueUpdated && item.Field == "status" &&
				n.mapper.Normalize(item.ToString, status.GlobalContext) == types.StatusClosed {
				event.Kind = IssueClosed
			}
		}
	}

	return event, nil
}
