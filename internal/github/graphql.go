package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// graphQLRequest is the POST body for the GraphQL endpoint.
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// graphQLError is one entry in a GraphQL error response.
type graphQLError struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// graphQLResponse is the envelope for all GraphQL responses.
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// doGraphQL performs one GraphQL call and decodes data into out.
// HTTP-level failures are classified like REST calls; GraphQL-level
// errors are mapped onto the same taxonomy by type.
func (c *Client) doGraphQL(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	reqBody, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.GraphQLURL, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	const maxResponseSize = 10 * 1024 * 1024
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyResponse(resp.StatusCode, string(respBody), resp.Header)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to parse GraphQL response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return classifyGraphQLError(envelope.Errors[0])
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode GraphQL data: %w", err)
		}
	}
	return nil
}

// classifyGraphQLError maps a GraphQL error type onto the sentinel
// taxonomy. GraphQL reports errors with HTTP 200, so this is the only
// place those classifications can happen.
func classifyGraphQLError(gqlErr graphQLError) error {
	switch gqlErr.Type {
	case "NOT_FOUND":
		return fmt.Errorf("%s: %w", gqlErr.Message, ErrNotFound)
	case "RATE_LIMITED":
		return &APIError{StatusCode: http.StatusTooManyRequests, Message: gqlErr.Message}
	case "FORBIDDEN", "INSUFFICIENT_SCOPES":
		return fmt.Errorf("%s: %w", gqlErr.Message, ErrAuth)
	}
	return fmt.Errorf("GraphQL error: %s", gqlErr.Message)
}

// FetchIssueNodeID resolves an issue number to its GraphQL node ID.
func (c *Client) FetchIssueNodeID(ctx context.Context, number int) (string, error) {
	const query = `
		query($owner: String!, $repo: String!, $number: Int!) {
			repository(owner: $owner, name: $repo) {
				issue(number: $number) { id }
			}
		}`

	var data struct {
		Repository struct {
			Issue *struct {
				ID string `json:"id"`
			} `json:"issue"`
		} `json:"repository"`
	}
	err := c.withRetry(ctx, fmt.Sprintf("fetch node ID of issue #%d", number), func() error {
		return c.doGraphQL(ctx, query, map[string]interface{}{
			"owner": c.Owner, "repo": c.Repo, "number": number,
		}, &data)
	})
	if err != nil {
		return "", err
	}
	if data.Repository.Issue == nil {
		return "", fmt.Errorf("issue #%d: %w", number, ErrNotFound)
	}
	return data.Repository.Issue.ID, nil
}

// LinkSubIssue attaches a child issue to a parent via the sub-issues API.
func (c *Client) LinkSubIssue(ctx context.Context, parentNodeID, childNodeID string) error {
	const mutation = `
		mutation($parentId: ID!, $childId: ID!) {
			addSubIssue(input: { issueId: $parentId, subIssueId: $childId }) {
				issue { id }
			}
		}`

	return c.withRetry(ctx, "link sub-issue", func() error {
		return c.doGraphQL(ctx, mutation, map[string]interface{}{
			"parentId": parentNodeID, "childId": childNodeID,
		}, nil)
	})
}

// StatusOption is one selectable value of a project's status field.
type StatusOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectField describes a project's single-select field and its options.
type ProjectField struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Options []StatusOption `json:"options"`
}

// ResolveProjectID resolves a project number to its node ID, trying the
// owner first as an organization, then as a user.
func (c *Client) ResolveProjectID(ctx context.Context, projectNumber int) (string, error) {
	const orgQuery = `
		query($login: String!, $number: Int!) {
			organization(login: $login) {
				projectV2(number: $number) { id }
			}
		}`
	const userQuery = `
		query($login: String!, $number: Int!) {
			user(login: $login) {
				projectV2(number: $number) { id }
			}
		}`

	vars := map[string]interface{}{"login": c.Owner, "number": projectNumber}

	var orgData struct {
		Organization struct {
			ProjectV2 *struct {
				ID string `json:"id"`
			} `json:"projectV2"`
		} `json:"organization"`
	}
	err := c.withRetry(ctx, fmt.Sprintf("resolve project %d", projectNumber), func() error {
		return c.doGraphQL(ctx, orgQuery, vars, &orgData)
	})
	if err == nil && orgData.Organization.ProjectV2 != nil {
		return orgData.Organization.ProjectV2.ID, nil
	}

	var userData struct {
		User struct {
			ProjectV2 *struct {
				ID string `json:"id"`
			} `json:"projectV2"`
		} `json:"user"`
	}
	err = c.withRetry(ctx, fmt.Sprintf("resolve project %d", projectNumber), func() error {
		return c.doGraphQL(ctx, userQuery, vars, &userData)
	})
	if err != nil {
		return "", err
	}
	if userData.User.ProjectV2 == nil {
		return "", fmt.Errorf("project %d: %w", projectNumber, ErrNotFound)
	}
	return userData.User.ProjectV2.ID, nil
}

// FetchProjectField retrieves a single-select field and its options from
// a project. The status resolver uses this to discover which statuses
// actually exist before attempting an update.
func (c *Client) FetchProjectField(ctx context.Context, projectID, fieldName string) (*ProjectField, error) {
	const query = `
		query($projectId: ID!, $fieldName: String!) {
			node(id: $projectId) {
				... on ProjectV2 {
					field(name: $fieldName) {
						... on ProjectV2SingleSelectField {
							id
							name
							options { id name }
						}
					}
				}
			}
		}`

	var data struct {
		Node struct {
			Field *ProjectField `json:"field"`
		} `json:"node"`
	}
	err := c.withRetry(ctx, fmt.Sprintf("fetch project field %q", fieldName), func() error {
		return c.doGraphQL(ctx, query, map[string]interface{}{
			"projectId": projectID, "fieldName": fieldName,
		}, &data)
	})
	if err != nil {
		return nil, err
	}
	if data.Node.Field == nil || data.Node.Field.ID == "" {
		return nil, fmt.Errorf("project field %q: %w", fieldName, ErrNotFound)
	}
	return data.Node.Field, nil
}

// AddProjectItem adds an issue (by node ID) to a project and returns the
// new project item's ID.
func (c *Client) AddProjectItem(ctx context.Context, projectID, contentNodeID string) (string, error) {
	const mutation = `
		mutation($projectId: ID!, $contentId: ID!) {
			addProjectV2ItemById(input: { projectId: $projectId, contentId: $contentId }) {
				item { id }
			}
		}`

	var data struct {
		AddProjectV2ItemByID struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemById"`
	}
	err := c.withRetry(ctx, "add project item", func() error {
		return c.doGraphQL(ctx, mutation, map[string]interface{}{
			"projectId": projectID, "contentId": contentNodeID,
		}, &data)
	})
	if err != nil {
		return "", err
	}
	if data.AddProjectV2ItemByID.Item.ID == "" {
		return "", fmt.Errorf("add project item: empty item ID in response")
	}
	return data.AddProjectV2ItemByID.Item.ID, nil
}

// UpdateProjectItemField sets a single-select field on a project item.
func (c *Client) UpdateProjectItemField(ctx context.Context, projectID, itemID, fieldID, optionID string) error {
	const mutation = `
		mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $optionId: String!) {
			updateProjectV2ItemFieldValue(input: {
				projectId: $projectId, itemId: $itemId, fieldId: $fieldId,
				value: { singleSelectOptionId: $optionId }
			}) {
				projectV2Item { id }
			}
		}`

	return c.withRetry(ctx, "update project item field", func() error {
		return c.doGraphQL(ctx, mutation, map[string]interface{}{
			"projectId": projectID, "itemId": itemID,
			"fieldId": fieldID, "optionId": optionID,
		}, nil)
	})
}

// FetchProjectItemStatus reads back the current value of a named
// single-select field on a project item. Returns "" when the field is
// unset. The status resolver's verification loop uses this because
// project writes are eventually consistent.
func (c *Client) FetchProjectItemStatus(ctx context.Context, itemID, fieldName string) (string, error) {
	const query = `
		query($itemId: ID!, $fieldName: String!) {
			node(id: $itemId) {
				... on ProjectV2Item {
					fieldValueByName(name: $fieldName) {
						... on ProjectV2ItemFieldSingleSelectValue { name }
					}
				}
			}
		}`

	var data struct {
		Node struct {
			FieldValueByName *struct {
				Name string `json:"name"`
			} `json:"fieldValueByName"`
		} `json:"node"`
	}
	err := c.withRetry(ctx, fmt.Sprintf("read project item field %q", fieldName), func() error {
		return c.doGraphQL(ctx, query, map[string]interface{}{
			"itemId": itemID, "fieldName": fieldName,
		}, &data)
	})
	if err != nil {
		return "", err
	}
	if data.Node.FieldValueByName == nil {
		return "", nil
	}
	return data.Node.FieldValueByName.Name, nil
}
