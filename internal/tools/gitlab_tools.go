package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rapidops/gitbridge/internal/gitlab"
)

// Authorizer is the OAuth surface the tools need. Satisfied by
// *oauth.Exchanger.
type Authorizer interface {
	AuthorizationURL() string
	Exchange(ctx context.Context, code string) (string, error)
}

// GitLabAPI is the provider surface the tools need. Satisfied by
// *gitlab.Client.
type GitLabAPI interface {
	Profile(ctx context.Context, username string) (*gitlab.Profile, error)
	Projects(ctx context.Context, username string) ([]string, error)
	LocateAndClone(ctx context.Context, username, projectName string) (string, error)
}

// RegisterGitLabTools registers the five operations the assistant can call.
func RegisterGitLabTools(r *Registry, auth Authorizer, api GitLabAPI) {
	r.Register(Descriptor{
		Name:        "get_authorization_url",
		Description: "Generate the GitLab authorization URL the user must open in a browser to grant access.",
		InputSchema: Schema{Type: "object"},
	}, func(ctx context.Context, _ map[string]interface{}) (string, error) {
		return auth.AuthorizationURL(), nil
	})

	r.Register(Descriptor{
		Name:        "exchange_code_for_token",
		Description: "Exchange an authorization code for an access token and store it securely for the resolved user.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"code": {Type: "string", Description: "The authorization code GitLab issued after the user approved access."},
			},
			Required: []string{"code"},
		},
	}, func(ctx context.Context, input map[string]interface{}) (string, error) {
		code, err := stringArg("exchange_code_for_token", input, "code")
		if err != nil {
			return "", err
		}
		return auth.Exchange(ctx, code)
	})

	r.Register(Descriptor{
		Name:        "get_user_projects",
		Description: "List the authenticated user's owned GitLab projects.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"username": {Type: "string", Description: "The GitLab username whose stored token authenticates the call."},
			},
			Required: []string{"username"},
		},
	}, func(ctx context.Context, input map[string]interface{}) (string, error) {
		username, err := stringArg("get_user_projects", input, "username")
		if err != nil {
			return "", err
		}
		names, err := api.Projects(ctx, username)
		if err != nil {
			return "", err
		}
		if len(names) == 0 {
			return "No projects found.", nil
		}
		return strings.Join(names, "\n"), nil
	})

	r.Register(Descriptor{
		Name:        "get_user_profile",
		Description: "Fetch the authenticated user's GitLab profile.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"username": {Type: "string", Description: "The GitLab username whose stored token authenticates the call."},
			},
			Required: []string{"username"},
		},
	}, func(ctx context.Context, input map[string]interface{}) (string, error) {
		username, err := stringArg("get_user_profile", input, "username")
		if err != nil {
			return "", err
		}
		profile, err := api.Profile(ctx, username)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Username: %s, Name: %s, Email: %s, Projects limit: %d",
			profile.Username, profile.Name, profile.Email, profile.ProjectsLimit), nil
	})

	r.Register(Descriptor{
		Name:        "clone_project",
		Description: "Clone one of the authenticated user's GitLab projects by name.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"username":     {Type: "string", Description: "The GitLab username of the authenticated user."},
				"project_name": {Type: "string", Description: "The name of the project to clone; matching is case-insensitive."},
			},
			Required: []string{"username", "project_name"},
		},
	}, func(ctx context.Context, input map[string]interface{}) (string, error) {
		username, err := stringArg("clone_project", input, "username")
		if err != nil {
			return "", err
		}
		project, err := stringArg("clone_project", input, "project_name")
		if err != nil {
			return "", err
		}
		return api.LocateAndClone(ctx, username, project)
	})
}

// stringArg extracts a required string field, rejecting non-string values.
func stringArg(tool string, input map[string]interface{}, key string) (string, error) {
	s, ok := input[key].(string)
	if !ok || s == "" {
		return "", &InvalidInputError{Tool: tool, Field: key}
	}
	return s, nil
}
