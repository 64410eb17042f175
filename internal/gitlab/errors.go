package gitlab

import "fmt"

// UnauthenticatedError means no usable token is stored for the user, either
// because none was ever stored or because the provider rejected the stored one
// and it was revoked. The remedy is always reauthorization, never a retry.
type UnauthenticatedError struct {
	Username string
}

func (e *UnauthenticatedError) Error() string {
	return fmt.Sprintf("no valid access token for user %q: please reauthorize", e.Username)
}

// UpstreamError is a non-success response from the provider API. Status is 0
// when the request never produced a response (transport failure, timeout).
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("gitlab request failed: %s", e.Body)
	}
	return fmt.Sprintf("gitlab returned status %d: %s", e.Status, e.Body)
}

// NotFoundError means the named project does not exist among the user's owned
// projects under any case variant of the requested name.
type NotFoundError struct {
	Project string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("project %q not found or inaccessible", e.Project)
}

// CloneError carries the diagnostic output of a failed local clone.
// Output is redacted: it never contains the access token.
type CloneError struct {
	Project string
	Output  string
	Err     error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("failed to clone %q: %v: %s", e.Project, e.Err, e.Output)
}

func (e *CloneError) Unwrap() error { return e.Err }
