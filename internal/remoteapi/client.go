package remoteapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	baseURLRequiredMessageConstant           = "remote API base URL must be provided"
	deviceTokenRequiredMessageConstant       = "device token must be provided"
	repositoryNameRequiredMessageConstant    = "repository name must be provided"
	remoteUnavailableMessageTemplateConstant = "remote API request to %s failed: %v"
	unexpectedStatusMessageTemplateConstant  = "remote API request to %s returned status %d"
	decodeFailureMessageTemplateConstant     = "failed to decode remote API response from %s: %w"
	authorizationHeaderNameConstant          = "Authorization"
	bearerSchemePrefixConstant               = "Bearer "
	acceptHeaderNameConstant                 = "Accept"
	jsonContentTypeConstant                  = "application/json"
	deviceIdentityEndpointPathConstant       = "/api/device/me"
	assignedRepositoriesEndpointPathConstant = "/api/device/repos"
	cloneTokenEndpointTemplateConstant       = "/api/device/repos/%s/token"
	defaultRequestTimeoutConstant            = 30 * time.Second
)

var (
	// ErrBaseURLRequired indicates the client was constructed without a base URL.
	ErrBaseURLRequired = errors.New(baseURLRequiredMessageConstant)
	// ErrDeviceTokenRequired indicates the client was constructed without a device token.
	ErrDeviceTokenRequired = errors.New(deviceTokenRequiredMessageConstant)
	// ErrRepositoryNameRequired indicates a token was requested without naming a repository.
	ErrRepositoryNameRequired = errors.New(repositoryNameRequiredMessageConstant)
)

// RemoteUnavailableError indicates the remote API could not be reached.
type RemoteUnavailableError struct {
	Endpoint string
	Cause    error
}

// Error describes the transport failure.
func (unavailableError RemoteUnavailableError) Error() string {
	return fmt.Sprintf(remoteUnavailableMessageTemplateConstant, unavailableError.Endpoint, unavailableError.Cause)
}

// Unwrap exposes the underlying cause.
func (unavailableError RemoteUnavailableError) Unwrap() error {
	return unavailableError.Cause
}

// UnexpectedStatusError indicates the remote API answered outside the 2xx range.
type UnexpectedStatusError struct {
	Endpoint   string
	StatusCode int
}

// Error describes the unexpected status.
func (statusError UnexpectedStatusError) Error() string {
	return fmt.Sprintf(unexpectedStatusMessageTemplateConstant, statusError.Endpoint, statusError.StatusCode)
}

// DeviceUser identifies the account the device token belongs to.
type DeviceUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DeviceIdentity describes the authenticated device and its owning user.
type DeviceIdentity struct {
	DeviceID string     `json:"device_id"`
	User     DeviceUser `json:"user"`
}

// AssignedRepository describes a repository the remote service assigned to this device.
type AssignedRepository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	CloneURL string `json:"clone_url"`
	SSHURL   string `json:"ssh_url"`
}

// RemoteURL selects the clone URL, falling back to the SSH URL when the HTTPS
// variant is absent.
func (repository AssignedRepository) RemoteURL() string {
	if len(strings.TrimSpace(repository.CloneURL)) > 0 {
		return repository.CloneURL
	}
	return repository.SSHURL
}

type cloneTokenResponse struct {
	Token string `json:"token"`
}

// Client talks to the cloud service with device token bearer authentication.
type Client struct {
	baseURL     string
	deviceToken string
	httpClient  *http.Client
}

// NewClient constructs a Client for the supplied base URL and device token.
// A nil HTTP client selects a default with a bounded request timeout.
func NewClient(baseURL string, deviceToken string, httpClient *http.Client) (*Client, error) {
	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if len(trimmedBaseURL) == 0 {
		return nil, ErrBaseURLRequired
	}
	trimmedDeviceToken := strings.TrimSpace(deviceToken)
	if len(trimmedDeviceToken) == 0 {
		return nil, ErrDeviceTokenRequired
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeoutConstant}
	}
	return &Client{baseURL: trimmedBaseURL, deviceToken: trimmedDeviceToken, httpClient: httpClient}, nil
}

// GetDeviceIdentity reports the device and user the token authenticates.
func (client *Client) GetDeviceIdentity(requestContext context.Context) (DeviceIdentity, error) {
	var identity DeviceIdentity
	if requestError := client.getJSON(requestContext, deviceIdentityEndpointPathConstant, &identity); requestError != nil {
		return DeviceIdentity{}, requestError
	}
	return identity, nil
}

// GetAssignedRepositories lists the repositories assigned to this device.
func (client *Client) GetAssignedRepositories(requestContext context.Context) ([]AssignedRepository, error) {
	var repositories []AssignedRepository
	if requestError := client.getJSON(requestContext, assignedRepositoriesEndpointPathConstant, &repositories); requestError != nil {
		return nil, requestError
	}
	return repositories, nil
}

// GetCloneToken obtains a short-lived installation token scoped to the named
// repository.
func (client *Client) GetCloneToken(requestContext context.Context, repositoryName string) (string, error) {
	trimmedName := strings.TrimSpace(repositoryName)
	if len(trimmedName) == 0 {
		return "", ErrRepositoryNameRequired
	}

	endpointPath := fmt.Sprintf(cloneTokenEndpointTemplateConstant, url.PathEscape(trimmedName))
	var tokenResponse cloneTokenResponse
	if requestError := client.getJSON(requestContext, endpointPath, &tokenResponse); requestError != nil {
		return "", requestError
	}
	return tokenResponse.Token, nil
}

func (client *Client) getJSON(requestContext context.Context, endpointPath string, target any) error {
	endpointURL := client.baseURL + endpointPath

	request, requestError := http.NewRequestWithContext(requestContext, http.MethodGet, endpointURL, nil)
	if requestError != nil {
		return RemoteUnavailableError{Endpoint: endpointPath, Cause: requestError}
	}
	request.Header.Set(authorizationHeaderNameConstant, bearerSchemePrefixConstant+client.deviceToken)
	request.Header.Set(acceptHeaderNameConstant, jsonContentTypeConstant)

	response, responseError := client.httpClient.Do(request)
	if responseError != nil {
		return RemoteUnavailableError{Endpoint: endpointPath, Cause: responseError}
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return UnexpectedStatusError{Endpoint: endpointPath, StatusCode: response.StatusCode}
	}

	if decodeError := json.NewDecoder(response.Body).Decode(target); decodeError != nil {
		return fmt.Errorf(decodeFailureMessageTemplateConstant, endpointPath, decodeError)
	}
	return nil
}
