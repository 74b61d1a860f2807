package polygon_test

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"optionsdata/internal/provider/polygon"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	// Assert: a client is always returned, even without a key.
	require.NotNil(t, polygon.NewClient(""))
	require.Equal(t, "polygon", polygon.NewClient("k").Name())
}

func TestIsPlaceholderKey(t *testing.T) {
	t.Parallel()

	require.True(t, polygon.IsPlaceholderKey(""))
	require.True(t, polygon.IsPlaceholderKey("   "))
	require.True(t, polygon.IsPlaceholderKey("your_polygon_api_key_here"))
	require.False(t, polygon.IsPlaceholderKey("pk_live_123"))
}

func TestFetch_MissingCredentialMakesNoRequest(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"", "demo", "  demo  ", "your_polygon_api_key_here"} {
		// Arrange: a mock that must never be called
		ctrl := gomock.NewController(t)
		httpClient := NewMockHTTPClient(ctrl)
		httpClient.EXPECT().Do(gomock.Any()).Times(0)

		client := polygon.NewClient(key, polygon.WithHTTPClient(httpClient))

		// Act
		batch, err := client.Fetch(t.Context(), []string{"SPY240315C00450000"})

		// Assert
		require.ErrorIs(t, err, polygon.ErrMissingCredential)
		require.Nil(t, batch)
	}
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	baseURL := "http://localhost:8080"

	// Assert: the request goes to the overridden base url
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			return jsonResponse(http.StatusOK, `{"results":[]}`), nil
		}).
		Times(1)

	client := polygon.NewClient("test-key", polygon.WithHTTPClient(httpClient), polygon.WithBaseURL(baseURL+"/"))

	// Act
	_, err := client.Fetch(t.Context(), []string{"SPY240315C00450000"})
	require.NoError(t, err)
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: custom header plus credential in both places plus user agent
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "bar", req.Header.Get("foo"))
			require.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
			require.Equal(t, "test-key", req.URL.Query().Get("apiKey"))
			require.NotEmpty(t, req.Header.Get("User-Agent"))
			require.Equal(t, "O:SPY240315C00450000", req.URL.Query().Get("ticker.any_of"))
			require.Equal(t, "/v3/snapshot", req.URL.Path)
			return jsonResponse(http.StatusOK, `{"results":[]}`), nil
		}).
		Times(1)

	client := polygon.NewClient("test-key", polygon.WithHTTPClient(httpClient), polygon.WithHeader(http.Header{
		"foo": []string{"bar"},
	}))

	// Act
	_, err := client.Fetch(t.Context(), []string{"SPY240315C00450000"})
	require.NoError(t, err)
}
