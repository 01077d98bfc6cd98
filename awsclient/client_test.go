package awsclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
)

var testCreds = sigv4.Credentials{
	AccessKeyID:     "AKIDEXAMPLE",
	SecretAccessKey: "test-secret",
}

func TestEndpoint(t *testing.T) {
	c := New()

	assert.Equal(t, "https://ec2.us-east-1.amazonaws.com", c.Endpoint("ec2", "us-east-1"))
	assert.Equal(t, "https://monitoring.eu-west-1.amazonaws.com", c.Endpoint("monitoring", "eu-west-1"))
	// CloudFront has no regional hosts.
	assert.Equal(t, "https://cloudfront.amazonaws.com", c.Endpoint("cloudfront", "us-east-1"))
}

func TestAPIErrorKeepsBody(t *testing.T) {
	const denial = `<ErrorResponse><Error><Code>AccessDenied</Code>` +
		`<Message>User is not authorized to perform: ec2:DescribeInstances</Message></Error></ErrorResponse>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, denial)
	}))
	t.Cleanup(server.Close)

	_, err := New().WithBaseURL(server.URL).Query(context.Background(), testCreds,
		"ec2", "us-east-1", "DescribeInstances", "2016-11-15", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "ec2", apiErr.Service)
	assert.Contains(t, apiErr.Body, "not authorized to perform: ec2:DescribeInstances",
		"the classifier needs the raw denial text")
}

func TestQuerySignsAndSendsForm(t *testing.T) {
	var gotAuth, gotContentType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, "<ok/>")
	}))
	t.Cleanup(server.Close)

	body, err := New().WithBaseURL(server.URL).Query(context.Background(), testCreds,
		"ec2", "us-east-1", "DescribeInstances", "2016-11-15", nil)
	require.NoError(t, err)

	assert.Equal(t, "<ok/>", body)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Contains(t, gotBody, "Action=DescribeInstances")
	assert.Contains(t, gotBody, "Version=2016-11-15")
	assert.Contains(t, gotAuth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/")
	assert.Contains(t, gotAuth, "/us-east-1/ec2/aws4_request")
}
