package cloudtrail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
)

var testCreds = sigv4.Credentials{
	AccessKeyID:     "AKIDEXAMPLE",
	SecretAccessKey: "test-secret",
}

type fakePage struct {
	events    int
	nextToken string
}

// fakeTrail serves canned pages in order and records the tokens the
// paginator sent.
func fakeTrail(t *testing.T, pages []fakePage) (*Paginator, *[]string) {
	t.Helper()
	var sentTokens []string
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "com.amazonaws.cloudtrail.v20131101.CloudTrail_20131101.LookupEvents",
			r.Header.Get("X-Amz-Target"))

		var req lookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, PageSize, req.MaxResults)
		sentTokens = append(sentTokens, req.NextToken)

		require.Less(t, call, len(pages), "paginator issued more pages than expected")
		page := pages[call]
		call++

		resp := map[string]any{"Events": cannedEvents(page.events, call)}
		if page.nextToken != "" {
			resp["NextToken"] = page.nextToken
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	p := NewPaginator(awsclient.New().WithBaseURL(server.URL)).WithDelay(0)
	return p, &sentTokens
}

func cannedEvents(n, page int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, map[string]any{
			"EventId":     fmt.Sprintf("evt-%d-%d", page, i),
			"EventName":   "RunInstances",
			"EventTime":   1750000000,
			"EventSource": "ec2.amazonaws.com",
			"Username":    "deployer",
		})
	}
	return out
}

func TestLookupEvents_RejectsArbitraryCap(t *testing.T) {
	p := NewPaginator(awsclient.New())
	for _, bad := range []int{0, -1, 49, 100, 1000} {
		_, err := p.LookupEvents(context.Background(), testCreds, "us-east-1", bad)
		require.Error(t, err, "maxEvents=%d", bad)
		assert.Contains(t, err.Error(), "maxEvents")
	}
}

func TestAllowedMaxEvents(t *testing.T) {
	assert.True(t, AllowedMaxEvents(50))
	assert.True(t, AllowedMaxEvents(200))
	assert.True(t, AllowedMaxEvents(500))
	assert.False(t, AllowedMaxEvents(250))
}

func TestLookupEvents_StopsWithoutNextToken(t *testing.T) {
	p, tokens := fakeTrail(t, []fakePage{{events: 30}})

	events, err := p.LookupEvents(context.Background(), testCreds, "us-east-1", 200)
	require.NoError(t, err)

	assert.Len(t, events, 30, "fewer events available than requested")
	assert.Equal(t, []string{""}, *tokens, "exactly one page fetched")
}

func TestLookupEvents_FollowsCursorUpToCap(t *testing.T) {
	p, tokens := fakeTrail(t, []fakePage{
		{events: 50, nextToken: "t1"},
		{events: 50, nextToken: "t2"},
		{events: 50, nextToken: "t3"},
		{events: 50, nextToken: "t4"},
	})

	events, err := p.LookupEvents(context.Background(), testCreds, "us-east-1", 200)
	require.NoError(t, err)

	assert.Len(t, events, 200)
	// Four pages fill the cap. The token t4 must never be followed.
	assert.Equal(t, []string{"", "t1", "t2", "t3"}, *tokens)
}

func TestLookupEvents_TrimsOvershoot(t *testing.T) {
	p, _ := fakeTrail(t, []fakePage{{events: 60, nextToken: "t1"}})

	events, err := p.LookupEvents(context.Background(), testCreds, "us-east-1", 50)
	require.NoError(t, err)
	assert.Len(t, events, 50)
}

func TestLookupEvents_NormalizesEmbeddedDocument(t *testing.T) {
	detail, _ := json.Marshal(map[string]string{
		"awsRegion":       "eu-west-1",
		"sourceIPAddress": "203.0.113.9",
		"errorCode":       "Client.UnauthorizedOperation",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"Events": []map[string]any{{
			"EventId":         "evt-1",
			"EventName":       "TerminateInstances",
			"EventTime":       1750003600,
			"EventSource":     "ec2.amazonaws.com",
			"Username":        "intruder",
			"CloudTrailEvent": string(detail),
			"Resources":       []map[string]string{{"ResourceName": "i-0abc"}},
		}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	p := NewPaginator(awsclient.New().WithBaseURL(server.URL)).WithDelay(0)
	events, err := p.LookupEvents(context.Background(), testCreds, "us-east-1", 50)
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, "evt-1", event.EventID)
	assert.Equal(t, "TerminateInstances", event.EventName)
	assert.Equal(t, time.Unix(1750003600, 0).UTC(), event.EventTime)
	assert.Equal(t, "intruder", event.Username)
	assert.Equal(t, "ec2.amazonaws.com", event.Source)
	assert.Equal(t, "eu-west-1", event.Region, "embedded document outranks the lookup region")
	assert.Equal(t, "203.0.113.9", event.SourceIP)
	assert.Equal(t, "Client.UnauthorizedOperation", event.ErrorCode)
	assert.Equal(t, "i-0abc", event.ResourceID)
}

func TestLookupEvents_CancelledContext(t *testing.T) {
	p, _ := fakeTrail(t, []fakePage{
		{events: 50, nextToken: "t1"},
		{events: 50, nextToken: "t2"},
	})
	p.WithDelay(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.LookupEvents(ctx, testCreds, "us-east-1", 200)
	require.ErrorIs(t, err, context.Canceled)
}
