// Package cloudtrail pages LookupEvents results with a hard cap and a
// rate-limit courtesy delay between pages.
package cloudtrail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/telemetry"
	"github.com/rafaesapata/AWS-EVO-sub014/types"
)

const (
	// PageSize is the per-call MaxResults. CloudTrail accepts up to 50.
	PageSize = 50

	// InterPageDelay spaces successive pages so a large lookup does
	// not trip the 2 req/s LookupEvents throttle.
	InterPageDelay = 200 * time.Millisecond

	lookupTarget = "com.amazonaws.cloudtrail.v20131101.CloudTrail_20131101.LookupEvents"
)

// allowedMaxEvents enumerates the caps callers may request. An
// arbitrary cap is a usage error, not a protocol error.
var allowedMaxEvents = map[int]bool{50: true, 200: true, 500: true}

// AllowedMaxEvents reports whether maxEvents is an accepted cap.
func AllowedMaxEvents(maxEvents int) bool { return allowedMaxEvents[maxEvents] }

// Paginator issues LookupEvents calls.
type Paginator struct {
	client *awsclient.Client
	logger *telemetry.Logger
	delay  time.Duration
}

// NewPaginator creates a paginator over the given client.
func NewPaginator(client *awsclient.Client) *Paginator {
	return &Paginator{
		client: client,
		logger: telemetry.NewLogger("cloudtrail"),
		delay:  InterPageDelay,
	}
}

// WithDelay overrides the inter-page delay.
func (p *Paginator) WithDelay(d time.Duration) *Paginator {
	p.delay = d
	return p
}

// lookupRequest is the LookupEvents call payload.
type lookupRequest struct {
	MaxResults int    `json:"MaxResults"`
	NextToken  string `json:"NextToken,omitempty"`
}

// lookupResponse mirrors the wire shape. EventTime arrives as an epoch
// timestamp and CloudTrailEvent as a nested JSON document in a string.
type lookupResponse struct {
	Events []struct {
		EventID         string  `json:"EventId"`
		EventName       string  `json:"EventName"`
		EventTime       float64 `json:"EventTime"`
		EventSource     string  `json:"EventSource"`
		Username        string  `json:"Username"`
		CloudTrailEvent string  `json:"CloudTrailEvent"`
		Resources       []struct {
			ResourceName string `json:"ResourceName"`
		} `json:"Resources"`
	} `json:"Events"`
	NextToken string `json:"NextToken"`
}

// eventDetail is the subset of the embedded CloudTrailEvent document
// worth surfacing.
type eventDetail struct {
	AWSRegion       string `json:"awsRegion"`
	SourceIPAddress string `json:"sourceIPAddress"`
	ErrorCode       string `json:"errorCode"`
}

// LookupEvents retrieves up to maxEvents audit events from the region,
// newest first as CloudTrail returns them. Pagination stops as soon as
// a page carries no NextToken, and never issues more pages than the
// cap can fill.
func (p *Paginator) LookupEvents(ctx context.Context, creds sigv4.Credentials, region string, maxEvents int) ([]types.Event, error) {
	if !AllowedMaxEvents(maxEvents) {
		return nil, fmt.Errorf("maxEvents must be one of 50, 200 or 500, got %d", maxEvents)
	}

	maxPages := (maxEvents + PageSize - 1) / PageSize

	var events []types.Event
	var token string
	for page := 0; len(events) < maxEvents && page < maxPages; page++ {
		if page > 0 && p.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.delay):
			}
		}

		resp, err := p.lookupPage(ctx, creds, region, token)
		if err != nil {
			return nil, err
		}
		events = append(events, resp.normalize(region)...)

		if resp.NextToken == "" {
			break
		}
		token = resp.NextToken
	}

	if len(events) > maxEvents {
		events = events[:maxEvents]
	}

	p.logger.WithContext(ctx).Info().
		Str("region", region).
		Int("events", len(events)).
		Msg("lookup complete")
	return events, nil
}

func (p *Paginator) lookupPage(ctx context.Context, creds sigv4.Credentials, region, token string) (*lookupResponse, error) {
	body, err := p.client.JSONTarget(ctx, creds, "cloudtrail", region, lookupTarget,
		lookupRequest{MaxResults: PageSize, NextToken: token})
	if err != nil {
		return nil, fmt.Errorf("lookup events in %s: %w", region, err)
	}

	var resp lookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	return &resp, nil
}

// normalize flattens one response page, folding the embedded
// CloudTrailEvent document in when it parses.
func (r *lookupResponse) normalize(region string) []types.Event {
	out := make([]types.Event, 0, len(r.Events))
	for _, raw := range r.Events {
		event := types.Event{
			EventID:   raw.EventID,
			EventName: raw.EventName,
			EventTime: time.Unix(int64(raw.EventTime), 0).UTC(),
			Username:  raw.Username,
			Source:    raw.EventSource,
			Region:    region,
		}
		if len(raw.Resources) > 0 {
			event.ResourceID = raw.Resources[0].ResourceName
		}
		if raw.CloudTrailEvent != "" {
			var detail eventDetail
			if err := json.Unmarshal([]byte(raw.CloudTrailEvent), &detail); err == nil {
				if detail.AWSRegion != "" {
					event.Region = detail.AWSRegion
				}
				event.SourceIP = detail.SourceIPAddress
				event.ErrorCode = detail.ErrorCode
			}
		}
		out = append(out, event)
	}
	return out
}
