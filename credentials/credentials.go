// Package credentials resolves stored credential records into usable
// signing material. Resolution failure is the single fatal error class
// of a collection run: without a credential there is nothing to
// collect, unlike per-unit permission errors which are skipped.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rafaesapata/AWS-EVO-sub014/awsclient"
	"github.com/rafaesapata/AWS-EVO-sub014/awsxml"
	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
)

// ErrNoCredential aborts the whole run when wrapped in a resolution
// error.
var ErrNoCredential = errors.New("no usable credential")

// Record is a stored credential as owned by an organization.
type Record struct {
	ID              string   `json:"id"`
	AccessKeyID     string   `json:"access_key_id"`
	SecretAccessKey string   `json:"secret_access_key"`
	SessionToken    string   `json:"session_token,omitempty"`
	Regions         []string `json:"regions"`
	OrganizationID  string   `json:"organization_id"`
}

// Resolved is ready-to-sign material for one collection run. It is
// immutable for the duration of the run.
type Resolved struct {
	sigv4.Credentials
	Region         string
	Regions        []string
	AccountID      string
	OrganizationID string
}

// Resolver turns a credential record into signing material.
type Resolver interface {
	Resolve(ctx context.Context, credentialID, preferredRegion string) (*Resolved, error)
}

// StaticResolver serves a fixed set of records, keyed by ID. The
// production deployment substitutes the role-assumption service; this
// covers local runs and tests.
type StaticResolver struct {
	records map[string]Record
	client  *awsclient.Client
}

// NewStaticResolver creates a resolver over the given records.
func NewStaticResolver(client *awsclient.Client, records ...Record) *StaticResolver {
	byID := make(map[string]Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	return &StaticResolver{records: byID, client: client}
}

// FromEnv builds a single-record resolver from AWS_ACCESS_KEY_ID /
// AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN.
func FromEnv(client *awsclient.Client, regions []string) *StaticResolver {
	return NewStaticResolver(client, Record{
		ID:              "env",
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Regions:         regions,
	})
}

// Resolve implements Resolver. The account ID is discovered through
// STS GetCallerIdentity so persisted rows carry the real account.
func (r *StaticResolver) Resolve(ctx context.Context, credentialID, preferredRegion string) (*Resolved, error) {
	record, ok := r.records[credentialID]
	if !ok || record.AccessKeyID == "" || record.SecretAccessKey == "" {
		return nil, fmt.Errorf("credential %q: %w", credentialID, ErrNoCredential)
	}

	region := preferredRegion
	if region == "" && len(record.Regions) > 0 {
		region = record.Regions[0]
	}
	if region == "" {
		region = "us-east-1"
	}

	creds := sigv4.Credentials{
		AccessKeyID:     record.AccessKeyID,
		SecretAccessKey: record.SecretAccessKey,
		SessionToken:    record.SessionToken,
	}

	accountID, err := CallerAccount(ctx, r.client, creds, region)
	if err != nil {
		return nil, fmt.Errorf("credential %q rejected by STS: %w", credentialID, errors.Join(ErrNoCredential, err))
	}

	return &Resolved{
		Credentials:    creds,
		Region:         region,
		Regions:        record.Regions,
		AccountID:      accountID,
		OrganizationID: record.OrganizationID,
	}, nil
}

// CallerAccount returns the AWS account ID behind the credentials.
func CallerAccount(ctx context.Context, client *awsclient.Client, creds sigv4.Credentials, region string) (string, error) {
	body, err := client.Query(ctx, creds, "sts", region, "GetCallerIdentity", "2011-06-15", nil)
	if err != nil {
		return "", err
	}

	account := awsxml.Field(body, "Account")
	if account == "" {
		return "", fmt.Errorf("sts response missing account")
	}
	return account, nil
}
