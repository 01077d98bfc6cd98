// Package sigv4 implements AWS Signature Version 4 request signing.
// It is pure computation: no I/O, no clock reads, no SDK.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	// Algorithm is the signing algorithm reported in Authorization.
	Algorithm = "AWS4-HMAC-SHA256"

	timeFormat = "20060102T150405Z"
)

// Credentials are the signing inputs. SessionToken is set for
// temporary (assumed-role) credentials and empty otherwise.
type Credentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
}

// headers considered for signing when present on the request.
// host and x-amz-date are always signed.
var signableHeaders = []string{
	"Content-Type",
	"X-Amz-Content-Sha256",
	"X-Amz-Security-Token",
	"X-Amz-Target",
}

// Sign computes the SigV4 authorization for req at the given time and
// sets X-Amz-Date, X-Amz-Security-Token (when a token is present) and
// Authorization on the request. It returns the hex SHA-256 of the
// canonical request, which callers can log for signature debugging.
func Sign(creds Credentials, service, region string, req *http.Request, body []byte, now time.Time) (string, error) {
	if service == "" || region == "" {
		return "", fmt.Errorf("sigv4: service and region are required")
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return "", fmt.Errorf("sigv4: incomplete credentials")
	}

	amzDate := now.UTC().Format(timeFormat)
	dateStamp := amzDate[:8]

	req.Header.Set("X-Amz-Date", amzDate)
	// Temporary credentials are only valid when the token is part of
	// the signed headers. Omitting it breaks assumed-role auth.
	if creds.SessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", creds.SessionToken)
	}

	canonicalHeaders, signedHeaders := canonicalizeHeaders(req)
	payloadHash := hashHex(body)

	canonicalRequest := strings.Join([]string{
		req.Method,
		canonicalPath(req.URL),
		canonicalQuery(req.URL),
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")
	canonicalHash := hashHex([]byte(canonicalRequest))

	scope := strings.Join([]string{dateStamp, region, service, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{Algorithm, amzDate, scope, canonicalHash}, "\n")

	key := DeriveKey(creds.SecretAccessKey, dateStamp, region, service)
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	req.Header.Set("Authorization", fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		Algorithm, creds.AccessKeyID, scope, signedHeaders, signature))

	return canonicalHash, nil
}

// DeriveKey computes the signing key chain. Each stage's raw output is
// the key of the next HMAC; only the final signature is hex-encoded.
func DeriveKey(secret, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), dateStamp)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, "aws4_request")
}

// canonicalizeHeaders builds the lower-cased, newline-joined header
// block and the semicolon-joined signed-headers list.
func canonicalizeHeaders(req *http.Request) (string, string) {
	headers := map[string]string{
		"host":       req.URL.Host,
		"x-amz-date": req.Header.Get("X-Amz-Date"),
	}
	for _, name := range signableHeaders {
		if v := req.Header.Get(name); v != "" {
			headers[strings.ToLower(name)] = v
		}
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var block strings.Builder
	for _, name := range names {
		block.WriteString(name)
		block.WriteByte(':')
		block.WriteString(strings.TrimSpace(headers[name]))
		block.WriteByte('\n')
	}
	return block.String(), strings.Join(names, ";")
}

func canonicalPath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		return "/"
	}
	return path
}

// canonicalQuery sorts parameters by name then value, URI-encoded with
// %20 for spaces (form encoding's "+" is not valid here).
func canonicalQuery(u *url.URL) string {
	values := u.Query()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vs := append([]string(nil), values[k]...)
		sort.Strings(vs)
		for _, v := range vs {
			parts = append(parts, uriEncode(k)+"="+uriEncode(v))
		}
	}
	return strings.Join(parts, "&")
}

func uriEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
