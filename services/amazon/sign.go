package amazon

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	signingService = "execute-api"
	signedHeaders  = "host;user-agent;x-amz-date"
	userAgent      = "PriceScout/1.0 (Language=Go)"
)

// signRequest produces the AWS SigV4 headers for one sp-api request.
// The canonical query string it signs must byte-match the query the
// request is sent with, so callers build their url with canonicalQuery.
func signRequest(creds Credentials, method, host, path string, query url.Values, body []byte, now time.Time) map[string]string {
	t := now.UTC()
	amzDate := t.Format("20060102T150405Z")
	dateStamp := t.Format("20060102")

	canonicalUri := (&url.URL{Path: path}).EscapedPath()
	canonicalQuerystring := canonicalQuery(query)
	canonicalHeaders := fmt.Sprintf("host:%s\nuser-agent:%s\nx-amz-date:%s\n", host, userAgent, amzDate)

	payloadHash := sha256.Sum256(body)

	canonicalRequest := strings.Join([]string{
		method,
		canonicalUri,
		canonicalQuerystring,
		canonicalHeaders,
		signedHeaders,
		hex.EncodeToString(payloadHash[:]),
	}, "\n")

	algorithm := "AWS4-HMAC-SHA256"
	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, creds.Region, signingService)
	requestHash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		credentialScope,
		hex.EncodeToString(requestHash[:]),
	}, "\n")

	signingKey := hmacSha256([]byte("AWS4"+creds.SecretAccessKey), dateStamp)
	signingKey = hmacSha256(signingKey, creds.Region)
	signingKey = hmacSha256(signingKey, signingService)
	signingKey = hmacSha256(signingKey, "aws4_request")
	signature := hex.EncodeToString(hmacSha256(signingKey, stringToSign))

	authorization := fmt.Sprintf(
		"%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, creds.AccessKeyId, credentialScope, signedHeaders, signature,
	)

	return map[string]string{
		"user-agent":    userAgent,
		"x-amz-date":    amzDate,
		"Authorization": authorization,
	}
}

// canonicalQuery renders a query string the way SigV4 canonicalizes
// it: keys sorted, components percent-encoded with only unreserved
// characters left bare.
func canonicalQuery(query url.Values) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		for _, v := range query[k] {
			parts = append(parts, sigv4Escape(k)+"="+sigv4Escape(v))
		}
	}
	return strings.Join(parts, "&")
}

func sigv4Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func hmacSha256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
