package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 answers the two S3 calls the adapter makes, ListObjectsV2 and
// GetObject, from an in-memory key space.
type fakeS3 struct {
	bucket   string
	objects  map[string]string
	failKeys map[string]bool
	failList bool
}

func (f *fakeS3) Do(req *http.Request) (*http.Response, error) {
	q := req.URL.Query()
	if q.Get("list-type") == "2" {
		if f.failList {
			return xmlResponse(500, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>InternalError</Code><Message>listing unavailable</Message></Error>`), nil
		}
		return f.list(q.Get("prefix"), q.Get("delimiter")), nil
	}

	key := strings.TrimPrefix(req.URL.Path, "/"+f.bucket+"/")
	if f.failKeys[key] {
		return xmlResponse(500, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>InternalError</Code><Message>backend down</Message></Error>`), nil
	}
	content, ok := f.objects[key]
	if !ok {
		return xmlResponse(404, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>no such key</Message></Error>`), nil
	}
	return &http.Response{
		StatusCode:    200,
		Header:        http.Header{"Content-Type": []string{"application/octet-stream"}},
		Body:          io.NopCloser(strings.NewReader(content)),
		ContentLength: int64(len(content)),
	}, nil
}

func (f *fakeS3) list(prefix, delimiter string) *http.Response {
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><Name>` + f.bucket + `</Name><IsTruncated>false</IsTruncated>`)
	if delimiter == "" {
		for _, key := range keys {
			b.WriteString("<Contents><Key>" + key + "</Key></Contents>")
		}
	} else {
		seen := map[string]bool{}
		for _, key := range keys {
			rest := strings.TrimPrefix(key, prefix)
			if i := strings.Index(rest, delimiter); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					b.WriteString("<CommonPrefixes><Prefix>" + cp + "</Prefix></CommonPrefixes>")
				}
			}
		}
	}
	b.WriteString(`</ListBucketResult>`)
	return xmlResponse(200, b.String())
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Header:        http.Header{"Content-Type": []string{"application/xml"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func newS3TestAdapter(t *testing.T, fake *fakeS3, patterns map[string][]string) *S3Adapter {
	t.Helper()
	client := s3.New(s3.Options{
		Region:           "us-east-1",
		Credentials:      credentials.NewStaticCredentialsProvider("test", "test", ""),
		BaseEndpoint:     aws.String("http://s3.test"),
		UsePathStyle:     true,
		HTTPClient:       fake,
		RetryMaxAttempts: 1,
	})
	adapter, err := NewS3Adapter(NewS3AdapterParams{
		Client:       client,
		Bucket:       fake.bucket,
		Prefix:       "systems",
		FilePatterns: patterns,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return adapter
}

func TestS3AdapterListsSystems(t *testing.T) {
	fake := &fakeS3{
		bucket: "opsdata",
		objects: map[string]string{
			"systems/db-dev-02/etc/hosts":             "127.0.0.1 localhost",
			"systems/web-prod-01/var/log/messages.log": "Jan 15 03:21:07 web-prod-01 sshd[1234]: ok",
			"systems/web-prod-01/etc/redhat-release":   "Red Hat Enterprise Linux release 9.2 (Plow)",
		},
	}
	adapter := newS3TestAdapter(t, fake, nil)

	systems, err := adapter.ListAvailableSystems(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(systems) != 2 || systems[0] != "db-dev-02" || systems[1] != "web-prod-01" {
		t.Fatalf("unexpected systems: %v", systems)
	}
}

func TestS3AdapterListFailureYieldsEmpty(t *testing.T) {
	fake := &fakeS3{bucket: "opsdata", failList: true}
	adapter := newS3TestAdapter(t, fake, nil)

	systems, err := adapter.ListAvailableSystems(context.Background())
	if err != nil {
		t.Fatalf("listing failure must not be an error: %v", err)
	}
	if len(systems) != 0 {
		t.Fatalf("expected no systems, got %v", systems)
	}
}

func TestS3AdapterReadSystemFiles(t *testing.T) {
	fake := &fakeS3{
		bucket: "opsdata",
		objects: map[string]string{
			"systems/web-prod-01/var/log/messages.log": "Jan 15 03:21:07 web-prod-01 sshd[1234]: Failed password for root",
			"systems/web-prod-01/var/log/secure.log":   "locked",
			"systems/web-prod-01/etc/redhat-release":   "Red Hat Enterprise Linux release 9.2 (Plow)",
			"systems/web-prod-01/tmp/scratch.txt":      "ignore me",
		},
		failKeys: map[string]bool{
			"systems/web-prod-01/var/log/secure.log": true,
		},
	}
	adapter := newS3TestAdapter(t, fake, map[string][]string{
		"logs":    {"var/log/*.log"},
		"release": {"etc/redhat-release"},
	})

	files, err := adapter.ReadSystemFiles(context.Background(), "web-prod-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 matched files, got %d: %v", len(files), files)
	}
	if _, ok := files["tmp/scratch.txt"]; ok {
		t.Fatal("unmatched key must be excluded")
	}
	if got := files["etc/redhat-release"]; got != "Red Hat Enterprise Linux release 9.2 (Plow)" {
		t.Fatalf("unexpected content: %q", got)
	}
	if !IsErrorMarker(files["var/log/secure.log"]) {
		t.Fatalf("unreadable object must yield an error marker, got %q", files["var/log/secure.log"])
	}
	if IsErrorMarker(files["var/log/messages.log"]) {
		t.Fatal("readable object must not be a marker")
	}
}

func TestS3AdapterUnknownSystem(t *testing.T) {
	fake := &fakeS3{bucket: "opsdata", objects: map[string]string{}}
	adapter := newS3TestAdapter(t, fake, nil)

	if _, err := adapter.ReadSystemFiles(context.Background(), "ghost"); !errors.Is(err, ErrSystemNotFound) {
		t.Fatalf("expected ErrSystemNotFound, got %v", err)
	}
}

func TestS3MatchesPatterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns map[string][]string
		rel      string
		want     bool
	}{
		{"no patterns matches all", nil, "anything/at/all.txt", true},
		{"glob in directory", map[string][]string{"logs": {"var/log/*.log"}}, "var/log/messages.log", true},
		{"glob does not cross separators", map[string][]string{"logs": {"var/log/*.log"}}, "var/log/nested/app.log", false},
		{"bare glob stays top-level", map[string][]string{"logs": {"*.log"}}, "var/log/messages.log", false},
		{"literal path", map[string][]string{"release": {"etc/redhat-release"}}, "etc/redhat-release", true},
		{"literal mismatch", map[string][]string{"release": {"etc/redhat-release"}}, "etc/os-release", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &S3Adapter{patterns: tt.patterns}
			if got := a.matchesPatterns(tt.rel); got != tt.want {
				t.Fatalf("matchesPatterns(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}
