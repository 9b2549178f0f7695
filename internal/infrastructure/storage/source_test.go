package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheet = "sku,stock_qty_shipped,stock_out_shipped\nGR-7G-0001,50,20\n"

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		want    Location
		wantErr bool
	}{
		{in: "s3://stock/sheets/march.csv", want: Location{Bucket: "stock", Key: "sheets/march.csv"}},
		{in: "s3://stock/sheets/", want: Location{Bucket: "stock", Key: "sheets/"}},
		{in: "s3://stock", want: Location{Bucket: "stock"}},
		{in: "s3:///key.csv", wantErr: true},
		{in: "/tmp/march.csv", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocation(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "s3://stock/sheets/march.csv", Location{Bucket: "stock", Key: "sheets/march.csv"}.String())
}

func TestLocalSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte(sheet), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.CSV"), []byte(sheet), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o700))

	router := NewRouter(nil)

	objects, err := router.List(ctx, dir)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, filepath.Join(dir, "a.CSV"), objects[0].Location)
	assert.Equal(t, filepath.Join(dir, "b.csv"), objects[1].Location)
	assert.Equal(t, int64(len(sheet)), objects[1].Size)

	single, err := router.List(ctx, objects[1].Location)
	require.NoError(t, err)
	assert.Len(t, single, 1)

	rc, err := router.Open(ctx, objects[0].Location)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, sheet, string(body))

	_, err = router.Open(ctx, filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = router.List(ctx, filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRouter_S3WithoutStorage(t *testing.T) {
	_, err := NewRouter(nil).Open(context.Background(), "s3://stock/march.csv")
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

// fakeS3 serves the path-style subset of the S3 API the source uses
func fakeS3(t *testing.T, objects map[string]string) *S3ImportSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
		if bucket != "stock" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchBucket</Code><Message>missing</Message></Error>`)
			return
		}

		if key == "" && r.URL.Query().Get("list-type") == "2" {
			prefix := r.URL.Query().Get("prefix")
			var sb strings.Builder
			sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>stock</Name><IsTruncated>false</IsTruncated>`)
			for _, k := range []string{"sheets/", "sheets/march.csv", "sheets/notes.txt", "other/april.csv"} {
				if strings.HasPrefix(k, prefix) {
					sb.WriteString("<Contents><Key>" + k + "</Key><Size>" + strconv.Itoa(len(objects[k])) + "</Size></Contents>")
				}
			}
			sb.WriteString(`</ListBucketResult>`)
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, sb.String())
			return
		}

		body, ok := objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			if r.Method != http.MethodHead {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Content-Type", "text/csv")
		if r.Method != http.MethodHead {
			_, _ = io.WriteString(w, body)
		}
	}))
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("key", "secret", ""),
	})
	return NewS3ImportSourceWithClient(client, WithMaxSize(1024))
}

func TestS3ImportSource_Open(t *testing.T) {
	ctx := context.Background()
	src := fakeS3(t, map[string]string{
		"sheets/march.csv": sheet,
		"sheets/huge.csv":  strings.Repeat("x", 2048),
	})

	rc, err := src.Open(ctx, "s3://stock/sheets/march.csv")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, sheet, string(body))

	_, err = src.Open(ctx, "s3://stock/sheets/missing.csv")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = src.Open(ctx, "s3://stock/sheets/huge.csv")
	assert.ErrorIs(t, err, shared.ErrValidationFailed)

	_, err = src.Open(ctx, "s3://stock/sheets/")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestS3ImportSource_List(t *testing.T) {
	ctx := context.Background()
	src := fakeS3(t, map[string]string{"sheets/march.csv": sheet})

	objects, err := src.List(ctx, "s3://stock/sheets/")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "s3://stock/sheets/march.csv", objects[0].Location)
	assert.Equal(t, int64(len(sheet)), objects[0].Size)

	_, err = src.List(ctx, "s3://archive/")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestNormalizeEndpoint(t *testing.T) {
	got, err := normalizeEndpoint("minio:9000", false)
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", got)

	got, err = normalizeEndpoint("minio:9000", true)
	require.NoError(t, err)
	assert.Equal(t, "https://minio:9000", got)

	got, err = normalizeEndpoint("", true)
	require.NoError(t, err)
	assert.Empty(t, got)
}
