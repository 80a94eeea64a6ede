package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://s3.local:9000/reports-bucket/reports/abc.html",
		ObjectURL("https", "s3.local:9000", "reports-bucket", ReportKey("abc")))
}

func TestReportKey(t *testing.T) {
	assert.Equal(t, "reports/20240101_000000_a_csv_deadbeef.html", ReportKey("20240101_000000_a_csv_deadbeef"))
}

func TestNewMinio_Errors(t *testing.T) {
	_, err := NewMinio(context.Background(), Config{Endpoint: "http://localhost:9000/path", Bucket: "b"})
	assert.Error(t, err, "endpoint must be host:port")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = NewMinio(ctx, Config{Endpoint: "127.0.0.1:1", Bucket: "b", AccessKey: "k", SecretKey: "s"})
	assert.Error(t, err, "unreachable endpoint")
}
