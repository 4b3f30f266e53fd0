//go:build integration

// Package testutils runs a minio server for integration tests and seeds it
// with objects to archive.
package testutils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/s3blob"
)

const (
	minioUser     = "objtar"
	minioPassword = "objtar-secret"
)

// Object is a test object stored under Key.
type Object struct {
	Key  string
	Data []byte
}

// PatternObjects returns count objects of size bytes named
// prefix+"obj-0000.bin" and so on. Each object's content is distinct.
func PatternObjects(prefix string, count, size int) []Object {
	objs := make([]Object, count)
	for i := range objs {
		data := make([]byte, size)
		for j := range data {
			data[j] = byte((i + j) % 251)
		}
		objs[i] = Object{Key: fmt.Sprintf("%sobj-%04d.bin", prefix, i), Data: data}
	}
	return objs
}

// Minio is a running minio server with a set of buckets.
type Minio struct {
	endpoint string
}

// StartMinio starts minio with the given buckets created. The server is
// terminated when the test ends. Credentials are exported through the AWS_*
// environment variables, which s3blob picks up.
func StartMinio(t *testing.T, ctx context.Context, buckets ...string) *Minio {
	t.Helper()

	net, err := network.New(ctx)
	if err != nil {
		t.Fatalf("create network: %v", err)
	}
	t.Cleanup(func() { net.Remove(context.Background()) })

	server, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          "minio/minio:latest",
			ExposedPorts:   []string{"9000/tcp"},
			Networks:       []string{net.Name},
			NetworkAliases: map[string][]string{net.Name: {"minio"}},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio: %v", err)
	}
	t.Cleanup(func() { server.Terminate(context.Background()) })

	makeBuckets(t, ctx, net.Name, buckets)

	endpoint, err := server.PortEndpoint(ctx, "9000/tcp", "http")
	if err != nil {
		t.Fatalf("minio endpoint: %v", err)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", minioUser)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioPassword)

	return &Minio{endpoint: endpoint}
}

// makeBuckets runs the minio client once to create every bucket.
func makeBuckets(t *testing.T, ctx context.Context, networkName string, buckets []string) {
	t.Helper()

	script := []string{fmt.Sprintf("mc alias set objtar http://minio:9000 %s %s", minioUser, minioPassword)}
	for _, b := range buckets {
		script = append(script, "mc mb objtar/"+b)
	}

	mc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      "minio/mc:latest",
			Networks:   []string{networkName},
			Entrypoint: []string{"/bin/sh", "-c"},
			Cmd:        []string{strings.Join(script, " && ")},
			WaitingFor: wait.ForExit(),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("create buckets: %v", err)
	}
	defer mc.Terminate(ctx)

	state, err := mc.State(ctx)
	if err != nil {
		t.Fatalf("mc state: %v", err)
	}
	if state.ExitCode != 0 {
		t.Fatalf("mc exited with code %d", state.ExitCode)
	}
}

// URL returns the gocloud URL of bucket on this server.
func (m *Minio) URL(bucket string) string {
	return fmt.Sprintf("s3://%s?endpoint=%s&use_path_style=true&disable_https=true&region=us-east-1", bucket, m.endpoint)
}

// Open opens bucket. It is closed when the test ends.
func (m *Minio) Open(t *testing.T, ctx context.Context, bucket string) *blob.Bucket {
	t.Helper()

	b, err := blob.OpenBucket(ctx, m.URL(bucket))
	if err != nil {
		t.Fatalf("open bucket %s: %v", bucket, err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// Seed writes objs into bucket.
func (m *Minio) Seed(t *testing.T, ctx context.Context, bucket string, objs []Object) {
	t.Helper()

	b := m.Open(t, ctx, bucket)
	for _, o := range objs {
		if err := b.WriteAll(ctx, o.Key, o.Data, nil); err != nil {
			t.Fatalf("seed %s: %v", o.Key, err)
		}
	}
}

// AssertContent fails the test unless r yields exactly want.
func AssertContent(t *testing.T, name string, r io.Reader, want []byte) {
	t.Helper()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("%s: read: %v", name, err)
	}
	if bytes.Equal(got, want) {
		return
	}
	n := min(len(got), len(want))
	for i := 0; i < n; i++ {
		if got[i] != want[i] {
			t.Fatalf("%s: content differs at offset %d", name, i)
		}
	}
	t.Fatalf("%s: got %d bytes, want %d", name, len(got), len(want))
}
