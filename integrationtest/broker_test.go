package integrationtest

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const redpandaImage = "docker.redpanda.com/redpandadata/redpanda:v23.3.11"

// startRedpanda runs a single-node Redpanda broker in a container and
// returns its bootstrap servers. The container is terminated when the
// test finishes.
func startRedpanda(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	// Redpanda advertises the listener address to clients, so the
	// container port is pinned one to one onto a free host port.
	port, err := freePort()
	if err != nil {
		t.Fatalf("pick broker port: %v", err)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redpandaImage,
			User:         "root:root",
			ExposedPorts: []string{fmt.Sprintf("%d:%d/tcp", port, port)},
			Cmd: []string{
				"redpanda", "start",
				"--smp", "1",
				"--reserve-memory", "0M",
				"--overprovisioned",
				"--node-id", "0",
				"--kafka-addr", fmt.Sprintf("OUTSIDE://0.0.0.0:%d", port),
			},
			WaitingFor: wait.ForLog("Successfully started Redpanda!"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redpanda: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate redpanda: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("broker host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(fmt.Sprintf("%d", port)))
	if err != nil {
		t.Fatalf("broker port: %v", err)
	}
	return []string{fmt.Sprintf("%s:%d", host, mapped.Int())}
}

// freePort grabs a port from the kernel and releases it again.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
