package main

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/identity/storage/grpcstore"
	"xdao.co/identity/storage/memory"
)

func TestListenArgs(t *testing.T) {
	cases := []struct {
		in      string
		network string
		addr    string
		wantErr bool
	}{
		{in: "/ip4/127.0.0.1/tcp/7777", network: "tcp4", addr: "127.0.0.1:7777"},
		{in: "/ip6/::1/tcp/80", network: "tcp6", addr: "[::1]:80"},
		{in: "127.0.0.1:9000", network: "tcp", addr: "127.0.0.1:9000"},
		{in: " :7777 ", network: "tcp", addr: ":7777"},
		{in: "/ip4/1.2.3.4/udp/53", wantErr: true},
		{in: "/bogus", wantErr: true},
		{in: "localhost", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			network, addr, err := listenArgs(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.network, network)
			assert.Equal(t, tc.addr, addr)
		})
	}
}

func TestRun_ListBackends(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"--list-backends"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "localfs")
	assert.Contains(t, out.String(), "memory")
	assert.NotContains(t, out.String(), "grpc")
}

func TestRun_UsageErrors(t *testing.T) {
	for name, args := range map[string][]string{
		"unknown flag":   {"--nope"},
		"log level":      {"--backend", "memory", "--log-level", "loud"},
		"log format":     {"--backend", "memory", "--log-format", "xml"},
		"unknown store":  {"--backend", "nope"},
		"missing dir":    {"--backend", "localfs"},
		"bad listen":     {"--backend", "memory", "--listen", "/ip4/1.2.3.4/udp/53"},
		"missing config": {"--store-config", "/does/not/exist.yaml"},
	} {
		t.Run(name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			assert.Equal(t, 2, run(context.Background(), args, &out, &errOut))
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out, errOut bytes.Buffer
	code := run(ctx, []string{"--backend", "memory", "--listen", "/ip4/127.0.0.1/tcp/0", "--log-format", "json"}, &out, &errOut)
	assert.Equal(t, 0, code, errOut.String())
	assert.Contains(t, errOut.String(), "identity-stored listening")
	assert.Contains(t, errOut.String(), "/ip4/127.0.0.1/tcp/")
}

func TestServe_RoundTrip(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	d := &daemon{
		store:   memory.New(),
		log:     log,
		limiter: grpcstore.NewPeerLimiter(1000, 1000, time.Minute),
		reg:     prometheus.NewRegistry(),
		maxMsg:  1 << 20,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.serve(ctx, lis) }()

	client, err := grpcstore.Dial(lis.Addr().String(), grpcstore.DialOptions{})
	require.NoError(t, err)
	defer client.Close()

	rpcCtx, rpcCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer rpcCancel()
	id, err := client.Put(rpcCtx, []byte("block"))
	require.NoError(t, err)
	got, err := client.Get(rpcCtx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("block"), got)

	families, err := d.reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "identity_blockstore_requests_total")
	assert.NotEmpty(t, hook.AllEntries())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
