// Package fakeengine provides a stand-in for the FIX/FAST engine executables.
//
// Install writes a small shell wrapper that re-executes the current test binary.
// When the binary starts with EnvName set, the init function in this package takes
// over and behaves as a server or client, following the directives found in the
// script file passed with -f:
//
//	exit N               client exits with code N (default 0)
//	client-hang          client never exits
//	server-crash         server exits with code 3 before listening
//	server-ignore-term   server ignores SIGTERM and lingers after its session
//	server-delay D       server waits D before listening
//
// A server accepts exactly one connection and stops listening, as the real
// engines do; a connection that closes before sending its logon line fails the
// session. Every server appends its pid to "<script>.pid".
package fakeengine

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// EnvName switches the test binary into fake engine mode
const EnvName = "FIX_ACCEPTOR_FAKEENGINE"

const connectTimeout = 2 * time.Second

func init() {
	if os.Getenv(EnvName) == "" {
		return
	}
	os.Exit(run(os.Args[1:]))
}

// Install writes an executable wrapper named name into dir and returns its path
func Install(t *testing.T, dir, name string) string {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	script := fmt.Sprintf("#!/bin/sh\n%s=1 exec '%s' \"$@\"\n", EnvName, exe)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// WriteScript writes a fixture script with the given directives and returns its path
func WriteScript(t *testing.T, dir, name string, directives ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(directives, "\n")+"\n"), 0o644))
	return path
}

// ServerPIDs returns the pids of every server started with script
func ServerPIDs(t *testing.T, script string) []int {
	t.Helper()
	data, err := os.ReadFile(script + ".pid")
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	var pids []int
	for _, line := range strings.Fields(string(data)) {
		pid, err := strconv.Atoi(line)
		require.NoError(t, err)
		pids = append(pids, pid)
	}
	return pids
}

// FreePort returns a TCP port that was free at the time of the call
func FreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(inv.port)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakeengine: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "Server is listening to port %d...\n", inv.port)

	// One session per server, like the real engines
	conn, err := ln.Accept()
	ln.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakeengine: %v\n", err)
		return 1
	}
	code := serveSession(conn)
	if _, ok := inv.directives["server-ignore-term"]; ok {
		for {
			time.Sleep(time.Hour)
		}
	}
	return code
}

// serveSession reads the client's logon line and holds the session until the client hangs up
func serveSession(conn net.Conn) int {
	defer conn.Close()
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakeengine: session failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "session started: %s", line)
	_, _ = io.Copy(io.Discard, r)
	return 0
}

func runClient(inv *invocation) int {
	addr := net.JoinHostPort(inv.host, strconv.Itoa(inv.port))
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakeengine: %v\n", err)
		return 2
	}
	defer conn.Close()
	if _, err := fmt.Fprintf(conn, "LOGON %s\n", inv.channel); err != nil {
		fmt.Fprintf(os.Stderr, "fakeengine: %v\n", err)
		return 2
	}
	fmt.Printf("client connected to %s on channel %s\n", addr, inv.channel)

	if _, ok := inv.directives["client-hang"]; ok {
		for {
			time.Sleep(time.Hour)
		}
	}
	code := 0
	if v, ok := inv.directives["exit"]; ok {
		code, err = strconv.Atoi(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fakeengine: %v\n", err)
			return 64
		}
	}
	if code != 0 {
		fmt.Println("Expected: a different message")
	}
	return code
}

func appendPID(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d\n", os.Getpid())
	return err
}
