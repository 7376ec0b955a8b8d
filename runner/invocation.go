package runner

import (
	"strconv"
	"strings"

	"github.com/ethereum-optimism/infra/fix-acceptor/process"
	"github.com/ethereum-optimism/infra/fix-acceptor/types"
)

// Endpoint is the address a trial's server listens on
type Endpoint struct {
	Host string
	Port int
}

// ServerSpec composes the server invocation for a test case:
//
//	<server> server -p <port> -c <channel> -f <script> [-t <template>] [extra...]
func ServerSpec(suite types.Suite, tc types.TestCase, ep Endpoint) process.ProgramSpec {
	args := []string{
		RoleServer,
		PortFlag, strconv.Itoa(ep.Port),
		ChannelFlag, channel(suite),
	}
	args = appendFixture(args, tc)
	args = append(args, suite.ServerArgs...)
	return process.ProgramSpec{Path: suite.Server, Args: args}
}

// ClientSpec composes the client invocation for a test case:
//
//	<client> client -h <host> -p <port> -c <channel> -f <script> [-t <template>] [extra...]
func ClientSpec(suite types.Suite, tc types.TestCase, ep Endpoint) process.ProgramSpec {
	host := ep.Host
	if host == "" {
		host = DefaultHost
	}
	args := []string{
		RoleClient,
		HostFlag, host,
		PortFlag, strconv.Itoa(ep.Port),
		ChannelFlag, channel(suite),
	}
	args = appendFixture(args, tc)
	args = append(args, suite.ClientArgs...)
	return process.ProgramSpec{Path: suite.Client, Args: args}
}

// CommandLine renders a program spec for display
func CommandLine(spec process.ProgramSpec) string {
	parts := make([]string, 0, len(spec.Args)+1)
	parts = append(parts, spec.Path)
	parts = append(parts, spec.Args...)
	return strings.Join(parts, " ")
}

func appendFixture(args []string, tc types.TestCase) []string {
	args = append(args, ScriptFlag, tc.Script)
	if tc.Template != "" {
		args = append(args, TemplateFlag, tc.Template)
	}
	return args
}

func channel(suite types.Suite) string {
	if suite.Channel != "" {
		return suite.Channel
	}
	return suite.ID
}
