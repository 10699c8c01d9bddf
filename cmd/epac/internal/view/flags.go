package view

import (
	"fmt"
	"io"
)

// StageFlagSink emits the boolean stage flags downstream pipeline stages
// key off. One implementation per CI flavor; the planner never branches on
// the CI system itself.
type StageFlagSink interface {
	Set(name string, value bool)
}

// Stage flag names consumed by the apply stages.
const (
	FlagDeployPolicyChanges = "deployPolicyChanges"
	FlagDeployRoleChanges   = "deployRoleChanges"
)

// NewStageFlagSink returns the sink for a CI flavor: "ado" (Azure DevOps
// logging commands), "github" (GitHub Actions output file syntax) or ""
// for plain KEY=value lines.
func NewStageFlagSink(devopsType string, w io.Writer) (StageFlagSink, error) {
	switch devopsType {
	case "ado":
		return &adoSink{w: w}, nil
	case "github":
		return &githubSink{w: w}, nil
	case "":
		return &plainSink{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown devops type %q", devopsType)
	}
}

type adoSink struct {
	w io.Writer
}

func (s *adoSink) Set(name string, value bool) {
	fmt.Fprintf(s.w, "##vso[task.setvariable variable=%s;isOutput=true]%t\n", name, value)
}

type githubSink struct {
	w io.Writer
}

func (s *githubSink) Set(name string, value bool) {
	fmt.Fprintf(s.w, "%s=%t\n", name, value)
}

type plainSink struct {
	w io.Writer
}

func (s *plainSink) Set(name string, value bool) {
	fmt.Fprintf(s.w, "%s=%t\n", name, value)
}
