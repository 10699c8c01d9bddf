package main

import (
	"github.com/spiderman0016/enterprise-azure-policy-as-code/cmd/epac/internal/command"
)

func main() {
	command.Execute()
}
