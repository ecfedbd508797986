package main

import "github.com/nimburion/docstore/pkg/cli"

func main() {
	cli.Execute(cli.NewServiceCommand(cli.ServiceCommandOptions{
		Name:        "docstore",
		Description: "User and product API over a generic MongoDB data-access layer",
		EnvPrefix:   "APP",
	}))
}
