package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/MapoMagpie/comic-looms/cmd"
	"github.com/MapoMagpie/comic-looms/cmd/common"
)

var (
	version   string
	commit    string
	date      string
	buildType string = "unclassified"
)

func main() {
	err := cmd.Execute(os.Args, cmd.BuildArgs{
		Version:   version,
		Commit:    commit,
		Date:      date,
		BuildType: buildType,
	})
	if err != nil {
		if !errors.Is(err, common.ErrReported) {
			fmt.Printf("comic-looms: %s\n", err.Error())
		}
		os.Exit(1)
	}
}
