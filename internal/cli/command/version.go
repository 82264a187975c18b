package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokpool/internal/cli/output"
	"github.com/yndnr/tokpool/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			info := buildinfo.Get()
			return printResult(c, &versionView{
				Version:   info.Version,
				Commit:    info.Commit,
				BuildTime: info.BuildTime,
				GoVersion: info.GoVersion,
			})
		},
	}
}

type versionView struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Table implements output.Tabular.
func (v *versionView) Table(bool) *output.Table {
	t := output.NewTable("VERSION", "COMMIT", "BUILT", "GO")
	t.AddRow(v.Version, v.Commit, v.BuildTime, v.GoVersion)
	return t
}
