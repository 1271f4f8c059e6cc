package main

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/gopro-transfer/internal/config"
)

const (
	cmdTransfer  = "transfer"
	cmdList      = "list"
	cmdTelemetry = "telemetry"
	cmdWatch     = "watch"
)

var (
	commonFlags   = []string{"config", "log-level", "log-file"}
	selectFlags   = []string{"source", "media-dir", "all-folders", "extensions", "date-format"}
	transferFlags = []string{"destination", "move", "all-dates", "dry-run", "telemetry", "formats"}
)

// commandFlags 列出每个子命令接受的参数（不含 -h/--help）。
var commandFlags = map[string][]string{
	cmdTransfer:  concat(commonFlags, selectFlags, transferFlags),
	cmdList:      concat(commonFlags, selectFlags),
	cmdTelemetry: concat(commonFlags, []string{"output", "formats"}),
	cmdWatch:     concat(commonFlags, selectFlags, transferFlags, []string{"once"}),
}

var boolFlags = map[string]bool{
	"all-folders": true,
	"move":        true,
	"all-dates":   true,
	"dry-run":     true,
	"telemetry":   true,
	"once":        true,
}

// cliArgs 是某个子命令解析后的参数。
type cliArgs struct {
	config.CLIArgs

	// Video 是 telemetry 命令的位置参数。
	Video  string
	Output string
	Once   bool
}

func parseArgs(cmd string, args []string) (cliArgs, error) {
	allowed, ok := commandFlags[cmd]
	if !ok {
		return cliArgs{}, fmt.Errorf("未知命令 %q", cmd)
	}

	ca := cliArgs{}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			if cmd != cmdTelemetry {
				return cliArgs{}, fmt.Errorf("多余的参数 %q", a)
			}
			if ca.Video != "" {
				return cliArgs{}, fmt.Errorf("重复的视频路径：%q 与 %q", ca.Video, a)
			}
			ca.Video = a
			continue
		}
		if !strings.HasPrefix(a, "--") {
			return cliArgs{}, fmt.Errorf("未知参数 %q", a)
		}

		name, val, hasVal := strings.Cut(strings.TrimPrefix(a, "--"), "=")
		if !contains(allowed, name) {
			return cliArgs{}, fmt.Errorf("未知参数 %q", a)
		}

		if boolFlags[name] {
			b := true
			if hasVal {
				switch val {
				case "true":
				case "false":
					b = false
				default:
					return cliArgs{}, fmt.Errorf("--%s 只能是 true 或 false，实际是 %q", name, val)
				}
			}
			ca.setBool(name, b)
			continue
		}

		if !hasVal {
			if i+1 >= len(args) {
				return cliArgs{}, fmt.Errorf("--%s 需要一个值", name)
			}
			i++
			val = args[i]
		}
		if strings.TrimSpace(val) == "" {
			return cliArgs{}, fmt.Errorf("--%s 不能为空", name)
		}
		ca.setValue(name, val)
	}

	if ca.AllFolders && ca.MediaDir != "" {
		return cliArgs{}, fmt.Errorf("--media-dir 与 --all-folders 不能同时使用")
	}
	if cmd == cmdTelemetry && ca.Video == "" {
		return cliArgs{}, fmt.Errorf("缺少视频路径")
	}
	return ca, nil
}

func (ca *cliArgs) setBool(name string, v bool) {
	switch name {
	case "all-folders":
		ca.AllFolders = v
	case "move":
		ca.Move, ca.MoveSet = v, true
	case "all-dates":
		ca.AllDates, ca.AllDatesSet = v, true
	case "dry-run":
		ca.DryRun = v
	case "telemetry":
		ca.Telemetry = v
	case "once":
		ca.Once = v
	}
}

func (ca *cliArgs) setValue(name, v string) {
	switch name {
	case "config":
		ca.ConfigFile = v
	case "log-level":
		ca.LogLevel = v
	case "log-file":
		ca.LogFile = v
	case "source":
		ca.Source = v
	case "destination":
		ca.Destination = v
	case "media-dir":
		ca.MediaDir = v
	case "date-format":
		ca.DateFormat = v
	case "extensions":
		ca.Extensions = config.SplitList(v)
	case "formats":
		ca.Formats = config.SplitList(v)
	case "output":
		ca.Output = v
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func concat(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}
