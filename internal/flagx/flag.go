// Package flagx lets several flag sets share one command line.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// Known maps a flag name ("-a") to whether it takes a value.
type Known map[string]bool

// FilterArgs keeps only the flags in known, plus the value that follows a
// value-taking flag. "-f=value" is kept whole. Boolean flags never consume
// the next argument.
func FilterArgs(args []string, known Known) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, ok := known[name]; ok {
				out = append(out, arg)
			}
			continue
		}
		takesValue, ok := known[arg]
		if !ok {
			continue
		}
		out = append(out, arg)
		if takesValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// ConfigPath returns the value of -c or -config in args, or "".
// The last occurrence wins.
func ConfigPath(args []string) string {
	var path string
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, Known{"-c": true, "-config": true}))
	return path
}
