// Package flagx lets several independent parsers share os.Args: each one
// picks out only the flags it owns.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the allowed flags from args, together with their
// values. Both "-f value" and "-f=value" forms are recognised; a following
// token that starts with "-" is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// Positional returns the arguments that are neither flags nor the values of
// the flags listed in valueFlags. Everything after a bare "--" is positional.
func Positional(args []string, valueFlags []string) []string {
	takesValue := make(map[string]struct{}, len(valueFlags))
	for _, f := range valueFlags {
		takesValue[f] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append(out, args[i+1:]...)
		case !strings.HasPrefix(arg, "-") || arg == "-":
			out = append(out, arg)
		case strings.Contains(arg, "="):
		default:
			if _, ok := takesValue[arg]; ok && i+1 < len(args) {
				i++
			}
		}
	}
	return out
}

// lookupString parses a single string option registered under the given
// names from os.Args, returning def when absent.
func lookupString(def string, usage string, names ...string) string {
	allowed := make([]string, 0, len(names))
	for _, n := range names {
		allowed = append(allowed, "-"+n, "--"+n)
	}

	value := def
	fs := flag.NewFlagSet("flagx", flag.ContinueOnError)
	fs.SetOutput(discard{})
	for _, n := range names {
		fs.StringVar(&value, n, def, usage)
	}
	_ = fs.Parse(FilterArgs(os.Args[1:], allowed))
	return value
}

// JsonConfigFlags returns the JSON config path given with -c or -config, or
// an empty string.
func JsonConfigFlags() string {
	return lookupString("", "path to config file", "c", "config")
}

// EnvFileFlag returns the dotenv file path given with -env, defaulting to
// ".env".
func EnvFileFlag() string {
	return lookupString(".env", "path to dotenv file", "env")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
