package tlog

import (
	"github.com/spf13/pflag"
)

// AddFlags registers the logging flags in a flag set. Flag values are stored
// into config.
func AddFlags(fs *pflag.FlagSet, config *Config) {
	if config.Format == "" {
		config.Format = FormatText
	}
	fs.Var(formatValue{&config.Format}, "log-format", "log format: text or json")
	fs.Var(colorValue{&config.Color}, "color", "colorize text logs: yes, no or empty for auto")
	fs.BoolVarP(&config.Verbose, "verbose", "v", config.Verbose, "log debug messages")
}

type formatValue struct {
	format *Format
}

func (v formatValue) String() string {
	return string(*v.format)
}

func (v formatValue) Set(s string) error {
	switch f := Format(s); f {
	case FormatJSON, FormatText:
		*v.format = f
		return nil
	default:
		return errInvalid("log format", s)
	}
}

func (formatValue) Type() string {
	return "format"
}

type colorValue struct {
	color *Color
}

func (v colorValue) String() string {
	return string(*v.color)
}

func (v colorValue) Set(s string) error {
	switch c := Color(s); c {
	case ColorAuto, ColorYes, ColorNo:
		*v.color = c
		return nil
	default:
		return errInvalid("color setting", s)
	}
}

func (colorValue) Type() string {
	return "color"
}
