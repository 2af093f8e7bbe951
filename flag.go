package main

import (
	"flag"
	"fmt"
	"os"
)

const (
	ModeView = "view"
	ModeWarm = "warm"
)

var (
	hf             bool
	configPath     string
	configExplicit bool
	logLevel       string
	runMode        string
)

func InitFlag() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&configPath, "c", "./conf/conf.toml", "set config `file`")
	flag.StringVar(&logLevel, "l", "info", "set log level (default: info)")
	flag.StringVar(&runMode, "m", ModeView, "run `mode`: view | warm")
	// 改变默认的 Usage
	flag.Usage = usage
	flag.Parse()

	if hf {
		flag.Usage()
		os.Exit(0)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "c" {
			configExplicit = true
		}
	})
}

func usage() {
	fmt.Fprintf(os.Stderr, `maptiler version: maptiler/v0.1.0
Usage: maptiler [-h] [-c filename] [-l logLevel] [-m view|warm]
`)
	flag.PrintDefaults()
}
