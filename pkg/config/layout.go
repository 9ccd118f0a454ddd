package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

const (
	sbDir       = "sb"
	sharedDir   = "shared"
	ephemeralFS = "/tmp"
)

// Layout holds the persisted paths of one application
type Layout struct {
	// AppData holds the per application caches
	AppData string
	// CacheRoot holds the directory and script caches shared by applications
	CacheRoot string
	// SOFRoot holds the shared store and every shared object folder
	SOFRoot string
	// SOF is the shared object folder of the application
	SOF string
	// Store is the shared runtime store
	Store string

	LibCache   string
	CmdCache   string
	Syscalls   string
	Filter     string
	FilterHash string
	Lock       string
}

// NewLayout computes the layout of c from the XDG base directories found
// through getenv
func NewLayout(c *Config, getenv func(string) string) (*Layout, error) {
	data := getenv("XDG_DATA_HOME")
	if data == "" {
		home := getenv("HOME")
		if home == "" {
			return nil, errors.New("config: neither XDG_DATA_HOME nor HOME is set")
		}
		data = filepath.Join(home, ".local", "share")
	}
	data = filepath.Join(data, sbDir)

	var sofRoot string
	switch c.Store {
	case StorePersistent:
		sofRoot = filepath.Join(data, "sof")
	case StoreRAM:
		runtime := getenv("XDG_RUNTIME_DIR")
		if runtime == "" {
			runtime = filepath.Join("/run/user", strconv.Itoa(os.Getuid()))
		}
		sofRoot = filepath.Join(runtime, sbDir)
	default:
		sofRoot = filepath.Join(ephemeralFS, sbDir)
	}

	app := c.AppName()
	appData := filepath.Join(data, app)
	return &Layout{
		AppData:    appData,
		CacheRoot:  filepath.Join(data, "cache"),
		SOFRoot:    sofRoot,
		SOF:        filepath.Join(sofRoot, app),
		Store:      filepath.Join(sofRoot, sharedDir),
		LibCache:   filepath.Join(appData, "lib.cache"),
		CmdCache:   filepath.Join(appData, "cmd.cache"),
		Syscalls:   filepath.Join(appData, "syscalls.txt"),
		Filter:     filepath.Join(appData, "filter.bpf"),
		FilterHash: filepath.Join(appData, "filter.hash"),
		Lock:       filepath.Join(appData, ".lock"),
	}, nil
}
