package compute

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Constructor takes a config string (optionally empty) and returns a Runtime.
type Constructor func(config string) (Runtime, error)

var (
	muRegistry             sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register a runtime with the given name, and a constructor that takes as input a configuration string that is
// passed along to the runtime.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// Registered returns the sorted names of the registered runtimes.
func Registered() []string {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RuntimeConfigEnv is the environment variable with the default runtime configuration to use.
//
// The format of config is "<runtime_name>[:<runtime_configuration>]".
// The "<runtime_name>" is the name of a registered runtime (e.g.: "opencl") and
// "<runtime_configuration>" is runtime specific (e.g.: for opencl, the path to the OpenCL library).
const RuntimeConfigEnv = "GOCOMPUTE_RUNTIME"

// DefaultRuntimeConfig is the runtime configuration to use if RuntimeConfigEnv is not set.
//
// See NewWithConfig for the format of the configuration string.
var DefaultRuntimeConfig string

// New returns a new default Runtime.
//
// The default is:
//
// 1. The environment variable GOCOMPUTE_RUNTIME is used as a configuration if defined.
// 2. Next the variable DefaultRuntimeConfig is used as a configuration if defined.
// 3. The first registered runtime is used with an empty configuration.
func New() (Runtime, error) {
	config, found := os.LookupEnv(RuntimeConfigEnv)
	if found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultRuntimeConfig)
}

// NewWithConfig creates a runtime from a configuration formatted as "<runtime_name>[:<runtime_configuration>]".
//
// If the runtime name is empty, the first registered runtime is used; in this case, a config without ":" that is
// not the name of a registered runtime is passed to the first registered runtime as its configuration.
func NewWithConfig(config string) (Runtime, error) {
	muRegistry.Lock()
	if len(registeredConstructors) == 0 {
		muRegistry.Unlock()
		return nil, errors.New(`no registered compute runtimes -- maybe import one with import _ "github.com/gomlx/gocompute/compute/emulator"?`)
	}
	name, runtimeConfig := firstRegistered, config
	if idx := strings.Index(config, ":"); idx != -1 {
		name, runtimeConfig = config[:idx], config[idx+1:]
		if name == "" {
			name = firstRegistered
		}
	} else if _, found := registeredConstructors[config]; found {
		name, runtimeConfig = config, ""
	}
	constructor, found := registeredConstructors[name]
	muRegistry.Unlock()
	if !found {
		return nil, errors.Errorf("can't find compute runtime %q for configuration %q given, registered runtimes: %q",
			name, config, Registered())
	}
	klog.V(1).Infof("creating compute runtime %q (config=%q)", name, runtimeConfig)
	rt, err := constructor(runtimeConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "while creating compute runtime %q", name)
	}
	return rt, nil
}
