// vecadd adds two vectors on a compute device, and prints the inputs and the result.
//
// By default it uses the runtime configured in GOCOMPUTE_RUNTIME (e.g.: "opencl", "webgpu" or "emulator"),
// or OpenCL. The emulator, which adds the vectors on the host, is only used if requested explicitly.
// Use -list to see the platforms and devices available.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/chewxy/math32"
	"github.com/gomlx/gocompute/compute"
	_ "github.com/gomlx/gocompute/compute/emulator"
	"github.com/gomlx/gocompute/compute/opencl"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagRuntime = flag.String("runtime", "",
		fmt.Sprintf("Compute runtime configuration, formatted as \"<runtime_name>[:<runtime_config>]\". "+
			"If empty it uses $%s, or %q. Registered runtimes: %q.",
			compute.RuntimeConfigEnv, defaultRuntimeConfig, compute.Registered()))
	flagPlatform    = flag.Int("platform", 0, "Index of the platform to use.")
	flagDevice      = flag.String("device", "gpu", "Class of device to use: "+strings.Join(compute.DeviceClassStrings(), ", "))
	flagDeviceIndex = flag.Int("device_index", 0, "Index of the device, among the devices of the given class.")
	flagN           = flag.Int("n", 10, "Number of elements of the vectors. The inputs are a[i]=i and b[i]=i+1.")
	flagLocal       = flag.Int("local", 1, "Local work size (work-group size). 0 lets the runtime choose.")
	flagKernel      = flag.String("kernel", "", "Path to the kernel source. If empty it uses the built-in source "+
		"for the language of the runtime.")
	flagEntry  = flag.String("entry", compute.DefaultKernelName, "Name of the kernel entry point.")
	flagRepeat = flag.Int("repeat", 1, "Number of times to dispatch the addition: all results must be identical.")
	flagList   = flag.Bool("list", false, "List platforms and devices of the runtime and exit.")
)

// options for run, usually set from the flags.
type options struct {
	Config compute.Config
	N      int
	Repeat int
	List   bool

	// Progress is where the progress bar of repeated dispatches is written. If nil no progress bar is displayed.
	Progress io.Writer
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	rt, err := newRuntime(*flagRuntime)
	if err != nil {
		klog.Fatalf("Failed to create compute runtime: %+v", err)
	}
	opts, err := optionsFromFlags(rt)
	if err != nil {
		klog.Fatalf("Invalid flags: %+v", err)
	}
	if err := run(context.Background(), os.Stdout, rt, opts); err != nil {
		klog.Fatalf("Failed: %+v", err)
	}
}

// defaultRuntimeConfig is used when neither -runtime nor $GOCOMPUTE_RUNTIME are set.
const defaultRuntimeConfig = opencl.RuntimeName

// newRuntime creates the runtime for the -runtime flag value. Unlike compute.New, it never falls back to the
// first registered runtime, since that would be the emulator.
func newRuntime(config string) (compute.Runtime, error) {
	if config == "" {
		config = os.Getenv(compute.RuntimeConfigEnv)
	}
	if config == "" {
		config = defaultRuntimeConfig
	}
	return compute.NewWithConfig(config)
}

func optionsFromFlags(rt compute.Runtime) (opts options, err error) {
	opts.Config = compute.DefaultConfig()
	opts.Config.PlatformIndex = *flagPlatform
	opts.Config.DeviceClass, err = compute.DeviceClassString(*flagDevice)
	if err != nil {
		return opts, errors.Wrapf(err, "invalid -device=%q", *flagDevice)
	}
	opts.Config.DeviceIndex = *flagDeviceIndex
	opts.Config.LocalWorkSize = *flagLocal
	opts.Config.KernelName = *flagEntry
	if *flagKernel != "" {
		source, err := os.ReadFile(*flagKernel)
		if err != nil {
			return opts, errors.Wrapf(err, "failed to read kernel source from -kernel=%q", *flagKernel)
		}
		opts.Config.KernelSource = string(source)
	} else {
		opts.Config.KernelSource = compute.DefaultKernelSource(rt.Language())
	}
	opts.N = *flagN
	opts.Repeat = *flagRepeat
	opts.List = *flagList
	if opts.Repeat > 1 {
		opts.Progress = os.Stderr
	}
	return opts, nil
}

// run the addition (or the listing of devices) and print the results to w.
func run(ctx context.Context, w io.Writer, rt compute.Runtime, opts options) error {
	if opts.List {
		return listDevices(w, rt)
	}
	if opts.N < 1 {
		return errors.Errorf("number of elements must be at least 1, got %d", opts.N)
	}
	if opts.Repeat < 1 {
		return errors.Errorf("number of repetitions must be at least 1, got %d", opts.Repeat)
	}
	if err := printPlatforms(w, rt, opts.Config); err != nil {
		return err
	}

	a, b := inputs(opts.N)
	dispatcher := compute.NewDispatcher(rt, opts.Config)
	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(opts.Repeat,
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("dispatching"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
	}
	var c []float32
	for ii := range opts.Repeat {
		result, err := dispatcher.Add(ctx, a, b)
		if err != nil {
			return err
		}
		if ii == 0 {
			c = result
		} else if !slices.Equal(c, result) {
			return errors.Errorf("dispatch #%d returned a result different from the first dispatch", ii)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if err := verify(a, b, c); err != nil {
		return err
	}
	for _, values := range [][]float32{a, b, c} {
		if _, err := fmt.Fprintln(w, formatArray(values)); err != nil {
			return errors.Wrap(err, "failed to write output")
		}
	}
	return nil
}

// printPlatforms prints the number of platforms, and the number and names of the devices of the selected class
// in the selected platform.
func printPlatforms(w io.Writer, rt compute.Runtime, config compute.Config) error {
	platforms, err := compute.Platforms(rt)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Number of platforms: %d\n", len(platforms))
	if config.PlatformIndex < 0 || config.PlatformIndex >= len(platforms) {
		// Dispatcher.Add reports the error.
		return nil
	}
	devices, err := platforms[config.PlatformIndex].Devices(config.DeviceClass)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Number of devices: %d\n", len(devices))
	for _, device := range devices {
		_, _ = fmt.Fprintln(w, device)
	}
	return nil
}

// listDevices prints a table with all devices of all platforms.
func listDevices(w io.Writer, rt compute.Runtime) error {
	platforms, err := compute.Platforms(rt)
	if err != nil {
		return err
	}
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerStyle := lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Platform", "Device", "Class", "Name", "Vendor", "Version", "Driver")
	for _, p := range platforms {
		devices, err := p.Devices(compute.DeviceAll)
		if err != nil {
			return err
		}
		classes, err := deviceClasses(p)
		if err != nil {
			return err
		}
		for _, d := range devices {
			table.Row(fmt.Sprintf("#%d %s", p.Index(), p.Name()), strconv.Itoa(d.Index()), classes[d.Handle()],
				d.Name(), d.Vendor(), d.Version(), d.DriverVersion())
		}
	}
	_, err = fmt.Fprintf(w, "Runtime %q (%s kernels)\n%s\n", rt.Name(), rt.Language(), table.Render())
	return errors.Wrap(err, "failed to write output")
}

// deviceClasses returns the class name of each device in the platform.
func deviceClasses(p *compute.Platform) (map[compute.Handle]string, error) {
	classes := make(map[compute.Handle]string)
	for _, class := range []compute.DeviceClass{compute.DeviceGPU, compute.DeviceCPU, compute.DeviceAccelerator} {
		devices, err := p.Devices(class)
		if err != nil {
			return nil, err
		}
		for _, d := range devices {
			classes[d.Handle()] = class.String()
		}
	}
	return classes, nil
}

// inputs returns the vectors a[i]=i and b[i]=i+1.
func inputs(n int) (a, b []float32) {
	a = make([]float32, n)
	b = make([]float32, n)
	for ii := range n {
		a[ii] = float32(ii)
		b[ii] = float32(ii + 1)
	}
	return
}

// verify checks that c = a + b, elementwise.
func verify(a, b, c []float32) error {
	if len(c) != len(a) {
		return errors.Errorf("result has %d elements, wanted %d", len(c), len(a))
	}
	for ii := range c {
		want := a[ii] + b[ii]
		if c[ii] != want && !(math32.IsNaN(c[ii]) && math32.IsNaN(want)) {
			return errors.Errorf("c[%d]=%s, wanted %s", ii, formatFloat(c[ii]), formatFloat(want))
		}
	}
	return nil
}

// formatArray formats the values as "[0.0, 1.0, 2.5]".
func formatArray(values []float32) string {
	parts := make([]string, len(values))
	for ii, v := range values {
		parts[ii] = formatFloat(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatFloat formats v with the shortest representation that includes a decimal point: plain notation for
// magnitudes in [1e-3, 1e7), and "<mantissa>E<exponent>" otherwise.
func formatFloat(v float32) string {
	switch {
	case math32.IsNaN(v):
		return "NaN"
	case math32.IsInf(v, 1):
		return "Infinity"
	case math32.IsInf(v, -1):
		return "-Infinity"
	}
	if abs := math32.Abs(v); v == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(float64(v), 'f', -1, 32)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	mantissa, exponent, _ := strings.Cut(strconv.FormatFloat(float64(v), 'E', -1, 32), "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	exp, _ := strconv.Atoi(exponent)
	return fmt.Sprintf("%sE%d", mantissa, exp)
}
