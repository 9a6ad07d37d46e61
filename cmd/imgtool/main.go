package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/harliandi/imgtool/internal/codec"
	"github.com/harliandi/imgtool/internal/config"
	"github.com/harliandi/imgtool/internal/converter"
	"github.com/harliandi/imgtool/internal/geometry"
	"github.com/harliandi/imgtool/internal/rawdecoder"
	"github.com/harliandi/imgtool/pkg/metrics"
	"github.com/harliandi/imgtool/pkg/quality"
)

const usage = `Usage: imgtool <command> [operands]

Commands:
  -supportedTypes                                   show supported image types
  -scale <in> <factor> <out>                        scale and convert an image
  -resize <in> <width> <height> <keepAspect> <out>  fit into a box and convert
  -width&height <in> <width> <height> <out>         resize to exactly width x height
  -convert <in> <out>                               convert without resizing
  -compress <in> <bytes> <out>                      compress under a size in bytes
  -help                                             show this message

Files imgtool cannot read are handed to dcraw (DCRAW_DIR), which writes
<in>.thumb.jpg and ignores resizing.
`

func main() {
	log.SetPrefix("imgtool: ")
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes one command. It always returns 0; failures are reported as
// text on stdout.
func run(args []string, stdout io.Writer) int {
	cfg := config.Load()

	raw := rawdecoder.New(rawdecoder.ExecRunner{}, cfg.DcrawDir)
	raw.OnLine = func(line string) { fmt.Fprintln(stdout, line) }

	reg := codec.New()
	a := &app{
		out: stdout,
		reg: reg,
		conv: converter.New(reg, raw, converter.Options{
			Search:         quality.Options{Start: cfg.StartQuality, Step: cfg.QualityStep},
			ConvertQuality: cfg.ConvertQuality,
			Filter:         codec.FilterByName(cfg.ResampleFilter),
			MaxPixels:      cfg.MaxImagePixels,
			Platform:       converter.HostPlatform(),
		}),
	}

	a.safeDispatch(args)

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Printf("Failed to write metrics to %s: %v", cfg.MetricsFile, err)
		}
	}
	return 0
}

type app struct {
	out  io.Writer
	reg  *codec.Registry
	conv *converter.Converter
}

func (a *app) println(v ...any) {
	fmt.Fprintln(a.out, v...)
}

// operands returns the n arguments following flag, or false when flag is
// absent. ok is false with found true when too few operands follow.
func operands(args []string, flag string, n int) (ops []string, found, ok bool) {
	i := argsLookup(args, flag)
	if i < 0 {
		return nil, false, false
	}
	if len(args)-i-1 < n {
		return nil, true, false
	}
	return args[i+1 : i+1+n], true, true
}

func argsLookup(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return -1
}

// safeDispatch keeps a panicking command from taking down the process with a
// nonzero exit code.
func (a *app) safeDispatch(args []string) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("PANIC recovered: %v\n%s", p, debug.Stack())
			a.println("Command failed unexpectedly")
		}
	}()
	a.dispatch(args)
}

func (a *app) dispatch(args []string) {
	if argsLookup(args, "-supportedTypes") >= 0 {
		a.supportedTypes()
		return
	}

	commands := []struct {
		flag string
		n    int
		fn   func(ops []string)
	}{
		{"-scale", 3, a.scale},
		{"-width&height", 4, a.widthHeight},
		{"-resize", 5, a.resize},
		{"-convert", 2, a.convert},
		{"-compress", 3, a.compress},
	}
	for _, c := range commands {
		ops, found, ok := operands(args, c.flag, c.n)
		if !found {
			continue
		}
		if !ok {
			a.println("Missing arguments for " + c.flag)
			fmt.Fprint(a.out, usage)
			return
		}
		c.fn(ops)
		return
	}

	fmt.Fprint(a.out, usage)
}

func (a *app) supportedTypes() {
	read, write := a.conv.SupportedTypes()
	a.println("Your OS is: " + runtime.GOOS)
	a.println(fmt.Sprintf("Supported read formats: %v", read))
	a.println(fmt.Sprintf("Supported write formats: %v", write))
}

func (a *app) scale(ops []string) {
	f, err := strconv.ParseFloat(ops[1], 64)
	if err != nil {
		a.println("Illegal scale")
		return
	}
	a.runConvert(ops[0], geometry.Scale(f), ops[2], "Illegal scale")
}

func (a *app) widthHeight(ops []string) {
	w, errW := strconv.Atoi(ops[1])
	h, errH := strconv.Atoi(ops[2])
	if errW != nil || errH != nil {
		a.println("Illegal width or height")
		return
	}
	a.runConvert(ops[0], geometry.Box(w, h, false), ops[3], "Illegal width or height")
}

func (a *app) resize(ops []string) {
	w, errW := strconv.Atoi(ops[1])
	h, errH := strconv.Atoi(ops[2])
	if errW != nil || errH != nil {
		a.println("Illegal width or height")
		return
	}
	keep, err := strconv.ParseBool(ops[3])
	if err != nil {
		a.println("Illegal aspect ratio flag, expected true or false")
		return
	}
	a.runConvert(ops[0], geometry.Box(w, h, keep), ops[4], "Illegal width or height")
}

func (a *app) convert(ops []string) {
	a.runConvert(ops[0], geometry.Scale(1), ops[1], "Illegal scale")
}

func (a *app) runConvert(in string, g geometry.Spec, out, illegal string) {
	if err := g.Validate(); err != nil {
		a.println(illegal)
		log.Printf("convert %s -> %s: %v", in, out, err)
		return
	}
	if !a.reg.CanRead(codec.FormatOf(in)) {
		a.println("Trying dcraw conversion to JPG")
	}

	res, err := a.conv.Convert(context.Background(), in, g, out)
	if res != nil && res.Mode == converter.ModeRaw {
		a.reportRaw(res, err)
		return
	}

	switch {
	case err == nil:
		a.println("Conversion Complete!")
	case errors.Is(err, geometry.ErrInvalidGeometry):
		a.println(illegal)
	case errors.Is(err, converter.ErrUnsupportedOutputFormat):
		a.println("Output type not supported")
	case errors.Is(err, converter.ErrInputNotFound), errors.Is(err, converter.ErrOutputUnwritable):
		a.println("Input or output path not found")
	case errors.Is(err, converter.ErrImageTooLarge):
		a.println("Image too large")
	default:
		a.println("Failed to load image")
	}
	if err != nil {
		log.Printf("convert %s -> %s: %v", in, out, err)
	}
}

func (a *app) reportRaw(res *converter.Result, err error) {
	if res.ResizeDropped {
		a.println("Note: the output image will not be resized.")
	}
	switch {
	case err == nil:
		a.println("Conversion Success")
		a.println("Result saved at: " + res.OutputPath)
	case errors.Is(err, rawdecoder.ErrExternalToolMissing):
		a.println("dcraw not found or cannot execute")
	default:
		a.println("Error occurred")
	}
}

func (a *app) compress(ops []string) {
	limit, err := strconv.Atoi(ops[1])
	if err != nil {
		a.println("Illegal size")
		return
	}

	res, err := a.conv.Compress(ops[0], limit, ops[2])
	switch {
	case err == nil && res.Status == converter.AlreadyWithinLimit:
		a.println("Compression will not be performed since original file size is smaller than specified compression size")
	case err == nil:
		a.println("Compression Complete")
	case errors.Is(err, converter.ErrFormatMismatch):
		a.println("Output format must be the same as input format")
	case errors.Is(err, quality.ErrNoEncoder):
		a.println("Image writer for input image format not found")
	case errors.Is(err, quality.ErrTooSmallTarget):
		a.println("Sorry, cannot compress image under the size specified. Please choose a bigger size")
	case errors.Is(err, converter.ErrInputNotFound), errors.Is(err, converter.ErrOutputUnwritable):
		a.println("Input or output path not found")
	case errors.Is(err, converter.ErrImageTooLarge):
		a.println("Image too large")
	default:
		a.println("Failed to load image")
	}
	if err != nil {
		log.Printf("compress %s -> %s: %v", ops[0], ops[2], err)
	}
}
