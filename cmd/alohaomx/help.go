package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

var (
	flagEncode         bool
	flagDecode         bool
	flagInput          string
	flagOutput         string
	flagComponent      string
	flagLibrary        string
	flagWidth          uint32
	flagHeight         uint32
	flagBitrate        uint32
	flagFrameRate      uint32
	flagInputBuffers   uint32
	flagOutputBuffers  uint32
	flagCommandTimeout time.Duration
	flagStreamTimeout  time.Duration
	flagLogLevel       string
	flagHelp           bool
	flagVersion        bool
)

func init() {
	flag.BoolVarP(&flagDecode, "decode", "d", false, "Decode H.264 to raw frames")
	flag.BoolVarP(&flagEncode, "encode", "e", false, "Encode raw frames to H.264")
	flag.StringVarP(&flagInput, "input", "i", "", "Source spec")
	flag.StringVarP(&flagOutput, "output", "o", "-", "Sink spec")
	flag.StringVarP(&flagComponent, "component", "c", "", "Component name, or \"sim\"")
	flag.StringVarP(&flagLibrary, "library", "l", "", "OpenMAX IL core library")
	flag.Uint32VarP(&flagWidth, "width", "x", 640, "Frame width")
	flag.Uint32VarP(&flagHeight, "height", "y", 480, "Frame height")
	flag.Uint32VarP(&flagBitrate, "bitrate", "b", 5000000, "Target bitrate, in bits per second")
	flag.Uint32VarP(&flagFrameRate, "framerate", "r", 30, "Frame rate")
	flag.Uint32Var(&flagInputBuffers, "input-buffers", 0, "Input buffer count")
	flag.Uint32Var(&flagOutputBuffers, "output-buffers", 0, "Output buffer count")
	flag.DurationVar(&flagCommandTimeout, "timeout", 5*time.Second, "Command timeout")
	flag.DurationVar(&flagStreamTimeout, "stream-timeout", 0, "End of stream timeout")
	flag.StringVar(&flagLogLevel, "log-level", "", "Log level directives")

	flag.BoolVarP(&flagHelp, "help", "h", false, "Print usage information and exit")
	flag.BoolVarP(&flagVersion, "version", "v", false, "Print version information and exit")
}

const helpString = `Hardware H.264 codec driver for OpenMAX IL components

Usage: alohaomx [OPTION]... -i SOURCE [-o SINK]

Mode:
  -d, --decode           Decode an H.264 stream to raw frames (default)
  -e, --encode           Encode raw frames to an H.264 stream

Streams:
  -i, --input=SPEC       Source, e.g. h264:in.264, mp4:clip.mp4,
                         raw:640x480:in.nv12, gst:clip.mkv
  -o, --output=SPEC      Sink, e.g. file:out.nv12, ws://host/frames
                         (default: stdout)

Component:
  -c, --component=NAME   Component name (default: vendor H.264 codec), or
                         "sim" for the built-in simulator
  -l, --library=FILE     Core library (default: $OMXIL_LIBRARY or
                         libomxr_core.so)
      --input-buffers=N  Input buffer count (default: 2)
      --output-buffers=N Output buffer count (default: 3 decoding,
                         2 encoding)
      --timeout=DUR      Bound on each state change (default: 5s)
      --stream-timeout=DUR
                         Bound on the wait for end of stream

Encoder:
  -x, --width=NUM        Frame width (default: 640)
  -y, --height=NUM       Frame height (default: 480)
  -b, --bitrate=NUM      Target bitrate, in bits per second (default: 5000000)
  -r, --framerate=NUM    Frame rate (default: 30)

Miscellaneous:
      --log-level=SPEC   Comma-separated [tag=]level directives, as $LOGLEVEL
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits

Please report bugs to: aloha@lanikailabs.com`

// Help information is printed and program exits
func help() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)

	//         _         _
	//   __ _ | |  ___  | |__    __ _   ___   _ __ ___ __  __
	//  / _` || | / _ \ | '_ \  / _` | / _ \ | '_ ` _ \\ \/ /
	// | (_| || || (_) || | | || (_| || (_) || | | | | |>  <
	//  \__,_||_| \___/ |_| |_| \__,_| \___/ |_| |_| |_/_/\_\

	// Line 1
	r.Printf("        ")
	y.Printf(" _ ")
	b.Printf("       ")
	y.Println(" _     ")

	// Line 2
	r.Printf("   __ _ ")
	y.Printf("| |")
	b.Printf("  ___  ")
	y.Printf("| |__  ")
	r.Printf("  __ _ ")
	b.Printf("  ___  ")
	y.Println(" _ __ ___ __  __")

	// Line 3
	r.Printf("  / _` |")
	y.Printf("| |")
	b.Printf(" / _ \\ ")
	y.Printf("| '_ \\ ")
	r.Printf(" / _` |")
	b.Printf(" / _ \\ ")
	y.Println("| '_ ` _ \\\\ \\/ /")

	// Line 4
	r.Printf(" | (_| |")
	y.Printf("| |")
	b.Printf("| (_) |")
	y.Printf("| | | |")
	r.Printf("| (_| |")
	b.Printf("| (_) |")
	y.Println("| | | | | |>  < ")

	// Line 5
	r.Printf("  \\__,_|")
	y.Printf("|_|")
	b.Printf(" \\___/ ")
	y.Printf("|_| |_|")
	r.Printf(" \\__,_|")
	b.Printf(" \\___/ ")
	y.Println("|_| |_| |_/_/\\_\\")

	fmt.Println(helpString)
}
