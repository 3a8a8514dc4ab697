package qtversion

import (
	"fmt"
	"strconv"
	"strings"
)

// Abi describes a target binary interface, written as
// "arch-os-flavor-format-NNbit" (e.g. "x86-linux-generic-elf-64bit").
type Abi struct {
	Arch      string
	OS        string
	OSFlavor  string
	Format    string
	WordWidth int
}

const (
	ArchX86     = "x86"
	ArchArm     = "arm"
	ArchPowerPC = "ppc"

	OSDarwin  = "darwin"
	OSLinux   = "linux"
	OSWindows = "windows"

	FlavorAndroid = "android"

	FormatMachO = "mach_o"
)

func ParseAbi(s string) (Abi, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 5 {
		return Abi{}, fmt.Errorf("invalid ABI %q: expected arch-os-flavor-format-width", s)
	}
	width, err := strconv.Atoi(strings.TrimSuffix(parts[4], "bit"))
	if err != nil || !strings.HasSuffix(parts[4], "bit") {
		return Abi{}, fmt.Errorf("invalid ABI %q: bad word width %q", s, parts[4])
	}
	return Abi{
		Arch:      parts[0],
		OS:        parts[1],
		OSFlavor:  parts[2],
		Format:    parts[3],
		WordWidth: width,
	}, nil
}

func (a Abi) String() string {
	return fmt.Sprintf("%s-%s-%s-%s-%dbit", a.Arch, a.OS, a.OSFlavor, a.Format, a.WordWidth)
}

func (a Abi) IsAndroid() bool { return a.OSFlavor == FlavorAndroid }

// Param is the name qmake expects for this ABI: the Android ABI name for
// Android targets, the full ABI string otherwise.
func (a Abi) Param() string {
	if !a.IsAndroid() {
		return a.String()
	}
	switch a.Arch {
	case ArchArm:
		if a.WordWidth == 64 {
			return "arm64-v8a"
		}
		return "armeabi-v7a"
	case ArchX86:
		if a.WordWidth == 64 {
			return "x86_64"
		}
		return "x86"
	default:
		return a.Arch + "-" + strconv.Itoa(a.WordWidth)
	}
}
