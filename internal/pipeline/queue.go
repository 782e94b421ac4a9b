package pipeline

const (
	windowsAmd64Queue = "Windows.10.Amd64"
	windowsArm64Queue = "Windows.10.Arm64"
	linuxAmd64Queue   = "Ubuntu.1804.Amd64"
	linuxArmQueue     = "(Ubuntu.1804.Arm32)Ubuntu.1804.Armarch@mcr.microsoft.com/dotnet-buildtools/prereqs:ubuntu-18.04-helix-arm32v7-bfcd90a-20200121150440"
	linuxArm64Queue   = "(Ubuntu.1804.Arm64)Ubuntu.1804.ArmArch@mcr.microsoft.com/dotnet-buildtools/prereqs:ubuntu-18.04-helix-arm64v8-a45aeeb-20190620155855"
)

// HelixQueue picks the worker queue for a host OS (GOOS spelling) and target architecture.
func HelixQueue(goos, arch string) string {
	if goos == "windows" {
		if arch == "arm64" {
			return windowsArm64Queue
		}
		return windowsAmd64Queue
	}

	switch arch {
	case "arm":
		return linuxArmQueue
	case "arm64":
		return linuxArm64Queue
	default:
		return linuxAmd64Queue
	}
}

// PythonCommand is how workers of the given OS invoke python 3.
func PythonCommand(goos string) string {
	if goos == "windows" {
		return "py -3"
	}
	return "python3"
}

// DefaultExcludedFiles are native runtime binaries that are never collected.
var DefaultExcludedFiles = []string{
	"clrcompression.dll",
	"clretwrc.dll",
	"clrgc.dll",
	"clrjit.dll",
	"clrjit_unix_arm_x64.dll",
	"clrjit_unix_arm64_x64.dll",
	"clrjit_unix_x64_x64.dll",
	"clrjit_win_arm_x64.dll",
	"clrjit_win_arm64_x64.dll",
	"clrjit_win_x64_x64.dll",
	"clrjit_win_x86_x64.dll",
	"coreclr.dll",
	"CoreConsole.exe",
	"coredistools.dll",
	"CoreRun.exe",
	"CoreShim.dll",
	"createdump.exe",
	"crossgen.exe",
	"dbgshim.dll",
	"ilasm.exe",
	"ildasm.exe",
	"jitinterface_x64.dll",
	"linuxnonjit.dll",
	"mcs.exe",
	"mscordaccore.dll",
	"mscordbi.dll",
	"mscorrc.dll",
	"protononjit.dll",
	"superpmi.exe",
	"superpmi-shim-collector.dll",
	"superpmi-shim-counter.dll",
	"superpmi-shim-simple.dll",
}
