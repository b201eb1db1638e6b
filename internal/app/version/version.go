package version

// Overridden at build time via -ldflags "-X ipsift/internal/app/version.buildVersion=...".
var (
	buildVersion = "dev"
	builtAt      = "unknown"
)

// Info describes the running build.
type Info struct {
	BuildVersion string
	BuiltAt      string
}

func Get() Info {
	return Info{
		BuildVersion: buildVersion,
		BuiltAt:      builtAt,
	}
}

func (i Info) String() string {
	return "ipsift " + i.BuildVersion + " (built " + i.BuiltAt + ")"
}
