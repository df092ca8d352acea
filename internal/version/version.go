package version

// Version is the current version of warpmatch.
// Override at build time with:
//
//	go build -ldflags="-X 'github.com/BioHazard786/warpmatch/internal/version.Version=v1.0.0'"
var Version = "dev"
