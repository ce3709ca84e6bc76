package version

// Version is the current chromestream release.
const Version = "0.3.0"
