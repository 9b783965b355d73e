// Package buildinfo carries version metadata stamped in via -ldflags.
package buildinfo

var (
    Service = "courierd"
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    return map[string]string{
        "service": Service,
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
    }
}
