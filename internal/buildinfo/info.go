package buildinfo

const ServiceName = "sessionbridge"

var (
	Version    = "v1.0.0"
	CommitHash = "unknown"
)

type Info struct {
	About      string `json:"about,omitempty"`
	Service    string `json:"service,omitempty"`
	Version    string `json:"version,omitempty"`
	CommitHash string `json:"commit_hash,omitempty"`
}

func GetBuildInfo() Info {
	return Info{
		About:      "https://github.com/darmiel/sessionbridge",
		Service:    ServiceName,
		Version:    Version,
		CommitHash: CommitHash,
	}
}

// UserAgent is sent with outgoing requests, e.g. JWKS fetches.
func UserAgent() string {
	return ServiceName + "/" + Version
}
