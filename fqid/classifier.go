package fqid

type Locality int

const (
	Remote Locality = iota
	Local
)

func (l Locality) String() string {
	if l == Local {
		return "local"
	}
	return "remote"
}

// HostClassifier compares hosts against this node's base host by scheme and
// authority only.
type HostClassifier struct {
	base string
}

func NewHostClassifier(baseURL string) (HostClassifier, error) {
	base, err := NormalizeHost(baseURL)
	if err != nil {
		return HostClassifier{}, err
	}
	return HostClassifier{base: base}, nil
}

// Base is the normalized base host of this node.
func (c HostClassifier) Base() string {
	return c.base
}

// Classify treats anything that does not parse as a host as remote.
func (c HostClassifier) Classify(host string) Locality {
	h, err := NormalizeHost(host)
	if err != nil || h != c.base {
		return Remote
	}
	return Local
}

func (c HostClassifier) IsLocal(raw string) bool {
	return c.Classify(raw) == Local
}
