package casregistry

// Usage says which kinds of binary may open a backend. A backend is linked
// in by importing its package; Usage then filters what each binary offers.
type Usage uint8

const (
	// UsageCLI: short-lived commands such as agentchain and cascli.
	UsageCLI Usage = 1 << iota
	// UsageDaemon: long-running servers such as agentchain-casd.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
